package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"lexshelf/api/internal/blob"
	"lexshelf/api/internal/config"
	"lexshelf/api/internal/events"
	"lexshelf/api/internal/library"
	"lexshelf/api/internal/metrics"
	"lexshelf/api/internal/search"
	"lexshelf/api/internal/session"
	"lexshelf/api/internal/snapshot"
)

// documentKey is the row under which the tree is persisted.
const documentKey = "library"

const snapshotAuthor = "lexshelf"

type dataStore interface {
	Ping(context.Context) error
	SaveDocument(context.Context, string, []byte) error
	LoadDocument(context.Context, string) ([]byte, bool, error)
	AddSubmission(context.Context, library.Submission) (int64, error)
	ListSubmissions(context.Context) ([]library.Submission, error)
	ClearSubmissions(context.Context) (int64, error)
}

type historyStore interface {
	Commit(library.Document, string, string) (snapshot.CommitInfo, bool, error)
	History(int) ([]snapshot.CommitInfo, error)
	Get(string) (library.Document, snapshot.CommitInfo, error)
}

type notifier interface {
	IsConfigured() bool
	SendSubmissionNotice(string, library.Submission) error
	SendPasswordResetNotice(string, time.Time) error
}

// Deps are the collaborators of Service. Store, Blobs and Sessions are
// required; the rest may be nil.
type Deps struct {
	Store    dataStore
	Blobs    blob.Store
	Sessions session.Store
	Meili    *search.Meili
	History  historyStore
	Mailer   notifier
	Metrics  *metrics.Collector
	Bus      *events.Bus
	Logger   *zap.Logger
}

// Service owns the library tree. Every mutation holds mu across the change
// and the flush that persists it, so flushes land in call order.
type Service struct {
	cfg      config.Config
	store    dataStore
	blobs    blob.Store
	sessions session.Store
	search   *search.Service
	history  historyStore
	mailer   notifier
	metrics  *metrics.Collector
	bus      *events.Bus
	logger   *zap.Logger
	now      func() time.Time

	mu  sync.RWMutex
	lib *library.Library

	// syncMu orders index and snapshot refreshes so the last one to run
	// always sees the newest tree.
	syncMu sync.Mutex
}

func New(cfg config.Config, deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NewCollector("lexshelf")
	}
	bus := deps.Bus
	if bus == nil {
		bus = events.NewBus(logger.Named("events"))
	}

	s := &Service{
		cfg:      cfg,
		store:    deps.Store,
		blobs:    deps.Blobs,
		sessions: deps.Sessions,
		history:  deps.History,
		mailer:   deps.Mailer,
		metrics:  collector,
		bus:      bus,
		logger:   logger.Named("app"),
		now:      time.Now,
		lib:      library.New(nil),
	}
	s.search = search.NewService(deps.Meili, search.NewLocal(s), logger)
	s.subscribe()
	return s
}

func (s *Service) subscribe() {
	for _, t := range []events.Type{
		events.TreeChanged,
		events.TreeImported,
		events.NodeDeleted,
		events.AttachmentAdded,
		events.AttachmentRemoved,
	} {
		s.bus.Subscribe(t, s.onTreeChanged)
	}
	s.bus.Subscribe(events.SubmissionReceived, s.onSubmissionReceived)
	s.bus.SubscribeAll(s.countEvent)
	s.bus.Subscribe(events.CredentialChanged, s.onCredentialChanged)
}

// Bootstrap loads the persisted tree, seeds the default category when the
// tree is empty and signs out sessions left over from a previous run.
func (s *Service) Bootstrap(ctx context.Context) error {
	raw, found, err := s.store.LoadDocument(ctx, documentKey)
	if err != nil {
		return fmt.Errorf("load library: %w", err)
	}

	var doc library.Document
	if found {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("decode library: %w", err)
		}
		if err := library.Validate(&doc); err != nil {
			s.logger.Warn("persisted library failed validation", zap.Error(err))
		}
	}
	seeded := doc.EnsureDefaults()

	s.mu.Lock()
	s.lib = library.New(&doc)
	if seeded {
		if err := s.flushLocked(ctx, "bootstrap"); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.mu.Unlock()

	revoked, err := s.sessions.RevokeAll(ctx)
	if err != nil {
		return fmt.Errorf("revoke stale sessions: %w", err)
	}

	s.logger.Info("library loaded",
		zap.Bool("found", found),
		zap.Bool("seeded", seeded),
		zap.Int("categories", len(doc.Categories)),
		zap.Int("revoked_sessions", revoked),
	)
	s.bus.Publish(events.Event{Type: events.TreeChanged, Data: "bootstrap"})
	return nil
}

// View runs fn with read access to the live tree. fn must not retain doc.
func (s *Service) View(fn func(doc *library.Document)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.lib.Document())
}

// Flush persists the current tree. It is called on shutdown.
func (s *Service) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(ctx, "shutdown")
}

// Ping checks the health of service dependencies (database, sessions).
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := s.sessions.Ping(ctx); err != nil {
		return fmt.Errorf("sessions: %w", err)
	}
	return nil
}

// Close waits for in-flight event handlers and stops background work.
func (s *Service) Close() {
	s.bus.Wait()
	s.search.Close()
}

func (s *Service) Metrics() *metrics.Collector {
	return s.metrics
}

func (s *Service) MaxUploadBytes() int64 {
	return s.cfg.MaxUploadBytes
}

// flushLocked writes the tree to the document store. On failure the
// in-memory tree stays ahead of storage and the next flush retries.
func (s *Service) flushLocked(ctx context.Context, operation string) error {
	raw, err := json.Marshal(s.lib.Document())
	if err != nil {
		return fmt.Errorf("encode library: %w", err)
	}
	if err := s.store.SaveDocument(ctx, documentKey, raw); err != nil {
		s.metrics.FlushFailures.Inc()
		s.logger.Error("flush library",
			zap.String("operation", operation),
			zap.Error(err),
		)
		return fmt.Errorf("save library: %w: %w", library.ErrStorageFailure, err)
	}
	return nil
}

// mutate applies fn to the tree and flushes it. The event returned by fn is
// published only when both steps succeed.
func (s *Service) mutate(ctx context.Context, operation string, fn func(lib *library.Library) (events.Event, error)) error {
	s.mu.Lock()
	event, err := fn(s.lib)
	if err == nil {
		err = s.flushLocked(ctx, operation)
	}
	s.mu.Unlock()

	s.metrics.Mutation(operation, err)
	if err != nil {
		return err
	}
	s.bus.Publish(event)
	return nil
}

// snapshotDocument returns a deep copy of the tree.
func (s *Service) snapshotDocument() library.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneDocument(s.lib.Document())
}

func cloneDocument(doc *library.Document) library.Document {
	raw, err := json.Marshal(doc)
	if err != nil {
		panic(fmt.Sprintf("clone library: %v", err))
	}
	var out library.Document
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("clone library: %v", err))
	}
	return out
}

func (s *Service) onTreeChanged(event events.Event) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	doc := s.snapshotDocument()
	s.search.Reindex(&doc)

	if s.history == nil {
		return
	}
	message := string(event.Type)
	if event.NodeID != "" {
		message += " " + event.NodeID
	}
	info, changed, err := s.history.Commit(doc, snapshotAuthor, message)
	if err != nil {
		s.logger.Warn("snapshot commit failed", zap.String("event", string(event.Type)), zap.Error(err))
		return
	}
	if changed {
		s.logger.Debug("snapshot committed", zap.String("hash", info.Hash), zap.String("event", string(event.Type)))
	}
}

func (s *Service) countEvent(event events.Event) {
	s.metrics.Events.WithLabelValues(string(event.Type)).Inc()
}

func (s *Service) onSubmissionReceived(event events.Event) {
	sub, ok := event.Data.(library.Submission)
	if !ok || !s.canNotify() {
		return
	}
	if err := s.mailer.SendSubmissionNotice(s.cfg.NotifyEmail, sub); err != nil {
		s.logger.Warn("submission notice not sent", zap.Int64("submission_id", sub.ID), zap.Error(err))
	}
}

func (s *Service) onCredentialChanged(event events.Event) {
	if event.Data != credentialReset || !s.canNotify() {
		return
	}
	if err := s.mailer.SendPasswordResetNotice(s.cfg.NotifyEmail, s.now()); err != nil {
		s.logger.Warn("password reset notice not sent", zap.Error(err))
	}
}

func (s *Service) canNotify() bool {
	return s.mailer != nil && s.mailer.IsConfigured() && s.cfg.NotifyEmail != ""
}

func storageError(action string, err error) error {
	if errors.Is(err, library.ErrStorageFailure) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", action, library.ErrStorageFailure, err)
}
