package app

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"lexshelf/api/internal/blob"
	"lexshelf/api/internal/config"
	"lexshelf/api/internal/events"
	"lexshelf/api/internal/library"
	"lexshelf/api/internal/rbac"
	"lexshelf/api/internal/search"
	"lexshelf/api/internal/session"
	"lexshelf/api/internal/snapshot"
	"lexshelf/api/internal/store"
)

const testPassword = "secret-pass"

// flakyStore fails document saves on demand.
type flakyStore struct {
	*store.Store
	failSave atomic.Bool
}

func (f *flakyStore) SaveDocument(ctx context.Context, key string, value []byte) error {
	if f.failSave.Load() {
		return errors.New("disk full")
	}
	return f.Store.SaveDocument(ctx, key, value)
}

// flakyBlobs refuses to store payloads equal to "boom".
type flakyBlobs struct {
	blob.Store
}

func (f flakyBlobs) Put(ctx context.Context, id string, data []byte, mimeType string) error {
	if string(data) == "boom" {
		return errors.New("bucket unavailable")
	}
	return f.Store.Put(ctx, id, data, mimeType)
}

type fakeMailer struct {
	mu          sync.Mutex
	submissions []library.Submission
	resets      int
}

func (m *fakeMailer) IsConfigured() bool { return true }

func (m *fakeMailer) SendSubmissionNotice(_ string, sub library.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions = append(m.submissions, sub)
	return nil
}

func (m *fakeMailer) SendPasswordResetNotice(string, time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	return nil
}

type testEnv struct {
	svc      *Service
	store    *flakyStore
	blobs    blob.Store
	sessions *session.MemoryStore
	mailer   *fakeMailer
	bus      *events.Bus
}

func testConfig() config.Config {
	return config.Config{
		SessionSecret:  "test-secret",
		SessionTTL:     time.Hour,
		MaxUploadBytes: 1 << 20,
		NotifyEmail:    "admin@example.com",
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, store.DriverSQLite, filepath.Join(t.TempDir(), "lexshelf.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.ApplyMigrations(ctx, db, store.MigrationsDir(filepath.Join("..", "..", "db", "migrations"), store.DriverSQLite)))

	env := &testEnv{
		store:    &flakyStore{Store: store.New(db)},
		blobs:    flakyBlobs{Store: blob.NewSQLStore(db)},
		sessions: session.NewMemoryStore(),
		mailer:   &fakeMailer{},
	}
	env.svc = env.newService(t, snapshot.New(filepath.Join(t.TempDir(), "snapshots")))
	return env
}

// newService builds a service over the env's stores and bootstraps it.
func (e *testEnv) newService(t *testing.T, history historyStore) *Service {
	t.Helper()
	logger := zaptest.NewLogger(t)
	e.bus = events.NewBus(logger)
	svc := New(testConfig(), Deps{
		Store:    e.store,
		Blobs:    e.blobs,
		Sessions: e.sessions,
		History:  history,
		Mailer:   e.mailer,
		Bus:      e.bus,
		Logger:   logger,
	})
	require.NoError(t, svc.Bootstrap(context.Background()))
	svc.bus.Wait()
	t.Cleanup(svc.Close)
	return svc
}

func sessionActive(svc *Service, token string) bool {
	sess, err := svc.SessionFromToken(context.Background(), token)
	return err == nil && sess.Role == rbac.RoleAdmin
}

func (e *testEnv) login(t *testing.T) Session {
	t.Helper()
	result, err := e.svc.Login(context.Background(), testPassword)
	require.NoError(t, err)
	return result.Session
}

func TestBootstrapSeedsDefaults(t *testing.T) {
	env := newTestEnv(t)

	view := env.svc.Browse("")
	require.Len(t, view.Categories, 1)
	require.Equal(t, "Labor Law", view.Categories[0].Name)
	require.NotEmpty(t, view.Categories[0].Articles)

	_, found, err := env.store.LoadDocument(context.Background(), documentKey)
	require.NoError(t, err)
	require.True(t, found, "seeded tree should be persisted")
}

func TestBootstrapReloadsTreeAndDropsSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sess := env.login(t)

	created, err := env.svc.CreateCategory(ctx, "Civil Law", "📘", "#336699")
	require.NoError(t, err)

	env.svc = env.newService(t, nil)

	node, err := env.svc.GetNode(created.ID)
	require.NoError(t, err)
	require.Equal(t, "Civil Law", node.Name)
	require.True(t, env.svc.HasPassword())
	require.False(t, sessionActive(env.svc, sess.Token), "sessions end with the process run")
}

func TestLoginSetsFirstPasswordThenVerifies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.False(t, env.svc.HasPassword())

	_, err := env.svc.Login(ctx, "abc")
	require.ErrorIs(t, err, library.ErrInvalidInput)
	require.False(t, env.svc.HasPassword())

	first, err := env.svc.Login(ctx, testPassword)
	require.NoError(t, err)
	require.True(t, first.PasswordCreated)
	require.True(t, sessionActive(env.svc, first.Session.Token))

	_, err = env.svc.Login(ctx, "not-the-password")
	require.ErrorIs(t, err, library.ErrUnauthorized)

	second, err := env.svc.Login(ctx, testPassword)
	require.NoError(t, err)
	require.False(t, second.PasswordCreated)

	require.NoError(t, env.svc.Logout(ctx, second.Session))
	require.False(t, sessionActive(env.svc, second.Session.Token))
	require.True(t, sessionActive(env.svc, first.Session.Token))
	require.False(t, sessionActive(env.svc, "garbage"))
}

func TestResetPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sess := env.login(t)

	require.ErrorIs(t, env.svc.ResetPassword(ctx, false), library.ErrConfirmationRequired)
	require.True(t, env.svc.HasPassword())

	require.NoError(t, env.svc.ResetPassword(ctx, true))
	require.False(t, env.svc.HasPassword())
	require.False(t, sessionActive(env.svc, sess.Token))

	env.bus.Wait()
	env.mailer.mu.Lock()
	require.Equal(t, 1, env.mailer.resets)
	env.mailer.mu.Unlock()

	result, err := env.svc.Login(ctx, "brand-new-pass")
	require.NoError(t, err)
	require.True(t, result.PasswordCreated)
}

func TestSetPasswordReplacesCredential(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.login(t)

	require.ErrorIs(t, env.svc.SetPassword(ctx, "short"), library.ErrInvalidInput)
	require.NoError(t, env.svc.SetPassword(ctx, "another-pass"))

	_, err := env.svc.Login(ctx, testPassword)
	require.ErrorIs(t, err, library.ErrUnauthorized)
	_, err = env.svc.Login(ctx, "another-pass")
	require.NoError(t, err)
}

func TestTreeMutationsPersist(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	category, err := env.svc.CreateCategory(ctx, "Commercial Law", "", "")
	require.NoError(t, err)
	require.Equal(t, "❓", category.Icon)

	article, err := env.svc.CreateArticle(ctx, category.ID, "Companies", "<p>Formation rules</p>")
	require.NoError(t, err)
	section, err := env.svc.CreateSection(ctx, article.ID, "Article 12", "<p>Capital</p>")
	require.NoError(t, err)

	_, err = env.svc.CreateSection(ctx, category.ID, "Misplaced", "")
	require.ErrorIs(t, err, library.ErrNotFound)

	renamed, err := env.svc.RenameCategory(ctx, category.ID, "Trade Law", "")
	require.NoError(t, err)
	require.Equal(t, "❓", renamed.Icon)

	updated, err := env.svc.UpdateContent(ctx, section.ID, "Article 12 (amended)", "<p>Capital and shares</p>")
	require.NoError(t, err)
	require.Equal(t, "Companies", updated.ParentName)
	require.Equal(t, category.ID, updated.CategoryID)

	env.svc = env.newService(t, nil)
	node, err := env.svc.GetNode(category.ID)
	require.NoError(t, err)
	require.Equal(t, "Trade Law", node.Name)
	require.Equal(t, []ChildRef{{Kind: library.KindArticle, ID: article.ID, Name: "Companies"}}, node.Children)

	_, err = env.svc.DeleteNode(ctx, article.ID, category.ID, false)
	require.ErrorIs(t, err, library.ErrConfirmationRequired)

	removed, err := env.svc.DeleteNode(ctx, article.ID, category.ID, true)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{article.ID, section.ID}, removed.NodeIDs)

	_, err = env.svc.GetNode(section.ID)
	require.ErrorIs(t, err, library.ErrNotFound)
}

func TestFlushFailureKeepsMemoryAhead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.store.failSave.Store(true)
	category, err := env.svc.CreateCategory(ctx, "Tax Law", "💰", "")
	require.ErrorIs(t, err, library.ErrStorageFailure)

	_, err = env.svc.GetNode(category.ID)
	require.NoError(t, err, "the change stays in memory")

	env.store.failSave.Store(false)
	_, err = env.svc.CreateCategory(ctx, "Family Law", "👪", "")
	require.NoError(t, err)

	env.svc = env.newService(t, nil)
	names := []string{}
	for _, c := range env.svc.Browse("").Categories {
		names = append(names, c.Name)
	}
	require.Contains(t, names, "Tax Law", "the next flush carries earlier changes")
	require.Contains(t, names, "Family Law")
}

func TestAttachManyContinuesPastFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	results, err := env.svc.AttachMany(ctx, "t1-i1", []FileUpload{
		{Name: "decree.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.4")},
		{Name: "broken.bin", Data: []byte("boom")},
		{Name: "notes.txt", MimeType: "text/plain", Data: []byte("hello")},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.NotNil(t, results[0].Ref)
	require.NotEmpty(t, results[1].Error)
	require.Nil(t, results[1].Ref)
	require.NotNil(t, results[2].Ref)

	node, err := env.svc.GetNode("t1-i1")
	require.NoError(t, err)
	require.Len(t, node.Attachments, 2)
	require.Equal(t, "text/plain", results[2].Ref.MimeType)

	obj, ref, err := env.svc.Download(ctx, results[0].Ref.ID)
	require.NoError(t, err)
	require.Equal(t, "decree.pdf", ref.Name)
	require.Equal(t, []byte("%PDF-1.4"), obj.Data)

	_, err = env.svc.AttachMany(ctx, "t1", []FileUpload{{Name: "x", Data: []byte("x")}})
	require.ErrorIs(t, err, library.ErrInvalidInput)
	_, err = env.svc.AttachMany(ctx, "missing", []FileUpload{{Name: "x", Data: []byte("x")}})
	require.ErrorIs(t, err, library.ErrNotFound)
}

func TestDetachKeepsBlobUntilCollected(t *testing.T) {
	env := newTestEnv(t)
	env.svc = env.newService(t, nil)
	ctx := context.Background()

	ref, err := env.svc.Attach(ctx, "t1-i1", FileUpload{Name: "old.pdf", Data: []byte("old")})
	require.NoError(t, err)

	_, err = env.svc.Detach(ctx, "t1-i1", 0, false)
	require.ErrorIs(t, err, library.ErrConfirmationRequired)

	removed, err := env.svc.Detach(ctx, "t1-i1", 0, true)
	require.NoError(t, err)
	require.Equal(t, ref.ID, removed.ID)

	_, err = env.svc.Detach(ctx, "t1-i1", 0, true)
	require.ErrorIs(t, err, library.ErrNotFound)

	_, err = env.blobs.Get(ctx, ref.ID)
	require.NoError(t, err, "detach never deletes the blob")

	report, err := env.svc.CollectOrphanBlobs(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Deleted)
	_, err = env.blobs.Get(ctx, ref.ID)
	require.ErrorIs(t, err, blob.ErrNotFound)
}

func TestCollectKeepsBlobsRecordedInSnapshots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ref, err := env.svc.Attach(ctx, "t1-i1", FileUpload{Name: "ruling.pdf", MimeType: "application/pdf", Data: []byte("ruling")})
	require.NoError(t, err)
	env.bus.Wait()
	history, err := env.svc.Snapshots(1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	withAttachment := history[0].Hash

	_, err = env.svc.Detach(ctx, "t1-i1", 0, true)
	require.NoError(t, err)
	env.bus.Wait()
	require.NoError(t, env.blobs.Put(ctx, "stray", []byte("stray"), "text/plain"))

	report, err := env.svc.CollectOrphanBlobs(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Deleted)
	_, err = env.blobs.Get(ctx, "stray")
	require.ErrorIs(t, err, blob.ErrNotFound)
	_, err = env.blobs.Get(ctx, ref.ID)
	require.NoError(t, err, "a snapshot still references the detached blob")

	_, err = env.svc.RestoreSnapshot(ctx, withAttachment, true)
	require.NoError(t, err)
	obj, restored, err := env.svc.Download(ctx, ref.ID)
	require.NoError(t, err)
	require.Equal(t, "ruling.pdf", restored.Name)
	require.Equal(t, []byte("ruling"), obj.Data)
}

func TestSubmissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Submit(ctx, SubmissionInput{Name: "Visitor", Message: "   "})
	require.ErrorIs(t, err, library.ErrInvalidInput)

	first, err := env.svc.Submit(ctx, SubmissionInput{Message: "Please add the new decree"})
	require.NoError(t, err)
	require.Equal(t, anonymousVisitor, first.Name)

	second, err := env.svc.Submit(ctx, SubmissionInput{
		Name: "Lawyer",
		Files: []FileUpload{
			{Name: "ruling.pdf", MimeType: "application/pdf", Data: []byte("ruling")},
			{Name: "lost.bin", Data: []byte("boom")},
		},
	})
	require.NoError(t, err)
	require.Len(t, second.Files, 1)

	subs, err := env.svc.ListSubmissions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	require.Equal(t, second.ID, subs[0].ID, "newest first")

	fileID := second.Files[0].ID
	obj, ref, err := env.svc.DownloadSubmissionFile(ctx, second.ID, fileID)
	require.NoError(t, err)
	require.Equal(t, "ruling.pdf", ref.Name)
	require.Equal(t, []byte("ruling"), obj.Data)

	_, _, err = env.svc.Download(ctx, fileID)
	require.ErrorIs(t, err, library.ErrNotFound, "submission files are not public attachments")

	env.bus.Wait()
	env.mailer.mu.Lock()
	require.Len(t, env.mailer.submissions, 2)
	env.mailer.mu.Unlock()

	_, err = env.svc.ClearSubmissions(ctx, false)
	require.ErrorIs(t, err, library.ErrConfirmationRequired)
	n, err := env.svc.ClearSubmissions(ctx, true)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	report, err := env.svc.CollectOrphanBlobs(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Deleted)
}

func TestExportImportRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.login(t)
	_, err := env.svc.CreateCategory(ctx, "Criminal Law", "🔒", "#aa0000")
	require.NoError(t, err)
	_, err = env.svc.Submit(ctx, SubmissionInput{Name: "Visitor", Message: "hello"})
	require.NoError(t, err)

	exported, err := env.svc.ExportTree(ctx)
	require.NoError(t, err)
	require.NotNil(t, exported.Password)
	require.Len(t, exported.Types, 2)
	require.Len(t, exported.Uploads, 1)

	raw, err := json.Marshal(exported)
	require.NoError(t, err)

	other := newTestEnv(t)
	summary, err := other.svc.ImportTree(ctx, raw)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Categories)
	require.True(t, summary.Password)
	require.Equal(t, env.svc.Browse("").Categories, other.svc.Browse("").Categories)

	_, err = other.svc.Login(ctx, testPassword)
	require.NoError(t, err, "the imported credential replaces the old one")

	_, err = other.svc.ImportTree(ctx, []byte(`{"types": {}}`))
	require.ErrorIs(t, err, library.ErrInvalidFormat)

	summary, err = other.svc.ImportTree(ctx, []byte(`{"password": null, "types": []}`))
	require.NoError(t, err)
	require.True(t, summary.Seeded)
	require.False(t, other.svc.HasPassword())
	require.Equal(t, "Labor Law", other.svc.Browse("").Categories[0].Name)
}

func TestExportFullBackupIncludesBlobs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ref, err := env.svc.Attach(ctx, "t1-i1", FileUpload{Name: "a.txt", MimeType: "text/plain", Data: []byte("abc")})
	require.NoError(t, err)

	backup, err := env.svc.ExportFullBackup(ctx)
	require.NoError(t, err)
	require.Len(t, backup.Files, 1)
	require.Equal(t, ref.ID, backup.Files[0].ID)
	require.Equal(t, "YWJj", backup.Files[0].Data)
	require.Equal(t, "text/plain", backup.Files[0].Type)
	require.NotZero(t, backup.Timestamp)
}

func TestSnapshotsRecordAndRestore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seeded, err := env.svc.Snapshots(0)
	require.NoError(t, err)
	require.Len(t, seeded, 1)

	category, err := env.svc.CreateCategory(ctx, "Maritime Law", "⚓", "")
	require.NoError(t, err)
	env.bus.Wait()

	history, err := env.svc.Snapshots(0)
	require.NoError(t, err)
	require.Len(t, history, 2)

	view, err := env.svc.Snapshot(seeded[0].Hash)
	require.NoError(t, err)
	require.Len(t, view.Categories, 1)
	require.Contains(t, view.Changes, snapshot.Change{ID: category.ID, Kind: library.KindCategory, Name: "Maritime Law", Change: "added"})

	_, err = env.svc.RestoreSnapshot(ctx, seeded[0].Hash, false)
	require.ErrorIs(t, err, library.ErrConfirmationRequired)
	_, err = env.svc.RestoreSnapshot(ctx, seeded[0].Hash, true)
	require.NoError(t, err)

	_, err = env.svc.GetNode(category.ID)
	require.ErrorIs(t, err, library.ErrNotFound)

	_, err = env.svc.Snapshot("0000000000000000000000000000000000000000")
	require.ErrorIs(t, err, snapshot.ErrNotFound)
}

func TestSnapshotsDisabled(t *testing.T) {
	env := newTestEnv(t)
	env.svc = env.newService(t, nil)
	_, err := env.svc.Snapshots(10)
	require.ErrorIs(t, err, library.ErrNotFound)
}

func TestBrowseAndSearch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	category, err := env.svc.CreateCategory(ctx, "Civil Law", "📘", "")
	require.NoError(t, err)
	article, err := env.svc.CreateArticle(ctx, category.ID, "Contracts", "<p>General provisions</p>")
	require.NoError(t, err)
	section, err := env.svc.CreateSection(ctx, article.ID, "Offer", "<p>An offer binds the offeror</p>")
	require.NoError(t, err)

	view := env.svc.Browse("offeror")
	require.Len(t, view.Categories, 2, "categories always stay visible")
	var civil library.Category
	for _, c := range view.Categories {
		if c.ID == category.ID {
			civil = c
		}
	}
	require.Len(t, civil.Articles, 1)
	require.Equal(t, section.ID, civil.Articles[0].Sections[0].ID)

	resp := env.svc.Search(search.Query{Text: "offeror"})
	require.Equal(t, search.BackendLocal, resp.Backend)
	require.Equal(t, 1, resp.Total)
	require.Equal(t, section.ID, resp.Results[0].ID)
	require.Equal(t, category.ID, resp.Results[0].CategoryID)

	empty := env.svc.Search(search.Query{})
	require.Empty(t, empty.Results)
}

func TestPrintNodeHTML(t *testing.T) {
	env := newTestEnv(t)
	result, err := env.svc.PrintNode(context.Background(), "t1-i1", "html")
	require.NoError(t, err)
	require.Equal(t, "text/html; charset=utf-8", result.MimeType)
	require.Contains(t, string(result.Data), "Chapter One")
	require.Contains(t, string(result.Data), "Labor Law")

	_, err = env.svc.PrintNode(context.Background(), "missing", "html")
	require.ErrorIs(t, err, library.ErrNotFound)
}
