package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"lexshelf/api/internal/auth"
	"lexshelf/api/internal/blob"
	"lexshelf/api/internal/library"
	"lexshelf/api/internal/rbac"
)

const defaultMaxUploadBytes = 50 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     *zap.Logger
}

func NewHTTPServer(service *Service, corsOrigin string, logger *zap.Logger) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPServer{service: service, corsOrigin: corsOrigin, logger: logger.Named("http")}
}

func (s *HTTPServer) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(s.requestLog)
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: strings.Split(s.corsOrigin, ","),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:         300,
	}))

	router.Get("/api/health", s.handleHealth)
	router.Get("/api/ready", s.handleReady)
	router.Method(http.MethodGet, "/metrics", s.service.Metrics().Handler())

	router.Route("/api", func(r chi.Router) {
		r.Post("/session/login", s.handleLogin)
		r.With(s.require(rbac.ActionSubmit)).Post("/contact", s.handleSubmit)

		r.Group(func(r chi.Router) {
			r.Use(s.require(rbac.ActionRead))
			r.Get("/session", s.handleSession)
			r.Get("/library", s.handleBrowse)
			r.Get("/search", s.handleSearch)
			r.Get("/nodes/{id}", s.handleGetNode)
			r.Get("/nodes/{id}/print", s.handlePrint)
			r.Get("/attachments/{blobID}", s.handleDownload)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.require(rbac.ActionWrite))
			r.Post("/session/logout", s.handleLogout)

			r.Post("/categories", s.handleCreateCategory)
			r.Put("/categories/{id}", s.handleRenameCategory)
			r.Post("/categories/{id}/articles", s.handleCreateArticle)
			r.Post("/articles/{id}/sections", s.handleCreateSection)
			r.Put("/nodes/{id}", s.handleUpdateContent)
			r.Delete("/nodes/{id}", s.handleDeleteNode)
			r.Post("/nodes/{id}/attachments", s.handleAttach)
			r.Delete("/nodes/{id}/attachments/{index}", s.handleDetach)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.require(rbac.ActionAdmin))
			r.Put("/password", s.handleSetPassword)
			r.Post("/password/reset", s.handleResetPassword)

			r.Get("/submissions", s.handleListSubmissions)
			r.Delete("/submissions", s.handleClearSubmissions)
			r.Get("/submissions/{id}/files/{fileID}", s.handleSubmissionFile)

			r.Get("/export", s.handleExport)
			r.Post("/import", s.handleImport)
			r.Get("/backup", s.handleBackup)
			r.Post("/blobs/collect", s.handleCollectBlobs)

			r.Get("/snapshots", s.handleSnapshots)
			r.Get("/snapshots/{hash}", s.handleSnapshot)
			r.Post("/snapshots/{hash}/restore", s.handleRestoreSnapshot)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})
	return router
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

type sessionKey struct{}

func sessionFrom(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(Session)
	return sess, ok
}

// require lets the request through when the caller may perform action.
// Callers without a live session act as visitors.
func (s *HTTPServer) require(action rbac.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := rbac.RoleVisitor
			if token := bearerToken(r); token != "" {
				sess, err := s.service.SessionFromToken(r.Context(), token)
				switch {
				case err == nil:
					role = sess.Role
					r = r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess))
				case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
					// stale or revoked tokens browse as visitors
				default:
					s.fail(w, r, err)
					return
				}
			}
			if !s.service.Can(role, action) {
				if role == rbac.RoleVisitor {
					writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
					return
				}
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestLog records one access log line and the HTTP metrics per request.
func (s *HTTPServer) requestLog(next http.Handler) http.Handler {
	collector := s.service.Metrics()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		requestID := chimiddleware.GetReqID(r.Context())
		w.Header().Set("X-Request-ID", requestID)
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(started)
		collector.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
		collector.HTTPDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Int64("duration_ms", elapsed.Milliseconds()),
		)
	})
}

// fail writes err as an error envelope and logs server-side failures.
func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, code, message, details)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

// writeFile sends obj as a download named name.
func writeFile(w http.ResponseWriter, obj blob.Object, name string) {
	mimeType := obj.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	if disposition := mime.FormatMediaType("attachment", map[string]string{"filename": name}); disposition != "" {
		w.Header().Set("Content-Disposition", disposition)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Data)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("%w: invalid JSON body", library.ErrInvalidFormat)
	}
	return nil
}

// decodeAndValidate decodes a JSON body into target and checks its tags.
func decodeAndValidate(r *http.Request, target any) error {
	if err := decodeBody(r, target); err != nil {
		return err
	}
	return validateStruct(target)
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func confirmed(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return ok
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func (s *HTTPServer) maxUploadBytes() int64 {
	if n := s.service.MaxUploadBytes(); n > 0 {
		return n
	}
	return defaultMaxUploadBytes
}

// readUploads reads the multipart files posted under field.
func (s *HTTPServer) readUploads(w http.ResponseWriter, r *http.Request, field string) ([]FileUpload, error) {
	limit := s.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: upload larger than %d bytes", library.ErrInvalidInput, limit)
		}
		return nil, fmt.Errorf("%w: %v", library.ErrInvalidFormat, err)
	}

	headers := r.MultipartForm.File[field]
	uploads := make([]FileUpload, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", library.ErrInvalidFormat, header.Filename, err)
		}
		data, err := io.ReadAll(file)
		_ = file.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", library.ErrInvalidFormat, header.Filename, err)
		}
		uploads = append(uploads, FileUpload{
			Name:     header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Data:     data,
		})
	}
	return uploads, nil
}
