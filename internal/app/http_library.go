package app

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"lexshelf/api/internal/export"
	"lexshelf/api/internal/library"
	"lexshelf/api/internal/rbac"
	"lexshelf/api/internal/search"
)

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"authenticated": false,
		"role":          rbac.RoleVisitor,
		"passwordSet":   s.service.HasPassword(),
	}
	if sess, ok := sessionFrom(r.Context()); ok {
		response["authenticated"] = sess.Role == rbac.RoleAdmin
		response["role"] = sess.Role
		response["expiresAt"] = sess.ExpiresAt.Unix()
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := decodeAndValidate(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	result, err := s.service.Login(r.Context(), body.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":           result.Session.Token,
		"role":            result.Session.Role,
		"expiresAt":       result.Session.ExpiresAt.Unix(),
		"passwordCreated": result.PasswordCreated,
	})
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFrom(r.Context())
	if err := s.service.Logout(r.Context(), sess); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleBrowse(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Browse(r.URL.Query().Get("q")))
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := library.Kind(q.Get("kind"))
	if kind != "" && kind != library.KindArticle && kind != library.KindSection {
		s.fail(w, r, fmt.Errorf("%w: kind must be article or section", library.ErrInvalidInput))
		return
	}
	writeJSON(w, http.StatusOK, s.service.Search(search.Query{
		Text:       q.Get("q"),
		Kind:       kind,
		CategoryID: q.Get("category"),
		Limit:      queryInt(r, "limit", 20),
		Offset:     queryInt(r, "offset", 0),
	}))
}

func (s *HTTPServer) handleGetNode(w http.ResponseWriter, r *http.Request) {
	node, err := s.service.GetNode(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (s *HTTPServer) handlePrint(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.PrintNode(r.Context(), chi.URLParam(r, "id"), export.Format(r.URL.Query().Get("format")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	obj, ref, err := s.service.Download(r.Context(), chi.URLParam(r, "blobID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeFile(w, obj, ref.Name)
}

func (s *HTTPServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	files, err := s.readUploads(w, r, "files")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sub, err := s.service.Submit(r.Context(), SubmissionInput{
		Name:    r.FormValue("name"),
		Message: r.FormValue("message"),
		Files:   files,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":          sub.ID,
		"files":       len(sub.Files),
		"skipped":     len(files) - len(sub.Files),
		"submittedAt": sub.SubmittedAt,
	})
}

func (s *HTTPServer) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var body categoryRequest
	if err := decodeAndValidate(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	category, err := s.service.CreateCategory(r.Context(), body.Name, body.Icon, body.Color)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (s *HTTPServer) handleRenameCategory(w http.ResponseWriter, r *http.Request) {
	var body categoryRequest
	if err := decodeAndValidate(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	category, err := s.service.RenameCategory(r.Context(), chi.URLParam(r, "id"), body.Name, body.Icon)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

func (s *HTTPServer) handleCreateArticle(w http.ResponseWriter, r *http.Request) {
	var body contentRequest
	if err := decodeAndValidate(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	article, err := s.service.CreateArticle(r.Context(), chi.URLParam(r, "id"), body.Name, body.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, article)
}

func (s *HTTPServer) handleCreateSection(w http.ResponseWriter, r *http.Request) {
	var body contentRequest
	if err := decodeAndValidate(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	section, err := s.service.CreateSection(r.Context(), chi.URLParam(r, "id"), body.Name, body.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, section)
}

func (s *HTTPServer) handleUpdateContent(w http.ResponseWriter, r *http.Request) {
	var body contentRequest
	if err := decodeAndValidate(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	node, err := s.service.UpdateContent(r.Context(), chi.URLParam(r, "id"), body.Name, body.Content)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (s *HTTPServer) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	removed, err := s.service.DeleteNode(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("parent"), confirmed(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"kind":        removed.Kind,
		"id":          removed.ID,
		"name":        removed.Name,
		"nodeIds":     removed.NodeIDs,
		"attachments": removed.Attachments,
	})
}

func (s *HTTPServer) handleAttach(w http.ResponseWriter, r *http.Request) {
	files, err := s.readUploads(w, r, "files")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	results, err := s.service.AttachMany(r.Context(), chi.URLParam(r, "id"), files)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *HTTPServer) handleDetach(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: attachment index must be a number", library.ErrInvalidInput))
		return
	}
	removed, err := s.service.Detach(r.Context(), chi.URLParam(r, "id"), index, confirmed(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, removed)
}

func (s *HTTPServer) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	var body passwordRequest
	if err := decodeAndValidate(r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.service.SetPassword(r.Context(), body.Password); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ResetPassword(r.Context(), confirmed(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.service.ListSubmissions(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": subs})
}

func (s *HTTPServer) handleClearSubmissions(w http.ResponseWriter, r *http.Request) {
	n, err := s.service.ClearSubmissions(r.Context(), confirmed(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}

func (s *HTTPServer) handleSubmissionFile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: submission id must be a number", library.ErrInvalidInput))
		return
	}
	obj, ref, err := s.service.DownloadSubmissionFile(r.Context(), id, chi.URLParam(r, "fileID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeFile(w, obj, ref.Name)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.ExportTree(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="lexshelf-export.json"`)
	writeJSON(w, http.StatusOK, doc)
}

func (s *HTTPServer) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUploadBytes()))
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: read body: %v", library.ErrInvalidFormat, err))
		return
	}
	summary, err := s.service.ImportTree(r.Context(), data)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *HTTPServer) handleBackup(w http.ResponseWriter, r *http.Request) {
	backup, err := s.service.ExportFullBackup(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="lexshelf-backup.json"`)
	writeJSON(w, http.StatusOK, backup)
}

func (s *HTTPServer) handleCollectBlobs(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.CollectOrphanBlobs(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *HTTPServer) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	commits, err := s.service.Snapshots(queryInt(r, "limit", 50))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": commits})
}

func (s *HTTPServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Snapshot(chi.URLParam(r, "hash"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.RestoreSnapshot(r.Context(), chi.URLParam(r, "hash"), confirmed(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"restored": info})
}
