package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"inkpress/internal/auth"
	"inkpress/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxJSONBody = 1 << 20

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	articles, err := s.svc.List(r.Context())
	if err != nil {
		s.logger.Error("Failed to list articles", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list articles")
		return
	}
	writeJSON(w, http.StatusOK, articles)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "article not found")
		return
	}

	article, err := s.svc.Get(r.Context(), id)
	if errors.Is(err, service.ErrNotFound) {
		writeError(w, http.StatusNotFound, "article not found")
		return
	} else if err != nil {
		s.logger.Error("Failed to fetch article", zap.String("article_id", id.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch article")
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	authorID, err := auth.UserID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing or invalid token")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.logger.Info("Upload too large", zap.Int64("limit", tooLarge.Limit))
		} else {
			s.logger.Info("Malformed multipart body", zap.Error(err))
		}
		writeError(w, http.StatusBadRequest, "upload error")
		return
	}
	defer r.MultipartForm.RemoveAll()

	// Only a single file under "image" is accepted.
	for field, files := range r.MultipartForm.File {
		if field != "image" || len(files) > 1 {
			s.logger.Info("Unexpected upload field", zap.String("field", field))
			writeError(w, http.StatusBadRequest, "unexpected field")
			return
		}
	}

	var image *service.Upload
	if files := r.MultipartForm.File["image"]; len(files) == 1 {
		f, err := files[0].Open()
		if err != nil {
			s.logger.Error("Failed to open uploaded file", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "upload failed")
			return
		}
		defer f.Close()
		image = &service.Upload{Filename: files[0].Filename, Body: f}
	}

	in := service.CreateInput{
		Title:   r.FormValue("title"),
		Content: r.FormValue("content"),
	}
	article, err := s.svc.Create(r.Context(), in, image, authorID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, article)
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, service.ErrUploadRejected):
		s.logger.Info("Upload rejected", zap.Error(err))
		writeError(w, http.StatusBadRequest, "upload error")
	case errors.Is(err, service.ErrUploadFailed):
		s.logger.Error("Upload failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "upload failed")
	default:
		s.logger.Error("Failed to create article", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create article")
	}
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "article not found")
		return
	}

	var in service.UpdateInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	article, err := s.svc.Update(r.Context(), id, in)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, article)
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "article not found")
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, validationMessage(err))
	default:
		s.logger.Error("Failed to update article", zap.String("article_id", id.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update article")
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "article not found")
		return
	}

	err := s.svc.Delete(r.Context(), id)
	if errors.Is(err, service.ErrNotFound) {
		writeError(w, http.StatusNotFound, "article not found")
		return
	} else if err != nil {
		s.logger.Error("Failed to delete article", zap.String("article_id", id.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete article")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "article deleted"})
}

// articleID parses the {id} path variable. A malformed id cannot name a
// stored article, so callers answer 404.
func articleID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	return id, err == nil
}

func validationMessage(err error) string {
	return strings.TrimPrefix(err.Error(), service.ErrInvalidInput.Error()+": ")
}
