package api

import (
	"errors"
	json "github.com/go-json-experiment/json"
	"io"
	"net/http"
	"path/filepath"

	domainerrors "github.com/cookbookapp/cookbook-server/internal/errors"
)

// uploadResponse is the wire shape of the upload endpoint. It predates the
// envelope and is kept as-is for upload clients.
type uploadResponse struct {
	OK       bool   `json:"ok"`
	Filename string `json:"filename,omitempty"`
	Path     string `json:"path,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleUpload ingests a multipart image upload into a category folder.
// The target is addressed by category_id or category_slug. Content is
// checked by magic bytes, never by the file extension.
// POST /api/v1/uploads
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, s.uploadMaxBytes)
	if err := r.ParseMultipartForm(s.uploadMaxBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			s.writeUpload(w, http.StatusRequestEntityTooLarge, uploadResponse{OK: false, Error: "file too large"})
			return
		}
		s.writeUpload(w, http.StatusBadRequest, uploadResponse{OK: false, Error: "invalid multipart request"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeUpload(w, http.StatusBadRequest, uploadResponse{OK: false, Error: "No file uploaded"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeUpload(w, http.StatusBadRequest, uploadResponse{OK: false, Error: "could not read uploaded file"})
		return
	}

	categoryID := r.FormValue("category_id")
	if categoryID == "" {
		categorySlug := r.FormValue("category_slug")
		if categorySlug == "" {
			s.writeUpload(w, http.StatusBadRequest, uploadResponse{OK: false, Error: "category_id or category_slug is required"})
			return
		}
		cat, err := s.categoryService.GetBySlug(ctx, categorySlug)
		if err != nil {
			s.writeUploadError(w, err)
			return
		}
		categoryID = cat.ID
	}

	filename := filepath.Base(header.Filename)
	result, err := s.categoryService.UploadImage(ctx, categoryID, filename, data)
	if err != nil {
		s.writeUploadError(w, err)
		return
	}

	s.writeUpload(w, http.StatusOK, uploadResponse{
		OK:       true,
		Filename: filename,
		Path:     result.Path,
		Size:     result.Report.WebPSize,
	})
}

// writeUploadError maps a domain error onto the upload wire shape.
func (s *Server) writeUploadError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		status = domainErr.HTTPStatus()
		message = domainErr.Message
	} else {
		s.logger.Error("Unhandled upload error", "error", err)
	}
	s.writeUpload(w, status, uploadResponse{OK: false, Error: message})
}

func (s *Server) writeUpload(w http.ResponseWriter, status int, resp uploadResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.MarshalWrite(w, resp); err != nil {
		s.logger.Error("Failed to encode upload response", "error", err)
	}
}
