package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/reeltab/reeltab/internal/media"
)

// jsonError writes a JSON error body with CORS headers set. Run failures
// must always surface as a user-visible message, never a silent empty file.
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleExtract accepts a receipt upload (video, PDF or photo), runs one
// extraction pipeline and replies with the CSV table, or JSON when
// ?format=json is given.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	// 100MB cap: receipt videos from phones are much larger than photos
	maxFormSize := int64(100 << 20)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		msg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			msg = "File is too large. Maximum size is 100MB."
		}
		jsonError(w, msg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		jsonError(w, "No file was selected. Please choose a file to upload.", http.StatusBadRequest)
		return
	}
	defer f.Close()

	if header.Size > maxFormSize {
		jsonError(w, "File is too large. Maximum size is 100MB.", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = ContentTypeFor(header.Filename)
	}

	result, err := s.service.ProcessUpload(r.Context(), header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error processing upload", "filename", header.Filename, "error", err)
		var decodeErr *media.DecodeError
		switch {
		case errors.As(err, &decodeErr):
			jsonError(w, fmt.Sprintf("Could not read the uploaded file: %v", decodeErr.Err), http.StatusBadRequest)
		case errors.Is(err, ErrNoItems):
			jsonError(w, "No line items were detected on the receipt.", http.StatusUnprocessableEntity)
		default:
			jsonError(w, "Extraction failed. Please try again.", http.StatusInternalServerError)
		}
		return
	}

	if r.URL.Query().Get("format") == "json" {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			slog.Error("Error encoding response", "error", err)
		}
		return
	}

	csvBytes, err := result.CSV()
	if err != nil {
		slog.Error("Error serializing csv", "error", err)
		jsonError(w, "Error preparing CSV output.", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="receipt_items.csv"`)
	w.Header().Set("X-Extraction-Warnings", fmt.Sprintf("%d", len(result.Warnings)))
	w.Write(csvBytes)
}

// ContentTypeFor guesses a MIME type from a filename extension, covering
// the formats the pipeline accepts.
func ContentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".avi":
		return "video/x-msvideo"
	case ".mkv":
		return "video/x-matroska"
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}
