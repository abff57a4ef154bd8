package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var allowedMediaTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// handleUpload stores a rider photo (proof of delivery, avatar). With ?avatar=1 the
// URL also becomes the rider's avatar.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if s.deps.Uploader == nil {
		s.writeError(w, http.StatusServiceUnavailable, "media storage is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "file is too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	contentType := http.DetectContentType(data)
	ext, ok := allowedMediaTypes[contentType]
	if !ok {
		s.writeError(w, http.StatusUnsupportedMediaType, fmt.Sprintf("unsupported media type %s", contentType))
		return
	}
	if orig := strings.ToLower(filepath.Ext(header.Filename)); orig == ".jpeg" || orig == ext {
		ext = orig
	}
	name := fmt.Sprintf("riders/%s/%s%s", id.RiderID, uuid.NewString(), ext)

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	url, err := s.deps.Uploader.Upload(ctx, data, name, contentType)
	if err != nil {
		s.logger.Errorf("shipment: upload media for %s failed: %v", id.RiderID, err)
		s.writeError(w, http.StatusBadGateway, "failed to upload file")
		return
	}
	if r.URL.Query().Get("avatar") == "1" {
		if err := s.deps.Riders.UpdateAvatar(ctx, id.RiderID, url); err != nil {
			s.logger.Errorf("shipment: update avatar for %s failed: %v", id.RiderID, err)
		}
	}
	s.writeData(w, http.StatusCreated, map[string]string{"url": url})
}
