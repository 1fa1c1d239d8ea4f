package handlers

import (
	"context"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/config"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/models"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/storage"
)

// ImageEnqueuer queues a post-upload processing pass for an object key.
type ImageEnqueuer func(ctx context.Context, s3Key string) error

// UploadHandler handles listing image uploads.
type UploadHandler struct {
	cfg     *config.Config
	storage storage.IStorage
	enqueue ImageEnqueuer
}

// NewUploadHandler creates a new UploadHandler. enqueue may be nil when no
// task queue is available; uploads then skip the downscale pass.
func NewUploadHandler(cfg *config.Config, store storage.IStorage, enqueue ImageEnqueuer) *UploadHandler {
	return &UploadHandler{cfg: cfg, storage: store, enqueue: enqueue}
}

func isAllowedImageType(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png", "image/webp":
		return true
	}
	return false
}

func (h *UploadHandler) uploadOne(c *gin.Context, file *multipart.FileHeader) (string, error) {
	maxBytes := int64(h.cfg.ImageMaxSizeMB) * 1024 * 1024
	if file.Size > maxBytes {
		return "", &models.ValidationError{
			Field:  "images",
			Reason: fmt.Sprintf("file %s exceeds the %dMB limit", file.Filename, h.cfg.ImageMaxSizeMB),
		}
	}
	contentType := file.Header.Get("Content-Type")
	if !isAllowedImageType(contentType) {
		return "", &models.ValidationError{
			Field:  "images",
			Reason: fmt.Sprintf("file %s has unsupported type %q", file.Filename, contentType),
		}
	}

	src, err := file.Open()
	if err != nil {
		return "", &models.DependencyError{Op: "reading uploaded file", Err: err}
	}
	defer src.Close()

	url, key, err := h.storage.UploadListingImage(c.Request.Context(), file.Filename, contentType, src)
	if err != nil {
		return "", &models.DependencyError{Op: "storing uploaded file", Err: err}
	}

	if h.enqueue != nil {
		if err := h.enqueue(c.Request.Context(), key); err != nil {
			log.Printf("Failed to queue image processing for %s: %v", key, err)
		}
	}
	return url, nil
}

// UploadImages handles POST /api/upload. Accepts multipart form field
// "images" with 1 to MaxListingImages files and returns their public URLs.
func (h *UploadHandler) UploadImages(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, &models.ValidationError{Field: "body", Reason: "must be multipart form data"})
		return
	}
	files := form.File["images"]
	if len(files) == 0 {
		respondError(c, &models.ValidationError{Field: "images", Reason: "at least one image is required"})
		return
	}
	if len(files) > h.cfg.MaxListingImages {
		respondError(c, &models.ValidationError{
			Field:  "images",
			Reason: fmt.Sprintf("at most %d images are allowed", h.cfg.MaxListingImages),
		})
		return
	}

	urls := make([]string, 0, len(files))
	for _, file := range files {
		url, err := h.uploadOne(c, file)
		if err != nil {
			respondError(c, err)
			return
		}
		urls = append(urls, url)
	}

	respond(c, http.StatusCreated, fmt.Sprintf("Uploaded %d image(s)", len(urls)), gin.H{"urls": urls})
	log.Printf("Uploaded %d image(s): %s", len(urls), strings.Join(urls, ", "))
}
