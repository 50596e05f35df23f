package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"crystaltides-web/constants"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ObjectStore persists uploaded files and returns their public URL.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

var uploadFolders = []string{"news", "wiki", "tickets"}

type UploadService struct {
	Store ObjectStore
	log   zerolog.Logger
}

func NewUploadService(store ObjectStore, log zerolog.Logger) *UploadService {
	return &UploadService{Store: store, log: log.With().Str("component", "uploads").Logger()}
}

// UploadImage handles POST /api/uploads.
func (s *UploadService) UploadImage(c *fiber.Ctx) error {
	if s.Store == nil {
		return respondError(c, s.log, fmt.Errorf("%w: object storage", ErrUnavailable))
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return respondError(c, s.log, invalid("file is required"))
	}
	if fileHeader.Size > constants.MaxUploadSize {
		return respondError(c, s.log, invalid("file exceeds %d MB", constants.MaxUploadSize/(1024*1024)))
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return respondError(c, s.log, invalid("only images can be uploaded"))
	}

	folder := c.FormValue("folder", "news")
	if !contains(uploadFolders, folder) {
		return respondError(c, s.log, invalid("invalid folder %q", folder))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return respondError(c, s.log, err)
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	key := fmt.Sprintf("%s/%s%s", folder, uuid.NewString(), ext)
	url, err := s.Store.Upload(c.UserContext(), key, contentType, file)
	if err != nil {
		return respondError(c, s.log, err)
	}

	s.log.Info().Str("key", key).Msg("📤 image uploaded")
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"url": url})
}
