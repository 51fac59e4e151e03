package handler

import (
	"log/slog"

	"github.com/inkpost/inkpost/internal/service"
)

// ContentHandler handles user and post endpoints.
type ContentHandler struct {
	service *service.ContentService
	logger  *slog.Logger
}

// NewContentHandler creates a new ContentHandler.
func NewContentHandler(svc *service.ContentService, logger *slog.Logger) *ContentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentHandler{
		service: svc,
		logger:  logger,
	}
}
