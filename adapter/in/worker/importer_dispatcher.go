package worker

import (
	"context"

	"importer_server/pkg/logger"
)

type Handler struct {
	importProcessor *ImportProcessor
}

func NewHandler(importProcessor *ImportProcessor) *Handler {
	return &Handler{importProcessor: importProcessor}
}

func (h *Handler) Process(ctx context.Context, msg *Message) error {
	logger.Debug("Processing message: %s", msg.Type)

	switch msg.Type {
	case JobContactImport:
		return h.importProcessor.ProcessImport(ctx, msg)
	default:
		logger.Warn("Unknown job type: %s", msg.Type)
		return nil
	}
}
