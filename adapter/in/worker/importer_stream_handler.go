package worker

import (
	"context"
	"fmt"

	"importer_server/pkg/logger"

	"github.com/goccy/go-json"
)

type submitter interface {
	Submit(msg *Message) error
}

// StreamHandler adapts stream messages to pool jobs. A message the pool does
// not accept is reported as an error so it stays pending on the stream.
type StreamHandler struct {
	pool submitter
}

func NewStreamHandler(pool *Pool) *StreamHandler {
	return &StreamHandler{pool: pool}
}

func (h *StreamHandler) Handle(_ context.Context, stream string, data []byte) error {
	jobType, ok := StreamJobType(stream)
	if !ok {
		return fmt.Errorf("no job type for stream %s", stream)
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to parse payload from %s: %w", stream, err)
	}

	msg := NewMessage(jobType, payload)
	if err := h.pool.Submit(msg); err != nil {
		logger.Error("[StreamHandler] failed to submit %s: %v", jobType, err)
		return err
	}
	logger.Debug("[StreamHandler] job %s submitted: %s", msg.ID, jobType)
	return nil
}
