package usecase

import (
	"context"
	"errors"

	"OmniSpectrum/internal/domain/models"
	"OmniSpectrum/pkg/logger"
)

// RefreshTriggerHandler starts a refresh for every message on its topic.
type RefreshTriggerHandler struct {
	topic     string
	refresher *Refresher
	log       *logger.Logger
}

func NewRefreshTriggerHandler(topic string, refresher *Refresher, log *logger.Logger) *RefreshTriggerHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &RefreshTriggerHandler{topic: topic, refresher: refresher, log: log}
}

func (h *RefreshTriggerHandler) Topic() string { return h.topic }

// Handle ignores the payload. Busy and no-data outcomes are logged rather
// than returned so the message is committed instead of retried.
func (h *RefreshTriggerHandler) Handle(ctx context.Context, _ []byte) error {
	res, err := h.refresher.Refresh(ctx)
	switch {
	case errors.Is(err, models.ErrRefreshBusy):
		h.log.Info("refresh trigger skipped, refresh in progress")
		return nil
	case errors.Is(err, models.ErrNoDataAvailable):
		h.log.Warn("refresh trigger produced no data", logger.Error(err))
		return nil
	case err != nil:
		return err
	}
	h.log.Info("refresh triggered from topic", logger.String("topic", h.topic), logger.Bool("degraded", res.Degraded))
	return nil
}
