package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"downtime-report-backend/config"
	"downtime-report-backend/internal/ingest"
	"downtime-report-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	cfg     *config.Config
	store   store.Store
	ingest  *ingest.Service
	webpush *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(cfg *config.Config, s store.Store, svc *ingest.Service, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		cfg:     cfg,
		store:   s,
		ingest:  svc,
		webpush: webpushOptions,
	}
}
