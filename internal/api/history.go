package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/tilegrid/internal/history"
)

// HistoryHandler serves the navigation log.
type HistoryHandler struct {
	store *history.Store
}

// NewHistoryHandler creates a handler. store may be nil when the
// database could not be opened.
func NewHistoryHandler(store *history.Store) *HistoryHandler {
	return &HistoryHandler{store: store}
}

func (h *HistoryHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/history", h.ListHistory, huma.OperationTags("history"))
}

type HistoryInput struct {
	Limit int `query:"limit" minimum:"1" maximum:"1000" default:"20" doc:"Maximum entries to return"`
}

type HistoryOutput struct {
	Body struct {
		Navigations []history.Navigation `json:"navigations" doc:"Most recent first"`
	}
}

// ListHistory returns recent quadkey navigations.
func (h *HistoryHandler) ListHistory(ctx context.Context, input *HistoryInput) (*HistoryOutput, error) {
	if h.store == nil {
		return nil, huma.Error503ServiceUnavailable("History not available")
	}

	navs, err := h.store.Recent(ctx, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list history", err)
	}

	out := &HistoryOutput{}
	out.Body.Navigations = navs
	return out, nil
}
