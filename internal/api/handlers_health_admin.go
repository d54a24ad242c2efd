package api

import (
	"fmt"

	"github.com/valyala/fasthttp"
)

// @Summary Vérification de vie du service
// @Tags    Admin
// @Success 200 {object} okResponse
// @Router  /health [get]
func (s *Service) healthHandler(ctx *fasthttp.RequestCtx) {
	ok(ctx, "OK")
}

// @Summary Messages du flux Kelio partis en DLQ
// @Tags    Admin
// @Produce json
// @Success 200 {array} dto.FeedDLQ
// @Failure 500 {object} errorResponse
// @Router  /dlq [get]
func (s *Service) listDLQ(ctx *fasthttp.RequestCtx) {
	rows, err := s.events.ListDLQ(ctx)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, fmt.Errorf("events.ListDLQ: %w", err))
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, rows)
}
