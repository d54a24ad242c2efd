package api

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/valyala/fasthttp"
)

type scoreReq struct {
	Matricule string `json:"matricule" example:"M-004512"` // Candidat à évaluer
	RequestID int64  `json:"request_id" example:"1042"`    // Demande de remplacement
}

// @Summary Scorer un candidat contre une demande
// @Tags    Scoring
// @Accept  json
// @Produce json
// @Param   request body scoreReq true "Identité candidat + demande"
// @Success 200 {object} dto.ScoreResult
// @Failure 400 {object} errorResponse "matricule ou request_id manquant"
// @Failure 404 {object} errorResponse "demande introuvable"
// @Failure 500 {object} errorResponse "Erreur interne"
// @Router  /score [post]
func (s *Service) scoreCandidate(ctx *fasthttp.RequestCtx) {
	var req scoreReq

	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, fmt.Errorf("json.Unmarshal: %w", err))
		return
	}

	if strings.TrimSpace(req.Matricule) == "" {
		writeError(ctx, fasthttp.StatusBadRequest, ErrMatriculeRequired)
		return
	}

	if req.RequestID <= 0 {
		writeError(ctx, fasthttp.StatusBadRequest, ErrRequestIDRequired)
		return
	}

	result, err := s.scorer.ScoreCandidate(ctx, req.Matricule, req.RequestID)
	if err != nil {
		writeDomainError(ctx, err)
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, result)
}
