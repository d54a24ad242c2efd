package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"
	"github.com/valyala/fasthttp"
)

type validateReq struct {
	Level    int    `json:"level" example:"1"`                 // Niveau décidé
	Decision string `json:"decision" example:"APPROVED"`       // APPROVED ou REFUSED
	Comment  string `json:"comment" example:"Validation apres verification du planning equipe"`
}

type escalateReq struct {
	Level       int    `json:"level" example:"1"`              // Niveau d'origine
	TargetLevel int    `json:"target_level,omitempty" example:"3"` // Niveau cible, level+1 par défaut
	Motif       string `json:"motif" example:"Decision hors de mon perimetre budgetaire"`
}

type cancelReq struct {
	Motif string `json:"motif" example:"Poste finalement gele"`
}

// @Summary Valider ou refuser un niveau du workflow
// @Tags    Workflow
// @Accept  json
// @Produce json
// @Param   request_id path int true "Identifiant de la demande"
// @Param   request body validateReq true "Décision du niveau"
// @Success 200 {object} dto.StaffingRequest
// @Failure 400 {object} errorResponse "commentaire trop court ou décision inconnue"
// @Failure 404 {object} errorResponse "demande introuvable"
// @Failure 409 {object} errorResponse "niveau hors tour, étape déjà décidée ou conflit concurrent"
// @Failure 500 {object} errorResponse "Erreur interne"
// @Router  /workflow/{request_id}/validate [post]
func (s *Service) validateRequest(ctx *fasthttp.RequestCtx) {
	requestID, errResp := pathInt64(ctx, "request_id", ErrRequestIDRequired)
	if errResp {
		return
	}

	var req validateReq

	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, fmt.Errorf("json.Unmarshal: %w", err))
		return
	}

	decision := dto.StepDecision(req.Decision)
	if decision != dto.StepApproved && decision != dto.StepRefused {
		writeError(ctx, fasthttp.StatusBadRequest,
			fmt.Errorf("invalid enum value: decision %s not in {APPROVED, REFUSED}", req.Decision))
		return
	}

	row, err := s.workflow.Decide(ctx, requestID, req.Level, decision, req.Comment)
	if err != nil {
		if errors.Is(err, dto.ErrNotFound) {
			writeError(ctx, fasthttp.StatusNotFound, ErrRequestNotFound)
			return
		}

		writeDomainError(ctx, err)
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, row)
}

// @Summary Escalader une étape vers un niveau supérieur
// @Tags    Workflow
// @Accept  json
// @Produce json
// @Param   request_id path int true "Identifiant de la demande"
// @Param   request body escalateReq true "Escalade"
// @Success 200 {object} dto.StaffingRequest
// @Failure 400 {object} errorResponse "motif manquant ou niveau cible invalide"
// @Failure 404 {object} errorResponse "demande introuvable"
// @Failure 409 {object} errorResponse "étape non décidable"
// @Failure 500 {object} errorResponse "Erreur interne"
// @Router  /workflow/{request_id}/escalate [post]
func (s *Service) escalateRequest(ctx *fasthttp.RequestCtx) {
	requestID, errResp := pathInt64(ctx, "request_id", ErrRequestIDRequired)
	if errResp {
		return
	}

	var req escalateReq

	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, fmt.Errorf("json.Unmarshal: %w", err))
		return
	}

	row, err := s.workflow.Escalate(ctx, requestID, req.Level, req.TargetLevel, req.Motif)
	if err != nil {
		if errors.Is(err, dto.ErrNotFound) {
			writeError(ctx, fasthttp.StatusNotFound, ErrRequestNotFound)
			return
		}

		writeDomainError(ctx, err)
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, row)
}

// @Summary Annuler une demande non terminale
// @Tags    Workflow
// @Accept  json
// @Produce json
// @Param   request_id path int true "Identifiant de la demande"
// @Param   request body cancelReq true "Motif d'annulation"
// @Success 200 {object} dto.StaffingRequest
// @Failure 404 {object} errorResponse "demande introuvable"
// @Failure 409 {object} errorResponse "demande déjà dans un état terminal"
// @Failure 500 {object} errorResponse "Erreur interne"
// @Router  /workflow/{request_id}/cancel [post]
func (s *Service) cancelRequest(ctx *fasthttp.RequestCtx) {
	requestID, errResp := pathInt64(ctx, "request_id", ErrRequestIDRequired)
	if errResp {
		return
	}

	var req cancelReq

	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, fmt.Errorf("json.Unmarshal: %w", err))
		return
	}

	row, err := s.workflow.Cancel(ctx, requestID, req.Motif)
	if err != nil {
		if errors.Is(err, dto.ErrNotFound) {
			writeError(ctx, fasthttp.StatusNotFound, ErrRequestNotFound)
			return
		}

		writeDomainError(ctx, err)
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, row)
}
