package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"
	"github.com/valyala/fasthttp"
)

type staffingRequestReq struct {
	Position          string `json:"position" example:"Cariste"`                // Poste à pourvoir
	ReplacedMatricule string `json:"replaced_matricule" example:"M-004512"`    // Salarié absent
	WindowStart       string `json:"window_start" example:"2026-09-01"`        // Début d'absence (YYYY-MM-DD)
	WindowEnd         string `json:"window_end" example:"2026-09-30"`          // Fin d'absence (YYYY-MM-DD)
	Urgency           string `json:"urgency,omitempty" example:"HIGH"`         // NORMAL par défaut
	RequiredSkills    string `json:"required_skills,omitempty" example:"caces-3 securite"`
}

// @Summary Créer une demande de remplacement
// @Tags    Requests
// @Accept  json
// @Produce json
// @Param   request body staffingRequestReq true "Demande"
// @Success 200 {object} dto.StaffingRequest
// @Failure 400 {object} errorResponse "VALIDATION ERROR — champs requis ou fenêtre invalide"
// @Failure 500 {object} errorResponse "Erreur interne"
// @Router  /requests [post]
func (s *Service) createRequest(ctx *fasthttp.RequestCtx) {
	var req staffingRequestReq

	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, fmt.Errorf("json.Unmarshal: %w", err))
		return
	}

	if msg := validateStaffingRequest(req); msg != "" {
		writeError(ctx, fasthttp.StatusBadRequest, errors.New(msg))
		return
	}

	urgency := dto.Urgency(req.Urgency)
	if req.Urgency == "" {
		urgency = dto.UrgencyNormal
	}

	created, err := s.workflow.CreateRequest(ctx, dto.StaffingRequest{
		Position:          req.Position,
		ReplacedMatricule: req.ReplacedMatricule,
		Window: dto.Period{
			Start: parseDate(req.WindowStart),
			End:   parseDate(req.WindowEnd),
		},
		Urgency:        urgency,
		RequiredSkills: req.RequiredSkills,
	})
	if err != nil {
		writeDomainError(ctx, err)
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, created)
}

// @Summary Consulter une demande
// @Tags    Requests
// @Produce json
// @Param   id path int true "Identifiant de la demande"
// @Success 200 {object} dto.StaffingRequest
// @Failure 404 {object} errorResponse "demande introuvable"
// @Failure 500 {object} errorResponse "Erreur interne"
// @Router  /requests/{id} [get]
func (s *Service) getRequest(ctx *fasthttp.RequestCtx) {
	id, errResp := pathInt64(ctx, "id", ErrRequestIDRequired)
	if errResp {
		return
	}

	row, err := s.requests.Get(ctx, id)
	if err != nil {
		if errors.Is(err, dto.ErrNotFound) {
			writeError(ctx, fasthttp.StatusNotFound, ErrRequestNotFound)
			return
		}

		writeError(ctx, fasthttp.StatusInternalServerError, fmt.Errorf("requestRepository.Get: %w", err))
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, row)
}

// @Summary Étapes de validation d'une demande
// @Tags    Requests
// @Produce json
// @Param   id path int true "Identifiant de la demande"
// @Success 200 {array} dto.ValidationStep
// @Failure 500 {object} errorResponse "Erreur interne"
// @Router  /requests/{id}/steps [get]
func (s *Service) listSteps(ctx *fasthttp.RequestCtx) {
	id, errResp := pathInt64(ctx, "id", ErrRequestIDRequired)
	if errResp {
		return
	}

	rows, err := s.requests.ListSteps(ctx, id)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, fmt.Errorf("requestRepository.ListSteps: %w", err))
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, rows)
}

// pathInt64 parses a positive integer path segment, writing the 400
// itself so callers can bail out on the boolean.
func pathInt64(ctx *fasthttp.RequestCtx, name string, requiredErr error) (int64, bool) {
	raw, _ := ctx.UserValue(name).(string)

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(ctx, fasthttp.StatusBadRequest, requiredErr)
		return 0, true
	}

	return id, false
}
