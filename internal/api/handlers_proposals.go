package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"
	"github.com/valyala/fasthttp"
)

type proposalReq struct {
	RequestID     int64  `json:"request_id" example:"1042"`              // Demande cible
	Matricule     string `json:"matricule" example:"M-007730"`           // Candidat proposé
	Origin        string `json:"origin" example:"MANUAL"`                // AUTOMATIC, SPECIFIC ou MANUAL
	Justification string `json:"justification" example:"Connait deja le poste, remplacement identique en mars"`
}

type proposalDecisionReq struct {
	Decision      string `json:"decision" example:"RETAINED"`            // RETAINED ou REJECTED
	ReasonCode    string `json:"reason_code,omitempty" example:"INDISPONIBLE"` // Obligatoire pour REJECTED
	Justification string `json:"justification" example:"Retenu apres entretien telephonique du 12/09"`
}

// @Summary Proposer un candidat sur une demande
// @Tags    Proposals
// @Accept  json
// @Produce json
// @Param   request body proposalReq true "Proposition"
// @Success 200 {object} dto.Proposal
// @Failure 400 {object} errorResponse "VALIDATION ERROR — origin invalide ou justification trop courte"
// @Failure 409 {object} errorResponse "candidat déjà proposé sur cette demande"
// @Failure 500 {object} errorResponse "Erreur interne"
// @Router  /proposals [post]
func (s *Service) addProposal(ctx *fasthttp.RequestCtx) {
	var req proposalReq

	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, fmt.Errorf("json.Unmarshal: %w", err))
		return
	}

	if msg := validateProposal(req); msg != "" {
		writeError(ctx, fasthttp.StatusBadRequest, errors.New(msg))
		return
	}

	created, err := s.proposals.Add(ctx, req.RequestID, req.Matricule, dto.ProposalOrigin(req.Origin), req.Justification)
	if err != nil {
		writeDomainError(ctx, err)
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, created)
}

// @Summary Retenir ou rejeter une proposition
// @Tags    Proposals
// @Accept  json
// @Produce json
// @Param   id path int true "Identifiant de la proposition"
// @Param   request body proposalDecisionReq true "Décision"
// @Success 200 {object} dto.Proposal
// @Failure 400 {object} errorResponse "décision inconnue ou reason_code manquant"
// @Failure 404 {object} errorResponse "proposition introuvable"
// @Failure 409 {object} errorResponse "transition invalide ou conflit concurrent"
// @Failure 500 {object} errorResponse "Erreur interne"
// @Router  /proposals/{id}/decision [post]
func (s *Service) decideProposal(ctx *fasthttp.RequestCtx) {
	id, errResp := pathInt64(ctx, "id", ErrProposalIDRequired)
	if errResp {
		return
	}

	var req proposalDecisionReq

	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, fmt.Errorf("json.Unmarshal: %w", err))
		return
	}

	var (
		row *dto.Proposal
		err error
	)

	switch dto.ProposalDecision(req.Decision) {
	case dto.ProposalRetained:
		row, err = s.proposals.Retain(ctx, id, req.Justification)
	case dto.ProposalRejected:
		row, err = s.proposals.Reject(ctx, id, req.ReasonCode, req.Justification)
	default:
		writeError(ctx, fasthttp.StatusBadRequest,
			fmt.Errorf("invalid enum value: decision %s not in {RETAINED, REJECTED}", req.Decision))
		return
	}

	if err != nil {
		if errors.Is(err, dto.ErrNotFound) {
			writeError(ctx, fasthttp.StatusNotFound, ErrProposalNotFound)
			return
		}

		writeDomainError(ctx, err)
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, row)
}

// @Summary Propositions d'une demande, score décroissant
// @Tags    Proposals
// @Produce json
// @Param   id path int true "Identifiant de la demande"
// @Success 200 {array} dto.Proposal
// @Failure 500 {object} errorResponse "Erreur interne"
// @Router  /requests/{id}/proposals [get]
func (s *Service) listProposals(ctx *fasthttp.RequestCtx) {
	id, errResp := pathInt64(ctx, "id", ErrRequestIDRequired)
	if errResp {
		return
	}

	rows, err := s.proposals.ListByRequest(ctx, id)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, fmt.Errorf("proposalRegistry.ListByRequest: %w", err))
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, rows)
}
