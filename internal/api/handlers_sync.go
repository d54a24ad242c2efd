package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

type syncRunReq struct {
	dto.SyncOptions
	Async bool `json:"async"`
}

type syncStartedResponse struct {
	RunID  string `json:"run_id" example:"6b6f9c38-3e2a-4b3d-9a9a-9f1c0f8b2a10"`
	Status string `json:"status" example:"RUNNING"`
}

// @Summary Lancer une synchronisation Kelio
// @Description Exécution synchrone par défaut (réponse avec le résultat complet) ; async=true détache le run et renvoie son identifiant.
// @Tags    Sync
// @Accept  json
// @Produce json
// @Param   request body syncRunReq true "Options du run"
// @Success 200 {object} dto.SyncRunResult "run synchrone terminé"
// @Success 202 {object} syncStartedResponse "run asynchrone démarré"
// @Failure 400 {object} errorResponse "mode ou stratégie de retry inconnus, batch_size hors bornes"
// @Failure 409 {object} errorResponse "un run est déjà en cours"
// @Failure 500 {object} errorResponse "Erreur interne"
// @Router  /sync/run [post]
func (s *Service) startSync(ctx *fasthttp.RequestCtx) {
	var req syncRunReq

	if len(ctx.PostBody()) > 0 {
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			writeError(ctx, fasthttp.StatusBadRequest, fmt.Errorf("json.Unmarshal: %w", err))
			return
		}
	}

	if msg := validateSyncOptions(req.SyncOptions); msg != "" {
		writeError(ctx, fasthttp.StatusBadRequest, errors.New(msg))
		return
	}

	if req.Async {
		runID, err := s.sync.Start(req.SyncOptions)
		if err != nil {
			writeDomainError(ctx, err)
			return
		}

		writeJSON(ctx, fasthttp.StatusAccepted, syncStartedResponse{
			RunID:  runID.String(),
			Status: string(dto.RunRunning),
		})
		return
	}

	result, err := s.sync.Run(ctx, req.SyncOptions)
	if err != nil {
		writeDomainError(ctx, err)
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, result)
}

// @Summary État d'un run de synchronisation
// @Tags    Sync
// @Produce json
// @Param   run_id path string true "Identifiant du run"
// @Success 200 {object} dto.SyncRunResult
// @Failure 404 {object} errorResponse "run inconnu"
// @Failure 500 {object} errorResponse "Erreur interne"
// @Router  /sync/{run_id}/status [get]
func (s *Service) syncStatus(ctx *fasthttp.RequestCtx) {
	runID, errResp := pathRunID(ctx)
	if errResp {
		return
	}

	result, err := s.sync.Status(runID)
	if err != nil {
		if errors.Is(err, dto.ErrNotFound) {
			writeError(ctx, fasthttp.StatusNotFound, ErrRunNotFound)
			return
		}

		writeError(ctx, fasthttp.StatusInternalServerError, fmt.Errorf("sync.Status: %w", err))
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, result)
}

// @Summary Interrompre un run en cours
// @Tags    Sync
// @Produce json
// @Param   run_id path string true "Identifiant du run"
// @Success 200 {object} okResponse
// @Failure 404 {object} errorResponse "run inconnu"
// @Failure 500 {object} errorResponse "Erreur interne"
// @Router  /sync/{run_id}/cancel [post]
func (s *Service) cancelSync(ctx *fasthttp.RequestCtx) {
	runID, errResp := pathRunID(ctx)
	if errResp {
		return
	}

	if err := s.sync.Cancel(runID); err != nil {
		if errors.Is(err, dto.ErrNotFound) {
			writeError(ctx, fasthttp.StatusNotFound, ErrRunNotFound)
			return
		}

		writeError(ctx, fasthttp.StatusInternalServerError, fmt.Errorf("sync.Cancel: %w", err))
		return
	}

	ok(ctx, "Run interrompu, les batchs en vol se terminent")
}

func pathRunID(ctx *fasthttp.RequestCtx) (uuid.UUID, bool) {
	raw, _ := ctx.UserValue("run_id").(string)

	runID, err := uuid.Parse(raw)
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, ErrRunIDRequired)
		return uuid.Nil, true
	}

	return runID, false
}
