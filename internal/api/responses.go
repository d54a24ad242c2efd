package api

import (
	"encoding/json"
	"errors"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"

	"github.com/valyala/fasthttp"
)

var (
	ErrRequestIDRequired = errors.New("required field 'request_id'")
	ErrRequestNotFound   = errors.New("staffing request not found")

	ErrProposalIDRequired = errors.New("required field 'proposal_id'")
	ErrProposalNotFound   = errors.New("proposal not found")

	ErrMatriculeRequired     = errors.New("required field 'matricule'")
	ErrEmployeeNotFound      = errors.New("employee not found")
	ErrEmployeeAlreadyExists = errors.New("employee already exists")

	ErrRunIDRequired = errors.New("required field 'run_id'")
	ErrRunNotFound   = errors.New("sync run not found")
)

type okResponse struct {
	Status string `json:"status" example:"ok"`
	Msg    string `json:"msg" example:"Fait"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(ctx *fasthttp.RequestCtx, statusCode int, body any) {
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.SetStatusCode(statusCode)

	_ = json.NewEncoder(ctx).Encode(body)
}

func ok(ctx *fasthttp.RequestCtx, msg string) {
	writeJSON(ctx, fasthttp.StatusOK, okResponse{Status: "ok", Msg: msg})
}

func writeError(ctx *fasthttp.RequestCtx, httpStatus int, err error) {
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.SetStatusCode(httpStatus)
	_ = json.NewEncoder(ctx).Encode(errorResponse{Code: fasthttp.StatusMessage(httpStatus), Message: err.Error()})
}

// writeDomainError maps domain sentinels onto HTTP statuses so every
// handler reports conflicts and bad input the same way.
func writeDomainError(ctx *fasthttp.RequestCtx, err error) {
	var (
		verr *dto.ValidationError
		serr *dto.ExternalSystemError
	)

	switch {
	case errors.As(err, &verr), errors.Is(err, dto.ErrInvalidInput):
		writeError(ctx, fasthttp.StatusBadRequest, err)
	case errors.Is(err, dto.ErrNotFound):
		writeError(ctx, fasthttp.StatusNotFound, err)
	case errors.Is(err, dto.ErrAlreadyExists),
		errors.Is(err, dto.ErrDuplicateCandidate),
		errors.Is(err, dto.ErrConflict),
		errors.Is(err, dto.ErrInvalidTransition),
		errors.Is(err, dto.ErrSyncRunning):
		writeError(ctx, fasthttp.StatusConflict, err)
	case errors.As(err, &serr):
		writeError(ctx, fasthttp.StatusServiceUnavailable, err)
	default:
		writeError(ctx, fasthttp.StatusInternalServerError, err)
	}
}
