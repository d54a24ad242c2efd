package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"
	"github.com/valyala/fasthttp"
)

// @Summary Liste des salariés du référentiel local
// @Tags    Employees
// @Produce json
// @Param   department query string false "Filtrer par service"
// @Param   active query bool false "Actifs uniquement"
// @Success 200 {array} dto.EmployeeRecord
// @Failure 500 {object} errorResponse "Erreur interne"
// @Router  /employees [get]
func (s *Service) listEmployees(ctx *fasthttp.RequestCtx) {
	department := string(ctx.QueryArgs().Peek("department"))
	activeOnly := string(ctx.QueryArgs().Peek("active")) == "true"

	rows, err := s.employees.List(ctx, department, activeOnly)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, fmt.Errorf("employeeRepository.List: %w", err))
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, rows)
}

// @Summary Fiche salarié par matricule
// @Tags    Employees
// @Produce json
// @Param   matricule path string true "Matricule"
// @Success 200 {object} dto.EmployeeRecord
// @Failure 404 {object} errorResponse "salarié introuvable"
// @Failure 500 {object} errorResponse "Erreur interne"
// @Router  /employees/{matricule} [get]
func (s *Service) getEmployee(ctx *fasthttp.RequestCtx) {
	matricule := ctx.UserValue("matricule").(string)
	if strings.TrimSpace(matricule) == "" {
		writeError(ctx, fasthttp.StatusBadRequest, ErrMatriculeRequired)
		return
	}

	row, err := s.employees.Get(ctx, matricule)
	if err != nil {
		if errors.Is(err, dto.ErrNotFound) {
			writeError(ctx, fasthttp.StatusNotFound, ErrEmployeeNotFound)
			return
		}

		writeError(ctx, fasthttp.StatusInternalServerError, fmt.Errorf("employeeRepository.Get: %w", err))
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, row)
}

// @Summary Créer un salarié local (hors synchronisation)
// @Tags    Employees
// @Accept  json
// @Produce json
// @Param   request body dto.EmployeeRecord true "Fiche salarié"
// @Success 200 {object} okResponse
// @Failure 400 {object} errorResponse "VALIDATION ERROR — matricule ou full_name manquant"
// @Failure 409 {object} errorResponse "matricule déjà présent"
// @Failure 500 {object} errorResponse "Erreur interne"
// @Router  /employees [post]
func (s *Service) createEmployee(ctx *fasthttp.RequestCtx) {
	var rec dto.EmployeeRecord

	if err := json.Unmarshal(ctx.PostBody(), &rec); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, fmt.Errorf("json.Unmarshal: %w", err))
		return
	}

	if msg := validateEmployee(rec); msg != "" {
		writeError(ctx, fasthttp.StatusBadRequest, errors.New(msg))
		return
	}

	if err := s.employees.Create(ctx, rec); err != nil {
		if errors.Is(err, dto.ErrAlreadyExists) {
			writeError(ctx, fasthttp.StatusConflict, ErrEmployeeAlreadyExists)
			return
		}

		writeError(ctx, fasthttp.StatusInternalServerError, fmt.Errorf("employeeRepository.Create: %w", err))
		return
	}

	ok(ctx, "Salarié créé")
}

// @Summary Mettre à jour un salarié (édition RH manuelle)
// @Description Le matricule du chemin fait foi : il est immuable et écrase celui du corps.
// @Tags    Employees
// @Accept  json
// @Produce json
// @Param   matricule path string true "Matricule"
// @Param   request body dto.EmployeeRecord true "Fiche salarié"
// @Success 200 {object} okResponse
// @Failure 400 {object} errorResponse "VALIDATION ERROR — full_name manquant, seniority_months négatif"
// @Failure 404 {object} errorResponse "salarié introuvable"
// @Failure 500 {object} errorResponse "Erreur interne"
// @Router  /employees/{matricule} [put]
func (s *Service) updateEmployee(ctx *fasthttp.RequestCtx) {
	matricule := ctx.UserValue("matricule").(string)
	if strings.TrimSpace(matricule) == "" {
		writeError(ctx, fasthttp.StatusBadRequest, ErrMatriculeRequired)
		return
	}

	var rec dto.EmployeeRecord

	if err := json.Unmarshal(ctx.PostBody(), &rec); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, fmt.Errorf("json.Unmarshal: %w", err))
		return
	}

	rec.Matricule = dto.NormalizeMatricule(matricule)

	if msg := validateEmployee(rec); msg != "" {
		writeError(ctx, fasthttp.StatusBadRequest, errors.New(msg))
		return
	}

	if err := s.employees.Update(ctx, rec); err != nil {
		if errors.Is(err, dto.ErrNotFound) {
			writeError(ctx, fasthttp.StatusNotFound, ErrEmployeeNotFound)
			return
		}

		writeError(ctx, fasthttp.StatusInternalServerError, fmt.Errorf("employeeRepository.Update: %w", err))
		return
	}

	ok(ctx, "Salarié mis à jour")
}

// @Summary Désactiver un salarié (pas de suppression physique)
// @Tags    Employees
// @Produce json
// @Param   matricule path string true "Matricule"
// @Success 200 {object} okResponse
// @Failure 404 {object} errorResponse "salarié introuvable"
// @Failure 500 {object} errorResponse "Erreur interne"
// @Router  /employees/{matricule} [delete]
func (s *Service) deactivateEmployee(ctx *fasthttp.RequestCtx) {
	matricule := ctx.UserValue("matricule").(string)
	if strings.TrimSpace(matricule) == "" {
		writeError(ctx, fasthttp.StatusBadRequest, ErrMatriculeRequired)
		return
	}

	if err := s.employees.Deactivate(ctx, matricule); err != nil {
		if errors.Is(err, dto.ErrNotFound) {
			writeError(ctx, fasthttp.StatusNotFound, ErrEmployeeNotFound)
			return
		}

		writeError(ctx, fasthttp.StatusInternalServerError, fmt.Errorf("employeeRepository.Deactivate: %w", err))
		return
	}

	ok(ctx, "Salarié désactivé")
}
