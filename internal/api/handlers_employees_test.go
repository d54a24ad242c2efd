package api

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"
)

type fakeEmployeeRepo struct {
	records map[string]dto.EmployeeRecord
	updated []dto.EmployeeRecord
}

func (f *fakeEmployeeRepo) Get(_ context.Context, matricule string) (*dto.EmployeeRecord, error) {
	rec, ok := f.records[matricule]
	if !ok {
		return nil, dto.ErrNotFound
	}
	return &rec, nil
}

func (f *fakeEmployeeRepo) List(_ context.Context, _ string, _ bool) ([]dto.EmployeeRecord, error) {
	return nil, nil
}

func (f *fakeEmployeeRepo) Create(_ context.Context, rec dto.EmployeeRecord) error {
	if _, ok := f.records[rec.Matricule]; ok {
		return dto.ErrAlreadyExists
	}
	f.records[rec.Matricule] = rec
	return nil
}

func (f *fakeEmployeeRepo) Update(_ context.Context, rec dto.EmployeeRecord) error {
	if _, ok := f.records[rec.Matricule]; !ok {
		return dto.ErrNotFound
	}
	f.records[rec.Matricule] = rec
	f.updated = append(f.updated, rec)
	return nil
}

func (f *fakeEmployeeRepo) Deactivate(_ context.Context, matricule string) error {
	rec, ok := f.records[matricule]
	if !ok {
		return dto.ErrNotFound
	}
	rec.Active = false
	f.records[matricule] = rec
	return nil
}

func employeeRequestCtx(t *testing.T, matricule string, body any) *fasthttp.RequestCtx {
	t.Helper()

	ctx := &fasthttp.RequestCtx{}
	ctx.SetUserValue("matricule", matricule)
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		ctx.Request.SetBody(raw)
	}
	return ctx
}

func TestUpdateEmployee(t *testing.T) {
	repo := &fakeEmployeeRepo{records: map[string]dto.EmployeeRecord{
		"M-000100": {Matricule: "M-000100", FullName: "Anna Perrin", Position: "Cariste", Active: true},
	}}
	s := &Service{employees: repo}

	ctx := employeeRequestCtx(t, "m-000100", dto.EmployeeRecord{
		Matricule: "M-999999", // body matricule is ignored, the path is authoritative
		FullName:  "Anna Perrin-Meyer",
		Position:  "Magasinier",
		Active:    true,
	})
	s.updateEmployee(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	require.Len(t, repo.updated, 1)
	assert.Equal(t, "M-000100", repo.updated[0].Matricule)
	assert.Equal(t, "Anna Perrin-Meyer", repo.records["M-000100"].FullName)
	assert.Equal(t, "Magasinier", repo.records["M-000100"].Position)
}

func TestUpdateEmployee_NotFound(t *testing.T) {
	repo := &fakeEmployeeRepo{records: map[string]dto.EmployeeRecord{}}
	s := &Service{employees: repo}

	ctx := employeeRequestCtx(t, "M-999999", dto.EmployeeRecord{FullName: "Paul Girard"})
	s.updateEmployee(ctx)

	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
}

func TestUpdateEmployee_Validation(t *testing.T) {
	repo := &fakeEmployeeRepo{records: map[string]dto.EmployeeRecord{
		"M-000100": {Matricule: "M-000100", FullName: "Anna Perrin"},
	}}
	s := &Service{employees: repo}

	ctx := employeeRequestCtx(t, "M-000100", dto.EmployeeRecord{SeniorityMonths: 12})
	s.updateEmployee(ctx)

	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	assert.Empty(t, repo.updated)
}
