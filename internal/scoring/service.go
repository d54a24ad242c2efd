package scoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"
	"github.com/Aivilo1308/interim365-sub000/internal/metrics"
)

type EmployeeProvider interface {
	Get(ctx context.Context, matricule string) (*dto.EmployeeRecord, error)
}

type RequestProvider interface {
	Get(ctx context.Context, id int64) (*dto.StaffingRequest, error)
}

// Service is the composed pipeline the API calls: resolve candidate,
// resolve request and replaced employee, compute the score. One
// operation, one result.
type Service struct {
	engine    *Engine
	employees EmployeeProvider
	requests  RequestProvider
	log       zerolog.Logger
}

func NewService(engine *Engine, employees EmployeeProvider, requests RequestProvider, log zerolog.Logger) *Service {
	return &Service{
		engine:    engine,
		employees: employees,
		requests:  requests,
		log:       log.With().Str("component", "scoring").Logger(),
	}
}

func (s *Service) ScoreCandidate(ctx context.Context, matricule string, requestID int64) (dto.ScoreResult, error) {
	candidate, err := s.employees.Get(ctx, dto.NormalizeMatricule(matricule))
	if err != nil {
		if errors.Is(err, dto.ErrNotFound) {
			return dto.ScoreResult{}, fmt.Errorf("%w: unknown candidate %q", dto.ErrInvalidInput, matricule)
		}
		return dto.ScoreResult{}, fmt.Errorf("employees.Get: %w", err)
	}

	request, err := s.requests.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, dto.ErrNotFound) {
			return dto.ScoreResult{}, fmt.Errorf("%w: unknown request %d", dto.ErrInvalidInput, requestID)
		}
		return dto.ScoreResult{}, fmt.Errorf("requests.Get: %w", err)
	}

	// The replaced employee may predate the directory; scoring then
	// runs on an empty reference and the result degrades to LOW.
	var replaced dto.EmployeeRecord
	if request.ReplacedMatricule != "" {
		rec, err := s.employees.Get(ctx, dto.NormalizeMatricule(request.ReplacedMatricule))
		switch {
		case err == nil:
			replaced = *rec
		case errors.Is(err, dto.ErrNotFound):
			s.log.Warn().
				Str("matricule", request.ReplacedMatricule).
				Int64("request_id", requestID).
				Msg("replaced employee not in directory")
		default:
			return dto.ScoreResult{}, fmt.Errorf("employees.Get replaced: %w", err)
		}
	}

	result, err := s.engine.ComputeScore(*candidate, *request, replaced)
	if err != nil {
		return dto.ScoreResult{}, err
	}

	metrics.ScoresComputedTotal.Inc()
	s.log.Debug().
		Str("matricule", candidate.Matricule).
		Int64("request_id", requestID).
		Int("final", result.Final).
		Str("confidence", string(result.Confidence)).
		Msg("score computed")

	return result, nil
}
