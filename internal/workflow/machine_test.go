package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"
)

func step(level int, decision dto.StepDecision) dto.ValidationStep {
	return dto.ValidationStep{RequestID: 1, Level: level, Decision: decision}
}

func escalated(level, target int) dto.ValidationStep {
	return dto.ValidationStep{RequestID: 1, Level: level, Decision: dto.StepEscalated, EscalatedTo: target}
}

func TestLevelsByUrgency(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 3, cfg.Levels(dto.UrgencyNormal))
	assert.Equal(t, 2, cfg.Levels(dto.UrgencyHigh))
	assert.Equal(t, 1, cfg.Levels(dto.UrgencyCritical))
}

func TestRoleAt(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "MANAGER", cfg.RoleAt(1))
	assert.Equal(t, "RH", cfg.RoleAt(2))
	assert.Equal(t, "DIRECTION", cfg.RoleAt(3))
	assert.Equal(t, "DIRECTION", cfg.RoleAt(7))
}

func TestRecompute(t *testing.T) {
	cases := []struct {
		name       string
		levels     int
		steps      []dto.ValidationStep
		wantStatus dto.RequestStatus
		wantLevel  int
	}{
		{
			name:       "empty chain waits at level 1",
			levels:     3,
			steps:      nil,
			wantStatus: dto.StatusInValidation,
			wantLevel:  1,
		},
		{
			name:       "first approval advances",
			levels:     3,
			steps:      []dto.ValidationStep{step(1, dto.StepApproved)},
			wantStatus: dto.StatusInValidation,
			wantLevel:  2,
		},
		{
			name:   "all approved is APPROVED",
			levels: 3,
			steps: []dto.ValidationStep{
				step(1, dto.StepApproved),
				step(2, dto.StepApproved),
				step(3, dto.StepApproved),
			},
			wantStatus: dto.StatusApproved,
			wantLevel:  3,
		},
		{
			name:   "any refusal is terminal",
			levels: 3,
			steps: []dto.ValidationStep{
				step(1, dto.StepApproved),
				step(2, dto.StepRefused),
			},
			wantStatus: dto.StatusRefused,
			wantLevel:  2,
		},
		{
			name:   "escalation jumps over a level",
			levels: 3,
			steps: []dto.ValidationStep{
				escalated(1, 3),
			},
			wantStatus: dto.StatusInValidation,
			wantLevel:  3,
		},
		{
			name:   "escalated then approved completes the chain",
			levels: 3,
			steps: []dto.ValidationStep{
				escalated(1, 3),
				step(3, dto.StepApproved),
			},
			wantStatus: dto.StatusApproved,
			wantLevel:  3,
		},
		{
			name:       "single level chain",
			levels:     1,
			steps:      []dto.ValidationStep{step(1, dto.StepApproved)},
			wantStatus: dto.StatusApproved,
			wantLevel:  1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, level := Recompute(tc.levels, tc.steps)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantLevel, level)
		})
	}
}

func TestCheckDecidable(t *testing.T) {
	inValidation := &dto.StaffingRequest{ID: 1, Status: dto.StatusInValidation}

	t.Run("not in validation", func(t *testing.T) {
		req := &dto.StaffingRequest{ID: 1, Status: dto.StatusPropositionOpen}
		err := checkDecidable(req, 3, nil, 1)
		assert.ErrorIs(t, err, dto.ErrInvalidTransition)
	})

	t.Run("level out of range", func(t *testing.T) {
		assert.ErrorIs(t, checkDecidable(inValidation, 3, nil, 0), dto.ErrInvalidTransition)
		assert.ErrorIs(t, checkDecidable(inValidation, 3, nil, 4), dto.ErrInvalidTransition)
	})

	t.Run("step already decided", func(t *testing.T) {
		steps := []dto.ValidationStep{step(1, dto.StepApproved)}
		err := checkDecidable(inValidation, 3, steps, 1)
		assert.ErrorIs(t, err, dto.ErrInvalidTransition)
	})

	t.Run("level 2 before level 1", func(t *testing.T) {
		err := checkDecidable(inValidation, 3, nil, 2)
		assert.ErrorIs(t, err, dto.ErrInvalidTransition)
	})

	t.Run("current level is decidable", func(t *testing.T) {
		steps := []dto.ValidationStep{step(1, dto.StepApproved), step(2, dto.StepPending)}
		assert.NoError(t, checkDecidable(inValidation, 3, steps, 2))
	})
}

func TestApplyDecisionDoesNotMutate(t *testing.T) {
	steps := []dto.ValidationStep{step(1, dto.StepPending), step(2, dto.StepPending)}

	out := applyDecision(steps, step(1, dto.StepApproved))

	assert.Equal(t, dto.StepPending, steps[0].Decision)
	assert.Equal(t, dto.StepApproved, out[0].Decision)
	assert.Len(t, out, 2)
}
