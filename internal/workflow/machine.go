package workflow

import (
	"fmt"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"
)

// Config fixes the shape of the validation chain. The number of levels
// depends on the urgency tier: higher urgency, fewer validators.
type Config struct {
	LevelsNormal   int
	LevelsHigh     int
	LevelsCritical int
	MinCommentLen  int
	RolesByLevel   []string
}

func DefaultConfig() Config {
	return Config{
		LevelsNormal:   3,
		LevelsHigh:     2,
		LevelsCritical: 1,
		MinCommentLen:  10,
		RolesByLevel:   []string{"MANAGER", "RH", "DIRECTION"},
	}
}

func (c Config) Levels(u dto.Urgency) int {
	switch u {
	case dto.UrgencyCritical:
		return c.LevelsCritical
	case dto.UrgencyHigh:
		return c.LevelsHigh
	default:
		return c.LevelsNormal
	}
}

func (c Config) RoleAt(level int) string {
	if level >= 1 && level <= len(c.RolesByLevel) {
		return c.RolesByLevel[level-1]
	}
	return "DIRECTION"
}

// Recompute derives the request state from the FULL set of validation
// steps. State is never patched incrementally: a decision write and
// the state it implies are produced together from the same inputs,
// which rules out the "decision recorded but state not advanced" bug
// by construction.
func Recompute(levels int, steps []dto.ValidationStep) (dto.RequestStatus, int) {
	byLevel := make(map[int]dto.ValidationStep, len(steps))
	for _, s := range steps {
		byLevel[s.Level] = s
	}

	k := 1
	for k <= levels {
		step, ok := byLevel[k]
		if !ok || step.Decision == dto.StepPending {
			return dto.StatusInValidation, k
		}
		switch step.Decision {
		case dto.StepApproved:
			k++
		case dto.StepRefused:
			return dto.StatusRefused, k
		case dto.StepEscalated:
			k = step.EscalatedTo
		default:
			return dto.StatusInValidation, k
		}
	}

	return dto.StatusApproved, levels
}

// checkDecidable verifies that (level, decision) is a legal move given
// the current chain. Level ordering is strict: only the effective
// current level may be decided; terminal steps are never re-decided.
func checkDecidable(req *dto.StaffingRequest, levels int, steps []dto.ValidationStep, level int) error {
	if req.Status != dto.StatusInValidation {
		return fmt.Errorf("%w: request %d is %s, not in validation", dto.ErrInvalidTransition, req.ID, req.Status)
	}
	if level < 1 || level > levels {
		return fmt.Errorf("%w: level %d outside chain 1..%d", dto.ErrInvalidTransition, level, levels)
	}

	for _, s := range steps {
		if s.Level == level && s.Decision.Terminal() {
			return fmt.Errorf("%w: level %d already decided (%s)", dto.ErrInvalidTransition, level, s.Decision)
		}
	}

	_, current := Recompute(levels, steps)
	if level != current {
		return fmt.Errorf("%w: level %d cannot be decided before level %d", dto.ErrInvalidTransition, level, current)
	}

	return nil
}

// applyDecision returns the step set with the decision applied; the
// input slice is not mutated.
func applyDecision(steps []dto.ValidationStep, decided dto.ValidationStep) []dto.ValidationStep {
	out := make([]dto.ValidationStep, 0, len(steps)+1)
	replaced := false
	for _, s := range steps {
		if s.Level == decided.Level {
			out = append(out, decided)
			replaced = true
			continue
		}
		out = append(out, s)
	}
	if !replaced {
		out = append(out, decided)
	}
	return out
}
