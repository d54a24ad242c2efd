package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"
)

const (
	ModifierIndisponibilite = "indisponibilite"
	ModifierDistance        = "distance"
	ModifierAnciennete      = "anciennete"
)

// Engine ranks a candidate against a staffing request. Side-effect
// free: for a fixed directory snapshot and config version, ComputeScore
// is deterministic.
type Engine struct {
	cfg Config
	now func() time.Time
}

func NewEngine(cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scoring config: %w", err)
	}
	return &Engine{cfg: cfg, now: time.Now}, nil
}

// WithClock pins the timestamp source. Tests only.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) Version() string {
	return e.cfg.Version
}

// ComputeScore maps (candidate, request, replaced) to a ScoreResult.
// Mandatory identity fields are enforced up front: the engine never
// returns an approximated score for malformed input.
func (e *Engine) ComputeScore(candidate dto.EmployeeRecord, request dto.StaffingRequest, replaced dto.EmployeeRecord) (dto.ScoreResult, error) {
	if strings.TrimSpace(candidate.Matricule) == "" {
		return dto.ScoreResult{}, fmt.Errorf("%w: candidate matricule is empty", dto.ErrInvalidInput)
	}
	if request.ID == 0 {
		return dto.ScoreResult{}, fmt.Errorf("%w: request id is empty", dto.ErrInvalidInput)
	}
	if !request.Window.Valid() {
		return dto.ScoreResult{}, fmt.Errorf("%w: request absence window is invalid", dto.ErrInvalidInput)
	}

	// Requested position may be blank on older requests; the replaced
	// employee's position is the fallback reference.
	wantedPosition := strings.TrimSpace(request.Position)
	if wantedPosition == "" {
		wantedPosition = strings.TrimSpace(replaced.Position)
	}
	if wantedPosition == "" {
		return dto.ScoreResult{}, fmt.Errorf("%w: requested position is empty", dto.ErrInvalidInput)
	}

	var (
		crit      dto.CriteriaScores
		modifiers []dto.Modifier
		degraded  bool
	)

	crit.Skills, degraded = e.skillsScore(candidate, request, degraded)
	crit.Experience, degraded = e.experienceScore(candidate, degraded)

	crit.Availability = 100
	if overlapsAny(candidate.Engagements, request.Window) {
		crit.Availability = 0
		modifiers = append(modifiers, dto.Modifier{Name: ModifierIndisponibilite, Value: e.cfg.UnavailabilityPenaltyPoints})
	}

	var distant bool
	crit.Proximity, distant, degraded = e.proximityScore(candidate, replaced, degraded)
	if distant {
		modifiers = append(modifiers, dto.Modifier{Name: ModifierDistance, Value: e.cfg.DistancePenaltyPoints})
	}

	crit.RoleSimilarity, degraded = e.roleScore(candidate.Position, wantedPosition, degraded)
	crit.Seniority, _ = e.seniorityScore(candidate)

	if candidate.SeniorityMonths >= e.cfg.SeniorityBonusThresholdMonths {
		modifiers = append(modifiers, dto.Modifier{Name: ModifierAnciennete, Value: e.cfg.SeniorityBonusPoints})
	}

	w := e.cfg.Weights
	weighted := float64(crit.Skills)*w.Skills +
		float64(crit.Experience)*w.Experience +
		float64(crit.Availability)*w.Availability +
		float64(crit.Proximity)*w.Proximity +
		float64(crit.RoleSimilarity)*w.RoleSimilarity +
		float64(crit.Seniority)*w.Seniority

	final := int(math.Round(weighted))
	for _, m := range modifiers {
		final += m.Value
	}
	final = clamp(final, 0, 100)

	confidence := dto.ConfidenceHigh
	if degraded {
		confidence = dto.ConfidenceLow
	}

	return dto.ScoreResult{
		Final:            final,
		Criteria:         crit,
		Modifiers:        modifiers,
		Confidence:       confidence,
		ComputedAt:       e.now().UTC(),
		AlgorithmVersion: e.cfg.Version,
	}, nil
}

// Less orders candidates best-first with the deterministic tie-break:
// final, then availability, then skills, then matricule ascending.
func Less(a, b dto.ScoreResult, matA, matB string) bool {
	if a.Final != b.Final {
		return a.Final > b.Final
	}
	if a.Criteria.Availability != b.Criteria.Availability {
		return a.Criteria.Availability > b.Criteria.Availability
	}
	if a.Criteria.Skills != b.Criteria.Skills {
		return a.Criteria.Skills > b.Criteria.Skills
	}
	return matA < matB
}

func (e *Engine) skillsScore(candidate dto.EmployeeRecord, request dto.StaffingRequest, degraded bool) (int, bool) {
	required := Tokenize(request.RequiredSkills)
	if len(required) == 0 {
		return e.cfg.MissingDefault, true
	}

	have := make(map[string]struct{}, len(candidate.Skills))
	for _, s := range candidate.Skills {
		for _, tok := range Tokenize(s) {
			have[tok] = struct{}{}
		}
	}

	matched := 0
	for _, tok := range required {
		if _, ok := have[tok]; ok {
			matched++
		}
	}

	return matched * 100 / len(required), degraded
}

func (e *Engine) experienceScore(candidate dto.EmployeeRecord, degraded bool) (int, bool) {
	if candidate.SeniorityMonths <= 0 {
		return e.cfg.MissingDefault, true
	}
	score := candidate.SeniorityMonths * 100 / e.cfg.ExperienceCeilingMonths
	return clamp(score, 0, 100), degraded
}

// proximityScore buckets: same site 100, same department 60, else 30.
// The "else" bucket stands for a distance above the threshold and
// carries the distance penalty.
func (e *Engine) proximityScore(candidate, replaced dto.EmployeeRecord, degraded bool) (score int, distant bool, deg bool) {
	if strings.TrimSpace(candidate.Site) == "" && strings.TrimSpace(candidate.Department) == "" {
		return e.cfg.MissingDefault, false, true
	}
	if sameFold(candidate.Site, replaced.Site) {
		return 100, false, degraded
	}
	if sameFold(candidate.Department, replaced.Department) {
		return 60, false, degraded
	}
	return 30, true, degraded
}

func (e *Engine) roleScore(current, wanted string, degraded bool) (int, bool) {
	if strings.TrimSpace(current) == "" {
		return e.cfg.MissingDefault, true
	}
	cur := Tokenize(current)
	want := Tokenize(wanted)

	if sameFold(current, wanted) {
		return 100, degraded
	}
	if e.sameBucket(cur, want) {
		return 80, degraded
	}
	for _, c := range cur {
		for _, w := range want {
			if c == w {
				return 60, degraded
			}
		}
	}
	return 25, degraded
}

func (e *Engine) seniorityScore(candidate dto.EmployeeRecord) (int, bool) {
	if candidate.SeniorityMonths <= 0 {
		return e.cfg.MissingDefault, true
	}
	// Seniority saturates over a longer horizon than raw experience.
	score := candidate.SeniorityMonths * 100 / (2 * e.cfg.ExperienceCeilingMonths)
	return clamp(score, 0, 100), false
}

func (e *Engine) sameBucket(a, b []string) bool {
	for _, bucket := range e.cfg.RoleBuckets {
		inA, inB := false, false
		for _, kw := range bucket {
			for _, t := range a {
				if t == kw {
					inA = true
				}
			}
			for _, t := range b {
				if t == kw {
					inB = true
				}
			}
		}
		if inA && inB {
			return true
		}
	}
	return false
}

// Tokenize lowercases and splits on anything that is not a letter,
// digit or dash, so "Cariste / CACES-3" and "cariste caces-3" match.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r == '-' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r >= 'à' && r <= 'ÿ')
	})
	out := fields[:0]
	for _, f := range fields {
		if f != "" && f != "-" {
			out = append(out, f)
		}
	}
	return out
}

func overlapsAny(engagements []dto.Period, window dto.Period) bool {
	for _, p := range engagements {
		if p.Overlaps(window) {
			return true
		}
	}
	return false
}

func sameFold(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
