package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()

	e, err := NewEngine(DefaultConfig())
	require.NoError(t, err)

	return e.WithClock(func() time.Time {
		return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	})
}

func window(startDay, endDay int) dto.Period {
	return dto.Period{
		Start: time.Date(2026, 9, startDay, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 9, endDay, 0, 0, 0, 0, time.UTC),
	}
}

func baseRequest() dto.StaffingRequest {
	return dto.StaffingRequest{
		ID:             1042,
		Position:       "Cariste",
		Window:         window(1, 30),
		Urgency:        dto.UrgencyHigh,
		RequiredSkills: "cariste caces-3",
	}
}

func replacedEmployee() dto.EmployeeRecord {
	return dto.EmployeeRecord{
		Matricule:  "M-004512",
		Site:       "Lyon-Nord",
		Department: "Logistique",
		Position:   "Cariste",
	}
}

func TestComputeScore_IdealCandidate(t *testing.T) {
	e := testEngine(t)

	candidate := dto.EmployeeRecord{
		Matricule:       "M-007730",
		Site:            "Lyon-Nord",
		Department:      "Logistique",
		Position:        "Cariste",
		Skills:          []string{"cariste", "caces-3", "securite"},
		SeniorityMonths: 120,
	}

	res, err := e.ComputeScore(candidate, baseRequest(), replacedEmployee())
	require.NoError(t, err)

	assert.Equal(t, 100, res.Final)
	assert.Equal(t, 100, res.Criteria.Skills)
	assert.Equal(t, 100, res.Criteria.Experience)
	assert.Equal(t, 100, res.Criteria.Availability)
	assert.Equal(t, 100, res.Criteria.Proximity)
	assert.Equal(t, 100, res.Criteria.RoleSimilarity)
	assert.Equal(t, 100, res.Criteria.Seniority)
	assert.Equal(t, dto.ConfidenceHigh, res.Confidence)
	assert.Equal(t, "v2", res.AlgorithmVersion)

	require.Len(t, res.Modifiers, 1)
	assert.Equal(t, ModifierAnciennete, res.Modifiers[0].Name)
	assert.Equal(t, 5, res.Modifiers[0].Value)
}

func TestComputeScore_SameDepartmentDifferentSite(t *testing.T) {
	e := testEngine(t)

	candidate := dto.EmployeeRecord{
		Matricule:       "M-001111",
		Site:            "Lyon-Sud",
		Department:      "Logistique",
		Position:        "Cariste",
		Skills:          []string{"cariste", "caces-3"},
		SeniorityMonths: 48,
	}

	res, err := e.ComputeScore(candidate, baseRequest(), replacedEmployee())
	require.NoError(t, err)

	// 100*.30 + 80*.15 + 100*.20 + 60*.10 + 100*.15 + 40*.10 = 87
	assert.Equal(t, 87, res.Final)
	assert.Equal(t, 60, res.Criteria.Proximity)
	assert.Equal(t, 80, res.Criteria.Experience)
	assert.Equal(t, 40, res.Criteria.Seniority)
	assert.Empty(t, res.Modifiers)
	assert.Equal(t, dto.ConfidenceHigh, res.Confidence)
}

func TestComputeScore_ClampsAtZero(t *testing.T) {
	e := testEngine(t)

	candidate := dto.EmployeeRecord{
		Matricule:       "M-002222",
		Site:            "Marseille",
		Department:      "Comptabilite",
		Position:        "Comptable",
		Skills:          []string{"gestion-paie"},
		SeniorityMonths: 6,
		Engagements:     []dto.Period{window(10, 20)},
	}

	res, err := e.ComputeScore(candidate, baseRequest(), replacedEmployee())
	require.NoError(t, err)

	// Weighted base rounds to 9, then -30 and -10 push below the floor.
	assert.Equal(t, 0, res.Final)
	assert.Equal(t, 0, res.Criteria.Availability)
	assert.Equal(t, 30, res.Criteria.Proximity)
	assert.Equal(t, 25, res.Criteria.RoleSimilarity)

	names := make([]string, 0, len(res.Modifiers))
	for _, m := range res.Modifiers {
		names = append(names, m.Name)
	}
	assert.ElementsMatch(t, []string{ModifierIndisponibilite, ModifierDistance}, names)
}

func TestComputeScore_MissingDataLowersConfidence(t *testing.T) {
	e := testEngine(t)

	candidate := dto.EmployeeRecord{
		Matricule:  "M-003333",
		Site:       "Lyon-Nord",
		Department: "Logistique",
		Position:   "Cariste",
		Skills:     []string{"cariste", "caces-3"},
		// seniority unknown
	}

	res, err := e.ComputeScore(candidate, baseRequest(), replacedEmployee())
	require.NoError(t, err)

	assert.Equal(t, dto.ConfidenceLow, res.Confidence)
	assert.Equal(t, 50, res.Criteria.Experience)
	assert.Equal(t, 50, res.Criteria.Seniority)
}

func TestComputeScore_PositionFallsBackToReplaced(t *testing.T) {
	e := testEngine(t)

	req := baseRequest()
	req.Position = ""

	candidate := dto.EmployeeRecord{
		Matricule:       "M-004444",
		Site:            "Lyon-Nord",
		Department:      "Logistique",
		Position:        "Cariste",
		Skills:          []string{"cariste", "caces-3"},
		SeniorityMonths: 60,
	}

	res, err := e.ComputeScore(candidate, req, replacedEmployee())
	require.NoError(t, err)

	assert.Equal(t, 100, res.Criteria.RoleSimilarity)
}

func TestComputeScore_InvalidInput(t *testing.T) {
	e := testEngine(t)

	valid := dto.EmployeeRecord{Matricule: "M-1", Position: "Cariste", Site: "Lyon-Nord"}

	cases := []struct {
		name      string
		candidate dto.EmployeeRecord
		request   dto.StaffingRequest
		replaced  dto.EmployeeRecord
	}{
		{"empty matricule", dto.EmployeeRecord{}, baseRequest(), replacedEmployee()},
		{"zero request id", valid, dto.StaffingRequest{Window: window(1, 30), Position: "Cariste"}, replacedEmployee()},
		{"inverted window", valid, dto.StaffingRequest{ID: 1, Window: window(30, 1), Position: "Cariste"}, replacedEmployee()},
		{"no position anywhere", valid, dto.StaffingRequest{ID: 1, Window: window(1, 30)}, dto.EmployeeRecord{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.ComputeScore(tc.candidate, tc.request, tc.replaced)
			assert.ErrorIs(t, err, dto.ErrInvalidInput)
		})
	}
}

func TestComputeScore_Deterministic(t *testing.T) {
	e := testEngine(t)

	candidate := dto.EmployeeRecord{
		Matricule:       "M-005555",
		Site:            "Lyon-Sud",
		Department:      "Logistique",
		Position:        "Magasinier",
		Skills:          []string{"caces-3"},
		SeniorityMonths: 30,
	}

	first, err := e.ComputeScore(candidate, baseRequest(), replacedEmployee())
	require.NoError(t, err)

	second, err := e.ComputeScore(candidate, baseRequest(), replacedEmployee())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestComputeScore_RoleBucket(t *testing.T) {
	e := testEngine(t)

	// Magasinier and cariste share a bucket: 80, not 25.
	candidate := dto.EmployeeRecord{
		Matricule:       "M-006666",
		Site:            "Lyon-Nord",
		Department:      "Logistique",
		Position:        "Magasinier",
		Skills:          []string{"cariste", "caces-3"},
		SeniorityMonths: 60,
	}

	res, err := e.ComputeScore(candidate, baseRequest(), replacedEmployee())
	require.NoError(t, err)

	assert.Equal(t, 80, res.Criteria.RoleSimilarity)
}

func TestLess_TieBreakChain(t *testing.T) {
	mk := func(final, availability, skills int) dto.ScoreResult {
		return dto.ScoreResult{
			Final: final,
			Criteria: dto.CriteriaScores{
				Availability: availability,
				Skills:       skills,
			},
		}
	}

	assert.True(t, Less(mk(90, 0, 0), mk(80, 100, 100), "B", "A"))
	assert.True(t, Less(mk(80, 100, 0), mk(80, 50, 100), "B", "A"))
	assert.True(t, Less(mk(80, 100, 60), mk(80, 100, 40), "B", "A"))
	assert.True(t, Less(mk(80, 100, 60), mk(80, 100, 60), "A", "B"))
	assert.False(t, Less(mk(80, 100, 60), mk(80, 100, 60), "B", "A"))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"cariste", "caces-3"}, Tokenize("Cariste / CACES-3"))
	assert.Equal(t, []string{"sécurité"}, Tokenize("Sécurité"))
	assert.Empty(t, Tokenize("  /  "))
}

func TestWeightsMustSumToOne(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights.Skills = 0.50

	_, err := NewEngine(cfg)
	assert.Error(t, err)
}
