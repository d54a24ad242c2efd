package scoring

import (
	"fmt"
	"math"
)

// Weights over the six criteria. Must sum to 1.0.
type Weights struct {
	Skills         float64 `yaml:"skills"`
	Experience     float64 `yaml:"experience"`
	Availability   float64 `yaml:"availability"`
	Proximity      float64 `yaml:"proximity"`
	RoleSimilarity float64 `yaml:"role_similarity"`
	Seniority      float64 `yaml:"seniority"`
}

func (w Weights) Sum() float64 {
	return w.Skills + w.Experience + w.Availability + w.Proximity + w.RoleSimilarity + w.Seniority
}

type Config struct {
	Weights Weights `yaml:"weights"`

	// ExperienceCeilingMonths saturates the experience sub-score
	// (default 60: five years reach 100).
	ExperienceCeilingMonths int `yaml:"experience_ceiling_months"`

	// SeniorityBonusThresholdMonths grants the anciennete modifier to
	// long-tenured candidates.
	SeniorityBonusThresholdMonths int `yaml:"seniority_bonus_threshold_months"`
	SeniorityBonusPoints          int `yaml:"seniority_bonus_points"`

	UnavailabilityPenaltyPoints int `yaml:"unavailability_penalty_points"`
	DistancePenaltyPoints       int `yaml:"distance_penalty_points"`

	// MissingDefault substitutes a sub-score when the underlying data
	// is absent. Deliberately not zero: sparse records are not
	// penalized, the confidence label drops to LOW instead.
	MissingDefault int `yaml:"missing_default"`

	// RoleBuckets groups position keywords considered interchangeable.
	RoleBuckets [][]string `yaml:"role_buckets"`

	Version string `yaml:"version"`
}

func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Skills:         0.30,
			Experience:     0.15,
			Availability:   0.20,
			Proximity:      0.10,
			RoleSimilarity: 0.15,
			Seniority:      0.10,
		},
		ExperienceCeilingMonths:       60,
		SeniorityBonusThresholdMonths: 96,
		SeniorityBonusPoints:          5,
		UnavailabilityPenaltyPoints:   -30,
		DistancePenaltyPoints:         -10,
		MissingDefault:                50,
		RoleBuckets: [][]string{
			{"cariste", "magasinier", "preparateur"},
			{"operateur", "agent", "technicien"},
			{"comptable", "gestionnaire", "assistant"},
		},
		Version: "v2",
	}
}

func (c Config) Validate() error {
	if math.Abs(c.Weights.Sum()-1.0) > 1e-6 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.4f", c.Weights.Sum())
	}
	if c.ExperienceCeilingMonths <= 0 {
		return fmt.Errorf("experience_ceiling_months must be positive")
	}
	if c.MissingDefault < 0 || c.MissingDefault > 100 {
		return fmt.Errorf("missing_default must be within [0,100]")
	}
	return nil
}

// withDefaults fills zero-valued fields so a partial yaml section
// still yields a usable config.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Weights == (Weights{}) {
		c.Weights = def.Weights
	}
	if c.ExperienceCeilingMonths == 0 {
		c.ExperienceCeilingMonths = def.ExperienceCeilingMonths
	}
	if c.SeniorityBonusThresholdMonths == 0 {
		c.SeniorityBonusThresholdMonths = def.SeniorityBonusThresholdMonths
	}
	if c.SeniorityBonusPoints == 0 {
		c.SeniorityBonusPoints = def.SeniorityBonusPoints
	}
	if c.UnavailabilityPenaltyPoints == 0 {
		c.UnavailabilityPenaltyPoints = def.UnavailabilityPenaltyPoints
	}
	if c.DistancePenaltyPoints == 0 {
		c.DistancePenaltyPoints = def.DistancePenaltyPoints
	}
	if c.MissingDefault == 0 {
		c.MissingDefault = def.MissingDefault
	}
	if len(c.RoleBuckets) == 0 {
		c.RoleBuckets = def.RoleBuckets
	}
	if c.Version == "" {
		c.Version = def.Version
	}
	return c
}
