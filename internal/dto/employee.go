package dto

import (
	"strings"
	"time"
)

type Source string

const (
	SourceLocal          Source = "LOCAL"
	SourceExternalSynced Source = "EXTERNAL_SYNCED"
)

// Period is a date window, start inclusive, end exclusive-ish at day
// granularity. Start must be strictly before End.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (p Period) Valid() bool {
	return !p.Start.IsZero() && !p.End.IsZero() && p.Start.Before(p.End)
}

func (p Period) Overlaps(o Period) bool {
	return p.Start.Before(o.End) && o.Start.Before(p.End)
}

// EmployeeRecord — local cache entry of the employee directory, keyed
// by matricule (stable external identifier, never reassigned).
type EmployeeRecord struct {
	Matricule        string    `json:"matricule" example:"M-004512"`
	FullName         string    `json:"full_name" example:"Claire Dubois"`
	Department       string    `json:"department" example:"Logistique"`
	Site             string    `json:"site" example:"Lyon-Nord"`
	Position         string    `json:"position" example:"Cariste"`
	SeniorityMonths  int       `json:"seniority_months" example:"38"`
	Sex              string    `json:"sex,omitempty" example:"F"`
	Skills           []string  `json:"skills" example:"cariste,caces-3,securite"`
	ManagerMatricule string    `json:"manager_matricule,omitempty" example:"M-001200"`
	Engagements      []Period  `json:"engagements,omitempty"` // confirmed assignment windows
	Active           bool      `json:"active"`
	Source           Source    `json:"source"`
	LastSyncedAt     time.Time `json:"last_synced_at"`
}

// ExternalEmployee is the Kelio-side representation, as delivered by
// batch fetches and by the change-feed topic.
type ExternalEmployee struct {
	Matricule        string   `json:"matricule"`
	FullName         string   `json:"full_name"`
	Department       string   `json:"department"`
	Site             string   `json:"site"`
	Position         string   `json:"position"`
	SeniorityMonths  int      `json:"seniority_months"`
	Sex              string   `json:"sex"`
	Skills           []string `json:"skills"`
	ManagerMatricule string   `json:"manager_matricule"`
	Engagements      []Period `json:"engagements"`
	Active           bool     `json:"active"`
}

// NormalizeMatricule is the dedup identity key: case and surrounding
// whitespace do not distinguish two external records.
func NormalizeMatricule(m string) string {
	return strings.ToUpper(strings.TrimSpace(m))
}

// ToRecord maps an external record onto a directory record. Sync
// overwrites every non-identity field, never a field-by-field merge.
func (e ExternalEmployee) ToRecord(now time.Time) EmployeeRecord {
	return EmployeeRecord{
		Matricule:        NormalizeMatricule(e.Matricule),
		FullName:         e.FullName,
		Department:       e.Department,
		Site:             e.Site,
		Position:         e.Position,
		SeniorityMonths:  e.SeniorityMonths,
		Sex:              e.Sex,
		Skills:           e.Skills,
		ManagerMatricule: e.ManagerMatricule,
		Engagements:      e.Engagements,
		Active:           e.Active,
		Source:           SourceExternalSynced,
		LastSyncedAt:     now,
	}
}
