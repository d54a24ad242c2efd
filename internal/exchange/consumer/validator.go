package consumer

import (
	"fmt"
	"strings"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"
)

// validateEmployeePayload returns a non-empty reason when the payload
// cannot be applied to the directory.
func validateEmployeePayload(p dto.ExternalEmployee) string {
	if strings.TrimSpace(p.Matricule) == "" {
		return "missing required field matricule"
	}

	if strings.TrimSpace(p.FullName) == "" {
		return "missing required field full_name"
	}

	if p.SeniorityMonths < 0 {
		return fmt.Sprintf("seniority_months must be >= 0, got %d", p.SeniorityMonths)
	}

	for i, eng := range p.Engagements {
		if !eng.Valid() {
			return fmt.Sprintf("engagements[%d]: start must precede end", i)
		}
	}

	return ""
}
