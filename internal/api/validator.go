package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"
)

func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func parseDate(s string) time.Time {
	t, _ := time.Parse("2006-01-02", strings.TrimSpace(s))
	return t
}

func validateStaffingRequest(req staffingRequestReq) string {
	if strings.TrimSpace(req.Position) == "" {
		return "required field 'position'"
	}

	if strings.TrimSpace(req.ReplacedMatricule) == "" {
		return "required field 'replaced_matricule'"
	}

	if strings.TrimSpace(req.WindowStart) == "" {
		return "required field 'window_start'"
	}

	if !validDate(strings.TrimSpace(req.WindowStart)) {
		return fmt.Sprintf("invalid value in field 'window_start'=%s", req.WindowStart)
	}

	if strings.TrimSpace(req.WindowEnd) == "" {
		return "required field 'window_end'"
	}

	if !validDate(strings.TrimSpace(req.WindowEnd)) {
		return fmt.Sprintf("invalid value in field 'window_end'=%s", req.WindowEnd)
	}

	if !parseDate(req.WindowStart).Before(parseDate(req.WindowEnd)) {
		return fmt.Sprintf("invalid value in field 'window'={start:%s end:%s}", req.WindowStart, req.WindowEnd)
	}

	if req.Urgency != "" && !dto.Urgency(req.Urgency).Valid() {
		return fmt.Sprintf("invalid enum value: urgency %s not in {NORMAL, HIGH, CRITICAL}", req.Urgency)
	}

	return ""
}

func validateProposal(req proposalReq) string {
	if req.RequestID <= 0 {
		return "required field 'request_id'"
	}

	if strings.TrimSpace(req.Matricule) == "" {
		return "required field 'matricule'"
	}

	switch dto.ProposalOrigin(req.Origin) {
	case dto.OriginAutomatic, dto.OriginSpecific, dto.OriginManual:
	default:
		return fmt.Sprintf("invalid enum value: origin %s not in {AUTOMATIC, SPECIFIC, MANUAL}", req.Origin)
	}

	return ""
}

func validateEmployee(rec dto.EmployeeRecord) string {
	if strings.TrimSpace(rec.Matricule) == "" {
		return "required field 'matricule'"
	}

	if strings.TrimSpace(rec.FullName) == "" {
		return "required field 'full_name'"
	}

	if rec.SeniorityMonths < 0 {
		return fmt.Sprintf("invalid value in field 'seniority_months'=%d", rec.SeniorityMonths)
	}

	for i, eng := range rec.Engagements {
		if !eng.Valid() {
			return fmt.Sprintf("invalid value in field 'engagements[%d]': start must precede end", i)
		}
	}

	return ""
}

func validateSyncOptions(opts dto.SyncOptions) string {
	if opts.Mode != "" && opts.Mode != dto.SyncFull && opts.Mode != dto.SyncIncremental {
		return fmt.Sprintf("invalid enum value: mode %s not in {FULL, INCREMENTAL}", opts.Mode)
	}

	if opts.Retry.Strategy != "" {
		switch opts.Retry.Strategy {
		case dto.RetryBalanced, dto.RetryAggressive, dto.RetryConservative:
		default:
			return fmt.Sprintf("invalid enum value: strategy %s not in {balanced, aggressive, conservative}", opts.Retry.Strategy)
		}
	}

	return ""
}
