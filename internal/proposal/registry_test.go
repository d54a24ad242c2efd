package proposal

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"
)

type fakeProposalRepo struct {
	proposals map[int64]*dto.Proposal
	sequence  int64
}

func newFakeProposalRepo() *fakeProposalRepo {
	return &fakeProposalRepo{proposals: make(map[int64]*dto.Proposal)}
}

func (r *fakeProposalRepo) Insert(_ context.Context, p dto.Proposal) (int64, error) {
	for _, existing := range r.proposals {
		if existing.RequestID == p.RequestID && existing.Matricule == p.Matricule {
			return 0, dto.ErrDuplicateCandidate
		}
	}
	r.sequence++
	p.ID = r.sequence
	r.proposals[p.ID] = &p
	return p.ID, nil
}

func (r *fakeProposalRepo) GetByID(_ context.Context, id int64) (*dto.Proposal, error) {
	p, ok := r.proposals[id]
	if !ok {
		return nil, dto.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

// ListByRequest mimics the store's coarse ordering: final score then
// matricule, without the availability/skills tie-break.
func (r *fakeProposalRepo) ListByRequest(_ context.Context, requestID int64) ([]dto.Proposal, error) {
	var out []dto.Proposal
	for _, p := range r.proposals {
		if p.RequestID == requestID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score.Final != out[j].Score.Final {
			return out[i].Score.Final > out[j].Score.Final
		}
		return out[i].Matricule < out[j].Matricule
	})
	return out, nil
}

func (r *fakeProposalRepo) UpdateDecision(_ context.Context, id int64, decision dto.ProposalDecision, reasonCode, justification string) error {
	p, ok := r.proposals[id]
	if !ok {
		return dto.ErrNotFound
	}
	if decision == dto.ProposalRetained {
		for _, other := range r.proposals {
			if other.ID != id && other.RequestID == p.RequestID && other.Decision == dto.ProposalRetained {
				return dto.ErrConflict
			}
		}
	}
	p.Decision = decision
	p.ReasonCode = reasonCode
	p.DecisionJustification = justification
	return nil
}

type fakeScorer struct {
	scores map[string]dto.ScoreResult
}

func (s *fakeScorer) ScoreCandidate(_ context.Context, matricule string, _ int64) (dto.ScoreResult, error) {
	res, ok := s.scores[dto.NormalizeMatricule(matricule)]
	if !ok {
		return dto.ScoreResult{}, dto.ErrInvalidInput
	}
	res.Confidence = dto.ConfidenceHigh
	res.ComputedAt = time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	res.AlgorithmVersion = "v2"
	return res, nil
}

type fakeRequests struct {
	statuses map[int64]dto.RequestStatus
}

func (f *fakeRequests) Get(_ context.Context, id int64) (*dto.StaffingRequest, error) {
	status, ok := f.statuses[id]
	if !ok {
		return nil, dto.ErrNotFound
	}
	return &dto.StaffingRequest{ID: id, Status: status}, nil
}

type fakeWorkflow struct {
	triggered []int64
	statuses  map[int64]dto.RequestStatus
	failNext  error
}

func (f *fakeWorkflow) OnProposalRetained(_ context.Context, requestID int64) error {
	f.triggered = append(f.triggered, requestID)
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	if f.statuses != nil {
		f.statuses[requestID] = dto.StatusInValidation
	}
	return nil
}

type recordingProposalNotifier struct {
	decided []dto.Proposal
}

func (n *recordingProposalNotifier) ProposalDecided(_ context.Context, p dto.Proposal) error {
	n.decided = append(n.decided, p)
	return nil
}

func newTestRegistry(t *testing.T) (*Registry, *fakeProposalRepo, *fakeRequests, *fakeWorkflow, *recordingProposalNotifier) {
	t.Helper()

	repo := newFakeProposalRepo()
	requests := &fakeRequests{statuses: map[int64]dto.RequestStatus{
		1042: dto.StatusPropositionOpen,
	}}
	workflow := &fakeWorkflow{statuses: requests.statuses}
	notifier := &recordingProposalNotifier{}
	scorer := &fakeScorer{scores: map[string]dto.ScoreResult{
		"M-001": {Final: 90, Criteria: dto.CriteriaScores{Availability: 100, Skills: 100}},
		"M-002": {Final: 75, Criteria: dto.CriteriaScores{Availability: 40, Skills: 80}},
		"M-003": {Final: 75, Criteria: dto.CriteriaScores{Availability: 80, Skills: 60}},
	}}

	reg := NewRegistry(repo, scorer, requests, workflow, notifier, 10, zerolog.Nop())

	return reg, repo, requests, workflow, notifier
}

const justif = "remplacement identique effectue en mars"

func TestAdd(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(t)

	p, err := reg.Add(context.Background(), 1042, " m-001 ", dto.OriginManual, justif)
	require.NoError(t, err)

	assert.Equal(t, "M-001", p.Matricule)
	assert.Equal(t, dto.ProposalPending, p.Decision)
	assert.Equal(t, 90, p.Score.Final)
}

func TestAdd_DuplicateCandidate(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Add(ctx, 1042, "M-001", dto.OriginManual, justif)
	require.NoError(t, err)

	// Same matricule, different spelling: still one nomination.
	_, err = reg.Add(ctx, 1042, "m-001", dto.OriginSpecific, justif)
	assert.ErrorIs(t, err, dto.ErrDuplicateCandidate)
}

func TestAdd_Validation(t *testing.T) {
	reg, _, requests, _, _ := newTestRegistry(t)
	ctx := context.Background()

	var verr *dto.ValidationError

	_, err := reg.Add(ctx, 1042, "M-001", "UNKNOWN", justif)
	assert.ErrorAs(t, err, &verr)

	_, err = reg.Add(ctx, 1042, "M-001", dto.OriginManual, "court")
	assert.ErrorAs(t, err, &verr)

	requests.statuses[1042] = dto.StatusInValidation
	_, err = reg.Add(ctx, 1042, "M-001", dto.OriginManual, justif)
	assert.ErrorIs(t, err, dto.ErrInvalidTransition)
}

func TestRetain_TriggersWorkflow(t *testing.T) {
	reg, _, _, workflow, notifier := newTestRegistry(t)
	ctx := context.Background()

	p, err := reg.Add(ctx, 1042, "M-001", dto.OriginAutomatic, justif)
	require.NoError(t, err)

	retained, err := reg.Retain(ctx, p.ID, "retenu apres entretien telephonique")
	require.NoError(t, err)

	assert.Equal(t, dto.ProposalRetained, retained.Decision)
	assert.Equal(t, []int64{1042}, workflow.triggered)
	require.Len(t, notifier.decided, 1)
	assert.Equal(t, dto.ProposalRetained, notifier.decided[0].Decision)
}

func TestRetain_SingleRetainedPerRequest(t *testing.T) {
	reg, _, requests, _, _ := newTestRegistry(t)
	ctx := context.Background()

	first, err := reg.Add(ctx, 1042, "M-001", dto.OriginAutomatic, justif)
	require.NoError(t, err)
	second, err := reg.Add(ctx, 1042, "M-002", dto.OriginManual, justif)
	require.NoError(t, err)

	_, err = reg.Retain(ctx, first.ID, "premier candidat retenu")
	require.NoError(t, err)

	// Reopen gathering so only the uniqueness constraint can refuse.
	requests.statuses[1042] = dto.StatusPropositionOpen

	_, err = reg.Retain(ctx, second.ID, "second candidat retenu")
	assert.ErrorIs(t, err, dto.ErrConflict)
}

func TestRetain_OnlyPending(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(t)
	ctx := context.Background()

	p, err := reg.Add(ctx, 1042, "M-001", dto.OriginAutomatic, justif)
	require.NoError(t, err)

	_, err = reg.Reject(ctx, p.ID, "INDISPONIBLE", "indisponible sur toute la periode")
	require.NoError(t, err)

	_, err = reg.Retain(ctx, p.ID, "tentative sur proposition rejetee")
	assert.ErrorIs(t, err, dto.ErrConflict)
}

func TestReject(t *testing.T) {
	reg, _, _, _, notifier := newTestRegistry(t)
	ctx := context.Background()

	p, err := reg.Add(ctx, 1042, "M-001", dto.OriginManual, justif)
	require.NoError(t, err)

	rejected, err := reg.Reject(ctx, p.ID, "INDISPONIBLE", "conge parental sur la periode")
	require.NoError(t, err)

	assert.Equal(t, dto.ProposalRejected, rejected.Decision)
	assert.Equal(t, "INDISPONIBLE", rejected.ReasonCode)
	require.Len(t, notifier.decided, 1)
}

func TestReject_RequiresReasonCode(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(t)

	p, err := reg.Add(context.Background(), 1042, "M-001", dto.OriginManual, justif)
	require.NoError(t, err)

	_, err = reg.Reject(context.Background(), p.ID, "  ", "justification suffisamment longue")

	var verr *dto.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestReject_RetainedAfterValidationStarts(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(t)
	ctx := context.Background()

	p, err := reg.Add(ctx, 1042, "M-001", dto.OriginAutomatic, justif)
	require.NoError(t, err)

	// Retain flips the request to IN_VALIDATION via the workflow fake.
	_, err = reg.Retain(ctx, p.ID, "retenu, ouverture de la validation")
	require.NoError(t, err)

	_, err = reg.Reject(ctx, p.ID, "CHANGEMENT", "retrait apres ouverture de la validation")
	assert.ErrorIs(t, err, dto.ErrInvalidTransition)
}

func TestReject_RejectedIsTerminal(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(t)
	ctx := context.Background()

	p, err := reg.Add(ctx, 1042, "M-001", dto.OriginManual, justif)
	require.NoError(t, err)

	_, err = reg.Reject(ctx, p.ID, "INDISPONIBLE", "premiere cloture de la proposition")
	require.NoError(t, err)

	_, err = reg.Reject(ctx, p.ID, "AUTRE", "seconde cloture de la proposition")
	assert.ErrorIs(t, err, dto.ErrInvalidTransition)
}

func TestListByRequest_OrderedByScore(t *testing.T) {
	reg, _, _, _, _ := newTestRegistry(t)
	ctx := context.Background()

	for _, m := range []string{"M-002", "M-001", "M-003"} {
		_, err := reg.Add(ctx, 1042, m, dto.OriginAutomatic, justif)
		require.NoError(t, err)
	}

	rows, err := reg.ListByRequest(ctx, 1042)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// 90 first; the 75/75 tie goes to M-003 on availability (80 vs 40)
	// even though the store's coarse ordering puts M-002 ahead.
	assert.Equal(t, "M-001", rows[0].Matricule)
	assert.Equal(t, "M-003", rows[1].Matricule)
	assert.Equal(t, "M-002", rows[2].Matricule)
}

func TestRetain_TriggerFailureRollsBack(t *testing.T) {
	reg, repo, _, workflow, notifier := newTestRegistry(t)
	ctx := context.Background()

	p, err := reg.Add(ctx, 1042, "M-001", dto.OriginManual, justif)
	require.NoError(t, err)

	workflow.failNext = errors.New("notification broker unavailable")
	_, err = reg.Retain(ctx, p.ID, justif)
	require.Error(t, err)

	// The decision is reverted: no half-open state, no notification.
	stored, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.ProposalPending, stored.Decision)
	assert.Empty(t, notifier.decided)

	// Once the trigger recovers the same retain goes through.
	retained, err := reg.Retain(ctx, p.ID, justif)
	require.NoError(t, err)
	assert.Equal(t, dto.ProposalRetained, retained.Decision)
	assert.Equal(t, []int64{1042, 1042}, workflow.triggered)
}
