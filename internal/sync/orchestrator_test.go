package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"
)

type fakeKelio struct {
	mu         gosync.Mutex
	matricules []string
	// failuresLeft counts remaining transport failures per batch key
	// (first matricule of the batch).
	failuresLeft map[string]int
	// hardFail returns a non-retryable error for these batch keys.
	hardFail map[string]bool
	// extra emits additional records appended to a batch fetch,
	// used to provoke in-run duplicates.
	extra map[string][]dto.ExternalEmployee
	gate  chan struct{}

	fetchCalls int
}

func (f *fakeKelio) ListMatricules(_ context.Context, _ dto.SyncMode, _ time.Time) ([]string, error) {
	return append([]string(nil), f.matricules...), nil
}

func (f *fakeKelio) FetchEmployees(_ context.Context, matricules []string) ([]dto.ExternalEmployee, error) {
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++

	key := matricules[0]
	if f.hardFail[key] {
		return nil, errors.New("malformed payload")
	}
	if left := f.failuresLeft[key]; left > 0 {
		f.failuresLeft[key] = left - 1
		return nil, &dto.ExternalSystemError{Op: "fetch " + key, Err: errors.New("connection reset")}
	}

	out := make([]dto.ExternalEmployee, 0, len(matricules))
	for _, m := range matricules {
		out = append(out, dto.ExternalEmployee{
			Matricule: m,
			FullName:  "Employee " + m,
			Active:    true,
		})
	}
	out = append(out, f.extra[key]...)
	return out, nil
}

type fakeDirectory struct {
	mu       gosync.Mutex
	records  map[string]dto.EmployeeRecord
	upserts  int
	failures int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{records: make(map[string]dto.EmployeeRecord)}
}

func (d *fakeDirectory) Upsert(_ context.Context, rec dto.EmployeeRecord) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failures > 0 {
		d.failures--
		return false, errors.New("deadlock detected")
	}
	d.upserts++
	_, exists := d.records[rec.Matricule]
	d.records[rec.Matricule] = rec
	return !exists, nil
}

type fakeAudit struct {
	mu       gosync.Mutex
	inserted []uuid.UUID
	finished []dto.SyncRunResult
	purged   int
}

func (a *fakeAudit) InsertRun(_ context.Context, runID uuid.UUID, _ dto.SyncMode, _ time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inserted = append(a.inserted, runID)
	return nil
}

func (a *fakeAudit) FinishRun(_ context.Context, result dto.SyncRunResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finished = append(a.finished, result)
	return nil
}

// GetRun serves aggregate counters only, like the sync_run table.
func (a *fakeAudit) GetRun(_ context.Context, runID uuid.UUID) (*dto.SyncRunResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, result := range a.finished {
		if result.RunID == runID {
			archived := result
			archived.Batches = nil
			return &archived, nil
		}
	}
	return nil, dto.ErrNotFound
}

func (a *fakeAudit) PurgeOlderThan(_ context.Context, _ time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.purged++
	return nil
}

type fakeReporter struct {
	mu      gosync.Mutex
	reports []dto.SyncRunResult
}

func (r *fakeReporter) SyncReport(_ context.Context, result dto.SyncRunResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, result)
	return nil
}

func matricules(n int) []string {
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, fmt.Sprintf("M-%03d", i))
	}
	return out
}

func newTestOrchestrator(client *fakeKelio) (*Orchestrator, *fakeDirectory, *fakeAudit, *fakeReporter) {
	store := newFakeDirectory()
	audit := &fakeAudit{}
	reporter := &fakeReporter{}
	o := NewOrchestrator(client, store, audit, reporter, Config{
		Workers:          2,
		FailureTolerance: 0.25,
	}, zerolog.Nop())
	return o, store, audit, reporter
}

func TestRun_AllBatchesSucceed(t *testing.T) {
	client := &fakeKelio{matricules: matricules(12)}
	o, store, audit, reporter := newTestOrchestrator(client)

	res, err := o.Run(context.Background(), dto.SyncOptions{BatchSize: 5})
	require.NoError(t, err)

	assert.Equal(t, dto.RunSuccess, res.Status)
	assert.Equal(t, 12, res.Processed)
	assert.Equal(t, 12, res.Created)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 3, res.BatchesSucceeded)
	assert.Equal(t, 0, res.BatchesFailed)
	assert.Len(t, store.records, 12)

	require.Len(t, audit.finished, 1)
	assert.Equal(t, res.RunID, audit.finished[0].RunID)
	assert.Equal(t, 1, audit.purged)
	require.Len(t, reporter.reports, 1)
}

func TestRun_RerunUpdatesInsteadOfCreating(t *testing.T) {
	client := &fakeKelio{matricules: matricules(4)}
	o, store, _, _ := newTestOrchestrator(client)
	ctx := context.Background()

	first, err := o.Run(ctx, dto.SyncOptions{BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, first.Created)

	second, err := o.Run(ctx, dto.SyncOptions{BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 4, second.Updated)
	assert.Len(t, store.records, 4)
}

func TestRun_RetryThenSuccess(t *testing.T) {
	client := &fakeKelio{
		matricules:   matricules(12),
		failuresLeft: map[string]int{"M-006": 2},
	}
	o, _, _, _ := newTestOrchestrator(client)

	res, err := o.Run(context.Background(), dto.SyncOptions{
		BatchSize: 5,
		Retry:     dto.RetryOptions{Enabled: true, Strategy: dto.RetryBalanced},
		FastMode:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, dto.RunSuccess, res.Status)
	assert.Equal(t, 2, res.RetriesTotal)
	assert.Equal(t, 3, res.BatchesSucceeded)
	assert.Equal(t, 12, res.Processed)

	for _, b := range res.Batches {
		if b.Matricules[0] == "M-006" {
			assert.Equal(t, 3, b.Attempts)
			assert.Equal(t, dto.BatchSucceeded, b.Status)
		}
	}
}

func TestRun_RetriesExhausted(t *testing.T) {
	client := &fakeKelio{
		matricules:   matricules(10),
		failuresLeft: map[string]int{"M-001": 100},
	}
	o, _, _, _ := newTestOrchestrator(client)

	res, err := o.Run(context.Background(), dto.SyncOptions{
		BatchSize: 5,
		Retry:     dto.RetryOptions{Enabled: true, Strategy: dto.RetryConservative},
		FastMode:  true,
	})
	require.NoError(t, err)

	// 1 of 2 batches failed: above the 0.25 tolerance.
	assert.Equal(t, dto.RunPartialFailure, res.Status)
	assert.Equal(t, 1, res.BatchesFailed)
	assert.Equal(t, 1, res.RetriesTotal)
	assert.Equal(t, []string{"M-001", "M-002", "M-003", "M-004", "M-005"}, res.FailedMatricules)
}

func TestRun_NonRetryableFailsImmediately(t *testing.T) {
	client := &fakeKelio{
		matricules: matricules(4),
		hardFail:   map[string]bool{"M-001": true},
	}
	o, _, _, _ := newTestOrchestrator(client)

	res, err := o.Run(context.Background(), dto.SyncOptions{
		BatchSize: 2,
		Retry:     dto.RetryOptions{Enabled: true, Strategy: dto.RetryAggressive},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, res.RetriesTotal)
	for _, b := range res.Batches {
		if b.Matricules[0] == "M-001" {
			assert.Equal(t, dto.BatchFailed, b.Status)
			assert.Equal(t, 1, b.Attempts)
		}
	}
}

func TestRun_TotalFailure(t *testing.T) {
	client := &fakeKelio{
		matricules: matricules(4),
		hardFail:   map[string]bool{"M-001": true, "M-003": true},
	}
	o, _, _, _ := newTestOrchestrator(client)

	res, err := o.Run(context.Background(), dto.SyncOptions{BatchSize: 2})
	require.NoError(t, err)

	assert.Equal(t, dto.RunTotalFailure, res.Status)
	assert.Equal(t, 0, res.BatchesSucceeded)
}

func TestRun_FailureWithinTolerance(t *testing.T) {
	client := &fakeKelio{
		matricules: matricules(10),
		hardFail:   map[string]bool{"M-009": true},
	}
	o, _, _, _ := newTestOrchestrator(client)

	// 1 failed batch out of 5: ratio 0.20, under the 0.25 tolerance.
	res, err := o.Run(context.Background(), dto.SyncOptions{BatchSize: 2})
	require.NoError(t, err)

	assert.Equal(t, dto.RunSuccess, res.Status)
	assert.Equal(t, 1, res.BatchesFailed)
	assert.Equal(t, []string{"M-009", "M-010"}, res.FailedMatricules)
}

func TestRun_DedupeMergesInRunDuplicates(t *testing.T) {
	client := &fakeKelio{
		matricules: []string{"M-001", "M-002"},
		extra: map[string][]dto.ExternalEmployee{
			"M-001": {{Matricule: "m-001 ", FullName: "Fresher Value", Active: true}},
		},
	}
	o, store, _, _ := newTestOrchestrator(client)

	res, err := o.Run(context.Background(), dto.SyncOptions{BatchSize: 5, Dedupe: true})
	require.NoError(t, err)

	assert.Equal(t, dto.RunSuccess, res.Status)
	assert.Equal(t, 1, res.DuplicatesResolved)

	// Last-seen external value wins through the idempotent upsert.
	assert.Equal(t, "Fresher Value", store.records["M-001"].FullName)
	assert.Len(t, store.records, 2)
}

func TestRun_RetriedBatchDoesNotInflateDuplicates(t *testing.T) {
	client := &fakeKelio{matricules: matricules(3)}
	o, store, _, _ := newTestOrchestrator(client)
	store.failures = 1 // first upsert fails, wrapped retryable

	res, err := o.Run(context.Background(), dto.SyncOptions{
		BatchSize: 5,
		Dedupe:    true,
		Retry:     dto.RetryOptions{Enabled: true, Strategy: dto.RetryBalanced},
		FastMode:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, dto.RunSuccess, res.Status)
	assert.Equal(t, 1, res.RetriesTotal)
	// Source-unique records stay unique even when the batch needed a
	// second attempt.
	assert.Equal(t, 0, res.DuplicatesResolved)
	assert.Equal(t, 3, res.Processed)
	assert.Len(t, store.records, 3)
}

func TestRun_CompletedRunHistoryTrimmed(t *testing.T) {
	client := &fakeKelio{matricules: matricules(4)}
	o, _, _, _ := newTestOrchestrator(client)

	runID, err := o.Start(dto.SyncOptions{BatchSize: 2})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return !o.running.Load()
	}, 5*time.Second, 10*time.Millisecond)

	st, err := o.Status(runID)
	require.NoError(t, err)
	assert.Equal(t, dto.RunSuccess, st.Status)
	assert.Equal(t, 4, st.Processed)
	// Per-batch detail is dropped once a run completes; the audit
	// tables keep it.
	assert.Empty(t, st.Batches)

	o.mu.Lock()
	_, registered := o.cancels[runID]
	o.mu.Unlock()
	assert.False(t, registered)

	// Age the run past the retention window; the next run evicts it
	// and Status falls back to the audit trail.
	o.mu.Lock()
	o.runs[runID].finishedAt = time.Now().Add(-2 * runHistoryRetention)
	o.mu.Unlock()

	_, err = o.Run(context.Background(), dto.SyncOptions{})
	require.NoError(t, err)

	o.mu.Lock()
	_, inMemory := o.runs[runID]
	o.mu.Unlock()
	assert.False(t, inMemory)

	archived, err := o.Status(runID)
	require.NoError(t, err)
	assert.Equal(t, dto.RunSuccess, archived.Status)
	assert.Equal(t, 4, archived.Processed)
}

func TestRun_EmptyDirectory(t *testing.T) {
	client := &fakeKelio{matricules: nil}
	o, _, _, _ := newTestOrchestrator(client)

	res, err := o.Run(context.Background(), dto.SyncOptions{})
	require.NoError(t, err)

	assert.Equal(t, dto.RunSuccess, res.Status)
	assert.Equal(t, 0, res.Processed)
	assert.Empty(t, res.Batches)
}

func TestRun_InvalidOptions(t *testing.T) {
	client := &fakeKelio{matricules: matricules(2)}
	o, _, _, _ := newTestOrchestrator(client)

	var verr *dto.ValidationError

	_, err := o.Run(context.Background(), dto.SyncOptions{BatchSize: 50})
	assert.ErrorAs(t, err, &verr)

	_, err = o.Run(context.Background(), dto.SyncOptions{Mode: "SIDEWAYS"})
	assert.ErrorAs(t, err, &verr)
}

func TestRun_SingleRunAtATime(t *testing.T) {
	gate := make(chan struct{})
	client := &fakeKelio{matricules: matricules(2), gate: gate}
	o, _, _, _ := newTestOrchestrator(client)

	runID, err := o.Start(dto.SyncOptions{BatchSize: 2})
	require.NoError(t, err)

	_, err = o.Run(context.Background(), dto.SyncOptions{})
	assert.ErrorIs(t, err, dto.ErrSyncRunning)

	_, err = o.Start(dto.SyncOptions{})
	assert.ErrorIs(t, err, dto.ErrSyncRunning)

	close(gate)

	require.Eventually(t, func() bool {
		return !o.running.Load()
	}, 5*time.Second, 10*time.Millisecond)

	st, err := o.Status(runID)
	require.NoError(t, err)
	assert.Equal(t, dto.RunSuccess, st.Status)

	// Lock released: a new run is accepted.
	res, err := o.Run(context.Background(), dto.SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, dto.RunSuccess, res.Status)
}

func TestStatus_UnknownRun(t *testing.T) {
	client := &fakeKelio{}
	o, _, _, _ := newTestOrchestrator(client)

	_, err := o.Status(uuid.New())
	assert.ErrorIs(t, err, dto.ErrNotFound)

	err = o.Cancel(uuid.New())
	assert.ErrorIs(t, err, dto.ErrNotFound)
}

func TestPartition(t *testing.T) {
	runID := uuid.New()

	batches := partition([]string{" m-001", "M-002", "m-001", "", "M-003"}, 2, runID)

	require.Len(t, batches, 2)
	assert.Equal(t, 1, batches[0].Seq)
	assert.Equal(t, []string{"M-001", "M-002"}, batches[0].Matricules)
	assert.Equal(t, 2, batches[1].Seq)
	assert.Equal(t, []string{"M-003"}, batches[1].Matricules)
	assert.Equal(t, dto.BatchPending, batches[0].Status)
}
