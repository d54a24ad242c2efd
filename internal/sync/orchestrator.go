package sync

import (
	"context"
	"fmt"
	"sort"
	gosync "sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Aivilo1308/interim365-sub000/internal/dto"
	"github.com/Aivilo1308/interim365-sub000/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// KelioClient abstracts the external HR system.
type KelioClient interface {
	ListMatricules(ctx context.Context, mode dto.SyncMode, since time.Time) ([]string, error)
	FetchEmployees(ctx context.Context, matricules []string) ([]dto.ExternalEmployee, error)
}

// DirectoryStore is the upsert side of the employee directory. Upsert
// is keyed by matricule, which makes batch re-runs idempotent.
type DirectoryStore interface {
	Upsert(ctx context.Context, rec dto.EmployeeRecord) (created bool, err error)
}

// AuditRepository persists run/batch accounting for observability.
// All writes are best-effort: an audit failure never fails the run.
type AuditRepository interface {
	InsertRun(ctx context.Context, runID uuid.UUID, mode dto.SyncMode, startedAt time.Time) error
	FinishRun(ctx context.Context, result dto.SyncRunResult) error
	GetRun(ctx context.Context, runID uuid.UUID) (*dto.SyncRunResult, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) error
}

type ReportPublisher interface {
	SyncReport(ctx context.Context, result dto.SyncRunResult) error
}

type Config struct {
	Workers          int
	FailureTolerance float64
	DefaultBatchSize int
	AuditRetention   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.FailureTolerance <= 0 {
		c.FailureTolerance = 0.25
	}
	if c.DefaultBatchSize <= 0 {
		c.DefaultBatchSize = 10
	}
	if c.AuditRetention <= 0 {
		c.AuditRetention = 30 * 24 * time.Hour
	}
	return c
}

// Orchestrator reconciles the employee directory against Kelio in
// batches. At most one run executes system-wide at any time.
type Orchestrator struct {
	client    KelioClient
	store     DirectoryStore
	audit     AuditRepository
	publisher ReportPublisher
	cfg       Config
	log       zerolog.Logger

	running atomic.Bool

	mu          gosync.Mutex
	runs        map[uuid.UUID]*runState
	cancels     map[uuid.UUID]context.CancelFunc
	lastSuccess time.Time
}

// runHistoryRetention bounds how long a completed run stays resolvable
// from memory; older runs are served from the audit tables.
const runHistoryRetention = time.Hour

type runState struct {
	mu         gosync.Mutex
	result     dto.SyncRunResult
	done       bool
	finishedAt time.Time
}

func NewOrchestrator(client KelioClient, store DirectoryStore, audit AuditRepository, publisher ReportPublisher, cfg Config, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		client:    client,
		store:     store,
		audit:     audit,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
		runs:      make(map[uuid.UUID]*runState),
		cancels:   make(map[uuid.UUID]context.CancelFunc),
		log:       log.With().Str("component", "sync").Logger(),
	}
}

// Run executes a sync synchronously. Caller cancellation stops
// scheduling new batches; in-flight batches finish and keep their
// accounting in the result.
func (o *Orchestrator) Run(ctx context.Context, opts dto.SyncOptions) (dto.SyncRunResult, error) {
	if !o.running.CompareAndSwap(false, true) {
		return dto.SyncRunResult{}, dto.ErrSyncRunning
	}
	defer o.running.Store(false)

	st := o.newRun(opts)
	return o.execute(ctx, opts, st)
}

// Start launches a sync asynchronously and returns its run id for
// polling via Status. Cancel stops it.
func (o *Orchestrator) Start(opts dto.SyncOptions) (uuid.UUID, error) {
	if err := validateOptions(&opts, o.cfg.DefaultBatchSize); err != nil {
		return uuid.Nil, err
	}
	if !o.running.CompareAndSwap(false, true) {
		return uuid.Nil, dto.ErrSyncRunning
	}

	st := o.newRun(opts)
	ctx, cancel := context.WithCancel(context.Background())

	o.mu.Lock()
	o.cancels[st.result.RunID] = cancel
	o.mu.Unlock()

	go func() {
		defer o.running.Store(false)
		defer func() {
			cancel()
			o.mu.Lock()
			delete(o.cancels, st.result.RunID)
			o.mu.Unlock()
		}()
		if _, err := o.execute(ctx, opts, st); err != nil {
			o.log.Error().Err(err).Str("run_id", st.result.RunID.String()).Msg("async sync run failed")
		}
	}()

	return st.result.RunID, nil
}

// Status returns a live snapshot of a known run, including per-batch
// counters while the run is still in flight. Runs evicted from memory
// resolve from the audit trail as aggregate statistics.
func (o *Orchestrator) Status(runID uuid.UUID) (*dto.SyncRunResult, error) {
	o.mu.Lock()
	st, ok := o.runs[runID]
	o.mu.Unlock()
	if !ok {
		if o.audit != nil {
			return o.audit.GetRun(context.Background(), runID)
		}
		return nil, dto.ErrNotFound
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	snapshot := st.result
	snapshot.Batches = append([]dto.SyncBatch(nil), st.result.Batches...)
	return &snapshot, nil
}

// Cancel triggers the cancellation token of an async run.
func (o *Orchestrator) Cancel(runID uuid.UUID) error {
	o.mu.Lock()
	cancel, ok := o.cancels[runID]
	o.mu.Unlock()
	if !ok {
		return dto.ErrNotFound
	}
	cancel()
	return nil
}

func (o *Orchestrator) newRun(opts dto.SyncOptions) *runState {
	st := &runState{result: dto.SyncRunResult{
		RunID:     uuid.New(),
		Status:    dto.RunRunning,
		StartedAt: time.Now().UTC(),
	}}
	_ = opts

	o.mu.Lock()
	o.evictExpiredLocked()
	o.runs[st.result.RunID] = st
	o.mu.Unlock()

	return st
}

// evictExpiredLocked drops completed runs past the retention window.
// Caller holds o.mu.
func (o *Orchestrator) evictExpiredLocked() {
	cutoff := time.Now().Add(-runHistoryRetention)
	for runID, st := range o.runs {
		st.mu.Lock()
		expired := st.done && st.finishedAt.Before(cutoff)
		st.mu.Unlock()
		if expired {
			delete(o.runs, runID)
		}
	}
}

func (o *Orchestrator) execute(ctx context.Context, opts dto.SyncOptions, st *runState) (dto.SyncRunResult, error) {
	if err := validateOptions(&opts, o.cfg.DefaultBatchSize); err != nil {
		o.finish(st, dto.RunTotalFailure)
		return st.snapshot(), err
	}

	runID := st.result.RunID
	log := o.log.With().Str("run_id", runID.String()).Str("mode", string(opts.Mode)).Logger()
	log.Info().Int("batch_size", opts.BatchSize).Bool("fast", opts.FastMode).Msg("sync run started")

	if o.audit != nil {
		if err := o.audit.InsertRun(ctx, runID, opts.Mode, st.result.StartedAt); err != nil {
			log.Warn().Err(err).Msg("audit InsertRun failed")
		}
	}

	o.mu.Lock()
	since := o.lastSuccess
	o.mu.Unlock()

	targets, err := o.client.ListMatricules(ctx, opts.Mode, since)
	if err != nil {
		o.finish(st, dto.RunTotalFailure)
		return st.snapshot(), fmt.Errorf("kelio.ListMatricules: %w", err)
	}

	batches := partition(targets, opts.BatchSize, runID)
	st.mu.Lock()
	st.result.Batches = batches
	st.mu.Unlock()

	policy := PolicyFor(opts.Retry.Strategy, opts.Retry.Enabled, opts.FastMode)
	workers := o.cfg.Workers
	if opts.FastMode {
		workers *= 2
	}

	// In-flight batches run on a detached context: cancellation stops
	// the scheduling loop below, never the work already started.
	workCtx := context.WithoutCancel(ctx)
	seen := newSeenSet(opts.Dedupe)

	group, _ := errgroup.WithContext(workCtx)
	group.SetLimit(workers)

	scheduled := 0
	for i := range batches {
		if ctx.Err() != nil {
			log.Warn().Int("skipped", len(batches)-scheduled).Msg("cancellation requested, scheduling stopped")
			break
		}
		scheduled++
		idx := i
		group.Go(func() error {
			o.processBatch(workCtx, policy, st, idx, seen)
			return nil
		})
	}
	_ = group.Wait()

	result := o.aggregate(st, scheduled)

	if result.Status == dto.RunSuccess {
		o.mu.Lock()
		o.lastSuccess = result.StartedAt
		o.mu.Unlock()
	}

	metrics.SyncRunsTotal.WithLabelValues(string(result.Status)).Inc()
	metrics.SyncRunDuration.Observe(result.Elapsed.Seconds())

	if o.audit != nil {
		if err := o.audit.FinishRun(workCtx, result); err != nil {
			log.Warn().Err(err).Msg("audit FinishRun failed")
		}
		if err := o.audit.PurgeOlderThan(workCtx, time.Now().Add(-o.cfg.AuditRetention)); err != nil {
			log.Warn().Err(err).Msg("audit purge failed")
		}
	}
	if o.publisher != nil {
		if err := o.publisher.SyncReport(workCtx, result); err != nil {
			log.Warn().Err(err).Msg("sync report publish failed")
		}
	}

	log.Info().
		Str("status", string(result.Status)).
		Int("processed", result.Processed).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("duplicates", result.DuplicatesResolved).
		Int("batches_failed", result.BatchesFailed).
		Int("retries", result.RetriesTotal).
		Dur("elapsed", result.Elapsed).
		Msg("sync run finished")

	return result, nil
}

// processBatch runs one batch to completion: fetch, dedupe, upsert,
// with per-policy retries. Anything unexpected is caught here and
// converted into a FAILED batch; a bad batch never aborts the run.
func (o *Orchestrator) processBatch(ctx context.Context, policy Policy, st *runState, idx int, seen *seenSet) {
	defer func() {
		if rvr := recover(); rvr != nil {
			st.mu.Lock()
			b := &st.result.Batches[idx]
			b.Status = dto.BatchFailed
			b.Error = fmt.Sprintf("panic: %v", rvr)
			st.mu.Unlock()
			metrics.SyncBatchesTotal.WithLabelValues("panic").Inc()
			o.log.Error().Interface("panic", rvr).Int("batch", idx).Msg("batch recovered from panic")
		}
	}()

	st.mu.Lock()
	matricules := append([]string(nil), st.result.Batches[idx].Matricules...)
	st.mu.Unlock()

	for attempt := 1; ; attempt++ {
		st.mu.Lock()
		b := &st.result.Batches[idx]
		b.Attempts = attempt
		if attempt == 1 {
			b.Status = dto.BatchRunning
		} else {
			b.Status = dto.BatchRetrying
		}
		st.mu.Unlock()

		err := o.attemptBatch(ctx, st, idx, matricules, seen)
		if err == nil {
			st.mu.Lock()
			st.result.Batches[idx].Status = dto.BatchSucceeded
			st.result.Batches[idx].Error = ""
			st.mu.Unlock()
			metrics.SyncBatchesTotal.WithLabelValues("succeeded").Inc()
			return
		}

		if dto.IsRetryable(err) && policy.ShouldRetry(attempt) {
			st.mu.Lock()
			st.result.RetriesTotal++
			st.result.Batches[idx].Error = err.Error()
			st.mu.Unlock()
			metrics.SyncRetriesTotal.Inc()
			o.log.Warn().Err(err).Int("batch", idx).Int("attempt", attempt).Msg("batch failed, retrying")

			select {
			case <-time.After(policy.Delay(attempt)):
			case <-ctx.Done():
			}
			continue
		}

		st.mu.Lock()
		b = &st.result.Batches[idx]
		b.Status = dto.BatchFailed
		b.Error = err.Error()
		st.mu.Unlock()
		metrics.SyncBatchesTotal.WithLabelValues("failed").Inc()
		o.log.Error().Err(err).Int("batch", idx).Int("attempts", attempt).Msg("batch failed, retries exhausted")
		return
	}
}

// attemptBatch is one try: fetch the batch and upsert every record.
// Counters are reset per attempt; upsert idempotency keeps re-tried
// batches from double-creating records. Seen-marks are staged per
// attempt and folded into the run-level set only when the whole batch
// succeeds, so a retried attempt never counts its own failed writes
// as duplicates.
func (o *Orchestrator) attemptBatch(ctx context.Context, st *runState, idx int, matricules []string, seen *seenSet) error {
	records, err := o.client.FetchEmployees(ctx, matricules)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	stage := seen.stage()
	var processed, created, updated, duplicates int

	for _, ext := range records {
		key := dto.NormalizeMatricule(ext.Matricule)
		if key == "" {
			continue
		}
		// A record seen twice in one run is merged (last-seen external
		// value wins through the upsert), not double-written.
		if stage.markSeen(key) {
			duplicates++
		}

		wasCreated, err := o.store.Upsert(ctx, ext.ToRecord(now))
		if err != nil {
			return &dto.ExternalSystemError{Op: "store upsert " + key, Err: err}
		}
		processed++
		if wasCreated {
			created++
		} else {
			updated++
		}
	}

	stage.commit()

	st.mu.Lock()
	b := &st.result.Batches[idx]
	b.Processed, b.Created, b.Updated = processed, created, updated
	st.result.DuplicatesResolved += duplicates
	st.mu.Unlock()

	return nil
}

func (o *Orchestrator) aggregate(st *runState, scheduled int) dto.SyncRunResult {
	st.mu.Lock()
	defer st.mu.Unlock()

	res := &st.result
	res.Processed, res.Created, res.Updated = 0, 0, 0
	res.BatchesSucceeded, res.BatchesFailed = 0, 0
	res.FailedMatricules = nil

	for i := range res.Batches {
		b := &res.Batches[i]
		switch b.Status {
		case dto.BatchSucceeded:
			res.BatchesSucceeded++
			res.Processed += b.Processed
			res.Created += b.Created
			res.Updated += b.Updated
		case dto.BatchFailed:
			res.BatchesFailed++
			res.FailedMatricules = append(res.FailedMatricules, b.Matricules...)
		}
	}
	sort.Strings(res.FailedMatricules)

	attempted := res.BatchesSucceeded + res.BatchesFailed
	switch {
	case attempted == 0:
		// Nothing to reconcile counts as a clean run.
		res.Status = dto.RunSuccess
	case res.BatchesSucceeded == 0:
		res.Status = dto.RunTotalFailure
	case float64(res.BatchesFailed)/float64(scheduled) > o.cfg.FailureTolerance:
		res.Status = dto.RunPartialFailure
	default:
		res.Status = dto.RunSuccess
	}

	res.Elapsed = time.Since(res.StartedAt)
	st.done = true
	st.finishedAt = time.Now()
	snapshot := *res
	snapshot.Batches = append([]dto.SyncBatch(nil), res.Batches...)
	// Per-batch detail is run-duration observability only; once the
	// run completes, the audit tables own it.
	res.Batches = nil
	return snapshot
}

func (o *Orchestrator) finish(st *runState, status dto.RunStatus) {
	st.mu.Lock()
	st.result.Status = status
	st.result.Elapsed = time.Since(st.result.StartedAt)
	st.result.Batches = nil
	st.done = true
	st.finishedAt = time.Now()
	st.mu.Unlock()
}

func (st *runState) snapshot() dto.SyncRunResult {
	st.mu.Lock()
	defer st.mu.Unlock()
	snapshot := st.result
	snapshot.Batches = append([]dto.SyncBatch(nil), st.result.Batches...)
	return snapshot
}

func validateOptions(opts *dto.SyncOptions, defaultBatch int) error {
	if opts.Mode == "" {
		opts.Mode = dto.SyncFull
	}
	if opts.Mode != dto.SyncFull && opts.Mode != dto.SyncIncremental {
		return dto.NewValidationError("mode", "must be FULL or INCREMENTAL")
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = defaultBatch
	}
	if opts.BatchSize < 1 || opts.BatchSize > 20 {
		return dto.NewValidationError("batch_size", "must be within 1..20")
	}
	if opts.Retry.Strategy == "" {
		opts.Retry.Strategy = dto.RetryBalanced
	}
	switch opts.Retry.Strategy {
	case dto.RetryBalanced, dto.RetryAggressive, dto.RetryConservative:
	default:
		return dto.NewValidationError("retry.strategy", "must be balanced, aggressive or conservative")
	}
	return nil
}

func partition(targets []string, size int, runID uuid.UUID) []dto.SyncBatch {
	normalized := make([]string, 0, len(targets))
	unique := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		key := dto.NormalizeMatricule(t)
		if key == "" {
			continue
		}
		if _, ok := unique[key]; ok {
			continue
		}
		unique[key] = struct{}{}
		normalized = append(normalized, key)
	}

	var batches []dto.SyncBatch
	for i := 0; i < len(normalized); i += size {
		end := i + size
		if end > len(normalized) {
			end = len(normalized)
		}
		batches = append(batches, dto.SyncBatch{
			RunID:      runID,
			Seq:        len(batches) + 1,
			Matricules: normalized[i:end],
			Status:     dto.BatchPending,
		})
	}
	return batches
}

// seenSet tracks matricules written by batches that completed in the
// current run. Attempts stage their marks locally and commit them on
// success, so failed attempts leave no trace.
type seenSet struct {
	enabled bool
	mu      gosync.Mutex
	keys    map[string]struct{}
}

func newSeenSet(enabled bool) *seenSet {
	return &seenSet{enabled: enabled, keys: make(map[string]struct{})}
}

func (s *seenSet) stage() *seenStage {
	return &seenStage{set: s, local: make(map[string]struct{})}
}

// seenStage buffers one attempt's marks.
type seenStage struct {
	set   *seenSet
	local map[string]struct{}
}

// markSeen records the key and reports whether it was already present
// in this attempt or in a committed batch.
func (g *seenStage) markSeen(key string) bool {
	if !g.set.enabled {
		return false
	}
	if _, ok := g.local[key]; ok {
		return true
	}

	g.set.mu.Lock()
	_, ok := g.set.keys[key]
	g.set.mu.Unlock()
	if ok {
		return true
	}

	g.local[key] = struct{}{}
	return false
}

func (g *seenStage) commit() {
	if !g.set.enabled || len(g.local) == 0 {
		return
	}
	g.set.mu.Lock()
	for key := range g.local {
		g.set.keys[key] = struct{}{}
	}
	g.set.mu.Unlock()
}
