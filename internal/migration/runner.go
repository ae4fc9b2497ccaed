// Package migration orchestrates the per-entity reconstruction pipeline
// across a bounded worker pool. Each worker owns one entity end-to-end;
// pipelines share no mutable state, so no locking exists inside a run.
package migration

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rpattn/journalize/internal/domain"
	"github.com/rpattn/journalize/internal/extract"
	"github.com/rpattn/journalize/internal/interval"
	"github.com/rpattn/journalize/internal/journal"
	"github.com/rpattn/journalize/internal/reconcile"
	"github.com/rpattn/journalize/internal/repository"
	"github.com/rpattn/journalize/internal/snapshot"
	"github.com/rpattn/journalize/internal/timeline"
)

// Options tunes a migration run.
type Options struct {
	Workers             int
	TimestampResolution time.Duration
}

// Runner drives entity pipelines and aggregates their reports.
type Runner struct {
	extractor *extract.Extractor
	builder   *snapshot.Builder
	journals  repository.JournalRepository
	state     repository.MigrationStateRepository
	executor  *journal.Executor
	opts      Options
	logger    *logrus.Entry

	mu       sync.Mutex
	pending  int
	active   int
	finished []domain.EntityReport
	started  time.Time
}

// NewRunner wires the pipeline components together. state may be nil to
// disable change detection.
func NewRunner(
	extractor *extract.Extractor,
	builder *snapshot.Builder,
	journals repository.JournalRepository,
	state repository.MigrationStateRepository,
	executor *journal.Executor,
	opts Options,
	logger *logrus.Logger,
) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.TimestampResolution <= 0 {
		opts.TimestampResolution = timeline.DefaultResolution
	}
	return &Runner{
		extractor: extractor,
		builder:   builder,
		journals:  journals,
		state:     state,
		executor:  executor,
		opts:      opts,
		logger:    logger.WithField("component", "migration"),
	}
}

// Run migrates the given entities and returns the aggregated report.
// Cancelling ctx stops dispatching new entities; in-flight pipelines finish
// their current version write.
func (r *Runner) Run(ctx context.Context, entities []domain.SourceEntity) domain.RunReport {
	r.mu.Lock()
	r.started = time.Now()
	r.pending = len(entities)
	r.finished = nil
	r.mu.Unlock()

	jobs := make(chan domain.SourceEntity)
	var wg sync.WaitGroup

	for i := 0; i < r.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entity := range jobs {
				report := r.processEntity(ctx, entity)
				r.recordReport(report)
			}
		}()
	}

dispatch:
	for _, entity := range entities {
		select {
		case <-ctx.Done():
			r.logger.Warn("run cancelled, no further entities dispatched")
			break dispatch
		case jobs <- entity:
			r.mu.Lock()
			r.pending--
			r.active++
			r.mu.Unlock()
		}
	}
	close(jobs)
	wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	report := domain.RunReport{
		StartedAt:  r.started,
		FinishedAt: time.Now(),
		Entities:   append([]domain.EntityReport(nil), r.finished...),
	}
	return report
}

// processEntity runs the full reconstruction pipeline for one entity.
func (r *Runner) processEntity(ctx context.Context, entity domain.SourceEntity) domain.EntityReport {
	logger := r.logger.WithField("entity", entity.Key)
	logState := func(state domain.EntityState) {
		logger.WithField("state", state).Debug("pipeline state")
	}

	logState(domain.EntityStateExtracting)
	extracted, err := r.extractor.Extract(ctx, entity.Key)
	if err != nil {
		logger.WithError(err).Error("extraction failed")
		return domain.EntityReport{
			EntityKey: entity.Key,
			State:     domain.EntityStateFailed,
			Error:     err.Error(),
		}
	}
	entity.Notes = extracted.Notes
	entity.Changes = extracted.Changes

	if report, skipped := r.checkUnchanged(ctx, entity, logger); skipped {
		return report
	}

	logState(domain.EntityStateMerging)
	resolved, mergeWarnings, err := timeline.Resolve(extracted.Events, entity.CreatedAt, r.opts.TimestampResolution)
	warnings := append(extracted.Warnings, mergeWarnings...)
	if err != nil {
		logger.WithError(err).Error("timeline resolution failed")
		return domain.EntityReport{
			EntityKey: entity.Key,
			State:     domain.EntityStateFailed,
			Warnings:  warnings,
			Error:     err.Error(),
		}
	}

	logState(domain.EntityStateSnapshotting)
	initial, snapshots, buildWarnings := r.builder.Build(entity, resolved)
	warnings = append(warnings, buildWarnings...)

	intervals := interval.Compute(entity.CreatedAt, resolved)
	if err := interval.Validate(entity.Key, intervals); err != nil {
		// Internal bug: a broken sequence must never reach the target.
		logger.WithError(err).Error("interval invariant violated")
		return domain.EntityReport{
			EntityKey: entity.Key,
			State:     domain.EntityStateFailed,
			Warnings:  warnings,
			Error:     err.Error(),
		}
	}

	logState(domain.EntityStateReconciling)
	computed, err := reconcile.BuildVersions(entity, initial, snapshots, intervals, resolved)
	if err != nil {
		logger.WithError(err).Error("version assembly failed")
		return domain.EntityReport{
			EntityKey: entity.Key,
			State:     domain.EntityStateFailed,
			Warnings:  warnings,
			Error:     err.Error(),
		}
	}

	existing, err := r.journals.ListVersions(ctx, entity.TargetID)
	if err != nil {
		logger.WithError(err).Error("failed to read existing versions")
		return domain.EntityReport{
			EntityKey: entity.Key,
			State:     domain.EntityStateFailed,
			Warnings:  warnings,
			Error:     err.Error(),
		}
	}

	plan, planWarnings := reconcile.Plan(computed, existing)
	warnings = append(warnings, planWarnings...)

	logState(domain.EntityStateWriting)
	report := r.executor.Apply(ctx, entity.Key, plan)
	report.Warnings = append(warnings, report.Warnings...)

	if report.Succeeded() {
		r.saveFingerprint(ctx, entity, logger)
	}

	logger.WithFields(logrus.Fields{
		"state":     report.State,
		"attempted": report.VersionsAttempted,
		"succeeded": report.VersionsSucceeded,
		"skipped":   report.VersionsSkipped,
		"failed":    len(report.VersionsFailed),
	}).Info("entity migrated")
	return report
}

// checkUnchanged short-circuits entities whose raw history matches the
// fingerprint stored by a previous fully successful pass.
func (r *Runner) checkUnchanged(ctx context.Context, entity domain.SourceEntity, logger *logrus.Entry) (domain.EntityReport, bool) {
	if r.state == nil {
		return domain.EntityReport{}, false
	}

	stored, err := r.state.Fingerprint(ctx, entity.Key)
	if err != nil {
		logger.WithError(err).Warn("change detection unavailable, migrating anyway")
		return domain.EntityReport{}, false
	}
	if stored == "" || stored != entity.Fingerprint() {
		return domain.EntityReport{}, false
	}

	logger.Debug("entity unchanged since last pass")
	return domain.EntityReport{
		EntityKey: entity.Key,
		State:     domain.EntityStateSkipped,
	}, true
}

func (r *Runner) saveFingerprint(ctx context.Context, entity domain.SourceEntity, logger *logrus.Entry) {
	if r.state == nil {
		return
	}
	if err := r.state.SaveFingerprint(context.WithoutCancel(ctx), entity.Key, entity.Fingerprint()); err != nil {
		logger.WithError(err).Warn("failed to record migration fingerprint")
	}
}

func (r *Runner) recordReport(report domain.EntityReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active--
	r.finished = append(r.finished, report)
}

// Progress returns a live tally for the report endpoint: entities not yet
// dispatched, entities mid-pipeline, and finished entities per terminal
// state.
func (r *Runner) Progress() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := map[string]int{
		"pending": r.pending,
		"active":  r.active,
	}
	for _, report := range r.finished {
		counts[string(report.State)]++
	}
	return counts
}

// Report returns the reports finished so far.
func (r *Runner) Report() domain.RunReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.RunReport{
		StartedAt:  r.started,
		FinishedAt: time.Now(),
		Entities:   append([]domain.EntityReport(nil), r.finished...),
	}
}
