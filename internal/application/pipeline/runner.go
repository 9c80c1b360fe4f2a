// Package pipeline runs queued audit jobs through the stage sequence
// analyze → score → summarize → render → persist → notify.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/auditor/internal/application"
	"github.com/bryanwahyu/auditor/internal/domain/ai"
	"github.com/bryanwahyu/auditor/internal/domain/audits"
	"github.com/bryanwahyu/auditor/internal/domain/jobs"
	"github.com/bryanwahyu/auditor/internal/domain/tenants"
	"github.com/bryanwahyu/auditor/internal/metrics"
)

// Outcome of one stage execution.
type Outcome int

const (
	OutcomeOK Outcome = iota
	// OutcomeRetry fails the attempt; the retry policy decides retry or dead.
	OutcomeRetry
	// OutcomeAbsorbed logs the failure and carries on with an empty result.
	OutcomeAbsorbed
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeRetry:
		return "retry"
	case OutcomeAbsorbed:
		return "absorbed"
	case OutcomeSkipped:
		return "skipped"
	}
	return "unknown"
}

// onFailure is the outcome applied when a stage returns an error.
var onFailure = map[audits.Stage]Outcome{
	audits.StageAnalyze:   OutcomeRetry,
	audits.StageSummarize: OutcomeAbsorbed,
	audits.StageRender:    OutcomeRetry,
	audits.StagePersist:   OutcomeRetry,
}

type Summarizer interface {
	Enabled() bool
	Summarize(ctx context.Context, url string, analysis audits.Analysis) (ai.Summary, error)
}

type Notifier interface {
	Completed(ctx context.Context, a *audits.Audit)
	Failed(ctx context.Context, a *audits.Audit, cause error)
}

// Consumer charges one audit against the tenant quota.
type Consumer interface {
	Consume(ctx context.Context, tenantID string) error
}

// Runner executes one delivered job and settles it on the queue.
type Runner struct {
	Audits     audits.Repository
	Errors     audits.StageErrorRepository
	Tenants    tenants.Repository
	Quota      Consumer
	Tx         audits.Transactor
	Analyzer   audits.Analyzer
	Summarizer Summarizer
	Renderer   audits.Renderer
	Notifier   Notifier
	Queue      jobs.Settler
	Policy     jobs.RetryPolicy
	Clock      application.Clock
	Log        logrus.FieldLogger
}

// run holds the per-attempt state threaded through the stages.
type run struct {
	job      *jobs.Job
	audit    *audits.Audit
	log      logrus.FieldLogger
	analysis audits.Analysis
	score    int
	summary  *string
	fixes    []audits.Fix
	artifact string
}

// Run executes job. Stage failures are settled on the queue (retry or dead)
// and returned wrapped with the stage name. A cancelled ctx leaves the job
// unsettled so its lease expires and it is delivered again.
func (r *Runner) Run(ctx context.Context, job *jobs.Job) error {
	st := &run{
		job: job,
		log: r.Log.WithFields(logrus.Fields{
			"audit_id":  job.AuditID,
			"tenant_id": job.TenantID,
			"attempt":   job.Attempt,
		}),
	}
	id := audits.AuditID(job.AuditID)

	a, err := r.Audits.Find(ctx, id)
	if errors.Is(err, audits.ErrAuditNotFound) {
		st.log.Warn("job references unknown audit, dropping")
		metrics.IncreaseJobOutcome("dead")
		return r.Queue.Dead(ctx, job.AuditID, err.Error())
	}
	if err != nil {
		return r.fail(ctx, st, audits.StagePersist, fmt.Errorf("load audit: %w", err))
	}
	if a.Status.Terminal() {
		st.log.WithField("status", a.Status).Info("audit already terminal, acknowledging redelivery")
		metrics.IncreaseJobOutcome("skipped")
		return r.Queue.Ack(ctx, job.AuditID)
	}

	ok, err := r.Audits.MarkProcessing(ctx, id)
	if err != nil {
		return r.fail(ctx, st, audits.StagePersist, fmt.Errorf("mark processing: %w", err))
	}
	if !ok {
		metrics.IncreaseJobOutcome("skipped")
		return r.Queue.Ack(ctx, job.AuditID)
	}
	st.audit = a

	steps := []struct {
		stage audits.Stage
		fn    func(context.Context, *run) (Outcome, error)
	}{
		{audits.StageAnalyze, r.analyze},
		{audits.StageScore, r.scoreStage},
		{audits.StageSummarize, r.summarize},
		{audits.StageRender, r.render},
	}
	for _, s := range steps {
		if err := r.step(ctx, st, s.stage, s.fn); err != nil {
			return r.fail(ctx, st, s.stage, err)
		}
	}

	first, err := r.persist(ctx, st)
	if err != nil {
		return r.fail(ctx, st, audits.StagePersist, err)
	}

	if first {
		r.notifyCompleted(ctx, st)
		metrics.IncreaseJobOutcome("complete")
		st.log.WithField("score", st.score).Info("audit complete")
	} else {
		metrics.IncreaseJobOutcome("skipped")
		st.log.Info("audit was already settled by another delivery")
	}
	return r.Queue.Ack(ctx, job.AuditID)
}

// RunWith runs job with s settling it instead of r.Queue. Push-based queues
// use it to learn how the delivery ended.
func (r *Runner) RunWith(ctx context.Context, job *jobs.Job, s jobs.Settler) error {
	rr := *r
	rr.Queue = s
	return rr.Run(ctx, job)
}

// step runs fn and applies the failure policy of stage. It returns an error
// only when the outcome fails the attempt.
func (r *Runner) step(ctx context.Context, st *run, stage audits.Stage, fn func(context.Context, *run) (Outcome, error)) error {
	start := time.Now()
	outcome, err := fn(ctx, st)
	if err != nil {
		outcome = onFailure[stage]
		if outcome == OutcomeOK {
			outcome = OutcomeRetry
		}
	}
	metrics.ObserveStage(string(stage), outcome.String(), time.Since(start))

	switch outcome {
	case OutcomeAbsorbed:
		st.log.WithError(err).WithField("stage", stage).Warn("stage failed, continuing without it")
		r.recordError(ctx, st, stage, err, true)
		return nil
	case OutcomeRetry:
		return err
	}
	return nil
}

func (r *Runner) analyze(ctx context.Context, st *run) (Outcome, error) {
	analysis, err := r.Analyzer.Analyze(ctx, st.job.URL)
	if err != nil {
		return OutcomeRetry, err
	}
	st.analysis = analysis
	return OutcomeOK, nil
}

func (r *Runner) scoreStage(_ context.Context, st *run) (Outcome, error) {
	st.score = audits.CompositeScore(st.analysis.SubScores())
	return OutcomeOK, nil
}

func (r *Runner) summarize(ctx context.Context, st *run) (Outcome, error) {
	st.summary, st.fixes = nil, nil
	if r.Summarizer == nil || !r.Summarizer.Enabled() {
		return OutcomeSkipped, nil
	}
	sum, err := r.Summarizer.Summarize(ctx, st.job.URL, st.analysis)
	if err != nil {
		return OutcomeAbsorbed, err
	}
	if sum.Summary != "" {
		text := sum.Summary
		st.summary = &text
	}
	st.fixes = sum.Fixes
	return OutcomeOK, nil
}

func (r *Runner) render(ctx context.Context, st *run) (Outcome, error) {
	req := audits.RenderRequest{
		AuditID:   audits.AuditID(st.job.AuditID),
		TenantID:  st.job.TenantID,
		URL:       st.job.URL,
		Score:     st.score,
		Analysis:  st.analysis,
		AISummary: st.summary,
		TopFixes:  st.fixes,
	}
	if r.Tenants != nil {
		if t, err := r.Tenants.Get(ctx, st.job.TenantID); err != nil {
			st.log.WithError(err).Warn("load tenant branding")
		} else {
			req.Branding = t.Branding
		}
	}
	url, err := r.Renderer.Render(ctx, req)
	if err != nil {
		return OutcomeRetry, err
	}
	st.artifact = url
	return OutcomeOK, nil
}

// persist writes the completion and, only when this call performed the
// transition, charges the tenant. Both commit or neither does.
func (r *Runner) persist(ctx context.Context, st *run) (bool, error) {
	start := time.Now()
	c := audits.Completion{
		AuditID:     audits.AuditID(st.job.AuditID),
		Score:       st.score,
		Analysis:    st.analysis,
		AISummary:   st.summary,
		TopFixes:    st.fixes,
		ArtifactURL: st.artifact,
		CompletedAt: r.Clock.Now().UTC(),
	}
	var first bool
	err := r.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		first, err = r.Audits.Complete(ctx, c)
		if err != nil {
			return err
		}
		if first {
			return r.Quota.Consume(ctx, st.job.TenantID)
		}
		return nil
	})
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeRetry
	}
	metrics.ObserveStage(string(audits.StagePersist), outcome.String(), time.Since(start))
	return first, err
}

func (r *Runner) notifyCompleted(ctx context.Context, st *run) {
	if r.Notifier == nil {
		return
	}
	start := time.Now()
	a, err := r.Audits.Find(ctx, audits.AuditID(st.job.AuditID))
	if err != nil {
		st.log.WithError(err).Warn("reload audit for notification")
		metrics.ObserveStage(string(audits.StageNotify), OutcomeAbsorbed.String(), time.Since(start))
		return
	}
	r.Notifier.Completed(ctx, a)
	metrics.ObserveStage(string(audits.StageNotify), OutcomeOK.String(), time.Since(start))
}

// fail settles a failed attempt: retry with backoff, or dead-letter and FAILED
// once the policy is exhausted.
func (r *Runner) fail(ctx context.Context, st *run, stage audits.Stage, cause error) error {
	err := fmt.Errorf("stage %s: %w", stage, cause)
	if ctx.Err() != nil {
		// shutting down; the lease expires and the job comes back
		st.log.WithError(err).Warn("attempt interrupted")
		return err
	}
	r.recordError(ctx, st, stage, cause, false)

	if !r.Policy.Exhausted(st.job.Attempt) {
		delay := r.Policy.Backoff(st.job.Attempt)
		st.log.WithError(err).WithField("retry_in", delay).Warn("attempt failed, retrying")
		metrics.IncreaseJobOutcome("retry")
		if qerr := r.Queue.Retry(ctx, st.job.AuditID, r.Clock.Now().UTC().Add(delay), err.Error()); qerr != nil {
			return errors.Join(err, fmt.Errorf("schedule retry: %w", qerr))
		}
		return err
	}

	st.log.WithError(err).Error("retries exhausted, audit failed")
	metrics.IncreaseJobOutcome("dead")
	failed, ferr := r.Audits.MarkFailed(ctx, audits.AuditID(st.job.AuditID), r.Clock.Now().UTC())
	if ferr != nil {
		// leave the lease to expire so the next delivery retries the bookkeeping
		return errors.Join(err, fmt.Errorf("mark failed: %w", ferr))
	}
	if qerr := r.Queue.Dead(ctx, st.job.AuditID, fmt.Sprintf("%v: %v", audits.ErrRetriesExhausted, err)); qerr != nil {
		return errors.Join(err, fmt.Errorf("dead-letter: %w", qerr))
	}
	if failed && r.Notifier != nil {
		a := st.audit
		if a == nil {
			a = &audits.Audit{ID: audits.AuditID(st.job.AuditID), TenantID: st.job.TenantID, URL: st.job.URL}
		}
		a.Status = audits.StatusFailed
		r.Notifier.Failed(ctx, a, err)
	}
	return err
}

func (r *Runner) recordError(ctx context.Context, st *run, stage audits.Stage, cause error, absorbed bool) {
	if r.Errors == nil || cause == nil {
		return
	}
	e := &audits.StageError{
		AuditID:   audits.AuditID(st.job.AuditID),
		TenantID:  st.job.TenantID,
		Stage:     stage,
		Attempt:   st.job.Attempt,
		Message:   cause.Error(),
		Absorbed:  absorbed,
		CreatedAt: r.Clock.Now().UTC(),
	}
	if err := r.Errors.Save(ctx, e); err != nil {
		st.log.WithError(err).Warn("record stage error")
	}
}
