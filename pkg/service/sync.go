package service

import (
	"context"
	"fmt"

	"github.com/vladzaharia/dangerprep-sub010/pkg/errdefs"
	"github.com/vladzaharia/dangerprep-sub010/pkg/events"
	"github.com/vladzaharia/dangerprep-sub010/pkg/executor"
	"github.com/vladzaharia/dangerprep-sub010/pkg/log"
	"github.com/vladzaharia/dangerprep-sub010/pkg/progress"
	"github.com/vladzaharia/dangerprep-sub010/pkg/scheduler"
	"github.com/vladzaharia/dangerprep-sub010/pkg/transfer"
	"github.com/vladzaharia/dangerprep-sub010/pkg/types"
)

// SyncSummary is the result value of one sync operation
type SyncSummary struct {
	ContentType string `json:"content_type"`
	Planned     int    `json:"planned"`
	Transferred int    `json:"transferred"`
	Failed      int    `json:"failed"`
	Bytes       int64  `json:"bytes"`
	Warnings    int    `json:"warnings"`
}

// registerSyncTasks creates one scheduled task per content type that
// carries a cron schedule. Task bodies run the sync synchronously so
// the scheduler's drop-if-running policy prevents overlapping syncs
// of the same content type.
func (s *Service) registerSyncTasks() error {
	scheduled := 0
	for _, ct := range s.contentTypes {
		if ct.Schedule == "" {
			continue
		}
		scheduled++
	}
	if scheduled == 0 {
		return nil
	}

	s.mu.RLock()
	hasPipeline := s.src != nil && s.transferor != nil
	s.mu.RUnlock()
	if !hasPipeline {
		return errdefs.New(errdefs.ClassConfiguration,
			"content types carry schedules but no sync pipeline is registered")
	}

	for _, ct := range s.contentTypes {
		if ct.Schedule == "" {
			continue
		}
		ct := ct
		id := "sync-" + ct.Name
		err := s.sched.Schedule(id, ct.Schedule, func(ctx context.Context) {
			s.runScheduledSync(ctx, ct)
		}, &scheduler.Options{Name: "sync " + ct.Name})
		if err != nil {
			return fmt.Errorf("failed to schedule sync for %s: %w", ct.Name, err)
		}
		s.logger.Info().
			Str("content_type", ct.Name).
			Str("schedule", ct.Schedule).
			Msg("Sync task registered")
	}
	return nil
}

// runScheduledSync is one task fire: submit and wait so overlapping
// fires drop
func (s *Service) runScheduledSync(ctx context.Context, ct types.ContentType) {
	logger := log.WithContentType(ct.Name)

	handle, err := s.submitSync(ctx, ct)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to submit scheduled sync")
		return
	}
	if _, err := handle.Await(ctx); err != nil {
		logger.Warn().Err(err).Str("operation_id", handle.ID()).Msg("Scheduled sync failed")
	}
}

// SyncContentType submits an out-of-schedule sync for one configured
// content type
func (s *Service) SyncContentType(ctx context.Context, name string) (*executor.Handle, error) {
	s.mu.RLock()
	var found *types.ContentType
	for i := range s.contentTypes {
		if s.contentTypes[i].Name == name {
			found = &s.contentTypes[i]
			break
		}
	}
	s.mu.RUnlock()

	if found == nil {
		return nil, errdefs.Newf(errdefs.ClassPrecondition, "unknown content type %q", name)
	}
	return s.submitSync(ctx, *found)
}

// submitSync plans one content type and submits the execution as a
// single sync operation. Planning happens up front so the tracker
// knows its totals before the first transfer.
func (s *Service) submitSync(ctx context.Context, ct types.ContentType) (*executor.Handle, error) {
	s.mu.RLock()
	src := s.src
	tr := s.transferor
	pl := s.planner
	s.mu.RUnlock()

	if src == nil || tr == nil {
		return nil, errdefs.New(errdefs.ClassPrecondition, "no sync pipeline registered")
	}

	plan, err := pl.Plan(ctx, []types.ContentType{ct}, src)
	if err != nil {
		if _, emitErr := s.hub.Emit(ctx, events.EventSyncFailed,
			fmt.Sprintf("sync of %s failed during planning", ct.Name), &events.EmitOptions{
				Level: events.LevelError,
				Error: err,
				Data:  map[string]interface{}{"content_type": ct.Name},
			}); emitErr != nil {
			s.logger.Warn().Err(emitErr).Msg("Failed to emit sync event")
		}
		return nil, fmt.Errorf("failed to plan sync for %s: %w", ct.Name, err)
	}

	var totalBytes int64
	for _, pt := range plan.Transfers {
		totalBytes += pt.EstimatedBytes
	}

	op := &types.Operation{
		Name: "sync " + ct.Name,
		Kind: types.OperationKindSync,
		Payload: map[string]interface{}{
			"content_type": ct.Name,
			"transfers":    len(plan.Transfers),
		},
	}
	opts := &executor.SubmitOptions{
		Progress: &progress.Config{
			TotalItems: int64(len(plan.Transfers)),
			TotalBytes: totalBytes,
			TrackRates: true,
			TrackETA:   true,
		},
	}
	runner := func(ctx context.Context, tracker *progress.Tracker) (interface{}, error) {
		return s.runSync(ctx, ct, plan, tr, tracker)
	}
	return s.Submit(ctx, op, runner, opts)
}

// runSync executes a plan's transfers in order. A failed transfer is
// recorded and the rest continue; cancellation aborts immediately.
// The returned error is transient so the retry engine may re-run the
// sync, with completion markers skipping what already landed.
func (s *Service) runSync(ctx context.Context, ct types.ContentType, plan *types.Plan, tr transfer.Transferor, tracker *progress.Tracker) (interface{}, error) {
	logger := log.WithContentType(ct.Name)

	summary := &SyncSummary{
		ContentType: ct.Name,
		Planned:     len(plan.Transfers),
		Warnings:    len(plan.Warnings),
	}

	if _, err := s.hub.Emit(ctx, events.EventSyncStarted,
		fmt.Sprintf("sync of %s started", ct.Name), &events.EmitOptions{
			Data: map[string]interface{}{
				"content_type": ct.Name,
				"transfers":    summary.Planned,
				"warnings":     summary.Warnings,
			},
		}); err != nil {
		logger.Warn().Err(err).Msg("Failed to emit sync event")
	}

	for i, pt := range plan.Transfers {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("sync of %s interrupted: %w", ct.Name, errdefs.ErrCanceled)
		}

		// The tracker advances per item here; byte-level feed inside a
		// multi-item operation would reset the item counter
		if err := tr.Run(ctx, pt, nil); err != nil {
			if errdefs.IsCanceled(err) || ctx.Err() != nil {
				return summary, fmt.Errorf("sync of %s interrupted: %w", ct.Name, err)
			}
			summary.Failed++
			logger.Warn().Err(err).Str("ref", pt.SourceRef).Msg("Transfer failed")
		} else {
			summary.Transferred++
			summary.Bytes += pt.EstimatedBytes
		}
		tracker.Update(int64(i+1), summary.Bytes, pt.Name)
	}

	if summary.Failed > 0 {
		err := errdefs.Newf(errdefs.ClassTransient, "%d of %d transfers failed",
			summary.Failed, summary.Planned)
		if _, emitErr := s.hub.Emit(ctx, events.EventSyncFailed,
			fmt.Sprintf("sync of %s failed", ct.Name), &events.EmitOptions{
				Level: events.LevelError,
				Error: err,
				Data:  summaryData(summary),
			}); emitErr != nil {
			logger.Warn().Err(emitErr).Msg("Failed to emit sync event")
		}
		return summary, err
	}

	if _, err := s.hub.Emit(ctx, events.EventSyncCompleted,
		fmt.Sprintf("sync of %s completed", ct.Name), &events.EmitOptions{
			Data: summaryData(summary),
		}); err != nil {
		logger.Warn().Err(err).Msg("Failed to emit sync event")
	}

	logger.Info().
		Int("transferred", summary.Transferred).
		Int64("bytes", summary.Bytes).
		Msg("Sync completed")
	return summary, nil
}

func summaryData(s *SyncSummary) map[string]interface{} {
	return map[string]interface{}{
		"content_type": s.ContentType,
		"planned":      s.Planned,
		"transferred":  s.Transferred,
		"failed":       s.Failed,
		"bytes":        s.Bytes,
		"warnings":     s.Warnings,
	}
}
