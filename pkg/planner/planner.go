package planner

import (
	"context"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/vladzaharia/dangerprep-sub010/pkg/log"
	"github.com/vladzaharia/dangerprep-sub010/pkg/metrics"
	"github.com/vladzaharia/dangerprep-sub010/pkg/transfer"
	"github.com/vladzaharia/dangerprep-sub010/pkg/types"
)

// Planner builds feasible transfer plans from content type
// configuration and a source provider's enumeration
type Planner struct {
	logger zerolog.Logger
}

// New creates a planner
func New() *Planner {
	return &Planner{logger: log.WithComponent("planner")}
}

// scored pairs an item with its computed priority score
type scored struct {
	item  types.Item
	score float64
}

// Plan enumerates, filters, prioritizes, and budgets every content
// type in priority order. Given identical configuration and
// enumeration output, the plan is identical across runs.
func (p *Planner) Plan(ctx context.Context, contentTypes []types.ContentType, src transfer.SourceProvider) (*types.Plan, error) {
	if src == nil {
		return nil, fmt.Errorf("planner: source provider is required")
	}

	ordered := make([]types.ContentType, len(contentTypes))
	copy(ordered, contentTypes)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].Name < ordered[j].Name
	})

	now := time.Now()
	plan := &types.Plan{}

	for _, ct := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("planning interrupted: %w", err)
		}
		if err := p.planContentType(ctx, ct, src, now, plan); err != nil {
			return nil, err
		}
	}

	metrics.PlansBuiltTotal.Inc()
	for _, w := range plan.Warnings {
		metrics.PlanWarningsTotal.WithLabelValues(string(w.Reason)).Inc()
	}

	p.logger.Info().
		Int("transfers", len(plan.Transfers)).
		Int("warnings", len(plan.Warnings)).
		Int64("total_bytes", plan.TotalBytes).
		Msg("Plan built")
	return plan, nil
}

func (p *Planner) planContentType(ctx context.Context, ct types.ContentType, src transfer.SourceProvider, now time.Time, plan *types.Plan) error {
	chain, err := compileChain(ct)
	if err != nil {
		return err
	}
	score, err := compileScorer(ct)
	if err != nil {
		return err
	}

	// Enumerate and filter in one pass. A failed enumeration keeps
	// the items already seen and records a warning rather than
	// aborting the whole plan.
	var candidates []scored
	enumErr := src.Enumerate(ctx, ct, func(item types.Item) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, pred := range chain {
			if !pred(item, now) {
				return nil
			}
		}
		candidates = append(candidates, scored{item: item, score: score.score(item, now)})
		return nil
	})
	if enumErr != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("planning interrupted: %w", ctx.Err())
		}
		plan.Warnings = append(plan.Warnings, types.PlanWarning{
			ContentType: ct.Name,
			Reason:      types.WarnEnumerationFailed,
			Detail:      enumErr.Error(),
		})
		p.logger.Warn().Err(enumErr).Str("content_type", ct.Name).Msg("Enumeration failed")
	}

	// Score descending, then name ascending, then ref, so equal
	// inputs always order the same way
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].item.Name != candidates[j].item.Name {
			return candidates[i].item.Name < candidates[j].item.Name
		}
		return candidates[i].item.Ref < candidates[j].item.Ref
	})

	// Budget walk: include while the accumulated estimate fits. An
	// item that would exceed is excluded, but the walk continues so
	// smaller later items can still fit.
	var accumulated int64
	included := 0
	for _, c := range candidates {
		item := c.item
		if accumulated+item.SizeBytes > ct.MaxSizeBytes {
			plan.Warnings = append(plan.Warnings, types.PlanWarning{
				ContentType: ct.Name,
				Item:        item.Name,
				Reason:      types.WarnBudgetExceeded,
				Detail:      fmt.Sprintf("%d bytes over budget with %d of %d used", item.SizeBytes, accumulated, ct.MaxSizeBytes),
			})
			continue
		}

		accumulated += item.SizeBytes
		included++
		plan.Transfers = append(plan.Transfers, types.PlannedTransfer{
			ContentType:    ct.Name,
			Name:           item.Name,
			SourceRef:      item.Ref,
			DestinationRef: path.Join(ct.LocalPath, item.Name),
			EstimatedBytes: item.SizeBytes,
			PriorityScore:  c.score,
		})
	}
	plan.TotalBytes += accumulated

	if included == 0 && len(candidates) > 0 {
		smallest := candidates[0].item.SizeBytes
		for _, c := range candidates[1:] {
			if c.item.SizeBytes < smallest {
				smallest = c.item.SizeBytes
			}
		}
		plan.Warnings = append(plan.Warnings, types.PlanWarning{
			ContentType: ct.Name,
			Reason:      types.WarnBudgetTooSmall,
			Detail:      fmt.Sprintf("budget %d below smallest candidate %d", ct.MaxSizeBytes, smallest),
		})
	}

	return nil
}
