package planner

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/vladzaharia/dangerprep-sub010/pkg/types"
)

// itemsFromSizes derives a deterministic candidate list from a slice
// of sizes, so shrinking stays meaningful
func itemsFromSizes(sizes []int64) []types.Item {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	items := make([]types.Item, 0, len(sizes))
	for i, size := range sizes {
		name := fmt.Sprintf("item-%03d.bin", i)
		items = append(items, types.Item{
			Ref:        "bucket/" + name,
			Name:       name,
			SizeBytes:  size,
			ModifiedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return items
}

// TestPlanBudgetProperty checks that no generated input ever plans
// more bytes for a content type than its budget allows
func TestPlanBudgetProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("per-type bytes never exceed the budget", prop.ForAll(
		func(sizes []int64, budget int64) bool {
			ct := types.ContentType{Name: "bucket", LocalPath: "/data/bucket", MaxSizeBytes: budget}
			src := &memSource{items: map[string][]types.Item{"bucket": itemsFromSizes(sizes)}}

			plan, err := New().Plan(context.Background(), []types.ContentType{ct}, src)
			if err != nil {
				return false
			}
			return plan.BytesForContentType("bucket") <= budget
		},
		gen.SliceOf(gen.Int64Range(0, 1<<20)),
		gen.Int64Range(1, 1<<22),
	))

	properties.Property("included plus warned covers every candidate", prop.ForAll(
		func(sizes []int64, budget int64) bool {
			ct := types.ContentType{Name: "bucket", LocalPath: "/data/bucket", MaxSizeBytes: budget}
			src := &memSource{items: map[string][]types.Item{"bucket": itemsFromSizes(sizes)}}

			plan, err := New().Plan(context.Background(), []types.ContentType{ct}, src)
			if err != nil {
				return false
			}
			warned := 0
			for _, w := range plan.Warnings {
				if w.Reason == types.WarnBudgetExceeded {
					warned++
				}
			}
			return len(plan.Transfers)+warned == len(sizes)
		},
		gen.SliceOf(gen.Int64Range(1, 1<<20)),
		gen.Int64Range(1, 1<<22),
	))

	properties.TestingRun(t)
}

// TestPlanDeterminismProperty checks that identical inputs always
// produce identical plans
func TestPlanDeterminismProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("plans are identical across runs", prop.ForAll(
		func(sizes []int64, budget int64) bool {
			ct := types.ContentType{
				Name: "bucket", LocalPath: "/data/bucket", MaxSizeBytes: budget,
				PriorityRules: []types.PriorityRule{
					{Name: "small", Weight: 5, Rule: types.FilterRule{Type: types.FilterMaxSize, Value: 1 << 10}},
				},
			}
			src := &memSource{items: map[string][]types.Item{"bucket": itemsFromSizes(sizes)}}

			first, err := New().Plan(context.Background(), []types.ContentType{ct}, src)
			if err != nil {
				return false
			}
			second, err := New().Plan(context.Background(), []types.ContentType{ct}, src)
			if err != nil {
				return false
			}
			return reflect.DeepEqual(first.Transfers, second.Transfers) &&
				reflect.DeepEqual(first.Warnings, second.Warnings)
		},
		gen.SliceOf(gen.Int64Range(0, 1<<20)),
		gen.Int64Range(1, 1<<22),
	))

	properties.TestingRun(t)
}
