/*
Package planner builds transfer plans from content type configuration
and a source provider's enumeration.

A plan is a pure value: identical configuration and enumeration output
produce an identical plan, byte for byte. Nothing in this package
touches the filesystem or the clock beyond capturing one timestamp per
run for age-based rules.

# Algorithm

For each content type, in ascending configured priority:

 1. Enumerate candidates from the source provider.
 2. Apply the extension allow-list and the ordered filter chain;
    the first failing predicate discards the item.
 3. Score survivors: the sum of weights of every matching priority
    rule. Sort by score descending, name ascending.
 4. Walk the sorted list accumulating estimated bytes. Items that fit
    inside max_size are included; items that would exceed are warned
    and skipped, but the walk continues so smaller later items can
    still fit.

Per-content-type sub-plans concatenate in the same priority order.

# Warnings

The plan carries warnings instead of failing partway:

  - budget_exceeded: one per item the budget could not accommodate
  - budget_too_small: the budget fits no candidate at all
  - enumeration_failed: the provider failed mid-walk; items already
    seen still plan

# Integration Points

This package integrates with:

  - pkg/transfer: SourceProvider supplies candidates
  - pkg/types: consumes ContentType, produces Plan
  - pkg/service: plans on every scheduled sync fire
  - pkg/metrics: counts plans and warnings by reason
*/
package planner
