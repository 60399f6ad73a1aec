// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package jury

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdikta/arbiter/internal/errs"
)

func outcome(weight float64, vector []int) slotOutcome {
	return slotOutcome{spec: SlotSpec{Provider: "p", Model: "m", Weight: weight}, status: SlotSuccess, vector: vector}
}

func failedOutcome(reason string) slotOutcome {
	return slotOutcome{spec: SlotSpec{Provider: "p", Model: "m"}, status: SlotFallback, failed: true, failureReason: reason}
}

func TestAggregateIteration_WeightedAverage(t *testing.T) {
	outcomes := []slotOutcome{
		outcome(2.0, []int{1_000_000, 0}),
		outcome(1.0, []int{0, 1_000_000}),
	}

	got, err := aggregateIteration(outcomes, 2, 0.5)
	require.NoError(t, err)

	sum := 0
	for _, v := range got {
		sum += v
	}
	assert.Equal(t, 1_000_000, sum)
	// Weight 2:1 in favor of outcome 0 -> roughly 666667/333333.
	assert.InDelta(t, 666_667, got[0], 1)
	assert.InDelta(t, 333_333, got[1], 1)
}

func TestAggregateIteration_QuorumFailure(t *testing.T) {
	outcomes := []slotOutcome{
		outcome(1.0, []int{1_000_000, 0}),
		failedOutcome("timeout"),
		failedOutcome("parse error"),
	}

	_, err := aggregateIteration(outcomes, 2, 0.5)
	require.Error(t, err)

	var aerr *errs.ArbiterError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, errs.InsufficientModels, aerr.Kind)
}

func TestAggregateIteration_QuorumExactlyMet(t *testing.T) {
	outcomes := []slotOutcome{
		outcome(1.0, []int{600_000, 400_000}),
		outcome(1.0, []int{600_000, 400_000}),
		failedOutcome("timeout"),
		failedOutcome("timeout"),
	}

	// required = ceil(4 * 0.5) = 2, exactly the number of successes.
	got, err := aggregateIteration(outcomes, 2, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []int{600_000, 400_000}, got)
}

func TestAggregateIteration_ZeroTotalWeightFails(t *testing.T) {
	outcomes := []slotOutcome{
		outcome(0, []int{1_000_000, 0}),
	}

	_, err := aggregateIteration(outcomes, 2, 0.5)
	require.Error(t, err)
}

func TestNormalizeToMillion_SumsToOneMillion(t *testing.T) {
	cases := [][]float64{
		{685714.28, 314285.71},
		{333333.3, 333333.3, 333333.3},
		{1_000_000, 0},
		{0, 0, 1_000_000},
	}

	for _, raw := range cases {
		got := normalizeToMillion(raw)
		sum := 0
		for _, v := range got {
			sum += v
		}
		assert.Equal(t, 1_000_000, sum, "raw=%v got=%v", raw, got)
	}
}

func TestNormalizeToMillion_RemainderGoesToIndexZero(t *testing.T) {
	got := normalizeToMillion([]float64{685714.28, 314285.71})
	assert.Equal(t, []int{685715, 314285}, got)
}
