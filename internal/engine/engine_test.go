package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eletricells/vantdge/internal/identity"
	"github.com/eletricells/vantdge/internal/model"
	"github.com/eletricells/vantdge/internal/verify"
)

func intPtr(v int) *int { return &v }

func testComponents() Components {
	table := identity.NewAliasTable(map[string]string{"Olumiant": "baricitinib"}, nil)
	registry := verify.NewRegistry(map[string][]string{"Rheumatoid Arthritis": {"baricitinib"}})
	return DefaultComponents(table, registry)
}

func raTarget() Target {
	return Target{
		ID: "ra",
		Estimates: []model.SourceEstimate{
			{SourceID: "s1", Value: 100000, Kind: model.KindPrevalence, Tier: model.Tier1, Year: intPtr(2022)},
			{SourceID: "s2", Value: 150000, Kind: model.KindPrevalence, Tier: model.Tier2, Year: intPtr(2019)},
			{SourceID: "s3", Value: 120000, Kind: model.KindPrevalence, Tier: model.Tier1, Year: intPtr(2023)},
			{SourceID: "f1", Value: 150, Kind: model.KindFailureRate, Tier: model.Tier1},
			{SourceID: "f2", Value: 30, Kind: model.KindFailureRate, Tier: model.Tier1},
		},
		Candidates: []model.CandidateEntity{
			{Name: "Olumiant", Phase: model.PhaseApproved, Status: model.StatusActive, SourceRefs: []string{"label"}},
			{Name: "drugA", Phase: model.Phase2, Status: model.StatusActive, SourceRefs: []string{"NCT001"}},
			{Name: "drugA", Phase: model.Phase2, Status: model.StatusDiscontinued,
				StatusDetail: &model.StatusDetail{Reason: "lack of efficacy"}},
		},
		Contexts: []string{"Rheumatoid Arthritis", "Lupus Nephritis"},
	}
}

func TestProcess_EndToEnd(t *testing.T) {
	res := testComponents().Process(raTarget())

	assert.Equal(t, "ra", res.TargetID)
	require.Len(t, res.Consensus, 2)
	assert.Equal(t, model.KindFailureRate, res.Consensus[0].Kind)
	assert.Equal(t, 1, res.Consensus[0].EstimateCount)
	assert.Equal(t, model.KindPrevalence, res.Consensus[1].Kind)
	assert.Equal(t, model.ConfidenceHigh, res.Consensus[1].Confidence)

	require.Len(t, res.Entities, 2)
	bari, drugA := res.Entities[0], res.Entities[1]
	assert.Equal(t, "baricitinib", bari.IdentityKey)
	assert.Equal(t, model.ApprovalApproved, bari.ContextualStatus["Rheumatoid Arthritis"].Status)
	assert.Equal(t, model.ApprovalInvestigational, bari.ContextualStatus["Lupus Nephritis"].Status)

	assert.Equal(t, "druga", drugA.IdentityKey)
	assert.Equal(t, model.StatusDiscontinued, drugA.Status)
	assert.Equal(t, model.ApprovalDiscontinued, drugA.ContextualStatus["Lupus Nephritis"].Status)

	var domain []model.ValidationIssue
	for _, is := range res.Issues {
		if is.Rule == "domain_bounds" {
			domain = append(domain, is)
		}
	}
	require.Len(t, domain, 1)
	assert.Equal(t, "ra/f1", domain[0].Subject)
	assert.Equal(t, model.SeverityError, domain[0].Severity)
}

func TestProcess_EmptyTarget(t *testing.T) {
	res := testComponents().Process(Target{ID: "empty"})
	assert.Equal(t, TargetResult{TargetID: "empty"}, res)
}

func TestProcess_ExplicitKindsWithoutEstimates(t *testing.T) {
	res := testComponents().Process(Target{ID: "x", Kinds: []model.ValueKind{model.KindIncidence, model.KindIncidence}})
	require.Len(t, res.Consensus, 1)
	assert.Equal(t, model.ConfidenceLow, res.Consensus[0].Confidence)
	assert.Equal(t, 0, res.Consensus[0].EstimateCount)
}

type collector struct {
	mu      sync.Mutex
	results map[string]int
}

func (c *collector) Record(_ context.Context, r TargetResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.results == nil {
		c.results = make(map[string]int)
	}
	c.results[r.TargetID]++
	return nil
}

func manyTargets(n int) []Target {
	out := make([]Target, n)
	for i := range out {
		t := raTarget()
		t.ID = fmt.Sprintf("t%02d", i)
		out[i] = t
	}
	return out
}

func TestRun_ResultsInInputOrder(t *testing.T) {
	sink := &collector{}
	r := NewRunner(testComponents(), Config{Concurrency: 4}, WithSink(sink))

	targets := manyTargets(12)
	results, err := r.Run(context.Background(), targets)
	require.NoError(t, err)
	require.Len(t, results, len(targets))

	for i, res := range results {
		assert.Equal(t, targets[i].ID, res.TargetID)
		assert.False(t, res.Skipped)
		assert.Len(t, res.Entities, 2)
		assert.Equal(t, 1, sink.results[res.TargetID], "each target recorded once")
	}
}

func TestRun_SameOutputAnyConcurrency(t *testing.T) {
	targets := manyTargets(6)
	serial, err := NewRunner(testComponents(), Config{Concurrency: 1}).Run(context.Background(), targets)
	require.NoError(t, err)
	parallel, err := NewRunner(testComponents(), Config{Concurrency: 6}).Run(context.Background(), targets)
	require.NoError(t, err)
	assert.Equal(t, serial, parallel)
}

func TestRun_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int64
	sink := SinkFunc(func(context.Context, TargetResult) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})

	r := NewRunner(testComponents(), Config{Concurrency: 2}, WithSink(sink))
	_, err := r.Run(context.Background(), manyTargets(10))
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int64(2))
}

func TestRun_CancelledSkipsEverything(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &collector{}
	results, err := NewRunner(testComponents(), Config{}, WithSink(sink)).Run(ctx, manyTargets(5))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	require.Len(t, results, 5)
	for _, res := range results {
		assert.True(t, res.Skipped)
		assert.Empty(t, res.Consensus)
		assert.Empty(t, res.Entities)
		assert.Equal(t, 1, sink.results[res.TargetID])
	}
}

func TestRun_SinkFailureDoesNotAbort(t *testing.T) {
	sink := SinkFunc(func(_ context.Context, r TargetResult) error {
		if r.TargetID == "t01" {
			return errors.New("disk full")
		}
		return nil
	})
	results, err := NewRunner(testComponents(), Config{Concurrency: 2}, WithSink(sink)).Run(context.Background(), manyTargets(3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 results not recorded")
	for _, res := range results {
		assert.False(t, res.Skipped)
	}
}

func TestRun_Empty(t *testing.T) {
	results, err := NewRunner(testComponents(), Config{}).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNewRunner_Defaults(t *testing.T) {
	r := NewRunner(testComponents(), Config{Concurrency: -1})
	assert.Equal(t, DefaultConcurrency, r.Concurrency())
	assert.Nil(t, r.limiter)

	r = NewRunner(testComponents(), Config{Concurrency: 2, TargetsPerSecond: 1000})
	assert.Equal(t, 2, r.Concurrency())
	require.NotNil(t, r.limiter)

	results, err := r.Run(context.Background(), manyTargets(3))
	require.NoError(t, err)
	assert.Len(t, results, 3)
}
