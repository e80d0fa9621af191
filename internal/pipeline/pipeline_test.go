package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zapcore"

	"github.com/CrillyPienaah/sme-growth-copilot/internal/commentary"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/growth"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/logging"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/memory"
	"github.com/CrillyPienaah/sme-growth-copilot/internal/telemetry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func coffeeRequest() growth.PlanRequest {
	return growth.PlanRequest{
		BusinessProfile: growth.BusinessProfile{
			BusinessID:   "coffee-001",
			Name:         "Test Coffee Hub",
			Industry:     "Food & Beverage",
			Region:       "Toronto",
			MainChannels: []string{"email", "in-store"},
		},
		KPIs: growth.KpiSnapshot{
			Visits:    2000,
			Leads:     350,
			Signups:   200,
			Purchases: 80,
			Revenue:   8400,
		},
		Goal: growth.GrowthGoal{Objective: "increase repeat purchases", HorizonWeeks: 6},
	}
}

type harness struct {
	orch   *Orchestrator
	logger *logging.TestLogger
	tel    *telemetry.TestTelemetry
}

func newHarness(opts ...Option) *harness {
	h := &harness{
		logger: logging.NewTestLogger(),
		tel:    telemetry.NewTestTelemetry(),
	}
	base := []Option{
		WithLogger(h.logger.Logger),
		WithTracer(h.tel.Tracer("pipeline-test")),
	}
	h.orch = New(append(base, opts...)...)
	h.orch.newContext = func() *RunContext { return newRunContext("abcd1234", fixedClock()) }
	return h
}

type recordingCommentator struct {
	mu    sync.Mutex
	plans []growth.GrowthPlan
}

func (c *recordingCommentator) Generate(_ context.Context, plan growth.GrowthPlan) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plans = append(c.plans, plan)
	return "brief"
}

func (c *recordingCommentator) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.plans)
}

// namedCommentator reports a model name.
type namedCommentator struct{ model string }

func (namedCommentator) Generate(context.Context, growth.GrowthPlan) string { return "brief" }
func (c namedCommentator) Model() string { return c.model }

type failingStore struct{ err error }

func (s failingStore) FailedExperiments(context.Context, string) ([]string, error) {
	return nil, s.err
}

func (s failingStore) RecordFailure(context.Context, string, string) (bool, error) {
	return false, s.err
}

// cancelingStore cancels the run while the strategy stage reads memory.
type cancelingStore struct{ cancel context.CancelFunc }

func (s cancelingStore) FailedExperiments(context.Context, string) ([]string, error) {
	s.cancel()
	return nil, nil
}

func (s cancelingStore) RecordFailure(context.Context, string, string) (bool, error) {
	return false, nil
}

func recordFailure(t *testing.T, store memory.Store, businessID, name string) {
	t.Helper()
	_, err := store.RecordFailure(context.Background(), businessID, name)
	require.NoError(t, err)
}

func TestRun_CoffeeHub(t *testing.T) {
	h := newHarness()

	res, err := h.orch.Run(context.Background(), coffeeRequest())
	require.NoError(t, err)
	require.NotNil(t, res)

	plan := res.Plan
	assert.Equal(t, "abcd1234", plan.TraceID)
	assert.Equal(t, growth.StepVisits, plan.FunnelInsight.FromStep)
	assert.Equal(t, growth.StepLeads, plan.FunnelInsight.ToStep)
	assert.InDelta(t, 0.825, plan.FunnelInsight.DropRate, 1e-9)
	assert.Equal(t, growth.DefaultPeriod, plan.KPIs.Period)

	require.Len(t, plan.Experiments, 2)
	assert.Equal(t, growth.ExpReferralProgram, plan.Experiments[0].Experiment.Name)
	assert.Equal(t, 7.5, plan.Experiments[0].PriorityScore)
	assert.Equal(t, growth.ExpLeadMagnetLandingPage, plan.Experiments[1].Experiment.Name)
	assert.InDelta(t, 6.667, plan.Experiments[1].PriorityScore, 0.001)
	assert.Equal(t, plan.Experiments[0], plan.ChosenExperiment)

	assert.True(t, strings.HasPrefix(plan.CopySuggestion, "Subject: A thank-you from Test Coffee Hub"))

	assert.True(t, strings.HasPrefix(plan.StrategyCommentary, "## Strategic Recommendation"))
	assert.Contains(t, plan.StrategyCommentary, "\n\nRevenue Opportunity: $6,930.00 if bottleneck is fixed")
	assert.NotContains(t, plan.StrategyCommentary, "Data Quality Notes")
	assert.True(t, strings.HasSuffix(plan.StrategyCommentary, "\n[Trace: abcd1234]"))

	meta := res.Context.Metadata()
	assert.Equal(t, 6930.0, meta["revenue_opportunity"])
	assert.Equal(t, 2, meta["proposed_experiments"])
	assert.Equal(t, 0, meta["experiments_filtered_by_memory"])
	assert.Equal(t, growth.ExpReferralProgram, meta["top_experiment"])
	assert.Equal(t, SelectionHighestICE, meta["selection_method"])
	assert.Equal(t, 7.5, meta["top_priority_score"])
	assert.Equal(t, len(plan.CopySuggestion), meta["copy_length"])
	assert.Equal(t, commentary.ModelTemplate, meta["commentary_model"])
	assert.NotContains(t, meta, "data_warnings")

	h.logger.AssertRunCorrelation(t, "pipeline run complete", "abcd1234")
	h.logger.AssertField(t, "pipeline run complete", "business.id", "coffee-001")
}

func TestRun_AuditTrailOrder(t *testing.T) {
	h := newHarness()

	res, err := h.orch.Run(context.Background(), coffeeRequest())
	require.NoError(t, err)

	var stages []string
	for _, e := range res.Context.History() {
		if len(stages) == 0 || stages[len(stages)-1] != e.Stage {
			stages = append(stages, e.Stage)
		}
		assert.NotEqual(t, "ERROR", e.Action)
	}
	assert.Equal(t, []string{
		StageIntake, StageAnalyst, StageStrategy, StageScoring,
		StageJudge, StageCopywriter, StageOrchestrator, StageCommentary,
	}, stages)
}

func TestRun_Spans(t *testing.T) {
	h := newHarness()

	_, err := h.orch.Run(context.Background(), coffeeRequest())
	require.NoError(t, err)

	for _, name := range []string{
		"pipeline.Run", "pipeline.Intake", "pipeline.Analyst", "pipeline.Strategy",
		"pipeline.Scoring", "pipeline.Judge", "pipeline.Copywriter", "pipeline.Commentary",
	} {
		h.tel.AssertSpanExists(t, name)
	}
	h.tel.AssertSpanAttribute(t, "pipeline.Run", "run.trace", "abcd1234")
	h.tel.AssertSpanAttribute(t, "pipeline.Run", "chosen", growth.ExpReferralProgram)

	run := h.tel.SpanByName("pipeline.Run")
	judge := h.tel.SpanByName("pipeline.Judge")
	require.NotNil(t, run)
	require.NotNil(t, judge)
	assert.Equal(t, run.SpanContext().SpanID(), judge.Parent().SpanID())
}

func TestRun_DataWarnings(t *testing.T) {
	h := newHarness()
	req := coffeeRequest()
	req.KPIs = growth.KpiSnapshot{Visits: 100, Leads: 200, Signups: 50, Purchases: 10, Revenue: 500}
	req.Goal.HorizonWeeks = 0

	res, err := h.orch.Run(context.Background(), req)
	require.NoError(t, err)

	warnings, ok := Get(res.Context, MetaDataWarnings)
	require.True(t, ok)
	assert.Equal(t, []string{
		"Impossible: 200 leads > 100 visits",
		"Horizon of 0 weeks is below 1; using 8",
	}, warnings)

	assert.Equal(t, growth.DefaultHorizonWeeks, res.Plan.Goal.HorizonWeeks)
	assert.Contains(t, res.Plan.StrategyCommentary,
		"\n\nData Quality Notes: Impossible: 200 leads > 100 visits; Horizon of 0 weeks is below 1; using 8")
	assert.True(t, strings.HasSuffix(res.Plan.StrategyCommentary, "\n[Trace: abcd1234]"))
	h.logger.AssertLogged(t, zapcore.WarnLevel, "data quality issues")
}

func TestRun_NoRevenueOpportunitySuffixWhenZero(t *testing.T) {
	h := newHarness()
	req := coffeeRequest()
	req.KPIs.Revenue = 0

	res, err := h.orch.Run(context.Background(), req)
	require.NoError(t, err)

	assert.NotContains(t, res.Plan.StrategyCommentary, "Revenue Opportunity")
	opp, ok := Get(res.Context, MetaRevenueOpportunity)
	require.True(t, ok)
	assert.Zero(t, opp)
}

func TestRun_MemoryFiltersFailedExperiments(t *testing.T) {
	store := memory.NewMemStore()
	recordFailure(t, store, "coffee-001", growth.ExpReferralProgram)
	h := newHarness(WithMemory(store))

	res, err := h.orch.Run(context.Background(), coffeeRequest())
	require.NoError(t, err)

	require.Len(t, res.Plan.Experiments, 1)
	assert.Equal(t, growth.ExpLeadMagnetLandingPage, res.Plan.ChosenExperiment.Experiment.Name)

	filtered, _ := Get(res.Context, MetaFilteredByMemory)
	proposed, _ := Get(res.Context, MetaProposedExperiments)
	assert.Equal(t, 1, filtered)
	assert.Equal(t, 1, proposed)
}

func TestRun_MemoryOtherBusinessIgnored(t *testing.T) {
	store := memory.NewMemStore()
	recordFailure(t, store, "bakery-002", growth.ExpReferralProgram)
	h := newHarness(WithMemory(store))

	res, err := h.orch.Run(context.Background(), coffeeRequest())
	require.NoError(t, err)

	assert.Len(t, res.Plan.Experiments, 2)
	assert.Equal(t, growth.ExpReferralProgram, res.Plan.ChosenExperiment.Experiment.Name)
}

func TestRun_AllCandidatesFailedKeepsUnfiltered(t *testing.T) {
	store := memory.NewMemStore()
	ctx := context.Background()
	recordFailure(t, store, "coffee-001", growth.ExpReferralProgram)
	recordFailure(t, store, "coffee-001", growth.ExpLeadMagnetLandingPage)
	h := newHarness(WithMemory(store))

	res, err := h.orch.Run(ctx, coffeeRequest())
	require.NoError(t, err)

	assert.Len(t, res.Plan.Experiments, 2)
	assert.Equal(t, growth.ExpReferralProgram, res.Plan.ChosenExperiment.Experiment.Name)

	filtered, _ := Get(res.Context, MetaFilteredByMemory)
	proposed, _ := Get(res.Context, MetaProposedExperiments)
	assert.Equal(t, 0, filtered)
	assert.Equal(t, 2, proposed)

	var fallback bool
	for _, e := range res.Context.History() {
		if e.Stage == StageStrategy && e.Action == "memory fallback" {
			fallback = true
		}
	}
	assert.True(t, fallback)
}

func TestRun_MemoryErrorProceedsUnfiltered(t *testing.T) {
	h := newHarness(WithMemory(failingStore{err: errors.New("database is locked")}))

	res, err := h.orch.Run(context.Background(), coffeeRequest())
	require.NoError(t, err)

	assert.Len(t, res.Plan.Experiments, 2)
	assert.Equal(t, growth.ExpReferralProgram, res.Plan.ChosenExperiment.Experiment.Name)
	h.logger.AssertLogged(t, zapcore.WarnLevel, "strategy memory unavailable")
}

func TestRun_CanceledBeforeStart(t *testing.T) {
	c := &recordingCommentator{}
	h := newHarness(WithCommentator(c))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := h.orch.Run(ctx, coffeeRequest())
	require.Error(t, err)
	require.NotNil(t, res)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageIntake, stageErr.Stage)
	assert.ErrorIs(t, err, context.Canceled)

	history := res.Context.History()
	require.NotEmpty(t, history)
	last := history[len(history)-1]
	assert.Equal(t, StageOrchestrator, last.Stage)
	assert.Equal(t, "ERROR", last.Action)
	assert.Contains(t, last.Data, "Intake")

	assert.Zero(t, c.calls())
	assert.Empty(t, res.Plan.TraceID)
	h.logger.AssertField(t, "stage failed", "stage", StageIntake)
}

func TestRun_CanceledBetweenStages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &recordingCommentator{}
	h := newHarness(WithMemory(cancelingStore{cancel: cancel}), WithCommentator(c))

	res, err := h.orch.Run(ctx, coffeeRequest())

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageScoring, stageErr.Stage)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, c.calls())

	_, judged := Get(res.Context, MetaTopExperiment)
	assert.False(t, judged)
}

func TestRun_CustomCommentator(t *testing.T) {
	c := &recordingCommentator{}
	h := newHarness(WithCommentator(c))

	res, err := h.orch.Run(context.Background(), coffeeRequest())
	require.NoError(t, err)

	require.Equal(t, 1, c.calls())
	seen := c.plans[0]
	assert.Equal(t, "abcd1234", seen.TraceID)
	assert.Equal(t, res.Plan.CopySuggestion, seen.CopySuggestion)
	assert.Empty(t, seen.StrategyCommentary)

	assert.Equal(t, "brief\n\nRevenue Opportunity: $6,930.00 if bottleneck is fixed\n[Trace: abcd1234]",
		res.Plan.StrategyCommentary)

	_, named := Get(res.Context, MetaCommentaryModel)
	assert.False(t, named)
}

func TestRun_Deterministic(t *testing.T) {
	h := newHarness()

	first, err := h.orch.Run(context.Background(), coffeeRequest())
	require.NoError(t, err)
	second, err := h.orch.Run(context.Background(), coffeeRequest())
	require.NoError(t, err)

	assert.Equal(t, first.Plan, second.Plan)
}

func TestRun_ConcurrentRuns(t *testing.T) {
	store := memory.NewMemStore()
	orch := New(WithMemory(store))

	var wg sync.WaitGroup
	traces := make([]string, 16)
	errs := make([]error, 16)
	for i := range traces {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := coffeeRequest()
			req.BusinessProfile.BusinessID = fmt.Sprintf("biz-%d", i%4)
			res, err := orch.Run(context.Background(), req)
			errs[i] = err
			if res != nil {
				traces[i] = res.Plan.TraceID
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := range traces {
		require.NoError(t, errs[i])
		assert.Len(t, traces[i], 8)
		assert.False(t, seen[traces[i]], "duplicate trace id %s", traces[i])
		seen[traces[i]] = true
	}
}

func TestRun_Metrics(t *testing.T) {
	m := NewMetrics()
	h := newHarness(WithMetrics(m))

	okBefore := testutil.ToFloat64(m.RunsTotal.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(m.RunsTotal.WithLabelValues("error"))
	chosenBefore := testutil.ToFloat64(m.ChosenExperiments.WithLabelValues(growth.ExpReferralProgram))

	_, err := h.orch.Run(context.Background(), coffeeRequest())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.orch.Run(ctx, coffeeRequest())
	require.Error(t, err)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(m.RunsTotal.WithLabelValues("ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(m.RunsTotal.WithLabelValues("error")))
	assert.Equal(t, chosenBefore+1, testutil.ToFloat64(m.ChosenExperiments.WithLabelValues(growth.ExpReferralProgram)))
	assert.Same(t, m, NewMetrics())
}

func TestJudgeStage_EmptyCandidates(t *testing.T) {
	rc := newRunContext("abcd1234", fixedClock())

	_, err := JudgeStage{}.Run(context.Background(), nil, rc)
	require.ErrorIs(t, err, growth.ErrNoCandidates)

	_, set := Get(rc, MetaTopExperiment)
	assert.False(t, set)
}

func TestStrategyStage_NilMemory(t *testing.T) {
	rc := newRunContext("abcd1234", fixedClock())
	insight := growth.FunnelInsight{FromStep: growth.StepLeads, ToStep: growth.StepSignups}

	exps, err := StrategyStage{}.Run(context.Background(), StrategyInput{Insight: insight}, rc)
	require.NoError(t, err)

	require.Len(t, exps, 2)
	assert.Equal(t, growth.ExpOnboardingNurture, exps[0].Name)
	assert.Equal(t, growth.ExpLiveDemo, exps[1].Name)
}

func TestRun_NilCommentatorUsesTemplate(t *testing.T) {
	h := newHarness(WithCommentator(nil))

	res, err := h.orch.Run(context.Background(), coffeeRequest())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.Plan.StrategyCommentary, commentary.Fallback(res.Plan)))
	assert.True(t, strings.HasSuffix(res.Plan.StrategyCommentary, "\n[Trace: abcd1234]"))
}

func TestCommentaryStage_NilCommentator(t *testing.T) {
	rc := newRunContext("abcd1234", fixedClock())
	res, err := newHarness().orch.Run(context.Background(), coffeeRequest())
	require.NoError(t, err)

	var text string
	require.NotPanics(t, func() {
		text, err = CommentaryStage{}.Run(context.Background(), res.Plan, rc)
	})
	require.NoError(t, err)
	assert.Equal(t, commentary.Fallback(res.Plan)+"\n[Trace: abcd1234]", text)
}

func TestRun_CommentaryModelSuffix(t *testing.T) {
	tests := []struct {
		name   string
		model  string
		suffix string
	}{
		{"provider model", "gemini-2.0-flash", "\n[Trace: abcd1234] | Model: gemini-2.0-flash"},
		{"template", commentary.ModelTemplate, "\n[Trace: abcd1234]"},
		{"unnamed", "", "\n[Trace: abcd1234]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(WithCommentator(namedCommentator{model: tt.model}))

			res, err := h.orch.Run(context.Background(), coffeeRequest())
			require.NoError(t, err)

			assert.True(t, strings.HasSuffix(res.Plan.StrategyCommentary, tt.suffix), res.Plan.StrategyCommentary)
			model, _ := Get(res.Context, MetaCommentaryModel)
			assert.Equal(t, tt.model, model)
		})
	}
}
