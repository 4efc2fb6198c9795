package core_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lumenqi/lumen-core/pkg/core"
	"github.com/lumenqi/lumen-core/pkg/llm"
	"github.com/lumenqi/lumen-core/pkg/memory"
	"github.com/lumenqi/lumen-core/pkg/orchestrator"
)

type fakeProvider struct {
	mu     sync.Mutex
	reply  string
	err    error
	calls  int
	closed bool
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return f.GenerateWithMessages(ctx, llm.UserPrompt(prompt), opts...)
}

func (f *fakeProvider) GenerateWithMessages(_ context.Context, _ []llm.Message, _ ...llm.GenerateOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.reply, f.err
}

func (f *fakeProvider) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type healthyProvider struct {
	fakeProvider
}

func (h *healthyProvider) HealthCheck(context.Context) (llm.HealthStatus, error) {
	return llm.HealthStatus{Healthy: true, Status: "ok", Models: []string{"llama3.1:8b"}}, nil
}

type fixedRand int

func (r fixedRand) IntN(n int) int { return int(r) % n }

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig(dir string) *core.Config {
	cfg := core.DefaultConfig()
	cfg.Storage.Provider = core.ProviderFile
	cfg.Storage.File.Dir = dir
	cfg.Orchestrator.SourceTimeout = core.Duration(2 * time.Second)
	return cfg
}

func newCompanion(t *testing.T, dir string, hosted, local llm.Provider, opts ...core.Option) *core.Companion {
	t.Helper()
	base := []core.Option{
		core.WithHostedProvider(hosted),
		core.WithLocalProvider(local),
		core.WithLogger(zaptest.NewLogger(t)),
		core.WithRand(fixedRand(0)),
		core.WithClock(func() time.Time { return baseTime }),
	}
	c, err := core.New(testConfig(dir), append(base, opts...)...)
	require.NoError(t, err)
	return c
}

func TestCompanion_HostedAnswerBelowThreshold(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "autonomy.json"), []byte(`{"level": 10}`), 0o600))

	hosted := &fakeProvider{reply: "Sure, React components are functions that return JSX."}
	local := &fakeProvider{reply: "local"}
	c := newCompanion(t, dir, hosted, local)
	defer c.Close()

	require.InDelta(t, 10.0, c.GetStats().AutonomyLevel, 1e-9)

	resp := c.Generate(context.Background(), "Can you help me with React?", core.Context{}, nil)
	assert.Equal(t, hosted.reply, resp.Content)
	assert.Equal(t, memory.SourceHostedModel, resp.Source)
	assert.InDelta(t, 0.9, resp.Confidence, 1e-9)
	assert.NotZero(t, resp.MemoryID)
	assert.Equal(t, 0, local.calls)

	stats := c.GetStats()
	assert.Equal(t, 1, stats.MemoryCount)
	assert.Equal(t, 1, stats.MemorySources[memory.SourceHostedModel])
	assert.Equal(t, 1, stats.SourceDistribution[memory.SourceHostedModel])
}

func TestCompanion_StatePersistsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	hosted := &fakeProvider{reply: "Rainy days are perfect for reading."}

	c := newCompanion(t, dir, hosted, nil)
	c.Generate(context.Background(), "I love rainy days", core.Context{}, nil)
	require.NoError(t, c.Close())
	assert.True(t, hosted.closed)

	for _, doc := range []string{"memories", "patterns", "traits", "autonomy"} {
		assert.FileExists(t, filepath.Join(dir, doc+".json"))
	}

	reopened := newCompanion(t, dir, &fakeProvider{reply: "x"}, nil)
	defer reopened.Close()
	stats := reopened.GetStats()
	assert.Equal(t, 1, stats.MemoryCount)
	assert.Equal(t, 1, stats.PatternCount)
	assert.Equal(t, 1, stats.SourceDistribution[memory.SourceHostedModel])
}

func TestCompanion_AllSourcesFail(t *testing.T) {
	hosted := &fakeProvider{err: errors.New("rate limited")}
	local := &fakeProvider{err: errors.New("connection refused")}
	c := newCompanion(t, t.TempDir(), hosted, local)
	defer c.Close()

	var resp core.Response
	require.NotPanics(t, func() {
		resp = c.Generate(context.Background(), "hello there", core.Context{}, nil)
	})
	assert.Equal(t, orchestrator.Apology, resp.Content)
	assert.Equal(t, memory.SourceNone, resp.Source)

	stats := c.GetStats()
	assert.Equal(t, 1, stats.MemoryCount)
	assert.Equal(t, 1, stats.MemorySources[memory.SourceNone])
	assert.Equal(t, 0, stats.PatternCount)
}

func TestCompanion_EvolutionRaisesAutonomy(t *testing.T) {
	c := newCompanion(t, t.TempDir(), &fakeProvider{reply: "ok"}, nil)
	defer c.Close()
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		c.Learn(ctx, core.Interaction{
			Query:         "haha tell me a funny joke",
			Response:      "Why did the scarecrow win an award? He was outstanding in his field.",
			Source:        memory.SourceSelf,
			Confidence:    0.9,
			Effectiveness: core.Effectiveness(0.9),
		})
	}

	before := c.GetStats()
	for i := 0; i < 5; i++ {
		report, err := c.ForceEvolutionCycle(ctx)
		require.NoError(t, err)
		assert.Equal(t, "forced", report.Trigger)
		assert.Greater(t, report.PatternEffectiveness, 0.9)
	}

	after := c.GetStats()
	assert.GreaterOrEqual(t, after.AutonomyLevel-before.AutonomyLevel, 10.0)
	assert.Equal(t, before.SelfModificationCount+5, after.SelfModificationCount)
	assert.Equal(t, baseTime, after.LastCycleAt)
	assert.Equal(t, "idle", after.CycleState)
	assert.Equal(t, 1, after.PatternCount)
	assert.Greater(t, after.PatternEffectiveness, 0.9)
	assert.InDelta(t, 0.6, after.TraitValues["humor"], 1e-9, "one capped step for one batch of jokes")
	for _, v := range after.Capabilities {
		assert.InDelta(t, 0.2, v, 1e-9)
	}
}

func TestCompanion_ForceEvolutionCycleAfterClose(t *testing.T) {
	c := newCompanion(t, t.TempDir(), &fakeProvider{reply: "ok"}, nil)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.ForceEvolutionCycle(context.Background())
	assert.ErrorIs(t, err, core.ErrClosed)
}

func TestCompanion_CorruptDocumentFailsConstruction(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "memories.json"), []byte("{not json"), 0o600))

	_, err := core.New(testConfig(dir),
		core.WithHostedProvider(&fakeProvider{reply: "ok"}),
		core.WithLocalProvider(nil),
		core.WithLogger(zaptest.NewLogger(t)),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStorageOperation)
	var coreErr *core.CoreError
	assert.True(t, errors.As(err, &coreErr))
	assert.Equal(t, "Load", coreErr.Op)
}

func TestCompanion_MetricsAndHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	local := &healthyProvider{fakeProvider{reply: "local answer"}}
	c := newCompanion(t, t.TempDir(), &fakeProvider{err: errors.New("down")}, local, core.WithRegistry(reg))
	defer c.Close()

	resp := c.Generate(context.Background(), "what should I cook tonight", core.Context{}, nil)
	assert.Equal(t, memory.SourceLocalModel, resp.Source)
	assert.InDelta(t, 0.5, resp.Confidence, 1e-9)

	count, err := testutil.GatherAndCount(reg, "lumen_responses_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	// hosted error, self skipped, local success
	count, err = testutil.GatherAndCount(reg, "lumen_source_attempts_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	health := c.Health(context.Background())
	require.Contains(t, health, memory.SourceLocalModel)
	assert.True(t, health[memory.SourceLocalModel].Healthy)
	assert.NotContains(t, health, memory.SourceHostedModel)
}

func TestCompanion_Async(t *testing.T) {
	hosted := &fakeProvider{reply: "Once upon a time there was a lighthouse keeper."}
	c := newCompanion(t, t.TempDir(), hosted, nil)

	resp := <-c.GenerateAsync(context.Background(), "tell me a story", core.Context{}, nil)
	assert.Equal(t, hosted.reply, resp.Content)
	assert.Equal(t, core.SourceHostedModel, resp.Source)

	result := <-c.ForceEvolutionCycleAsync(context.Background())
	require.NoError(t, result.Error)
	assert.Equal(t, 1, result.Report.SelfModificationCount)

	require.NoError(t, c.Close())

	resp = <-c.GenerateAsync(context.Background(), "anyone there?", core.Context{}, nil)
	assert.Equal(t, orchestrator.Apology, resp.Content)
	result = <-c.ForceEvolutionCycleAsync(context.Background())
	assert.ErrorIs(t, result.Error, core.ErrClosed)
}
