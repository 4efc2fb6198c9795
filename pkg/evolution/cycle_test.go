package evolution_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenqi/lumen-core/pkg/evolution"
	"github.com/lumenqi/lumen-core/pkg/memory"
)

type fixture struct {
	memories  *memory.Store
	patterns  *memory.PatternStore
	traits    *evolution.TraitRegistry
	estimator *evolution.Estimator
	window    *evolution.Window
	persisted int
	observed  []evolution.CycleReport
	now       time.Time
}

func (f *fixture) ObserveCycle(report evolution.CycleReport, err error) {
	f.observed = append(f.observed, report)
}

func newFixture(t *testing.T, persist func(ctx context.Context) error) (*fixture, *evolution.Engine) {
	t.Helper()
	f := &fixture{
		memories:  memory.NewStore(memory.DefaultConfig(), nil),
		patterns:  memory.NewPatternStore(memory.DefaultPatternConfig(), nil),
		traits:    evolution.NewTraitRegistry(),
		estimator: evolution.NewEstimator(),
		window:    evolution.NewWindow(evolution.DefaultWindowSize),
		now:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if persist == nil {
		persist = func(context.Context) error {
			f.persisted++
			return nil
		}
	}
	engine, err := evolution.NewEngine(evolution.EngineConfig{
		Memories:  f.memories,
		Patterns:  f.patterns,
		Traits:    f.traits,
		Estimator: f.estimator,
		Window:    f.window,
		Persist:   persist,
		Observer:  f,
		Now:       func() time.Time { return f.now },
	})
	require.NoError(t, err)
	return f, engine
}

func addInteractions(w *evolution.Window, n int, in evolution.Interaction) {
	for i := 0; i < n; i++ {
		w.Add(in)
	}
}

func TestNewEngine_RequiresStores(t *testing.T) {
	_, err := evolution.NewEngine(evolution.EngineConfig{})
	assert.Error(t, err)
}

func TestEngine_RepeatedSuccessRaisesLevel(t *testing.T) {
	f, engine := newFixture(t, nil)
	addInteractions(f.window, 20, evolution.Interaction{
		Query:         "Can you help me with React?",
		Response:      "Sure.",
		Source:        memory.SourceSelf,
		Confidence:    0.9,
		Effectiveness: 0.9,
	})

	for i := 0; i < 5; i++ {
		_, err := engine.Run(context.Background(), evolution.TriggerForced)
		require.NoError(t, err)
	}

	state := f.estimator.Snapshot()
	assert.GreaterOrEqual(t, state.Level, 10.0)
	assert.Equal(t, 15.0, state.Level, "+2 and +1 bonus per cycle")
	assert.Equal(t, 5, state.SelfModificationCount)
	assert.Len(t, state.History, 5)
	assert.Equal(t, evolution.TriggerForced, state.History[4].Trigger)
	assert.Equal(t, 5, f.persisted)
	require.Len(t, f.observed, 5)
	assert.Equal(t, 20, f.observed[0].Window.New)
	assert.Equal(t, 0, f.observed[1].Window.New)
	assert.Equal(t, 20, f.observed[1].Window.Total, "the window is not drained")
	assert.Empty(t, f.observed[1].TraitChanges, "triggers apply to new interactions only")

	assert.InDelta(t, evolution.DefaultCapability+5*0.02, state.Capabilities[evolution.CapabilityReasoning], 1e-9)
	supportiveness, _ := f.traits.Value(evolution.TraitSupportiveness)
	assert.InDelta(t, 0.5+0.1, supportiveness, 1e-9, "capped at ChangeRate")
	assert.Equal(t, 0, f.window.Len(), "expired after WindowCycles reads")
}

func TestEngine_LevelNeedsSelfAnswers(t *testing.T) {
	f, engine := newFixture(t, nil)
	addInteractions(f.window, 10, evolution.Interaction{Query: "tell me a story", Source: memory.SourceHostedModel, Confidence: 0.9, Effectiveness: 0.9})

	report, err := engine.Run(context.Background(), evolution.TriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, 0.0, report.LevelAfter)
	assert.Equal(t, 60.0, report.Threshold)
	assert.Equal(t, evolution.ChainFor(0), report.FallbackChain)
	assert.InDelta(t, evolution.DefaultCapability+0.04, report.Capabilities[evolution.CapabilityCreativity], 1e-9)
	assert.InDelta(t, evolution.DefaultCapability+0.02, report.Capabilities[evolution.CapabilityEmpathy], 1e-9)
}

func TestEngine_HighLevelMovesSelfFirst(t *testing.T) {
	f, engine := newFixture(t, nil)
	f.estimator.SetLevel(80)
	addInteractions(f.window, 5, evolution.Interaction{Query: "react", Source: memory.SourceSelf, Effectiveness: 0.6})

	report, err := engine.Run(context.Background(), evolution.TriggerForced)
	require.NoError(t, err)
	assert.Equal(t, 82.0, report.LevelAfter)
	assert.Equal(t, memory.SourceSelf, f.estimator.Chain()[0])
}

func TestEngine_ConsolidatesAndDecays(t *testing.T) {
	f, engine := newFixture(t, nil)
	old := f.now.Add(-40 * 24 * time.Hour)
	require.NoError(t, f.memories.Add(&memory.Memory{ID: 1, Content: tenWords, Importance: 5, Confidence: 0.9, CreatedAt: old}))
	require.NoError(t, f.memories.Add(&memory.Memory{ID: 2, Content: nineWords, Importance: 5, Confidence: 0.9, CreatedAt: old.Add(time.Minute)}))
	require.NoError(t, f.memories.Add(&memory.Memory{ID: 3, Content: "forgettable chatter", Importance: 1, Confidence: 0.5, CreatedAt: old}))

	report, err := engine.Run(context.Background(), evolution.TriggerForced)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Consolidation.Merged)
	assert.Equal(t, 1, report.Decay.MemoriesRemoved)
	assert.Equal(t, 1, f.memories.Len())
}

func TestEngine_PersistFailureIsSwallowed(t *testing.T) {
	f, engine := newFixture(t, func(context.Context) error { return errors.New("disk full") })
	_, err := engine.Run(context.Background(), evolution.TriggerForced)
	require.NoError(t, err)
	assert.Equal(t, 1, f.estimator.Snapshot().SelfModificationCount)
}

func TestEngine_PanicIsRecovered(t *testing.T) {
	f, engine := newFixture(t, func(context.Context) error { panic("boom") })
	addInteractions(f.window, 5, evolution.Interaction{Query: "react", Source: memory.SourceSelf, Effectiveness: 0.9})

	_, err := engine.Run(context.Background(), evolution.TriggerForced)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	state := f.estimator.Snapshot()
	assert.Equal(t, 3.0, state.Level, "steps before the panic stay applied")
	require.Len(t, f.observed, 1)
}

func TestEngine_RunsToCompletionOnCancelledContext(t *testing.T) {
	f, engine := newFixture(t, nil)
	addInteractions(f.window, 5, evolution.Interaction{Query: "haha react", Source: memory.SourceSelf, Effectiveness: 0.9})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := engine.Run(ctx, evolution.TriggerForced)
	require.NoError(t, err)
	assert.NotEmpty(t, report.TraitChanges)

	state := f.estimator.Snapshot()
	assert.Equal(t, 3.0, state.Level)
	assert.Equal(t, 1, state.SelfModificationCount)
	assert.Len(t, state.History, 1)
	assert.Equal(t, 1, f.persisted)
}

func TestEngine_IdleCycleLeavesTraitsUnchanged(t *testing.T) {
	f, engine := newFixture(t, nil)
	f.window.Add(evolution.Interaction{Query: "haha that was funny", Source: memory.SourceHostedModel, Effectiveness: 0.9})

	_, err := engine.Run(context.Background(), evolution.TriggerScheduled)
	require.NoError(t, err)
	humor, _ := f.traits.Value(evolution.TraitHumor)
	assert.InDelta(t, 0.58, humor, 1e-9)
	values := f.traits.Values()

	for i := 0; i < 4; i++ {
		report, err := engine.Run(context.Background(), evolution.TriggerScheduled)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Window.New)
		assert.Empty(t, report.TraitChanges)
	}
	assert.Equal(t, values, f.traits.Values())
}

func TestEngine_IdleCyclesStopRaisingLevel(t *testing.T) {
	f, engine := newFixture(t, nil)
	addInteractions(f.window, 4, evolution.Interaction{Query: "react", Source: memory.SourceSelf, Effectiveness: 0.9})

	for i := 0; i < 30; i++ {
		_, err := engine.Run(context.Background(), evolution.TriggerScheduled)
		require.NoError(t, err)
	}

	state := f.estimator.Snapshot()
	assert.Equal(t, float64(evolution.WindowCycles*3), state.Level, "each interaction counts for WindowCycles cycles")
	assert.Equal(t, evolution.ChainFor(state.Level), state.FallbackChain)
	assert.NotEqual(t, memory.SourceSelf, state.FallbackChain[0])
	assert.Equal(t, 0, f.observed[29].Window.Total)
	assert.Equal(t, 30, state.SelfModificationCount)
}

func TestWindow_FreshTailAndExpiry(t *testing.T) {
	w := evolution.NewWindow(3)
	for _, q := range []string{"a", "b", "c", "d"} {
		w.Add(evolution.Interaction{Query: q})
	}
	items, fresh := w.Read()
	require.Len(t, items, 3)
	assert.Equal(t, 3, fresh, "fresh never exceeds the window size")
	assert.Equal(t, "b", items[0].Query)

	w.Add(evolution.Interaction{Query: "e"})
	items, fresh = w.Read()
	require.Len(t, items, 3)
	assert.Equal(t, 1, fresh)
	assert.Equal(t, "e", items[len(items)-fresh].Query)

	for i := 0; i < evolution.WindowCycles; i++ {
		w.Read()
	}
	assert.Equal(t, 0, w.Len())
}

func TestEngine_HoldsWriterLock(t *testing.T) {
	var lock sync.Mutex
	engine, err := evolution.NewEngine(evolution.EngineConfig{
		Memories:  memory.NewStore(memory.DefaultConfig(), nil),
		Patterns:  memory.NewPatternStore(memory.DefaultPatternConfig(), nil),
		Traits:    evolution.NewTraitRegistry(),
		Estimator: evolution.NewEstimator(),
		Window:    evolution.NewWindow(0),
		Lock:      &lock,
		Persist: func(context.Context) error {
			assert.False(t, lock.TryLock(), "lock is held while persisting")
			return nil
		},
	})
	require.NoError(t, err)
	_, err = engine.Run(context.Background(), evolution.TriggerForced)
	require.NoError(t, err)
	assert.True(t, lock.TryLock())
}

const (
	tenWords  = "alpha bravo charlie delta echo foxtrot golf hotel india juliet"
	nineWords = "alpha bravo charlie delta echo foxtrot golf hotel india"
)
