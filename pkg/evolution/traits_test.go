package evolution_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/lumenqi/lumen-core/pkg/evolution"
)

func TestTraitRegistry_Defaults(t *testing.T) {
	r := evolution.NewTraitRegistry()
	values := r.Values()
	require.Len(t, values, len(evolution.TraitNames))
	for _, name := range evolution.TraitNames {
		assert.Equal(t, evolution.DefaultTraitValue, values[name])
	}

	_, err := r.Value("sarcasm")
	assert.ErrorIs(t, err, evolution.ErrUnknownTrait)
}

func TestTraitRegistry_ApplyCapsNetChange(t *testing.T) {
	r := evolution.NewTraitRegistry()
	now := time.Now()

	changes := r.Apply([]evolution.TraitDelta{
		{Trait: evolution.TraitHumor, Delta: 0.08, Source: "self", Reason: "keyword: haha"},
		{Trait: evolution.TraitHumor, Delta: 0.08, Source: "self", Reason: "keyword: haha"},
		{Trait: evolution.TraitHumor, Delta: 0.08, Source: "self", Reason: "keyword: joke"},
		{Trait: evolution.TraitWarmth, Delta: 0.05, Reason: "keyword: thanks"},
		{Trait: evolution.TraitWarmth, Delta: -0.05, Reason: "cancelled"},
		{Trait: "sarcasm", Delta: 0.5},
	}, now)

	require.Len(t, changes, 1, "warmth nets to zero and unknown traits are ignored")
	assert.Equal(t, evolution.TraitHumor, changes[0].Trait)
	assert.InDelta(t, 0.6, changes[0].Current, 1e-9)

	humor, err := r.Value(evolution.TraitHumor)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, humor, 1e-9)

	var trait *evolution.Trait
	for _, tr := range r.Snapshot() {
		if tr.Name == evolution.TraitHumor {
			trait = tr
		}
	}
	require.NotNil(t, trait)
	require.Len(t, trait.InfluenceLog, 1)
	assert.Equal(t, "keyword: haha; keyword: joke", trait.InfluenceLog[0].Reason)
	assert.InDelta(t, 0.1, trait.InfluenceLog[0].Magnitude, 1e-9)
	assert.Equal(t, now, trait.InfluenceLog[0].Timestamp)
}

func TestTraitRegistry_InfluenceLogIsBounded(t *testing.T) {
	r := evolution.NewTraitRegistry()
	now := time.Now()
	for i := 0; i < evolution.MaxInfluenceLog+50; i++ {
		delta := 0.01
		if i%2 == 1 {
			delta = -0.01
		}
		r.Apply([]evolution.TraitDelta{{Trait: evolution.TraitCuriosity, Delta: delta}}, now)
	}
	for _, tr := range r.Snapshot() {
		if tr.Name == evolution.TraitCuriosity {
			assert.Len(t, tr.InfluenceLog, evolution.MaxInfluenceLog)
		}
	}
}

func TestTraitRegistry_Replace(t *testing.T) {
	r := evolution.NewTraitRegistry()
	r.Replace([]*evolution.Trait{
		{Name: evolution.TraitFormality, Value: 1.4},
		{Name: "sarcasm", Value: 0.9},
		nil,
	})

	values := r.Values()
	assert.Len(t, values, len(evolution.TraitNames))
	assert.Equal(t, 1.0, values[evolution.TraitFormality])
	assert.Equal(t, evolution.DefaultTraitValue, values[evolution.TraitHumor])
}

func TestProperty_TraitValuesStayInRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := evolution.NewTraitRegistry()
		now := time.Now()
		names := rapid.SampledFrom(evolution.TraitNames)

		for i := 0; i < 1000; i++ {
			name := names.Draw(rt, "trait")
			before, _ := r.Value(name)
			delta := rapid.Float64Range(-1, 1).Draw(rt, "delta")
			r.Apply([]evolution.TraitDelta{{Trait: name, Delta: delta}}, now)

			after, err := r.Value(name)
			require.NoError(rt, err)
			require.GreaterOrEqual(rt, after, 0.0)
			require.LessOrEqual(rt, after, 1.0)
			require.LessOrEqual(rt, after-before, evolution.DefaultChangeRate+1e-9)
			require.GreaterOrEqual(rt, after-before, -evolution.DefaultChangeRate-1e-9)
		}
	})
}

func TestTraitDeltas(t *testing.T) {
	deltas := evolution.TraitDeltas(evolution.Interaction{
		Query:   "haha I'm stuck on this code, thanks",
		Emotion: "sad",
		Source:  "hosted_model",
	})

	sums := make(map[string]float64)
	for _, d := range deltas {
		sums[d.Trait] += d.Delta
	}
	assert.InDelta(t, 0.08, sums[evolution.TraitHumor], 1e-9)
	assert.InDelta(t, 0.0, sums[evolution.TraitPlayfulness], 1e-9, "+0.03 humor, -0.03 sadness")
	assert.InDelta(t, 0.17, sums[evolution.TraitSupportiveness], 1e-9)
	assert.InDelta(t, 0.05, sums[evolution.TraitEmpathy], 1e-9)
	assert.InDelta(t, 0.05, sums[evolution.TraitTechnicalDepth], 1e-9)
	assert.InDelta(t, 0.05, sums[evolution.TraitWarmth], 1e-9)
	assert.NotContains(t, sums, evolution.TraitCuriosity)

	assert.Empty(t, evolution.TraitDeltas(evolution.Interaction{Query: "the weather today", Emotion: "neutral"}))
}
