package examples

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statwizard/domain/analysis"
	"statwizard/domain/core"
	"statwizard/domain/dataset"
	"statwizard/internal/validation"
)

func TestEveryExampleLoads(t *testing.T) {
	l := NewLoader()
	require.Len(t, l.List(), 5)
	for _, ex := range l.List() {
		t.Run(ex.Key, func(t *testing.T) {
			ds, err := l.Load(ex.Key)
			require.NoError(t, err)
			assert.Equal(t, dataset.SourceExample, ds.Source)
			assert.Equal(t, ex.Key, ds.ExampleKey)
			assert.NotEmpty(t, ds.NumericColumns())
		})
	}
}

// Each example runs its suggested analysis with default selections and no
// blocking check.
func TestSuggestedAnalysisPassesValidation(t *testing.T) {
	l := NewLoader()
	catalog := analysis.DefaultCatalog()
	for _, ex := range l.List() {
		t.Run(ex.Key, func(t *testing.T) {
			def, err := catalog.Get(ex.Suggested)
			require.NoError(t, err)
			ds, err := l.Load(ex.Key)
			require.NoError(t, err)

			in := analysis.Input{Dataset: ds, Selections: def.Defaults(ds)}
			checks := validation.NewRuleSet(def, validation.DefaultPolicy().For(def)).Evaluate(in)
			assert.Empty(t, analysis.BlockingChecks(checks))
		})
	}
}

func TestLoadGivesFreshIdentity(t *testing.T) {
	l := NewLoader()
	a, err := l.Load("housing")
	require.NoError(t, err)
	b, err := l.Load("housing")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestUnknownExample(t *testing.T) {
	_, err := NewLoader().Load("nope")
	assert.ErrorIs(t, err, core.ErrExampleNotFound)
	assert.True(t, core.IsNotFound(err))
}

func TestForAnalysis(t *testing.T) {
	exs := NewLoader().ForAnalysis(analysis.ControlChart)
	require.Len(t, exs, 1)
	assert.Equal(t, "fill-weights", exs[0].Key)
}
