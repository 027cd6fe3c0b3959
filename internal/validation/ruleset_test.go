package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"statwizard/domain/analysis"
	"statwizard/domain/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeDataset builds n rows over the given numeric columns with distinct values.
func makeDataset(t *testing.T, n int, cols ...string) *dataset.Dataset {
	t.Helper()
	rows := make([]dataset.Row, n)
	for i := range rows {
		row := dataset.Row{}
		for j, c := range cols {
			row[c] = fmt.Sprint(float64((i*7+j*3)%17) + float64(i)/10)
		}
		rows[i] = row
	}
	ds, err := dataset.New("t", dataset.SourceUpload, cols, rows)
	require.NoError(t, err)
	return ds
}

func regressionRules(t *testing.T) (*analysis.Definition, *RuleSet) {
	t.Helper()
	def, err := analysis.DefaultCatalog().Get(analysis.LinearRegression)
	require.NoError(t, err)
	return def, NewRuleSet(def, DefaultPolicy().For(def))
}

func findCheck(t *testing.T, checks []analysis.Check, id string) analysis.Check {
	t.Helper()
	for _, c := range checks {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("check %s not found in %+v", id, checks)
	return analysis.Check{}
}

func TestNoSelectionFailsRequiredVariableCheck(t *testing.T) {
	_, rules := regressionRules(t)
	ds := makeDataset(t, 50, "a", "b", "c", "d", "e")

	checks := rules.Evaluate(analysis.Input{Dataset: ds, Selections: analysis.Selections{}})

	c := findCheck(t, checks, "required:dependent")
	assert.False(t, c.Passed)
	assert.Equal(t, analysis.SeverityCritical, c.Severity)
	assert.Equal(t, "Dependent variable selected", c.Label)
	assert.Equal(t, "No variable selected", c.Detail)
	assert.True(t, analysis.HasBlocking(checks))
}

func TestSampleSizeDetailReportsN(t *testing.T) {
	_, rules := regressionRules(t)
	ds := makeDataset(t, 40, "a", "b")

	checks := rules.Evaluate(analysis.Input{Dataset: ds, Selections: analysis.Selections{
		"dependent": {"a"}, "independents": {"b"}, "degree": {"1"}, "confidence_level": {"0.95"},
	}})

	c := findCheck(t, checks, "sample_size")
	assert.True(t, c.Passed)
	assert.Contains(t, c.Detail, "n = 40")
	assert.Equal(t, "Sufficient sample size", c.Label)
	assert.False(t, analysis.HasBlocking(checks), "%+v", analysis.BlockingChecks(checks))
}

func TestSampleSizeBelowMinimumBlocks(t *testing.T) {
	_, rules := regressionRules(t)
	ds := makeDataset(t, 12, "a", "b")

	checks := rules.Evaluate(analysis.Input{Dataset: ds, Selections: analysis.Selections{
		"dependent": {"a"}, "independents": {"b"},
	}})

	c := findCheck(t, checks, "sample_size")
	assert.False(t, c.Passed)
	assert.Equal(t, "n = 12, at least 30 required", c.Detail)
	assert.True(t, c.Blocking())
}

func TestEvaluateIsDeterministic(t *testing.T) {
	_, rules := regressionRules(t)
	ds := makeDataset(t, 35, "a", "b", "c")
	in := analysis.Input{Dataset: ds, Selections: analysis.Selections{
		"dependent": {"a"}, "independents": {"b", "a"}, "degree": {"9"},
	}}

	first := rules.Evaluate(in)
	second := rules.Evaluate(in)
	assert.Equal(t, first, second)
}

func TestDependentCannotBeIndependent(t *testing.T) {
	_, rules := regressionRules(t)
	ds := makeDataset(t, 40, "a", "b")

	checks := rules.Evaluate(analysis.Input{Dataset: ds, Selections: analysis.Selections{
		"dependent": {"a"}, "independents": {"a", "b"},
	}})

	c := findCheck(t, checks, "exclusive:independents")
	assert.False(t, c.Passed)
	assert.Equal(t, analysis.SeverityCritical, c.Severity)
	assert.Equal(t, "a is already the dependent variable", c.Detail)
}

func TestChecksAreOrderedMostCriticalFirst(t *testing.T) {
	_, rules := regressionRules(t)
	ds := makeDataset(t, 10, "a", "b")

	checks := rules.Evaluate(analysis.Input{Dataset: ds, Selections: analysis.Selections{"dependent": {"a"}}})

	rank := map[analysis.Severity]int{analysis.SeverityCritical: 0, analysis.SeverityWarning: 1, analysis.SeverityInfo: 2}
	for i := 1; i < len(checks); i++ {
		assert.LessOrEqual(t, rank[checks[i-1].Severity], rank[checks[i].Severity])
	}
}

func TestValueChecks(t *testing.T) {
	_, rules := regressionRules(t)
	ds := makeDataset(t, 40, "a", "b")

	checks := rules.Evaluate(analysis.Input{Dataset: ds, Selections: analysis.Selections{
		"dependent": {"a"}, "independents": {"b"}, "degree": {"2.5"}, "confidence_level": {"0.5"},
	}})

	assert.Equal(t, "2.5 must be a whole number", findCheck(t, checks, "value:degree").Detail)
	assert.False(t, findCheck(t, checks, "value:confidence_level").Passed)
}

func TestNonNumericColumnFails(t *testing.T) {
	_, rules := regressionRules(t)
	rows := make([]dataset.Row, 40)
	for i := range rows {
		rows[i] = dataset.Row{"a": fmt.Sprint(i), "name": "x"}
	}
	ds, err := dataset.New("t", dataset.SourceUpload, []string{"a", "name"}, rows)
	require.NoError(t, err)

	checks := rules.Evaluate(analysis.Input{Dataset: ds, Selections: analysis.Selections{
		"dependent": {"a"}, "independents": {"name", "ghost"},
	}})

	c := findCheck(t, checks, "numeric:independents")
	assert.False(t, c.Passed)
	assert.Equal(t, "name (not numeric), ghost (not in dataset)", c.Detail)
}

func TestDataQualityChecksDoNotBlock(t *testing.T) {
	_, rules := regressionRules(t)
	rows := make([]dataset.Row, 40)
	for i := range rows {
		rows[i] = dataset.Row{"a": fmt.Sprint(i), "flat": "3"}
	}
	rows[5]["a"] = ""
	rows[6]["a"] = "1000"
	ds, err := dataset.New("t", dataset.SourceUpload, []string{"a", "flat"}, rows)
	require.NoError(t, err)

	checks := rules.Evaluate(analysis.Input{Dataset: ds, Selections: analysis.Selections{
		"dependent": {"a"}, "independents": {"flat"}, "degree": {"1"}, "confidence_level": {"0.95"},
	}})

	missing := findCheck(t, checks, "missing_values")
	assert.False(t, missing.Passed)
	assert.Equal(t, analysis.SeverityWarning, missing.Severity)
	assert.True(t, strings.HasPrefix(missing.Detail, "a: 1 blank"))

	assert.Equal(t, "Constant: flat", findCheck(t, checks, "variation").Detail)

	outliers := findCheck(t, checks, "outliers")
	assert.False(t, outliers.Passed)
	assert.Equal(t, analysis.SeverityInfo, outliers.Severity)

	assert.False(t, analysis.HasBlocking(checks), "%+v", analysis.BlockingChecks(checks))
}

func TestAutocorrelationLagRule(t *testing.T) {
	def, err := analysis.DefaultCatalog().Get(analysis.Autocorrelation)
	require.NoError(t, err)
	rules := NewRuleSet(def, DefaultPolicy().For(def))
	ds := makeDataset(t, 24, "x")

	checks := rules.Evaluate(analysis.Input{Dataset: ds, Selections: analysis.Selections{"variable": {"x"}, "lags": {"12"}}})
	assert.True(t, findCheck(t, checks, "lags_vs_sample").Blocking())

	checks = rules.Evaluate(analysis.Input{Dataset: ds, Selections: analysis.Selections{"variable": {"x"}, "lags": {"11"}}})
	assert.True(t, findCheck(t, checks, "lags_vs_sample").Passed)
}

func TestPolicyOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
analyses:
  linear-regression:
    min_samples: 50
    sample_severity: warning
    severity_overrides:
      missing_values: critical
`), 0o600))

	p, err := LoadPolicy(path)
	require.NoError(t, err)

	def, err := analysis.DefaultCatalog().Get(analysis.LinearRegression)
	require.NoError(t, err)
	ap := p.For(def)
	assert.Equal(t, 50, ap.MinSamples)
	assert.Equal(t, analysis.SeverityWarning, ap.SampleSeverity)
	assert.Equal(t, analysis.SeverityCritical, ap.SeverityOverrides["missing_values"])

	mc, err := analysis.DefaultCatalog().Get(analysis.MonteCarlo)
	require.NoError(t, err)
	assert.Equal(t, 3, p.For(mc).MinSamples)
	assert.Equal(t, analysis.SeverityWarning, p.For(mc).SeverityOverrides["outliers"])
}

func TestParsePolicyRejectsUnknownSeverity(t *testing.T) {
	_, err := ParsePolicy([]byte("default:\n  sample_severity: fatal\n"))
	assert.Error(t, err)

	_, err = LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestIntegerValueCheckAgreesWithRequest(t *testing.T) {
	def, err := analysis.DefaultCatalog().Get(analysis.MonteCarlo)
	require.NoError(t, err)
	rules := NewRuleSet(def, DefaultPolicy().For(def))
	ds := makeDataset(t, 40, "x")

	for _, raw := range []string{"1e3", "1000.0"} {
		sel := analysis.Selections{"variable": {"x"}, "iterations": {raw}, "horizon": {"10"}}
		checks := rules.Evaluate(analysis.Input{Dataset: ds, Selections: sel})
		assert.True(t, findCheck(t, checks, "value:iterations").Passed, raw)

		req, err := def.BuildRequest(def.NewInput(ds, sel))
		require.NoError(t, err)
		assert.Equal(t, 1000, req.Body["iterations"], raw)
	}

	checks := rules.Evaluate(analysis.Input{Dataset: ds, Selections: analysis.Selections{
		"variable": {"x"}, "iterations": {"1e30"}, "horizon": {"10"},
	}})
	assert.False(t, findCheck(t, checks, "value:iterations").Passed)
}

func TestLagRuleAcceptsDecimalWholeNumbers(t *testing.T) {
	def, err := analysis.DefaultCatalog().Get(analysis.Autocorrelation)
	require.NoError(t, err)
	rules := NewRuleSet(def, DefaultPolicy().For(def))
	ds := makeDataset(t, 24, "x")

	checks := rules.Evaluate(analysis.Input{Dataset: ds, Selections: analysis.Selections{"variable": {"x"}, "lags": {"12.0"}}})
	lag := findCheck(t, checks, "lags_vs_sample")
	assert.False(t, lag.Passed)
	assert.True(t, lag.Blocking())
}

func TestNonFiniteValuesAreRejected(t *testing.T) {
	def, err := analysis.DefaultCatalog().Get(analysis.TTest)
	require.NoError(t, err)
	rules := NewRuleSet(def, DefaultPolicy().For(def))
	ds := makeDataset(t, 30, "a")

	for _, raw := range []string{"NaN", "Inf", "-Inf", "+Infinity"} {
		checks := rules.Evaluate(analysis.Input{Dataset: ds, Selections: analysis.Selections{
			"variable_a": {"a"}, "mu": {raw}, "alternative": {"two-sided"}, "confidence_level": {"0.95"},
		}})
		c := findCheck(t, checks, "value:mu")
		assert.False(t, c.Passed, raw)
		assert.True(t, c.Blocking(), raw)
		assert.Equal(t, raw+" is not a finite number", c.Detail)
		assert.True(t, analysis.HasBlocking(checks), raw)
	}
}

func TestSampleSizeIgnoresBlankCells(t *testing.T) {
	_, rules := regressionRules(t)
	rows := make([]dataset.Row, 40)
	for i := range rows {
		rows[i] = dataset.Row{"a": fmt.Sprint(i), "b": fmt.Sprint(i % 9)}
		if i%2 == 0 {
			rows[i]["b"] = ""
		}
	}
	ds, err := dataset.New("t", dataset.SourceUpload, []string{"a", "b"}, rows)
	require.NoError(t, err)

	checks := rules.Evaluate(analysis.Input{Dataset: ds, Selections: analysis.Selections{
		"dependent": {"a"}, "independents": {"b"},
	}})
	assert.Equal(t, "n = 20, at least 30 required", findCheck(t, checks, "sample_size").Detail)
}
