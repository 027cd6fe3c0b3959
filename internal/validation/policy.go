package validation

import (
	_ "embed"
	"fmt"
	"os"

	"statwizard/domain/analysis"
	"statwizard/domain/core"

	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var defaultPolicyYAML []byte

// AnalysisPolicy holds the thresholds for one analysis type.
type AnalysisPolicy struct {
	MinSamples            int                          `yaml:"min_samples"`
	SampleSeverity        analysis.Severity            `yaml:"sample_severity"`
	MissingValuesSeverity analysis.Severity            `yaml:"missing_values_severity"`
	VariationSeverity     analysis.Severity            `yaml:"variation_severity"`
	OutlierSeverity       analysis.Severity            `yaml:"outlier_severity"`
	SeverityOverrides     map[string]analysis.Severity `yaml:"severity_overrides"`
}

// Policy is the full validation policy document.
type Policy struct {
	Default  AnalysisPolicy            `yaml:"default"`
	Analyses map[string]AnalysisPolicy `yaml:"analyses"`
}

// DefaultPolicy returns the embedded policy.
func DefaultPolicy() *Policy {
	p, err := ParsePolicy(defaultPolicyYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded validation policy is invalid: %v", err))
	}
	return p
}

// ParsePolicy decodes and checks a policy document.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse policy YAML: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadPolicy reads the embedded policy and merges the file at path on top,
// when path is set.
func LoadPolicy(path string) (*Policy, error) {
	base := DefaultPolicy()
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	override, err := ParsePolicy(data)
	if err != nil {
		return nil, err
	}
	base.merge(override)
	return base, nil
}

// For resolves the policy of one analysis: its own entry over the default
// entry over the definition's built-in minimum.
func (p *Policy) For(def *analysis.Definition) AnalysisPolicy {
	out := AnalysisPolicy{
		MinSamples:            def.MinSamples,
		SampleSeverity:        analysis.SeverityCritical,
		MissingValuesSeverity: analysis.SeverityWarning,
		VariationSeverity:     analysis.SeverityWarning,
		OutlierSeverity:       analysis.SeverityInfo,
	}
	if p == nil {
		return out
	}
	mergeAnalysisPolicy(&out, p.Default)
	if own, ok := p.Analyses[string(def.ID)]; ok {
		mergeAnalysisPolicy(&out, own)
	}
	return out
}

func (p *Policy) validate() error {
	if err := p.Default.validate("default"); err != nil {
		return err
	}
	for id, ap := range p.Analyses {
		if _, err := core.ParseAnalysisID(id); err != nil {
			return err
		}
		if err := ap.validate(id); err != nil {
			return err
		}
	}
	return nil
}

func (ap AnalysisPolicy) validate(name string) error {
	if ap.MinSamples < 0 {
		return fmt.Errorf("policy %s: min_samples cannot be negative", name)
	}
	for _, s := range []analysis.Severity{ap.SampleSeverity, ap.MissingValuesSeverity, ap.VariationSeverity, ap.OutlierSeverity} {
		if s != "" && !s.Valid() {
			return fmt.Errorf("policy %s: unknown severity %q", name, s)
		}
	}
	for id, s := range ap.SeverityOverrides {
		if !s.Valid() {
			return fmt.Errorf("policy %s: unknown severity %q for check %s", name, s, id)
		}
	}
	return nil
}

func (p *Policy) merge(src *Policy) {
	mergeAnalysisPolicy(&p.Default, src.Default)
	if p.Analyses == nil {
		p.Analyses = make(map[string]AnalysisPolicy)
	}
	for id, ap := range src.Analyses {
		dst := p.Analyses[id]
		mergeAnalysisPolicy(&dst, ap)
		p.Analyses[id] = dst
	}
}

func mergeAnalysisPolicy(dst *AnalysisPolicy, src AnalysisPolicy) {
	if src.MinSamples > 0 {
		dst.MinSamples = src.MinSamples
	}
	if src.SampleSeverity != "" {
		dst.SampleSeverity = src.SampleSeverity
	}
	if src.MissingValuesSeverity != "" {
		dst.MissingValuesSeverity = src.MissingValuesSeverity
	}
	if src.VariationSeverity != "" {
		dst.VariationSeverity = src.VariationSeverity
	}
	if src.OutlierSeverity != "" {
		dst.OutlierSeverity = src.OutlierSeverity
	}
	if len(src.SeverityOverrides) > 0 {
		merged := make(map[string]analysis.Severity, len(dst.SeverityOverrides)+len(src.SeverityOverrides))
		for k, v := range dst.SeverityOverrides {
			merged[k] = v
		}
		for k, v := range src.SeverityOverrides {
			merged[k] = v
		}
		dst.SeverityOverrides = merged
	}
}
