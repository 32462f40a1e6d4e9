package dataset

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Feature is one processing or measurement descriptor attached to a sample.
// Order is preserved from the source dataset so formatted text stays stable.
type Feature struct {
	Key   string
	Value string
}

// Sample is one row of input features. Index is assigned once when the
// dataset is split and never renumbered; it is the stable identity used by
// checkpoints. Training rows carry known target values, test rows do not.
type Sample struct {
	Index       int
	Composition string
	Features    []Feature
	Targets     map[string]float64
}

// FeatureText renders the sample's composition and processing descriptors as
// the canonical text used for both embedding and prompting. Output is
// deterministic for identical input: composition strings are normalized to
// NFC so visually identical alloy notations (e.g. hyphen variants composed
// differently) embed identically.
func (s Sample) FeatureText() string {
	var b strings.Builder
	b.WriteString("Composition: ")
	b.WriteString(norm.NFC.String(strings.TrimSpace(s.Composition)))
	for _, feature := range s.Features {
		value := strings.TrimSpace(feature.Value)
		if value == "" {
			continue
		}
		b.WriteString("; ")
		b.WriteString(strings.TrimSpace(feature.Key))
		b.WriteString(": ")
		b.WriteString(norm.NFC.String(value))
	}
	return b.String()
}

// TargetValue returns the known value for a target and whether it is present.
func (s Sample) TargetValue(target string) (float64, bool) {
	if s.Targets == nil {
		return 0, false
	}
	value, ok := s.Targets[target]
	return value, ok
}

// FormatValue renders a target value the way prompts and CSV exports expect.
func FormatValue(value float64) string {
	return strconv.FormatFloat(value, 'g', -1, 64)
}
