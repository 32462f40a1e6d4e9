package promptbuild

import (
	"fmt"
	"strings"

	"crucible/internal/dataset"
)

// SystemPrompt captures the instructions sent with every prediction request.
// Keep updates centralized here so it is easy to tweak without hunting
// through call sites.
const SystemPrompt = `You are a materials scientist estimating material properties from composition and processing descriptions. Ground your estimates in the reference samples when they are provided, and in established materials science knowledge otherwise. You must respond ONLY with the requested JSON object.`

// NoReferencesMarker is emitted in place of the reference section when
// retrieval returned no neighbors (zero-shot mode).
const NoReferencesMarker = "No reference samples are available."

// Reference pairs a retrieved training sample with its similarity to the query.
type Reference struct {
	Sample     dataset.Sample
	Similarity float64
}

// Build renders the user prompt for one prediction attempt. Output is
// byte-identical for identical inputs: no timestamps, no randomness, and
// stable formatting for every number.
//
// prior carries the query sample's own predicted values from earlier rounds,
// keyed by target; pass nil on the first round.
func Build(query dataset.Sample, references []Reference, targets []string, prior map[string][]float64) string {
	var b strings.Builder

	b.WriteString("Predict the following material properties: ")
	b.WriteString(strings.Join(targets, ", "))
	b.WriteString(".\n\n")

	if len(references) == 0 {
		b.WriteString(NoReferencesMarker)
		b.WriteString("\nEstimate each property from the composition and processing description alone, using your domain knowledge of comparable alloy systems.\n")
	} else {
		b.WriteString("Reference samples with measured values, most similar first:\n")
		for i, ref := range references {
			fmt.Fprintf(&b, "%d. [similarity %.4f] %s\n", i+1, ref.Similarity, ref.Sample.FeatureText())
			for _, target := range targets {
				if value, ok := ref.Sample.TargetValue(target); ok {
					fmt.Fprintf(&b, "   %s = %s\n", target, dataset.FormatValue(value))
				}
			}
		}
	}

	b.WriteString("\nSample to predict:\n")
	b.WriteString(query.FeatureText())
	b.WriteString("\n")

	if priorSummary := formatPrior(targets, prior); priorSummary != "" {
		b.WriteString("\nYour predictions for this sample in earlier rounds:\n")
		b.WriteString(priorSummary)
		b.WriteString("Reconsider these against the evidence above and correct them where they look off.\n")
	}

	b.WriteString("\nRespond with a JSON object of this exact shape:\n")
	b.WriteString(`{"predictions": {`)
	for i, target := range targets {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q: <number>", target)
	}
	b.WriteString(`}, "confidence": "<high|medium|low>", "reasoning": "<short explanation>"}`)
	b.WriteString("\nEvery prediction must be a plain number in the same units as the reference values.")

	return b.String()
}

func formatPrior(targets []string, prior map[string][]float64) string {
	if len(prior) == 0 {
		return ""
	}
	var b strings.Builder
	for _, target := range targets {
		values := prior[target]
		if len(values) == 0 {
			continue
		}
		formatted := make([]string, len(values))
		for i, value := range values {
			formatted[i] = dataset.FormatValue(value)
		}
		fmt.Fprintf(&b, "%s: %s\n", target, strings.Join(formatted, ", "))
	}
	return b.String()
}
