package promptbuild

import (
	"strings"
	"testing"

	"crucible/internal/dataset"
)

func testQuery() dataset.Sample {
	return dataset.Sample{
		Index:       0,
		Composition: "Ti-6Al-4V",
		Features:    []dataset.Feature{{Key: "anneal_temp_C", Value: "950"}},
	}
}

func testReferences() []Reference {
	return []Reference{
		{
			Sample: dataset.Sample{
				Index:       3,
				Composition: "Ti-5Al-2.5Sn",
				Targets:     map[string]float64{"UTS": 861, "elongation": 15},
			},
			Similarity: 0.9312,
		},
		{
			Sample: dataset.Sample{
				Index:       7,
				Composition: "Ti-3Al-2.5V",
				Targets:     map[string]float64{"UTS": 620},
			},
			Similarity: 0.8744,
		},
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	targets := []string{"UTS", "elongation"}
	prior := map[string][]float64{"UTS": {850, 870.5}, "elongation": {14}}
	first := Build(testQuery(), testReferences(), targets, prior)
	second := Build(testQuery(), testReferences(), targets, prior)
	if first != second {
		t.Fatal("prompt output must be byte-identical for identical inputs")
	}
}

func TestBuildRendersAllSections(t *testing.T) {
	targets := []string{"UTS", "elongation"}
	prompt := Build(testQuery(), testReferences(), targets, nil)

	for _, want := range []string{
		"Predict the following material properties: UTS, elongation.",
		"[similarity 0.9312]",
		"Ti-5Al-2.5Sn",
		"UTS = 861",
		"elongation = 15",
		"Sample to predict:",
		"Composition: Ti-6Al-4V",
		`"predictions"`,
		`"UTS": <number>, "elongation": <number>`,
		`"confidence"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, NoReferencesMarker) {
		t.Fatal("reference prompt should not contain the zero-shot marker")
	}
	if strings.Contains(prompt, "earlier rounds") {
		t.Fatal("first-round prompt should not contain prior history")
	}
}

func TestBuildIncludesPriorHistoryInTargetOrder(t *testing.T) {
	targets := []string{"UTS", "elongation"}
	prior := map[string][]float64{
		"elongation": {14, 13.5},
		"UTS":        {850, 870.5},
	}
	prompt := Build(testQuery(), testReferences(), targets, prior)
	if !strings.Contains(prompt, "earlier rounds") {
		t.Fatalf("expected prior-round section:\n%s", prompt)
	}
	utsAt := strings.Index(prompt, "UTS: 850, 870.5")
	elongAt := strings.Index(prompt, "elongation: 14, 13.5")
	if utsAt < 0 || elongAt < 0 {
		t.Fatalf("expected prior values rendered:\n%s", prompt)
	}
	if utsAt > elongAt {
		t.Fatal("prior history must follow target order")
	}
}

func TestBuildZeroShotUsesMarkerAndSkipsReferences(t *testing.T) {
	prompt := Build(testQuery(), nil, []string{"UTS"}, nil)
	if !strings.Contains(prompt, NoReferencesMarker) {
		t.Fatalf("expected zero-shot marker:\n%s", prompt)
	}
	if strings.Contains(prompt, "similarity") {
		t.Fatalf("zero-shot prompt should not mention similarity:\n%s", prompt)
	}
	if !strings.Contains(prompt, "domain knowledge") {
		t.Fatalf("zero-shot prompt should fall back to domain knowledge language:\n%s", prompt)
	}
}
