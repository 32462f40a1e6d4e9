package prediction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrAllTargetsInvalid marks an attempt where every requested target resolved
// to nil or exactly zero. Zero doubles as the parse-failure placeholder some
// models emit, so the whole attempt is treated as failed and retried rather
// than recorded. A legitimately-zero prediction across all targets at once is
// indistinguishable from a parse failure under this policy.
var ErrAllTargetsInvalid = errors.New("all targets resolved to nil or zero")

// ParseError marks model output that could not be interpreted as a
// prediction payload. It is sample-round-local: the orchestrator records the
// failure and retries on a later round.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse predictions: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse predictions: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Result is one parsed prediction attempt. Values holds one entry per
// requested target; a nil entry means the model omitted the target or its
// value failed numeric parsing.
type Result struct {
	Values     map[string]*float64
	Confidence string
	Reasoning  string
	RawText    string
}

type parsedPayload struct {
	Predictions map[string]json.RawMessage `json:"predictions"`
	Confidence  string                     `json:"confidence"`
	Reasoning   string                     `json:"reasoning"`
}

type valueWithUnit struct {
	Value json.RawMessage `json:"value"`
	Unit  string          `json:"unit"`
}

// ParseResult extracts per-target predictions from raw model output. The
// payload may be wrapped in code fences or surrounded by prose; each target
// value may be a bare number, a numeric string, or a {value, unit} object.
// A missing or unparseable target yields nil, never an error; the error
// cases are an undecodable payload and the all-nil-or-zero heuristic.
func ParseResult(raw string, targets []string) (Result, error) {
	result := Result{RawText: raw}

	var payload parsedPayload
	if err := DecodeModelJSON(raw, &payload); err != nil {
		return result, &ParseError{Reason: "decode payload", Err: err}
	}
	if payload.Predictions == nil {
		return result, &ParseError{Reason: "missing predictions object"}
	}

	result.Confidence = strings.TrimSpace(payload.Confidence)
	result.Reasoning = strings.TrimSpace(payload.Reasoning)
	result.Values = make(map[string]*float64, len(targets))

	allInvalid := true
	for _, target := range targets {
		value := parseTargetValue(payload.Predictions[target])
		result.Values[target] = value
		if value != nil && *value != 0 {
			allInvalid = false
		}
	}
	if allInvalid {
		return result, ErrAllTargetsInvalid
	}
	return result, nil
}

func parseTargetValue(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}

	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return &number
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
			return &parsed
		}
		return nil
	}

	var wrapped valueWithUnit
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Value) > 0 {
		return parseTargetValue(wrapped.Value)
	}
	return nil
}

// DecodeModelJSON decodes JSON from model output, handling common formatting
// quirks: surrounding prose, code fences, and leading labels.
func DecodeModelJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}

	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, summarizeSnippet(trimmed))
	}

	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return fmt.Errorf("%w (sanitized payload snippet: %s)", err, summarizeSnippet(sanitized))
	}
	return nil
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func summarizeSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	replacer := strings.NewReplacer("\r", " ", "\n", " ", "\t", " ")
	clean := strings.Join(strings.Fields(replacer.Replace(trimmed)), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
