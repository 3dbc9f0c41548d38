package enrichment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"shelver/internal/config"
	"shelver/internal/services"
)

// Confidence levels in ascending order.
const (
	confidenceUnknown = iota
	confidenceLow
	confidenceMedium
	confidenceHigh
)

var successStatuses = map[string]struct{}{
	"":            {},
	"ok":          {},
	"success":     {},
	"ai_returned": {},
}

// Decision is the outcome of applying the policy to a response record.
type Decision struct {
	Failed  bool
	Reasons []string
}

// Reason joins the failure reasons for logs and manual-review records.
func (d Decision) Reason() string {
	return strings.Join(d.Reasons, "; ")
}

// Policy decides whether a response record is accepted or routed to manual
// review.
type Policy struct {
	requiredFields    []string
	minConfidence     int
	requireConfidence bool
	failureStatuses   map[string]struct{}
}

// NewPolicy builds a Policy from enrichment settings.
func NewPolicy(cfg config.Enrichment) (*Policy, error) {
	level := parseLevel(cfg.MinConfidence)
	if level == confidenceUnknown {
		return nil, services.Wrap(services.ErrConfiguration, "policy", "min_confidence",
			fmt.Sprintf("unknown level %q", cfg.MinConfidence), nil)
	}
	statuses := make(map[string]struct{}, len(cfg.FailureStatuses))
	for _, status := range cfg.FailureStatuses {
		statuses[strings.ToLower(strings.TrimSpace(status))] = struct{}{}
	}
	return &Policy{
		requiredFields:    append([]string(nil), cfg.RequiredFields...),
		minConfidence:     level,
		requireConfidence: cfg.RequireConfidence,
		failureStatuses:   statuses,
	}, nil
}

// CheckStatus validates the record's status marker. An unrecognized status is
// a malformed record, not a policy failure.
func (p *Policy) CheckStatus(rec *ResponseRecord) error {
	status := strings.ToLower(strings.TrimSpace(rec.Status))
	if _, ok := successStatuses[status]; ok {
		return nil
	}
	if _, ok := p.failureStatuses[status]; ok {
		return nil
	}
	return services.Wrap(services.ErrValidation, "policy", "status",
		fmt.Sprintf("unrecognized status %q", rec.Status), nil)
}

// Evaluate applies the failure and confidence rules. Call CheckStatus first;
// Evaluate treats unknown statuses as failures.
func (p *Policy) Evaluate(rec *ResponseRecord) Decision {
	var reasons []string

	status := strings.ToLower(strings.TrimSpace(rec.Status))
	if _, ok := successStatuses[status]; !ok {
		reasons = append(reasons, fmt.Sprintf("status %s", status))
	}

	for _, field := range p.requiredFields {
		if !hasValue(rec.Fields[field]) {
			reasons = append(reasons, fmt.Sprintf("missing %s", field))
			continue
		}
		if rec.Reviewed {
			continue
		}
		raw, ok := rec.Confidence[field]
		if !ok || isNull(raw) {
			if p.requireConfidence {
				reasons = append(reasons, fmt.Sprintf("no confidence for %s", field))
			}
			continue
		}
		level := confidenceOf(raw)
		if level == confidenceUnknown {
			reasons = append(reasons, fmt.Sprintf("unrecognized confidence for %s", field))
			continue
		}
		if level < p.minConfidence {
			reasons = append(reasons, fmt.Sprintf("%s confidence %s below %s", field, levelName(level), levelName(p.minConfidence)))
		}
	}

	return Decision{Failed: len(reasons) > 0, Reasons: reasons}
}

func confidenceOf(raw json.RawMessage) int {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return parseLevel(text)
	}
	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		switch {
		case number < 0 || number > 1:
			return confidenceUnknown
		case number < 0.5:
			return confidenceLow
		case number < 0.8:
			return confidenceMedium
		default:
			return confidenceHigh
		}
	}
	return confidenceUnknown
}

func parseLevel(value string) int {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "low":
		return confidenceLow
	case "medium":
		return confidenceMedium
	case "high":
		return confidenceHigh
	default:
		return confidenceUnknown
	}
}

func levelName(level int) string {
	switch level {
	case confidenceLow:
		return "low"
	case confidenceMedium:
		return "medium"
	case confidenceHigh:
		return "high"
	default:
		return "unknown"
	}
}

// hasValue reports whether a metadata field carries content: not absent, not
// null, not an empty string, array, or object.
func hasValue(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	switch string(trimmed) {
	case "null", `""`, "[]", "{}":
		return false
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		return strings.TrimSpace(text) != ""
	}
	return true
}
