package enrichment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"shelver/internal/hints"
	"shelver/internal/queuefile"
	"shelver/internal/services"
	"shelver/internal/tracking"
)

// Reserved keys of a response record. Every other key is metadata.
const (
	keyRelativePath = "relative_path"
	keyStatus       = "status"
	keyConfidence   = "confidence"
	keyManualStatus = "manual_status"
	keyManualReason = "manual_reason"
	keyReviewed     = "reviewed"
)

// Manual status values.
const (
	ManualStatusPending = "pending"
	ManualStatusReady   = "ready"
)

// RequestRecord is one line of the pending-request queue.
type RequestRecord struct {
	Identity     string `json:"identity"`
	RelativePath string `json:"relative_path"`
	hints.Hints
}

// ResponseRecord is one line of the response queue or, with ManualStatus
// set, of the manual-review queue.
type ResponseRecord struct {
	RelativePath string
	// Status is empty for implicit success.
	Status string
	// Confidence maps field names to "low", "medium", "high", or a number in [0,1].
	Confidence map[string]json.RawMessage
	// ManualStatus and ManualReason only appear on manual-review records.
	ManualStatus string
	ManualReason string
	// Reviewed marks a record resubmitted after human correction.
	Reviewed bool
	// Fields holds every other key of the record.
	Fields map[string]json.RawMessage
}

// ParseResponse decodes and validates one queue line. Errors are marked
// services.ErrValidation.
func ParseResponse(raw []byte) (*ResponseRecord, error) {
	var rec ResponseRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, services.Wrap(services.ErrValidation, "parse", "decode record", "malformed record", err)
	}
	normalized, err := tracking.NormalizeRelativePath(rec.RelativePath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "parse", "validate record", "unusable relative_path", err)
	}
	rec.RelativePath = normalized
	return &rec, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *ResponseRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return errors.New("record is not a JSON object")
	}

	out := ResponseRecord{Fields: make(map[string]json.RawMessage)}
	for key, value := range raw {
		var err error
		switch key {
		case keyRelativePath:
			err = decodeString(value, &out.RelativePath)
		case keyStatus:
			err = decodeOptionalString(value, &out.Status)
		case keyManualStatus:
			err = decodeOptionalString(value, &out.ManualStatus)
		case keyManualReason:
			err = decodeOptionalString(value, &out.ManualReason)
		case keyReviewed:
			if !isNull(value) {
				err = json.Unmarshal(value, &out.Reviewed)
			}
		case keyConfidence:
			if !isNull(value) {
				err = json.Unmarshal(value, &out.Confidence)
			}
		default:
			out.Fields[key] = value
		}
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
	}
	if strings.TrimSpace(out.RelativePath) == "" {
		return errors.New("missing relative_path")
	}
	*r = out
	return nil
}

// MarshalJSON implements json.Marshaler. Keys are emitted in sorted order.
func (r ResponseRecord) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Fields)+6)
	for key, value := range r.Fields {
		flat[key] = value
	}
	flat[keyRelativePath] = r.RelativePath
	if r.Status != "" {
		flat[keyStatus] = r.Status
	}
	if len(r.Confidence) > 0 {
		flat[keyConfidence] = r.Confidence
	}
	if r.ManualStatus != "" {
		flat[keyManualStatus] = r.ManualStatus
	}
	if r.ManualReason != "" {
		flat[keyManualReason] = r.ManualReason
	}
	if r.Reviewed {
		flat[keyReviewed] = true
	}
	return queuefile.EncodeLine(flat)
}

// Metadata returns the payload persisted in the tracking store: every
// metadata field plus the confidence map.
func (r *ResponseRecord) Metadata() (json.RawMessage, error) {
	flat := make(map[string]any, len(r.Fields)+1)
	for key, value := range r.Fields {
		flat[key] = value
	}
	if len(r.Confidence) > 0 {
		flat[keyConfidence] = r.Confidence
	}
	return queuefile.EncodeLine(flat)
}

// ToManual returns a copy prepared for the manual-review queue.
func (r *ResponseRecord) ToManual(reason string) *ResponseRecord {
	clone := r.clone()
	clone.ManualStatus = ManualStatusPending
	clone.ManualReason = reason
	return clone
}

// ToResubmission returns a copy with the manual-review fields, explicit
// status, and confidence removed, marked as reviewed.
func (r *ResponseRecord) ToResubmission() *ResponseRecord {
	clone := r.clone()
	clone.ManualStatus = ""
	clone.ManualReason = ""
	clone.Status = ""
	clone.Confidence = nil
	clone.Reviewed = true
	return clone
}

// IsReady reports whether a human has released a manual-review record.
func (r *ResponseRecord) IsReady() bool {
	return strings.EqualFold(strings.TrimSpace(r.ManualStatus), ManualStatusReady)
}

func (r *ResponseRecord) clone() *ResponseRecord {
	out := *r
	out.Fields = make(map[string]json.RawMessage, len(r.Fields))
	for key, value := range r.Fields {
		out.Fields[key] = value
	}
	if r.Confidence != nil {
		out.Confidence = make(map[string]json.RawMessage, len(r.Confidence))
		for key, value := range r.Confidence {
			out.Confidence[key] = value
		}
	}
	return &out
}

func decodeString(value json.RawMessage, dst *string) error {
	if isNull(value) {
		return errors.New("must not be null")
	}
	return json.Unmarshal(value, dst)
}

func decodeOptionalString(value json.RawMessage, dst *string) error {
	if isNull(value) {
		*dst = ""
		return nil
	}
	return json.Unmarshal(value, dst)
}

func isNull(value json.RawMessage) bool {
	return len(bytes.TrimSpace(value)) == 0 || bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}
