package schema

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// ============================================================================
// SCHEMA — Inferred shape of a record set
// ============================================================================
// Nothing here is declared by the data source. Field descriptors and merge
// specs are recomputed from samples whenever the source set changes and are
// never persisted by the engine.
// ============================================================================

// SampleSize is the number of records inspected by every inference pass.
const SampleSize = 500

// FieldType is the inferred semantic type of a field.
type FieldType string

const (
	TypeNumber   FieldType = "number"
	TypeBoolean  FieldType = "boolean"
	TypeDate     FieldType = "date"
	TypeDateTime FieldType = "datetime"
	TypeText     FieldType = "text"
)

// FieldDescriptor describes one field observed in the sample.
type FieldDescriptor struct {
	Key               string    `json:"key"`
	DisplayName       string    `json:"displayName"`
	InferredType      FieldType `json:"inferredType"`
	SampleUniqueCount int       `json:"sampleUniqueCount"`
	CardinalityHint   string    `json:"cardinalityHint,omitempty"` // "low", "medium", "high"
}

// MergeSpec identifies entities across sources.
//
// MergeBy is the ordered composite key. Preserve lists fields back-filled
// from any record sharing the primary key when absent on a given record.
// Auto asks the reconciler to infer both lists.
type MergeSpec struct {
	MergeBy  []string `json:"mergeBy" mapstructure:"mergeBy"`
	Preserve []string `json:"preserve,omitempty" mapstructure:"preserve"`
	Auto     bool     `json:"-" mapstructure:"auto"`
}

// AutoMerge requests inference.
var AutoMerge = MergeSpec{Auto: true}

// IsZero reports a spec with no key and no inference request.
func (m MergeSpec) IsZero() bool {
	return !m.Auto && len(m.MergeBy) == 0
}

// MarshalJSON writes "auto" for inference requests.
func (m MergeSpec) MarshalJSON() ([]byte, error) {
	if m.Auto {
		return []byte(`"auto"`), nil
	}
	type plain MergeSpec
	return json.Marshal(plain(m))
}

// UnmarshalJSON accepts either the string "auto" or an object.
func (m *MergeSpec) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if strings.EqualFold(strings.TrimSpace(s), "auto") {
			*m = AutoMerge
			return nil
		}
		return errors.Errorf("merge spec: unsupported mode %q", s)
	}
	type plain MergeSpec
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return errors.Wrap(err, "merge spec")
	}
	*m = MergeSpec(p)
	return nil
}

// KeyScore is one scored merge-key candidate.
type KeyScore struct {
	Key      string `json:"key"`
	Presence int    `json:"presence"`
	Bonus    int    `json:"bonus"`
	Score    int    `json:"score"`
}

// MergeInference exposes how a MergeSpec was chosen so callers can inspect
// or override it.
type MergeInference struct {
	Spec       MergeSpec  `json:"spec"`
	Candidates []KeyScore `json:"candidates"`
	Ratio      float64    `json:"ratio"`
	Sampled    int        `json:"sampled"`

	// BestEffort is set when no key set cleared the uniqueness threshold and
	// the highest-scored key was used anyway.
	BestEffort bool `json:"bestEffort"`
}
