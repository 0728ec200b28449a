package record

import (
	"fmt"

	"go.uber.org/zap"
)

// ============================================================================
// COLLECTOR — Normalizes arbitrary input shapes into []*Record
// ============================================================================
// Accepted shapes:
//   [rec, rec, ...]                 sequence (non-record entries dropped)
//   {groupA: [...], groupB: [...]}  object of arrays (flattened in key order)
//   {a: rec, b: rec}                object of records (values taken)
// Anything else yields an empty slice. Collect never fails.
// ============================================================================

// Shape classifies an input container.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeSequence
	ShapeGroupedSequences
	ShapeRecordMap
)

func (s Shape) String() string {
	switch s {
	case ShapeSequence:
		return "sequence"
	case ShapeGroupedSequences:
		return "object-of-arrays"
	case ShapeRecordMap:
		return "object-of-records"
	default:
		return "unknown"
	}
}

// ShapeError reports an input that is not a recognized record container.
type ShapeError struct {
	Got string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("unrecognized record container: %s", e.Got)
}

// CollectOption configures Collect.
type CollectOption func(*collectConfig)

type collectConfig struct {
	groupMarker string
	logger      *zap.SugaredLogger
}

// WithGroupMarker attaches the origin key under field when flattening an
// object of arrays. Disabled by default so no spurious dimension appears.
func WithGroupMarker(field string) CollectOption {
	return func(c *collectConfig) {
		c.groupMarker = field
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(logger *zap.SugaredLogger) CollectOption {
	return func(c *collectConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Collect flattens input into a sequence of records. Records in the input
// are cloned; the caller's data is never aliased.
func Collect(input any, opts ...CollectOption) []*Record {
	cfg := &collectConfig{logger: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(cfg)
	}

	root := FromAny(input)
	shape, err := detect(root)
	if err != nil {
		cfg.logger.Debugw("collect: returning empty record set", "error", err)
		return []*Record{}
	}

	out := []*Record{}
	switch shape {
	case ShapeSequence:
		for _, item := range root.AsList() {
			if rec := item.AsRecord(); rec != nil {
				out = append(out, rec.Clone())
			}
		}

	case ShapeGroupedSequences:
		container := root.AsRecord()
		container.Range(func(group string, v Value) bool {
			for _, item := range v.AsList() {
				rec := item.AsRecord()
				if rec == nil {
					continue
				}
				rec = rec.Clone()
				if cfg.groupMarker != "" {
					rec.Set(cfg.groupMarker, String(group))
				}
				out = append(out, rec)
			}
			return true
		})

	case ShapeRecordMap:
		root.AsRecord().Range(func(_ string, v Value) bool {
			if rec := v.AsRecord(); rec != nil {
				out = append(out, rec.Clone())
			}
			return true
		})
	}

	cfg.logger.Debugw("collect: done", "shape", shape.String(), "records", len(out))
	return out
}

// DetectShape classifies input without collecting it.
func DetectShape(input any) (Shape, error) {
	return detect(FromAny(input))
}

func detect(root Value) (Shape, error) {
	switch root.Kind() {
	case KindList:
		return ShapeSequence, nil
	case KindRecord:
		container := root.AsRecord()
		hasList, hasRecord := false, false
		container.Range(func(_ string, v Value) bool {
			switch v.Kind() {
			case KindList:
				hasList = true
			case KindRecord:
				hasRecord = true
			}
			return true
		})
		if hasList {
			return ShapeGroupedSequences, nil
		}
		if hasRecord {
			return ShapeRecordMap, nil
		}
		return ShapeUnknown, &ShapeError{Got: "object of scalars"}
	}
	return ShapeUnknown, &ShapeError{Got: root.Kind().String()}
}
