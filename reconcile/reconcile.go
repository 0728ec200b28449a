package reconcile

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/spektr-org/pivotkit/record"
	"github.com/spektr-org/pivotkit/schema"
)

// ============================================================================
// RECONCILER — Merges partial records describing the same entity
// ============================================================================
// Modes:
//   exact — one key field, or every record carries every key field:
//           group by composite key, deep-merge in encounter order
//   soft  — multi-field key where some records lack secondary fields:
//           bucket by the best-populated ("primary") field; records with all
//           secondaries are narrow, the rest broad; broad records merge
//           beneath every narrow entry of their bucket
// Afterwards preserve fields are back-filled per primary bucket.
// Reconcile never panics outward; see Reconcile.
// ============================================================================

// fallbackNamespace seeds UUIDv5 identifiers synthesized for keyless
// records.
var fallbackNamespace = uuid.MustParse("6f1c8a52-6a8e-4e0b-9d43-2f6f1d1c7a10")

// Reconcile merges records sharing spec.MergeBy. An Auto spec is inferred
// first. An empty key returns the records unchanged.
//
// Any internal failure is logged and the input is returned unmerged,
// deduplicated by identity.
func Reconcile(records []*record.Record, spec schema.MergeSpec, opts ...Option) (out []*record.Record) {
	cfg := applyOptions(opts)
	input := compact(records)

	if spec.Auto {
		inf := schema.Infer(input)
		spec = inf.Spec
		cfg.logger.Debugw("reconcile: inferred merge spec",
			"mergeBy", spec.MergeBy, "preserve", spec.Preserve,
			"ratio", inf.Ratio, "bestEffort", inf.BestEffort)
	}
	if len(spec.MergeBy) == 0 {
		return input
	}

	defer func() {
		if r := recover(); r != nil {
			cfg.logger.Warnw("reconcile: falling back to unmerged input",
				"error", errors.Errorf("reconciliation failure: %v", r),
				"records", len(input))
			out = input
		}
	}()

	m := &merger{cfg: cfg, spec: spec}
	return m.run(input)
}

// Auto infers a merge spec, reconciles with it, and returns both.
func Auto(records []*record.Record, opts ...Option) ([]*record.Record, schema.MergeInference) {
	inf := schema.Infer(compact(records))
	return Reconcile(records, inf.Spec, opts...), inf
}

// compact drops nil entries and repeated pointers.
func compact(records []*record.Record) []*record.Record {
	out := make([]*record.Record, 0, len(records))
	seen := make(map[*record.Record]struct{}, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

type merger struct {
	cfg  *config
	spec schema.MergeSpec

	primary     string
	secondaries []string

	// fallback identifier bookkeeping: canonical form → occurrences so far
	occurrences map[string]int
}

// entry is one output record tagged with its primary bucket.
type entry struct {
	bucket string
	rec    *record.Record
}

func (m *merger) run(input []*record.Record) []*record.Record {
	keys := m.spec.MergeBy
	m.occurrences = map[string]int{}

	exact := len(keys) == 1
	if !exact {
		exact = true
		for _, r := range input {
			if !record.HasAll(r, keys) {
				exact = false
				break
			}
		}
	}

	m.primary = m.pickPrimary(input)
	for _, k := range keys {
		if k != m.primary {
			m.secondaries = append(m.secondaries, k)
		}
	}

	var entries []entry
	mode := "exact"
	if exact {
		entries = m.exact(input)
	} else {
		mode = "soft"
		entries = m.soft(input)
	}

	m.backfill(input, entries)

	out := make([]*record.Record, len(entries))
	for i, e := range entries {
		out[i] = e.rec
	}

	m.cfg.logger.Debugw("reconcile: merged",
		"mode", mode, "mergeBy", keys, "primary", m.primary,
		"in", len(input), "out", len(out))
	return out
}

// pickPrimary returns the key field with the highest presence; ties go to
// the earlier field in MergeBy.
func (m *merger) pickPrimary(input []*record.Record) string {
	best, bestCount := m.spec.MergeBy[0], -1
	for _, k := range m.spec.MergeBy {
		count := 0
		for _, r := range input {
			if !r.Value(k).IsEmpty() {
				count++
			}
		}
		if count > bestCount {
			best, bestCount = k, count
		}
	}
	return best
}

func (m *merger) exact(input []*record.Record) []entry {
	order := []string{}
	groups := map[string][]*record.Record{}
	buckets := map[string]string{}

	for _, r := range input {
		var key, bucket string
		if record.HasAny(r, m.spec.MergeBy) {
			key = "k:" + record.CompositeKey(r, m.spec.MergeBy)
			bucket = m.bucketKey(r)
		} else {
			r, key = m.withFallbackID(r)
			bucket = key
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
			buckets[key] = bucket
		}
		groups[key] = append(groups[key], r)
	}

	out := make([]entry, 0, len(order))
	for _, key := range order {
		out = append(out, entry{bucket: buckets[key], rec: mergeAll(groups[key])})
	}
	return out
}

type softBucket struct {
	narrowOrder []string
	narrow      map[string][]*record.Record
	broad       []*record.Record
}

func (m *merger) soft(input []*record.Record) []entry {
	order := []string{}
	buckets := map[string]*softBucket{}

	for _, r := range input {
		var key string
		if r.Value(m.primary).IsEmpty() {
			r, key = m.withFallbackID(r)
		} else {
			key = m.bucketKey(r)
		}

		b, ok := buckets[key]
		if !ok {
			b = &softBucket{narrow: map[string][]*record.Record{}}
			buckets[key] = b
			order = append(order, key)
		}

		if record.HasAll(r, m.secondaries) {
			sk := record.CompositeKey(r, m.secondaries)
			if _, seen := b.narrow[sk]; !seen {
				b.narrowOrder = append(b.narrowOrder, sk)
			}
			b.narrow[sk] = append(b.narrow[sk], r)
		} else {
			b.broad = append(b.broad, r)
		}
	}

	out := []entry{}
	for _, key := range order {
		b := buckets[key]
		broad := mergeAll(b.broad)
		if len(b.narrowOrder) == 0 {
			out = append(out, entry{bucket: key, rec: broad})
			continue
		}
		for _, sk := range b.narrowOrder {
			rec := mergeAll(b.narrow[sk])
			if broad != nil {
				rec = mergeUnder(rec, broad)
			}
			out = append(out, entry{bucket: key, rec: rec})
		}
	}
	return out
}

// backfill fills empty preserve fields from the first non-empty value seen
// anywhere in the same primary bucket.
func (m *merger) backfill(input []*record.Record, entries []entry) {
	preserve := make([]string, 0, len(m.spec.Preserve))
	for _, f := range m.spec.Preserve {
		if f != m.primary {
			preserve = append(preserve, f)
		}
	}
	if len(preserve) == 0 {
		return
	}

	firstSeen := map[string]map[string]record.Value{}
	for _, r := range input {
		if r.Value(m.primary).IsEmpty() {
			continue
		}
		bucket := m.bucketKey(r)
		values, ok := firstSeen[bucket]
		if !ok {
			values = map[string]record.Value{}
			firstSeen[bucket] = values
		}
		for _, f := range preserve {
			if _, have := values[f]; have {
				continue
			}
			if v := r.Value(f); !v.IsEmpty() {
				values[f] = v
			}
		}
	}

	for _, e := range entries {
		values := firstSeen[e.bucket]
		if len(values) == 0 {
			continue
		}
		for _, f := range preserve {
			if !e.rec.Value(f).IsEmpty() {
				continue
			}
			if v, ok := values[f]; ok {
				e.rec.Set(f, v.Clone())
			}
		}
	}
}

func (m *merger) bucketKey(r *record.Record) string {
	return "p:" + record.NormalizeKey(r.Value(m.primary))
}

// withFallbackID returns a copy of r carrying a synthesized identifier, and
// the group key derived from it. An identifier already present is reused,
// so a second pass assigns the same one.
func (m *merger) withFallbackID(r *record.Record) (*record.Record, string) {
	field := m.cfg.fallbackIDField
	if existing := r.Value(field); !existing.IsEmpty() {
		return r, "f:" + existing.Text()
	}

	canonical := record.Canonical(record.Nested(r))
	n := m.occurrences[canonical]
	m.occurrences[canonical] = n + 1

	id := uuid.NewSHA1(fallbackNamespace, []byte(canonical+"#"+strconv.Itoa(n))).String()
	out := r.Clone()
	out.Set(field, record.String(id))
	return out, "f:" + id
}

// mergeAll deep-merges records in order. A single record is cloned.
func mergeAll(records []*record.Record) *record.Record {
	if len(records) == 0 {
		return nil
	}
	out := records[0].Clone()
	for _, r := range records[1:] {
		out = MergeRecords(out, r)
	}
	return out
}
