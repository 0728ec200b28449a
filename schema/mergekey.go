package schema

import (
	"sort"
	"strings"

	"github.com/spektr-org/pivotkit/record"
)

// ============================================================================
// MERGE-KEY INFERENCE — Which field(s) identify an entity across sources
// ============================================================================
// A best-effort classifier, not a proof:
//   1. presence frequency + identifier-name bonus → ranked candidates
//   2. first single key among the top 10 with uniqueness ≥ 0.5
//   3. else first ordered pair among the top 8 with uniqueness ≥ 0.75
//   4. else the highest-ranked key (BestEffort)
// The chosen spec is returned for inspection; callers may override it.
// ============================================================================

const (
	singleCandidates = 10
	pairCandidates   = 8
	singleThreshold  = 0.5
	pairThreshold    = 0.75
	maxPreserve      = 6
)

var identityHints = []string{"name", "team", "location", "title", "label"}

// InferMergeSpec returns the inferred merge key and preserve lists.
func InferMergeSpec(records []*record.Record) MergeSpec {
	return Infer(records).Spec
}

// Infer runs merge-key inference and reports how the result was chosen.
func Infer(records []*record.Record) MergeInference {
	sample := Sample(records)
	scored := ScoreKeys(sample)

	inf := MergeInference{
		Spec:       MergeSpec{MergeBy: []string{}, Preserve: []string{}},
		Candidates: scored,
		Sampled:    len(sample),
	}
	if len(scored) == 0 {
		return inf
	}

	keys := make([]string, len(scored))
	for i, s := range scored {
		keys[i] = s.Key
	}

	chosen := []string(nil)
	for _, k := range keys[:min(len(keys), singleCandidates)] {
		if ratio := UniquenessRatio(sample, []string{k}); ratio >= singleThreshold {
			chosen, inf.Ratio = []string{k}, ratio
			break
		}
	}

	if chosen == nil {
		top := keys[:min(len(keys), pairCandidates)]
	pairs:
		for i := 0; i < len(top); i++ {
			for j := i + 1; j < len(top); j++ {
				pair := []string{top[i], top[j]}
				if ratio := UniquenessRatio(sample, pair); ratio >= pairThreshold {
					chosen, inf.Ratio = pair, ratio
					break pairs
				}
			}
		}
	}

	if chosen == nil {
		chosen = []string{keys[0]}
		inf.Ratio = UniquenessRatio(sample, chosen)
		inf.BestEffort = true
	}
	inf.Spec.MergeBy = chosen

	inMergeBy := make(map[string]bool, len(chosen))
	for _, k := range chosen {
		inMergeBy[k] = true
	}
	for _, k := range keys {
		if len(inf.Spec.Preserve) == maxPreserve {
			break
		}
		if !inMergeBy[k] && isIdentityField(k) {
			inf.Spec.Preserve = append(inf.Spec.Preserve, k)
		}
	}
	return inf
}

// ScoreKeys ranks every field seen in the sample by presence plus name
// bonus, highest first. Ties keep first-seen order.
func ScoreKeys(sample []*record.Record) []KeyScore {
	index := map[string]int{}
	scores := []KeyScore{}
	for _, r := range sample {
		r.Range(func(key string, v record.Value) bool {
			i, ok := index[key]
			if !ok {
				i = len(scores)
				index[key] = i
				scores = append(scores, KeyScore{Key: key, Bonus: nameBonus(key)})
			}
			if !v.IsEmpty() {
				scores[i].Presence++
			}
			return true
		})
	}

	for i := range scores {
		scores[i].Score = scores[i].Presence + scores[i].Bonus
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	return scores
}

// nameBonus favors identifier-like names. Bonuses are additive.
func nameBonus(key string) int {
	k := strings.ToLower(strings.TrimSpace(key))
	bonus := 0
	if strings.HasSuffix(k, "id") {
		bonus += 1000
	}
	if strings.Contains(k, "uuid") {
		bonus += 900
	}
	if strings.Contains(k, "code") {
		bonus += 800
	}
	if strings.Contains(k, "key") {
		bonus += 700
	}
	if strings.Contains(k, "date") {
		bonus += 300
	}
	return bonus
}

func isIdentityField(key string) bool {
	k := strings.ToLower(key)
	for _, hint := range identityHints {
		if strings.Contains(k, hint) {
			return true
		}
	}
	return false
}

// UniquenessRatio is distinct composite keys divided by the number of
// records carrying at least one non-empty value across fields. Records with
// no value at all are ignored on both sides.
func UniquenessRatio(sample []*record.Record, fields []string) float64 {
	seen := make(map[string]struct{}, len(sample))
	withValue := 0
	for _, r := range sample {
		if !record.HasAny(r, fields) {
			continue
		}
		withValue++
		seen[record.CompositeKey(r, fields)] = struct{}{}
	}
	if withValue == 0 {
		return 0
	}
	return float64(len(seen)) / float64(withValue)
}
