package visualize

import (
	"slices"

	"github.com/valyala/fastrand"

	"github.com/wsrdata/wsrdata/internal/domain"
)

// Sampling defaults used to build the review lists.
const (
	DefaultPerPair  = 30
	DefaultPickSeed = 2021
)

// PickScans chooses up to perPair annotated scans for every annotator-station
// pair. Only scans in dataset and not in exclude are eligible. Candidates keep
// the order in which the annotations list them, and the sample preserves that
// order. The same seed always picks the same scans.
func PickScans(records []domain.AnnotationRecord, dataset, exclude map[string]bool, perPair int, seed uint32) map[string][]string {
	candidates := map[string][]string{}
	seen := map[string]map[string]bool{}
	var pairs []string

	for _, rec := range records {
		scan := rec.Scan()
		if !dataset[scan] || exclude[scan] {
			continue
		}
		pair := domain.ScaleFactorKey(rec.Username, rec.Station)
		if seen[pair] == nil {
			seen[pair] = map[string]bool{}
			pairs = append(pairs, pair)
		}
		if seen[pair][scan] {
			continue
		}
		seen[pair][scan] = true
		candidates[pair] = append(candidates[pair], scan)
	}
	slices.Sort(pairs)

	var rng fastrand.RNG
	rng.Seed(seed)

	out := make(map[string][]string, len(pairs))
	for _, pair := range pairs {
		scans := candidates[pair]
		idx := sampleIndices(&rng, len(scans), min(perPair, len(scans)))
		picked := make([]string, len(idx))
		for i, j := range idx {
			picked[i] = scans[j]
		}
		out[pair] = picked
	}
	return out
}

// sampleIndices draws k distinct indices from [0, n) and returns them sorted.
func sampleIndices(rng *fastrand.RNG, n, k int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + int(rng.Uint32n(uint32(n-i)))
		perm[i], perm[j] = perm[j], perm[i]
	}
	picked := perm[:k]
	slices.Sort(picked)
	return picked
}
