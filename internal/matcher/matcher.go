package matcher

import (
	"attendance/internal/embeddings"
)

// Match is the best known identity for one query embedding. Recognized is
// false when the similarity fell below the threshold; callers must exclude
// such queries from downstream processing rather than surface an "unknown".
type Match struct {
	Name       string
	Score      float32
	Recognized bool
}

// Matcher scores query embeddings against the known-embeddings matrix.
// All vectors are unit-length, so the dot product is the cosine similarity
// and a whole batch of queries costs one pass over the matrix.
type Matcher struct {
	threshold float32
}

func New(threshold float32) *Matcher {
	return &Matcher{threshold: threshold}
}

// Threshold returns the recognition threshold in use.
func (m *Matcher) Threshold() float32 {
	return m.threshold
}

// Match normalizes each query and computes the full similarity matrix
// known(N×D)·queriesᵀ(D×Q), taking the arg-max row per query column.
func (m *Matcher) Match(snap *embeddings.Snapshot, queries [][]float32) []Match {
	results := make([]Match, len(queries))
	if snap == nil || snap.Count() == 0 {
		return results
	}

	for qi, q := range queries {
		if len(q) != snap.Dim {
			continue
		}
		embeddings.Normalize(q)

		bestIdx := -1
		var bestScore float32
		for row := 0; row < snap.Count(); row++ {
			score := dot(snap.Row(row), q)
			if bestIdx < 0 || score > bestScore {
				bestIdx = row
				bestScore = score
			}
		}

		if bestIdx >= 0 && bestScore > m.threshold {
			results[qi] = Match{
				Name:       snap.Names[bestIdx],
				Score:      bestScore,
				Recognized: true,
			}
		} else if bestIdx >= 0 {
			results[qi] = Match{Score: bestScore}
		}
	}
	return results
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
