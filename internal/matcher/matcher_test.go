package matcher

import (
	"testing"

	"attendance/internal/embeddings"
)

func gallery(t *testing.T, entries map[string][]float32) *embeddings.Snapshot {
	t.Helper()
	snap := &embeddings.Snapshot{}
	for name, vec := range entries {
		v := make([]float32, len(vec))
		copy(v, vec)
		embeddings.Normalize(v)
		if snap.Dim == 0 {
			snap.Dim = len(v)
		}
		snap.Vectors = append(snap.Vectors, v...)
		snap.Names = append(snap.Names, name)
	}
	return snap
}

func TestMatcher_KnownVectorMatches(t *testing.T) {
	snap := gallery(t, map[string][]float32{
		"Mark_Quibral": {1, 0, 0, 0},
		"Allen_Garcia": {0, 1, 0, 0},
	})
	m := New(0.55)

	results := m.Match(snap, [][]float32{{1, 0, 0, 0}})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if !r.Recognized {
		t.Fatal("identical vector should be recognized")
	}
	if r.Name != "Mark_Quibral" {
		t.Errorf("name = %q", r.Name)
	}
	if r.Score < 0.99 {
		t.Errorf("score = %f, expected ~1", r.Score)
	}
}

func TestMatcher_PerturbedVectorStillMatches(t *testing.T) {
	snap := gallery(t, map[string][]float32{
		"Mark_Quibral": {1, 0, 0, 0},
	})
	m := New(0.55)

	// Small perturbation keeps cosine similarity well above threshold
	results := m.Match(snap, [][]float32{{0.95, 0.1, 0.05, 0}})
	if !results[0].Recognized || results[0].Name != "Mark_Quibral" {
		t.Errorf("perturbed query should still match, got %+v", results[0])
	}
}

func TestMatcher_OrthogonalVectorRejected(t *testing.T) {
	snap := gallery(t, map[string][]float32{
		"Mark_Quibral": {1, 0, 0, 0},
		"Allen_Garcia": {0, 1, 0, 0},
	})
	m := New(0.55)

	results := m.Match(snap, [][]float32{{0, 0, 1, 0}})
	r := results[0]
	if r.Recognized {
		t.Errorf("orthogonal query must not be recognized, got %+v", r)
	}
	if r.Name != "" {
		t.Errorf("unrecognized result must not carry a name, got %q", r.Name)
	}
	if r.Score > 0.55 {
		t.Errorf("score = %f, expected below threshold", r.Score)
	}
}

func TestMatcher_BatchQueries(t *testing.T) {
	snap := gallery(t, map[string][]float32{
		"Mark_Quibral": {1, 0, 0, 0},
		"Allen_Garcia": {0, 1, 0, 0},
	})
	m := New(0.55)

	results := m.Match(snap, [][]float32{
		{0, 1, 0, 0},
		{0, 0, 0, 1},
		{1, 0, 0, 0},
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Recognized || results[0].Name != "Allen_Garcia" {
		t.Errorf("query 0: %+v", results[0])
	}
	if results[1].Recognized {
		t.Errorf("query 1 should be unrecognized: %+v", results[1])
	}
	if !results[2].Recognized || results[2].Name != "Mark_Quibral" {
		t.Errorf("query 2: %+v", results[2])
	}
}

func TestMatcher_EmptyGallery(t *testing.T) {
	m := New(0.55)

	results := m.Match(&embeddings.Snapshot{}, [][]float32{{1, 0}})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Recognized {
		t.Error("nothing can be recognized against an empty gallery")
	}
}

func TestMatcher_DimensionMismatchIgnored(t *testing.T) {
	snap := gallery(t, map[string][]float32{"Mark_Quibral": {1, 0, 0, 0}})
	m := New(0.55)

	results := m.Match(snap, [][]float32{{1, 0}})
	if results[0].Recognized {
		t.Error("mismatched query dimension must not match")
	}
}

func TestMatcher_UnnormalizedQuery(t *testing.T) {
	snap := gallery(t, map[string][]float32{"Mark_Quibral": {1, 0, 0, 0}})
	m := New(0.55)

	// Matcher normalizes queries itself; magnitude must not matter
	results := m.Match(snap, [][]float32{{42, 0, 0, 0}})
	if !results[0].Recognized || results[0].Score < 0.99 {
		t.Errorf("scaled query should match with ~1 score, got %+v", results[0])
	}
}
