package memory

import (
	"math"
	"testing"
)

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(128)
	a, err := e.Embed("refactor the session store")
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Embed("refactor the session store")
	if err != nil {
		t.Fatal(err)
	}
	if Cosine(a, b) < 0.999 {
		t.Error("same text should embed identically")
	}
}

func TestHashEmbedder_SimilarTextScoresHigher(t *testing.T) {
	e := NewHashEmbedder(128)
	query, _ := e.Embed("database connection pool timeout")
	near, _ := e.Embed("the connection pool timeout for the database")
	far, _ := e.Embed("favorite pizza toppings ranked")

	if Cosine(query, near) <= Cosine(query, far) {
		t.Errorf("near=%v far=%v, expected near > far",
			Cosine(query, near), Cosine(query, far))
	}
}

func TestHashEmbedder_Normalized(t *testing.T) {
	e := NewHashEmbedder(64)
	vec, _ := e.Embed("some text to embed")

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if math.Abs(sum-1.0) > 1e-5 {
		t.Errorf("vector norm² = %v, want 1", sum)
	}
}

func TestCosine_EdgeCases(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{1, 0, 0}); got != 0 {
		t.Errorf("mismatched dims: got %v, want 0", got)
	}
	if got := Cosine(nil, nil); got != 0 {
		t.Errorf("empty vectors: got %v, want 0", got)
	}
	if got := Cosine([]float32{0, 0}, []float32{1, 1}); got != 0 {
		t.Errorf("zero vector: got %v, want 0", got)
	}
	if got := Cosine([]float32{1, 2}, []float32{1, 2}); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical vectors: got %v, want 1", got)
	}
}

func TestVectorRoundTrip(t *testing.T) {
	in := []float32{0.5, -1.25, 3.75, 0}
	out := decodeVector(encodeVector(in))
	if len(out) != len(in) {
		t.Fatalf("length %d, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: %v != %v", i, in[i], out[i])
		}
	}
}

func TestChunkID_Deterministic(t *testing.T) {
	a := ChunkID("a.go", 1, 10)
	b := ChunkID("a.go", 1, 10)
	c := ChunkID("a.go", 1, 11)
	if a != b {
		t.Error("same location should produce same ID")
	}
	if a == c {
		t.Error("different locations should produce different IDs")
	}
}
