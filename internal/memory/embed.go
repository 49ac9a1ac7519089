package memory

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// Embedder turns text into a vector. The engine treats embedding
// generation as a collaborator: callers can inject any implementation,
// and the default is a local deterministic one so the store works
// offline and tests are reproducible.
type Embedder interface {
	Embed(text string) ([]float32, error)
}

// HashEmbedder is a feature-hashing bag-of-words embedder. It is not a
// semantic model — it captures lexical overlap only — but it is
// deterministic, dependency-free, and good enough for similarity
// ranking over a single user's conversations.
type HashEmbedder struct {
	Dim int
}

// NewHashEmbedder returns a HashEmbedder with the given vector width.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return &HashEmbedder{Dim: dim}
}

// Embed hashes each token into a bucket and L2-normalizes the result.
func (e *HashEmbedder) Embed(text string) ([]float32, error) {
	vec := make([]float32, e.Dim)
	for _, token := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		bucket := int(h.Sum32()) % e.Dim
		if bucket < 0 {
			bucket += e.Dim
		}
		// The hash's low bit supplies a sign so buckets don't only grow.
		if h.Sum32()&1 == 0 {
			vec[bucket]++
		} else {
			vec[bucket]--
		}
	}
	normalize(vec)
	return vec, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
}

// Cosine returns the cosine similarity of two vectors, 0 when the
// dimensions differ or either vector is zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// encodeVector packs a float32 slice into a little-endian BLOB.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector unpacks a little-endian BLOB into a float32 slice.
func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// ChunkID computes the deterministic ID of a code chunk from its
// location, so re-indexing the same slice overwrites rather than
// duplicates.
func ChunkID(path string, startLine, endLine int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("chunk|%s|%d|%d", path, startLine, endLine)))
	return "code-" + hex.EncodeToString(h[:16])
}
