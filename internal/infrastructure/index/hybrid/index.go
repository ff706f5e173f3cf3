package hybrid

import (
	"math"
	"sort"
	"strings"

	"github.com/kirillkom/docqa/internal/core/domain"
)

const (
	lexicalWeight = 0.3
	minScore      = 0.001
)

// Index ranks one session's chunks by TF-IDF cosine similarity plus a
// weighted raw term-overlap score. It is immutable after New and safe for
// concurrent readers.
type Index struct {
	chunks  []domain.Chunk
	lowered []string
	words   []int
	vectors []sparseVector
	vec     *vectorizer
}

func New(chunks []domain.Chunk) *Index {
	owned := make([]domain.Chunk, len(chunks))
	copy(owned, chunks)

	texts := make([]string, len(owned))
	for i, c := range owned {
		texts[i] = c.Text
	}
	vec := fitVectorizer(texts)

	idx := &Index{
		chunks:  owned,
		lowered: make([]string, len(owned)),
		words:   make([]int, len(owned)),
		vectors: make([]sparseVector, len(owned)),
		vec:     vec,
	}
	for i, text := range texts {
		idx.lowered[i] = strings.ToLower(text)
		idx.words[i] = len(strings.Fields(text))
		idx.vectors[i] = vec.transform(text)
	}
	return idx
}

// Search returns up to k chunks ordered by descending hybrid score. Chunks
// scoring at or below the floor are dropped; when nothing survives the
// first k chunks are returned in document order.
func (x *Index) Search(question string, k int) []domain.Chunk {
	if k <= 0 || len(x.chunks) == 0 {
		return nil
	}
	if strings.TrimSpace(question) == "" {
		return x.Head(k)
	}

	scores := x.scores(question)
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	if len(order) > k {
		order = order[:k]
	}

	out := make([]domain.Chunk, 0, len(order))
	for _, i := range order {
		if scores[i] > minScore {
			out = append(out, x.chunks[i])
		}
	}
	if len(out) == 0 {
		return x.Head(k)
	}
	return out
}

func (x *Index) scores(question string) []float64 {
	query := x.vec.transform(question)
	terms := distinctWords(question)

	scores := make([]float64, len(x.chunks))
	for i := range x.chunks {
		cosine := query.dot(x.vectors[i])
		scores[i] = cosine + lexicalWeight*x.lexical(i, terms)
	}
	return scores
}

func (x *Index) lexical(i int, terms []string) float64 {
	var hits int
	for _, term := range terms {
		hits += strings.Count(x.lowered[i], term)
	}
	if hits == 0 {
		return 0
	}
	return float64(hits) / (1 + math.Log1p(float64(x.words[i])))
}

func distinctWords(question string) []string {
	fields := strings.Fields(strings.ToLower(question))
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func (x *Index) Head(k int) []domain.Chunk {
	if k <= 0 {
		return nil
	}
	if k > len(x.chunks) {
		k = len(x.chunks)
	}
	out := make([]domain.Chunk, k)
	copy(out, x.chunks[:k])
	return out
}

func (x *Index) Stats() domain.IndexStats {
	return domain.IndexStats{
		ChunkCount:   len(x.chunks),
		FeatureCount: x.vec.size(),
	}
}
