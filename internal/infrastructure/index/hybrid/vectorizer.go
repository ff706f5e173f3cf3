package hybrid

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

const (
	maxFeatures = 20000
	minDocFreq  = 1
)

// Word tokens of two or more letters, digits or underscores.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

type sparseVector struct {
	Indices []int
	Values  []float64
}

func (v sparseVector) dot(other sparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.Indices) && j < len(other.Indices) {
		switch {
		case v.Indices[i] == other.Indices[j]:
			sum += v.Values[i] * other.Values[j]
			i++
			j++
		case v.Indices[i] < other.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// vectorizer is a fitted unigram+bigram TF-IDF model with sublinear term
// frequency and smoothed inverse document frequency.
type vectorizer struct {
	vocabulary map[string]int
	idf        []float64
}

func tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// features returns unigrams followed by space-joined bigrams.
func features(text string) []string {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	out := make([]string, 0, 2*len(tokens)-1)
	out = append(out, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		out = append(out, tokens[i]+" "+tokens[i+1])
	}
	return out
}

func fitVectorizer(corpus []string) *vectorizer {
	docFreq := make(map[string]int)
	termFreq := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, f := range features(text) {
			termFreq[f]++
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			docFreq[f]++
		}
	}

	terms := make([]string, 0, len(docFreq))
	for term, df := range docFreq {
		if df >= minDocFreq {
			terms = append(terms, term)
		}
	}
	if len(terms) > maxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if termFreq[terms[i]] != termFreq[terms[j]] {
				return termFreq[terms[i]] > termFreq[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:maxFeatures]
	}
	sort.Strings(terms)

	v := &vectorizer{
		vocabulary: make(map[string]int, len(terms)),
		idf:        make([]float64, len(terms)),
	}
	n := float64(len(corpus))
	for i, term := range terms {
		v.vocabulary[term] = i
		v.idf[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}
	return v
}

func (v *vectorizer) size() int { return len(v.idf) }

// transform maps text to an L2-normalized sparse TF-IDF vector.
func (v *vectorizer) transform(text string) sparseVector {
	counts := make(map[int]int)
	for _, f := range features(text) {
		if idx, ok := v.vocabulary[f]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return sparseVector{}
	}

	indices := make([]int, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	values := make([]float64, len(indices))
	var norm float64
	for i, idx := range indices {
		w := (1 + math.Log(float64(counts[idx]))) * v.idf[idx]
		values[i] = w
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range values {
			values[i] /= norm
		}
	}
	return sparseVector{Indices: indices, Values: values}
}
