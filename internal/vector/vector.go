// Package vector provides brute-force cosine similarity ranking over small
// in-memory corpora. Suitable for a single recipe's steps and ingredients;
// larger corpora go through the pgvector repository instead.
package vector

import (
	"math"
	"sort"
)

// Match is a single ranked search result.
type Match struct {
	SourceID   string
	Content    string
	Similarity float64
}

// Document is a candidate for similarity ranking.
type Document struct {
	ID        string
	Content   string
	Embedding []float32
}

// CosineSimilarity computes dot(a,b) / (|a| * |b|). It returns 0 when the
// vectors differ in length or when either has zero norm, never NaN.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Rank scores every document against query, keeps those at or above
// threshold, and returns at most limit matches sorted by descending
// similarity. The sort is stable so ties keep their original order.
// Documents without an embedding are skipped.
func Rank(query []float32, docs []Document, threshold float64, limit int) []Match {
	matches := make([]Match, 0, len(docs))
	for _, d := range docs {
		if len(d.Embedding) == 0 {
			continue
		}
		sim := CosineSimilarity(query, d.Embedding)
		if sim >= threshold {
			matches = append(matches, Match{
				SourceID:   d.ID,
				Content:    d.Content,
				Similarity: sim,
			})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
