package core

import (
	"sort"

	"medcure.com/assistant/internal/store"
	"medcure.com/assistant/internal/utils"
)

type ScoredEmbedding struct {
	store.StoredEmbedding
	Similarity float32
}

// Rank scores every candidate against query and keeps at most topK with
// similarity >= threshold, best first. Ties keep storage order. Candidates
// whose dimension differs from the query are counted in skipped.
func Rank(query []float32, candidates []store.StoredEmbedding, topK int, threshold float32) (results []ScoredEmbedding, skipped int) {
	if topK <= 0 || len(query) == 0 {
		return nil, 0
	}

	scored := make([]ScoredEmbedding, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Vector) == 0 {
			skipped++
			continue
		}
		similarity, err := utils.CosineSimilarity(query, c.Vector)
		if err != nil {
			skipped++
			continue
		}
		if similarity >= threshold {
			scored = append(scored, ScoredEmbedding{StoredEmbedding: c, Similarity: similarity})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, skipped
}
