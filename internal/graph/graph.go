// Package graph turns the crawled "who follows whom" snapshot into a
// weighted similarity graph with a reproducible 2-D layout. Similarity
// between two accounts is the Jaccard index of their followings sets;
// the layout is force-directed with a fixed seed and iteration count so
// the same topology always lands in the same positions.
package graph

import (
	"log/slog"

	"follower-audit/internal/models"
)

// DefaultWeightThreshold is the similarity a pair must exceed to get an
// edge. Jaccard values on real follower data are small, so the cutoff
// is too.
const DefaultWeightThreshold = 0.025

const (
	layoutSeed       = 5
	layoutIterations = 200
)

type Builder struct {
	threshold  float64
	seed       int64
	iterations int
	log        *slog.Logger
}

func NewBuilder(log *slog.Logger) *Builder {
	return &Builder{
		threshold:  DefaultWeightThreshold,
		seed:       layoutSeed,
		iterations: layoutIterations,
		log:        log,
	}
}

// NewBuilderWithThreshold overrides the edge threshold; layout
// parameters stay fixed for reproducibility.
func NewBuilderWithThreshold(log *slog.Logger, threshold float64) *Builder {
	b := NewBuilder(log)
	b.threshold = threshold
	return b
}

// Build selects every non-protected account with a non-empty followings
// set, computes pairwise similarity, and returns positioned nodes plus
// weighted edges. Pair enumeration is O(n²); that is an accepted limit.
func (b *Builder) Build(accounts []models.Account) *models.SimilarityGraph {
	var usernames []string
	followings := make(map[string]map[string]struct{})

	for _, acct := range accounts {
		if acct.Protected || len(acct.Followings) == 0 {
			continue
		}
		set := make(map[string]struct{}, len(acct.Followings))
		for _, f := range acct.Followings {
			set[f] = struct{}{}
		}
		usernames = append(usernames, acct.Username)
		followings[acct.Username] = set
	}

	n := len(usernames)
	graph := &models.SimilarityGraph{
		Nodes: make([]models.GraphNode, 0, n),
		Edges: []models.GraphEdge{},
	}

	weights := make([][]float64, n)
	for i := range weights {
		weights[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			similarity := Jaccard(followings[usernames[i]], followings[usernames[j]])
			if similarity > b.threshold {
				weights[i][j] = similarity
				weights[j][i] = similarity
				graph.Edges = append(graph.Edges, models.GraphEdge{
					Source: usernames[i],
					Target: usernames[j],
					Weight: similarity,
				})
			}
		}
	}

	positions := springLayout(n, weights, b.seed, b.iterations)
	for i, username := range usernames {
		graph.Nodes = append(graph.Nodes, models.GraphNode{
			ID: username,
			X:  positions[i][0],
			Y:  positions[i][1],
		})
	}

	b.log.Info("graph_built", "nodes", len(graph.Nodes), "edges", len(graph.Edges))
	return graph
}

// Jaccard computes intersection over union of two sets. Two empty sets
// score 0, not an error.
func Jaccard(a, b map[string]struct{}) float64 {
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
