package graph

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"follower-audit/internal/models"
)

func set(members ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

func TestJaccard(t *testing.T) {
	cases := []struct {
		name string
		a, b map[string]struct{}
		want float64
	}{
		{"overlap", set("x", "y", "z"), set("y", "z", "w"), 0.5},
		{"identical", set("x", "y"), set("x", "y"), 1},
		{"disjoint", set("x"), set("y"), 0},
		{"one_empty", set("x"), set(), 0},
		{"both_empty", set(), set(), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Jaccard(tc.a, tc.b); got != tc.want {
				t.Errorf("Jaccard = %v, want %v", got, tc.want)
			}
			// symmetric by definition
			if got := Jaccard(tc.b, tc.a); got != tc.want {
				t.Errorf("Jaccard reversed = %v, want %v", got, tc.want)
			}
		})
	}
}

func testBuilder() *Builder {
	return NewBuilder(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testGraphAccounts() []models.Account {
	return []models.Account{
		{Username: "alice", Followings: []string{"x", "y", "z"}},
		{Username: "bob", Followings: []string{"y", "z", "w"}},
		{Username: "loner", Followings: []string{"q"}},
		{Username: "guarded", Protected: true, Followings: []string{"x"}},
		{Username: "empty"},
	}
}

func TestBuild(t *testing.T) {
	g := testBuilder().Build(testGraphAccounts())

	// protected and empty-set accounts are excluded from the graph
	if len(g.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(g.Nodes))
	}
	ids := map[string]bool{}
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}
	for _, want := range []string{"alice", "bob", "loner"} {
		if !ids[want] {
			t.Errorf("missing node %s", want)
		}
	}
	if ids["guarded"] || ids["empty"] {
		t.Error("excluded account appeared as a node")
	}

	if len(g.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(g.Edges))
	}
	e := g.Edges[0]
	if e.Source != "alice" || e.Target != "bob" {
		t.Errorf("edge endpoints = %s-%s", e.Source, e.Target)
	}
	if e.Weight != 0.5 {
		t.Errorf("edge weight = %v, want 0.5", e.Weight)
	}

	// isolated nodes are kept and still receive positions
	for _, n := range g.Nodes {
		if math.Abs(n.X) > 1 || math.Abs(n.Y) > 1 {
			t.Errorf("node %s out of layout bounds: (%v, %v)", n.ID, n.X, n.Y)
		}
	}
}

func TestBuild_Deterministic(t *testing.T) {
	b := testBuilder()
	first := b.Build(testGraphAccounts())
	second := b.Build(testGraphAccounts())

	if len(first.Nodes) != len(second.Nodes) {
		t.Fatalf("node counts differ: %d vs %d", len(first.Nodes), len(second.Nodes))
	}
	for i := range first.Nodes {
		a, b := first.Nodes[i], second.Nodes[i]
		if a.ID != b.ID || a.X != b.X || a.Y != b.Y {
			t.Errorf("node %d differs: %+v vs %+v", i, a, b)
		}
	}
}

func TestBuild_Threshold(t *testing.T) {
	accounts := []models.Account{
		{Username: "alice", Followings: []string{"x", "y", "z"}},
		{Username: "bob", Followings: []string{"y", "z", "w"}},
	}

	// a cutoff at or above the pair's similarity suppresses the edge
	b := NewBuilderWithThreshold(slog.New(slog.NewTextHandler(io.Discard, nil)), 0.5)
	g := b.Build(accounts)
	if len(g.Edges) != 0 {
		t.Errorf("expected no edges above threshold 0.5, got %d", len(g.Edges))
	}
	if len(g.Nodes) != 2 {
		t.Errorf("nodes must survive edge filtering, got %d", len(g.Nodes))
	}
}

func TestBuild_Empty(t *testing.T) {
	g := testBuilder().Build(nil)
	if g == nil {
		t.Fatal("Build returned nil")
	}
	if len(g.Nodes) != 0 {
		t.Errorf("expected no nodes, got %d", len(g.Nodes))
	}
	if g.Edges == nil || len(g.Edges) != 0 {
		t.Errorf("expected empty non-nil edge list, got %v", g.Edges)
	}
}

func TestSpringLayout_SmallCases(t *testing.T) {
	if got := springLayout(0, nil, 5, 10); len(got) != 0 {
		t.Errorf("expected no positions for empty graph, got %v", got)
	}

	one := springLayout(1, [][]float64{{0}}, 5, 10)
	if len(one) != 1 {
		t.Fatalf("expected 1 position, got %d", len(one))
	}
}
