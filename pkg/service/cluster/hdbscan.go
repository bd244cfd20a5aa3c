package cluster

import (
	"context"
	"math"
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/interfaces"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"gonum.org/v1/gonum/floats"
)

// minDistance keeps lambda = 1/distance finite for duplicated points
const minDistance = 1e-12

// HDBSCAN is hierarchical density-based clustering. Points are linked by
// mutual reachability distance, the single-linkage hierarchy is condensed
// with the minimum cluster size, and clusters are chosen by excess of mass.
// Points outside every chosen cluster are labeled model.NoiseLabel.
type HDBSCAN struct {
	minClusterSize     int
	minSamples         int
	allowSingleCluster bool
}

var _ interfaces.Clusterer = &HDBSCAN{}

type Option func(*HDBSCAN)

// WithMinSamples sets the neighbourhood size used for core distances. The
// point itself is counted. Defaults to the minimum cluster size.
func WithMinSamples(n int) Option {
	return func(h *HDBSCAN) {
		if n > 0 {
			h.minSamples = n
		}
	}
}

// WithSingleCluster lets the whole data set be returned as one cluster when
// it never splits into two sufficiently large groups.
func WithSingleCluster() Option {
	return func(h *HDBSCAN) {
		h.allowSingleCluster = true
	}
}

func New(minClusterSize int, opts ...Option) (*HDBSCAN, error) {
	if minClusterSize < 2 {
		return nil, goerr.New("min cluster size must be at least 2", goerr.V("min_cluster_size", minClusterSize))
	}
	h := &HDBSCAN{minClusterSize: minClusterSize, minSamples: minClusterSize}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *HDBSCAN) Cluster(ctx context.Context, points [][]float64) (*model.ClusterResult, error) {
	n := len(points)
	result := &model.ClusterResult{
		Labels:        make([]int, n),
		Probabilities: make([]float64, n),
	}
	for i := range result.Labels {
		result.Labels[i] = model.NoiseLabel
	}
	if n < h.minClusterSize || n < 2 {
		return result, nil
	}

	for i, p := range points {
		if len(p) != len(points[0]) {
			return nil, goerr.New("point dimension mismatch",
				goerr.V("index", i),
				goerr.V("expected", len(points[0])),
				goerr.V("actual", len(p)))
		}
	}

	core := coreDistances(points, min(h.minSamples, n))
	if err := ctx.Err(); err != nil {
		return nil, goerr.Wrap(err, "clustering cancelled")
	}

	edges := minimumSpanningTree(points, core)
	if err := ctx.Err(); err != nil {
		return nil, goerr.Wrap(err, "clustering cancelled")
	}

	tree := condense(singleLinkage(edges, n), n, h.minClusterSize)
	tree.allowRoot = h.allowSingleCluster
	selected := tree.selectEOM()
	tree.label(selected, result)

	return result, nil
}

func distance(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// coreDistances returns the distance to the k-th nearest neighbour of each
// point, counting the point itself as the first neighbour.
func coreDistances(points [][]float64, k int) []float64 {
	n := len(points)
	core := make([]float64, n)
	dists := make([]float64, n)
	for i := range points {
		for j := range points {
			dists[j] = distance(points[i], points[j])
		}
		sorted := slices.Clone(dists)
		slices.Sort(sorted)
		core[i] = sorted[k-1]
	}
	return core
}

type edge struct {
	a, b   int
	weight float64
}

// minimumSpanningTree runs Prim's algorithm on the complete mutual
// reachability graph in O(n^2) time and O(n) memory.
func minimumSpanningTree(points [][]float64, core []float64) []edge {
	n := len(points)
	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
	}

	edges := make([]edge, 0, n-1)
	current := 0
	inTree[current] = true
	for len(edges) < n-1 {
		next, nextWeight := -1, math.Inf(1)
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			mr := max(core[current], core[j], distance(points[current], points[j]))
			if mr < best[j] {
				best[j] = mr
				from[j] = current
			}
			if best[j] < nextWeight {
				next, nextWeight = j, best[j]
			}
		}
		inTree[next] = true
		edges = append(edges, edge{a: from[next], b: next, weight: nextWeight})
		current = next
	}

	slices.SortStableFunc(edges, func(x, y edge) int {
		switch {
		case x.weight < y.weight:
			return -1
		case x.weight > y.weight:
			return 1
		default:
			return 0
		}
	})
	return edges
}

// merge is an internal node of the single-linkage dendrogram. Node ids below
// n are points; the merge at index i has node id n+i.
type merge struct {
	left, right int
	distance    float64
	size        int
}

func singleLinkage(edges []edge, n int) []merge {
	parent := make([]int, 2*n-1)
	for i := range parent {
		parent[i] = i
	}
	find := func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	merges := make([]merge, 0, n-1)
	size := func(node int) int {
		if node < n {
			return 1
		}
		return merges[node-n].size
	}

	for _, e := range edges {
		ra, rb := find(e.a), find(e.b)
		id := n + len(merges)
		merges = append(merges, merge{
			left:     ra,
			right:    rb,
			distance: e.weight,
			size:     size(ra) + size(rb),
		})
		parent[ra] = id
		parent[rb] = id
	}
	return merges
}
