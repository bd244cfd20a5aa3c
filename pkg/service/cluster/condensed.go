package cluster

import (
	"github.com/secmon-lab/wishwell/pkg/domain/model"
)

type condensedCluster struct {
	parent    int
	birth     float64
	stability float64
	children  []int
}

// condensedTree is the single-linkage hierarchy with every split that leaves
// fewer than minClusterSize points on one side collapsed into its parent.
// Cluster 0 is the root; children always have larger ids than their parent.
type condensedTree struct {
	clusters []condensedCluster
	// pointCluster is the deepest cluster each point belonged to and
	// pointLambda the density level at which it left that cluster.
	pointCluster []int
	pointLambda  []float64
	allowRoot    bool
}

func lambdaOf(d float64) float64 {
	return 1 / max(d, minDistance)
}

func condense(merges []merge, n, minClusterSize int) *condensedTree {
	t := &condensedTree{
		clusters:     []condensedCluster{{parent: -1}},
		pointCluster: make([]int, n),
		pointLambda:  make([]float64, n),
	}

	sizeOf := func(node int) int {
		if node < n {
			return 1
		}
		return merges[node-n].size
	}

	fallOut := func(node, cluster int, lambda float64) {
		stack := []int{node}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if cur < n {
				t.pointCluster[cur] = cluster
				t.pointLambda[cur] = lambda
				c := &t.clusters[cluster]
				c.stability += lambda - c.birth
				continue
			}
			m := merges[cur-n]
			stack = append(stack, m.right, m.left)
		}
	}

	type frame struct{ node, cluster int }
	stack := []frame{{node: 2*n - 2, cluster: 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.node < n {
			// only reachable when a cluster shrinks to one point
			fallOut(f.node, f.cluster, t.clusters[f.cluster].birth)
			continue
		}

		m := merges[f.node-n]
		lambda := lambdaOf(m.distance)
		ls, rs := sizeOf(m.left), sizeOf(m.right)

		switch {
		case ls >= minClusterSize && rs >= minClusterSize:
			parent := &t.clusters[f.cluster]
			parent.stability += (lambda - parent.birth) * float64(ls+rs)

			left := len(t.clusters)
			t.clusters = append(t.clusters, condensedCluster{parent: f.cluster, birth: lambda})
			right := len(t.clusters)
			t.clusters = append(t.clusters, condensedCluster{parent: f.cluster, birth: lambda})
			t.clusters[f.cluster].children = append(t.clusters[f.cluster].children, left, right)

			stack = append(stack, frame{node: m.right, cluster: right}, frame{node: m.left, cluster: left})

		case ls < minClusterSize && rs < minClusterSize:
			fallOut(m.left, f.cluster, lambda)
			fallOut(m.right, f.cluster, lambda)

		case ls < minClusterSize:
			fallOut(m.left, f.cluster, lambda)
			stack = append(stack, frame{node: m.right, cluster: f.cluster})

		default:
			fallOut(m.right, f.cluster, lambda)
			stack = append(stack, frame{node: m.left, cluster: f.cluster})
		}
	}

	return t
}

// selectEOM picks the flat clustering maximising total stability. A cluster
// is kept when its own stability is at least the best its descendants can
// offer; otherwise its descendants' selection stands in for it.
func (t *condensedTree) selectEOM() []bool {
	count := len(t.clusters)
	selected := make([]bool, count)
	subtree := make([]float64, count)

	for c := count - 1; c >= 0; c-- {
		cl := t.clusters[c]
		if c == 0 && !t.allowRoot {
			break
		}
		if len(cl.children) == 0 {
			selected[c] = true
			subtree[c] = cl.stability
			continue
		}
		var childSum float64
		for _, child := range cl.children {
			childSum += subtree[child]
		}
		if cl.stability >= childSum {
			selected[c] = true
			subtree[c] = cl.stability
			t.deselectDescendants(c, selected)
		} else {
			subtree[c] = childSum
		}
	}

	if !t.allowRoot {
		selected[0] = false
	}
	return selected
}

func (t *condensedTree) deselectDescendants(c int, selected []bool) {
	stack := append([]int(nil), t.clusters[c].children...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		selected[cur] = false
		stack = append(stack, t.clusters[cur].children...)
	}
}

// label writes dense labels, in cluster id order, and membership strengths.
// A point's strength is its exit density relative to the densest exit in
// its selected cluster.
func (t *condensedTree) label(selected []bool, result *model.ClusterResult) {
	owner := make([]int, len(t.clusters))
	dense := make([]int, len(t.clusters))
	next := 0
	for c := range t.clusters {
		owner[c] = -1
		dense[c] = model.NoiseLabel
		if selected[c] {
			owner[c] = c
			dense[c] = next
			next++
		} else if c > 0 {
			owner[c] = owner[t.clusters[c].parent]
		}
	}
	result.ClusterCount = next

	maxLambda := make([]float64, len(t.clusters))
	for p, c := range t.pointCluster {
		if o := owner[c]; o >= 0 {
			maxLambda[o] = max(maxLambda[o], t.pointLambda[p])
		}
	}

	for p, c := range t.pointCluster {
		o := owner[c]
		if o < 0 {
			result.Labels[p] = model.NoiseLabel
			result.Probabilities[p] = 0
			continue
		}
		result.Labels[p] = dense[o]
		if maxLambda[o] <= 0 {
			result.Probabilities[p] = 1
			continue
		}
		result.Probabilities[p] = model.ClampProbability(min(t.pointLambda[p], maxLambda[o]) / maxLambda[o])
	}
}
