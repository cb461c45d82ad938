package anomaly

import (
	"math"
	"math/rand/v2"
)

const eulerGamma = 0.5772156649

// point is the feature vector: energy per volume, flow, reservoir level.
type point [3]float64

// node is either a *leafNode or a *splitNode.
type node interface {
	isNode()
}

type leafNode struct {
	size int
}

type splitNode struct {
	feature     int
	threshold   float64
	left, right node
}

func (*leafNode) isNode()  {}
func (*splitNode) isNode() {}

// buildTree partitions sample recursively until a node holds at most one
// point or depth reaches limit. Values below the threshold go left.
func buildTree(sample []point, depth, limit int, r *rand.Rand) node {
	if len(sample) <= 1 || depth >= limit {
		return &leafNode{size: len(sample)}
	}
	f := r.IntN(len(point{}))
	lo, hi := sample[0][f], sample[0][f]
	for _, p := range sample[1:] {
		lo = math.Min(lo, p[f])
		hi = math.Max(hi, p[f])
	}
	threshold := lo + r.Float64()*(hi-lo)

	var left, right []point
	for _, p := range sample {
		if p[f] < threshold {
			left = append(left, p)
		} else {
			right = append(right, p)
		}
	}
	return &splitNode{
		feature:   f,
		threshold: threshold,
		left:      buildTree(left, depth+1, limit, r),
		right:     buildTree(right, depth+1, limit, r),
	}
}

// pathLength counts edges to the leaf reached by p and adds the expected
// remaining depth for the points left in it.
func pathLength(n node, p point) float64 {
	edges := 0
	for {
		switch t := n.(type) {
		case *splitNode:
			if p[t.feature] < t.threshold {
				n = t.left
			} else {
				n = t.right
			}
			edges++
		case *leafNode:
			return float64(edges) + averagePathLength(t.size)
		}
	}
}

// averagePathLength is c(n), the mean unsuccessful-search depth in a binary
// search tree of n points.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

// forest is the set of trees built for one batch.
type forest struct {
	trees []node
}

// newForest builds n trees, every one over the same sample.
func newForest(sample []point, n int, r *rand.Rand) *forest {
	limit := int(math.Ceil(math.Log2(float64(len(sample)))))
	f := &forest{trees: make([]node, n)}
	for i := range f.trees {
		f.trees[i] = buildTree(sample, 0, limit, r)
	}
	return f
}

func (f *forest) averagePathLength(p point) float64 {
	var total float64
	for _, t := range f.trees {
		total += pathLength(t, p)
	}
	return total / float64(len(f.trees))
}
