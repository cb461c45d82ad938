package anomaly

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"aquaplan/internal/rng"
)

func TestAveragePathLength(t *testing.T) {
	assert.Zero(t, averagePathLength(0))
	assert.Zero(t, averagePathLength(1))
	assert.InDelta(t, 2*0.5772156649-1, averagePathLength(2), 1e-12)

	want := 2*(math.Log(255)+0.5772156649) - 2*255.0/256
	assert.InDelta(t, want, averagePathLength(256), 1e-12)
}

func leafStats(n node, depth int) (points, maxDepth int) {
	switch t := n.(type) {
	case *leafNode:
		return t.size, depth
	case *splitNode:
		lp, ld := leafStats(t.left, depth+1)
		rp, rd := leafStats(t.right, depth+1)
		return lp + rp, max(ld, rd)
	}
	return 0, depth
}

func TestBuildTreeKeepsEveryPointWithinDepthLimit(t *testing.T) {
	sample := make([]point, 100)
	for i := range sample {
		fi := float64(i)
		sample[i] = point{fi * 0.01, 100 + math.Sin(fi), 50 + float64(i%7)}
	}
	limit := int(math.Ceil(math.Log2(float64(len(sample)))))

	tree := buildTree(sample, 0, limit, rng.New(5))
	points, depth := leafStats(tree, 0)

	assert.Equal(t, len(sample), points)
	assert.LessOrEqual(t, depth, limit)
}

func TestPathLengthOfSinglePointTree(t *testing.T) {
	tree := buildTree([]point{{1, 2, 3}}, 0, 4, rng.New(1))
	assert.Zero(t, pathLength(tree, point{9, 9, 9}))
}
