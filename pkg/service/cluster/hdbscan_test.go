package cluster_test

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/service/cluster"
)

func blob(rng *rand.Rand, center []float64, n int, spread float64) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		p := make([]float64, len(center))
		for j, c := range center {
			p[j] = c + (rng.Float64()-0.5)*spread
		}
		out[i] = p
	}
	return out
}

func twoBlobsWithOutliers() [][]float64 {
	rng := rand.New(rand.NewPCG(7, 11))
	var points [][]float64
	points = append(points, blob(rng, []float64{0, 0}, 15, 0.2)...)
	points = append(points, blob(rng, []float64{10, 10}, 15, 0.2)...)
	points = append(points, []float64{-30, 40}, []float64{45, -20}, []float64{60, 60})
	return points
}

func TestHDBSCAN_TwoBlobs(t *testing.T) {
	h, err := cluster.New(8)
	gt.NoError(t, err).Required()

	result, err := h.Cluster(context.Background(), twoBlobsWithOutliers())
	gt.NoError(t, err).Required()

	gt.Number(t, result.ClusterCount).Equal(2)
	gt.A(t, result.Labels).Length(33)

	first := result.Labels[0]
	second := result.Labels[15]
	gt.Number(t, first).NotEqual(model.NoiseLabel)
	gt.Number(t, second).NotEqual(model.NoiseLabel)
	gt.Number(t, first).NotEqual(second)

	for i := 0; i < 15; i++ {
		gt.Number(t, result.Labels[i]).Equal(first)
		gt.Number(t, result.Labels[15+i]).Equal(second)
	}
	for i := 30; i < 33; i++ {
		gt.Number(t, result.Labels[i]).Equal(model.NoiseLabel)
		gt.Number(t, result.Probabilities[i]).Equal(0.0)
	}
	gt.Number(t, result.NoiseCount()).Equal(3)
}

func TestHDBSCAN_ProbabilitiesInRange(t *testing.T) {
	h, err := cluster.New(8)
	gt.NoError(t, err).Required()

	result, err := h.Cluster(context.Background(), twoBlobsWithOutliers())
	gt.NoError(t, err).Required()

	var sawFull bool
	for _, p := range result.Probabilities {
		gt.Number(t, p).GreaterOrEqual(0.0)
		gt.Number(t, p).LessOrEqual(1.0)
		if p == 1.0 {
			sawFull = true
		}
	}
	gt.B(t, sawFull).True()
}

func TestHDBSCAN_Deterministic(t *testing.T) {
	h, err := cluster.New(8)
	gt.NoError(t, err).Required()

	a, err := h.Cluster(context.Background(), twoBlobsWithOutliers())
	gt.NoError(t, err).Required()
	b, err := h.Cluster(context.Background(), twoBlobsWithOutliers())
	gt.NoError(t, err).Required()

	gt.Value(t, a.Labels).Equal(b.Labels)
	gt.Value(t, a.Probabilities).Equal(b.Probabilities)
}

func TestHDBSCAN_TooFewPoints(t *testing.T) {
	h, err := cluster.New(10)
	gt.NoError(t, err).Required()

	points := [][]float64{{0, 0}, {0, 1}, {1, 0}}
	result, err := h.Cluster(context.Background(), points)
	gt.NoError(t, err).Required()

	gt.Number(t, result.ClusterCount).Equal(0)
	for _, l := range result.Labels {
		gt.Number(t, l).Equal(model.NoiseLabel)
	}
}

func TestHDBSCAN_Empty(t *testing.T) {
	h, err := cluster.New(2)
	gt.NoError(t, err).Required()

	result, err := h.Cluster(context.Background(), nil)
	gt.NoError(t, err).Required()
	gt.A(t, result.Labels).Length(0)
}

func TestHDBSCAN_SingleBlob(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	points := blob(rng, []float64{1, 1}, 12, 0.1)

	t.Run("without single cluster everything is noise", func(t *testing.T) {
		h, err := cluster.New(10)
		gt.NoError(t, err).Required()
		result, err := h.Cluster(context.Background(), points)
		gt.NoError(t, err).Required()
		gt.Number(t, result.ClusterCount).Equal(0)
	})

	t.Run("with single cluster the blob is kept", func(t *testing.T) {
		h, err := cluster.New(10, cluster.WithSingleCluster())
		gt.NoError(t, err).Required()
		result, err := h.Cluster(context.Background(), points)
		gt.NoError(t, err).Required()
		gt.Number(t, result.ClusterCount).Equal(1)
		for _, l := range result.Labels {
			gt.Number(t, l).Equal(0)
		}
	})
}

func TestHDBSCAN_DuplicatePoints(t *testing.T) {
	h, err := cluster.New(3, cluster.WithSingleCluster())
	gt.NoError(t, err).Required()

	points := [][]float64{{1, 1}, {1, 1}, {1, 1}, {1, 1}}
	result, err := h.Cluster(context.Background(), points)
	gt.NoError(t, err).Required()
	for _, p := range result.Probabilities {
		gt.Number(t, p).GreaterOrEqual(0.0)
		gt.Number(t, p).LessOrEqual(1.0)
	}
}

func TestHDBSCAN_InvalidInput(t *testing.T) {
	_, err := cluster.New(1)
	gt.Error(t, err)

	h, err := cluster.New(2)
	gt.NoError(t, err).Required()
	_, err = h.Cluster(context.Background(), [][]float64{{0, 0}, {1}, {2, 2}})
	gt.Error(t, err)
}

func TestHDBSCAN_Cancelled(t *testing.T) {
	h, err := cluster.New(8)
	gt.NoError(t, err).Required()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.Cluster(ctx, twoBlobsWithOutliers())
	gt.Error(t, err)
}
