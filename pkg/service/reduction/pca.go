package reduction

import (
	"context"
	"math"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/interfaces"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCA reduces L2-normalized embeddings with principal component analysis.
// The result is deterministic: component signs are fixed so that the largest
// loading of every component is positive.
type PCA struct {
	components int
	minSamples int
}

var _ interfaces.Reducer = &PCA{}

// NewPCA creates a reducer producing the given number of components. Inputs
// with fewer than minSamples vectors fail with model.ErrInsufficientData.
func NewPCA(components, minSamples int) *PCA {
	return &PCA{components: components, minSamples: minSamples}
}

func (p *PCA) Reduce(ctx context.Context, vectors [][]float32) ([][]float64, error) {
	if len(vectors) < p.minSamples || len(vectors) < 2 {
		return nil, goerr.Wrap(model.ErrInsufficientData, "not enough vectors to reduce",
			goerr.V("count", len(vectors)),
			goerr.V("min", p.minSamples))
	}
	return project(ctx, vectors, p.components)
}

// project returns the first k principal component scores of vectors
func project(ctx context.Context, vectors [][]float32, k int) ([][]float64, error) {
	x, err := centeredMatrix(vectors)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, goerr.Wrap(err, "reduction cancelled")
	}

	n, dim := x.Dims()
	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return nil, goerr.New("SVD factorization failed", goerr.V("rows", n), goerr.V("cols", dim))
	}

	var v mat.Dense
	svd.VTo(&v)
	_, available := v.Dims()
	k = min(k, available)

	basis := mat.DenseCopyOf(v.Slice(0, dim, 0, k))
	fixSigns(basis)

	var scores mat.Dense
	scores.Mul(x, basis)

	out := make([][]float64, n)
	for i := range out {
		out[i] = mat.Row(nil, i, &scores)
	}
	return out, nil
}

// centeredMatrix L2-normalizes each vector and subtracts column means
func centeredMatrix(vectors [][]float32) (*mat.Dense, error) {
	n := len(vectors)
	dim := len(vectors[0])
	if dim == 0 {
		return nil, goerr.New("vectors have no dimension")
	}

	data := make([]float64, n*dim)
	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, goerr.New("vector dimension mismatch",
				goerr.V("index", i),
				goerr.V("expected", dim),
				goerr.V("actual", len(vec)))
		}
		var norm float64
		for _, x := range vec {
			norm += float64(x) * float64(x)
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			norm = 1
		}
		for j, x := range vec {
			data[i*dim+j] = float64(x) / norm
		}
	}

	x := mat.NewDense(n, dim, data)
	col := make([]float64, n)
	for j := 0; j < dim; j++ {
		mat.Col(col, j, x)
		mean := stat.Mean(col, nil)
		for i := 0; i < n; i++ {
			x.Set(i, j, x.At(i, j)-mean)
		}
	}
	return x, nil
}

func fixSigns(basis *mat.Dense) {
	rows, cols := basis.Dims()
	for j := 0; j < cols; j++ {
		maxAbs, sign := 0.0, 1.0
		for i := 0; i < rows; i++ {
			if a := math.Abs(basis.At(i, j)); a > maxAbs {
				maxAbs = a
				sign = math.Copysign(1, basis.At(i, j))
			}
		}
		if sign < 0 {
			for i := 0; i < rows; i++ {
				basis.Set(i, j, -basis.At(i, j))
			}
		}
	}
}
