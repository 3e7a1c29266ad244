package svgp

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MeanStdMat returns the mean and standard deviation of each column of
// the data matrix. Columns whose elements are all equal get a standard
// deviation of 1 so that standardization is a no-op for them. MeanStdMat
// panics if x is nil.
func MeanStdMat(x mat.Matrix) (mean, std []float64) {
	if x == nil {
		panic(badStorageDim)
	}
	samp, dim := x.Dims()
	mean = make([]float64, dim)
	std = make([]float64, dim)
	col := make([]float64, samp)
	for j := 0; j < dim; j++ {
		mat.Col(col, j, x)
		m, s := stat.MeanStdDev(col, nil)
		mean[j] = m
		if s == 0 {
			s = 1
		}
		std[j] = s
	}
	return mean, std
}

// kernelMatrix computes the kernel matrix between the rows of x and xp,
// standardizing the rows first if mean/std are non-nil.
func kernelMatrix(k *mat.Dense, x, xp mat.Matrix, mean, std []float64, ker Kernel) *mat.Dense {
	m, p := x.Dims()
	n, p2 := xp.Dims()
	if p != p2 {
		panic(badStorageDim)
	}
	if k == nil {
		k = mat.NewDense(m, n, nil)
	}
	m2, n2 := k.Dims()
	if m2 != m || n2 != n {
		panic(badStorageDim)
	}
	xi := make([]float64, p)
	xj := make([]float64, p)
	for i := 0; i < m; i++ {
		rowScaled(xi, i, x, mean, std)
		for j := 0; j < n; j++ {
			rowScaled(xj, j, xp, mean, std)
			k.Set(i, j, ker.Kernel(xi, xj))
		}
	}
	return k
}

// kernelMatrixSym computes the kernel matrix between the rows of x and
// themselves, adding jitter along the diagonal.
func kernelMatrixSym(k *mat.SymDense, x mat.Matrix, mean, std []float64, ker Kernel, jitter float64) *mat.SymDense {
	m, p := x.Dims()
	if k == nil {
		k = mat.NewSymDense(m, nil)
	}
	if k.SymmetricDim() != m {
		panic(badStorageDim)
	}
	xi := make([]float64, p)
	xj := make([]float64, p)
	for i := 0; i < m; i++ {
		rowScaled(xi, i, x, mean, std)
		for j := i; j < m; j++ {
			rowScaled(xj, j, x, mean, std)
			v := ker.Kernel(xi, xj)
			if i == j {
				v += jitter
			}
			k.SetSym(i, j, v)
		}
	}
	return k
}

// rowScaled extracts the i'th row of a into row, standardizing it with
// the given per-column mean and std if they are non-nil.
func rowScaled(row []float64, i int, a mat.Matrix, mean, std []float64) {
	mat.Row(row, i, a)
	if mean == nil {
		return
	}
	if len(row) != len(mean) || len(mean) != len(std) {
		panic(badStorageDim)
	}
	for j, v := range row {
		row[j] = (v - mean[j]) / std[j]
	}
}
