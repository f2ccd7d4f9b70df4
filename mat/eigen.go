package mat

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// A ValVec is an eigenvalue and its eigenvector.
// Eigenvalues of Hermitian matrices are always real.
type ValVec struct {
	Val float64
	Vec []complex128
}

// Eigen computes the eigendecomposition of a Hermitian matrix.
// Eigenpairs are returned in ascending eigenvalue order, with unit norm
// eigenvectors.
//
// The complex Hermitian matrix A + iB is embedded in the real symmetric
// matrix [[A, -B], [B, A]], which has the same spectrum with every
// multiplicity doubled. A real eigenvector (x; y) of the embedding maps back
// to the complex eigenvector x + iy with its norm preserved.
func (m *Dense) Eigen() []ValVec {
	if m.rows != m.cols {
		panic(fmt.Sprintf("%d %d", m.rows, m.cols))
	}
	n := m.rows

	sym := mat.NewSymDense(2*n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			re := real(m.At(i, j))
			sym.SetSym(i, j, re)
			sym.SetSym(n+i, n+j, re)
		}
		for j := 0; j < n; j++ {
			sym.SetSym(i, n+j, -imag(m.At(i, j)))
		}
	}

	var es mat.EigenSym
	if ok := es.Factorize(sym, true); !ok {
		panic("eigendecomposition failed")
	}
	vals := es.Values(nil)
	vecs := mat.NewDense(2*n, 2*n, nil)
	es.VectorsTo(vecs)

	// The eigenvalues of the embedding come in adjacent ascending pairs,
	// one pair per eigenvalue of the original matrix.
	vvs := make([]ValVec, 0, n)
	for k := 0; k < n; k++ {
		col := 2 * k
		vec := make([]complex128, n)
		for i := 0; i < n; i++ {
			vec[i] = complex(vecs.At(i, col), vecs.At(n+i, col))
		}
		vvs = append(vvs, ValVec{Val: vals[col], Vec: vec})
	}
	return vvs
}
