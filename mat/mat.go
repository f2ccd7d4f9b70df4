// Package mat provides dense complex matrices for phase synchronization.
package mat

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	FnameShape = "shape.csv"
	FnameCOO   = "coo.csv"
)

// Dense is a dense complex matrix in row major order.
type Dense struct {
	rows int
	cols int
	Data []complex128
}

func M(dense [][]complex128) *Dense {
	m := &Dense{rows: len(dense), cols: len(dense[0]), Data: make([]complex128, 0, len(dense)*len(dense[0]))}
	for _, row := range dense {
		if len(row) != m.cols {
			panic(fmt.Sprintf("%d %d", len(row), m.cols))
		}
		m.Data = append(m.Data, row...)
	}
	return m
}

func Zeros(rows, cols int) *Dense {
	return &Dense{rows: rows, cols: cols, Data: make([]complex128, rows*cols)}
}

func Identity(rows int) *Dense {
	m := Zeros(rows, rows)
	for i := 0; i < rows; i++ {
		m.Data[i*rows+i] = 1
	}
	return m
}

func (m *Dense) Rows() int { return m.rows }
func (m *Dense) Cols() int { return m.cols }

func (m *Dense) At(i, j int) complex128 {
	return m.Data[i*m.cols+j]
}

func (m *Dense) Set(i, j int, v complex128) {
	m.Data[i*m.cols+j] = v
}

func (m *Dense) Clone() *Dense {
	c := &Dense{rows: m.rows, cols: m.cols, Data: make([]complex128, len(m.Data))}
	copy(c.Data, m.Data)
	return c
}

func (a *Dense) Equal(b *Dense) bool {
	if a.rows != b.rows {
		return false
	}
	if a.cols != b.cols {
		return false
	}
	for i, av := range a.Data {
		if av != b.Data[i] {
			return false
		}
	}
	return true
}

// Add performs a += c*b.
func (a *Dense) Add(c complex128, b *Dense) {
	if a.rows != b.rows || a.cols != b.cols {
		panic(fmt.Sprintf("%d %d %d %d", a.rows, a.cols, b.rows, b.cols))
	}
	for i, bv := range b.Data {
		a.Data[i] += c * bv
	}
}

func (a *Dense) MulVec(x []complex128) []complex128 {
	if a.cols != len(x) {
		panic(fmt.Sprintf("%d %d", a.cols, len(x)))
	}
	y := make([]complex128, a.rows)
	for i := 0; i < a.rows; i++ {
		var s complex128
		row := a.Data[i*a.cols : (i+1)*a.cols]
		for j, v := range row {
			s += v * x[j]
		}
		y[i] = s
	}
	return y
}

func (m *Dense) ConjTranspose() *Dense {
	t := Zeros(m.cols, m.rows)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			t.Set(j, i, cmplx.Conj(m.At(i, j)))
		}
	}
	return t
}

// IsHermitian reports whether m equals its conjugate transpose, within the
// same elementwise tolerance as numpy's allclose,
// |m[i][j] - conj(m[j][i])| <= atol + rtol*|conj(m[j][i])|.
func (m *Dense) IsHermitian(rtol, atol float64) bool {
	if m.rows != m.cols {
		return false
	}
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			want := cmplx.Conj(m.At(j, i))
			if cmplx.Abs(m.At(i, j)-want) > atol+rtol*cmplx.Abs(want) {
				return false
			}
		}
	}
	return true
}

func (m *Dense) Dense() [][]complex128 {
	dense := make([][]complex128, m.rows)
	for i := range dense {
		dense[i] = make([]complex128, m.cols)
		copy(dense[i], m.Data[i*m.cols:(i+1)*m.cols])
	}
	return dense
}

// Vdot computes the inner product conj(x) . y.
func Vdot(x, y []complex128) complex128 {
	if len(x) != len(y) {
		panic(fmt.Sprintf("%d %d", len(x), len(y)))
	}
	var s complex128
	for i, xv := range x {
		s += cmplx.Conj(xv) * y[i]
	}
	return s
}

// Norm1 is the sum of the moduli of x.
// Note this differs from the BLAS asum, which sums |real| + |imag| instead.
func Norm1(x []complex128) float64 {
	var s float64
	for _, v := range x {
		s += cmplx.Abs(v)
	}
	return s
}

func Norm2(x []complex128) float64 {
	var s float64
	for _, v := range x {
		s += real(v)*real(v) + imag(v)*imag(v)
	}
	return math.Sqrt(s)
}

func (m *Dense) WriteCSV(dir string) error {
	shapePath := filepath.Join(dir, FnameShape)
	if err := os.WriteFile(shapePath, []byte(fmt.Sprintf("%d,%d", m.rows, m.cols)), 0644); err != nil {
		return errors.Wrap(err, "")
	}

	cooPath := filepath.Join(dir, FnameCOO)
	cooF, err := os.Create(cooPath)
	if err != nil {
		return errors.Wrap(err, "")
	}

	w := csv.NewWriter(cooF)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			v := m.At(i, j)
			if v == 0 {
				continue
			}
			if err1 := w.Write([]string{FormatNumpy(v), strconv.Itoa(i), strconv.Itoa(j)}); err1 != nil && err == nil {
				err = errors.Wrap(err1, "")
			}
		}
	}
	w.Flush()
	if err1 := w.Error(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}

	if err1 := cooF.Close(); err1 != nil && err == nil {
		err = errors.Wrap(err1, "")
	}
	return err
}

type vRowCol struct {
	v   complex128
	row int
	col int
}

// A COOReader reads matrix entries in coordinate format.
// Empty value and row fields repeat those of the previous entry.
type COOReader struct {
	f *os.File
	r *csv.Reader
	i int

	prev vRowCol
}

func NewCOOReader(dir string) (*COOReader, error) {
	r := &COOReader{i: -1}

	cooPath := filepath.Join(dir, FnameCOO)
	var err error
	r.f, err = os.Open(cooPath)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	r.r = csv.NewReader(r.f)
	return r, nil
}

func (r *COOReader) Close() error {
	return r.f.Close()
}

func (r *COOReader) Read() (vRowCol, error) {
	r.i++
	record, err := r.r.Read()
	if err == io.EOF {
		return vRowCol{}, io.EOF
	}
	if err != nil {
		return vRowCol{}, errors.Wrap(err, fmt.Sprintf("%d", r.i))
	}
	if len(record) != 3 {
		return vRowCol{}, errors.Errorf("%d %#v", r.i, record)
	}

	var vrc vRowCol
	switch {
	case record[0] == "":
		vrc.v = r.prev.v
	default:
		s := strings.ReplaceAll(record[0], "j", "i")
		vrc.v, err = strconv.ParseComplex(s, 128)
		if err != nil {
			return vRowCol{}, errors.Wrap(err, fmt.Sprintf("%d %#v", r.i, record))
		}
	}

	switch {
	case record[1] == "":
		vrc.row = r.prev.row
	default:
		vrc.row, err = strconv.Atoi(record[1])
		if err != nil {
			return vRowCol{}, errors.Wrap(err, fmt.Sprintf("%d %#v", r.i, record))
		}
	}

	vrc.col, err = strconv.Atoi(record[2])
	if err != nil {
		return vRowCol{}, errors.Wrap(err, fmt.Sprintf("%d %#v", r.i, record))
	}

	r.prev = vrc
	return vrc, nil
}

func ReadCSV(dir string) (*Dense, error) {
	rows, cols, err := readShape(dir)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	m := Zeros(rows, cols)

	r, err := NewCOOReader(dir)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer r.Close()
	for {
		v, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		if v.row < 0 || v.row >= rows || v.col < 0 || v.col >= cols {
			return nil, errors.Errorf("%#v %d %d", v, rows, cols)
		}

		m.Set(v.row, v.col, v.v)
	}

	return m, nil
}

func readShape(dir string) (int, int, error) {
	f, err := os.Open(filepath.Join(dir, FnameShape))
	if err != nil {
		return -1, -1, errors.Wrap(err, "")
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return -1, -1, errors.Wrap(err, "")
	}
	if len(records) == 0 {
		return -1, -1, errors.Errorf("empty")
	}
	row := records[0]

	if len(row) != 2 {
		return -1, -1, errors.Errorf("%#v", row)
	}
	i, err := strconv.Atoi(row[0])
	if err != nil {
		return -1, -1, errors.Wrap(err, fmt.Sprintf("%#v", row))
	}
	j, err := strconv.Atoi(row[1])
	if err != nil {
		return -1, -1, errors.Wrap(err, fmt.Sprintf("%#v", row))
	}

	return i, j, nil
}

func (m *Dense) String() string {
	lines := []string{}
	for i := 0; i < m.rows; i++ {
		cs := []string{}
		for j := 0; j < m.cols; j++ {
			v := m.At(i, j)
			switch {
			case imag(v) == 0:
				cs = append(cs, format(real(v)))
			case real(v) == 0:
				cs = append(cs, format(imag(v))+"i")
			default:
				cs = append(cs, format(real(v))+"+"+format(imag(v))+"i")
			}
		}
		l := strings.Join(cs, "\t")
		lines = append(lines, l)
	}
	return strings.Join(lines, "\n")
}

func format(v float64) string {
	// If v is 0 or -0, return "0" immediately to avoid returning "-0".
	if v == 0 {
		return " 0"
	}

	s := strconv.FormatFloat(v, 'g', 5, 64)

	// Add a space before non-negative numbers to align with other negative numbers in the same column.
	if v >= 0 {
		s = " " + s
	}

	return s
}

func FormatNumpy(v complex128) string {
	switch {
	case imag(v) == 0:
		return strconv.FormatFloat(real(v), 'g', -1, 64)
	default:
		s := strconv.FormatComplex(v, 'g', -1, 128)
		s = strings.ReplaceAll(s, "i", "j")
		return s
	}
}
