package spatialmath

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrSingularMatrix is returned when a matrix has no inverse.
var ErrSingularMatrix = errors.New("matrix is singular")

// Matrix4 is a row-major 4x4 matrix. Sensor streams store these as float32; they are
// widened here so that products accumulate in float64.
type Matrix4 [16]float64

// Identity4 returns the 4x4 identity matrix.
func Identity4() Matrix4 {
	return Matrix4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// NewMatrix4FromFloat32 widens 16 row-major float32 values into a Matrix4.
func NewMatrix4FromFloat32(vals [16]float32) Matrix4 {
	var m Matrix4
	for i, v := range vals {
		m[i] = float64(v)
	}
	return m
}

// Float32 narrows the matrix back to the float32 storage format.
func (m Matrix4) Float32() [16]float32 {
	var out [16]float32
	for i, v := range m {
		out[i] = float32(v)
	}
	return out
}

// At returns the element at row r and column c.
func (m Matrix4) At(r, c int) float64 {
	return m[r*4+c]
}

// MulVec returns m·v.
func (m Matrix4) MulVec(v [4]float64) [4]float64 {
	var out [4]float64
	for r := 0; r < 4; r++ {
		row := m[r*4 : r*4+4]
		out[r] = row[0]*v[0] + row[1]*v[1] + row[2]*v[2] + row[3]*v[3]
	}
	return out
}

// Mul returns m·o.
func (m Matrix4) Mul(o Matrix4) Matrix4 {
	var out Matrix4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += m[r*4+k] * o[k*4+c]
			}
			out[r*4+c] = sum
		}
	}
	return out
}

// Dense returns a gonum copy of the matrix.
func (m Matrix4) Dense() *mat.Dense {
	data := make([]float64, 16)
	copy(data, m[:])
	return mat.NewDense(4, 4, data)
}

// Inverse returns the inverse of m. Ill-conditioned matrices still invert; only an
// infinite condition number or a non-finite result is reported as ErrSingularMatrix.
func (m Matrix4) Inverse() (Matrix4, error) {
	var inv mat.Dense
	if err := inv.Inverse(m.Dense()); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return Matrix4{}, errors.Wrapf(ErrSingularMatrix, "%v", err)
		}
	}
	var out Matrix4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			v := inv.At(r, c)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Matrix4{}, ErrSingularMatrix
			}
			out[r*4+c] = v
		}
	}
	return out, nil
}

// IsDegeneratePose reports whether m is the marker a tracker writes when it lost the pose:
// a top-left entry of -Inf or exactly 0.
func (m Matrix4) IsDegeneratePose() bool {
	return math.IsInf(m[0], -1) || m[0] == 0
}

// WriteText writes the matrix as four lines of space separated "%f" values.
// Non-finite values are written as "inf", "-inf" and "nan".
func (m Matrix4) WriteText(w io.Writer) error {
	for r := 0; r < 4; r++ {
		if _, err := fmt.Fprintf(w, "%s %s %s %s\n",
			textValue(m[r*4]), textValue(m[r*4+1]), textValue(m[r*4+2]), textValue(m[r*4+3])); err != nil {
			return err
		}
	}
	return nil
}

func textValue(v float64) string {
	f := float32(v)
	switch {
	case math.IsNaN(float64(f)):
		return "nan"
	case math.IsInf(float64(f), 1):
		return "inf"
	case math.IsInf(float64(f), -1):
		return "-inf"
	}
	return fmt.Sprintf("%f", f)
}

// ReadMatrix4Text parses the format produced by WriteText. Blank lines are ignored.
func ReadMatrix4Text(r io.Reader) (Matrix4, error) {
	var m Matrix4
	scanner := bufio.NewScanner(r)
	row := 0
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if row >= 4 {
			return Matrix4{}, errors.New("matrix text has more than 4 rows")
		}
		if len(fields) != 4 {
			return Matrix4{}, errors.Errorf("matrix row %d has %d columns, expected 4", row, len(fields))
		}
		for c, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return Matrix4{}, errors.Wrapf(err, "invalid matrix value at row %d column %d", row, c)
			}
			m[row*4+c] = v
		}
		row++
	}
	if err := scanner.Err(); err != nil {
		return Matrix4{}, err
	}
	if row != 4 {
		return Matrix4{}, errors.Errorf("matrix text has %d rows, expected 4", row)
	}
	return m, nil
}
