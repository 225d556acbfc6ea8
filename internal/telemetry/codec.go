package telemetry

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func ParseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return v, nil
}

// EncodeVector writes v as space separated numbers.
func EncodeVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = FormatFloat(x)
	}
	return strings.Join(parts, " ")
}

// EncodeMatrix writes rows separated by ';' and columns by spaces.
func EncodeMatrix(m mat.Matrix) string {
	r, c := m.Dims()
	rows := make([]string, r)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			row[j] = m.At(i, j)
		}
		rows[i] = EncodeVector(row)
	}
	return strings.Join(rows, "; ")
}

// DecodeVector parses a flat vector. It accepts the space separated form,
// ';' row separators and the bracketed JSON-style "[a,b,c]" form.
func DecodeVector(s string) ([]float64, error) {
	rows, err := DecodeMatrix(s)
	if err != nil {
		return nil, err
	}
	var out []float64
	for _, r := range rows {
		out = append(out, r...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty vector", ErrMalformed)
	}
	return out, nil
}

// DecodeMatrix parses rows of numbers. Rows may be ragged; callers check
// the shape they need.
func DecodeMatrix(s string) ([][]float64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		s = strings.NewReplacer("[", " ", "]", ";", ",", " ").Replace(s)
	}

	var rows [][]float64
	for _, line := range strings.Split(s, ";") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := ParseFloat(f)
			if err != nil {
				return nil, err
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
