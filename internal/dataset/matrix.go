package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"fleetroute/internal/model"
)

// ReadMatrix parses a square matrix exported with a header row and a leading
// index column; both are dropped. Cells may be written as floats ("1200.0")
// and are rounded to the nearest integer.
func ReadMatrix(r io.Reader) ([][]int64, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read matrix: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("read matrix: no data rows: %w", model.ErrInvalidConfiguration)
	}
	rows := records[1:]
	out := make([][]int64, len(rows))
	for i, rec := range rows {
		if len(rec) != len(rows)+1 {
			return nil, fmt.Errorf("read matrix: row %d has %d cells, want %d: %w", i, len(rec)-1, len(rows), model.ErrInvalidConfiguration)
		}
		out[i] = make([]int64, len(rec)-1)
		for j, cell := range rec[1:] {
			v, err := parseCell(cell)
			if err != nil {
				return nil, fmt.Errorf("read matrix: row %d col %d: %w", i, j, err)
			}
			out[i][j] = v
		}
	}
	return out, nil
}

func parseCell(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("bad cell %q: %w", s, model.ErrInvalidConfiguration)
	}
	return int64(math.Round(f)), nil
}

// ReadMatrixFile opens path and calls ReadMatrix.
func ReadMatrixFile(path string) ([][]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := ReadMatrix(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// WriteMatrix writes m in the layout ReadMatrix expects, labelling rows and
// columns with names.
func WriteMatrix(w io.Writer, names []string, m [][]int64) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{""}, names...)); err != nil {
		return err
	}
	for i, row := range m {
		rec := make([]string, 0, len(row)+1)
		rec = append(rec, names[i])
		for _, v := range row {
			rec = append(rec, strconv.FormatInt(v, 10))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
