// Package export reads the CSV tables a solved instance is exported as: one
// header row, index columns, and a trailing value column.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// ReadRows calls fn for every data row of the CSV file at path, skipping the
// header. Rows with fewer than minCols columns are rejected. Errors carry the
// file name and line number.
func ReadRows(path string, minCols int, fn func([]string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	if _, err := r.Read(); err != nil {
		return fmt.Errorf("read header %s: %w", filepath.Base(path), err)
	}
	line := 1
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("read %s: %w", filepath.Base(path), err)
		}
		if len(rec) < minCols {
			return fmt.Errorf("%s line %d: expected %d columns, got %d", filepath.Base(path), line, minCols, len(rec))
		}
		if err := fn(rec); err != nil {
			return fmt.Errorf("%s line %d: %w", filepath.Base(path), line, err)
		}
	}
}

// ParseIndex accepts integer indices written either as "12" or "12.0".
func ParseIndex(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid index %q", s)
	}
	return int(f), nil
}

func ParseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	return v, nil
}
