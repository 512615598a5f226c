package replay

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/crash-analysis/internal/netk"
)

// CSV column names of an exported OD cost matrix.
const (
	ColIteration   = "Iteration_Number"
	ColOrigin      = "OriginID"
	ColDestination = "DestinationID"
	ColLength      = "Total_Length"
)

var csvHeader = []string{ColIteration, ColOrigin, ColDestination, ColLength}

// ReadCSV loads a Table from an exported OD cost matrix. Columns are found
// by name, case-insensitively; extra columns are ignored.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	cols := make([]int, len(csvHeader))
	for i, name := range csvHeader {
		c, ok := idx[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %s", netk.ErrInvalidInput, name)
		}
		cols[i] = c
	}

	t := NewTable()
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		iteration, err := strconv.Atoi(rec[cols[0]])
		if err != nil || iteration < 0 {
			return nil, fmt.Errorf("%w: line %d: bad iteration %q", netk.ErrInvalidInput, line, rec[cols[0]])
		}
		origin, err := strconv.ParseInt(rec[cols[1]], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad origin %q", netk.ErrInvalidInput, line, rec[cols[1]])
		}
		dest, err := strconv.ParseInt(rec[cols[2]], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad destination %q", netk.ErrInvalidInput, line, rec[cols[2]])
		}
		dist, err := strconv.ParseFloat(rec[cols[3]], 64)
		if err != nil || dist < 0 {
			return nil, fmt.Errorf("%w: line %d: bad length %q", netk.ErrInvalidInput, line, rec[cols[3]])
		}
		t.Add(iteration, netk.DistanceRecord{Distance: dist, OriginID: origin, DestinationID: dest})
	}
	if _, ok := t.iterations[0]; !ok {
		return nil, fmt.Errorf("%w: no observed iteration (%s = 0)", netk.ErrInvalidInput, ColIteration)
	}
	t.fillThrough(t.Permutations())
	return t, nil
}

// WriteCSV exports the table in the format ReadCSV reads, iterations in
// ascending order.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, it := range t.Iterations() {
		for _, r := range t.iterations[it] {
			if err := cw.Write([]string{
				strconv.Itoa(it),
				strconv.FormatInt(r.OriginID, 10),
				strconv.FormatInt(r.DestinationID, 10),
				strconv.FormatFloat(r.Distance, 'f', -1, 64),
			}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
