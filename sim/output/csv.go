// Package output implements result sinks for simulation step rows.
package output

import (
	"encoding/csv"
	"io"
	"strconv"
)

// CSVWriter writes the simulation's row stream as CSV: one header row of
// entity names in graph traversal order, then one row of current values per
// completed step. It implements sim.RowWriter.
type CSVWriter struct {
	w *csv.Writer
}

// NewCSVWriter wraps w in a CSV row sink. Callers own w's lifetime; call
// Flush before closing it.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

// WriteHeader writes the "time step" column followed by the entity names.
func (c *CSVWriter) WriteHeader(names []string) error {
	row := make([]string, 0, len(names)+1)
	row = append(row, "time step")
	row = append(row, names...)
	return c.w.Write(row)
}

// WriteRow writes one step's snapshot. Values render at the shortest exact
// representation; infinities render as "+Inf".
func (c *CSVWriter) WriteRow(step int, values []float64) error {
	row := make([]string, 0, len(values)+1)
	row = append(row, strconv.Itoa(step))
	for _, v := range values {
		row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return c.w.Write(row)
}

// Flush pushes buffered rows to the underlying writer.
func (c *CSVWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}
