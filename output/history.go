package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/notargets/gopnp/newton"
	"github.com/notargets/gopnp/pnp"
)

var HistoryHeader = []string{
	"step", "time", "level", "cells", "newton_iterations", "state",
	"relative_residual", "max_residual", "l2_error", "h1_error", "energy",
	"refinement_levels", "marked",
}

// HistoryWriter writes one CSV row per refinement level.
type HistoryWriter struct {
	w *csv.Writer
}

func NewHistoryWriter(w io.Writer) (hw *HistoryWriter, err error) {
	hw = &HistoryWriter{w: csv.NewWriter(w)}
	if err = hw.w.Write(HistoryHeader); err != nil {
		return
	}
	hw.w.Flush()
	err = hw.w.Error()
	return
}

func ftoa(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

// Write flushes after every row so a partial history survives a crash.
func (hw *HistoryWriter) Write(rec pnp.LevelRecord) error {
	row := []string{
		strconv.Itoa(rec.Step),
		ftoa(rec.Time),
		strconv.Itoa(rec.Level),
		strconv.Itoa(rec.Cells),
		strconv.Itoa(rec.NewtonIterations),
		rec.State.String(),
		ftoa(rec.RelativeResidual),
		ftoa(rec.MaxResidual),
		ftoa(rec.L2Error),
		ftoa(rec.H1Error),
		ftoa(rec.Energy),
		strconv.Itoa(rec.RefinementLevels),
		strconv.Itoa(rec.Marked),
	}
	if err := hw.w.Write(row); err != nil {
		return err
	}
	hw.w.Flush()
	return hw.w.Error()
}

// ReadHistory parses a file written by HistoryWriter.
func ReadHistory(r io.Reader) (recs []pnp.LevelRecord, err error) {
	var (
		records [][]string
	)
	if records, err = csv.NewReader(r).ReadAll(); err != nil {
		return
	}
	if len(records) == 0 {
		err = fmt.Errorf("empty history")
		return
	}
	if len(records[0]) != len(HistoryHeader) {
		err = fmt.Errorf("history header has %d columns, want %d", len(records[0]), len(HistoryHeader))
		return
	}
	for i, row := range records[1:] {
		var rec pnp.LevelRecord
		if rec, err = parseRow(row); err != nil {
			err = fmt.Errorf("history line %d: %w", i+2, err)
			return
		}
		recs = append(recs, rec)
	}
	return
}

func parseRow(row []string) (rec pnp.LevelRecord, err error) {
	var (
		ints = map[int]*int{
			0: &rec.Step, 2: &rec.Level, 3: &rec.Cells, 4: &rec.NewtonIterations,
			11: &rec.RefinementLevels, 12: &rec.Marked,
		}
		flts = map[int]*float64{
			1: &rec.Time, 6: &rec.RelativeResidual, 7: &rec.MaxResidual,
			8: &rec.L2Error, 9: &rec.H1Error, 10: &rec.Energy,
		}
	)
	for col, p := range ints {
		if *p, err = strconv.Atoi(row[col]); err != nil {
			return
		}
	}
	for col, p := range flts {
		if *p, err = strconv.ParseFloat(row[col], 64); err != nil {
			return
		}
	}
	rec.State, err = newton.ParseState(row[5])
	return
}

// ConvergenceOrders returns the observed L2 and H1 orders between
// consecutive levels measured against the cell size N^-1. Levels without an
// error (NaN) give NaN orders.
func ConvergenceOrders(recs []pnp.LevelRecord) (l2, h1 []float64) {
	for i := 1; i < len(recs); i++ {
		var (
			a, b = recs[i-1], recs[i]
			dn   = math.Log(float64(b.Cells) / float64(a.Cells))
		)
		l2 = append(l2, math.Log(a.L2Error/b.L2Error)/dn)
		h1 = append(h1, math.Log(a.H1Error/b.H1Error)/dn)
	}
	return
}
