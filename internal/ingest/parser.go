// internal/ingest/parser.go
//
// Row decoding for the semicolon-delimited stations dataset.
//
// Context
// -------
// The upstream CSV schema has grown columns over the years, so positions are
// never hardcoded.  Instead the header row is resolved **once per run** into
// a rowMap of integer indexes; every subsequent row is decoded by plain
// slice indexing.  No per-row column-name lookups, no reflection.
//
// Workflow
// --------
//  1. newRowMap(header) locates the required and optional columns, failing
//     the run when a required column is missing entirely.
//  2. rowMap.record(row, line) converts one data row into a station.Record.
//     Malformed values produce a *RowError so the caller can skip and count
//     the row without aborting the stream.
//
// Notes
// -----
// • Empty string and absent column both mean "no value" for optionals.
// • Localized alias columns are named `info:<lang>` upstream and resolved
//   from station.InfoLangs, keeping schema and parser in one place.
// • Oxford commas, two spaces after periods.
package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yanizio/depot/internal/station"
)

// RowError describes one undecodable input row.  It is recoverable: the
// pipeline counts it and moves on.
type RowError struct {
	Line int   // 1-based data row number, header excluded
	Err  error // underlying cause
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// missing marks a column that is absent from the header.
const missing = -1

// rowMap holds the resolved column index for every field we extract.  Built
// once per run from the header row; row decoding is pure slice indexing.
type rowMap struct {
	id        int
	name      int
	uic       int
	latitude  int
	longitude int
	country   int
	info      []int // station.InfoLangs order
}

// newRowMap resolves header columns.  `id` and `name` must exist; every
// other column degrades to "always absent" when the dataset lacks it.
func newRowMap(header []string) (*rowMap, error) {
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.TrimSpace(col)] = i
	}

	find := func(name string) int {
		if i, ok := idx[name]; ok {
			return i
		}
		return missing
	}

	m := &rowMap{
		id:        find("id"),
		name:      find("name"),
		uic:       find("uic"),
		latitude:  find("latitude"),
		longitude: find("longitude"),
		country:   find("country"),
		info:      make([]int, len(station.InfoLangs)),
	}
	for i, lang := range station.InfoLangs {
		m.info[i] = find("info:" + lang)
	}

	if m.id == missing || m.name == missing {
		return nil, fmt.Errorf("header is missing required columns (id, name): %q", header)
	}
	return m, nil
}

// record decodes one data row.  Errors are always *RowError.
func (m *rowMap) record(row []string, line int) (station.Record, error) {
	var rec station.Record

	id, err := strconv.ParseInt(field(row, m.id), 10, 64)
	if err != nil {
		return rec, &RowError{Line: line, Err: fmt.Errorf("bad id: %w", err)}
	}
	rec.ID = id

	rec.Name = strings.TrimSpace(field(row, m.name))
	if rec.Name == "" {
		return rec, &RowError{Line: line, Err: fmt.Errorf("empty name")}
	}

	// UIC codes are opaque strings; leading zeros and non-numeric variants
	// must survive untouched.
	rec.UIC = strings.TrimSpace(field(row, m.uic))

	if rec.Latitude, err = optFloat(field(row, m.latitude)); err != nil {
		return rec, &RowError{Line: line, Err: fmt.Errorf("bad latitude: %w", err)}
	}
	if rec.Longitude, err = optFloat(field(row, m.longitude)); err != nil {
		return rec, &RowError{Line: line, Err: fmt.Errorf("bad longitude: %w", err)}
	}

	rec.Country = optString(field(row, m.country))

	infos := []**string{
		&rec.InfoDE, &rec.InfoEN, &rec.InfoES, &rec.InfoFR, &rec.InfoIT,
		&rec.InfoNB, &rec.InfoNL, &rec.InfoCS, &rec.InfoDA, &rec.InfoHU,
		&rec.InfoJA, &rec.InfoKO, &rec.InfoPL, &rec.InfoPT, &rec.InfoRU,
		&rec.InfoSV, &rec.InfoTR, &rec.InfoZH,
	}
	for i, dst := range infos {
		*dst = optString(field(row, m.info[i]))
	}

	return rec, nil
}

// field returns the raw cell, or "" when the column is absent from the
// header or the row is shorter than the resolved index.
func field(row []string, i int) string {
	if i == missing || i >= len(row) {
		return ""
	}
	return row[i]
}

func optString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func optFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
