// internal/station/repository.go
//
// Persistence gateway for the `stations` table.
//
// Context
// -------
// Two very different clients share this gateway:
//
//   - The ingest pipeline, which streams a full dataset into ReplaceAll()
//     once per sync run.
//   - The search engine, which issues the read-only finders below as coarse
//     prefilters and re-ranks the candidates itself.
//
// Workflow
// --------
//  1. Callers supply a pooled *sqlx.DB; each method borrows connections for
//     its own duration only.  No shared mutable handle, no package locks.
//  2. Finders execute exactly one parameterised SELECT each and scan into
//     `Record`.
//  3. ReplaceAll() loads into a staging table and swaps it in with one
//     atomic RENAME, so concurrent readers observe either the prior dataset
//     or the new one, never a mixture.
//
// Notes
// -----
// • Every finder excludes rows with an empty `uic`; such rows cannot be
//   addressed and are useless in listings.
// • The bounding-box finders are rectangle tests, not radius tests.  The
//   search engine re-ranks by true distance.
// • Column lists are derived from InfoLangs at init; update the schema and
//   that list together.
// • Oxford commas, two spaces after periods.
package station

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ErrNotFound is returned by ByUIC when no station carries the given code.
// Absence is a normal outcome, not a failure; callers translate it into
// their own not-found representation.
var ErrNotFound = errors.New("station not found")

// Table names used by the swap load.  The retired table only exists for the
// instant between the RENAME and the trailing DROP.
const (
	liveTable    = "stations"
	stagingTable = "stations_staging"
	retiredTable = "stations_retired"
)

var (
	infoColumns   = buildInfoColumns()
	selectColumns = "id, name, uic, latitude, longitude, country, " +
		strings.Join(infoColumns, ", ")
)

func buildInfoColumns() []string {
	cols := make([]string, len(InfoLangs))
	for i, lang := range InfoLangs {
		cols[i] = "info_" + lang
	}
	return cols
}

// Repository exposes the station persistence operations over a pooled
// connection set.  Zero value is unusable; construct with NewRepository.
type Repository struct {
	db *sqlx.DB
}

// NewRepository wraps an open pool.  The pool stays owned by the caller.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

/*──────────────────────────── finders ─────────────────────────────────────*/

// ByUIC fetches the single station carrying the given UIC code.  Returns
// ErrNotFound when absent.
func (r *Repository) ByUIC(ctx context.Context, uic string) (*Record, error) {
	q := `SELECT ` + selectColumns + `
            FROM ` + liveTable + `
           WHERE uic = ?
           LIMIT 1`

	var rec Record
	if err := r.db.GetContext(ctx, &rec, q, uic); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("station by uic %q: %w", uic, err)
	}
	return &rec, nil
}

// List returns up to limit addressable stations in a fixed name-then-id
// order.  Callers' tests assert exact ordering, so the ORDER BY here is part
// of the contract.
func (r *Repository) List(ctx context.Context, limit int) ([]Record, error) {
	q := `SELECT ` + selectColumns + `
            FROM ` + liveTable + `
           WHERE uic <> ''
           ORDER BY name, id
           LIMIT ?`

	var recs []Record
	if err := r.db.SelectContext(ctx, &recs, q, limit); err != nil {
		return nil, fmt.Errorf("station list: %w", err)
	}
	return recs, nil
}

// ByNamePattern returns stations whose display name or any localized alias
// contains pattern, case-insensitively.  Ordering follows List.
func (r *Repository) ByNamePattern(ctx context.Context, pattern string, limit int) ([]Record, error) {
	q := `SELECT ` + selectColumns + `
            FROM ` + liveTable + `
           WHERE uic <> ''
             AND ` + nameMatchClause() + `
           ORDER BY name, id
           LIMIT ?`

	args := nameMatchArgs(pattern)
	args = append(args, limit)

	var recs []Record
	if err := r.db.SelectContext(ctx, &recs, q, args...); err != nil {
		return nil, fmt.Errorf("station name search %q: %w", pattern, err)
	}
	return recs, nil
}

// ByBoundingBox returns candidate stations inside the rectangle
// [lat±halfWidth] × [lon±halfWidth].  Rows lacking either coordinate are
// excluded.  This is a candidate-reduction step only; corners of the box lie
// farther than halfWidth in real distance.
func (r *Repository) ByBoundingBox(ctx context.Context, lat, lon, halfWidth float64, limit int) ([]Record, error) {
	q := `SELECT ` + selectColumns + `
            FROM ` + liveTable + `
           WHERE uic <> ''
             AND latitude  IS NOT NULL
             AND longitude IS NOT NULL
             AND latitude  BETWEEN ? AND ?
             AND longitude BETWEEN ? AND ?
           LIMIT ?`

	var recs []Record
	err := r.db.SelectContext(ctx, &recs, q,
		lat-halfWidth, lat+halfWidth, lon-halfWidth, lon+halfWidth, limit)
	if err != nil {
		return nil, fmt.Errorf("station box search: %w", err)
	}
	return recs, nil
}

// ByNameAndBoundingBox combines the name predicate with the rectangle test.
func (r *Repository) ByNameAndBoundingBox(ctx context.Context, pattern string, lat, lon, halfWidth float64, limit int) ([]Record, error) {
	q := `SELECT ` + selectColumns + `
            FROM ` + liveTable + `
           WHERE uic <> ''
             AND ` + nameMatchClause() + `
             AND latitude  IS NOT NULL
             AND longitude IS NOT NULL
             AND latitude  BETWEEN ? AND ?
             AND longitude BETWEEN ? AND ?
           LIMIT ?`

	args := nameMatchArgs(pattern)
	args = append(args,
		lat-halfWidth, lat+halfWidth, lon-halfWidth, lon+halfWidth, limit)

	var recs []Record
	if err := r.db.SelectContext(ctx, &recs, q, args...); err != nil {
		return nil, fmt.Errorf("station name+box search %q: %w", pattern, err)
	}
	return recs, nil
}

// nameMatchClause builds the `(LOWER(name) LIKE ? OR LOWER(info_xx) LIKE ? …)`
// disjunction once from the column list, mirroring the dynamic IN-clause
// construction used elsewhere in the codebase.
func nameMatchClause() string {
	var b strings.Builder
	b.WriteString("(LOWER(name) LIKE ?")
	for _, col := range infoColumns {
		b.WriteString(" OR LOWER(")
		b.WriteString(col)
		b.WriteString(") LIKE ?")
	}
	b.WriteString(")")
	return b.String()
}

// nameMatchArgs repeats the lowercase %pattern% once per matched column.
func nameMatchArgs(pattern string) []any {
	p := "%" + strings.ToLower(pattern) + "%"
	args := make([]any, 0, len(infoColumns)+6)
	for i := 0; i < len(infoColumns)+1; i++ {
		args = append(args, p)
	}
	return args
}

/*──────────────────────────── bulk replace ────────────────────────────────*/

// ReplaceAll streams records into a fresh staging table and atomically swaps
// it in as the live table once the channel closes.  The swap happens only on
// clean channel close; a context cancellation aborts the load, drops the
// staging table, and leaves the live table untouched.
//
// Returns the number of rows inserted into the new live table.
func (r *Repository) ReplaceAll(ctx context.Context, records <-chan Record) (int64, error) {
	for _, leftover := range []string{stagingTable, retiredTable} {
		if _, err := r.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+leftover); err != nil {
			return 0, fmt.Errorf("replace: drop stale %s: %w", leftover, err)
		}
	}
	if _, err := r.db.ExecContext(ctx, `CREATE TABLE `+stagingTable+` LIKE `+liveTable); err != nil {
		return 0, fmt.Errorf("replace: create staging: %w", err)
	}

	insertQ := `INSERT INTO ` + stagingTable + ` (` + selectColumns + `)
                VALUES (?, ?, ?, ?, ?, ?` + strings.Repeat(", ?", len(infoColumns)) + `)`

	stmt, err := r.db.PreparexContext(ctx, insertQ)
	if err != nil {
		r.dropStaging()
		return 0, fmt.Errorf("replace: prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for {
		select {
		case rec, ok := <-records:
			if !ok {
				// Clean end of stream: promote staging to live.
				if err := r.swap(ctx); err != nil {
					r.dropStaging()
					return 0, err
				}
				return inserted, nil
			}
			if _, err := stmt.ExecContext(ctx, insertArgs(&rec)...); err != nil {
				r.dropStaging()
				return 0, fmt.Errorf("replace: insert id=%d: %w", rec.ID, err)
			}
			inserted++

		case <-ctx.Done():
			r.dropStaging()
			return 0, fmt.Errorf("replace: aborted: %w", ctx.Err())
		}
	}
}

// swap retires the live table and promotes staging in one atomic RENAME.
// Concurrent readers see the old table right up until the rename commits.
func (r *Repository) swap(ctx context.Context) error {
	q := `RENAME TABLE ` + liveTable + ` TO ` + retiredTable + `,
          ` + stagingTable + ` TO ` + liveTable

	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("replace: swap: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DROP TABLE `+retiredTable); err != nil {
		// The new dataset is already live; a lingering retired table is
		// cleaned up by the next run's DROP IF EXISTS.
		zap.S().Warnw("station replace: drop retired table failed", "err", err)
	}
	return nil
}

// dropStaging is best-effort cleanup on the failure paths.
func (r *Repository) dropStaging() {
	if _, err := r.db.Exec(`DROP TABLE IF EXISTS ` + stagingTable); err != nil {
		zap.S().Warnw("station replace: drop staging failed", "err", err)
	}
}

func insertArgs(rec *Record) []any {
	args := make([]any, 0, 6+len(InfoLangs))
	args = append(args, rec.ID, rec.Name, rec.UIC,
		rec.Latitude, rec.Longitude, rec.Country)
	for _, p := range rec.infoFields() {
		args = append(args, p)
	}
	return args
}
