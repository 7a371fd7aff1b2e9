// internal/station/repository_test.go
//
// Unit-tests for the station persistence gateway using sqlmock.
//
// Context
// -------
// The repository is exercised against a mocked driver, so these tests pin
// down the SQL contract rather than MySQL behaviour:
//
//   • ByUIC         – found row scan, and ErrNoRows → ErrNotFound mapping
//   • ByNamePattern – one lowercased %pattern% argument per searched column
//   • ByBoundingBox – widening the half-width must widen (nest) the bounds
//   • ReplaceAll    – staging insert, atomic RENAME swap on clean close,
//                     and no swap when the context is cancelled mid-stream
//
// Run: go test ./internal/station -v

package station

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

// newMock wraps a sqlmock connection in sqlx for repository construction.
func newMock(t *testing.T) (*Repository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	sdb := sqlx.NewDb(db, "sqlmock")
	return NewRepository(sdb), mock, func() { sdb.Close() }
}

// stationColumns mirrors the SELECT list scanned into Record.
func stationColumns() []string {
	cols := []string{"id", "name", "uic", "latitude", "longitude", "country"}
	for _, lang := range InfoLangs {
		cols = append(cols, "info_"+lang)
	}
	return cols
}

// rowFor builds a sqlmock row with all info columns NULL.
func rowFor(rows *sqlmock.Rows, id int64, name, uic string, lat, lon *float64) *sqlmock.Rows {
	vals := []driver.Value{id, name, uic, lat, lon, nil}
	for range InfoLangs {
		vals = append(vals, nil)
	}
	return rows.AddRow(vals...)
}

func TestByUIC_Found(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()

	lat, lon := 38.71387, -9.122271
	rows := rowFor(sqlmock.NewRows(stationColumns()),
		9430007, "Lisbon Santa Apolónia", "9430007", &lat, &lon)

	mock.ExpectQuery(`SELECT .* FROM stations WHERE uic = \? LIMIT 1`).
		WithArgs("9430007").
		WillReturnRows(rows)

	rec, err := repo.ByUIC(context.Background(), "9430007")
	if err != nil {
		t.Fatalf("ByUIC error: %v", err)
	}
	if rec.Name != "Lisbon Santa Apolónia" || rec.UIC != "9430007" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if pos, ok := rec.Position(); !ok || pos.Latitude != lat {
		t.Fatalf("expected position %f, got %+v ok=%v", lat, pos, ok)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestByUIC_Absent(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()

	mock.ExpectQuery(`SELECT .* FROM stations WHERE uic = \?`).
		WithArgs("0000000").
		WillReturnRows(sqlmock.NewRows(stationColumns()))

	_, err := repo.ByUIC(context.Background(), "0000000")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestByNamePattern_ArgsCoverEveryColumn(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()

	// One argument per searched column (name + every info_<lang>), lowercased
	// and wrapped in wildcards, plus the trailing limit.
	args := make([]driver.Value, 0, len(InfoLangs)+2)
	for i := 0; i < len(InfoLangs)+1; i++ {
		args = append(args, "%berlin%")
	}
	args = append(args, 20)

	mock.ExpectQuery(`LOWER\(info_zh\) LIKE \?`).
		WithArgs(args...).
		WillReturnRows(rowFor(sqlmock.NewRows(stationColumns()),
			1, "Berlin", "8065969", nil, nil))

	recs, err := repo.ByNamePattern(context.Background(), "Berlin", 20)
	if err != nil {
		t.Fatalf("ByNamePattern error: %v", err)
	}
	if len(recs) != 1 || recs[0].Name != "Berlin" {
		t.Fatalf("unexpected result: %+v", recs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestByBoundingBox_WiderHalfWidthNestsBounds(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()

	boxQ := `latitude BETWEEN \? AND \? AND longitude BETWEEN \? AND \?`

	mock.ExpectQuery(boxQ).
		WithArgs(47.5, 48.5, 8.5, 9.5, 100).
		WillReturnRows(sqlmock.NewRows(stationColumns()))
	mock.ExpectQuery(boxQ).
		WithArgs(46.0, 50.0, 7.0, 11.0, 100).
		WillReturnRows(sqlmock.NewRows(stationColumns()))

	// The w=0.5 window must sit strictly inside the w=2.0 window; sqlmock's
	// argument assertions above encode exactly that nesting.
	if _, err := repo.ByBoundingBox(context.Background(), 48, 9, 0.5, 100); err != nil {
		t.Fatalf("narrow box: %v", err)
	}
	if _, err := repo.ByBoundingBox(context.Background(), 48, 9, 2.0, 100); err != nil {
		t.Fatalf("wide box: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestReplaceAll_SwapsOnCleanClose(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()

	mock.ExpectExec(`DROP TABLE IF EXISTS stations_staging`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DROP TABLE IF EXISTS stations_retired`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE stations_staging LIKE stations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectPrepare(`INSERT INTO stations_staging`)
	mock.ExpectExec(`INSERT INTO stations_staging`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO stations_staging`).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(`RENAME TABLE stations TO stations_retired, stations_staging TO stations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DROP TABLE stations_retired`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	records := make(chan Record, 2)
	records <- Record{ID: 1, Name: "Berlin", UIC: "8065969"}
	records <- Record{ID: 2, Name: "Bremen", UIC: "8000050"}
	close(records)

	n, err := repo.ReplaceAll(context.Background(), records)
	if err != nil {
		t.Fatalf("ReplaceAll error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 inserted, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestReplaceAll_NoSwapOnCancel(t *testing.T) {
	repo, mock, done := newMock(t)
	defer done()

	mock.ExpectExec(`DROP TABLE IF EXISTS stations_staging`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DROP TABLE IF EXISTS stations_retired`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE stations_staging LIKE stations`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectPrepare(`INSERT INTO stations_staging`)
	// Abort cleanup.  Crucially there is no RENAME expectation: a cancelled
	// run must never promote the staging table.
	mock.ExpectExec(`DROP TABLE IF EXISTS stations_staging`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx, cancel := context.WithCancel(context.Background())

	// The producer never sends or closes: the writer sits in its select until
	// the simulated mid-stream fatal error arrives as a cancellation.
	records := make(chan Record)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := repo.ReplaceAll(ctx, records)
	if err == nil {
		t.Fatal("expected error from cancelled run")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}
