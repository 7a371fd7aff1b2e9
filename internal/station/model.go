// internal/station/model.go
//
// `stations` table row model.
//
// Context
// -------
// The `Record` struct mirrors one row in the persistent **stations** table,
// which is fully replaced by every successful sync run.  The same struct is
// produced by the ingest parser, so the CSV column set and the schema column
// set are kept in one place.
//
// Schema reference (2025-08-20)
//
//	CREATE TABLE stations (
//	    id         BIGINT       NOT NULL PRIMARY KEY,
//	    name       VARCHAR(256) NOT NULL,
//	    uic        VARCHAR(16)  NOT NULL DEFAULT '',
//	    latitude   DOUBLE NULL,
//	    longitude  DOUBLE NULL,
//	    country    VARCHAR(8)  NULL,
//	    info_de    VARCHAR(256) NULL,
//	    …one info_<lang> column per entry in InfoLangs…
//	    info_zh    VARCHAR(256) NULL
//	);
//
// Notes
// -----
// • `uic` is the public place identifier.  Rows with an empty `uic` are
//   stored but excluded from every finder; they cannot be addressed.
// • Optional columns are pointers; callers must nil-check before use.
// • This struct contains no behaviour beyond read-only accessors; sqlx scans
//   and the parser both fill it directly.
// • Oxford commas, two spaces after periods.
package station

import "github.com/yanizio/depot/internal/geo"

// InfoLangs enumerates the language codes of the localized alias columns, in
// schema order.  The parser and the repository both derive column names from
// this list; update the schema and this list together.
var InfoLangs = []string{
	"de", "en", "es", "fr", "it", "nb", "nl", "cs", "da",
	"hu", "ja", "ko", "pl", "pt", "ru", "sv", "tr", "zh",
}

// Record mirrors one row in the `stations` table.
type Record struct {
	ID        int64    `db:"id"`
	Name      string   `db:"name"`
	UIC       string   `db:"uic"`
	Latitude  *float64 `db:"latitude"`
	Longitude *float64 `db:"longitude"`
	Country   *string  `db:"country"`
	InfoDE    *string  `db:"info_de"`
	InfoEN    *string  `db:"info_en"`
	InfoES    *string  `db:"info_es"`
	InfoFR    *string  `db:"info_fr"`
	InfoIT    *string  `db:"info_it"`
	InfoNB    *string  `db:"info_nb"`
	InfoNL    *string  `db:"info_nl"`
	InfoCS    *string  `db:"info_cs"`
	InfoDA    *string  `db:"info_da"`
	InfoHU    *string  `db:"info_hu"`
	InfoJA    *string  `db:"info_ja"`
	InfoKO    *string  `db:"info_ko"`
	InfoPL    *string  `db:"info_pl"`
	InfoPT    *string  `db:"info_pt"`
	InfoRU    *string  `db:"info_ru"`
	InfoSV    *string  `db:"info_sv"`
	InfoTR    *string  `db:"info_tr"`
	InfoZH    *string  `db:"info_zh"`
}

// Position returns the station's coordinates, or ok = false when either
// coordinate is missing.  A half-present pair counts as missing; such rows
// never participate in geographic search.
func (r *Record) Position() (geo.Point, bool) {
	if r.Latitude == nil || r.Longitude == nil {
		return geo.Point{}, false
	}
	return geo.Point{Latitude: *r.Latitude, Longitude: *r.Longitude}, true
}

// infoFields returns the alias pointers in InfoLangs order.  Kept next to the
// struct so a schema change cannot silently desynchronise the two.
func (r *Record) infoFields() []*string {
	return []*string{
		r.InfoDE, r.InfoEN, r.InfoES, r.InfoFR, r.InfoIT, r.InfoNB,
		r.InfoNL, r.InfoCS, r.InfoDA, r.InfoHU, r.InfoJA, r.InfoKO,
		r.InfoPL, r.InfoPT, r.InfoRU, r.InfoSV, r.InfoTR, r.InfoZH,
	}
}

// Aliases returns every non-empty localized name.  Used by tests and
// debugging output; search matching happens in SQL, not here.
func (r *Record) Aliases() []string {
	out := make([]string, 0, len(InfoLangs))
	for _, p := range r.infoFields() {
		if p != nil && *p != "" {
			out = append(out, *p)
		}
	}
	return out
}
