// internal/config/model.go
//
// Typed configuration model for depot.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `.env`                         – dotenv values,
//   • `conf/global.yaml`                      – primary static file,
//   • `DEPOT_`-prefixed environment overrides – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client *after* unmarshalling, so secrets stay out of
// flat files and git history while the YAML keeps only a pointer.
//
// Validation happens immediately after unmarshal; both binaries fail fast
// if required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`; Koanf ignores `yaml` tags
//     unless configured otherwise.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.

package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
}

//
// Database section
//

// Database holds the stations-store DSN parts.
//
// The *template* (`DSN`) is kept in YAML so operators can tweak host, port,
// or flags without touching Vault.  The *secret* portion (`Password`) may be
// a plain string or a `vault:<path>#<key>` reference; the loader resolves it
// and substitutes the DSN's single `%s` verb, so the model never leaves
// Load() holding an unusable DSN.
type Database struct {
	DSN      string `koanf:"dsn" validate:"required"`
	Password string `koanf:"password"`
	MaxOpen  int    `koanf:"max_open"`
	MaxIdle  int    `koanf:"max_idle"`
}

//
// Dataset section
//

// Dataset points at the upstream stations CSV and bounds one sync run.
type Dataset struct {
	URL          string        `koanf:"url" validate:"required,url"`
	FetchTimeout time.Duration `koanf:"fetch_timeout"`
}

//
// GeoIP section
//

// GeoIP configures the optional client-position fallback for searches that
// carry no geoPosition.  Empty Database disables the feature.
type GeoIP struct {
	Database string `koanf:"database"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime, never set in YAML or env.  The loader
// discovers `Root` (repo root or DEPOT_ROOT override) so later code can
// build absolute file paths.
type Paths struct {
	Root string // DEPOT_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the app lifetime.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Database Database `koanf:"database"`
	Dataset  Dataset  `koanf:"dataset"`
	GeoIP    GeoIP    `koanf:"geoip"`
	Paths    Paths    `koanf:"-"` // not loaded from config files
}
