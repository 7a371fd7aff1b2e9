// internal/search/engine.go
//
// Query construction and deterministic ranking over the station gateway.
//
// Context
// -------
// The persistence gateway only offers coarse filters: substring name match
// and a rectangular coordinate window.  This engine turns caller criteria
// into those filters, then applies the exact ranking the public API promises:
//
//   • list / name-only    – gateway order passes through untouched
//   • position-only       – true haversine distance, ascending
//   • name + position     – exact-name bonus plus distance/100, ascending
//
// Workflow
// --------
//  1. Validate and normalise the Query (whitespace-only name means "no name
//     constraint"; limit defaults to 20).
//  2. Fetch candidates through the narrowest gateway finder that applies.
//  3. Re-rank in memory with geo.Distance and truncate to the limit.
//
// Notes
// -----
// • The 1.0-degree box half-width is a documented approximation: about
//   111 km of latitude at the equator, and a wider real-world error away
//   from it.  It is kept for compatibility, not corrected.
// • Records missing either coordinate never appear in position results.
// • Oxford commas, two spaces after periods.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/yanizio/depot/internal/geo"
	"github.com/yanizio/depot/internal/metrics"
	"github.com/yanizio/depot/internal/station"
)

// DefaultLimit caps result sets when the caller does not specify one.
const DefaultLimit = 20

// MaxLimit bounds what a single query may request.  Anything larger is a
// client fault, not a clamp; it also keeps candidateLimit's multiplication
// far from overflow.
const MaxLimit = 1000

// BoxHalfWidthDegrees is the fixed candidate-prefilter window around a query
// position.
const BoxHalfWidthDegrees = 1.0

// minCandidates keeps the prefilter generous even for tiny result limits, so
// in-memory re-ranking sees enough of the neighbourhood.
const minCandidates = 200

// ErrInvalidQuery marks malformed caller input (out-of-range coordinates,
// negative limits).  Callers surface it as a client fault, never coerce it.
var ErrInvalidQuery = fmt.Errorf("invalid search query")

var v = validator.New()

// Place is the public result shape: the station reduced to what the API
// exposes.  ID is the station's UIC code.
type Place struct {
	ID       string
	Name     string
	Position *geo.Point
	Country  string
}

// Query is one search request.  Nil fields mean "no constraint".
type Query struct {
	Name     *string
	Position *geo.Point
	Limit    int // 0 means DefaultLimit
}

// Gateway is the read-only slice of the persistence layer the engine
// consumes.  *station.Repository satisfies it.
type Gateway interface {
	ByUIC(ctx context.Context, uic string) (*station.Record, error)
	List(ctx context.Context, limit int) ([]station.Record, error)
	ByNamePattern(ctx context.Context, pattern string, limit int) ([]station.Record, error)
	ByBoundingBox(ctx context.Context, lat, lon, halfWidth float64, limit int) ([]station.Record, error)
	ByNameAndBoundingBox(ctx context.Context, pattern string, lat, lon, halfWidth float64, limit int) ([]station.Record, error)
}

// Engine answers place lookups.  Stateless; safe for concurrent use.
type Engine struct {
	gw Gateway
}

// New wraps a gateway.
func New(gw Gateway) *Engine {
	return &Engine{gw: gw}
}

// ByID resolves one place by its UIC code.  Absence propagates as
// station.ErrNotFound, a normal outcome for the caller to translate.
func (e *Engine) ByID(ctx context.Context, id string) (*Place, error) {
	metrics.PlaceLookupsTotal.Inc()

	rec, err := e.gw.ByUIC(ctx, id)
	if err != nil {
		return nil, err
	}
	p := toPlace(rec)
	return &p, nil
}

// Search returns ranked places for the given criteria.
func (e *Engine) Search(ctx context.Context, q Query) ([]Place, error) {
	metrics.SearchQueriesTotal.Inc()

	limit := q.Limit
	switch {
	case limit == 0:
		limit = DefaultLimit
	case limit < 0:
		return nil, fmt.Errorf("%w: negative limit %d", ErrInvalidQuery, q.Limit)
	case limit > MaxLimit:
		return nil, fmt.Errorf("%w: limit %d exceeds maximum %d", ErrInvalidQuery, q.Limit, MaxLimit)
	}

	// Whitespace-only name filters nothing; it falls back to list-all or
	// position-only semantics rather than matching the empty string.
	name := ""
	if q.Name != nil {
		name = strings.TrimSpace(*q.Name)
	}

	if q.Position != nil {
		if err := v.Struct(q.Position); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
	}

	switch {
	case q.Position == nil && name == "":
		recs, err := e.gw.List(ctx, limit)
		if err != nil {
			return nil, err
		}
		return toPlaces(recs), nil

	case q.Position == nil:
		recs, err := e.gw.ByNamePattern(ctx, name, limit)
		if err != nil {
			return nil, err
		}
		return toPlaces(recs), nil

	case name == "":
		recs, err := e.gw.ByBoundingBox(ctx,
			q.Position.Latitude, q.Position.Longitude,
			BoxHalfWidthDegrees, candidateLimit(limit))
		if err != nil {
			return nil, err
		}
		return rankByDistance(recs, *q.Position, limit), nil

	default:
		recs, err := e.gw.ByNameAndBoundingBox(ctx, name,
			q.Position.Latitude, q.Position.Longitude,
			BoxHalfWidthDegrees, candidateLimit(limit))
		if err != nil {
			return nil, err
		}
		return rankByScore(recs, name, *q.Position, limit), nil
	}
}

// candidateLimit sizes the prefilter fetch: ten times the requested limit,
// floored at minCandidates.
func candidateLimit(limit int) int {
	if n := limit * 10; n > minCandidates {
		return n
	}
	return minCandidates
}

/*──────────────────────────── ranking ─────────────────────────────────────*/

type scored struct {
	rec   *station.Record
	score float64
}

// rankByDistance orders candidates by true great-circle distance from the
// query point, ascending.  Candidates without a full coordinate pair are
// dropped.
func rankByDistance(recs []station.Record, from geo.Point, limit int) []Place {
	return rank(recs, limit, func(rec *station.Record, pos geo.Point) float64 {
		return geo.Distance(from, pos)
	})
}

// rankByScore orders candidates by `exactBonus + distanceKm/100`, ascending.
// The bonus is 0 for a case-insensitive full match of the display name, else
// 1, so an exact name in the same area always outranks a partial one, and
// among equal exactness the closer station wins.
func rankByScore(recs []station.Record, name string, from geo.Point, limit int) []Place {
	return rank(recs, limit, func(rec *station.Record, pos geo.Point) float64 {
		bonus := 1.0
		if strings.EqualFold(rec.Name, name) {
			bonus = 0.0
		}
		return bonus + geo.Distance(from, pos)/100.0
	})
}

func rank(recs []station.Record, limit int, score func(*station.Record, geo.Point) float64) []Place {
	cands := make([]scored, 0, len(recs))
	for i := range recs {
		pos, ok := recs[i].Position()
		if !ok {
			continue
		}
		cands = append(cands, scored{rec: &recs[i], score: score(&recs[i], pos)})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].score < cands[j].score
	})

	if len(cands) > limit {
		cands = cands[:limit]
	}

	out := make([]Place, len(cands))
	for i, c := range cands {
		out[i] = toPlace(c.rec)
	}
	return out
}

/*──────────────────────────── conversion ──────────────────────────────────*/

func toPlace(rec *station.Record) Place {
	p := Place{
		ID:   rec.UIC,
		Name: rec.Name,
	}
	if pos, ok := rec.Position(); ok {
		p.Position = &pos
	}
	if rec.Country != nil {
		p.Country = *rec.Country
	}
	return p
}

func toPlaces(recs []station.Record) []Place {
	out := make([]Place, len(recs))
	for i := range recs {
		out[i] = toPlace(&recs[i])
	}
	return out
}
