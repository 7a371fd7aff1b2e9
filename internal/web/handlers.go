// internal/web/handlers.go
//
// Thin HTTP adapter over the search engine.
//
// Context
// -------
// Everything here is marshalling: parse the request, call the engine (or
// the by-id cache), and render OSDM-flavoured JSON.  No ranking, filtering,
// or persistence decisions live in this package.
//
// Routes
// ------
//   GET  /places          – list addressable places (optional ?limit=)
//   POST /places/search   – criteria search (name, geoPosition, limit)
//   GET  /places/{id}     – lookup by UIC code
//   POST /admin/sync      – start one dataset sync (202 Accepted; the run
//                           outlives the request and reports through the
//                           log and metrics, flushing the by-id cache)
//   GET  /healthz         – liveness probe
//
// Error mapping
// -------------
//   search.ErrInvalidQuery → 400 problem body
//   station.ErrNotFound    → 404 problem body
//   anything else          → 500 opaque problem body (details go to the log,
//                            never to the client)
//
// Notes
// -----
// • Place ids render as `urn:uic:stn:<uic>`; the show route accepts both the
//   urn form and the bare code.
// • Oxford commas, two spaces after periods.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yanizio/depot/internal/geo"
	"github.com/yanizio/depot/internal/ingest"
	"github.com/yanizio/depot/internal/placecache"
	"github.com/yanizio/depot/internal/search"
	"github.com/yanizio/depot/internal/station"
)

const placeURNPrefix = "urn:uic:stn:"

// Syncer runs one dataset refresh.  *ingest.Pipeline satisfies it.
type Syncer interface {
	Run(ctx context.Context, sourceURL string) (ingest.Stats, error)
}

// Handler bundles the pieces the routes need.  All fields except engine may
// be nil, which disables the corresponding behaviour.
type Handler struct {
	engine      *search.Engine
	cache       *placecache.Cache
	geoip       *GeoResolver
	syncer      Syncer
	sourceURL   string
	syncTimeout time.Duration
	syncBusy    atomic.Bool
}

// NewHandler wires the adapter.  cache, geoip, and syncer are optional.
// syncTimeout bounds one admin-triggered sync run; zero means five minutes.
func NewHandler(engine *search.Engine, cache *placecache.Cache, geoip *GeoResolver, syncer Syncer, sourceURL string, syncTimeout time.Duration) *Handler {
	if syncTimeout <= 0 {
		syncTimeout = 5 * time.Minute
	}
	return &Handler{
		engine:      engine,
		cache:       cache,
		geoip:       geoip,
		syncer:      syncer,
		sourceURL:   sourceURL,
		syncTimeout: syncTimeout,
	}
}

// Routes assembles the chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/places", h.listPlaces)
	r.Post("/places/search", h.searchPlaces)
	r.Get("/places/{id}", h.showPlace)
	if h.syncer != nil {
		r.Post("/admin/sync", h.runSync)
	}
	r.Get("/healthz", h.health)
	return r
}

/*──────────────────────────── wire shapes ─────────────────────────────────*/

type osdmGeoPosition struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type osdmPlace struct {
	ID             string           `json:"id"`
	ObjectType     string           `json:"objectType"`
	Name           string           `json:"name"`
	AlternativeIDs []string         `json:"alternativeIds"`
	GeoPosition    *osdmGeoPosition `json:"geoPosition,omitempty"`
	CountryCode    string           `json:"countryCode,omitempty"`
}

type osdmPlaceResponse struct {
	Places []osdmPlace `json:"places"`
}

type osdmProblem struct {
	Code  string `json:"code"`
	Title string `json:"title"`
}

type placeInput struct {
	Name        *string          `json:"name"`
	GeoPosition *osdmGeoPosition `json:"geoPosition"`
}

type placeRestrictions struct {
	NumberOfResults int `json:"numberOfResults"`
}

type placeRequest struct {
	PlaceInput   *placeInput        `json:"placeInput"`
	Restrictions *placeRestrictions `json:"restrictions"`
}

func renderPlace(p search.Place) osdmPlace {
	out := osdmPlace{
		ID:             placeURNPrefix + p.ID,
		ObjectType:     "StopPlace",
		Name:           p.Name,
		AlternativeIDs: []string{},
		CountryCode:    p.Country,
	}
	if p.Position != nil {
		out.GeoPosition = &osdmGeoPosition{
			Latitude:  p.Position.Latitude,
			Longitude: p.Position.Longitude,
		}
	}
	return out
}

func renderPlaces(w http.ResponseWriter, places []search.Place) {
	resp := osdmPlaceResponse{Places: make([]osdmPlace, len(places))}
	for i, p := range places {
		resp.Places[i] = renderPlace(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

/*──────────────────────────── handlers ────────────────────────────────────*/

func (h *Handler) listPlaces(w http.ResponseWriter, r *http.Request) {
	q := search.Query{}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "invalid-limit",
				"limit must be an integer")
			return
		}
		q.Limit = limit
	}

	places, err := h.engine.Search(r.Context(), q)
	if err != nil {
		h.renderError(w, err)
		return
	}
	renderPlaces(w, places)
}

func (h *Handler) searchPlaces(w http.ResponseWriter, r *http.Request) {
	var req placeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid-body",
			"request body is not valid JSON")
		return
	}

	q := search.Query{}
	if req.PlaceInput != nil {
		q.Name = req.PlaceInput.Name
		if gp := req.PlaceInput.GeoPosition; gp != nil {
			q.Position = &geo.Point{Latitude: gp.Latitude, Longitude: gp.Longitude}
		}
	}
	if req.Restrictions != nil {
		q.Limit = req.Restrictions.NumberOfResults
	}

	// No explicit position: fall back to the caller's IP location when the
	// operator has enabled GeoIP.
	if q.Position == nil && h.geoip != nil {
		q.Position = h.geoip.Position(r)
	}

	places, err := h.engine.Search(r.Context(), q)
	if err != nil {
		h.renderError(w, err)
		return
	}
	renderPlaces(w, places)
}

func (h *Handler) showPlace(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(chi.URLParam(r, "id"), placeURNPrefix)

	var (
		place *search.Place
		err   error
	)
	if h.cache != nil {
		place, err = h.cache.Get(r.Context(), id)
	} else {
		place, err = h.engine.ByID(r.Context(), id)
	}
	if err != nil {
		if errors.Is(err, station.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "not-found",
				"Could not find place with id #"+id)
			return
		}
		h.renderError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, osdmPlaceResponse{Places: []osdmPlace{renderPlace(*place)}})
}

func (h *Handler) runSync(w http.ResponseWriter, r *http.Request) {
	if !h.syncBusy.CompareAndSwap(false, true) {
		writeProblem(w, http.StatusConflict, "sync-running",
			"a sync run is already in progress")
		return
	}

	// A full dataset load takes far longer than the server's write
	// deadline, and a client disconnect cancels r.Context().  The run is
	// therefore detached from the request: bound it by the configured
	// fetch timeout, answer 202 now, and report completion through the
	// log and metrics.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.syncTimeout)
	go func() {
		defer cancel()
		defer h.syncBusy.Store(false)

		stats, err := h.syncer.Run(ctx, h.sourceURL)
		if err != nil {
			zap.S().Errorw("admin sync failed", "source", h.sourceURL, "err", err)
			return
		}
		if h.cache != nil {
			h.cache.Flush()
		}
		zap.S().Infow("admin sync finished",
			"source", h.sourceURL,
			"inserted", stats.Inserted,
			"skipped", stats.Skipped,
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

/*──────────────────────────── rendering ───────────────────────────────────*/

func (h *Handler) renderError(w http.ResponseWriter, err error) {
	if errors.Is(err, search.ErrInvalidQuery) {
		writeProblem(w, http.StatusBadRequest, "invalid-query", err.Error())
		return
	}
	zap.S().Errorw("request failed", "err", err)
	writeProblem(w, http.StatusInternalServerError, "internal-error",
		"an internal error occurred")
}

func writeProblem(w http.ResponseWriter, status int, code, title string) {
	writeJSON(w, status, osdmProblem{Code: code, Title: title})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.S().Errorw("response encode failed", "err", err)
	}
}
