// internal/ingest/pipeline_test.go
//
// Pipeline tests over httptest sources and a capturing gateway.
//
// Context
// -------
// The gateway fake mirrors the real repository's termination contract: it
// commits only when the record channel closes cleanly, and reports an abort
// when the shared context is cancelled first.  That lets these tests assert
// the no-partial-visibility rule without a database:
//
//   • happy path       – all valid rows delivered in parse order, committed
//   • row tolerance    – one malformed row skipped, run still succeeds
//   • fetch failure    – non-200 response fails the run, nothing committed
//   • mid-stream death – truncated body fails the run, nothing committed
//
// Run: go test ./internal/ingest -v

package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/yanizio/depot/internal/station"
)

// captureGateway records everything it receives.  Commit semantics follow
// station.Repository.ReplaceAll: clean channel close commits, context
// cancellation aborts.
type captureGateway struct {
	mu        sync.Mutex
	received  []station.Record
	committed bool
}

func (g *captureGateway) ReplaceAll(ctx context.Context, records <-chan station.Record) (int64, error) {
	var n int64
	for {
		select {
		case rec, ok := <-records:
			if !ok {
				g.mu.Lock()
				g.committed = true
				g.mu.Unlock()
				return n, nil
			}
			g.mu.Lock()
			g.received = append(g.received, rec)
			g.mu.Unlock()
			n++
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

const sourceHeader = "id;name;slug;uic;latitude;longitude;country;info:de;info:en\n"

func csvSource(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		fmt.Fprint(w, body)
	}))
}

func TestRun_HappyPath(t *testing.T) {
	body := sourceHeader +
		"9430007;Lisbon Santa Apolónia;lisbon;9430007;38.71387;-9.122271;PT;;\n" +
		"8727100;Paris Nord;paris-nord;8727100;48.880845;2.355498;FR;Paris Nordbahnhof;Paris North\n" +
		"4916;Addieville;addieville;;38.391369;-89.48477;US;;\n"
	srv := csvSource(t, body)
	defer srv.Close()

	gw := &captureGateway{}
	stats, err := New(gw, srv.Client()).Run(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Inserted != 3 || stats.Skipped != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if !gw.committed {
		t.Fatal("gateway never committed")
	}

	// FIFO hand-off: storage order equals parse order.
	if gw.received[0].UIC != "9430007" || gw.received[1].UIC != "8727100" {
		t.Fatalf("order not preserved: %+v", gw.received)
	}

	lisbon := gw.received[0]
	if lisbon.Name != "Lisbon Santa Apolónia" {
		t.Fatalf("unexpected name: %q", lisbon.Name)
	}
	if pos, ok := lisbon.Position(); !ok || pos.Latitude != 38.71387 {
		t.Fatalf("unexpected position: %+v ok=%v", pos, ok)
	}

	// Row without a uic is still stored; exclusion happens at query time.
	if gw.received[2].UIC != "" {
		t.Fatalf("expected empty uic, got %q", gw.received[2].UIC)
	}
}

func TestRun_SkipsMalformedRow(t *testing.T) {
	body := sourceHeader +
		"1;Good One;good-one;1001;48.1;9.1;DE;;\n" +
		"2;Bad Latitude;bad;1002;not-a-number;9.2;DE;;\n" +
		"3;Good Two;good-two;1003;48.3;9.3;DE;;\n"
	srv := csvSource(t, body)
	defer srv.Close()

	gw := &captureGateway{}
	stats, err := New(gw, srv.Client()).Run(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Inserted != 2 {
		t.Fatalf("expected 2 inserted, got %d", stats.Inserted)
	}
	if stats.Skipped != 1 {
		t.Fatalf("expected exactly 1 skipped, got %d", stats.Skipped)
	}
	if !gw.committed {
		t.Fatal("run with recoverable row errors must still commit")
	}
}

func TestRun_FetchFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	gw := &captureGateway{}
	_, err := New(gw, srv.Client()).Run(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected fatal error for 500 response")
	}
	if !strings.Contains(err.Error(), "fetch stage") {
		t.Fatalf("error should name the failing stage: %v", err)
	}
	if gw.committed {
		t.Fatal("failed run must not commit")
	}
}

func TestRun_MidStreamDisconnectIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Advertise more bytes than are sent, so the client sees the body
		// die partway through the row stream.
		w.Header().Set("Content-Length", "4096")
		fmt.Fprint(w, sourceHeader+"1;Partial;partial;1001;48.1;9.1;DE;;\n")
	}))
	defer srv.Close()

	gw := &captureGateway{}
	_, err := New(gw, srv.Client()).Run(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected fatal error for truncated stream")
	}
	if gw.committed {
		t.Fatal("interrupted run must not commit")
	}
}

func TestRun_MissingRequiredHeaderIsFatal(t *testing.T) {
	srv := csvSource(t, "slug;uic\nfoo;123\n")
	defer srv.Close()

	gw := &captureGateway{}
	_, err := New(gw, srv.Client()).Run(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected fatal error for unusable header")
	}
	if gw.committed {
		t.Fatal("run with unusable header must not commit")
	}
}
