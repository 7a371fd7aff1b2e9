// internal/ingest/pipeline.go
//
// Streaming dataset sync: fetch → decode → bounded hand-off → replace.
//
// Context
// -------
// The source dataset is a multi-megabyte CSV published upstream.  It is
// never buffered whole: the fetch/decode stage reads the HTTP body
// incrementally and pushes parsed records onto a bounded channel, while the
// write stage streams them into the persistence gateway's staging table.  A
// full channel suspends the producer, so memory stays flat no matter how far
// the database falls behind the network.
//
// Workflow
// --------
//  1. Run() starts both stages under an errgroup sharing one context.
//  2. The producer closes the channel **only on clean end of stream**; on a
//     fatal error it returns without closing, the errgroup cancels the
//     shared context, and the writer aborts without promoting its staging
//     table.  Either way the live dataset is never half-replaced.
//  3. Undecodable rows are counted and skipped; they never fail a run.
//
// Notes
// -----
// • Record order on the channel equals parse order (FIFO hand-off).
// • Cancellation and timeouts arrive via the caller's context.
// • Oxford commas, two spaces after periods.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/depot/internal/metrics"
	"github.com/yanizio/depot/internal/station"
)

// DefaultQueueDepth bounds the parse→write hand-off channel.  Tens of
// records is enough to absorb jitter without hiding a stalled writer.
const DefaultQueueDepth = 64

// Gateway is the slice of the persistence layer the pipeline needs.
// *station.Repository satisfies it.
type Gateway interface {
	ReplaceAll(ctx context.Context, records <-chan station.Record) (int64, error)
}

// Stats summarises one sync run.
type Stats struct {
	Inserted int64 // rows now live in the stations table
	Skipped  int   // undecodable rows dropped from the stream
}

// Pipeline wires the fetch/decode stage to a persistence gateway.  Zero
// value is unusable; construct with New.
type Pipeline struct {
	client     *http.Client
	gateway    Gateway
	queueDepth int
}

// New returns a Pipeline using the supplied HTTP client, or
// http.DefaultClient when nil.  Deadlines belong to the per-run context, not
// the client.
func New(gateway Gateway, client *http.Client) *Pipeline {
	if client == nil {
		client = http.DefaultClient
	}
	return &Pipeline{
		client:     client,
		gateway:    gateway,
		queueDepth: DefaultQueueDepth,
	}
}

// Run performs one full sync against sourceURL.  On success the stations
// table holds exactly the decoded dataset and Stats reports the insert and
// skip counts.  On a fatal error (network, header, destination) the prior
// dataset remains live and the error carries the failing stage.
func (p *Pipeline) Run(ctx context.Context, sourceURL string) (Stats, error) {
	var stats Stats

	records := make(chan station.Record, p.queueDepth)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		skipped, err := p.produce(gctx, sourceURL, records)
		stats.Skipped = skipped
		if err != nil {
			return err
		}
		close(records)
		return nil
	})

	g.Go(func() error {
		n, err := p.gateway.ReplaceAll(gctx, records)
		if err != nil {
			return fmt.Errorf("write stage: %w", err)
		}
		stats.Inserted = n
		return nil
	})

	metrics.SyncRunsTotal.Inc()
	if err := g.Wait(); err != nil {
		metrics.SyncFailuresTotal.Inc()
		return stats, err
	}

	metrics.SyncRowsInsertedTotal.Add(float64(stats.Inserted))
	metrics.SyncRowsSkippedTotal.Add(float64(stats.Skipped))
	zap.S().Infow("sync complete",
		"source", sourceURL,
		"inserted", stats.Inserted,
		"skipped", stats.Skipped,
	)
	return stats, nil
}

// produce streams the dataset and pushes decoded records until EOF.  The
// returned skip count is valid even when err != nil.  The records channel is
// left open on error; closing is the caller's signal for a clean stream.
func (p *Pipeline) produce(ctx context.Context, sourceURL string, records chan<- station.Record) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return 0, fmt.Errorf("fetch stage: build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch stage: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch stage: unexpected status %s from %s", resp.Status, sourceURL)
	}

	r := csv.NewReader(resp.Body)
	r.Comma = ';'

	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("decode stage: read header: %w", err)
	}
	m, err := newRowMap(header)
	if err != nil {
		return 0, fmt.Errorf("decode stage: %w", err)
	}

	skipped := 0
	for line := 1; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return skipped, nil
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				// Structural row damage (field count, stray quote): skip.
				skipped++
				zap.S().Debugw("sync row skipped", "line", line, "err", err)
				continue
			}
			// Anything else is the transport dying mid-stream.
			return skipped, fmt.Errorf("decode stage: read row %d: %w", line, err)
		}

		rec, rerr := m.record(row, line)
		if rerr != nil {
			skipped++
			zap.S().Debugw("sync row skipped", "line", line, "err", rerr)
			continue
		}

		select {
		case records <- rec:
		case <-ctx.Done():
			return skipped, fmt.Errorf("decode stage: %w", ctx.Err())
		}
	}
}
