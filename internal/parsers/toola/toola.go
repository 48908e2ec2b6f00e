// Package toola reads Tool-A's read-only relational store: a `flows`
// table (aid, label) and an `alerts` table (ip_alerted, tw_start,
// tw_end), read over its own Postgres DSN.
//
// Tool-A is an external collaborator; its own detection logic is never
// run by this system, only its output tables are consumed.
package toola

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/idps-compare/pkg/models"
)

// Sink is the narrow interface this parser ingests events into.
type Sink interface {
	Ingest(ctx context.Context, event models.FlowEvent) error
}

// Stats tallies rows read.
type Stats struct {
	Flows  int
	Alerts int
}

// Parse reads every row of Tool-A's `flows` and `alerts` tables and
// ingests one PreFingerprintedFlow per flow row and one ToolAlert per
// alert row.
func Parse(ctx context.Context, pool *pgxpool.Pool, tool models.Tool, sink Sink) (Stats, []error) {
	var stats Stats
	var errsOut []error

	flowRows, err := pool.Query(ctx, `SELECT aid, label FROM flows`)
	if err != nil {
		return stats, []error{fmt.Errorf("toola: querying flows: %w", err)}
	}
	for flowRows.Next() {
		var aid, label string
		if err := flowRows.Scan(&aid, &label); err != nil {
			errsOut = append(errsOut, fmt.Errorf("toola: scanning flow row: %w", err))
			continue
		}
		// Tool-A's flows table is keyed directly by AID rather than a
		// 5-tuple, so there is nothing left to fingerprint here; the
		// aligner's AID-keyed write path handles the event as-is.
		stats.Flows++
		event := models.PreFingerprintedFlow{Tool: tool, AID: aid, Label: models.Label(label)}
		if err := sink.Ingest(ctx, event); err != nil {
			errsOut = append(errsOut, err)
		}
	}
	flowRows.Close()
	if err := flowRows.Err(); err != nil {
		errsOut = append(errsOut, fmt.Errorf("toola: reading flows: %w", err))
	}

	alertRows, err := pool.Query(ctx, `SELECT ip_alerted, tw_start, tw_end FROM alerts`)
	if err != nil {
		return stats, append(errsOut, fmt.Errorf("toola: querying alerts: %w", err))
	}
	for alertRows.Next() {
		var ip string
		var start, end float64
		if err := alertRows.Scan(&ip, &start, &end); err != nil {
			errsOut = append(errsOut, fmt.Errorf("toola: scanning alert row: %w", err))
			continue
		}
		stats.Alerts++
		event := models.ToolAlert{Tool: tool, SrcIP: ip, TWStart: start, TWEnd: end}
		if err := sink.Ingest(ctx, event); err != nil {
			errsOut = append(errsOut, err)
		}
	}
	alertRows.Close()
	if err := alertRows.Err(); err != nil {
		errsOut = append(errsOut, fmt.Errorf("toola: reading alerts: %w", err))
	}

	return stats, errsOut
}
