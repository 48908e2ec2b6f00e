package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rawblock/idps-compare/internal/metrics"
	"github.com/rawblock/idps-compare/pkg/models"
)

// StreamFlowLabels returns every (ground_truth, tool) label pair for
// flow-by-flow metric computation, with NULLs already expected to
// have been resolved by FillNullsAsBenign. Each pair is still defensively
// nil-checked by the caller via metrics.Accumulate.
func (s *LabelStore) StreamFlowLabels(ctx context.Context, tool models.Tool) ([]metrics.LabelPair, error) {
	col, ok := toolColumn(tool)
	if !ok {
		return nil, fmt.Errorf("store: unknown tool %q", tool)
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT ground_truth_label, %s FROM flow_labels`, col))
	if err != nil {
		return nil, fmt.Errorf("stream flow labels: %w", err)
	}
	defer rows.Close()

	var pairs []metrics.LabelPair
	for rows.Next() {
		var gt, tl *string
		if err := rows.Scan(&gt, &tl); err != nil {
			return nil, fmt.Errorf("scan flow label row: %w", err)
		}
		pairs = append(pairs, metrics.LabelPair{
			Actual:    labelOrUnknown(gt),
			Predicted: labelOrUnknown(tl),
		})
	}
	return pairs, rows.Err()
}

// PerTWRow is one (ip, tw) row's label pair, read for the per-time-window
// comparison view.
type PerTWRow struct {
	IP   string
	TW   int
	Pair metrics.LabelPair
}

// StreamPerTWLabels returns every per-(ip, tw) row's (ground_truth, tool)
// label pair.
func (s *LabelStore) StreamPerTWLabels(ctx context.Context, tool models.Tool) ([]PerTWRow, error) {
	col, ok := toolColumn(tool)
	if !ok {
		return nil, fmt.Errorf("store: unknown tool %q", tool)
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT ip, tw, ground_truth_label, %s FROM per_tw_labels`, col))
	if err != nil {
		return nil, fmt.Errorf("stream per-tw labels: %w", err)
	}
	defer rows.Close()

	var out []PerTWRow
	for rows.Next() {
		var ip string
		var tw int
		var gt, tl *string
		if err := rows.Scan(&ip, &tw, &gt, &tl); err != nil {
			return nil, fmt.Errorf("scan per-tw row: %w", err)
		}
		out = append(out, PerTWRow{
			IP: ip,
			TW: tw,
			Pair: metrics.LabelPair{
				Actual:    labelOrUnknown(gt),
				Predicted: labelOrUnknown(tl),
			},
		})
	}
	return out, rows.Err()
}

// Counter reads a single named/keyed counter value, returning 0 if it
// has never been incremented.
func (s *LabelStore) Counter(ctx context.Context, name, key string) (int64, error) {
	var value int64
	err := s.pool.QueryRow(ctx, `SELECT value FROM counters WHERE name = $1 AND key = $2`, name, key).Scan(&value)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read counter %s/%s: %w", name, key, err)
	}
	return value, nil
}

// EarliestGTTimestamp recovers the earliest ground-truth flow timestamp,
// which anchors the time-window index. ok is false when no ground-truth
// flow has been recorded yet.
func (s *LabelStore) EarliestGTTimestamp(ctx context.Context) (float64, bool, error) {
	// MIN over an empty table yields NULL, so scan through a pointer.
	var earliest *float64
	if err := s.pool.QueryRow(ctx, `SELECT MIN(timestamp) FROM ground_truth_flows`).Scan(&earliest); err != nil {
		return 0, false, fmt.Errorf("read earliest gt timestamp: %w", err)
	}
	if earliest == nil {
		return 0, false, nil
	}
	return *earliest, true, nil
}

// ReadConfusionMatrix returns a tool's persisted confusion matrix from
// the named table (confusion_matrix_flow or confusion_matrix_tw). ok is
// false when no run has saved a row for that tool yet.
func (s *LabelStore) ReadConfusionMatrix(ctx context.Context, table string, tool models.Tool) (models.ConfusionMatrix, bool, error) {
	if !cmTables[table] {
		return models.ConfusionMatrix{}, false, fmt.Errorf("store: unknown confusion-matrix table %q", table)
	}
	var cm models.ConfusionMatrix
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT tp, fp, tn, fn FROM %s WHERE tool = $1`, table), string(tool)).
		Scan(&cm.TP, &cm.FP, &cm.TN, &cm.FN)
	if err == pgx.ErrNoRows {
		return cm, false, nil
	}
	if err != nil {
		return cm, false, fmt.Errorf("read confusion matrix %s/%s: %w", table, tool, err)
	}
	return cm, true, nil
}

// CounterRow is one counters-table row.
type CounterRow struct {
	Name  string
	Key   string
	Value int64
}

// CountersSnapshot returns every counter row, ordered by (name, key), for
// the end-of-run report and metadata file.
func (s *LabelStore) CountersSnapshot(ctx context.Context) ([]CounterRow, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, key, value FROM counters ORDER BY name, key`)
	if err != nil {
		return nil, fmt.Errorf("snapshot counters: %w", err)
	}
	defer rows.Close()

	var out []CounterRow
	for rows.Next() {
		var r CounterRow
		if err := rows.Scan(&r.Name, &r.Key, &r.Value); err != nil {
			return nil, fmt.Errorf("scan counter row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func labelOrUnknown(s *string) models.Label {
	if s == nil {
		return models.Unknown
	}
	return models.Label(*s)
}
