package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rawblock/idps-compare/internal/errs"
	"github.com/rawblock/idps-compare/internal/logging"
	"github.com/rawblock/idps-compare/pkg/models"
)

// toolColumn maps a Tool to its column name in flow_labels/per_tw_labels.
// Only whitelisted names are ever interpolated into SQL.
func toolColumn(tool models.Tool) (string, bool) {
	switch tool {
	case models.ToolA:
		return "tool_a_label", true
	case models.ToolB:
		return "tool_b_label", true
	default:
		return "", false
	}
}

// UpsertGTFlow is the ground-truth write primitive. If no
// row exists for aid, it is inserted. If one exists, the ground-truth
// column is overwritten, aid_collisions is incremented, and a warning is
// logged — the last-seen ground-truth label wins, but the collision is
// surfaced because it signals an imperfect fingerprint or duplicate
// input.
func (s *LabelStore) UpsertGTFlow(ctx context.Context, aid string, label models.Label) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var existing *string
		err := tx.QueryRow(ctx, `SELECT ground_truth_label FROM flow_labels WHERE aid = $1`, aid).Scan(&existing)
		collided := err == nil

		_, err = tx.Exec(ctx, `
			INSERT INTO flow_labels (aid, ground_truth_label) VALUES ($1, $2)
			ON CONFLICT (aid) DO UPDATE SET ground_truth_label = EXCLUDED.ground_truth_label
		`, aid, string(label))
		if err != nil {
			return fmt.Errorf("upsert gt flow: %w", err)
		}

		if collided {
			if _, err := tx.Exec(ctx, incrementCounterSQL, "aid_collisions", "ground_truth"); err != nil {
				return fmt.Errorf("increment aid_collisions: %w", err)
			}
			if s.log != nil {
				s.log.Emit(logging.Record{
					Component:   "LabelStore",
					PlainText:   fmt.Sprintf("AID collision in ground truth for %s; last label wins", aid),
					AlsoPersist: true,
					Severity:    logging.Warn,
				})
			}
		}
		return nil
	})
}

// UpsertToolFlow is the tool write primitive: discard a
// tool label whose AID is unknown to ground truth, refuse to downgrade an
// already-malicious tool label to benign (monotonic malicious), and
// otherwise overwrite.
func (s *LabelStore) UpsertToolFlow(ctx context.Context, aid string, tool models.Tool, label models.Label) (FlowWriteResult, error) {
	col, ok := toolColumn(tool)
	if !ok {
		return FlowWriteResult{}, fmt.Errorf("store: unknown tool %q", tool)
	}

	var result FlowWriteResult
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var gtLabel *string
		var current *string
		row := tx.QueryRow(ctx, fmt.Sprintf(`SELECT ground_truth_label, %s FROM flow_labels WHERE aid = $1`, col), aid)
		err := row.Scan(&gtLabel, &current)
		if err == pgx.ErrNoRows {
			if _, err := tx.Exec(ctx, incrementCounterSQL, "discarded_flows", string(tool)); err != nil {
				return fmt.Errorf("increment discarded_flows: %w", err)
			}
			result = FlowWriteResult{DiscardedMissingGT: true}
			return nil
		}
		if err != nil {
			return fmt.Errorf("select flow_labels: %w", err)
		}

		if current != nil && models.Label(*current) == models.Malicious && label == models.Benign {
			result = FlowWriteResult{DiscardedMalToBen: true}
			return nil
		}

		if _, err := tx.Exec(ctx, fmt.Sprintf(`UPDATE flow_labels SET %s = $2 WHERE aid = $1`, col), aid, string(label)); err != nil {
			return fmt.Errorf("update %s: %w", col, err)
		}
		result = FlowWriteResult{Applied: true}
		return nil
	})
	return result, err
}

// InsertGTFlowRecord records a ground-truth flow's timestamp and label in
// the ground_truth_flows table. Written only
// while parsing the ground truth; the earliest timestamp stored here is
// how a later stage recovers the time-window anchor.
func (s *LabelStore) InsertGTFlowRecord(ctx context.Context, aid string, ts float64, label models.Label) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO ground_truth_flows (aid, timestamp, label) VALUES ($1, $2, $3)
			ON CONFLICT (aid) DO UPDATE SET timestamp = EXCLUDED.timestamp, label = EXCLUDED.label
		`, aid, ts, string(label))
		if err != nil {
			return fmt.Errorf("insert gt flow record: %w", err)
		}
		return nil
	})
}

// AddToCounter adds delta to the named/keyed counter, creating it at
// delta if absent. Parsers use this to record flows_count[source] once
// their stream is exhausted.
func (s *LabelStore) AddToCounter(ctx context.Context, name, key string, delta int64) error {
	if delta == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO counters (name, key, value) VALUES ($1, $2, $3)
			ON CONFLICT (name, key) DO UPDATE SET value = counters.value + EXCLUDED.value
		`, name, key, delta)
		if err != nil {
			return fmt.Errorf("add to counter %s/%s: %w", name, key, err)
		}
		return nil
	})
}

// cmTables whitelists the two confusion-matrix table names before either
// is interpolated into SQL, the same defense toolColumn applies to label
// columns.
var cmTables = map[string]bool{
	"confusion_matrix_flow": true,
	"confusion_matrix_tw":   true,
}

// SaveConfusionMatrix persists a tool's computed confusion matrix into
// the named table (confusion_matrix_flow or confusion_matrix_tw),
// overwriting any previous run's row for that tool.
func (s *LabelStore) SaveConfusionMatrix(ctx context.Context, table string, tool models.Tool, cm models.ConfusionMatrix) error {
	if !cmTables[table] {
		return fmt.Errorf("store: unknown confusion-matrix table %q", table)
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (tool, tp, fp, tn, fn) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (tool) DO UPDATE SET
				tp = EXCLUDED.tp, fp = EXCLUDED.fp, tn = EXCLUDED.tn, fn = EXCLUDED.fn
		`, table), string(tool), cm.TP, cm.FP, cm.TN, cm.FN)
		if err != nil {
			return fmt.Errorf("save confusion matrix %s/%s: %w", table, tool, err)
		}
		return nil
	})
}

// RegisterTW idempotently registers time window k. Only the
// ground-truth parser calls this; tool parsers only consume
// registrations.
func (s *LabelStore) RegisterTW(ctx context.Context, k int, start, end float64) (bool, error) {
	var newlyRegistered bool
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO time_windows (tw, start_time, end_time) VALUES ($1, $2, $3)
			ON CONFLICT (tw) DO NOTHING
		`, k, start, end)
		if err != nil {
			return fmt.Errorf("register tw: %w", err)
		}
		newlyRegistered = tag.RowsAffected() > 0
		return nil
	})
	return newlyRegistered, err
}

// IsTWRegistered reports whether window k has been registered.
func (s *LabelStore) IsTWRegistered(ctx context.Context, k int) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM time_windows WHERE tw = $1)`, k).Scan(&exists)
	if err != nil {
		return false, errs.New(errs.StoreFatal, "check tw registered", err)
	}
	return exists, nil
}

// SetGTTWLabel upserts the ground-truth column of the per-(ip, tw)
// table, preserving the "window is malicious if any flow in it is
// malicious" rule: applied only when the current label is absent or the
// new label is malicious.
func (s *LabelStore) SetGTTWLabel(ctx context.Context, ip string, tw int, label models.Label) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var current *string
		err := tx.QueryRow(ctx, `SELECT ground_truth_label FROM per_tw_labels WHERE ip = $1 AND tw = $2`, ip, tw).Scan(&current)
		if err != nil && err != pgx.ErrNoRows {
			return fmt.Errorf("select per_tw_labels: %w", err)
		}
		if current != nil && label != models.Malicious {
			return nil
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO per_tw_labels (ip, tw, ground_truth_label) VALUES ($1, $2, $3)
			ON CONFLICT (ip, tw) DO UPDATE SET ground_truth_label = EXCLUDED.ground_truth_label
		`, ip, tw, string(label))
		return err
	})
}

// SetToolTWLabel upserts the tool column of the per-(ip, tw) table.
// Discards when tw is not registered. Note: monotonic-malicious is NOT
// applied at this level — the overwrite is unconditional, so a later
// benign write can downgrade an already-malicious window. The aligner
// logs a warning whenever it observes such a downgrade.
func (s *LabelStore) SetToolTWLabel(ctx context.Context, ip string, tw int, tool models.Tool, label models.Label) (TWWriteResult, error) {
	col, ok := toolColumn(tool)
	if !ok {
		return TWWriteResult{}, fmt.Errorf("store: unknown tool %q", tool)
	}

	var result TWWriteResult
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var registered bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM time_windows WHERE tw = $1)`, tw).Scan(&registered); err != nil {
			return fmt.Errorf("check tw registered: %w", err)
		}
		if !registered {
			if _, err := tx.Exec(ctx, incrementCounterSQL, "discarded_timewindows", string(tool)); err != nil {
				return fmt.Errorf("increment discarded_timewindows: %w", err)
			}
			result = TWWriteResult{DiscardedUnregisteredTW: true}
			return nil
		}
		_, err := tx.Exec(ctx, fmt.Sprintf(`
			INSERT INTO per_tw_labels (ip, tw, %s) VALUES ($1, $2, $3)
			ON CONFLICT (ip, tw) DO UPDATE SET %s = EXCLUDED.%s
		`, col, col, col), ip, tw, string(label))
		if err != nil {
			return fmt.Errorf("upsert per_tw_labels: %w", err)
		}
		result = TWWriteResult{Applied: true}
		return nil
	})
	return result, err
}

// FillNullsAsBenign bulk-updates every NULL label column in both label
// tables to benign. Invoked once after all parsers finish, before
// metrics are computed. Idempotent: a second call touches zero rows.
func (s *LabelStore) FillNullsAsBenign(ctx context.Context) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		stmts := []string{
			`UPDATE flow_labels SET ground_truth_label = 'benign' WHERE ground_truth_label IS NULL`,
			`UPDATE flow_labels SET tool_a_label = 'benign' WHERE tool_a_label IS NULL`,
			`UPDATE flow_labels SET tool_b_label = 'benign' WHERE tool_b_label IS NULL`,
			`UPDATE per_tw_labels SET ground_truth_label = 'benign' WHERE ground_truth_label IS NULL`,
			`UPDATE per_tw_labels SET tool_a_label = 'benign' WHERE tool_a_label IS NULL`,
			`UPDATE per_tw_labels SET tool_b_label = 'benign' WHERE tool_b_label IS NULL`,
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("fill nulls: %w", err)
			}
		}
		return nil
	})
}

const incrementCounterSQL = `
	INSERT INTO counters (name, key, value) VALUES ($1, $2, 1)
	ON CONFLICT (name, key) DO UPDATE SET value = counters.value + 1
`
