// Package cmdb implements the --cm-db shortcut: skip all flow parsing
// and read precomputed per-tool confusion matrices directly from a
// given store, handing them straight to the metrics derivation
// functions.
package cmdb

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/idps-compare/pkg/models"
)

// validTables whitelists the two table names Read accepts before either
// is interpolated into SQL.
var validTables = map[string]bool{
	"confusion_matrix_flow": true,
	"confusion_matrix_tw":   true,
}

// Read returns the confusion matrix for the given tool from the named
// table (confusion_matrix_flow or confusion_matrix_tw). A tool with no
// row is an error.
func Read(ctx context.Context, pool *pgxpool.Pool, table string, tool models.Tool) (models.ConfusionMatrix, error) {
	if !validTables[table] {
		return models.ConfusionMatrix{}, fmt.Errorf("cmdb: unknown table %q", table)
	}
	var cm models.ConfusionMatrix
	query := fmt.Sprintf(`SELECT tp, fp, tn, fn FROM %s WHERE tool = $1`, table)
	err := pool.QueryRow(ctx, query, string(tool)).Scan(&cm.TP, &cm.FP, &cm.TN, &cm.FN)
	if err == pgx.ErrNoRows {
		return cm, fmt.Errorf("cmdb: tool %q has no precomputed confusion matrix in %s", tool, table)
	}
	if err != nil {
		return cm, fmt.Errorf("cmdb: reading %s for %s: %w", table, tool, err)
	}
	return cm, nil
}

// ReadAll reads both the flow-by-flow and per-time-window confusion
// matrices for every tool, skipping (and reporting) any tool missing a
// row instead of aborting the whole read.
func ReadAll(ctx context.Context, pool *pgxpool.Pool, tools []models.Tool) (flowCM, twCM map[models.Tool]models.ConfusionMatrix, errsOut []error) {
	flowCM = make(map[models.Tool]models.ConfusionMatrix)
	twCM = make(map[models.Tool]models.ConfusionMatrix)
	for _, tool := range tools {
		if cm, err := Read(ctx, pool, "confusion_matrix_flow", tool); err != nil {
			errsOut = append(errsOut, err)
		} else {
			flowCM[tool] = cm
		}
		if cm, err := Read(ctx, pool, "confusion_matrix_tw", tool); err != nil {
			errsOut = append(errsOut, err)
		} else {
			twCM[tool] = cm
		}
	}
	return flowCM, twCM, errsOut
}
