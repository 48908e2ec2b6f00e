// Package report renders the end-of-run outputs: per-tool metric blocks
// pushed through the log sink (which persists them to results.txt), the
// counters summary, and the metadata.txt file.
package report

import (
	"fmt"
	"os"
	"time"

	"github.com/rawblock/idps-compare/internal/logging"
	"github.com/rawblock/idps-compare/internal/store"
	"github.com/rawblock/idps-compare/pkg/models"
)

// RunInfo carries everything metadata.txt records about a run: parameters,
// tool versions, input paths, and timings.
type RunInfo struct {
	RunID                  string
	ToolAVersion           string
	ToolBVersion           string
	GroundTruthPath        string
	ToolAPath              string
	ToolBPath              string
	CMDBPath               string
	TimewindowWidthSeconds int
	StartedAt              time.Time
	FinishedAt             time.Time
}

// WriteToolMetrics emits one tool's confusion matrix and derived metrics
// for the named comparison view ("flow-by-flow" or "per-timewindow").
// Every record is marked AlsoPersist so the results.txt sink keeps it.
func WriteToolMetrics(sink logging.Sink, tool models.Tool, view string, cm models.ConfusionMatrix, m models.DerivedMetrics) {
	emit := func(line string) {
		sink.Emit(logging.Record{
			Component:   "Report",
			PlainText:   line,
			AlsoPersist: true,
		})
	}
	emit(fmt.Sprintf("%s (%s):", tool, view))
	emit(fmt.Sprintf("  TP=%d FP=%d TN=%d FN=%d", cm.TP, cm.FP, cm.TN, cm.FN))
	emit(fmt.Sprintf("  precision=%.4f recall=%.4f F1=%.4f", m.Precision, m.Recall, m.F1))
	emit(fmt.Sprintf("  TPR=%.4f FPR=%.4f TNR=%.4f FNR=%.4f", m.TPR, m.FPR, m.TNR, m.FNR))
	emit(fmt.Sprintf("  accuracy=%.4f MCC=%.4f", m.Accuracy, m.MCC))
}

// WriteCounters emits the run's counter rows (discarded flows, discarded
// timewindows, aid collisions, flows parsed per source), making data
// quality visible in the final report.
func WriteCounters(sink logging.Sink, rows []store.CounterRow) {
	if len(rows) == 0 {
		return
	}
	sink.Emit(logging.Record{Component: "Report", PlainText: "counters:", AlsoPersist: true})
	for _, r := range rows {
		sink.Emit(logging.Record{
			Component:   "Report",
			PlainText:   fmt.Sprintf("  %s[%s] = %d", r.Name, r.Key, r.Value),
			AlsoPersist: true,
		})
	}
}

// WriteMetadataFile writes metadata.txt: run parameters, versions, input
// paths and analysis timings.
func WriteMetadataFile(path string, info RunInfo, counters []store.CounterRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: creating %s: %w", path, err)
	}
	defer f.Close()

	fmt.Fprintf(f, "run_id: %s\n", info.RunID)
	fmt.Fprintf(f, "tool_a.version: %s\n", info.ToolAVersion)
	fmt.Fprintf(f, "tool_b.version: %s\n", info.ToolBVersion)
	if info.GroundTruthPath != "" {
		fmt.Fprintf(f, "ground_truth: %s\n", info.GroundTruthPath)
	}
	if info.ToolAPath != "" {
		fmt.Fprintf(f, "tool_a_db: %s\n", info.ToolAPath)
	}
	if info.ToolBPath != "" {
		fmt.Fprintf(f, "tool_b_events: %s\n", info.ToolBPath)
	}
	if info.CMDBPath != "" {
		fmt.Fprintf(f, "cm_db: %s\n", info.CMDBPath)
	}
	fmt.Fprintf(f, "timewindow_width_seconds: %d\n", info.TimewindowWidthSeconds)
	fmt.Fprintf(f, "started_at: %s\n", info.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(f, "finished_at: %s\n", info.FinishedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(f, "analysis_time_seconds: %.2f\n", info.FinishedAt.Sub(info.StartedAt).Seconds())
	for _, c := range counters {
		fmt.Fprintf(f, "counter.%s.%s: %d\n", c.Name, c.Key, c.Value)
	}
	return nil
}
