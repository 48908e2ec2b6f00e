package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rawblock/idps-compare/internal/logging"
	"github.com/rawblock/idps-compare/internal/metrics"
	"github.com/rawblock/idps-compare/internal/store"
	"github.com/rawblock/idps-compare/pkg/models"
)

type captureSink struct {
	records []logging.Record
}

func (c *captureSink) Emit(r logging.Record) {
	c.records = append(c.records, r)
}

func (c *captureSink) joined() string {
	var lines []string
	for _, r := range c.records {
		lines = append(lines, r.PlainText)
	}
	return strings.Join(lines, "\n")
}

func TestWriteToolMetrics_PersistsEveryLine(t *testing.T) {
	sink := &captureSink{}
	cm := models.ConfusionMatrix{TP: 1, FP: 2, FN: 1}
	WriteToolMetrics(sink, models.ToolA, "flow-by-flow", cm, metrics.Derive(cm))

	if len(sink.records) == 0 {
		t.Fatal("expected records to be emitted")
	}
	for _, r := range sink.records {
		if !r.AlsoPersist {
			t.Errorf("record %q not marked AlsoPersist", r.PlainText)
		}
	}
	out := sink.joined()
	if !strings.Contains(out, "TP=1 FP=2 TN=0 FN=1") {
		t.Errorf("missing confusion matrix line in:\n%s", out)
	}
	if !strings.Contains(out, "tool_a (flow-by-flow):") {
		t.Errorf("missing tool header in:\n%s", out)
	}
}

func TestWriteCounters_EmptyIsSilent(t *testing.T) {
	sink := &captureSink{}
	WriteCounters(sink, nil)
	if len(sink.records) != 0 {
		t.Errorf("expected no records for empty counters, got %d", len(sink.records))
	}
}

func TestWriteMetadataFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.txt")
	started := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	info := RunInfo{
		RunID:                  "run-1",
		ToolAVersion:           "1.0.0",
		ToolBVersion:           "7.0.2",
		GroundTruthPath:        "/data/gt",
		TimewindowWidthSeconds: 3600,
		StartedAt:              started,
		FinishedAt:             started.Add(90 * time.Second),
	}
	counters := []store.CounterRow{{Name: "discarded_flows", Key: "tool_a", Value: 4}}
	if err := WriteMetadataFile(path, info, counters); err != nil {
		t.Fatalf("write: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	content := string(b)
	for _, want := range []string{
		"run_id: run-1",
		"tool_a.version: 1.0.0",
		"tool_b.version: 7.0.2",
		"ground_truth: /data/gt",
		"timewindow_width_seconds: 3600",
		"analysis_time_seconds: 90.00",
		"counter.discarded_flows.tool_a: 4",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("metadata missing %q:\n%s", want, content)
		}
	}
}
