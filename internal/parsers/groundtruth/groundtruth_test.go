package groundtruth

import (
	"context"
	"strings"
	"testing"

	"github.com/rawblock/idps-compare/pkg/models"
)

type recordingSink struct {
	events []models.FlowEvent
}

func (r *recordingSink) Ingest(_ context.Context, e models.FlowEvent) error {
	r.events = append(r.events, e)
	return nil
}

func TestParse_TabSeparatedMalicious(t *testing.T) {
	line := "1000.000000\t-\t10.0.0.1\t1234\t10.0.0.2\t443\ttcp\t-\t-\t-\t-\t-\t-\t-\t-\t-\t-\t-\t-\t-\tMalicious   label\n"
	sink := &recordingSink{}
	stats, errs := Parse(context.Background(), strings.NewReader(line), TabSeparated, sink)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if stats.Malicious != 1 {
		t.Errorf("got %d malicious, want 1", stats.Malicious)
	}
	if len(sink.events) != 1 {
		t.Fatalf("got %d events, want 1", len(sink.events))
	}
	gt, ok := sink.events[0].(models.GroundTruthFlow)
	if !ok {
		t.Fatalf("expected GroundTruthFlow, got %T", sink.events[0])
	}
	if gt.Label != models.Malicious || gt.SrcIP != "10.0.0.1" {
		t.Errorf("got %+v", gt)
	}
}

func TestParse_JSONBenign(t *testing.T) {
	line := `{"ts": 1000.5, "id.orig_h": "10.0.0.1", "id.resp_h": "10.0.0.2", "id.orig_p": 1234, "id.resp_p": 443, "proto": "tcp", "label": "Benign"}`
	sink := &recordingSink{}
	stats, errs := Parse(context.Background(), strings.NewReader(line), JSON, sink)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if stats.Benign != 1 {
		t.Errorf("got %d benign, want 1", stats.Benign)
	}
}

func TestParse_MalformedLineSkippedNotFatal(t *testing.T) {
	lines := "not enough fields\n1000.000000\t-\t10.0.0.1\t1234\t10.0.0.2\t443\ttcp\t-\t-\t-\t-\t-\t-\t-\t-\t-\t-\t-\t-\t-\tBenign\n"
	sink := &recordingSink{}
	_, errs := Parse(context.Background(), strings.NewReader(lines), TabSeparated, sink)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error for the malformed line, got %d", len(errs))
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected the valid line to still be ingested, got %d events", len(sink.events))
	}
}

func TestParse_ICMPUsesTypeCodeNotPorts(t *testing.T) {
	line := "1000.000000\t-\t10.0.0.1\t8\t10.0.0.2\t0\ticmp\t-\t-\t-\t-\t-\t-\t-\t-\t-\t-\t-\t-\t-\tBenign\n"
	sink := &recordingSink{}
	_, errs := Parse(context.Background(), strings.NewReader(line), TabSeparated, sink)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	gt := sink.events[0].(models.GroundTruthFlow)
	if gt.Tuple.Proto != models.ICMP || gt.Tuple.ICMPType != 8 || gt.Tuple.ICMPCode != 0 {
		t.Errorf("got %+v", gt.Tuple)
	}
}
