package logging

import (
	"bytes"
	"strings"
	"testing"
)

type recordingSink struct {
	records []Record
}

func (r *recordingSink) Emit(rec Record) {
	r.records = append(r.records, rec)
}

func TestFanout_BroadcastsToAllSinks(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	f := NewFanout(a, b)
	f.Emit(Record{Component: "Aligner", PlainText: "hello"})
	if len(a.records) != 1 || len(b.records) != 1 {
		t.Fatalf("expected both sinks to receive the record, got %d and %d", len(a.records), len(b.records))
	}
}

func TestFanout_Add(t *testing.T) {
	a := &recordingSink{}
	f := NewFanout()
	f.Add(a)
	f.Emit(Record{Component: "X", PlainText: "y"})
	if len(a.records) != 1 {
		t.Fatalf("expected added sink to receive record, got %d", len(a.records))
	}
}

func TestFileSink_OnlyPersistsMarkedRecords(t *testing.T) {
	var buf bytes.Buffer
	sink := NewFileSink(&buf, false)
	sink.Emit(Record{Component: "Store", PlainText: "not persisted"})
	sink.Emit(Record{Component: "Store", PlainText: "persisted", AlsoPersist: true})
	out := buf.String()
	if strings.Contains(out, "not persisted") {
		t.Error("expected non-persisted record to be skipped")
	}
	if !strings.Contains(out, "persisted") {
		t.Error("expected persisted record to be written")
	}
}

func TestFileSink_ErrorsOnlyFiltersSeverity(t *testing.T) {
	var buf bytes.Buffer
	sink := NewFileSink(&buf, true)
	sink.Emit(Record{Component: "Store", PlainText: "info line", Severity: Info})
	sink.Emit(Record{Component: "Store", PlainText: "error line", Severity: Error})
	out := buf.String()
	if strings.Contains(out, "info line") {
		t.Error("expected info-severity record to be skipped in errors-only sink")
	}
	if !strings.Contains(out, "error line") {
		t.Error("expected error-severity record to be written")
	}
}
