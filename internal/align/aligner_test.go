package align

import (
	"context"
	"fmt"
	"testing"

	"github.com/rawblock/idps-compare/internal/fingerprint"
	"github.com/rawblock/idps-compare/internal/store"
	"github.com/rawblock/idps-compare/internal/timewindow"
	"github.com/rawblock/idps-compare/pkg/models"
)

// fakeStore is an in-memory Store used to unit test the Aligner without
// a live Postgres instance.
type fakeStore struct {
	gtFlows          map[string]models.Label
	gtFlowTimestamps map[string]float64
	toolFlows        map[string]map[models.Tool]models.Label
	registeredTW     map[int]bool
	gtTW             map[string]models.Label
	toolTW           map[string]models.Label

	discardedFlows map[models.Tool]int
	discardedTWs   map[models.Tool]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		gtFlows:          make(map[string]models.Label),
		gtFlowTimestamps: make(map[string]float64),
		toolFlows:        make(map[string]map[models.Tool]models.Label),
		registeredTW:     make(map[int]bool),
		gtTW:             make(map[string]models.Label),
		toolTW:           make(map[string]models.Label),
		discardedFlows:   make(map[models.Tool]int),
		discardedTWs:     make(map[models.Tool]int),
	}
}

func (f *fakeStore) UpsertGTFlow(_ context.Context, aid string, label models.Label) error {
	f.gtFlows[aid] = label
	return nil
}

func (f *fakeStore) InsertGTFlowRecord(_ context.Context, aid string, ts float64, label models.Label) error {
	f.gtFlowTimestamps[aid] = ts
	return nil
}

func (f *fakeStore) UpsertToolFlow(_ context.Context, aid string, tool models.Tool, label models.Label) (store.FlowWriteResult, error) {
	if _, ok := f.gtFlows[aid]; !ok {
		f.discardedFlows[tool]++
		return store.FlowWriteResult{DiscardedMissingGT: true}, nil
	}
	if f.toolFlows[aid] == nil {
		f.toolFlows[aid] = make(map[models.Tool]models.Label)
	}
	if f.toolFlows[aid][tool] == models.Malicious && label == models.Benign {
		return store.FlowWriteResult{DiscardedMalToBen: true}, nil
	}
	f.toolFlows[aid][tool] = label
	return store.FlowWriteResult{Applied: true}, nil
}

func (f *fakeStore) RegisterTW(_ context.Context, k int, start, end float64) (bool, error) {
	if f.registeredTW[k] {
		return false, nil
	}
	f.registeredTW[k] = true
	return true, nil
}

func (f *fakeStore) SetGTTWLabel(_ context.Context, ip string, tw int, label models.Label) error {
	key := ipTWKey(ip, tw)
	if _, ok := f.gtTW[key]; ok && label != models.Malicious {
		return nil
	}
	f.gtTW[key] = label
	return nil
}

func (f *fakeStore) SetToolTWLabel(_ context.Context, ip string, tw int, tool models.Tool, label models.Label) (store.TWWriteResult, error) {
	if !f.registeredTW[tw] {
		f.discardedTWs[tool]++
		return store.TWWriteResult{DiscardedUnregisteredTW: true}, nil
	}
	f.toolTW[ipTWKey(ip, tw)+string(tool)] = label
	return store.TWWriteResult{Applied: true}, nil
}

func ipTWKey(ip string, tw int) string {
	return fmt.Sprintf("%s#%d", ip, tw)
}

func tcpTuple(saddr, daddr string) models.FlowTuple {
	return models.FlowTuple{Saddr: saddr, Daddr: daddr, Proto: models.TCP, Sport: 1234, Dport: 443}
}

func TestAligner_PerfectToolA(t *testing.T) {
	fs := newFakeStore()
	idx := timewindow.New(1000, 3600)
	a := New(fs, idx, nil)
	ctx := context.Background()

	tuple := tcpTuple("10.0.0.1", "10.0.0.2")
	gt := models.GroundTruthFlow{Tuple: tuple, Timestamp: 1000, SrcIP: "10.0.0.1", Label: models.Malicious}
	if err := a.Ingest(ctx, gt); err != nil {
		t.Fatalf("ingest gt: %v", err)
	}

	tf := models.ToolFlow{Tool: models.ToolA, Tuple: tuple, Timestamp: 1000, SrcIP: "10.0.0.1", Label: models.Malicious}
	if err := a.Ingest(ctx, tf); err != nil {
		t.Fatalf("ingest tool flow: %v", err)
	}

	if len(fs.toolFlows) != 1 {
		t.Fatalf("expected 1 tool flow row, got %d", len(fs.toolFlows))
	}
	if ts := fs.gtFlowTimestamps[aidForTest(tuple, 1000)]; ts != 1000 {
		t.Errorf("expected ground-truth flow record at ts=1000, got %v", ts)
	}
	if fs.discardedFlows[models.ToolA] != 0 {
		t.Errorf("expected no discards for tool a, got %d", fs.discardedFlows[models.ToolA])
	}
}

func TestAligner_DiscardsToolFlowMissingGT(t *testing.T) {
	fs := newFakeStore()
	idx := timewindow.New(1000, 3600)
	a := New(fs, idx, nil)
	ctx := context.Background()

	tuple := tcpTuple("10.0.0.5", "10.0.0.6")
	tf := models.ToolFlow{Tool: models.ToolA, Tuple: tuple, Timestamp: 1000, SrcIP: "10.0.0.5", Label: models.Malicious}
	if err := a.Ingest(ctx, tf); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if fs.discardedFlows[models.ToolA] != 1 {
		t.Errorf("expected discarded_flows[tool_a]=1, got %d", fs.discardedFlows[models.ToolA])
	}
}

func TestAligner_MonotonicMalicious(t *testing.T) {
	fs := newFakeStore()
	idx := timewindow.New(1000, 3600)
	a := New(fs, idx, nil)
	ctx := context.Background()

	tuple := tcpTuple("10.0.0.1", "10.0.0.2")
	gt := models.GroundTruthFlow{Tuple: tuple, Timestamp: 1000, SrcIP: "10.0.0.1", Label: models.Malicious}
	if err := a.Ingest(ctx, gt); err != nil {
		t.Fatalf("ingest gt: %v", err)
	}

	mal := models.ToolFlow{Tool: models.ToolA, Tuple: tuple, Timestamp: 1000, SrcIP: "10.0.0.1", Label: models.Malicious}
	ben := models.ToolFlow{Tool: models.ToolA, Tuple: tuple, Timestamp: 1000, SrcIP: "10.0.0.1", Label: models.Benign}
	if err := a.Ingest(ctx, mal); err != nil {
		t.Fatalf("ingest mal: %v", err)
	}
	if err := a.Ingest(ctx, ben); err != nil {
		t.Fatalf("ingest ben: %v", err)
	}

	aid := aidForTest(tuple, 1000)
	if fs.toolFlows[aid][models.ToolA] != models.Malicious {
		t.Errorf("expected tool_a_label to remain malicious, got %v", fs.toolFlows[aid][models.ToolA])
	}
}

func TestAligner_TimeWindowBoundaryDiscardsUnregistered(t *testing.T) {
	fs := newFakeStore()
	idx := timewindow.New(1000, 3600)
	a := New(fs, idx, nil)
	ctx := context.Background()

	tuple := tcpTuple("10.0.0.1", "10.0.0.2")
	gt := models.GroundTruthFlow{Tuple: tuple, Timestamp: 1000, SrcIP: "10.0.0.1", Label: models.Benign}
	if err := a.Ingest(ctx, gt); err != nil {
		t.Fatalf("ingest gt: %v", err)
	}

	alert := models.ToolAlert{Tool: models.ToolB, SrcIP: "10.0.0.1", TWStart: 4600, TWEnd: 8200}
	if err := a.Ingest(ctx, alert); err != nil {
		t.Fatalf("ingest alert: %v", err)
	}
	if fs.discardedTWs[models.ToolB] != 1 {
		t.Errorf("expected discarded_timewindows[tool_b]=1, got %d", fs.discardedTWs[models.ToolB])
	}
}

func aidForTest(tuple models.FlowTuple, ts float64) string {
	return fingerprint.AID(tuple, ts)
}
