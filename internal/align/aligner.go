// Package align ingests normalized FlowEvents and drives LabelStore
// writes, owning the discard/upgrade rules. It assumes its caller (the
// orchestrator) has already enforced the ground-truth-before-tools
// ordering; without it, tool-only AIDs and windows could not be
// rejected correctly.
package align

import (
	"context"
	"fmt"

	"github.com/rawblock/idps-compare/internal/errs"
	"github.com/rawblock/idps-compare/internal/fingerprint"
	"github.com/rawblock/idps-compare/internal/logging"
	"github.com/rawblock/idps-compare/internal/store"
	"github.com/rawblock/idps-compare/internal/timewindow"
	"github.com/rawblock/idps-compare/pkg/models"
)

// batchLogEvery is how many records pass between progress log lines.
const batchLogEvery = 180

// Store is the narrow slice of LabelStore the Aligner depends on,
// letting tests substitute a fake instead of a live Postgres instance.
type Store interface {
	UpsertGTFlow(ctx context.Context, aid string, label models.Label) error
	InsertGTFlowRecord(ctx context.Context, aid string, ts float64, label models.Label) error
	UpsertToolFlow(ctx context.Context, aid string, tool models.Tool, label models.Label) (store.FlowWriteResult, error)
	RegisterTW(ctx context.Context, k int, start, end float64) (bool, error)
	SetGTTWLabel(ctx context.Context, ip string, tw int, label models.Label) error
	SetToolTWLabel(ctx context.Context, ip string, tw int, tool models.Tool, label models.Label) (store.TWWriteResult, error)
}

// Aligner drives Store writes from a stream of FlowEvents.
type Aligner struct {
	store Store
	index *timewindow.Index
	log   logging.Sink

	gtRecords   int
	toolRecords int

	// lastTWLabel tracks what this aligner last wrote per (ip, tw, tool)
	// so it can warn when SetToolTWLabel's unconditional overwrite
	// silently downgrades a window from malicious to benign. The store
	// applies no monotonic rule at the per-window level; this is
	// visibility only, not a correction.
	lastTWLabel map[twKey]models.Label
}

type twKey struct {
	ip   string
	tw   int
	tool models.Tool
}

// New builds an Aligner over the given store and time-window index. The
// index's anchor must already be set from the first ground-truth flow
// before any event is ingested.
func New(store Store, index *timewindow.Index, log logging.Sink) *Aligner {
	return &Aligner{store: store, index: index, log: log, lastTWLabel: make(map[twKey]models.Label)}
}

// Ingest processes one FlowEvent, dispatching per its concrete type.
// Malformed events (missing required fields, unrecognized protocol) are
// reported via the returned error wrapped with the appropriate errs.Kind,
// and the caller is expected to count and continue rather than abort.
func (a *Aligner) Ingest(ctx context.Context, event models.FlowEvent) error {
	switch e := event.(type) {
	case models.GroundTruthFlow:
		return a.ingestGroundTruth(ctx, e)
	case models.ToolFlow:
		return a.ingestToolFlow(ctx, e)
	case models.ToolAlert:
		return a.ingestToolAlert(ctx, e)
	case models.PreFingerprintedFlow:
		return a.ingestPreFingerprinted(ctx, e)
	default:
		return errs.New(errs.MalformedRecord, fmt.Sprintf("%T", event), nil)
	}
}

// ingestPreFingerprinted handles sources (Tool-A's relational store)
// that key their rows by AID directly rather than a 5-tuple. There is no
// timestamp or source IP to resolve a time window from, so only the
// AID-keyed flow write applies; the per-(ip, tw) view for such a tool is
// driven entirely by its alerts (ToolAlert).
func (a *Aligner) ingestPreFingerprinted(ctx context.Context, flow models.PreFingerprintedFlow) error {
	if flow.AID == "" {
		return errs.New(errs.MalformedRecord, "empty aid", nil)
	}
	if _, err := a.store.UpsertToolFlow(ctx, flow.AID, flow.Tool, flow.Label); err != nil {
		return errs.New(errs.StoreFatal, "upsert pre-fingerprinted tool flow", err)
	}
	a.toolRecords++
	a.maybeLogBatch(string(flow.Tool), a.toolRecords)
	return nil
}

func (a *Aligner) ingestGroundTruth(ctx context.Context, flow models.GroundTruthFlow) error {
	if err := validateFlow(flow.Tuple, flow.SrcIP, flow.Timestamp); err != nil {
		return err
	}
	aid := fingerprint.AID(flow.Tuple, flow.Timestamp)
	if aid == "" {
		return errs.New(errs.UnknownProtocol, string(flow.Tuple.Proto), nil)
	}

	if err := a.store.UpsertGTFlow(ctx, aid, flow.Label); err != nil {
		return errs.New(errs.StoreFatal, "upsert gt flow", err)
	}
	if err := a.store.InsertGTFlowRecord(ctx, aid, flow.Timestamp, flow.Label); err != nil {
		return errs.New(errs.StoreFatal, "insert gt flow record", err)
	}

	k := a.index.WindowOf(flow.Timestamp)
	if k >= 1 {
		if a.index.RegisterTW(k) {
			start, end := a.index.Bounds(k)
			if _, err := a.store.RegisterTW(ctx, k, start, end); err != nil {
				return errs.New(errs.StoreFatal, "register tw", err)
			}
		}
		if err := a.store.SetGTTWLabel(ctx, flow.SrcIP, k, flow.Label); err != nil {
			return errs.New(errs.StoreFatal, "set gt tw label", err)
		}
	}

	a.gtRecords++
	a.maybeLogBatch("ground truth", a.gtRecords)
	return nil
}

func (a *Aligner) ingestToolFlow(ctx context.Context, flow models.ToolFlow) error {
	if err := validateFlow(flow.Tuple, flow.SrcIP, flow.Timestamp); err != nil {
		return err
	}
	aid := fingerprint.AID(flow.Tuple, flow.Timestamp)
	if aid == "" {
		return errs.New(errs.UnknownProtocol, string(flow.Tuple.Proto), nil)
	}

	if _, err := a.store.UpsertToolFlow(ctx, aid, flow.Tool, flow.Label); err != nil {
		return errs.New(errs.StoreFatal, "upsert tool flow", err)
	}

	k := a.index.WindowOf(flow.Timestamp)
	twResult, err := a.store.SetToolTWLabel(ctx, flow.SrcIP, k, flow.Tool, flow.Label)
	if err != nil {
		return errs.New(errs.StoreFatal, "set tool tw label", err)
	}
	if twResult.DiscardedUnregisteredTW && a.log != nil {
		a.log.Emit(logging.Record{
			Component: "Aligner",
			PlainText: fmt.Sprintf("%s window %d for %s not registered by ground truth; discarding", flow.Tool, k, flow.SrcIP),
			Severity:  logging.Warn,
		})
	} else if twResult.Applied {
		a.warnIfTWDowngraded(flow.SrcIP, k, flow.Tool, flow.Label)
	}

	a.toolRecords++
	a.maybeLogBatch(string(flow.Tool), a.toolRecords)
	return nil
}

// warnIfTWDowngraded logs a Warn record when a write silently moves a
// window from malicious to benign at the per-(ip, tw) level, since
// SetToolTWLabel itself performs an unconditional overwrite there.
func (a *Aligner) warnIfTWDowngraded(ip string, tw int, tool models.Tool, newLabel models.Label) {
	key := twKey{ip: ip, tw: tw, tool: tool}
	prev, seen := a.lastTWLabel[key]
	a.lastTWLabel[key] = newLabel
	if seen && prev == models.Malicious && newLabel == models.Benign && a.log != nil {
		a.log.Emit(logging.Record{
			Component: "Aligner",
			PlainText: fmt.Sprintf("%s window %d for %s downgraded malicious -> benign at per-window level (no monotonic rule applied here)", tool, tw, ip),
			Severity:  logging.Warn,
		})
	}
}

func (a *Aligner) ingestToolAlert(ctx context.Context, alert models.ToolAlert) error {
	startK := a.index.WindowOf(alert.TWStart)
	twResult, err := a.store.SetToolTWLabel(ctx, alert.SrcIP, startK, alert.Tool, models.Malicious)
	if err != nil {
		return errs.New(errs.StoreFatal, "set tool tw label from alert", err)
	}
	if twResult.Applied {
		a.warnIfTWDowngraded(alert.SrcIP, startK, alert.Tool, models.Malicious)
	}
	if twResult.DiscardedUnregisteredTW && a.log != nil {
		a.log.Emit(logging.Record{
			Component: "Aligner",
			PlainText: fmt.Sprintf("%s alert window %d for %s not registered by ground truth; discarding", alert.Tool, startK, alert.SrcIP),
			Severity:  logging.Warn,
		})
	}
	a.toolRecords++
	a.maybeLogBatch(string(alert.Tool), a.toolRecords)
	return nil
}

func (a *Aligner) maybeLogBatch(label string, count int) {
	if a.log == nil || count%batchLogEvery != 0 {
		return
	}
	a.log.Emit(logging.Record{
		Component: "Aligner",
		PlainText: fmt.Sprintf("%s: %d records processed", label, count),
	})
}

func validateFlow(tuple models.FlowTuple, srcIP string, ts float64) error {
	if tuple.Saddr == "" || tuple.Daddr == "" || srcIP == "" {
		return errs.New(errs.MalformedRecord, "missing address field", nil)
	}
	if tuple.Proto == "" {
		return errs.New(errs.MalformedRecord, "missing protocol", nil)
	}
	if ts == 0 {
		return errs.New(errs.TimestampFormat, "zero timestamp", nil)
	}
	return nil
}
