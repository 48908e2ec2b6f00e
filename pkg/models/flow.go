package models

// FlowEvent is the closed algebraic type the aligner consumes. Parsers at
// the system boundary normalize loosely-typed input records (JSON objects,
// tab-separated log lines, SQL rows) into one of these four shapes before
// anything touches the store.
type FlowEvent interface {
	flowEvent()
}

// FlowTuple is the 5-tuple (or ICMP 3-tuple) a flow's Community-ID is
// derived from. Exactly one of (Sport, Dport) or (ICMPType, ICMPCode) is
// populated, selected by Proto.
type FlowTuple struct {
	Saddr    string
	Daddr    string
	Proto    Proto
	Sport    uint16
	Dport    uint16
	ICMPType uint8
	ICMPCode uint8
}

// GroundTruthFlow is a single labeled flow read from the Zeek conn.log.
type GroundTruthFlow struct {
	Tuple     FlowTuple
	Timestamp float64 // unix seconds, microsecond precision
	SrcIP     string
	Label     Label
}

func (GroundTruthFlow) flowEvent() {}

// ToolFlow is a single flow-level observation from Tool-A or Tool-B.
type ToolFlow struct {
	Tool      Tool
	Tuple     FlowTuple
	Timestamp float64
	SrcIP     string
	Label     Label
}

func (ToolFlow) flowEvent() {}

// ToolAlert is a tool's alert event. Alerts never carry a 5-tuple in some
// wire formats (Tool-A's alerts table only has ip + time-window bounds),
// so they're modeled separately from ToolFlow rather than forcing every
// alert through Community-ID computation.
type ToolAlert struct {
	Tool    Tool
	SrcIP   string
	TWStart float64
	TWEnd   float64
}

func (ToolAlert) flowEvent() {}

// PreFingerprintedFlow is a FlowEvent variant for input sources — like
// Tool-A's relational store — that already key their rows by AID rather
// than a raw 5-tuple, so there is nothing left for the aligner to
// fingerprint. The aligner writes it straight to the AID-keyed store
// primitives and skips Community-ID/AID computation entirely.
type PreFingerprintedFlow struct {
	Tool  Tool
	AID   string
	Label Label
}

func (PreFingerprintedFlow) flowEvent() {}
