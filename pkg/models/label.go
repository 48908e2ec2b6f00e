// Package models holds the record types shared across parsers, the
// label store, the aligner and the metrics calculator.
package models

// Label is the three-valued classification every flow and every
// (ip, time-window) pair carries per tool.
type Label string

const (
	Malicious Label = "malicious"
	Benign    Label = "benign"
	Unknown   Label = "unknown"
)

// Tool identifies one of the two detection systems being evaluated.
// GroundTruth is also modeled as a Tool so per-source counters (such as
// flows_count) are keyed the same way for all three sources; the store's
// tool write primitives accept only ToolA and ToolB.
type Tool string

const (
	GroundTruth Tool = "ground_truth"
	ToolA       Tool = "tool_a"
	ToolB       Tool = "tool_b"
)

// Proto is the transport/network protocol a flow was observed over.
type Proto string

const (
	TCP  Proto = "tcp"
	UDP  Proto = "udp"
	ICMP Proto = "icmp"
)
