package fingerprint

import (
	"testing"

	"github.com/rawblock/idps-compare/pkg/models"
)

func tcpTuple() models.FlowTuple {
	return models.FlowTuple{
		Saddr: "10.0.0.1", Daddr: "10.0.0.2",
		Proto: models.TCP, Sport: 443, Dport: 55443,
	}
}

func TestCommunityID_Deterministic(t *testing.T) {
	a := CommunityID(tcpTuple())
	b := CommunityID(tcpTuple())
	if a != b {
		t.Errorf("CommunityID not deterministic: %q vs %q", a, b)
	}
	if a == "" {
		t.Error("expected non-empty community id for TCP tuple")
	}
}

func TestCommunityID_DirectionIndependent(t *testing.T) {
	fwd := tcpTuple()
	rev := models.FlowTuple{
		Saddr: fwd.Daddr, Daddr: fwd.Saddr,
		Proto: fwd.Proto, Sport: fwd.Dport, Dport: fwd.Sport,
	}
	if CommunityID(fwd) != CommunityID(rev) {
		t.Error("expected community id to be direction independent")
	}
}

// TestCommunityID_GoldenVector checks against the published Community-ID
// v1 reference value for this TCP flow, so the hash stays bit-compatible
// with Zeek/Suricata producers.
func TestCommunityID_GoldenVector(t *testing.T) {
	const want = "1:LQU9qZlK+B5F3KDmev6m5PMibrg="
	fwd := models.FlowTuple{
		Saddr: "128.232.110.120", Daddr: "66.35.250.204",
		Proto: models.TCP, Sport: 34855, Dport: 80,
	}
	if got := CommunityID(fwd); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	rev := models.FlowTuple{
		Saddr: "66.35.250.204", Daddr: "128.232.110.120",
		Proto: models.TCP, Sport: 80, Dport: 34855,
	}
	if got := CommunityID(rev); got != want {
		t.Errorf("reversed direction: got %q, want %q", got, want)
	}
}

func TestCommunityID_UnparseableAddress(t *testing.T) {
	tuple := models.FlowTuple{Saddr: "not-an-ip", Daddr: "10.0.0.2", Proto: models.TCP, Sport: 1, Dport: 2}
	if got := CommunityID(tuple); got != "" {
		t.Errorf("expected empty string for unparseable address, got %q", got)
	}
}

func TestCommunityID_UnknownProtocol(t *testing.T) {
	tuple := models.FlowTuple{Saddr: "a", Daddr: "b", Proto: "sctp"}
	if got := CommunityID(tuple); got != "" {
		t.Errorf("expected empty string for unknown protocol, got %q", got)
	}
}

func TestCommunityID_ICMPUsesTypeCode(t *testing.T) {
	a := models.FlowTuple{Saddr: "10.0.0.1", Daddr: "10.0.0.2", Proto: models.ICMP, ICMPType: 8, ICMPCode: 0}
	b := models.FlowTuple{Saddr: "10.0.0.1", Daddr: "10.0.0.2", Proto: models.ICMP, ICMPType: 8, ICMPCode: 0, Sport: 9999, Dport: 1111}
	if CommunityID(a) != CommunityID(b) {
		t.Error("expected ICMP community id to depend only on type/code, not irrelevant port fields")
	}
}

func TestAID_StableAcrossTimestampPrecision(t *testing.T) {
	tuple := tcpTuple()
	a := AID(tuple, 1000.1)
	b := AID(tuple, 1000.100000)
	if a != b {
		t.Errorf("expected AID to be stable across timestamp precision: %q vs %q", a, b)
	}
}

func TestAID_DiffersByTimestamp(t *testing.T) {
	tuple := tcpTuple()
	a := AID(tuple, 1000.0)
	b := AID(tuple, 2000.0)
	if a == b {
		t.Error("expected different AIDs for different timestamps")
	}
}

func TestAID_EmptyForUnknownProtocol(t *testing.T) {
	tuple := models.FlowTuple{Saddr: "a", Daddr: "b", Proto: "sctp"}
	if got := AID(tuple, 1000); got != "" {
		t.Errorf("expected empty AID for unknown protocol, got %q", got)
	}
}
