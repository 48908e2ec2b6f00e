// Package fingerprint computes the flow-identity values the rest of the
// system joins on: a Community-ID v1 hash of the 5-tuple, and the AID
// ("All-ID") that disambiguates repeated connections by folding in a
// normalized timestamp.
package fingerprint

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"net"

	"github.com/rawblock/idps-compare/pkg/models"
)

// communityIDSeed is the standard Community-ID v1 seed (0x0000), kept
// fixed because every observation point must produce the same hash.
const communityIDSeed uint16 = 0

// CommunityID implements the Community-ID v1 algorithm: order the two
// endpoints canonically (smaller address+port pair first) so the hash is
// direction-independent, then sha1 the seed, the packed binary addresses
// (4 bytes for IPv4, 16 for IPv6), the protocol number, a padding byte,
// and the two big-endian port values. Returns "" when the protocol is not
// recognized or an address does not parse — the caller treats that as an
// unidentifiable flow and skips it.
func CommunityID(tuple models.FlowTuple) string {
	var protoNum byte
	switch tuple.Proto {
	case models.TCP:
		protoNum = 6
	case models.UDP:
		protoNum = 17
	case models.ICMP:
		protoNum = 1
	default:
		return ""
	}

	saddr := packAddr(tuple.Saddr)
	daddr := packAddr(tuple.Daddr)
	if saddr == nil || daddr == nil {
		return ""
	}

	var p1, p2 uint16
	if tuple.Proto == models.ICMP {
		p1, p2 = uint16(tuple.ICMPType), uint16(tuple.ICMPCode)
	} else {
		p1, p2 = tuple.Sport, tuple.Dport
	}

	// Canonical ordering: flip so the "smaller" endpoint always comes
	// first, making the hash identical regardless of which side
	// originated the flow.
	flip := bytes.Compare(daddr, saddr) < 0 || (bytes.Equal(saddr, daddr) && p2 < p1)
	if flip {
		saddr, daddr = daddr, saddr
		p1, p2 = p2, p1
	}

	h := sha1.New()
	var seedBuf [2]byte
	binary.BigEndian.PutUint16(seedBuf[:], communityIDSeed)
	h.Write(seedBuf[:])
	h.Write(saddr)
	h.Write(daddr)
	h.Write([]byte{protoNum})
	h.Write([]byte{0}) // padding byte per the reference layout
	var portBuf [4]byte
	binary.BigEndian.PutUint16(portBuf[0:2], p1)
	binary.BigEndian.PutUint16(portBuf[2:4], p2)
	h.Write(portBuf[:])

	sum := h.Sum(nil)
	return "1:" + base64.StdEncoding.EncodeToString(sum)
}

// packAddr returns the packed binary form of an IP address string: 4
// bytes for IPv4 (including IPv4-mapped forms), 16 for IPv6, nil when
// the string is not an address.
func packAddr(s string) []byte {
	ip := net.ParseIP(s)
	if ip == nil {
		return nil
	}
	if v4 := ip.To4(); v4 != nil {
		return v4
	}
	return ip.To16()
}
