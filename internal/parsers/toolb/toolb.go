// Package toolb parses Tool-B's newline-delimited JSON event stream.
// Only flow and alert event_types are consumed: flow events map to
// benign, alert events map to malicious.
package toolb

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/rawblock/idps-compare/internal/errs"
	"github.com/rawblock/idps-compare/internal/normalize"
	"github.com/rawblock/idps-compare/pkg/models"
)

// Sink is the narrow interface this parser ingests events into.
type Sink interface {
	Ingest(ctx context.Context, event models.FlowEvent) error
}

// Stats tallies labels seen.
type Stats struct {
	Malicious int
	Benign    int
}

type rawEvent struct {
	EventType string `json:"event_type"`
	Timestamp string `json:"timestamp"`
	SrcIP     string `json:"src_ip"`
	DestIP    string `json:"dest_ip"`
	SrcPort   int    `json:"src_port"`
	DestPort  int    `json:"dest_port"`
	Proto     string `json:"proto"`
	ICMPType  *int   `json:"icmp_type"`
	ICMPCode  *int   `json:"icmp_code"`
}

// Parse reads a Tool-B NDJSON event stream, ingesting one ToolFlow per
// flow/alert event. Other event_types (stats, ...) are silently ignored.
func Parse(ctx context.Context, r io.Reader, tool models.Tool, sink Sink) (Stats, []error) {
	var stats Stats
	var errsOut []error

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e rawEvent
		if err := json.Unmarshal(line, &e); err != nil {
			errsOut = append(errsOut, errs.New(errs.MalformedRecord, string(line), err))
			continue
		}
		if e.EventType != "flow" && e.EventType != "alert" {
			continue
		}

		ts, err := normalize.ParseTimestamp(e.Timestamp)
		if err != nil {
			errsOut = append(errsOut, errs.New(errs.TimestampFormat, e.Timestamp, err))
			continue
		}

		var proto models.Proto
		switch e.Proto {
		case "TCP", "tcp":
			proto = models.TCP
		case "UDP", "udp":
			proto = models.UDP
		case "ICMP", "icmp":
			proto = models.ICMP
		default:
			errsOut = append(errsOut, errs.New(errs.UnknownProtocol, e.Proto, nil))
			continue
		}

		tuple := models.FlowTuple{Saddr: e.SrcIP, Daddr: e.DestIP, Proto: proto}
		if proto == models.ICMP {
			if e.ICMPType != nil {
				tuple.ICMPType = uint8(*e.ICMPType)
			}
			if e.ICMPCode != nil {
				tuple.ICMPCode = uint8(*e.ICMPCode)
			}
		} else {
			tuple.Sport = uint16(e.SrcPort)
			tuple.Dport = uint16(e.DestPort)
		}

		label := models.Benign
		if e.EventType == "alert" {
			label = models.Malicious
			stats.Malicious++
		} else {
			stats.Benign++
		}

		event := models.ToolFlow{
			Tool:      tool,
			Tuple:     tuple,
			Timestamp: ts,
			SrcIP:     e.SrcIP,
			Label:     label,
		}
		if err := sink.Ingest(ctx, event); err != nil {
			errsOut = append(errsOut, err)
		}
	}
	if err := scanner.Err(); err != nil {
		errsOut = append(errsOut, errs.New(errs.MalformedRecord, "scanner", err))
	}
	return stats, errsOut
}
