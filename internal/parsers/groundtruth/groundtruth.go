// Package groundtruth parses the labeled Zeek conn.log — tab-delimited
// or JSON lines — that serves as ground truth. Companion Zeek logs that
// carry no flow records are skipped by name, and ICMP records have
// their sport/dport fields renamed to type/code before fingerprinting.
package groundtruth

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/rawblock/idps-compare/internal/errs"
	"github.com/rawblock/idps-compare/internal/normalize"
	"github.com/rawblock/idps-compare/pkg/models"
)

// IgnoredLogs are companion Zeek log files that carry no flow records
// and must not be parsed as conn.log.
var IgnoredLogs = map[string]bool{
	"capture_loss":   true,
	"loaded_scripts": true,
	"packet_filter":  true,
	"stats":          true,
	"ocsp":           true,
	"reporter":       true,
	"x509":           true,
	"pe":             true,
	"mqtt_publish":   true,
	"mqtt_subscribe": true,
	"mqtt_connect":   true,
	"analyzer":       true,
	"ntp":            true,
	"radius":         true,
	"sip":            true,
	"syslog":         true,
}

// Sink is the narrow interface this parser ingests flow events into;
// *align.Aligner satisfies it without this package importing align.
type Sink interface {
	Ingest(ctx context.Context, event models.FlowEvent) error
}

var (
	maliciousPattern = regexp.MustCompile(`\bMalicious\b`)
	benignPattern    = regexp.MustCompile(`\bBenign\b`)
	multiSpace       = regexp.MustCompile(`\s{2,}`)
)

// Format selects the Zeek log encoding: tab-delimited or JSON lines.
type Format int

const (
	TabSeparated Format = iota
	JSON
)

// Stats tallies the labels seen while parsing.
type Stats struct {
	Malicious int
	Benign    int
	Unknown   int
}

// Parse reads a single Zeek conn.log stream and ingests one
// GroundTruthFlow per valid line. Malformed lines are skipped and
// reported via the returned errors but do not stop parsing.
func Parse(ctx context.Context, r io.Reader, format Format, sink Sink) (Stats, []error) {
	var stats Stats
	var errsOut []error

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		flow, label, err := extractFlow(line, format)
		if err != nil {
			errsOut = append(errsOut, err)
			continue
		}
		tallyLabel(&stats, label)

		event := models.GroundTruthFlow{
			Tuple:     flow.tuple,
			Timestamp: flow.timestamp,
			SrcIP:     flow.srcIP,
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

type extractedFlow struct {
	tuple     models.FlowTuple
	timestamp float64
	srcIP     string
}

func extractFlow(line string, format Format) (extractedFlow, models.Label, error) {
	switch format {
	case JSON:
		return extractJSON(line)
	default:
		return extractTab(line)
	}
}

func extractTab(line string) (extractedFlow, models.Label, error) {
	label := labelFromLine(line)

	var fields []string
	if strings.Contains(line, "\t") {
		fields = strings.Split(line, "\t")
	} else {
		fields = multiSpace.Split(line, -1)
	}
	if len(fields) < 7 {
		return extractedFlow{}, "", errs.New(errs.MalformedRecord, line, nil)
	}

	ts, err := normalize.ParseTimestamp(fields[0])
	if err != nil {
		return extractedFlow{}, "", errs.New(errs.TimestampFormat, fields[0], err)
	}

	saddr, sport, daddr, dport, proto := fields[2], fields[3], fields[4], fields[5], fields[6]
	tuple, err := buildTuple(saddr, daddr, sport, dport, proto)
	if err != nil {
		return extractedFlow{}, "", err
	}

	return extractedFlow{tuple: tuple, timestamp: ts, srcIP: saddr}, label, nil
}

func extractJSON(line string) (extractedFlow, models.Label, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return extractedFlow{}, "", errs.New(errs.MalformedRecord, line, err)
	}

	tsRaw, okTs := raw["ts"]
	saddr, okS := raw["id.orig_h"].(string)
	daddr, okD := raw["id.resp_h"].(string)
	proto, okP := raw["proto"].(string)
	if !okTs || !okS || !okD || !okP {
		return extractedFlow{}, "", errs.New(errs.MalformedRecord, "missing required json fields", nil)
	}

	ts, err := parseJSONTimestamp(tsRaw)
	if err != nil {
		return extractedFlow{}, "", errs.New(errs.TimestampFormat, fmt.Sprintf("%v", tsRaw), err)
	}

	sport := jsonPortString(raw["id.orig_p"])
	dport := jsonPortString(raw["id.resp_p"])
	tuple, err := buildTuple(saddr, daddr, sport, dport, proto)
	if err != nil {
		return extractedFlow{}, "", err
	}

	label := models.Unknown
	if l, ok := raw["label"].(string); ok {
		label = models.Label(strings.ToLower(l))
	}

	return extractedFlow{tuple: tuple, timestamp: ts, srcIP: saddr}, label, nil
}

func parseJSONTimestamp(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		return normalize.ParseTimestamp(t)
	default:
		return 0, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func jsonPortString(v any) string {
	switch t := v.(type) {
	case float64:
		return strconv.Itoa(int(t))
	case string:
		return t
	default:
		return ""
	}
}

func buildTuple(saddr, daddr, sportStr, dportStr, proto string) (models.FlowTuple, error) {
	proto = strings.ToLower(proto)
	var p models.Proto
	switch proto {
	case "tcp":
		p = models.TCP
	case "udp":
		p = models.UDP
	case "icmp":
		p = models.ICMP
	default:
		return models.FlowTuple{}, errs.New(errs.UnknownProtocol, proto, nil)
	}

	tuple := models.FlowTuple{Saddr: saddr, Daddr: daddr, Proto: p}
	if p == models.ICMP {
		// Zeek logs ICMP type/code in the sport/dport columns; the
		// fields arrive here still labeled sport/dport by the extractor.
		t, _ := strconv.Atoi(sportStr)
		c, _ := strconv.Atoi(dportStr)
		tuple.ICMPType = uint8(t)
		tuple.ICMPCode = uint8(c)
		return tuple, nil
	}
	sport, _ := strconv.Atoi(sportStr)
	dport, _ := strconv.Atoi(dportStr)
	tuple.Sport = uint16(sport)
	tuple.Dport = uint16(dport)
	return tuple, nil
}

func labelFromLine(line string) models.Label {
	if maliciousPattern.MatchString(line) {
		return models.Malicious
	}
	if benignPattern.MatchString(line) {
		return models.Benign
	}
	return models.Unknown
}

func tallyLabel(stats *Stats, label models.Label) {
	switch label {
	case models.Malicious:
		stats.Malicious++
	case models.Benign:
		stats.Benign++
	default:
		stats.Unknown++
	}
}
