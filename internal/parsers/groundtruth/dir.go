package groundtruth

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DetectFormat sniffs a Zeek log file's first non-empty line to tell
// tab-separated from JSON lines: a Zeek header line containing
// "separator" means tab-separated, otherwise the line is tried as JSON
// and falls back to tab-separated on decode failure.
func DetectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return TabSeparated, fmt.Errorf("groundtruth: detecting format of %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.Contains(line, "separator") {
			return TabSeparated, nil
		}
		var v any
		if json.Unmarshal([]byte(line), &v) == nil {
			return JSON, nil
		}
		return TabSeparated, nil
	}
	return TabSeparated, nil
}

// isIgnored reports whether filename names one of the companion Zeek
// logs in IgnoredLogs, matched on the name with its extension stripped.
func isIgnored(filename string) bool {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	return IgnoredLogs[base]
}

// ParseFile detects a single log file's format and parses it.
func ParseFile(ctx context.Context, path string, sink Sink) (Stats, []error) {
	format, err := DetectFormat(path)
	if err != nil {
		return Stats{}, []error{err}
	}
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, []error{fmt.Errorf("groundtruth: opening %s: %w", path, err)}
	}
	defer f.Close()
	return Parse(ctx, f, format, sink)
}

// ParseDir walks every non-ignored regular file directly inside dir (a
// labeled Zeek log directory) and parses each one, accumulating stats
// and errors across the whole directory.
func ParseDir(ctx context.Context, dir string, sink Sink) (Stats, []error) {
	var total Stats
	var errsOut []error

	entries, err := os.ReadDir(dir)
	if err != nil {
		return total, []error{fmt.Errorf("groundtruth: reading dir %s: %w", dir, err)}
	}
	for _, entry := range entries {
		if entry.IsDir() || isIgnored(entry.Name()) {
			continue
		}
		stats, fileErrs := ParseFile(ctx, filepath.Join(dir, entry.Name()), sink)
		total.Malicious += stats.Malicious
		total.Benign += stats.Benign
		total.Unknown += stats.Unknown
		errsOut = append(errsOut, fileErrs...)
	}
	return total, errsOut
}
