package statusapi

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rawblock/idps-compare/internal/store"
)

// CounterReader is the slice of the label store the collector scrapes.
type CounterReader interface {
	CountersSnapshot(ctx context.Context) ([]store.CounterRow, error)
}

// counterDescs maps counter table names to their exported metric
// descriptors. Counter rows whose name is not listed here are skipped.
var counterDescs = map[string]*prometheus.Desc{
	"discarded_flows": prometheus.NewDesc(
		"idps_compare_discarded_flows_total",
		"Tool flows discarded because their AID is unknown to ground truth.",
		[]string{"tool"}, nil),
	"discarded_timewindows": prometheus.NewDesc(
		"idps_compare_discarded_timewindows_total",
		"Tool time-window labels discarded because the window was never registered by ground truth.",
		[]string{"tool"}, nil),
	"aid_collisions": prometheus.NewDesc(
		"idps_compare_aid_collisions_total",
		"Ground-truth flows whose AID collided with an earlier flow.",
		[]string{"source"}, nil),
	"flows_count": prometheus.NewDesc(
		"idps_compare_flows_parsed_total",
		"Flow records parsed per source.",
		[]string{"source"}, nil),
}

// CounterCollector exports the store's counter rows as Prometheus
// metrics, reading them fresh on every scrape so the numbers are always
// the store's own.
type CounterCollector struct {
	source CounterReader
}

// NewCounterCollector builds a collector over the given counter source.
func NewCounterCollector(source CounterReader) *CounterCollector {
	return &CounterCollector{source: source}
}

// Describe implements prometheus.Collector.
func (c *CounterCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range counterDescs {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *CounterCollector) Collect(ch chan<- prometheus.Metric) {
	rows, err := c.source.CountersSnapshot(context.Background())
	if err != nil {
		return
	}
	for _, row := range rows {
		desc, ok := counterDescs[row.Name]
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(row.Value), row.Key)
	}
}
