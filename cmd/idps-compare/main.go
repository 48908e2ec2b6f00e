// Command idps-compare evaluates the detection quality of two
// network-intrusion-detection tools against a labeled ground-truth flow
// dataset. It parses the ground truth first, then both tools in
// parallel, aligns everything in the label store, and reports per-tool
// confusion matrices and derived metrics in both the flow-by-flow and
// per-time-window views.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rawblock/idps-compare/internal/align"
	"github.com/rawblock/idps-compare/internal/cli"
	"github.com/rawblock/idps-compare/internal/config"
	"github.com/rawblock/idps-compare/internal/errs"
	"github.com/rawblock/idps-compare/internal/logging"
	"github.com/rawblock/idps-compare/internal/metrics"
	"github.com/rawblock/idps-compare/internal/orchestrator"
	"github.com/rawblock/idps-compare/internal/parsers/cmdb"
	"github.com/rawblock/idps-compare/internal/parsers/groundtruth"
	"github.com/rawblock/idps-compare/internal/parsers/toola"
	"github.com/rawblock/idps-compare/internal/parsers/toolb"
	"github.com/rawblock/idps-compare/internal/report"
	"github.com/rawblock/idps-compare/internal/statusapi"
	"github.com/rawblock/idps-compare/internal/store"
	"github.com/rawblock/idps-compare/internal/timewindow"
	"github.com/rawblock/idps-compare/pkg/models"
)

// Exit codes per the CLI contract: 0 success, 1 parser/store failure,
// 2 invalid arguments or paths.
const (
	exitOK          = 0
	exitParserError = 1
	exitBadArgs     = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	var args cli.Args
	cmd := cli.Build(&args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitBadArgs
	}
	if args.OutputDir == "" {
		// --help or another no-run invocation; cobra already printed.
		return exitOK
	}

	cfg, err := config.Load(getEnvOrDefault("IDPS_COMPARE_CONFIG", "config.toml"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitBadArgs
	}

	resultsFile, err := os.Create(filepath.Join(args.OutputDir, "results.txt"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitBadArgs
	}
	defer resultsFile.Close()
	errorsFile, err := os.Create(filepath.Join(args.OutputDir, "errors.log"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitBadArgs
	}
	defer errorsFile.Close()

	// The sink tree is built here, before the store, so it can be injected
	// into the store at construction time.
	sink := logging.NewFanout(
		logging.NewConsoleSink(),
		logging.NewFileSink(resultsFile, false),
		logging.NewFileSink(errorsFile, true),
	)

	ctx := context.Background()

	if args.CMDB != "" {
		return runFromCMDB(ctx, args, cfg, sink)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; it must point at the run's label store")
		return exitBadArgs
	}

	st, err := store.Connect(ctx, dsn, sink)
	if err != nil {
		emitError(sink, err)
		return exitParserError
	}
	defer st.Close()
	if err := st.InitSchema(ctx); err != nil {
		emitError(sink, err)
		return exitParserError
	}

	orch := orchestrator.New(sink, cfg.ToolA.Version, cfg.ToolB.Version)

	if port := os.Getenv("IDPS_COMPARE_STATUS_PORT"); port != "" {
		hub := statusapi.NewHub(sink)
		go hub.Run()
		sink.Add(statusapi.NewHubSink(hub))
		router := statusapi.SetupRouter(st, orch, hub)
		go func() {
			if err := router.Run(":" + port); err != nil {
				emitError(sink, fmt.Errorf("status server: %w", err))
			}
		}()
	}

	reporter := orchestrator.NewProgressReporter(st, sink)
	progressKeys := map[string][]string{
		"flows_count":           {string(models.GroundTruth), string(models.ToolA), string(models.ToolB)},
		"discarded_flows":       {string(models.ToolA), string(models.ToolB)},
		"discarded_timewindows": {string(models.ToolA), string(models.ToolB)},
	}

	boot := &gtBootstrap{st: st, sink: sink, width: float64(cfg.Params.TimewindowWidthSeconds)}

	gtTask := func(ctx context.Context) error {
		var stats groundtruth.Stats
		var parseErrs []error
		if args.GroundTruthDir != "" {
			stats, parseErrs = groundtruth.ParseDir(ctx, args.GroundTruthDir, boot)
		} else {
			stats, parseErrs = groundtruth.ParseFile(ctx, args.GroundTruthFile, boot)
		}
		if err := logParseErrors(sink, "GroundTruthParser", parseErrs); err != nil {
			return err
		}
		total := int64(stats.Malicious + stats.Benign + stats.Unknown)
		if err := st.AddToCounter(ctx, "flows_count", string(models.GroundTruth), total); err != nil {
			return err
		}
		// Release the progress reporter once ground truth is in.
		reporter.Start(ctx, progressKeys)
		return nil
	}

	var toolTasks []orchestrator.Task
	if args.ToolADB != "" {
		toolTasks = append(toolTasks, func(ctx context.Context) error {
			pool, err := pgxpool.New(ctx, args.ToolADB)
			if err != nil {
				return errs.New(errs.ParserCrash, "tool-a store", err)
			}
			defer pool.Close()
			aligner := align.New(st, boot.Index(), sink)
			stats, parseErrs := toola.Parse(ctx, pool, models.ToolA, aligner)
			if err := logParseErrors(sink, "ToolAParser", parseErrs); err != nil {
				return err
			}
			return st.AddToCounter(ctx, "flows_count", string(models.ToolA), int64(stats.Flows+stats.Alerts))
		})
	}
	if args.ToolBEvents != "" {
		toolTasks = append(toolTasks, func(ctx context.Context) error {
			f, err := os.Open(args.ToolBEvents)
			if err != nil {
				return errs.New(errs.ParserCrash, "tool-b events", err)
			}
			defer f.Close()
			aligner := align.New(st, boot.Index(), sink)
			stats, parseErrs := toolb.Parse(ctx, f, models.ToolB, aligner)
			if err := logParseErrors(sink, "ToolBParser", parseErrs); err != nil {
				return err
			}
			return st.AddToCounter(ctx, "flows_count", string(models.ToolB), int64(stats.Malicious+stats.Benign))
		})
	}

	postProcess := func(ctx context.Context) error {
		reporter.Stop()
		return st.FillNullsAsBenign(ctx)
	}

	compare := func(ctx context.Context) error {
		return compareTools(ctx, st, sink)
	}

	if err := orch.Run(ctx, gtTask, toolTasks, postProcess, compare); err != nil {
		emitError(sink, err)
		return exitParserError
	}

	counters, err := st.CountersSnapshot(ctx)
	if err != nil {
		emitError(sink, err)
		return exitParserError
	}
	report.WriteCounters(sink, counters)

	meta := orch.Metadata()
	info := report.RunInfo{
		RunID:                  meta.RunID,
		ToolAVersion:           cfg.ToolA.Version,
		ToolBVersion:           cfg.ToolB.Version,
		GroundTruthPath:        firstNonEmpty(args.GroundTruthDir, args.GroundTruthFile),
		ToolAPath:              args.ToolADB,
		ToolBPath:              args.ToolBEvents,
		TimewindowWidthSeconds: cfg.Params.TimewindowWidthSeconds,
		StartedAt:              meta.StartedAt,
		FinishedAt:             meta.FinishedAt,
	}
	if err := report.WriteMetadataFile(filepath.Join(args.OutputDir, "metadata.txt"), info, counters); err != nil {
		emitError(sink, err)
		return exitParserError
	}
	return exitOK
}

// compareTools runs the flow-by-flow and per-time-window calculations for
// each tool, persists both confusion matrices, and reports the derived
// metrics.
func compareTools(ctx context.Context, st *store.LabelStore, sink logging.Sink) error {
	for _, tool := range []models.Tool{models.ToolA, models.ToolB} {
		pairs, err := st.StreamFlowLabels(ctx, tool)
		if err != nil {
			return err
		}
		flowCM := metrics.Accumulate(pairs)
		if err := st.SaveConfusionMatrix(ctx, "confusion_matrix_flow", tool, flowCM); err != nil {
			return err
		}
		report.WriteToolMetrics(sink, tool, "flow-by-flow", flowCM, metrics.Derive(flowCM))

		rows, err := st.StreamPerTWLabels(ctx, tool)
		if err != nil {
			return err
		}
		perRow := make([]models.ConfusionMatrix, 0, len(rows))
		for _, row := range rows {
			perRow = append(perRow, metrics.Accumulate([]metrics.LabelPair{row.Pair}))
		}
		twCM := metrics.SumPerRow(perRow)
		if err := st.SaveConfusionMatrix(ctx, "confusion_matrix_tw", tool, twCM); err != nil {
			return err
		}
		report.WriteToolMetrics(sink, tool, "per-timewindow", twCM, metrics.Derive(twCM))
	}
	return nil
}

// runFromCMDB is the --cm-db shortcut: skip all parsing and report
// metrics straight from a previously computed confusion-matrix store.
func runFromCMDB(ctx context.Context, args cli.Args, cfg config.Config, sink logging.Sink) int {
	started := time.Now()
	pool, err := pgxpool.New(ctx, args.CMDB)
	if err != nil {
		emitError(sink, fmt.Errorf("cm-db: %w", err))
		return exitParserError
	}
	defer pool.Close()

	tools := []models.Tool{models.ToolA, models.ToolB}
	flowCM, twCM, readErrs := cmdb.ReadAll(ctx, pool, tools)
	for _, e := range readErrs {
		emitError(sink, e)
	}
	for _, tool := range tools {
		if cm, ok := flowCM[tool]; ok {
			report.WriteToolMetrics(sink, tool, "flow-by-flow", cm, metrics.Derive(cm))
		}
		if cm, ok := twCM[tool]; ok {
			report.WriteToolMetrics(sink, tool, "per-timewindow", cm, metrics.Derive(cm))
		}
	}

	info := report.RunInfo{
		RunID:                  uuid.NewString(),
		ToolAVersion:           cfg.ToolA.Version,
		ToolBVersion:           cfg.ToolB.Version,
		CMDBPath:               args.CMDB,
		TimewindowWidthSeconds: cfg.Params.TimewindowWidthSeconds,
		StartedAt:              started,
		FinishedAt:             time.Now(),
	}
	if err := report.WriteMetadataFile(filepath.Join(args.OutputDir, "metadata.txt"), info, nil); err != nil {
		emitError(sink, err)
		return exitParserError
	}
	return exitOK
}

// gtBootstrap defers time-window index construction until the first
// ground-truth flow arrives, since the index is anchored at that flow's
// timestamp. The ground-truth parse is single-threaded, so Ingest
// needs no locking; Index is called later from concurrent tool tasks and
// does.
type gtBootstrap struct {
	st    *store.LabelStore
	sink  logging.Sink
	width float64

	mu      sync.Mutex
	index   *timewindow.Index
	aligner *align.Aligner
}

func (b *gtBootstrap) Ingest(ctx context.Context, event models.FlowEvent) error {
	if b.aligner == nil {
		gt, ok := event.(models.GroundTruthFlow)
		if !ok {
			return errs.New(errs.MalformedRecord, "non-ground-truth event before anchor", nil)
		}
		b.mu.Lock()
		b.index = timewindow.New(gt.Timestamp, b.width)
		b.mu.Unlock()
		b.aligner = align.New(b.st, b.index, b.sink)
	}
	return b.aligner.Ingest(ctx, event)
}

// Index returns the anchored index, or an index anchored at zero when the
// ground truth was empty — every tool window is then unregistered and
// counted as discarded, which is the contract for tool-only data.
func (b *gtBootstrap) Index() *timewindow.Index {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index == nil {
		b.index = timewindow.New(0, b.width)
	}
	return b.index
}

func logParseErrors(sink logging.Sink, component string, parseErrs []error) error {
	var fatal error
	for _, e := range parseErrs {
		var re *errs.RecordError
		if errors.As(e, &re) && re.Kind.Fatal() && fatal == nil {
			fatal = e
		}
		sink.Emit(logging.Record{
			Component: component,
			PlainText: e.Error(),
			Severity:  logging.Error,
		})
	}
	return fatal
}

func emitError(sink logging.Sink, err error) {
	sink.Emit(logging.Record{
		Component: "Main",
		PlainText: err.Error(),
		Severity:  logging.Error,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
