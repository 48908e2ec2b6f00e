// Package orchestrator implements the run-level state machine: it
// starts the ground-truth parser, joins it, then starts the tool
// parsers in parallel, and finally invokes the comparers. Each stage is
// a goroutine rather than an OS process; the stages share nothing but
// the label store, which serializes its own writes.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/idps-compare/internal/logging"
)

// State is one node of the run-level state machine.
type State int

const (
	Init State = iota
	ParsingGT
	ParsingTools
	PostProcess
	Comparing
	Done
)

func (s State) String() string {
	switch s {
	case Init:
		return "INIT"
	case ParsingGT:
		return "PARSING_GT"
	case ParsingTools:
		return "PARSING_TOOLS"
	case PostProcess:
		return "POST_PROCESS"
	case Comparing:
		return "COMPARING"
	case Done:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Task is a parser or comparer stage reduced to a single
// run() -> error contract, executable as a plain goroutine.
type Task func(ctx context.Context) error

// Metadata is written to metadata.txt at DONE: run parameters, tool
// versions, timings.
type Metadata struct {
	RunID        string
	ToolAVersion string
	ToolBVersion string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Duration returns the wall-clock analysis time.
func (m Metadata) Duration() time.Duration {
	return m.FinishedAt.Sub(m.StartedAt)
}

// Orchestrator drives a comparison run through its states.
type Orchestrator struct {
	log   logging.Sink
	state State
	mu    sync.Mutex

	meta Metadata
}

// New builds an Orchestrator. The run ID is a fresh UUID, recorded in
// metadata.txt so historical runs stay distinguishable.
func New(log logging.Sink, toolAVersion, toolBVersion string) *Orchestrator {
	return &Orchestrator{
		log:   log,
		state: Init,
		meta: Metadata{
			RunID:        uuid.NewString(),
			ToolAVersion: toolAVersion,
			ToolBVersion: toolBVersion,
		},
	}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
	if o.log != nil {
		o.log.Emit(logging.Record{
			Component: "Orchestrator",
			PlainText: fmt.Sprintf("state -> %s", s),
		})
	}
}

// State returns the orchestrator's current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Run executes the full state machine: INIT -> PARSING_GT ->
// PARSING_TOOLS -> POST_PROCESS -> COMPARING -> DONE.
//
// gtTask runs to completion before any tool task starts — ground-truth
// parsing strictly happens-before any tool parsing, which is what lets
// the aligner reject tool-only AIDs and windows. toolTasks run
// concurrently with each other. If any task returns a non-nil error,
// the orchestrator aborts the remaining stages and returns that error.
func (o *Orchestrator) Run(ctx context.Context, gtTask Task, toolTasks []Task, postProcess, compare Task) error {
	o.meta.StartedAt = time.Now()
	defer func() { o.meta.FinishedAt = time.Now() }()

	o.setState(ParsingGT)
	if err := gtTask(ctx); err != nil {
		return fmt.Errorf("orchestrator: ground-truth parser failed: %w", err)
	}

	o.setState(ParsingTools)
	if err := runConcurrently(ctx, toolTasks); err != nil {
		return fmt.Errorf("orchestrator: tool parser failed: %w", err)
	}

	o.setState(PostProcess)
	if postProcess != nil {
		if err := postProcess(ctx); err != nil {
			return fmt.Errorf("orchestrator: post-process failed: %w", err)
		}
	}

	o.setState(Comparing)
	if compare != nil {
		if err := compare(ctx); err != nil {
			return fmt.Errorf("orchestrator: comparison failed: %w", err)
		}
	}

	o.setState(Done)
	return nil
}

// Metadata returns the run's metadata, valid once Run has returned.
func (o *Orchestrator) Metadata() Metadata {
	return o.meta
}

func runConcurrently(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}
	errCh := make(chan error, len(tasks))
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			errCh <- t(ctx)
		}(task)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}
