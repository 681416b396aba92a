package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/foremanhq/foreman/internal/config"
	"github.com/foremanhq/foreman/internal/filelock"
	"github.com/foremanhq/foreman/internal/state"
	"github.com/foremanhq/foreman/internal/tool"
	"github.com/foremanhq/foreman/pkg/models"
)

// DefaultWorkers is the worker pool size when the config leaves it unset.
const DefaultWorkers = 4

const (
	queueCapacity = 1024
	eventBuffer   = 100
)

// Resolver turns task input into a strategy and step plan.
// *planner.Planner is the production implementation.
type Resolver interface {
	Resolve(ctx context.Context, input string) (*models.Strategy, []models.PlannedStep, error)
}

// Options configures a new Engine.
type Options struct {
	// Store is the task state store. Required.
	Store state.StateStore
	// Registry holds the registered capabilities. Required, and
	// read-only once the engine starts.
	Registry *tool.Registry
	// Resolver produces strategies. Required.
	Resolver Resolver
	// Config supplies engine, tier, and workspace settings. Defaults
	// are used when nil.
	Config *config.Config
	// DataDir overrides the data directory derived from the config.
	// Holds the lock file, signals directory, and debug logs.
	DataDir string
	// Logger receives debug output. Defaults to the FOREMAN_DEBUG
	// gated file logger.
	Logger *DebugLogger
}

// Engine runs tasks through their lifecycle on a bounded worker pool.
// One engine process owns a data directory at a time, enforced with a
// file lock; steps within a task run strictly sequentially.
type Engine struct {
	store    state.StateStore
	registry *tool.Registry
	resolver Resolver
	cfg      *config.Config

	dataDir string
	lock    *filelock.Lock
	signals *SignalManager
	logger  *DebugLogger

	workers int
	queue   chan string
	events  chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	active  int
	started bool
	stopped bool
}

// New creates an engine. Start must be called before tasks run.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	workers := cfg.Engine.MaxConcurrentTasks
	if workers <= 0 {
		workers = DefaultWorkers
	}

	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = filepath.Join(cfg.Workspace.Dir, cfg.Workspace.DataDir)
	}

	logger := opts.Logger
	if logger == nil {
		logger = NewDebugLoggerFromEnv(dataDir)
	}
	setPackageLogger(logger)

	return &Engine{
		store:    opts.Store,
		registry: opts.Registry,
		resolver: opts.Resolver,
		cfg:      cfg,
		dataDir:  dataDir,
		lock:     filelock.New(filepath.Join(dataDir, "foreman.lock")),
		logger:   logger,
		workers:  workers,
		queue:    make(chan string, queueCapacity),
		events:   make(chan Event, eventBuffer),
	}, nil
}

// Start acquires the single-writer lock, migrates the store, re-queues
// interrupted tasks, and spawns the worker pool. The engine stops when
// ctx is cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return fmt.Errorf("engine already started")
	}
	e.started = true
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.mu.Unlock()

	if err := e.start(); err != nil {
		e.mu.Lock()
		e.started = false
		e.mu.Unlock()
		e.cancel()
		return err
	}
	return nil
}

func (e *Engine) start() error {
	if err := e.lock.Acquire(); err != nil {
		return err
	}

	if err := e.store.Migrate(); err != nil {
		e.lock.Release()
		return fmt.Errorf("migrate store: %w", err)
	}

	signals, err := NewSignalManager(e.dataDir)
	if err != nil {
		e.lock.Release()
		return fmt.Errorf("init signal manager: %w", err)
	}
	e.signals = signals

	if err := e.recoverInterrupted(); err != nil {
		e.signals.Close()
		e.signals = nil
		e.lock.Release()
		return err
	}

	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}

	log.Printf("[engine] started with %d workers, data dir %s", e.workers, e.dataDir)
	return nil
}

// recoverInterrupted re-queues tasks a previous process left unfinished.
// Pending tasks were never picked up; running tasks resume where the
// step records say they stopped.
func (e *Engine) recoverInterrupted() error {
	interrupted, err := e.store.ListInterrupted()
	if err != nil {
		return fmt.Errorf("list interrupted tasks: %w", err)
	}

	for i := range interrupted {
		t := &interrupted[i]
		if !e.enqueue(t.ID) {
			log.Printf("[engine] queue full, task %s stays pending", t.ID)
			continue
		}
		e.emit(Event{Type: EventTaskQueued, TaskID: t.ID, Message: "recovered at startup"})
	}

	if len(interrupted) > 0 {
		log.Printf("[engine] recovered %d interrupted tasks", len(interrupted))
		e.logger.Log("recovered %d interrupted tasks", len(interrupted))
	}
	return nil
}

// worker pulls task IDs off the queue until the engine stops.
func (e *Engine) worker(id int) {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case taskID, ok := <-e.queue:
			if !ok {
				return
			}
			debugLog("worker %d: picked up task %s", id, taskID)
			e.runTask(e.ctx, taskID)
			e.mu.Lock()
			e.active--
			e.mu.Unlock()
		}
	}
}

// enqueue hands a task to the worker pool. Returns false when the
// queue is full; the task stays pending in the store and is picked up
// by a later start.
func (e *Engine) enqueue(id string) bool {
	select {
	case e.queue <- id:
		e.mu.Lock()
		e.active++
		e.mu.Unlock()
		return true
	default:
		return false
	}
}

// Submit creates a task in pending state and hands it to the worker
// pool. The task is durable before Submit returns; if the engine is
// not running the task waits for a later run or resume.
func (e *Engine) Submit(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("task input is empty")
	}

	t := &models.Task{
		ID:        uuid.New().String(),
		Input:     input,
		Status:    models.TaskStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.CreateTask(t); err != nil {
		return "", fmt.Errorf("persist task: %w", err)
	}

	e.emit(Event{Type: EventTaskQueued, TaskID: t.ID, Message: truncateInput(input)})
	e.logger.Log("task %s: submitted: %s", t.ID, truncateInput(input))

	e.mu.Lock()
	running := e.started && !e.stopped
	e.mu.Unlock()
	if running {
		if !e.enqueue(t.ID) {
			log.Printf("[engine] queue full, task %s stays pending until resume", t.ID)
		}
	}

	return t.ID, nil
}

// GetTask returns the task with its steps in execution order.
func (e *Engine) GetTask(ctx context.Context, id string) (*models.Task, error) {
	t, err := e.store.GetTask(id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("task %s: %w", id, state.ErrNotFound)
	}
	steps, err := e.store.ListSteps(id)
	if err != nil {
		return nil, err
	}
	t.Steps = steps
	return t, nil
}

// ListTasks returns recent tasks, newest first.
func (e *Engine) ListTasks(ctx context.Context, limit, offset int) ([]models.Task, error) {
	return e.store.ListTasks(limit, offset)
}

// Transitions returns the task's audit trail in commit order.
func (e *Engine) Transitions(ctx context.Context, id string) ([]state.Transition, error) {
	return e.store.ListTransitions(id)
}

// Cancel requests cancellation of a task. The durable flag is set
// first, then the signal file for the running engine's fast path. The
// request is honored between steps; an in-flight attempt finishes or
// times out naturally.
func (e *Engine) Cancel(ctx context.Context, id string) error {
	t, err := e.store.GetTask(id)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("task %s: %w", id, state.ErrNotFound)
	}
	if t.Status.Terminal() {
		return fmt.Errorf("task %s already %s", id, t.Status)
	}

	if err := e.store.RequestCancel(id); err != nil {
		return fmt.Errorf("record cancel request: %w", err)
	}
	if e.signals != nil {
		if err := e.signals.SendCancel(id); err != nil {
			log.Printf("[engine] write cancel signal for %s: %v", id, err)
		}
	} else if err := WriteCancelSignal(e.dataDir, id); err != nil {
		log.Printf("[engine] write cancel signal for %s: %v", id, err)
	}

	e.logger.Log("task %s: cancel requested", id)
	return nil
}

// Wait blocks until the task reaches a terminal status or ctx is done.
// Returns the task in its latest observed state either way.
func (e *Engine) Wait(ctx context.Context, id string) (*models.Task, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		t, err := e.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		if t.Status.Terminal() {
			return t, nil
		}
		select {
		case <-ctx.Done():
			return t, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Drain blocks until the queue is empty and every picked-up task has
// finished. Used by resume to exit once recovered work is done.
func (e *Engine) Drain(ctx context.Context) error {
	e.mu.Lock()
	ectx := e.ctx
	e.mu.Unlock()
	if ectx == nil {
		return fmt.Errorf("engine not started")
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		e.mu.Lock()
		n := e.active
		e.mu.Unlock()
		if n == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ectx.Done():
			return fmt.Errorf("engine stopped with %d tasks unfinished", n)
		case <-ticker.C:
		}
	}
}

// Events returns a read-only channel of engine events.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Stop shuts the engine down: in-flight attempts are cancelled, workers
// drain, the events channel closes, and the lock is released. Queued
// tasks stay pending in the store for the next start.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()

	e.emit(Event{Type: EventEngineStopped})
	close(e.events)

	if e.signals != nil {
		e.signals.Close()
	}
	err := e.lock.Release()
	e.logger.Close()

	log.Printf("[engine] stopped")
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// emit sends an event without blocking. A full channel drops the event
// rather than stalling the runner.
func (e *Engine) emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case e.events <- ev:
	default:
	}
}

// cancelRequested consults the fast path first, then the durable flag.
func (e *Engine) cancelRequested(taskID string) bool {
	if e.signals != nil && e.signals.CancelRequested(taskID) {
		return true
	}
	requested, err := e.store.CancelRequested(taskID)
	if err != nil {
		log.Printf("[engine] read cancel flag for %s: %v", taskID, err)
		return false
	}
	return requested
}

// persist runs a store write, retrying briefly on transient failures so
// a transition is not dropped because of a momentary lock. Version
// conflicts and missing rows are never transient.
func (e *Engine) persist(fn func() error) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
		}
		err = fn()
		if err == nil || errors.Is(err, state.ErrVersionConflict) || errors.Is(err, state.ErrNotFound) {
			return err
		}
	}
	return err
}

// truncateInput shortens task input for logs and events.
func truncateInput(input string) string {
	const max = 120
	if len(input) <= max {
		return input
	}
	return input[:max] + "..."
}
