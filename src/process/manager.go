package process

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"screen-translate/src/messages"
	"screen-translate/src/router"
)

// Process is a long-running service of the resident app. Run blocks until ctx is
// cancelled or the service finishes.
type Process interface {
	Name() string
	Run(ctx context.Context) error
}

// Func adapts a function to Process.
func Func(name string, run func(ctx context.Context) error) Process {
	return funcProcess{name: name, run: run}
}

type funcProcess struct {
	name string
	run  func(ctx context.Context) error
}

func (f funcProcess) Name() string                  { return f.name }
func (f funcProcess) Run(ctx context.Context) error { return f.run(ctx) }

// ProcessState represents the current state of a process
type ProcessState int

const (
	StateStopped ProcessState = iota
	StateRunning
	StateStopping
	StateCrashed
)

func (s ProcessState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// MaxRestarts bounds RestartCrashed per process.
const MaxRestarts = 5

// ProcessInfo holds information about a managed process
type ProcessInfo struct {
	Process    Process
	State      ProcessState
	StartTime  time.Time
	CrashCount int
	LastError  error

	cancel context.CancelFunc
	done   chan struct{}
}

// Manager supervises the resident app's services and broadcasts DIENOW on shutdown.
type Manager struct {
	processes map[string]*ProcessInfo
	router    *router.Router
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc

	// StopTimeout bounds how long StopAll waits for each process.
	StopTimeout time.Duration
}

// NewManager creates a manager that shares r with its processes.
func NewManager(r *router.Router) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		processes:   make(map[string]*ProcessInfo),
		router:      r,
		ctx:         ctx,
		cancel:      cancel,
		StopTimeout: 2 * time.Second,
	}
}

// Register adds a process to the manager
func (m *Manager) Register(process Process) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := process.Name()
	if _, exists := m.processes[name]; exists {
		return fmt.Errorf("process %s already registered", name)
	}
	m.processes[name] = &ProcessInfo{Process: process, State: StateStopped}

	log.Printf("Process %s registered", name)
	return nil
}

// Start runs a registered process on its own goroutine.
func (m *Manager) Start(name string) error {
	m.mu.Lock()
	info, exists := m.processes[name]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("process %s not found", name)
	}
	if info.State == StateRunning || info.State == StateStopping {
		m.mu.Unlock()
		return fmt.Errorf("process %s already running", name)
	}

	ctx, cancel := context.WithCancel(m.ctx)
	done := make(chan struct{})
	info.State = StateRunning
	info.StartTime = time.Now()
	info.cancel = cancel
	info.done = done
	m.mu.Unlock()

	go func() {
		defer close(done)
		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			log.Printf("Starting process %s", name)
			err = info.Process.Run(ctx)
		}()
		m.finished(name, ctx, err)
	}()
	return nil
}

// finished records how a process ended. Exits caused by cancellation are clean.
func (m *Manager) finished(name string, ctx context.Context, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := m.processes[name]
	if err != nil && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
		info.State = StateCrashed
		info.LastError = err
		info.CrashCount++
		log.Printf("Process %s crashed: %v (crash count: %d)", name, err, info.CrashCount)
		return
	}
	info.State = StateStopped
	log.Printf("Process %s stopped", name)
}

// StartAll starts every registered process in name order.
func (m *Manager) StartAll() error {
	for _, name := range m.names() {
		if err := m.Start(name); err != nil {
			return fmt.Errorf("failed to start process %s: %w", name, err)
		}
	}
	return nil
}

// Done is closed when the named process's current run returns.
func (m *Manager) Done(name string) <-chan struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if info, ok := m.processes[name]; ok && info.done != nil {
		return info.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Stop cancels one process and waits up to StopTimeout for it to return.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	info, exists := m.processes[name]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("process %s not found", name)
	}
	if info.State != StateRunning {
		m.mu.Unlock()
		return nil
	}
	info.State = StateStopping
	cancel, done := info.cancel, info.done
	m.mu.Unlock()

	log.Printf("Stopping process %s", name)
	cancel()

	select {
	case <-done:
		return nil
	case <-time.After(m.StopTimeout):
		return fmt.Errorf("process %s did not stop within %s", name, m.StopTimeout)
	}
}

// StopAll broadcasts DIENOW, then stops every process.
func (m *Manager) StopAll() {
	log.Printf("Stopping all processes...")

	if m.router != nil {
		err := m.router.Send(messages.MessageEnvelope{
			From:    messages.EndpointMain,
			To:      "*",
			Message: messages.DIENOW{},
		})
		if err != nil {
			log.Printf("DIENOW broadcast failed: %v", err)
		}
	}

	for _, name := range m.names() {
		if err := m.Stop(name); err != nil {
			log.Printf("Error stopping process %s: %v", name, err)
		}
	}
	m.cancel()

	log.Printf("All processes stopped")
}

// GetRouter returns the message router
func (m *Manager) GetRouter() *router.Router {
	return m.router
}

// GetStatus returns the status of all processes
func (m *Manager) GetStatus() map[string]ProcessState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := make(map[string]ProcessState)
	for name, info := range m.processes {
		status[name] = info.State
	}
	return status
}

// RestartCrashed restarts crashed processes that have not used up MaxRestarts.
func (m *Manager) RestartCrashed() {
	m.mu.RLock()
	var crashed []string
	for name, info := range m.processes {
		if info.State == StateCrashed && info.CrashCount < MaxRestarts {
			crashed = append(crashed, name)
		}
	}
	m.mu.RUnlock()
	sort.Strings(crashed)

	for _, name := range crashed {
		log.Printf("Attempting to restart crashed process %s", name)
		if err := m.Start(name); err != nil {
			log.Printf("Failed to restart process %s: %v", name, err)
		}
	}
}

func (m *Manager) names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.processes))
	for name := range m.processes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
