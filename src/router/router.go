package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"screen-translate/src/messages"
)

var ErrShuttingDown = errors.New("router is shutting down")

// endpoint holds the inbox of one registered surface or service
type endpoint struct {
	inbox  chan messages.MessageEnvelope
	name   string
	active bool
}

// Router moves envelopes between in-process endpoints (host, results surface, overlay, services)
type Router struct {
	endpoints   map[string]*endpoint
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	sendTimeout time.Duration
	logMessages bool
}

// NewRouter creates a new message router
func NewRouter() *Router {
	ctx, cancel := context.WithCancel(context.Background())
	return &Router{
		endpoints:   make(map[string]*endpoint),
		ctx:         ctx,
		cancel:      cancel,
		sendTimeout: 5 * time.Second,
		logMessages: true,
	}
}

// Register creates an inbox for name. Registering the same name twice is an error.
func (r *Router) Register(name string, bufferSize int) (<-chan messages.MessageEnvelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx.Err() != nil {
		return nil, ErrShuttingDown
	}
	if _, exists := r.endpoints[name]; exists {
		return nil, fmt.Errorf("endpoint %s already registered", name)
	}

	ch := make(chan messages.MessageEnvelope, bufferSize)
	r.endpoints[name] = &endpoint{inbox: ch, name: name, active: true}

	log.Printf("Router: Registered endpoint %s with buffer size %d", name, bufferSize)
	return ch, nil
}

// Unregister closes and removes an endpoint's inbox
func (r *Router) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ep, exists := r.endpoints[name]; exists {
		ep.active = false
		close(ep.inbox)
		delete(r.endpoints, name)
		log.Printf("Router: Unregistered endpoint %s", name)
	}
}

// Send delivers an envelope to one endpoint, or to all others when To is "*"
func (r *Router) Send(envelope messages.MessageEnvelope) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if envelope.Message == nil {
		return fmt.Errorf("nil message from %s", envelope.From)
	}
	if r.logMessages {
		log.Printf("Router: %s -> %s: %s", envelope.From, envelope.To, envelope.Message.Type())
	}

	if envelope.To == "*" {
		return r.broadcast(envelope)
	}

	ep, exists := r.endpoints[envelope.To]
	if !exists {
		return fmt.Errorf("endpoint %s not found", envelope.To)
	}
	if !ep.active {
		return fmt.Errorf("endpoint %s is not active", envelope.To)
	}

	timer := time.NewTimer(r.sendTimeout)
	defer timer.Stop()
	select {
	case ep.inbox <- envelope:
		return nil
	case <-timer.C:
		return fmt.Errorf("timeout sending message to endpoint %s", envelope.To)
	case <-r.ctx.Done():
		return ErrShuttingDown
	}
}

// SendToHost is a convenience method for surfaces talking to the host
func (r *Router) SendToHost(from string, message messages.Message) error {
	return r.Send(messages.MessageEnvelope{
		From:    from,
		To:      messages.EndpointHost,
		Message: message,
	})
}

func (r *Router) broadcast(envelope messages.MessageEnvelope) error {
	var failed []string

	for name, ep := range r.endpoints {
		if !ep.active || name == envelope.From {
			continue
		}

		envCopy := envelope
		envCopy.To = name

		select {
		case ep.inbox <- envCopy:
		case <-time.After(time.Second):
			failed = append(failed, fmt.Sprintf("timeout sending to %s", name))
		case <-r.ctx.Done():
			return ErrShuttingDown
		}
	}

	if len(failed) > 0 {
		log.Printf("Router: Broadcast errors: %v", failed)
	}
	return nil
}

// Endpoints returns the names of active endpoints
func (r *Router) Endpoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []string
	for name, ep := range r.endpoints {
		if ep.active {
			active = append(active, name)
		}
	}
	return active
}

// SetMessageLogging enables or disables per-message logging
func (r *Router) SetMessageLogging(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logMessages = enabled
}

// SetSendTimeout overrides how long Send waits on a full inbox
func (r *Router) SetSendTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sendTimeout = d
}

// Shutdown closes every inbox. Later Sends fail.
func (r *Router) Shutdown() {
	log.Printf("Router: Shutting down...")

	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	for name, ep := range r.endpoints {
		if ep.active {
			ep.active = false
			close(ep.inbox)
			log.Printf("Router: Closed inbox for endpoint %s", name)
		}
	}
	r.endpoints = make(map[string]*endpoint)

	log.Printf("Router: Shutdown complete")
}

// WaitForMessage waits for a specific message type on an inbox
func WaitForMessage(ch <-chan messages.MessageEnvelope, messageType string, timeout time.Duration) (messages.MessageEnvelope, error) {
	deadline := time.After(timeout)

	for {
		select {
		case envelope, ok := <-ch:
			if !ok {
				return messages.MessageEnvelope{}, ErrShuttingDown
			}
			if envelope.Message.Type() == messageType {
				return envelope, nil
			}
		case <-deadline:
			return messages.MessageEnvelope{}, fmt.Errorf("timeout waiting for message type %s", messageType)
		}
	}
}

// DrainChannel discards everything queued on an inbox
func DrainChannel(ch <-chan messages.MessageEnvelope) int {
	count := 0
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return count
			}
			count++
		default:
			return count
		}
	}
}
