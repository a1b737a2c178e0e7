package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"screen-translate/src/fonts"
	"screen-translate/src/messages"
	"screen-translate/src/router"
)

var ErrChannelNotAllowed = errors.New("channel not allowed")

// Outbound names a surface may send to the host.
var outboundAllowed = map[string]bool{
	messages.TypeStartCapture:       true,
	messages.TypeCaptureRegion:      true,
	messages.TypeCloseCaptureWindow: true,
}

// Inbound names the host may deliver to surfaces.
var inboundAllowed = map[string]bool{
	messages.TypeCaptureComplete: true,
}

// Handler receives an inbound message on the dispatcher goroutine.
type Handler func(messages.Message)

// Bridge is the only path between the UI surfaces and the host. Everything it
// carries is checked against fixed allow-lists.
type Bridge struct {
	router  *router.Router
	host    <-chan messages.MessageEnvelope
	results <-chan messages.MessageEnvelope

	mu     sync.Mutex
	subs   map[string]map[uint64]Handler
	nextID uint64
}

// New registers the host and results endpoints on r.
func New(r *router.Router) (*Bridge, error) {
	host, err := r.Register(messages.EndpointHost, 16)
	if err != nil {
		return nil, err
	}
	results, err := r.Register(messages.EndpointResults, 16)
	if err != nil {
		r.Unregister(messages.EndpointHost)
		return nil, err
	}
	return &Bridge{
		router:  r,
		host:    host,
		results: results,
		subs:    make(map[string]map[uint64]Handler),
	}, nil
}

// HostInbox is consumed by the orchestrator.
func (b *Bridge) HostInbox() <-chan messages.MessageEnvelope { return b.host }

// Emit delivers an inbound message to subscribed surfaces.
func (b *Bridge) Emit(msg messages.Message) error {
	if msg == nil || !inboundAllowed[msg.Type()] {
		name := "<nil>"
		if msg != nil {
			name = msg.Type()
		}
		log.Printf("Bridge: refusing to emit %s", name)
		return fmt.Errorf("%w: %s", ErrChannelNotAllowed, name)
	}
	return b.router.Send(messages.MessageEnvelope{
		From:    messages.EndpointHost,
		To:      messages.EndpointResults,
		Message: msg,
	})
}

// Run dispatches inbound messages to handlers until ctx ends or the router shuts down.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-b.results:
			if !ok {
				return
			}
			b.dispatch(env.Message)
		}
	}
}

func (b *Bridge) dispatch(msg messages.Message) {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.subs[msg.Type()]))
	for _, h := range b.subs[msg.Type()] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
}

// Surface returns the handle a UI surface uses to talk to the host.
func (b *Bridge) Surface(name string) *Surface {
	return &Surface{bridge: b, name: name}
}

// Surface is the restricted API exposed to one UI surface.
type Surface struct {
	bridge *Bridge
	name   string
}

// Send forwards msg to the host. Names outside the outbound allow-list are dropped silently.
func (s *Surface) Send(msg messages.Message) {
	if msg == nil || !outboundAllowed[msg.Type()] {
		if msg != nil {
			log.Printf("Bridge: %s dropped disallowed send %q", s.name, msg.Type())
		}
		return
	}
	if err := s.bridge.router.SendToHost(s.name, msg); err != nil {
		log.Printf("Bridge: %s failed to send %s: %v", s.name, msg.Type(), err)
	}
}

// On subscribes fn to an inbound channel. The returned disposer removes only this
// registration and may be called any number of times. Disallowed channels get a
// no-op disposer and never deliver.
func (s *Surface) On(channel string, fn Handler) (dispose func()) {
	if !inboundAllowed[channel] || fn == nil {
		log.Printf("Bridge: %s subscription to %q ignored", s.name, channel)
		return func() {}
	}

	b := s.bridge
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[uint64]Handler)
	}
	b.subs[channel][id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[channel], id)
			b.mu.Unlock()
		})
	}
}

// GetSystemFonts asks the host for installed font families. Any failure yields an
// empty list.
func (s *Surface) GetSystemFonts(ctx context.Context) []string {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}

	reply := make(chan []string, 1)
	err := s.bridge.router.SendToHost(s.name, messages.GetSystemFonts{Reply: reply})
	if err != nil {
		log.Printf("Bridge: get-system-fonts failed: %v", err)
		return []string{}
	}

	select {
	case names := <-reply:
		return fonts.Normalize(names)
	case <-ctx.Done():
		log.Printf("Bridge: get-system-fonts timed out: %v", ctx.Err())
		return []string{}
	}
}

// AnswerFonts replies to a get-system-fonts request. list runs on the caller's goroutine.
func AnswerFonts(req messages.GetSystemFonts, list func() ([]string, error)) {
	names, err := list()
	if err != nil {
		log.Printf("Bridge: font enumeration failed: %v", err)
		names = nil
	}
	select {
	case req.Reply <- names:
	default:
	}
}
