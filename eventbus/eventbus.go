// Package eventbus bridges agentcore run events onto a watermill pub/sub
// router so UIs and telemetry can subscribe by topic without touching
// the engine. Delivery stays best-effort: publishing failures are logged
// and dropped, never surfaced to the run.
package eventbus

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/adelie-ai/adelie/agentcore"
)

// Router wraps a watermill in-process pub/sub and message router.
type Router struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	router     *message.Router
}

// NewRouter creates an in-process router backed by a gochannel pub/sub.
func NewRouter() (*Router, error) {
	logger := watermill.NopLogger{}
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, logger)

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "watermill router")
	}

	return &Router{
		Publisher:  pubsub,
		Subscriber: pubsub,
		router:     router,
	}, nil
}

// AddHandler subscribes a handler function to a topic.
func (r *Router) AddHandler(name, topic string, f func(msg *message.Message) error) {
	r.router.AddNoPublisherHandler(name, topic, r.Subscriber, f)
}

// Run blocks running the router until ctx is cancelled.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running closes when the router is ready to deliver.
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

// Close shuts down the publisher and the router.
func (r *Router) Close() error {
	if err := r.Publisher.Close(); err != nil {
		log.Error().Err(err).Msg("eventbus: close publisher")
	}
	return r.router.Close()
}

// Publisher adapts a watermill publisher to the engine's Observer
// interface. Events are marshalled to JSON and published to the
// configured topic.
//
// Watermill's gochannel Publish delivers synchronously and waits for
// subscriber acks, so a wedged handler would stall the run. Publisher
// therefore hands events to a delivery goroutine over a buffered
// channel; when the buffer is full the event is dropped, never queued
// against the engine.
type Publisher struct {
	pub     message.Publisher
	topic   string
	ch      chan agentcore.Event
	dropped atomic.Int64
	mu      sync.Mutex
	closed  bool
}

// NewPublisher creates an Observer that publishes to topic. Call Close
// when the run is over to stop the delivery goroutine.
func NewPublisher(pub message.Publisher, topic string) *Publisher {
	p := &Publisher{
		pub:   pub,
		topic: topic,
		ch:    make(chan agentcore.Event, 256),
	}
	go p.deliver()
	return p
}

// Publish implements agentcore.Observer. It never blocks the engine:
// events published while the buffer is full or after Close are dropped.
func (p *Publisher) Publish(ev agentcore.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.ch <- ev:
	default:
		p.dropped.Add(1)
	}
}

// Dropped returns the number of events discarded because the buffer was
// full.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

// Close stops accepting events. Buffered events still drain; Close does
// not wait for them.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.ch)
}

// deliver publishes queued events; marshal or publish failures are
// logged and the event is dropped.
func (p *Publisher) deliver() {
	for ev := range p.ch {
		payload, err := json.Marshal(ev)
		if err != nil {
			log.Error().Err(err).Str("kind", string(ev.Kind)).Msg("eventbus: marshal event")
			continue
		}
		msg := message.NewMessage(watermill.NewUUID(), payload)
		if err := p.pub.Publish(p.topic, msg); err != nil {
			log.Warn().Err(err).Str("topic", p.topic).Msg("eventbus: dropping event")
		}
	}
}
