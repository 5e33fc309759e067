package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"k8s.io/klog/v2"
)

// Outcome values carried by TurnEvent.
const (
	OutcomeAnswered    = "answered"
	OutcomeUnavailable = "unavailable"
	OutcomeFailed      = "failed"
)

// TurnEvent describes one completed submission cycle.
type TurnEvent struct {
	SessionID    string `json:"session_id"`
	Outcome      string `json:"outcome"`
	QueryLength  int    `json:"query_length"`
	AnswerLength int    `json:"answer_length,omitempty"`
	Sources      int    `json:"sources,omitempty"`
	Error        string `json:"error,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// Publisher delivers turn events. Implementations must not block the
// request on delivery failures.
type Publisher interface {
	Publish(ctx context.Context, event TurnEvent)
}

// Noop discards every event.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, TurnEvent) {}

// NatsPublisher publishes turn events as JSON on a single subject.
type NatsPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNatsPublisher connects to NATS, retrying in the background when the
// server is not reachable yet.
func NewNatsPublisher(url, token, subject string) (*NatsPublisher, error) {
	opts := []nats.Option{
		nats.Name("medical-rag-chatbot"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				klog.Warningf("[events] nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			klog.V(6).Info("[events] nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &NatsPublisher{conn: nc, subject: subject}, nil
}

// Publish implements Publisher.
func (p *NatsPublisher) Publish(_ context.Context, event TurnEvent) {
	payload, err := Encode(event)
	if err != nil {
		klog.Errorf("[events] failed to encode turn event: %v", err)
		return
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		klog.Warningf("[events] failed to publish to %s: %v", p.subject, err)
	}
}

// Close flushes pending messages and closes the connection.
func (p *NatsPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// Encode serialises an event, stamping it when no timestamp is set.
func Encode(event TurnEvent) ([]byte, error) {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal turn event: %w", err)
	}
	return payload, nil
}
