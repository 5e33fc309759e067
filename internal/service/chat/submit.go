package chat

import (
	"context"
	"errors"
	"strings"

	"k8s.io/klog/v2"

	"github.com/zhouzirui/medrag/backend/internal/model/chat"
	"github.com/zhouzirui/medrag/backend/internal/service/events"
	"github.com/zhouzirui/medrag/backend/internal/service/qa"
)

const unavailableMessage = "Error: Unable to initialize QA chain. Vector store may be missing."

// Outcome is the result of one submission cycle.
type Outcome int

const (
	// OutcomeIgnored means the prompt was empty and nothing changed.
	OutcomeIgnored Outcome = iota
	// OutcomeAnswered means both the user and the assistant turn were stored.
	OutcomeAnswered
	// OutcomeFailed means only the user turn was stored.
	OutcomeFailed
)

// Orchestrator runs the submit cycle: store the question, ask the QA chain,
// store the answer.
type Orchestrator struct {
	store     *Service
	gateways  qa.Factory
	publisher events.Publisher
}

// NewOrchestrator wires the transcript store to a QA chain factory. A nil
// publisher disables turn events.
func NewOrchestrator(store *Service, gateways qa.Factory, publisher events.Publisher) *Orchestrator {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Orchestrator{
		store:     store,
		gateways:  gateways,
		publisher: publisher,
	}
}

// Transcript returns the current transcript of a session.
func (o *Orchestrator) Transcript(ctx context.Context, sessionID string) chat.Transcript {
	return o.store.GetOrInit(ctx, sessionID)
}

// Clear removes the transcript of a session, waiting for any submission in
// flight for the same session.
func (o *Orchestrator) Clear(ctx context.Context, sessionID string) {
	unlock := o.store.lockSession(sessionID)
	defer unlock()

	o.store.Clear(ctx, sessionID)
	klog.V(6).Infof("[chat] cleared transcript for session=%s", sessionID)
}

// Submit runs one submission cycle. A non-nil error means the user turn was
// stored but no answer was; the transcript is never rolled back.
func (o *Orchestrator) Submit(ctx context.Context, sessionID, prompt string) (Outcome, error) {
	if strings.TrimSpace(prompt) == "" {
		return OutcomeIgnored, nil
	}

	unlock := o.store.lockSession(sessionID)
	defer unlock()

	o.store.Append(ctx, sessionID, chat.UserTurn(prompt))

	event := events.TurnEvent{SessionID: sessionID, QueryLength: len(prompt)}

	answer, sources, err := o.ask(ctx, prompt)
	if err != nil {
		event.Outcome = events.OutcomeFailed
		if errors.Is(err, qa.ErrChainUnavailable) {
			event.Outcome = events.OutcomeUnavailable
		}
		event.Error = err.Error()
		o.publisher.Publish(ctx, event)

		klog.Warningf("[chat] submission failed for session=%s: %v", sessionID, err)
		return OutcomeFailed, err
	}

	o.store.Append(ctx, sessionID, chat.AssistantTurn(answer))

	event.Outcome = events.OutcomeAnswered
	event.AnswerLength = len(answer)
	event.Sources = sources
	o.publisher.Publish(ctx, event)

	klog.V(6).Infof("[chat] answered session=%s, length=%d", sessionID, len(answer))
	return OutcomeAnswered, nil
}

func (o *Orchestrator) ask(ctx context.Context, prompt string) (string, int, error) {
	gateway, err := o.gateways.Gateway(ctx)
	if err != nil {
		return "", 0, err
	}
	if gateway == nil {
		return "", 0, qa.ErrChainUnavailable
	}

	response, err := gateway.Answer(ctx, prompt)
	if err != nil {
		return "", 0, err
	}

	sources := 0
	if response != nil {
		sources = len(response.Sources)
	}
	return response.Text(), sources, nil
}

// UserMessage converts a submission error into the banner shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, qa.ErrChainUnavailable) {
		return unavailableMessage
	}
	return "Error : " + err.Error()
}
