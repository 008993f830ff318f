package engine

import (
	"context"
	"log/slog"

	"github.com/meltforce/repflow/internal/remote"
	"github.com/meltforce/repflow/pkg/schema"
)

// HandleRemoteCommand maps a textual remote command to the corresponding
// engine method and returns the acknowledgment for it.
//
// Redelivery of an already-handled command id is an idempotent no-op: the
// cached ack is returned and no state mutates. Unknown command tokens and
// commands inapplicable to the current phase are benign: they change no
// state, bump no version, and still ack so the remote can settle its
// pending command.
func (e *Engine) HandleRemoteCommand(command, commandID string) schema.CommandAck {
	e.mu.Lock()
	defer e.mu.Unlock()

	if commandID != "" {
		if ack, ok := e.acks[commandID]; ok {
			return ack
		}
	}

	ack := schema.CommandAck{CommandID: commandID, Status: schema.AckSuccess}
	e.lastAck = &ack

	before := e.version
	switch command {
	case schema.CommandPause:
		e.pauseLocked()
	case schema.CommandResume:
		e.resumeLocked()
	case schema.CommandNextStep:
		e.nextStepLocked()
	case schema.CommandPrevStep:
		e.previousStepLocked()
	case schema.CommandSkipRest:
		e.skipRestLocked()
	case schema.CommandEnd:
		e.endLocked(schema.EndUserEnded)
	default:
		e.logger.Debug("ignoring unknown remote command",
			slog.String("command", command),
			slog.String("command_id", commandID))
	}

	if commandID != "" {
		e.acks[commandID] = ack
	}

	// Acks travel as their own events, correlated by command id rather than
	// state version, so the remote sees completion of a no-op command that
	// produced no new snapshot.
	_ = e.hub.Publish(context.Background(), remote.StreamEvent{
		SessionID: e.sessionID,
		EventType: remote.EventCommandAck,
		Ack:       &ack,
	})

	e.logger.Debug("remote command handled",
		slog.String("command", command),
		slog.String("command_id", commandID),
		slog.Bool("mutated", e.version > before))
	return ack
}
