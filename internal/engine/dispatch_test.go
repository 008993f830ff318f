package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meltforce/repflow/internal/remote"
	"github.com/meltforce/repflow/pkg/schema"
)

func TestHandleRemoteCommand_PauseResume(t *testing.T) {
	te := newTestEngine(t)
	require.NoError(t, te.eng.Start(simpleWorkout()))

	ack := te.eng.HandleRemoteCommand(schema.CommandPause, "cmd-1")
	assert.Equal(t, "cmd-1", ack.CommandID)
	assert.Equal(t, schema.AckSuccess, ack.Status)
	assert.Equal(t, schema.PhasePaused, te.eng.Phase())

	te.eng.HandleRemoteCommand(schema.CommandResume, "cmd-2")
	assert.Equal(t, schema.PhaseRunning, te.eng.Phase())
}

func TestHandleRemoteCommand_DuplicateIDIsIdempotent(t *testing.T) {
	te := newTestEngine(t)
	require.NoError(t, te.eng.Start(simpleWorkout()))

	first := te.eng.HandleRemoteCommand(schema.CommandNextStep, "cmd-1")
	require.Equal(t, schema.PhaseResting, te.eng.Phase())
	v := te.eng.StateVersion()

	// Redelivery: same ack back, no state change, no version bump.
	second := te.eng.HandleRemoteCommand(schema.CommandNextStep, "cmd-1")
	assert.Equal(t, first, second)
	assert.Equal(t, v, te.eng.StateVersion())
	assert.Equal(t, schema.PhaseResting, te.eng.Phase())
}

func TestHandleRemoteCommand_EmptyIDNeverCached(t *testing.T) {
	te := newTestEngine(t)
	require.NoError(t, te.eng.Start(simpleWorkout()))

	te.eng.HandleRemoteCommand(schema.CommandPause, "")
	require.Equal(t, schema.PhasePaused, te.eng.Phase())
	te.eng.HandleRemoteCommand(schema.CommandResume, "")
	// A second uncorrelated command must execute, not replay a cached ack.
	assert.Equal(t, schema.PhaseRunning, te.eng.Phase())
}

func TestHandleRemoteCommand_UnknownTokenIsBenign(t *testing.T) {
	te := newTestEngine(t)
	require.NoError(t, te.eng.Start(simpleWorkout()))
	v := te.eng.StateVersion()

	ack := te.eng.HandleRemoteCommand("JUMPING_JACKS", "cmd-1")
	assert.Equal(t, schema.AckSuccess, ack.Status)
	assert.Equal(t, v, te.eng.StateVersion())
	assert.Equal(t, schema.PhaseRunning, te.eng.Phase())
}

func TestHandleRemoteCommand_InapplicableCommandStillAcks(t *testing.T) {
	te := newTestEngine(t)
	require.NoError(t, te.eng.Start(simpleWorkout()))
	v := te.eng.StateVersion()

	// SKIP_REST while running: no mutation, but the remote still gets its ack
	// event so the pending command can settle.
	ack := te.eng.HandleRemoteCommand(schema.CommandSkipRest, "cmd-9")
	assert.Equal(t, schema.AckSuccess, ack.Status)
	assert.Equal(t, v, te.eng.StateVersion())

	acks := te.hub.ofType(remote.EventCommandAck)
	require.NotEmpty(t, acks)
	require.NotNil(t, acks[len(acks)-1].Ack)
	assert.Equal(t, "cmd-9", acks[len(acks)-1].Ack.CommandID)
}

func TestHandleRemoteCommand_AckEmbeddedInSubsequentSnapshots(t *testing.T) {
	te := newTestEngine(t)
	require.NoError(t, te.eng.Start(simpleWorkout()))

	te.eng.HandleRemoteCommand(schema.CommandPause, "cmd-7")

	snap := te.eng.Snapshot()
	require.NotNil(t, snap.LastCommandAck)
	assert.Equal(t, "cmd-7", snap.LastCommandAck.CommandID)
}

func TestHandleRemoteCommand_End(t *testing.T) {
	te := newTestEngine(t)
	require.NoError(t, te.eng.Start(simpleWorkout()))

	te.eng.HandleRemoteCommand(schema.CommandEnd, "cmd-1")
	assert.Equal(t, schema.PhaseEnded, te.eng.Phase())

	summary := te.sink.last()
	require.NotNil(t, summary)
	assert.Equal(t, schema.EndUserEnded, summary.Reason)
}

func TestHandleRemoteCommand_FullRemoteDrive(t *testing.T) {
	te := newTestEngine(t)
	require.NoError(t, te.eng.Start(simpleWorkout()))

	cmds := []string{
		schema.CommandNextStep, // warmup -> manual rest
		schema.CommandSkipRest, // -> set 1
		schema.CommandNextStep, // -> timed rest
		schema.CommandSkipRest, // -> set 2
		schema.CommandNextStep, // -> cooldown (no rest after last set)
		schema.CommandNextStep, // cooldown done -> ended
	}
	for i, cmd := range cmds {
		ack := te.eng.HandleRemoteCommand(cmd, "")
		assert.Equal(t, schema.AckSuccess, ack.Status, "command %d (%s)", i, cmd)
	}

	assert.Equal(t, schema.PhaseEnded, te.eng.Phase())
	summary := te.sink.last()
	require.NotNil(t, summary)
	assert.Equal(t, schema.EndCompleted, summary.Reason)
}
