package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionForwardOnly(t *testing.T) {
	assert.True(t, TaskPending.CanTransition(TaskParsing))
	assert.True(t, TaskParsing.CanTransition(TaskChunking))
	assert.True(t, TaskChunking.CanTransition(TaskEmbedding))
	assert.True(t, TaskEmbedding.CanTransition(TaskExtracting))
	assert.True(t, TaskExtracting.CanTransition(TaskStoring))
	assert.True(t, TaskStoring.CanTransition(TaskCompleted))

	// Stage skips move forward too; redelivery after a crash may resume
	// from PENDING straight into a later stage.
	assert.True(t, TaskPending.CanTransition(TaskEmbedding))

	// Backward moves never happen.
	assert.False(t, TaskEmbedding.CanTransition(TaskParsing))
	assert.False(t, TaskCompleted.CanTransition(TaskStoring))
	assert.False(t, TaskParsing.CanTransition(TaskParsing))
}

func TestCanTransitionTerminalStates(t *testing.T) {
	// FAILED and REVOKED are reachable from any non-terminal state.
	for _, from := range []TaskState{TaskPending, TaskParsing, TaskChunking, TaskEmbedding, TaskExtracting, TaskStoring} {
		assert.True(t, from.CanTransition(TaskFailed), "from %s", from)
		assert.True(t, from.CanTransition(TaskRevoked), "from %s", from)
	}

	// Terminal states never transition again.
	for _, from := range []TaskState{TaskCompleted, TaskFailed, TaskRevoked} {
		for _, to := range []TaskState{TaskPending, TaskParsing, TaskCompleted, TaskFailed, TaskRevoked} {
			assert.False(t, from.CanTransition(to), "from %s to %s", from, to)
		}
	}
}

func TestExternalStateMapping(t *testing.T) {
	cases := map[TaskState]string{
		TaskPending:    "PENDING",
		TaskParsing:    "STARTED",
		TaskChunking:   "STARTED",
		TaskEmbedding:  "STARTED",
		TaskExtracting: "STARTED",
		TaskStoring:    "STARTED",
		TaskCompleted:  "SUCCESS",
		TaskFailed:     "FAILURE",
		TaskRevoked:    "REVOKED",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.External(), "state %s", state)
	}
}

func TestExternalStateRetrying(t *testing.T) {
	task := &Task{State: TaskEmbedding, Retrying: true}
	assert.Equal(t, "RETRY", task.ExternalState())

	// A terminal state wins over a stale retry flag.
	task = &Task{State: TaskFailed, Retrying: true}
	assert.Equal(t, "FAILURE", task.ExternalState())
}

func TestTerminal(t *testing.T) {
	assert.True(t, TaskCompleted.Terminal())
	assert.True(t, TaskFailed.Terminal())
	assert.True(t, TaskRevoked.Terminal())
	assert.False(t, TaskPending.Terminal())
	assert.False(t, TaskStoring.Terminal())
}
