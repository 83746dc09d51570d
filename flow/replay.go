package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/agentflow-go/flow/emit"
	"github.com/dshills/agentflow-go/flow/store"
)

// RunTranscript is the replayable record of one run, reconstructed from
// a persisted store. The event sequence is totally ordered; stepping
// through it reproduces what the run did and why.
type RunTranscript struct {
	// RunID identifies the run.
	RunID string

	// Events is the full ordered event sequence.
	Events []emit.Event

	// FinalState is the last persisted state snapshot.
	FinalState map[string]any

	// Turns is the turn number of the last persisted snapshot.
	Turns int
}

// Transcript loads a run's transcript from a store.
//
// Returns store.ErrNotFound (wrapped) when the run has no persisted
// events. A run that never persisted a state snapshot (it failed before
// its first turn completed) still yields a transcript with a nil
// FinalState.
func Transcript(ctx context.Context, st store.Store, runID string) (RunTranscript, error) {
	events, err := st.Events(ctx, runID)
	if err != nil {
		return RunTranscript{}, fmt.Errorf("load events for run %q: %w", runID, err)
	}

	transcript := RunTranscript{RunID: runID, Events: events}

	state, turn, err := st.LoadLatest(ctx, runID)
	switch {
	case err == nil:
		transcript.FinalState = state
		transcript.Turns = turn
	case errors.Is(err, store.ErrNotFound):
		// No snapshot persisted; events alone still tell the story.
	default:
		return RunTranscript{}, fmt.Errorf("load state for run %q: %w", runID, err)
	}

	return transcript, nil
}
