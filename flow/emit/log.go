package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter implements Emitter by writing structured output to a writer.
//
// Supports two output modes:
//   - Text mode (default): human-readable key=value lines
//   - JSON mode: machine-readable JSON, one event per line (JSONL)
//
// Example text output:
//
//	[agent_activated] runID=run-001 turn=1 agent=context
//
// Example JSON output:
//
//	{"runID":"run-001","turn":1,"agent":"context","kind":"agent_activated","msg":"","meta":null}
//
// Usage:
//
//	// Text output to stdout
//	emitter := emit.NewLogEmitter(os.Stdout, false)
//
//	// JSON output to file
//	f, _ := os.Create("events.jsonl")
//	defer f.Close()
//	emitter := emit.NewLogEmitter(f, true)
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a new LogEmitter.
//
// Parameters:
//   - writer: where to write output (nil defaults to os.Stdout)
//   - jsonMode: if true, emit JSONL; if false, emit text
//
// Returns a LogEmitter that writes one line per event to the writer.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{
		writer:   writer,
		jsonMode: jsonMode,
	}
}

// Emit writes an event to the configured writer.
func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		RunID string         `json:"runID"`
		Turn  int            `json:"turn"`
		Agent string         `json:"agent"`
		Kind  string         `json:"kind"`
		Msg   string         `json:"msg"`
		Meta  map[string]any `json:"meta"`
	}{
		RunID: event.RunID,
		Turn:  event.Turn,
		Agent: event.Agent,
		Kind:  event.Kind,
		Msg:   event.Msg,
		Meta:  event.Meta,
	})
	if err != nil {
		fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	fmt.Fprintf(l.writer, "[%s] runID=%s turn=%d agent=%s",
		event.Kind, event.RunID, event.Turn, event.Agent)

	if event.Msg != "" {
		fmt.Fprintf(l.writer, " msg=%q", event.Msg)
	}

	if len(event.Meta) > 0 {
		metaJSON, err := json.Marshal(event.Meta)
		if err == nil {
			fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		} else {
			fmt.Fprintf(l.writer, " meta=%v", event.Meta)
		}
	}

	fmt.Fprint(l.writer, "\n")
}
