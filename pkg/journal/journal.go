package journal

import (
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/kir-gadjello/ant-router/pkg/utils"
)

// DefaultPath is the journal's default location, relative to the process's
// working directory.
const DefaultPath = "logs/.log.jsonl"

// recordedLogsPath is fixed, matching original_source/src/logging.rs's
// record_interaction (no configuration knob for this filename).
const recordedLogsPath = "recorded_logs.jsonl"

// TraceEventKind names one of §4.13's four pipeline-boundary event kinds.
type TraceEventKind string

const (
	FrontendRequest  TraceEventKind = "FrontendRequest"
	UpstreamRequest  TraceEventKind = "UpstreamRequest"
	UpstreamResponse TraceEventKind = "UpstreamResponse"
	FrontendResponse TraceEventKind = "FrontendResponse"
)

// Journal writes the request journal, the optional recorded-interaction
// log, and the optional pipeline trace file. All writes are best-effort:
// failures are logged as warnings and never returned to the HTTP handler,
// per §4.13/§7.
type Journal struct {
	path      string
	version   string
	record    bool
	traceFile string
}

// New builds a Journal. path defaults to DefaultPath when empty. traceFile
// empty disables tracing.
func New(path, traceFile string, record bool, version string) *Journal {
	if path == "" {
		path = DefaultPath
	}
	return &Journal{path: path, version: version, record: record, traceFile: traceFile}
}

// logEntry is the journal's per-line shape:
// {"_metadata":{...}, ...<flattened request fields>}.
type logEntry struct {
	Metadata logMetadata `json:"_metadata"`
	Request  any         `json:"-"`
}

type logMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// MarshalJSON flattens Request's fields alongside _metadata, matching
// logging.rs's #[serde(flatten)].
func (e logEntry) MarshalJSON() ([]byte, error) {
	reqJSON, err := json.Marshal(e.Request)
	if err != nil {
		return nil, err
	}
	var reqFields map[string]json.RawMessage
	if err := json.Unmarshal(reqJSON, &reqFields); err != nil {
		return nil, err
	}
	out := map[string]json.RawMessage{}
	for k, v := range reqFields {
		out[k] = v
	}
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return nil, err
	}
	out["_metadata"] = meta
	return json.Marshal(out)
}

// LogRequest appends one accepted request to the journal.
func (j *Journal) LogRequest(request any) {
	entry := logEntry{
		Metadata: logMetadata{Timestamp: time.Now().UTC(), Version: j.version},
		Request:  request,
	}
	j.appendLine(j.path, entry)
}

type interactionEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Request   any       `json:"request"`
	Response  any       `json:"response"`
}

// RecordInteraction appends a completed request/response pair to
// recorded_logs.jsonl when recording is enabled. response is either the
// Anthropic response or the final assembled stream events, per §4.13.
func (j *Journal) RecordInteraction(request, response any) {
	if !j.record {
		return
	}
	entry := interactionEntry{Timestamp: time.Now().UTC(), Request: request, Response: response}
	j.appendLine(recordedLogsPath, entry)
}

type traceRecord struct {
	Event TraceEventKind `json:"event"`
	Data  traceData      `json:"data"`
}

type traceData struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Trace appends one pipeline-boundary event, tagged with a per-request
// correlation id, when a trace file is configured.
func (j *Journal) Trace(kind TraceEventKind, correlationID string, payload any) {
	if j.traceFile == "" {
		return
	}
	rec := traceRecord{
		Event: kind,
		Data:  traceData{ID: correlationID, Timestamp: time.Now().UTC(), Payload: payload},
	}
	j.appendLine(j.traceFile, rec)
}

// appendLine opens path in append mode, writes one JSON line, and closes
// it - per §5's "file handles for logs/traces are opened per write". Any
// failure is logged and swallowed.
func (j *Journal) appendLine(path string, v any) {
	line, err := json.Marshal(v)
	if err != nil {
		slog.Warn("journal: marshal entry", "path", path, "error", err)
		return
	}

	if err := utils.EnsureParentDir(path); err != nil {
		slog.Warn("journal: ensure directory", "path", path, "error", err)
		return
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Warn("journal: open file", "path", path, "error", err)
		return
	}
	defer f.Close()

	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		slog.Warn("journal: write entry", "path", path, "error", err)
	}
}
