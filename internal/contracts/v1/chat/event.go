package chat

// StreamEventTypeV1 tags a line of the NDJSON generation stream.
type StreamEventTypeV1 string

const (
	EventToken StreamEventTypeV1 = "token"
	EventDone  StreamEventTypeV1 = "done"
	EventError StreamEventTypeV1 = "error"
)

// StreamEventV1 is one line of the streamed /generate response.
//
//	{"type":"token","delta":"lo","content":"Hello","request_id":"..."}
//	{"type":"done","content":"Hello","finish_reason":"stop","request_id":"..."}
//	{"type":"error","message":"...","content":"Hel","request_id":"..."}
type StreamEventV1 struct {
	Type         StreamEventTypeV1 `json:"type"`
	Delta        string            `json:"delta,omitempty"`
	Content      string            `json:"content"`
	RequestID    string            `json:"request_id"`
	FinishReason FinishReasonV1    `json:"finish_reason,omitempty"`
	Message      string            `json:"message,omitempty"`
}

// GenerateResponseV1 is the buffered /generate response.
type GenerateResponseV1 struct {
	Output       string         `json:"output"`
	FinishReason FinishReasonV1 `json:"finish_reason"`
	RequestID    string         `json:"request_id"`
}

// HealthV1 is the /health payload.
type HealthV1 struct {
	Status      string `json:"status"`
	Model       string `json:"model"`
	EngineReady bool   `json:"engine_ready"`
	Backend     string `json:"backend,omitempty"`
}
