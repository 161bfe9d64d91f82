package chat

// RoleV1 is the author role of a conversation message.
type RoleV1 string

const (
	RoleSystem    RoleV1 = "system"
	RoleUser      RoleV1 = "user"
	RoleAssistant RoleV1 = "assistant"
)

// Valid reports whether r is one of the accepted roles.
func (r RoleV1) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// MessageV1 is one entry of an ordered conversation.
type MessageV1 struct {
	Role    RoleV1 `json:"role"`
	Content string `json:"content"`
}

// GenerationParametersV1 is the caller-facing sampling configuration, persisted
// with every transcript as generation_parameters.
type GenerationParametersV1 struct {
	MaxTokens        int      `json:"max_tokens"`
	Temperature      float64  `json:"temperature"`
	TopP             float64  `json:"top_p"`
	PresencePenalty  float64  `json:"presence_penalty"`
	FrequencyPenalty float64  `json:"frequency_penalty"`
	Stop             []string `json:"stop"`
	Stream           bool     `json:"stream"`
}
