package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	contractchat "github.com/seproj/chatbackend/internal/contracts/v1/chat"
	apperrors "github.com/seproj/chatbackend/internal/platform/errors"
)

// ReplyInstruction is appended after the conversation so the model answers
// as a single assistant turn.
const ReplyInstruction = "System: Reply directly to the user. Do not narrate analysis or internal thoughts. " +
	"Do not create new System/User/Assistant turns, restate the conversation log, or add meta commentary such as " +
	"'Assistant:'/'Answer:' labels or closing markers. Provide a single, user-facing answer."

// AssistantMarker ends every prompt.
const AssistantMarker = "Assistant:"

// ValidateConversation enforces the preconditions of a generation request.
func ValidateConversation(msgs []contractchat.MessageV1) error {
	if len(msgs) == 0 {
		return apperrors.NewInvalidRequest("At least one message is required.")
	}
	for _, m := range msgs {
		if !m.Role.Valid() {
			return apperrors.NewInvalidRequest("role must be one of [assistant, system, user], got " + quote(string(m.Role)))
		}
	}
	return nil
}

// BuildPrompt renders a conversation as
//
//	User: hi
//
//	Assistant: hello
//
//	System: Reply directly ...
//
//	Assistant:
//
// Messages with blank content are skipped. It has no side effects.
func BuildPrompt(msgs []contractchat.MessageV1) (string, error) {
	if err := ValidateConversation(msgs); err != nil {
		return "", err
	}
	segments := make([]string, 0, len(msgs)+2)
	for _, m := range msgs {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		segments = append(segments, RoleLabel(m.Role)+": "+content)
	}
	segments = append(segments, ReplyInstruction, AssistantMarker)
	return strings.Join(segments, "\n\n"), nil
}

// RoleLabel capitalises a role: "user" -> "User".
func RoleLabel(role contractchat.RoleV1) string {
	s := strings.ToLower(string(role))
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return ""
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func quote(s string) string { return "'" + s + "'" }
