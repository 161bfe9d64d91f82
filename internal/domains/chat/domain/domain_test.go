package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractchat "github.com/seproj/chatbackend/internal/contracts/v1/chat"
	apperrors "github.com/seproj/chatbackend/internal/platform/errors"
)

func msgs(pairs ...string) []contractchat.MessageV1 {
	var out []contractchat.MessageV1
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, contractchat.MessageV1{Role: contractchat.RoleV1(pairs[i]), Content: pairs[i+1]})
	}
	return out
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt(msgs("system", " Be brief. ", "user", "Hello", "assistant", "   ", "user", "Again"))
	require.NoError(t, err)

	want := "System: Be brief.\n\nUser: Hello\n\nUser: Again\n\n" + ReplyInstruction + "\n\nAssistant:"
	assert.Equal(t, want, prompt)
}

func TestBuildPromptIsDeterministic(t *testing.T) {
	conv := msgs("user", "Hello", "assistant", "Hi there", "user", "What now?")
	first, err := BuildPrompt(conv)
	require.NoError(t, err)
	second, err := BuildPrompt(conv)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, msgs("user", "Hello", "assistant", "Hi there", "user", "What now?"), conv, "input is not mutated")
}

func TestBuildPromptRejects(t *testing.T) {
	_, err := BuildPrompt(nil)
	assert.True(t, apperrors.IsInvalidRequest(err))

	_, err = BuildPrompt(msgs("tool", "x"))
	assert.True(t, apperrors.IsInvalidRequest(err))
}

func TestNextDelta(t *testing.T) {
	d, err := NextDelta("", "Hel")
	require.NoError(t, err)
	assert.Equal(t, "Hel", d)

	d, err = NextDelta("Hel", "Hello")
	require.NoError(t, err)
	assert.Equal(t, "lo", d)

	d, err = NextDelta("Hello", "Hello")
	require.NoError(t, err)
	assert.Empty(t, d)

	_, err = NextDelta("Hello", "Help")
	assert.Error(t, err)
	_, err = NextDelta("Hello", "He")
	assert.Error(t, err)
}

func TestPersona(t *testing.T) {
	assert.Equal(t, "general", PersonaLabel(""))
	assert.Equal(t, "general", PersonaLabel("   "))
	assert.Equal(t, "Product Manager", PersonaLabel(" Product Manager "))

	assert.Equal(t, "product-manager", PersonaSlug("Product  Manager!"))
	assert.Equal(t, "general", PersonaSlug("***"))
	assert.Equal(t, "dev-ops", PersonaSlug("--Dev/Ops--"))

	m := NewPersonaMatcher([]string{"Product Manager", " "})
	assert.True(t, m.Match("product-manager"))
	assert.True(t, m.Match("PRODUCT manager"))
	assert.False(t, m.Match("developer"))

	assert.True(t, NewPersonaMatcher(nil).Match("anything"))
}

func TestTranscriptFileName(t *testing.T) {
	at := time.Date(2025, 3, 9, 14, 5, 7, 123, time.UTC)
	name := TranscriptFileName(at, "abc")
	assert.Equal(t, "20250309T140507Z_abc.json", name)
	assert.True(t, IsTranscriptFileName(name))
	assert.False(t, IsTranscriptFileName("notes.json"))
	assert.False(t, IsTranscriptFileName("20250309T140507Z_abc.json.tmp"))
	assert.Equal(t, "pm/20250309T140507Z_abc.json", TranscriptRelPath("PM", at, "abc"))
}

func TestRequestID(t *testing.T) {
	a, b := NewRequestID(), NewRequestID()
	assert.True(t, IsValidRequestID(a))
	assert.NotEqual(t, a, b)
	assert.False(t, IsValidRequestID("../../etc/passwd"))
}

func TestResolveSampling(t *testing.T) {
	defaults := SamplingDefaults{MaxTokens: 1024, Temperature: 0.7, TopP: 0.95, FrequencyPenalty: 0.8, Stop: []string{"\nSystem:", "\nUser:"}}
	maxTokens := 64
	params, s, err := ResolveSampling(defaults, SamplingOverrides{MaxTokens: &maxTokens, Stop: []string{"END", "\nUser:"}, Stream: true})
	require.NoError(t, err)

	assert.Equal(t, 64, params.MaxTokens)
	assert.Equal(t, []string{"END", "\nUser:"}, params.Stop, "persisted stops are the caller's")
	assert.True(t, params.Stream)
	assert.Equal(t, []string{"END", "\nUser:", "\nSystem:"}, s.Stop)
	assert.InDelta(t, 0.8, s.FrequencyPenalty, 1e-9)

	bad := 3.0
	_, _, err = ResolveSampling(defaults, SamplingOverrides{Temperature: &bad})
	assert.True(t, apperrors.IsInvalidRequest(err))

	zero := 0
	_, _, err = ResolveSampling(defaults, SamplingOverrides{MaxTokens: &zero})
	assert.True(t, apperrors.IsInvalidRequest(err))
}
