package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contractchat "github.com/seproj/chatbackend/internal/contracts/v1/chat"
	contractorch "github.com/seproj/chatbackend/internal/contracts/v1/orchestrator"
	apperrors "github.com/seproj/chatbackend/internal/platform/errors"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("  short  ", 600))

	long := strings.Repeat("a", 596) + "    " + strings.Repeat("b", 10)
	got := Truncate(long, 600)
	assert.Equal(t, strings.Repeat("a", 596)+"...", got)
	assert.LessOrEqual(t, len([]rune(got)), 600)

	exact := strings.Repeat("é", 600)
	assert.Equal(t, exact, Truncate(exact, 600))
}

func TestClampLines(t *testing.T) {
	assert.Equal(t, "", ClampLines("", 5))
	assert.Equal(t, "a\nb\nc\nd\ne", ClampLines("\n a\n\nb  \nc\n\n\nd\ne\nf\n", 5))
	assert.Equal(t, "- one", ClampLines("- one\n", 5))
}

func TestFormatTranscript(t *testing.T) {
	tr := contractchat.TranscriptV1{
		RequestID: "abc",
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Messages: []contractchat.MessageV1{
			{Role: contractchat.RoleUser, Content: " Need exports "},
		},
		Response:   contractchat.TranscriptResponseV1{Content: "Sure.", FinishReason: contractchat.FinishStop},
		Parameters: contractchat.GenerationParametersV1{MaxTokens: 10},
	}
	got := FormatTranscript(tr)
	lines := strings.Split(got, "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "- request_id: abc", lines[0])
	assert.Equal(t, "  timestamp: 2024-05-01T12:00:00Z", lines[1])
	assert.Equal(t, "  dialogue:", lines[2])
	assert.Equal(t, "    - user: Need exports", lines[3])
	assert.Equal(t, "    - assistant_response: Sure.", lines[4])
	assert.Equal(t, "  finish_reason: stop", lines[5])
	assert.True(t, strings.HasPrefix(lines[6], `  parameters: {"max_tokens":10`))
}

func TestSummaryPrompt(t *testing.T) {
	p := SummaryPrompt("pm", []contractchat.TranscriptV1{{RequestID: "x"}})
	assert.True(t, strings.HasPrefix(p, "You are the orchestrator agent for a requirements engineering project.\n"))
	assert.Contains(t, p, "expressed by the 'pm' stakeholder\n")
	assert.Contains(t, p, "Use at most five lines in total.\n\nTranscripts:\n- request_id: x")
	assert.True(t, strings.HasSuffix(p, "\n\nStakeholder Summary:\n"))

	assert.Contains(t, SummaryPrompt("", nil), "'general' stakeholder")
}

func TestRequirementsPrompt(t *testing.T) {
	p := RequirementsPrompt([]PersonaSummary{{Persona: "dev", Summary: " - fast builds \n"}, {Persona: "pm", Summary: "- roadmap"}})
	assert.Contains(t, p, "5. Risks and Open Questions\n")
	assert.Contains(t, p, "Stakeholder Summaries:\nStakeholder: dev\nSummary:\n- fast builds\n\nStakeholder: pm\nSummary:\n- roadmap\n\nRequirements Document:\n")
}

func TestResolveRequest(t *testing.T) {
	d := Defaults{MaxTranscriptsPerPersona: 5, SummaryMaxTokens: 512, RequirementsMaxTokens: 1024}
	p, err := ResolveRequest(d, contractorch.RequestV1{})
	require.NoError(t, err)
	assert.Equal(t, RunParams{MaxTranscriptsPerPersona: 5, SummaryMaxTokens: 512, RequirementsMaxTokens: 1024, IncludeRequirements: true}, p)

	no := false
	n := 50
	p, err = ResolveRequest(d, contractorch.RequestV1{Personas: []string{"pm"}, IncludeRequirements: &no, MaxTranscriptsPerPersona: &n})
	require.NoError(t, err)
	assert.False(t, p.IncludeRequirements)
	assert.Equal(t, 50, p.MaxTranscriptsPerPersona)

	for _, bad := range []contractorch.RequestV1{
		{MaxTranscriptsPerPersona: ptr(51)},
		{SummaryMaxTokens: ptr(127)},
		{RequirementsMaxTokens: ptr(3073)},
	} {
		_, err := ResolveRequest(d, bad)
		assert.True(t, apperrors.IsInvalidRequest(err))
	}

	sp := d.ScheduledParams()
	assert.False(t, sp.IncludeRequirements)
	assert.Empty(t, sp.Personas)
}

func ptr(v int) *int { return &v }

func TestDefaultsValidate(t *testing.T) {
	ok := Defaults{MaxTranscriptsPerPersona: 5, SummaryMaxTokens: 512, RequirementsMaxTokens: 1024}
	assert.NoError(t, ok.Validate())

	for name, d := range map[string]Defaults{
		"uncapped":        {MaxTranscriptsPerPersona: 0, SummaryMaxTokens: 512, RequirementsMaxTokens: 1024},
		"summary budget":  {MaxTranscriptsPerPersona: 5, SummaryMaxTokens: 64, RequirementsMaxTokens: 1024},
		"document budget": {MaxTranscriptsPerPersona: 5, SummaryMaxTokens: 512, RequirementsMaxTokens: 4096},
	} {
		err := d.Validate()
		require.Error(t, err, name)
		assert.True(t, apperrors.IsInvalidRequest(err), name)
		assert.Contains(t, err.Error(), "orchestrator defaults", name)
	}
}
