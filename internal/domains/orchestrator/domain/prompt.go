// Package domain holds the pure prompt-rendering rules of the orchestrator.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	contractchat "github.com/seproj/chatbackend/internal/contracts/v1/chat"
)

const (
	// MaxFieldChars bounds each dialogue line and response in a transcript block.
	MaxFieldChars = 600
	// MaxSummaryLines bounds a persona summary.
	MaxSummaryLines = 5
)

const summaryInstructions = "You are the orchestrator agent for a requirements engineering project.\n" +
	"Summarise the key goals, pain points, and constraints expressed by the '%s' stakeholder\n" +
	"across the chat transcripts. Focus on actionable insights that influence product requirements.\n" +
	"\n" +
	"Provide a concise summary using bullet points. Use at most five lines in total."

const requirementsInstructions = "You are a senior requirements engineer. Using the stakeholder summaries below,\n" +
	"produce a cohesive requirements document that reconciles all perspectives.\n" +
	"\n" +
	"Structure the response with the following sections:\n" +
	"1. Project Overview\n" +
	"2. Stakeholder Goals (grouped by stakeholder)\n" +
	"3. Functional Requirements\n" +
	"4. Non-Functional Requirements / Constraints\n" +
	"5. Risks and Open Questions\n" +
	"\n" +
	"Keep each section succinct but specific enough to guide implementation planning."

// Truncate trims s and, if it is longer than max characters, cuts it to
// max-3 characters followed by "...".
func Truncate(s string, max int) string {
	text := strings.TrimSpace(s)
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	cut := max - 3
	if cut < 0 {
		cut = 0
	}
	return strings.TrimRightFunc(string(r[:cut]), isSpace) + "..."
}

// ClampLines keeps at most max non-empty lines of s, right-trimmed.
func ClampLines(s string, max int) string {
	if s == "" {
		return s
	}
	var kept []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		line = strings.TrimRightFunc(line, isSpace)
		if strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
		if len(kept) == max {
			break
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// FormatTranscript renders one transcript as a compact YAML-like block.
func FormatTranscript(t contractchat.TranscriptV1) string {
	lines := []string{
		"- request_id: " + t.RequestID,
		"  timestamp: " + t.CreatedAt.UTC().Format(time.RFC3339Nano),
		"  dialogue:",
	}
	for _, m := range t.Messages {
		role := string(m.Role)
		if role == "" {
			role = "unknown"
		}
		lines = append(lines, "    - "+role+": "+Truncate(m.Content, MaxFieldChars))
	}
	if resp := Truncate(t.Response.Content, MaxFieldChars); resp != "" {
		lines = append(lines, "    - assistant_response: "+resp)
	}
	if t.Response.FinishReason != "" {
		lines = append(lines, "  finish_reason: "+string(t.Response.FinishReason))
	}
	if b, err := json.Marshal(t.Parameters); err == nil {
		lines = append(lines, "  parameters: "+string(b))
	}
	return strings.Join(lines, "\n")
}

// SummaryPrompt asks for a short summary of one persona's transcripts.
func SummaryPrompt(persona string, transcripts []contractchat.TranscriptV1) string {
	if persona == "" {
		persona = contractchat.DefaultPersona
	}
	blocks := make([]string, 0, len(transcripts))
	for _, t := range transcripts {
		blocks = append(blocks, FormatTranscript(t))
	}
	instructions := fmt.Sprintf(summaryInstructions, persona)
	return instructions + "\n\nTranscripts:\n" + strings.Join(blocks, "\n") + "\n\nStakeholder Summary:\n"
}

// PersonaSummary is one entry of the requirements prompt.
type PersonaSummary struct {
	Persona string
	Summary string
}

// RequirementsPrompt asks for one requirements document reconciling all
// summaries, rendered in the given order.
func RequirementsPrompt(summaries []PersonaSummary) string {
	sections := make([]string, 0, len(summaries))
	for _, s := range summaries {
		p := s.Persona
		if p == "" {
			p = contractchat.DefaultPersona
		}
		sections = append(sections, "Stakeholder: "+p+"\nSummary:\n"+strings.TrimSpace(s.Summary))
	}
	return requirementsInstructions + "\n\nStakeholder Summaries:\n" + strings.Join(sections, "\n\n") + "\n\nRequirements Document:\n"
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}
