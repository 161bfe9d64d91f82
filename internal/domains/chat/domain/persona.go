package domain

import (
	"regexp"
	"strings"

	"github.com/samber/lo"

	contractchat "github.com/seproj/chatbackend/internal/contracts/v1/chat"
)

var slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)

// PersonaLabel is the persisted and displayed persona: the trimmed caller
// value, or "general" when blank.
func PersonaLabel(persona string) string {
	p := strings.TrimSpace(persona)
	if p == "" {
		return contractchat.DefaultPersona
	}
	return p
}

// PersonaSlug is the storage partition key of a persona.
func PersonaSlug(persona string) string {
	s := strings.ToLower(strings.TrimSpace(persona))
	s = slugSeparators.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return contractchat.DefaultPersona
	}
	return s
}

// PersonaMatcher reports whether a persona passes a filter list. Matching is
// on the slug, so "Product Manager" and "product-manager" are the same persona.
// An empty filter matches everything.
type PersonaMatcher struct {
	slugs map[string]struct{}
}

func NewPersonaMatcher(filter []string) PersonaMatcher {
	filter = lo.Filter(filter, func(f string, _ int) bool { return strings.TrimSpace(f) != "" })
	if len(filter) == 0 {
		return PersonaMatcher{}
	}
	return PersonaMatcher{slugs: lo.SliceToMap(filter, func(f string) (string, struct{}) {
		return PersonaSlug(f), struct{}{}
	})}
}

func (m PersonaMatcher) Empty() bool { return len(m.slugs) == 0 }

func (m PersonaMatcher) Match(persona string) bool {
	if m.Empty() {
		return true
	}
	_, ok := m.slugs[PersonaSlug(persona)]
	return ok
}

// Slugs returns the filter slugs in no particular order.
func (m PersonaMatcher) Slugs() []string {
	return lo.Keys(m.slugs)
}
