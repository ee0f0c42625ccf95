package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-agent-go/internal/model"
)

func TestAssembleCustomerPerspective(t *testing.T) {
	a := NewAssembler(DefaultConfig())
	out := &Outcome{Persona: customerPersona(), Results: ToolResults{Policies: twoPolicies()}}

	text := a.Assemble(out, PersonaSummary(out.Persona))

	assert.Contains(t, text, "Your Policies:\n[")
	assert.Contains(t, text, "POL-1001")
	assert.Contains(t, text, "POL-1002")
	assert.Contains(t, text, "\"you\"")
	assert.NotContains(t, text, "Customer Policies:")
	assert.NotContains(t, text, "Jane Doe's")
	assert.True(t, strings.HasPrefix(text, "Your Account Summary:"))
}

func TestAssembleAdvisorPerspective(t *testing.T) {
	a := NewAssembler(DefaultConfig())
	out := &Outcome{Persona: advisorPersona(), Results: ToolResults{
		Policies: twoPolicies(),
		Tasks:    []model.Task{{ID: 1, Title: "Renewal call"}},
	}}

	text := a.Assemble(out, "")

	assert.Contains(t, text, "Customer Policies:")
	assert.Contains(t, text, "Advisor Tasks:")
	assert.NotContains(t, text, "Your Policies:")
}

func TestSectionsFixedOrder(t *testing.T) {
	a := NewAssembler(DefaultConfig())
	out := &Outcome{Persona: customerPersona(), Results: ToolResults{
		Snippets:     []model.SearchResult{{Title: "Guide", Content: "text"}},
		Calculation:  &Calculation{Expression: "1 + 1", Result: 2},
		Advisors:     []model.Advisor{{ID: 1}},
		Profile:      &Profile{Customer: &model.Customer{ID: 7}},
		Documents:    []model.DocumentDTO{{ID: 1, Title: "Claim form"}},
		Interactions: []model.Interaction{{ID: 1}},
		Claims:       []model.Claim{{ID: 1}},
		Policies:     twoPolicies(),
	}}

	sections := a.Sections(out, "summary")
	var labels []string
	for _, s := range sections {
		labels = append(labels, s.Label)
	}
	assert.Equal(t, []string{
		"Your Account Summary:",
		"",
		"Your Policies:",
		"Your Claims:",
		"Your Interactions:",
		"Relevant Documents:",
		"Your Profile:",
		"Recommended Advisors for You:",
		"Calculation Result:",
		"Relevant Knowledge:",
	}, labels)
}

func TestAssembleCalculation(t *testing.T) {
	a := NewAssembler(DefaultConfig())
	out := &Outcome{Results: ToolResults{Calculation: &Calculation{Expression: "2000 * 0.15", Result: 300, Formula: "2000 * 0.15"}}}

	text := a.Assemble(out, "")

	assert.Contains(t, text, "Calculation Result:\nExpression: 2000 * 0.15\nResult: 300")
}

func TestAssembleNoContextMarker(t *testing.T) {
	a := NewAssembler(DefaultConfig())

	assert.Equal(t, NoContextMarker, a.Assemble(&Outcome{}, ""))
	assert.Equal(t, NoContextMarker, a.Assemble(nil, ""))

	withPersona := a.Assemble(&Outcome{Persona: customerPersona()}, PersonaSummary(customerPersona()))
	assert.True(t, strings.HasSuffix(withPersona, NoContextMarker))
}

func TestAssembleSnippets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSnippetChars = 20
	a := NewAssembler(cfg)
	out := &Outcome{Results: ToolResults{Snippets: []model.SearchResult{
		{Title: "Policy Handbook", Content: strings.Repeat("a", 50)},
		{Content: "short\ncontent"},
	}}}

	text := a.Assemble(out, "")

	assert.Contains(t, text, "[Source 1] (Policy Handbook) "+strings.Repeat("a", 19)+"…")
	assert.Contains(t, text, "[Source 2] (unknown) short content")
}

func TestAssembleBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxContextChars = 120
	a := NewAssembler(cfg)
	var snippets []model.SearchResult
	for i := 0; i < 10; i++ {
		snippets = append(snippets, model.SearchResult{Title: "Doc", Content: strings.Repeat("x", 30)})
	}
	out := &Outcome{Results: ToolResults{Snippets: snippets}}

	text := a.Assemble(out, "")

	require.LessOrEqual(t, len([]rune(text)), 120)
	assert.Contains(t, text, "[Source 1]")
	assert.NotContains(t, text, "[Source 10]")
	// 只保留完整的片段
	for _, line := range strings.Split(text, "\n")[1:] {
		assert.True(t, strings.HasSuffix(line, strings.Repeat("x", 30)), line)
	}
}
