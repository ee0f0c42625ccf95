package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"crm-agent-go/internal/model"
	"crm-agent-go/pkg/calculator"
)

// NoContextMarker 在没有任何工具产出数据时代替空上下文。
const NoContextMarker = "No relevant context found."

const (
	sectionSeparator = "\n\n"
	truncatedSuffix  = "…"
	snippetsLabel    = "Relevant Knowledge:"
)

// ContextSection 是上下文中的一段，Label 可以为空。
type ContextSection struct {
	Label string
	Body  string
}

func (s ContextSection) render() string {
	if s.Label == "" {
		return s.Body
	}
	return s.Label + "\n" + s.Body
}

// labels 决定各段的措辞视角。
type labels struct {
	summary      string
	instruction  string
	policies     string
	claims       string
	interactions string
	tasks        string
	documents    string
	profile      string
	advisors     string
}

var firstPersonLabels = labels{
	summary: "Your Account Summary:",
	instruction: "IMPORTANT: The customer data below belongs to you, the person in this conversation. " +
		"Address the user directly as \"you\" and describe this data as \"your\" policies, claims and account. " +
		"Never refer to the user by name in the third person when talking about their own data.",
	policies:     "Your Policies:",
	claims:       "Your Claims:",
	interactions: "Your Interactions:",
	tasks:        "Your Tasks:",
	documents:    "Relevant Documents:",
	profile:      "Your Profile:",
	advisors:     "Recommended Advisors for You:",
}

var advisorLabels = labels{
	summary: "Advisor Summary:",
	instruction: "The user is an insurance advisor. Records below describe the advisor's own work and their customers; " +
		"refer to customers in the third person.",
	policies:     "Customer Policies:",
	claims:       "Customer Claims:",
	interactions: "Customer Interactions:",
	tasks:        "Advisor Tasks:",
	documents:    "Relevant Documents:",
	profile:      "Advisor Profile:",
	advisors:     "Recommended Advisors:",
}

var neutralLabels = labels{
	summary:      "CRM Summary:",
	policies:     "Customer Policies:",
	claims:       "Customer Claims:",
	interactions: "Customer Interactions:",
	tasks:        "Advisor Tasks:",
	documents:    "Relevant Documents:",
	profile:      "Profile:",
	advisors:     "Recommended Advisors:",
}

func labelsFor(p *model.Persona) labels {
	switch {
	case p.IsCustomer():
		return firstPersonLabels
	case p.IsAdvisor():
		return advisorLabels
	default:
		return neutralLabels
	}
}

// Assembler 把工具结果合并为一段有长度上限的文本。
type Assembler struct {
	maxContextChars int
	maxSnippetChars int
}

// NewAssembler 创建上下文组装器。
func NewAssembler(cfg Config) *Assembler {
	return &Assembler{maxContextChars: cfg.MaxContextChars, maxSnippetChars: cfg.MaxSnippetChars}
}

// PersonaSummary 生成 CRM 概要文本，没有 persona 时返回空串。
func PersonaSummary(p *model.Persona) string {
	switch {
	case p.IsCustomer():
		return fmt.Sprintf("Name: %s\nCustomer Number: %s", p.Name, p.Number)
	case p.IsAdvisor():
		return fmt.Sprintf("Name: %s\nAdvisor Number: %s", p.Name, p.Number)
	default:
		return ""
	}
}

// Sections 按固定顺序生成各段：
// CRM 概要、视角说明、保单、理赔、沟通记录、任务、文档、画像、顾问推荐、计算结果、检索片段。
func (a *Assembler) Sections(out *Outcome, crmSummary string) []ContextSection {
	var persona *model.Persona
	var res ToolResults
	if out != nil {
		persona = out.Persona
		res = out.Results
	}
	l := labelsFor(persona)

	var sections []ContextSection
	if s := strings.TrimSpace(crmSummary); s != "" {
		sections = append(sections, ContextSection{Label: l.summary, Body: s})
	}
	if l.instruction != "" {
		sections = append(sections, ContextSection{Body: l.instruction})
	}

	if !res.HasData() {
		return append(sections, ContextSection{Body: NoContextMarker})
	}

	appendJSON := func(label string, v any, present bool) {
		if !present {
			return
		}
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return
		}
		sections = append(sections, ContextSection{Label: label, Body: string(b)})
	}
	appendJSON(l.policies, res.Policies, len(res.Policies) > 0)
	appendJSON(l.claims, res.Claims, len(res.Claims) > 0)
	appendJSON(l.interactions, res.Interactions, len(res.Interactions) > 0)
	appendJSON(l.tasks, res.Tasks, len(res.Tasks) > 0)
	appendJSON(l.documents, res.Documents, len(res.Documents) > 0)
	appendJSON(l.profile, res.Profile, res.Profile != nil)
	appendJSON(l.advisors, res.Advisors, len(res.Advisors) > 0)

	if c := res.Calculation; c != nil {
		sections = append(sections, ContextSection{
			Label: "Calculation Result:",
			Body:  fmt.Sprintf("Expression: %s\nResult: %s", c.Expression, calculator.FormatNumber(c.Result)),
		})
	}

	if len(res.Snippets) > 0 {
		sections = append(sections, ContextSection{Label: snippetsLabel, Body: a.renderSnippets(res.Snippets)})
	}
	return sections
}

func (a *Assembler) renderSnippets(snippets []model.SearchResult) string {
	var b strings.Builder
	for i, s := range snippets {
		if i > 0 {
			b.WriteString("\n")
		}
		title := s.Title
		if title == "" {
			title = "unknown"
		}
		fmt.Fprintf(&b, "[Source %d] (%s) %s", i+1, title, truncate(strings.Join(strings.Fields(s.Content), " "), a.maxSnippetChars))
	}
	return b.String()
}

// Render 拼接各段。超出上限时丢弃放不下的检索片段，其余段落做硬截断。
func (a *Assembler) Render(sections []ContextSection) string {
	var b strings.Builder
	used := 0
	for i, s := range sections {
		prefix := ""
		if i > 0 {
			prefix = sectionSeparator
		}
		body := s.render()
		size := utf8.RuneCountInString(prefix) + utf8.RuneCountInString(body)
		if a.maxContextChars <= 0 || used+size <= a.maxContextChars {
			b.WriteString(prefix)
			b.WriteString(body)
			used += size
			continue
		}
		budget := a.maxContextChars - used - utf8.RuneCountInString(prefix)
		if s.Label == snippetsLabel {
			body = fitLines(body, budget)
		} else {
			body = truncate(body, budget)
		}
		if body != "" {
			b.WriteString(prefix)
			b.WriteString(body)
		}
		break
	}
	return b.String()
}

// fitLines 按行保留完整的片段，直到剩余空间用完；只剩标题时返回空串。
func fitLines(body string, budget int) string {
	if budget <= 0 {
		return ""
	}
	lines := strings.Split(body, "\n")
	kept := 0
	used := 0
	for _, line := range lines {
		size := utf8.RuneCountInString(line)
		if kept > 0 {
			size++
		}
		if used+size > budget {
			break
		}
		used += size
		kept++
	}
	if kept <= 1 {
		return ""
	}
	return strings.Join(lines[:kept], "\n")
}

// Assemble 生成完整的上下文文本。
func (a *Assembler) Assemble(out *Outcome, crmSummary string) string {
	return a.Render(a.Sections(out, crmSummary))
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + truncatedSuffix
}
