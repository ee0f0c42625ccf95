// Package agent 实现了对话智能体的决策核心：意图识别、工具编排与上下文组装。
package agent

import (
	"regexp"
	"strconv"
	"strings"

	"crm-agent-go/pkg/calculator"
)

// QueryIntent 是根据原始问句推导出的话题标记，每轮重新计算，不做持久化。
type QueryIntent struct {
	IsPolicyQuery                bool `json:"isPolicyQuery"`
	IsClaimQuery                 bool `json:"isClaimQuery"`
	IsDocumentQuery              bool `json:"isDocumentQuery"`
	IsTaskQuery                  bool `json:"isTaskQuery"`
	IsProfileQuery               bool `json:"isProfileQuery"`
	IsInteractionQuery           bool `json:"isInteractionQuery"`
	IsCalculationQuery           bool `json:"isCalculationQuery"`
	IsAdvisorRecommendationQuery bool `json:"isAdvisorRecommendationQuery"`
}

// Any 报告是否命中了至少一个话题。
func (q QueryIntent) Any() bool {
	return q.IsPolicyQuery || q.IsClaimQuery || q.IsDocumentQuery || q.IsTaskQuery ||
		q.IsProfileQuery || q.IsInteractionQuery || q.IsCalculationQuery || q.IsAdvisorRecommendationQuery
}

// keywordSet 按词边界匹配关键词，允许复数后缀，避免 "file" 命中 "profile"。
type keywordSet []*regexp.Regexp

func words(keywords ...string) keywordSet {
	set := make(keywordSet, 0, len(keywords))
	for _, k := range keywords {
		set = append(set, regexp.MustCompile(`\b`+regexp.QuoteMeta(k)+`(?:s|es)?\b`))
	}
	return set
}

func (s keywordSet) match(text string) bool {
	for _, re := range s {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

var (
	policyKeywords      = words("policy", "policies", "coverage", "premium", "deductible", "insured", "renewal")
	claimKeywords       = words("claim", "reimburse", "settlement", "payout")
	documentKeywords    = words("document", "form", "brochure", "pdf", "guide", "handbook", "download", "file", "terms and conditions")
	taskKeywords        = words("task", "to-do", "todo", "follow up", "follow-up", "reminder", "appointment", "deadline", "due")
	profileKeywords     = words("profile", "my account", "my details", "my information", "contact details", "address", "email", "phone", "who am i")
	interactionKeywords = words("interaction", "contact history", "last call", "meeting", "spoke", "communication", "conversation with", "talked")
	calcKeywords        = words("calculate", "calculation", "compute", "how much", "total", "sum of", "interest", "percent", "percentage", "plus", "minus", "times", "divided by", "multiplied by")
	advisorRecKeywords  = words("recommend", "recommendation", "advisor", "adviser", "specialist", "expert", "who should i talk", "who can help", "find me an", "find me a")

	// 运算符，或紧贴数字的标点（15%、3-4）
	calcPattern = regexp.MustCompile(`[+*/^×÷=]|\d\s*%|\d\s*-\s*\d`)
	// 电话号码、日期这类用连字符连起来的多段数字不是算式
	dashedNumber = regexp.MustCompile(`\d+(?:-\d+){2,}`)
)

// DetectIntent 对问句做词法分类。多个标记可以同时为真；空输入时全部为假。
func DetectIntent(query string) QueryIntent {
	text := strings.ToLower(strings.TrimSpace(query))
	if text == "" {
		return QueryIntent{}
	}
	arithmetic := dashedNumber.ReplaceAllString(text, " ")
	return QueryIntent{
		IsPolicyQuery:                policyKeywords.match(text),
		IsClaimQuery:                 claimKeywords.match(text),
		IsDocumentQuery:              documentKeywords.match(text),
		IsTaskQuery:                  taskKeywords.match(text),
		IsProfileQuery:               profileKeywords.match(text),
		IsInteractionQuery:           interactionKeywords.match(text),
		IsCalculationQuery:           calcKeywords.match(text) || calcPattern.MatchString(arithmetic),
		IsAdvisorRecommendationQuery: advisorRecKeywords.match(text),
	}
}

var (
	percentOfPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%\s*of\s*\$?\s*(\d[\d,]*(?:\.\d+)?)`)
	expressionRun    = regexp.MustCompile(`[\d$(][\d$.,()+\-*/^%\s]*`)
	binaryOperator   = regexp.MustCompile(`[\d)%]\s*[+\-*/^]\s*[\d(]`)

	wordOperators = strings.NewReplacer(
		"to the power of", "^",
		"multiplied by", "*",
		"divided by", "/",
		"plus", "+",
		"minus", "-",
		"times", "*",
		"×", "*",
		"÷", "/",
	)
)

// ExtractExpression 从自然语言中尽力抽取一个可计算的表达式。
// "15% of 2000" 会被改写为 "2000 * 0.15"；抽取结果必须能被计算器解析，否则返回 false。
func ExtractExpression(query string) (string, bool) {
	text := strings.ToLower(query)

	if m := percentOfPattern.FindStringSubmatch(text); m != nil {
		rate, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			base := strings.ReplaceAll(m[2], ",", "")
			expr := base + " * " + calculator.FormatNumber(rate/100)
			if parseable(expr) {
				return expr, true
			}
		}
	}

	text = wordOperators.Replace(dashedNumber.ReplaceAllString(text, " "))
	var best string
	for _, run := range expressionRun.FindAllString(text, -1) {
		candidate := strings.TrimRight(strings.TrimSpace(run), ".,")
		candidate = strings.TrimSpace(strings.ReplaceAll(candidate, "$", ""))
		if !binaryOperator.MatchString(candidate) {
			continue
		}
		if len(candidate) > len(best) && parseable(candidate) {
			best = candidate
		}
	}
	return best, best != ""
}

func parseable(expr string) bool {
	_, err := calculator.Evaluate(expr, calculator.Arithmetic, nil)
	return err == nil
}

// specializationHints 按顺序匹配，先出现的更具体。
var specializationHints = []struct {
	keywords       keywordSet
	specialization string
}{
	{words("life insurance", "life cover", "term life", "whole life"), "Life Insurance"},
	{words("health insurance", "medical", "health"), "Health Insurance"},
	{words("auto insurance", "car insurance", "vehicle", "auto", "car"), "Auto Insurance"},
	{words("home insurance", "property", "homeowner", "home"), "Home Insurance"},
	{words("retirement", "pension", "annuity"), "Retirement Planning"},
	{words("investment", "portfolio", "wealth"), "Investment Planning"},
	{words("business insurance", "commercial", "business"), "Business Insurance"},
}

// SpecializationHint 从问句中挑选一个顾问专长；没有匹配时返回空串，表示不过滤。
func SpecializationHint(query string) string {
	text := strings.ToLower(query)
	for _, h := range specializationHints {
		if h.keywords.match(text) {
			return h.specialization
		}
	}
	return ""
}
