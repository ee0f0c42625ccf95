package agent

import (
	"time"

	"crm-agent-go/internal/config"
	"crm-agent-go/internal/model"
)

// 工具名称，会出现在 toolsUsed 元数据中。
const (
	ToolCustomerPolicies     = "get_customer_policies"
	ToolCustomerClaims       = "get_customer_claims"
	ToolCustomerInteractions = "get_customer_interactions"
	ToolCustomerProfile      = "get_customer_profile"
	ToolRecommendAdvisors    = "recommend_advisors"
	ToolAdvisorTasks         = "get_advisor_tasks"
	ToolAdvisorProfile       = "get_advisor_profile"
	ToolSearchDocuments      = "search_documents"
	ToolCalculate            = "calculate"
	ToolKnowledgeSearch      = "knowledge_search"
	ToolGraphSearch          = "graph_search"
)

// 片段来源
const (
	OriginKnowledge = "knowledge"
	OriginGraph     = "graph"
)

// Config 控制编排与上下文组装。
type Config struct {
	GraphTimeout     time.Duration
	KnowledgeTopK    int
	GraphTopK        int
	AdvisorTopN      int
	InteractionLimit int
	DocumentLimit    int
	MaxContextChars  int
	MaxSnippetChars  int
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{
		GraphTimeout:     3 * time.Second,
		KnowledgeTopK:    5,
		GraphTopK:        5,
		AdvisorTopN:      3,
		InteractionLimit: 10,
		DocumentLimit:    5,
		MaxContextChars:  12000,
		MaxSnippetChars:  1000,
	}
}

// ConfigFrom 用配置文件中的 agent 段覆盖默认值，零值保持默认。
func ConfigFrom(c config.AgentConfig) Config {
	cfg := DefaultConfig()
	if c.GraphTimeout > 0 {
		cfg.GraphTimeout = c.GraphTimeout
	}
	if c.KnowledgeTopK > 0 {
		cfg.KnowledgeTopK = c.KnowledgeTopK
	}
	if c.GraphTopK > 0 {
		cfg.GraphTopK = c.GraphTopK
	}
	if c.AdvisorTopN > 0 {
		cfg.AdvisorTopN = c.AdvisorTopN
	}
	if c.MaxContextChars > 0 {
		cfg.MaxContextChars = c.MaxContextChars
	}
	if c.MaxSnippetChars > 0 {
		cfg.MaxSnippetChars = c.MaxSnippetChars
	}
	return cfg
}

// Profile 是画像工具的输出；客户与顾问各自只填充相关字段。
type Profile struct {
	Customer *model.Customer  `json:"customer,omitempty"`
	Advisor  *model.Advisor   `json:"advisor,omitempty"`
	Clients  []model.Customer `json:"clients,omitempty"`
}

// Calculation 是计算器工具的输出。
type Calculation struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
	Formula    string  `json:"formula"`
}

// ToolResults 收集各工具的产出。失败或为空的工具对应字段保持零值。
type ToolResults struct {
	Policies     []model.Policy      `json:"policies,omitempty"`
	Claims       []model.Claim       `json:"claims,omitempty"`
	Interactions []model.Interaction `json:"interactions,omitempty"`
	Tasks        []model.Task        `json:"tasks,omitempty"`
	Documents    []model.DocumentDTO `json:"documents,omitempty"`
	Profile      *Profile            `json:"profile,omitempty"`
	Advisors     []model.Advisor     `json:"advisorRecommendations,omitempty"`
	Calculation  *Calculation        `json:"calculation,omitempty"`
	// Snippets 先是知识库结果，再是图谱结果，各自按相关度排序
	Snippets []model.SearchResult `json:"snippets,omitempty"`
}

// HasData 报告是否有任何工具产出了可用数据。
func (r *ToolResults) HasData() bool {
	return len(r.Policies) > 0 || len(r.Claims) > 0 || len(r.Interactions) > 0 ||
		len(r.Tasks) > 0 || len(r.Documents) > 0 || r.Profile != nil ||
		len(r.Advisors) > 0 || r.Calculation != nil || len(r.Snippets) > 0
}

// Outcome 是一次编排的完整结果。
type Outcome struct {
	Persona *model.Persona
	Results ToolResults
	// Calls 按计划顺序记录所有被调用的工具，包括失败或超时的
	Calls   []model.ToolCall
	Sources []model.SourceRef
	// Failures 记录失败的工具名称，仅用于日志与测试
	Failures map[string]error
}
