package service

import (
	"crm-agent-go/internal/config"
	"crm-agent-go/internal/model"
)

// RetryMessage 是补全失败时展示给用户的提示，不包含任何内部细节。
const RetryMessage = "Sorry, I wasn't able to finish that answer. Please try again in a moment."

const (
	defaultCustomerPrompt = `You are a friendly insurance assistant talking directly with one of our customers.
Answer using the account data and knowledge provided in the context. Speak to the customer as "you" and
describe their records as "your policies", "your claims" and so on. If the context does not contain the
answer, say so honestly and suggest contacting their advisor. Never reveal data about other customers.`

	defaultAdvisorPrompt = `You are an assistant for insurance advisors. Help the advisor manage their tasks,
understand customer records and find product knowledge. Refer to customers in the third person and be
concise and factual. If the context does not contain the answer, say so instead of guessing.`

	defaultGeneralPrompt = `You are a helpful insurance assistant. Answer general questions about insurance
products and processes using the knowledge provided in the context. You do not have access to any
personal account data in this conversation. If the context does not contain the answer, say so.`
)

// Prompts 保存三种视角的系统提示词。
type Prompts struct {
	Customer string
	Advisor  string
	General  string
}

// PromptsFrom 用配置覆盖内置提示词，留空的项保持默认。
func PromptsFrom(cfg config.LLMPromptConfig) Prompts {
	p := Prompts{Customer: defaultCustomerPrompt, Advisor: defaultAdvisorPrompt, General: defaultGeneralPrompt}
	if cfg.Customer != "" {
		p.Customer = cfg.Customer
	}
	if cfg.Advisor != "" {
		p.Advisor = cfg.Advisor
	}
	if cfg.General != "" {
		p.General = cfg.General
	}
	return p
}

// For 根据 persona 选择系统提示词。
func (p Prompts) For(persona *model.Persona) string {
	switch {
	case persona.IsCustomer():
		return p.Customer
	case persona.IsAdvisor():
		return p.Advisor
	default:
		return p.General
	}
}
