package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"crm-agent-go/internal/model"
	"crm-agent-go/internal/repository"
)

var errBackend = errors.New("backend unavailable")

type fakeCRM struct {
	mu           sync.Mutex
	customers    map[string]model.Customer
	advisors     map[string]model.Advisor
	policies     map[uint][]model.Policy
	claims       map[uint][]model.Claim
	tasks        map[uint][]model.Task
	recommended  []model.Advisor
	failPolicies bool
	failClaims   bool
	lastSpec     string
}

func (f *fakeCRM) CustomerByNumber(_ context.Context, number string) repository.Lookup[model.Customer] {
	if c, ok := f.customers[number]; ok {
		return repository.FoundRecord(&c)
	}
	return repository.Missing[model.Customer]()
}

func (f *fakeCRM) AdvisorByNumber(_ context.Context, number string) repository.Lookup[model.Advisor] {
	if a, ok := f.advisors[number]; ok {
		return repository.FoundRecord(&a)
	}
	return repository.Missing[model.Advisor]()
}

func (f *fakeCRM) CustomerPolicies(_ context.Context, id uint) ([]model.Policy, error) {
	if f.failPolicies {
		return nil, errBackend
	}
	return f.policies[id], nil
}

func (f *fakeCRM) CustomerClaims(_ context.Context, id uint) ([]model.Claim, error) {
	if f.failClaims {
		return nil, errBackend
	}
	return f.claims[id], nil
}

func (f *fakeCRM) CustomerInteractions(context.Context, uint, int) ([]model.Interaction, error) {
	return nil, nil
}

func (f *fakeCRM) AdvisorTasks(_ context.Context, id uint) ([]model.Task, error) {
	return f.tasks[id], nil
}

func (f *fakeCRM) AdvisorClients(context.Context, uint) ([]model.Customer, error) {
	return nil, nil
}

func (f *fakeCRM) RecommendAdvisors(_ context.Context, spec string, _ int) ([]model.Advisor, error) {
	f.mu.Lock()
	f.lastSpec = spec
	f.mu.Unlock()
	return f.recommended, nil
}

type fakeKnowledge struct {
	results []model.SearchResult
	err     error
}

func (f *fakeKnowledge) HybridSearch(context.Context, string, int) ([]model.SearchResult, error) {
	return f.results, f.err
}

// fakeGraph 在 delay 之后才返回，并且忽略 ctx，用来模拟卡住的图谱后端。
type fakeGraph struct {
	results []model.SearchResult
	delay   time.Duration
	err     error
}

func (f *fakeGraph) GraphSearch(context.Context, string, int) ([]model.SearchResult, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.results, f.err
}

type fakeDocuments struct {
	docs []model.DocumentDTO
}

func (f *fakeDocuments) SearchDocuments(context.Context, string, int) ([]model.DocumentDTO, error) {
	return f.docs, nil
}

func twoPolicies() []model.Policy {
	return []model.Policy{
		{ID: 1, PolicyNumber: "POL-1001", CustomerID: 7, Type: "Life", Status: "active", Premium: 120},
		{ID: 2, PolicyNumber: "POL-1002", CustomerID: 7, Type: "Auto", Status: "active", Premium: 80},
	}
}

func customerPersona() *model.Persona {
	return &model.Persona{Kind: model.PersonaCustomer, Number: "CUST-001", InternalID: 7, Name: "Jane Doe"}
}

func advisorPersona() *model.Persona {
	return &model.Persona{Kind: model.PersonaAdvisor, Number: "ADV-001", InternalID: 3, Name: "Sam Lee"}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.GraphTimeout = 100 * time.Millisecond
	return cfg
}
