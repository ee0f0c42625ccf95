package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"crm-agent-go/internal/agent"
	"crm-agent-go/internal/config"
	"crm-agent-go/internal/model"
	"crm-agent-go/internal/repository"
	"crm-agent-go/pkg/llm"
	"crm-agent-go/pkg/tasks"
)

// memSessions 是内存版的 SessionRepository。
type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	messages map[string][]model.Message
	nextID   uint
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]*model.Session), messages: make(map[string][]model.Message)}
}

func (m *memSessions) GetSession(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memSessions) FindActiveByPersona(_ context.Context, kind model.PersonaKind, number string, now time.Time) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.Session
	for _, s := range m.sessions {
		if s.Expired(now) {
			continue
		}
		match := false
		switch kind {
		case model.PersonaCustomer:
			match = s.CustomerPersona == number && s.AdvisorPersona == ""
		case model.PersonaAdvisor:
			match = s.AdvisorPersona == number && s.CustomerPersona == ""
		}
		if match && (best == nil || s.CreatedAt.After(best.CreatedAt)) {
			best = s
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (m *memSessions) CreateSession(_ context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memSessions) UpdateSessionMetadata(_ context.Context, id string, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.Metadata = metadata
	}
	return nil
}

func (m *memSessions) AppendMessage(_ context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	msg.ID = m.nextID
	msg.CreatedAt = time.Now()
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], *msg)
	return nil
}

func (m *memSessions) RecentMessages(_ context.Context, sessionID string, limit int) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.messages[sessionID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]model.Message(nil), all...), nil
}

func (m *memSessions) ListMessages(_ context.Context, sessionID string) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]model.Message(nil), m.messages[sessionID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memSessions) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, id)
	delete(m.sessions, id)
	return nil
}

func (m *memSessions) count(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages[sessionID])
}

func (m *memSessions) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msgs := range m.messages {
		n += len(msgs)
	}
	return n
}

// fakeCRM 同时满足 PersonaDirectory 与 agent.CRMReader。
type fakeCRM struct {
	customers map[string]model.Customer
	advisors  map[string]model.Advisor
	policies  map[uint][]model.Policy
	down      bool
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{
		customers: map[string]model.Customer{
			"CUST-001": {ID: 7, CustomerNumber: "CUST-001", FirstName: "Jane", LastName: "Doe"},
			"CUST-002": {ID: 8, CustomerNumber: "CUST-002", FirstName: "John", LastName: "Roe"},
		},
		advisors: map[string]model.Advisor{
			"ADV-001": {ID: 3, AdvisorNumber: "ADV-001", FirstName: "Sam", LastName: "Lee"},
		},
		policies: map[uint][]model.Policy{
			7: {
				{PolicyNumber: "POL-1001", Type: "Life", Status: "active", Premium: 120},
				{PolicyNumber: "POL-1002", Type: "Auto", Status: "active", Premium: 80},
			},
		},
	}
}

var errCRMDown = errors.New("crm unavailable")

func (f *fakeCRM) CustomerByNumber(_ context.Context, number string) repository.Lookup[model.Customer] {
	if f.down {
		return repository.Failed[model.Customer](errCRMDown)
	}
	if c, ok := f.customers[number]; ok {
		return repository.FoundRecord(&c)
	}
	return repository.Missing[model.Customer]()
}

func (f *fakeCRM) AdvisorByNumber(_ context.Context, number string) repository.Lookup[model.Advisor] {
	if f.down {
		return repository.Failed[model.Advisor](errCRMDown)
	}
	if a, ok := f.advisors[number]; ok {
		return repository.FoundRecord(&a)
	}
	return repository.Missing[model.Advisor]()
}

func (f *fakeCRM) CustomerPolicies(_ context.Context, id uint) ([]model.Policy, error) {
	return f.policies[id], nil
}

func (f *fakeCRM) CustomerClaims(context.Context, uint) ([]model.Claim, error) { return nil, nil }

func (f *fakeCRM) CustomerInteractions(context.Context, uint, int) ([]model.Interaction, error) {
	return nil, nil
}

func (f *fakeCRM) AdvisorTasks(context.Context, uint) ([]model.Task, error) { return nil, nil }

func (f *fakeCRM) AdvisorClients(context.Context, uint) ([]model.Customer, error) { return nil, nil }

func (f *fakeCRM) RecommendAdvisors(context.Context, string, int) ([]model.Advisor, error) {
	return nil, nil
}

type emptySearch struct{}

func (emptySearch) HybridSearch(context.Context, string, int) ([]model.SearchResult, error) {
	return nil, nil
}

func (emptySearch) GraphSearch(context.Context, string, int) ([]model.SearchResult, error) {
	return nil, nil
}

func (emptySearch) SearchDocuments(context.Context, string, int) ([]model.DocumentDTO, error) {
	return nil, nil
}

// fakeLLM 按顺序吐出 chunks；hang 为 true 时吐完后阻塞到 ctx 取消。
type fakeLLM struct {
	mu       sync.Mutex
	chunks   []string
	err      error
	hang     bool
	received []llm.Message
}

func (f *fakeLLM) StreamChat(ctx context.Context, messages []llm.Message, _ *llm.GenerationParams) (<-chan llm.Delta, error) {
	f.mu.Lock()
	f.received = append([]llm.Message(nil), messages...)
	f.mu.Unlock()

	out := make(chan llm.Delta, len(f.chunks)+1)
	go func() {
		defer close(out)
		for _, c := range f.chunks {
			select {
			case out <- llm.Delta{Content: c}:
			case <-ctx.Done():
				return
			}
		}
		if f.err != nil {
			out <- llm.Delta{Err: f.err}
			return
		}
		if f.hang {
			<-ctx.Done()
		}
	}()
	return out, nil
}

func (f *fakeLLM) messages() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.received
}

type fakeProducer struct {
	produced []tasks.KnowledgeIngestTask
	err      error
}

func (f *fakeProducer) ProduceIngestTask(_ context.Context, task tasks.KnowledgeIngestTask) error {
	if f.err != nil {
		return f.err
	}
	f.produced = append(f.produced, task)
	return nil
}

type testEnv struct {
	sessions *memSessions
	crm      *fakeCRM
	access   AccessValidator
	llm      *fakeLLM
	chat     ChatService
}

func newTestEnv(llmClient *fakeLLM) *testEnv {
	sessions := newMemSessions()
	crm := newFakeCRM()
	access := NewAccessValidator(sessions, crm, nil, time.Hour)
	cfg := agent.DefaultConfig()
	cfg.GraphTimeout = 100 * time.Millisecond
	orch := agent.NewOrchestrator(crm, emptySearch{}, emptySearch{}, emptySearch{}, cfg)
	chat := NewChatService(access, sessions, orch, agent.NewAssembler(cfg), llmClient, PromptsFrom(config.LLMPromptConfig{}), 10)
	return &testEnv{sessions: sessions, crm: crm, access: access, llm: llmClient, chat: chat}
}

func drain(ch <-chan model.Frame) []model.Frame {
	var frames []model.Frame
	for f := range ch {
		frames = append(frames, f)
	}
	return frames
}

func frameTypes(frames []model.Frame) []string {
	types := make([]string, 0, len(frames))
	for _, f := range frames {
		types = append(types, f.Type)
	}
	return types
}

func llmUser(content string) llm.Message {
	return llm.Message{Role: model.RoleUser, Content: content}
}
