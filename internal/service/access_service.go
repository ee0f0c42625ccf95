package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"crm-agent-go/internal/model"
	"crm-agent-go/internal/repository"
	"crm-agent-go/pkg/log"

	"github.com/google/uuid"
)

// PersonaDirectory 是解析 persona 编号所需的 CRM 查询能力。
type PersonaDirectory interface {
	CustomerByNumber(ctx context.Context, number string) repository.Lookup[model.Customer]
	AdvisorByNumber(ctx context.Context, number string) repository.Lookup[model.Advisor]
}

// AccessRequest 是调用方声明的身份信息。
type AccessRequest struct {
	RawIdentity     string
	CustomerPersona string
	AdvisorPersona  string
	SessionID       string
	UserType        string
}

// AccessGrant 是校验通过后可以安全追加消息的会话。
type AccessGrant struct {
	Session *model.Session
	Persona *model.Persona
	Created bool
}

// AccessValidator 是所有会话访问的唯一入口，其余组件信任它的输出。
type AccessValidator interface {
	Validate(ctx context.Context, req AccessRequest) (*AccessGrant, error)
	// AuthorizeSession 校验 rawIdentity 是否拥有该会话；会话不存在时返回 (nil, nil)。
	AuthorizeSession(ctx context.Context, sessionID, rawIdentity string) (*model.Session, error)
}

type accessValidator struct {
	sessions  repository.SessionRepository
	directory PersonaDirectory
	cache     repository.PersonaCache
	ttl       time.Duration
	now       func() time.Time
}

// NewAccessValidator 创建 AccessValidator。cache 可以为 nil。
func NewAccessValidator(sessions repository.SessionRepository, directory PersonaDirectory, cache repository.PersonaCache, ttl time.Duration) AccessValidator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &accessValidator{sessions: sessions, directory: directory, cache: cache, ttl: ttl, now: time.Now}
}

func (v *accessValidator) Validate(ctx context.Context, req AccessRequest) (*AccessGrant, error) {
	customerNo := strings.TrimSpace(req.CustomerPersona)
	advisorNo := strings.TrimSpace(req.AdvisorPersona)
	if customerNo != "" && advisorNo != "" {
		return nil, ambiguousPersona()
	}

	var persona *model.Persona
	var err error
	switch {
	case customerNo != "":
		persona, err = v.resolve(ctx, model.PersonaCustomer, customerNo)
	case advisorNo != "":
		persona, err = v.resolve(ctx, model.PersonaAdvisor, advisorNo)
	}
	if err != nil {
		return nil, err
	}

	identity := ParseIdentity(req.RawIdentity)
	var userID string
	if persona != nil {
		userID = persona.Number
		// 不透明令牌不参与比较，以 persona 编号为准
		if num, ok := identity.PersonaNumber(); ok && num != userID {
			return nil, identityMismatch(num, userID)
		}
	} else {
		if identity.IsZero() {
			return nil, noIdentity()
		}
		userID = identity.Value()
	}

	now := v.now()
	if isSessionID(req.SessionID) {
		session, err := v.sessions.GetSession(ctx, req.SessionID)
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		if session != nil && !session.Expired(now) {
			if !ownedBy(session, persona, userID) {
				log.Warnf("[AccessValidator] 会话 %s 的归属与当前调用方 %s 不一致", session.ID, userID)
				return nil, sessionOwnershipMismatch(session.ID)
			}
			v.refresh(ctx, session, req.UserType, now)
			return &AccessGrant{Session: session, Persona: persona}, nil
		}
	}

	if persona != nil {
		session, err := v.sessions.FindActiveByPersona(ctx, persona.Kind, persona.Number, now)
		if err != nil {
			return nil, fmt.Errorf("find session by persona: %w", err)
		}
		if session != nil {
			v.refresh(ctx, session, req.UserType, now)
			return &AccessGrant{Session: session, Persona: persona}, nil
		}
	}

	session := newSession(userID, persona, req.UserType, now, v.ttl)
	if err := v.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	log.Infof("[AccessValidator] 为 %s 创建了新会话 %s", userID, session.ID)
	return &AccessGrant{Session: session, Persona: persona, Created: true}, nil
}

func (v *accessValidator) AuthorizeSession(ctx context.Context, sessionID, rawIdentity string) (*model.Session, error) {
	identity := ParseIdentity(rawIdentity)
	if identity.IsZero() {
		return nil, noIdentity()
	}
	if !isSessionID(sessionID) {
		return nil, nil
	}
	session, err := v.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, nil
	}
	value := identity.Value()
	if value != session.OwnerID && value != session.CustomerPersona && value != session.AdvisorPersona {
		return nil, sessionOwnershipMismatch(sessionID)
	}
	return session, nil
}

// resolve 先查缓存再查 CRM，缓存故障时退化为直接查询。
func (v *accessValidator) resolve(ctx context.Context, kind model.PersonaKind, number string) (*model.Persona, error) {
	if v.cache != nil {
		cached, err := v.cache.Get(ctx, kind, number)
		if err != nil {
			log.Warnf("[AccessValidator] 读取 persona 缓存失败，直接查询 CRM: %v", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	var persona *model.Persona
	switch kind {
	case model.PersonaCustomer:
		l := v.directory.CustomerByNumber(ctx, number)
		switch l.Status {
		case repository.NotFound:
			return nil, personaNotFound(number)
		case repository.TransportError:
			return nil, fmt.Errorf("resolve customer persona: %w", l.Err)
		}
		persona = &model.Persona{Kind: kind, Number: l.Record.CustomerNumber, InternalID: l.Record.ID, Name: l.Record.FullName()}
	case model.PersonaAdvisor:
		l := v.directory.AdvisorByNumber(ctx, number)
		switch l.Status {
		case repository.NotFound:
			return nil, personaNotFound(number)
		case repository.TransportError:
			return nil, fmt.Errorf("resolve advisor persona: %w", l.Err)
		}
		persona = &model.Persona{Kind: kind, Number: l.Record.AdvisorNumber, InternalID: l.Record.ID, Name: l.Record.FullName()}
	}

	if v.cache != nil {
		if err := v.cache.Set(ctx, persona); err != nil {
			log.Warnf("[AccessValidator] 写入 persona 缓存失败: %v", err)
		}
	}
	return persona, nil
}

// ownedBy 比较会话此前存储的 persona 元数据，而不仅仅是原始身份字符串。
func ownedBy(s *model.Session, persona *model.Persona, userID string) bool {
	switch {
	case persona.IsCustomer():
		return s.CustomerPersona == persona.Number && s.AdvisorPersona == ""
	case persona.IsAdvisor():
		return s.AdvisorPersona == persona.Number && s.CustomerPersona == ""
	default:
		return s.CustomerPersona == "" && s.AdvisorPersona == "" && s.OwnerID == userID
	}
}

// refresh 只合并非身份字段；失败不影响本轮对话。
func (v *accessValidator) refresh(ctx context.Context, s *model.Session, userType string, now time.Time) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]string)
	}
	if userType != "" {
		s.Metadata[model.MetaUserType] = userType
	}
	s.Metadata[model.MetaLastSeenAt] = now.UTC().Format(time.RFC3339)
	if err := v.sessions.UpdateSessionMetadata(ctx, s.ID, s.Metadata); err != nil {
		log.Warnf("[AccessValidator] 刷新会话 %s 元数据失败: %v", s.ID, err)
	}
}

func newSession(userID string, persona *model.Persona, userType string, now time.Time, ttl time.Duration) *model.Session {
	s := &model.Session{
		ID:        uuid.NewString(),
		OwnerID:   userID,
		Metadata:  map[string]string{model.MetaLastSeenAt: now.UTC().Format(time.RFC3339)},
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if userType != "" {
		s.Metadata[model.MetaUserType] = userType
	}
	switch {
	case persona.IsCustomer():
		s.CustomerPersona = persona.Number
		s.Metadata[model.MetaCustomerPersona] = persona.Number
		s.Metadata[model.MetaCustomerID] = strconv.FormatUint(uint64(persona.InternalID), 10)
	case persona.IsAdvisor():
		s.AdvisorPersona = persona.Number
		s.Metadata[model.MetaAdvisorPersona] = persona.Number
		s.Metadata[model.MetaAdvisorID] = strconv.FormatUint(uint64(persona.InternalID), 10)
	}
	return s
}
