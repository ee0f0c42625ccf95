package service

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// personaNumberPattern 匹配 CUST-001、ADV-042 这类 persona 编号。
var personaNumberPattern = regexp.MustCompile(`^(CUST|ADV)-\d{3,}$`)

// IdentityKind 区分调用方原始身份的形态。
type IdentityKind int

const (
	IdentityNone IdentityKind = iota
	IdentityPersonaNumber
	IdentityOpaqueToken
)

// Identity 是调用方声明的原始身份，在边界处解析一次。
// 它要么是 persona 编号，要么是一个不透明的令牌（例如 UUID）。
type Identity struct {
	kind  IdentityKind
	value string
}

// ParseIdentity 解析原始身份字符串，空白字符串视为没有身份。
func ParseIdentity(raw string) Identity {
	v := strings.TrimSpace(raw)
	switch {
	case v == "":
		return Identity{}
	case personaNumberPattern.MatchString(v):
		return Identity{kind: IdentityPersonaNumber, value: v}
	default:
		return Identity{kind: IdentityOpaqueToken, value: v}
	}
}

func (i Identity) Kind() IdentityKind { return i.kind }
func (i Identity) Value() string      { return i.value }
func (i Identity) IsZero() bool       { return i.kind == IdentityNone }

// PersonaNumber 在身份为 persona 编号时返回它。
func (i Identity) PersonaNumber() (string, bool) {
	return i.value, i.kind == IdentityPersonaNumber
}

// isSessionID 判断字符串是否为合法的会话 ID（标准 UUID 格式）。
func isSessionID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
