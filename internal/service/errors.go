package service

import (
	"errors"
	"fmt"
	"net/http"

	"crm-agent-go/pkg/errx"
)

// 身份相关的错误。它们对请求是终止性的，不会被重试，也不会留下部分状态。
var (
	ErrPersonaNotFound          = errors.New("persona not found")
	ErrAmbiguousPersona         = errors.New("both customer and advisor persona supplied")
	ErrIdentityMismatch         = errors.New("caller identity does not match persona")
	ErrSessionOwnershipMismatch = errors.New("session belongs to another identity")
	ErrNoIdentity               = errors.New("no identity supplied")
)

// ErrEmptyMessage 表示聊天消息为空。
var ErrEmptyMessage = errors.New("message is empty")

func personaNotFound(number string) error {
	return errx.New(fmt.Errorf("%w: %s", ErrPersonaNotFound, number), http.StatusNotFound, "persona not found")
}

func ambiguousPersona() error {
	return errx.New(ErrAmbiguousPersona, http.StatusBadRequest, "select either a customer or an advisor persona, not both")
}

func identityMismatch(raw, resolved string) error {
	return errx.New(fmt.Errorf("%w: %s != %s", ErrIdentityMismatch, raw, resolved), http.StatusForbidden, "identity does not match the selected persona")
}

func sessionOwnershipMismatch(sessionID string) error {
	return errx.New(fmt.Errorf("%w: %s", ErrSessionOwnershipMismatch, sessionID), http.StatusForbidden, "session does not belong to the current user")
}

func noIdentity() error {
	return errx.New(ErrNoIdentity, http.StatusUnauthorized, "an identity or persona is required")
}

func emptyMessage() error {
	return errx.New(ErrEmptyMessage, http.StatusBadRequest, "message is required")
}

// IsIdentityError 判断错误是否属于身份校验失败。
func IsIdentityError(err error) bool {
	return errors.Is(err, ErrPersonaNotFound) ||
		errors.Is(err, ErrAmbiguousPersona) ||
		errors.Is(err, ErrIdentityMismatch) ||
		errors.Is(err, ErrSessionOwnershipMismatch) ||
		errors.Is(err, ErrNoIdentity)
}
