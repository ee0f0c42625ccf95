package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"crm-agent-go/internal/model"
	"crm-agent-go/pkg/errx"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentity(t *testing.T) {
	tests := []struct {
		raw  string
		kind IdentityKind
	}{
		{"", IdentityNone},
		{"   ", IdentityNone},
		{"CUST-001", IdentityPersonaNumber},
		{"ADV-1234", IdentityPersonaNumber},
		{"CUST-01", IdentityOpaqueToken},
		{"cust-001", IdentityOpaqueToken},
		{"3f0c1d8e-2b7a-4c55-9a3e-0d8f6f1b2c44", IdentityOpaqueToken},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.kind, ParseIdentity(tt.raw).Kind())
		})
	}
}

func TestValidate_CreatesSessionBoundToPersona(t *testing.T) {
	env := newTestEnv(&fakeLLM{})
	grant, err := env.access.Validate(context.Background(), AccessRequest{
		RawIdentity:     "CUST-001",
		CustomerPersona: "CUST-001",
		UserType:        "customer",
	})
	require.NoError(t, err)
	require.True(t, grant.Created)
	assert.Equal(t, "CUST-001", grant.Session.CustomerPersona)
	assert.Empty(t, grant.Session.AdvisorPersona)
	assert.Equal(t, "CUST-001", grant.Session.OwnerID)
	assert.Equal(t, "7", grant.Session.Metadata[model.MetaCustomerID])
	assert.Equal(t, "customer", grant.Session.Metadata[model.MetaUserType])
	assert.Equal(t, uint(7), grant.Persona.InternalID)
	assert.Equal(t, "Jane Doe", grant.Persona.Name)
	assert.True(t, isSessionID(grant.Session.ID))
}

func TestValidate_ReusesSessionByIDAndByPersona(t *testing.T) {
	env := newTestEnv(&fakeLLM{})
	ctx := context.Background()
	first, err := env.access.Validate(ctx, AccessRequest{CustomerPersona: "CUST-001"})
	require.NoError(t, err)

	byID, err := env.access.Validate(ctx, AccessRequest{CustomerPersona: "CUST-001", SessionID: first.Session.ID})
	require.NoError(t, err)
	assert.False(t, byID.Created)
	assert.Equal(t, first.Session.ID, byID.Session.ID)

	byPersona, err := env.access.Validate(ctx, AccessRequest{CustomerPersona: "CUST-001"})
	require.NoError(t, err)
	assert.False(t, byPersona.Created)
	assert.Equal(t, first.Session.ID, byPersona.Session.ID)
}

func TestValidate_SessionOwnedByAnotherPersona(t *testing.T) {
	env := newTestEnv(&fakeLLM{})
	ctx := context.Background()
	first, err := env.access.Validate(ctx, AccessRequest{CustomerPersona: "CUST-001"})
	require.NoError(t, err)

	_, err = env.access.Validate(ctx, AccessRequest{CustomerPersona: "CUST-002", SessionID: first.Session.ID})
	require.ErrorIs(t, err, ErrSessionOwnershipMismatch)
	status, _ := errx.StatusOf(err)
	assert.Equal(t, http.StatusForbidden, status)

	// advisor 也不能接管客户的会话
	_, err = env.access.Validate(ctx, AccessRequest{AdvisorPersona: "ADV-001", SessionID: first.Session.ID})
	require.ErrorIs(t, err, ErrSessionOwnershipMismatch)

	stored, err := env.sessions.GetSession(ctx, first.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, "CUST-001", stored.CustomerPersona)
	assert.Empty(t, stored.AdvisorPersona)
}

func TestValidate_IdentityMismatch(t *testing.T) {
	env := newTestEnv(&fakeLLM{})
	_, err := env.access.Validate(context.Background(), AccessRequest{RawIdentity: "CUST-002", CustomerPersona: "CUST-001"})
	require.ErrorIs(t, err, ErrIdentityMismatch)
	assert.True(t, IsIdentityError(err))
	assert.Empty(t, env.sessions.sessions)
}

func TestValidate_OpaqueTokenIsNotCompared(t *testing.T) {
	env := newTestEnv(&fakeLLM{})
	grant, err := env.access.Validate(context.Background(), AccessRequest{
		RawIdentity:     uuid.NewString(),
		CustomerPersona: "CUST-001",
	})
	require.NoError(t, err)
	assert.Equal(t, "CUST-001", grant.Session.OwnerID)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		req    AccessRequest
		target error
		status int
	}{
		{"no identity", AccessRequest{}, ErrNoIdentity, http.StatusUnauthorized},
		{"ambiguous", AccessRequest{CustomerPersona: "CUST-001", AdvisorPersona: "ADV-001"}, ErrAmbiguousPersona, http.StatusBadRequest},
		{"unknown customer", AccessRequest{CustomerPersona: "CUST-999"}, ErrPersonaNotFound, http.StatusNotFound},
		{"unknown advisor", AccessRequest{AdvisorPersona: "ADV-999"}, ErrPersonaNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(&fakeLLM{})
			_, err := env.access.Validate(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.target)
			status, _ := errx.StatusOf(err)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestValidate_CRMDownIsNotAnIdentityError(t *testing.T) {
	env := newTestEnv(&fakeLLM{})
	env.crm.down = true
	_, err := env.access.Validate(context.Background(), AccessRequest{CustomerPersona: "CUST-001"})
	require.ErrorIs(t, err, errCRMDown)
	assert.False(t, IsIdentityError(err))
}

func TestValidate_AnonymousSessions(t *testing.T) {
	env := newTestEnv(&fakeLLM{})
	ctx := context.Background()
	owner := uuid.NewString()
	first, err := env.access.Validate(ctx, AccessRequest{RawIdentity: owner})
	require.NoError(t, err)
	assert.Empty(t, first.Session.CustomerPersona)
	assert.Nil(t, first.Persona)

	again, err := env.access.Validate(ctx, AccessRequest{RawIdentity: owner, SessionID: first.Session.ID})
	require.NoError(t, err)
	assert.Equal(t, first.Session.ID, again.Session.ID)

	_, err = env.access.Validate(ctx, AccessRequest{RawIdentity: "someone-else", SessionID: first.Session.ID})
	require.ErrorIs(t, err, ErrSessionOwnershipMismatch)
}

func TestValidate_ExpiredSessionIsReplaced(t *testing.T) {
	env := newTestEnv(&fakeLLM{})
	ctx := context.Background()
	first, err := env.access.Validate(ctx, AccessRequest{CustomerPersona: "CUST-001"})
	require.NoError(t, err)

	v := env.access.(*accessValidator)
	v.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	next, err := env.access.Validate(ctx, AccessRequest{CustomerPersona: "CUST-001", SessionID: first.Session.ID})
	require.NoError(t, err)
	assert.True(t, next.Created)
	assert.NotEqual(t, first.Session.ID, next.Session.ID)
}

func TestValidate_MalformedSessionIDFallsThrough(t *testing.T) {
	env := newTestEnv(&fakeLLM{})
	grant, err := env.access.Validate(context.Background(), AccessRequest{CustomerPersona: "CUST-001", SessionID: "not-a-session"})
	require.NoError(t, err)
	assert.True(t, grant.Created)
}

func TestAuthorizeSession(t *testing.T) {
	env := newTestEnv(&fakeLLM{})
	ctx := context.Background()
	grant, err := env.access.Validate(ctx, AccessRequest{RawIdentity: uuid.NewString(), CustomerPersona: "CUST-001"})
	require.NoError(t, err)

	s, err := env.access.AuthorizeSession(ctx, grant.Session.ID, "CUST-001")
	require.NoError(t, err)
	assert.Equal(t, grant.Session.ID, s.ID)

	_, err = env.access.AuthorizeSession(ctx, grant.Session.ID, "CUST-002")
	require.ErrorIs(t, err, ErrSessionOwnershipMismatch)

	_, err = env.access.AuthorizeSession(ctx, grant.Session.ID, "")
	require.ErrorIs(t, err, ErrNoIdentity)

	s, err = env.access.AuthorizeSession(ctx, uuid.NewString(), "CUST-001")
	require.NoError(t, err)
	assert.Nil(t, s)
}
