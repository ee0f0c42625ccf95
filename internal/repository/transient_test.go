package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"crm-agent-go/internal/config"
	"crm-agent-go/internal/model"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadlock", &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}, true},
		{"lock wait", fmt.Errorf("update: %w", &mysql.MySQLError{Number: 1205}), true},
		{"server gone", &mysql.MySQLError{Number: 2006}, true},
		{"duplicate key", &mysql.MySQLError{Number: 1062}, false},
		{"access denied", &mysql.MySQLError{Number: 1045}, false},
		{"syntax", &mysql.MySQLError{Number: 1064}, false},
		{"bad conn", driver.ErrBadConn, true},
		{"unexpected eof", fmt.Errorf("read: %w", io.ErrUnexpectedEOF), true},
		{"net timeout", timeoutErr{}, true},
		{"cancelled", context.Canceled, false},
		{"plain", errors.New("record invalid"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%`, escapeLike("50%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, "claim", escapeLike("claim"))
}

func TestLookupStatus(t *testing.T) {
	found := FoundRecord(&model.Customer{CustomerNumber: "CUST-001"})
	assert.Equal(t, Found, found.Status)
	assert.Equal(t, "found", found.Status.String())
	assert.Equal(t, NotFound, Missing[model.Customer]().Status)

	failed := Failed[model.Advisor](driver.ErrBadConn)
	assert.Equal(t, "transport_error", failed.Status.String())
	assert.ErrorIs(t, failed.Err, driver.ErrBadConn)
}

func TestPersonaKey(t *testing.T) {
	assert.Equal(t, "persona:customer:CUST-001", personaKey(model.PersonaCustomer, "CUST-001"))
}

func TestRetryPolicy(t *testing.T) {
	p := RetryPolicy(config.RetryConfig{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second})
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 2*time.Second, p.MaxDelay)
	assert.True(t, p.Retryable(&mysql.MySQLError{Number: 1213}))
	assert.False(t, p.Retryable(&mysql.MySQLError{Number: 1045}))
}
