package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"

	"crm-agent-go/internal/config"
	"crm-agent-go/pkg/retry"

	"github.com/go-sql-driver/mysql"
)

// 可重试的 MySQL 错误码：锁等待超时、死锁、连接断开
var transientMySQLCodes = map[uint16]struct{}{
	1205: {}, // ER_LOCK_WAIT_TIMEOUT
	1213: {}, // ER_LOCK_DEADLOCK
	2006: {}, // CR_SERVER_GONE_ERROR
	2013: {}, // CR_SERVER_LOST
	1040: {}, // ER_CON_COUNT_ERROR
}

// IsTransient 判断错误是否为网络/连接类的瞬时错误。
// 认证失败、语法错误、约束冲突等都不会被重试。
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		_, ok := transientMySQLCodes[myErr.Number]
		return ok
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// RetryPolicy 根据配置构造数据库访问使用的重试策略。
func RetryPolicy(cfg config.RetryConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
		Retryable:   IsTransient,
	}
}
