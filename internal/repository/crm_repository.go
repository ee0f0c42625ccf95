package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crm-agent-go/internal/model"
	"crm-agent-go/pkg/retry"

	"gorm.io/gorm"
)

// LookupStatus 描述单条记录查询的结果类别。
type LookupStatus int

const (
	Found LookupStatus = iota
	NotFound
	TransportError
)

func (s LookupStatus) String() string {
	switch s {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	default:
		return "transport_error"
	}
}

// Lookup 是单条记录查询的结果。“不存在”不是错误，只有传输层失败才会带上 Err。
type Lookup[T any] struct {
	Status LookupStatus
	Record *T
	Err    error
}

// FoundRecord 构造一个命中的结果。
func FoundRecord[T any](record *T) Lookup[T] {
	return Lookup[T]{Status: Found, Record: record}
}

// Missing 构造一个未命中的结果。
func Missing[T any]() Lookup[T] {
	return Lookup[T]{Status: NotFound}
}

// Failed 构造一个传输失败的结果。
func Failed[T any](err error) Lookup[T] {
	return Lookup[T]{Status: TransportError, Err: err}
}

// CRMRepository 是 CRM 数据的只读访问接口。
type CRMRepository interface {
	CustomerByNumber(ctx context.Context, number string) Lookup[model.Customer]
	AdvisorByNumber(ctx context.Context, number string) Lookup[model.Advisor]
	CustomerPolicies(ctx context.Context, customerID uint) ([]model.Policy, error)
	CustomerClaims(ctx context.Context, customerID uint) ([]model.Claim, error)
	CustomerInteractions(ctx context.Context, customerID uint, limit int) ([]model.Interaction, error)
	AdvisorTasks(ctx context.Context, advisorID uint) ([]model.Task, error)
	AdvisorClients(ctx context.Context, advisorID uint) ([]model.Customer, error)
	// SearchDocuments 按关键词在标题、描述与分类中做 OR 匹配。
	SearchDocuments(ctx context.Context, terms []string, limit int) ([]model.Document, error)
	// RecommendAdvisors 返回评分最高的可用顾问，specialization 为空时不过滤。
	RecommendAdvisors(ctx context.Context, specialization string, limit int) ([]model.Advisor, error)
}

type crmRepository struct {
	db     *gorm.DB
	policy retry.Policy
}

// NewCRMRepository 创建一个新的 CRMRepository 实例。
func NewCRMRepository(db *gorm.DB, policy retry.Policy) CRMRepository {
	return &crmRepository{db: db, policy: policy}
}

func (r *crmRepository) find(ctx context.Context, dest any, build func(db *gorm.DB) *gorm.DB) error {
	return retry.Do(ctx, r.policy, func(ctx context.Context) error {
		return build(r.db.WithContext(ctx)).Find(dest).Error
	})
}

func lookupOne[T any](ctx context.Context, r *crmRepository, column, value string) Lookup[T] {
	var record T
	err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		return r.db.WithContext(ctx).Where(column+" = ?", value).First(&record).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Missing[T]()
	}
	if err != nil {
		return Failed[T](fmt.Errorf("lookup by %s: %w", column, err))
	}
	return FoundRecord(&record)
}

func (r *crmRepository) CustomerByNumber(ctx context.Context, number string) Lookup[model.Customer] {
	return lookupOne[model.Customer](ctx, r, "customer_number", number)
}

func (r *crmRepository) AdvisorByNumber(ctx context.Context, number string) Lookup[model.Advisor] {
	return lookupOne[model.Advisor](ctx, r, "advisor_number", number)
}

func (r *crmRepository) CustomerPolicies(ctx context.Context, customerID uint) ([]model.Policy, error) {
	var policies []model.Policy
	err := r.find(ctx, &policies, func(db *gorm.DB) *gorm.DB {
		return db.Where("customer_id = ?", customerID).Order("start_date DESC")
	})
	return policies, err
}

func (r *crmRepository) CustomerClaims(ctx context.Context, customerID uint) ([]model.Claim, error) {
	var claims []model.Claim
	err := r.find(ctx, &claims, func(db *gorm.DB) *gorm.DB {
		return db.Where("customer_id = ?", customerID).Order("filed_at DESC")
	})
	return claims, err
}

func (r *crmRepository) CustomerInteractions(ctx context.Context, customerID uint, limit int) ([]model.Interaction, error) {
	var interactions []model.Interaction
	err := r.find(ctx, &interactions, func(db *gorm.DB) *gorm.DB {
		q := db.Where("customer_id = ?", customerID).Order("occurred_at DESC")
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q
	})
	return interactions, err
}

func (r *crmRepository) AdvisorTasks(ctx context.Context, advisorID uint) ([]model.Task, error) {
	var tasks []model.Task
	err := r.find(ctx, &tasks, func(db *gorm.DB) *gorm.DB {
		return db.Where("advisor_id = ?", advisorID).Order("due_date IS NULL, due_date ASC")
	})
	return tasks, err
}

func (r *crmRepository) AdvisorClients(ctx context.Context, advisorID uint) ([]model.Customer, error) {
	var customers []model.Customer
	err := r.find(ctx, &customers, func(db *gorm.DB) *gorm.DB {
		return db.Where("advisor_id = ?", advisorID).Order("last_name ASC")
	})
	return customers, err
}

func (r *crmRepository) SearchDocuments(ctx context.Context, terms []string, limit int) ([]model.Document, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	var docs []model.Document
	err := r.find(ctx, &docs, func(db *gorm.DB) *gorm.DB {
		cond := r.db.Where("1 = 0")
		for _, t := range terms {
			like := "%" + escapeLike(strings.TrimSpace(t)) + "%"
			cond = cond.Or("title LIKE ? OR description LIKE ? OR category LIKE ?", like, like, like)
		}
		q := db.Where(cond).Order("created_at DESC")
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q
	})
	return docs, err
}

func (r *crmRepository) RecommendAdvisors(ctx context.Context, specialization string, limit int) ([]model.Advisor, error) {
	var advisors []model.Advisor
	err := r.find(ctx, &advisors, func(db *gorm.DB) *gorm.DB {
		q := db.Where("available = ?", true)
		if specialization != "" {
			q = q.Where("specialization = ?", specialization)
		}
		q = q.Order("rating DESC").Order("years_experience DESC")
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q
	})
	return advisors, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
