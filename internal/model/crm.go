package model

import "time"

// PersonaKind 区分客户与顾问两种 persona。
type PersonaKind string

const (
	PersonaCustomer PersonaKind = "customer"
	PersonaAdvisor  PersonaKind = "advisor"
)

// Persona 是解析后的调用方身份，InternalID 用于后续 CRM 关联查询。
type Persona struct {
	Kind       PersonaKind `json:"kind"`
	Number     string      `json:"number"`
	InternalID uint        `json:"internalId"`
	Name       string      `json:"name"`
}

// IsCustomer 判断是否为客户 persona。
func (p *Persona) IsCustomer() bool {
	return p != nil && p.Kind == PersonaCustomer
}

// IsAdvisor 判断是否为顾问 persona。
func (p *Persona) IsAdvisor() bool {
	return p != nil && p.Kind == PersonaAdvisor
}

// Customer 对应 customers 表。
type Customer struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	CustomerNumber string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"customerNumber"`
	FirstName      string    `gorm:"type:varchar(100)" json:"firstName"`
	LastName       string    `gorm:"type:varchar(100)" json:"lastName"`
	Email          string    `gorm:"type:varchar(255)" json:"email"`
	Phone          string    `gorm:"type:varchar(50)" json:"phone"`
	Status         string    `gorm:"type:varchar(32)" json:"status"`
	AdvisorID      *uint     `json:"advisorId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (Customer) TableName() string { return "customers" }

// FullName 返回客户全名。
func (c Customer) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Advisor 对应 advisors 表。
type Advisor struct {
	ID              uint    `gorm:"primaryKey" json:"id"`
	AdvisorNumber   string  `gorm:"type:varchar(32);uniqueIndex;not null" json:"advisorNumber"`
	FirstName       string  `gorm:"type:varchar(100)" json:"firstName"`
	LastName        string  `gorm:"type:varchar(100)" json:"lastName"`
	Email           string  `gorm:"type:varchar(255)" json:"email"`
	Specialization  string  `gorm:"type:varchar(100);index" json:"specialization"`
	Rating          float64 `json:"rating"`
	YearsExperience int     `json:"yearsExperience"`
	Available       bool    `gorm:"not null;default:true" json:"available"`
}

func (Advisor) TableName() string { return "advisors" }

// FullName 返回顾问全名。
func (a Advisor) FullName() string {
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// Policy 对应 policies 表。
type Policy struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	PolicyNumber string     `gorm:"type:varchar(32);uniqueIndex" json:"policyNumber"`
	CustomerID   uint       `gorm:"index;not null" json:"customerId"`
	Type         string     `gorm:"type:varchar(64)" json:"type"`
	Status       string     `gorm:"type:varchar(32)" json:"status"`
	Premium      float64    `json:"premium"`
	Coverage     float64    `json:"coverage"`
	StartDate    time.Time  `json:"startDate"`
	EndDate      *time.Time `json:"endDate,omitempty"`
}

func (Policy) TableName() string { return "policies" }

// Claim 对应 claims 表。
type Claim struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ClaimNumber string    `gorm:"type:varchar(32);uniqueIndex" json:"claimNumber"`
	CustomerID  uint      `gorm:"index;not null" json:"customerId"`
	PolicyID    uint      `gorm:"index" json:"policyId"`
	Status      string    `gorm:"type:varchar(32)" json:"status"`
	Amount      float64   `json:"amount"`
	Description string    `gorm:"type:text" json:"description"`
	FiledAt     time.Time `json:"filedAt"`
}

func (Claim) TableName() string { return "claims" }

// Interaction 对应 interactions 表，记录客户与顾问的沟通。
type Interaction struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CustomerID uint      `gorm:"index;not null" json:"customerId"`
	AdvisorID  *uint     `json:"advisorId,omitempty"`
	Channel    string    `gorm:"type:varchar(32)" json:"channel"`
	Summary    string    `gorm:"type:text" json:"summary"`
	OccurredAt time.Time `gorm:"index" json:"occurredAt"`
}

func (Interaction) TableName() string { return "interactions" }

// Task 对应 tasks 表，属于顾问的待办。
type Task struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	AdvisorID  uint       `gorm:"index;not null" json:"advisorId"`
	CustomerID *uint      `json:"customerId,omitempty"`
	Title      string     `gorm:"type:varchar(255)" json:"title"`
	Status     string     `gorm:"type:varchar(32)" json:"status"`
	Priority   string     `gorm:"type:varchar(16)" json:"priority"`
	DueDate    *time.Time `json:"dueDate,omitempty"`
}

func (Task) TableName() string { return "tasks" }

// Document 对应 documents 表，是知识库中文档的元数据。
type Document struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"type:varchar(255);index" json:"title"`
	Category    string    `gorm:"type:varchar(64)" json:"category"`
	Description string    `gorm:"type:text" json:"description"`
	ObjectName  string    `gorm:"type:varchar(255)" json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (Document) TableName() string { return "documents" }

// DocumentDTO 是文档检索工具的输出，附带临时下载链接。
type DocumentDTO struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	Description string `json:"description"`
	URL         string `json:"url,omitempty"`
}
