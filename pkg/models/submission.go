package models

import "time"

// Status is the review state of a submission.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Statuses lists every assignable status in display order.
var Statuses = []Status{StatusPending, StatusApproved, StatusRejected}

// Valid reports whether s is an assignable status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Submission is one user's e-waste item offered to one target company.
type Submission struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	UserEmail string    `json:"user_email"`
	ItemName  string    `json:"name"`
	Quantity  int       `json:"quantity"`
	Weight    float64   `json:"weight"` // kilograms
	CompanyID string    `json:"company_id"`
	ImageRef  string    `json:"image_url,omitempty"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Prize     int       `json:"prize"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats is the aggregate view of one company's submissions.
type Stats struct {
	Total           int     `json:"total"`
	Pending         int     `json:"pending"`
	Approved        int     `json:"approved"`
	Rejected        int     `json:"rejected"`
	TotalWeight     float64 `json:"total_weight"`
	TotalValue      float64 `json:"total_value"`
	ApprovalRate    float64 `json:"approval_rate"`
	ApprovalPercent int     `json:"approval_percent"`
}
