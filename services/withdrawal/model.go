package withdrawal

import (
	"time"
)

// Status of a withdrawal request. Only PENDING rows can move.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
)

// Withdrawal is a customer's request to cash out points. The balance
// is untouched until staff approve; a pending row reserves nothing.
type Withdrawal struct {
	WithdrawalID string    `gorm:"column:withdrawal_id;primaryKey" json:"withdrawal_id"`
	UserID       string    `gorm:"column:user_id;index;not null" json:"user_id"`
	Point        int64     `gorm:"column:point;not null" json:"point"`
	Status       Status    `gorm:"column:status;type:varchar(16);index;not null" json:"status"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Withdrawal) TableName() string {
	return "withdrawal_requests"
}
