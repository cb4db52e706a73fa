package ledger

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Transaction is one immutable ledger row. Every point movement writes
// at least one row; settlement of a point payout writes a matched
// credit/debit pair so the ledger always sums to the balances it feeds.
type Transaction struct {
	TransactionID   string         `gorm:"column:transaction_id;primaryKey" json:"transaction_id"`
	TransactionCode string         `gorm:"column:transaction_code;type:varchar(64);index;not null" json:"transaction_code"`
	UserID          string         `gorm:"column:user_id;index;not null" json:"user_id"`
	OutletID        *string        `gorm:"column:outlet_id;index" json:"outlet_id,omitempty"`
	PointDelta      int64          `gorm:"column:point_delta;not null" json:"point_delta"`
	Content         string         `gorm:"column:content;type:varchar(255)" json:"content"`
	Metadata        datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt       time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// Entry is the input for one ledger row.
type Entry struct {
	UserID     string
	OutletID   *string
	PointDelta int64
	Content    string
	Metadata   datatypes.JSON
}

// GenerateTransactionCode is the offline fallback when no sequence
// backend is wired. Date plus six random hex chars, merchant facing.
func GenerateTransactionCode() (string, error) {
	datePart := time.Now().Format("20060102")

	r := make([]byte, 3)
	if _, err := rand.Read(r); err != nil {
		return "", err
	}
	randomPart := strings.ToUpper(fmt.Sprintf("%x", r))

	return fmt.Sprintf("TXN-%s-%s", datePart, randomPart), nil
}
