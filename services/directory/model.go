package directory

import (
	"time"

	"gorm.io/datatypes"
)

type UserRole string

const (
	RoleCustomer      UserRole = "CUSTOMER"
	RoleBusinessOwner UserRole = "BUSINESS_OWNER"
	RoleBusinessStaff UserRole = "BUSINESS_STAFF"
	RoleAdmin         UserRole = "ADMIN"
)

// User is a directory entry for any participant: customers, merchant
// owners and their outlet staff. Point is the spendable balance and is
// only ever moved with atomic signed deltas.
type User struct {
	UserID    string    `gorm:"column:user_id;primaryKey" json:"user_id"`
	Role      UserRole  `gorm:"column:role;type:varchar(32);not null;default:'CUSTOMER'" json:"role"`
	Email     string    `gorm:"column:email;type:varchar(255)" json:"email"`
	Phone     string    `gorm:"column:phone;type:varchar(32)" json:"phone"`
	FirstName string    `gorm:"column:first_name;type:varchar(100)" json:"first_name"`
	LastName  string    `gorm:"column:last_name;type:varchar(100)" json:"last_name"`
	Point     int64     `gorm:"column:point;not null;default:0" json:"point"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Outlet is a physical location operated by a merchant owner. Staff
// settle rewards at an outlet, and check-ins are recorded per outlet.
type Outlet struct {
	OutletID    string    `gorm:"column:outlet_id;primaryKey" json:"outlet_id"`
	OwnerUserID string    `gorm:"column:owner_user_id;index;not null" json:"owner_user_id"`
	Name        string    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Address     string    `gorm:"column:address;type:text" json:"address"`
	Phone       string    `gorm:"column:phone;type:varchar(32)" json:"phone"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Outlet) TableName() string {
	return "outlets"
}

// CheckIn counts the visits of one user at one outlet. A user's first
// check-in at any outlet of a merchant is what stops them from claiming
// that merchant's referral rewards as a "new customer".
type CheckIn struct {
	CheckInID  string         `gorm:"column:check_in_id;primaryKey" json:"check_in_id"`
	UserID     string         `gorm:"column:user_id;uniqueIndex:idx_check_in_user_outlet;not null" json:"user_id"`
	OutletID   string         `gorm:"column:outlet_id;uniqueIndex:idx_check_in_user_outlet;not null" json:"outlet_id"`
	VisitCount int64          `gorm:"column:visit_count;not null;default:0" json:"visit_count"`
	Consents   datatypes.JSON `gorm:"column:consents" json:"consents,omitempty"`
	CreatedAt  time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (CheckIn) TableName() string {
	return "check_ins"
}
