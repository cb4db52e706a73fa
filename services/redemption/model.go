package redemption

import (
	"time"

	"caffino-rewards/services/reward"
)

// FreshnessWindow is how long a redemption code stays presentable after
// it was generated. Staff must scan it within this window.
const FreshnessWindow = 5 * time.Minute

// Request holds the short-lived code a customer shows at the counter.
// One row per reward: re-requesting refreshes the code in place, so an
// older screenshot of the same reward stops resolving.
type Request struct {
	RequestID   string    `gorm:"column:request_id;primaryKey" json:"request_id"`
	RewardID    string    `gorm:"column:reward_id;uniqueIndex;not null" json:"reward_id"`
	Code        string    `gorm:"column:code;type:varchar(16);index;not null" json:"code"`
	RefreshedAt time.Time `gorm:"column:refreshed_at;not null" json:"refreshed_at"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Request) TableName() string {
	return "redemption_requests"
}

// Fresh reports whether the code may still be presented at now.
func (r *Request) Fresh(now time.Time) bool {
	return !now.After(r.RefreshedAt.Add(FreshnessWindow))
}

// Offer is a platform voucher a customer can buy with points.
type Offer struct {
	OfferID      string            `gorm:"column:offer_id;primaryKey" json:"offer_id"`
	Code         string            `gorm:"column:code;type:varchar(32);index" json:"code"`
	Name         string            `gorm:"column:name;type:varchar(255);not null" json:"name"`
	DiscountType reward.PayoutKind `gorm:"column:discount_type;type:varchar(32);not null" json:"discount_type"`
	Value        int64             `gorm:"column:value;not null" json:"value"`
	PointCost    int64             `gorm:"column:point_cost;not null" json:"point_cost"`
	ImageURL     string            `gorm:"column:image_url;type:text" json:"image_url"`
	IsActive     bool              `gorm:"column:is_active;not null" json:"is_active"`
	CreatedAt    time.Time         `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"column:updated_at" json:"updated_at"`
}

func (Offer) TableName() string {
	return "redemption_offers"
}

// defaultOffers are seeded on an empty catalog. Values in store
// currency, costs in points.
var defaultOffers = []Offer{
	{Name: "Rp20.000 off", DiscountType: reward.PayoutDiscountAmount, Value: 20000, PointCost: 200, IsActive: true},
	{Name: "Rp50.000 off", DiscountType: reward.PayoutDiscountAmount, Value: 50000, PointCost: 500, IsActive: true},
	{Name: "Rp100.000 off", DiscountType: reward.PayoutDiscountAmount, Value: 100000, PointCost: 1000, IsActive: true},
}
