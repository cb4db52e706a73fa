package reward

import (
	"time"

	"gorm.io/datatypes"
)

type PayoutKind string

const (
	PayoutPoint          PayoutKind = "POINT"
	PayoutDiscountRate   PayoutKind = "DISCOUNT_PERCENT"
	PayoutDiscountAmount PayoutKind = "DISCOUNT_AMOUNT"
)

// PayoutSource records which side of the program earned the payout.
type PayoutSource string

const (
	SourceReferrer PayoutSource = "REFERRER"
	SourceReferred PayoutSource = "REFERRED"
	SourceRedeem   PayoutSource = "REDEEM"
)

// Reward is a claimable benefit owned by one user. Referral claims link
// it to a campaign and the referrer, voucher exchanges link it to the
// redemption offer instead. A reward settles at most once: the is_used
// flip is guarded so two settlements can never both win.
type Reward struct {
	RewardID         string         `gorm:"column:reward_id;primaryKey" json:"reward_id"`
	OwnerUserID      string         `gorm:"column:owner_user_id;index;uniqueIndex:idx_reward_owner_campaign" json:"owner_user_id"`
	CampaignID       *string        `gorm:"column:campaign_id;index;uniqueIndex:idx_reward_owner_campaign" json:"campaign_id,omitempty"`
	RedemptionID     *string        `gorm:"column:redemption_id" json:"redemption_id,omitempty"`
	ReferredByUserID *string        `gorm:"column:referred_by_user_id;index" json:"referred_by_user_id,omitempty"`
	ExpireDate       time.Time      `gorm:"column:expire_date;index;not null" json:"expire_date"`
	IsUsed           bool           `gorm:"column:is_used;not null;default:false" json:"is_used"`
	UseDate          *time.Time     `gorm:"column:use_date" json:"use_date,omitempty"`
	UsePlaceID       *string        `gorm:"column:use_place_id" json:"use_place_id,omitempty"`
	Metadata         datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt        time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"column:updated_at" json:"updated_at"`

	Payouts []Payout `gorm:"foreignKey:RewardID;references:RewardID" json:"payouts,omitempty"`
}

func (Reward) TableName() string {
	return "rewards"
}

// Redeemable reports whether the reward can still settle at now.
func (r *Reward) Redeemable(now time.Time) bool {
	return !r.IsUsed && r.ExpireDate.After(now)
}

// Payout is one line item of a reward. Position keeps the original
// ordering so settlement and display walk the lines deterministically.
type Payout struct {
	PayoutID          string       `gorm:"column:payout_id;primaryKey" json:"payout_id"`
	RewardID          string       `gorm:"column:reward_id;index;not null" json:"reward_id"`
	Position          int          `gorm:"column:position;not null" json:"position"`
	BeneficiaryUserID string       `gorm:"column:beneficiary_user_id;not null" json:"beneficiary_user_id"`
	Kind              PayoutKind   `gorm:"column:kind;type:varchar(32);not null" json:"kind"`
	Value             int64        `gorm:"column:value;not null" json:"value"`
	Source            PayoutSource `gorm:"column:source;type:varchar(16);not null" json:"source"`
}

func (Payout) TableName() string {
	return "payouts"
}
