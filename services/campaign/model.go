package campaign

import (
	"time"
)

// RewardType names the kind of benefit a campaign grants the referred
// customer. The referrer side is always points.
type RewardType string

const (
	RewardPoint          RewardType = "POINT"
	RewardDiscountRate   RewardType = "DISCOUNT_PERCENT"
	RewardDiscountAmount RewardType = "DISCOUNT_AMOUNT"
)

// Campaign is a merchant-owned referral program. ParticipantsCount is an
// advisory counter maintained asynchronously; capacity checks read it as
// a best-effort limit, not a hard reservation.
type Campaign struct {
	CampaignID          string     `gorm:"column:campaign_id;primaryKey" json:"campaign_id"`
	OwnerUserID         string     `gorm:"column:owner_user_id;index;not null" json:"owner_user_id"`
	Name                string     `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Description         string     `gorm:"column:description;type:text" json:"description"`
	TermsAndConditions  string     `gorm:"column:terms_and_conditions;type:text" json:"terms_and_conditions,omitempty"`
	MinSpend            int64      `gorm:"column:min_spend;not null;default:0" json:"min_spend"`
	StartDate           time.Time  `gorm:"column:start_date;not null" json:"start_date"`
	EndDate             *time.Time `gorm:"column:end_date" json:"end_date,omitempty"`
	IsEnabled           bool       `gorm:"column:is_enabled;not null" json:"is_enabled"`
	MaxParticipants     *int64     `gorm:"column:max_participants" json:"max_participants,omitempty"`
	ParticipantsCount   int64      `gorm:"column:participants_count;not null;default:0" json:"participants_count"`
	ReferrerRewardPoint int64      `gorm:"column:referrer_reward_point;not null" json:"referrer_reward_point"`
	ReferredRewardType  RewardType `gorm:"column:referred_reward_type;type:varchar(32);not null" json:"referred_reward_type"`
	ReferredRewardValue int64      `gorm:"column:referred_reward_value;not null" json:"referred_reward_value"`
	DaysToRedeem        int64      `gorm:"column:days_to_redeem;not null;default:30" json:"days_to_redeem"`
	CreatedAt           time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

// Started reports whether the campaign window has opened at now.
func (c *Campaign) Started(now time.Time) bool {
	return !now.Before(c.StartDate)
}

// Ended reports whether the campaign window has closed at now. A nil
// EndDate means the campaign never ends on its own.
func (c *Campaign) Ended(now time.Time) bool {
	return c.EndDate != nil && now.After(*c.EndDate)
}

// AtCapacity reports whether the advisory participant counter has
// reached the configured maximum.
func (c *Campaign) AtCapacity() bool {
	return c.MaxParticipants != nil && c.ParticipantsCount >= *c.MaxParticipants
}
