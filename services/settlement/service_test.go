package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"caffino-rewards/pkg/clock"
	"caffino-rewards/pkg/errutil"
	"caffino-rewards/pkg/refcode"
	"caffino-rewards/services/campaign"
	"caffino-rewards/services/directory"
	"caffino-rewards/services/ledger"
	"caffino-rewards/services/redemption"
	"caffino-rewards/services/reward"
	"caffino-rewards/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fixture struct {
	db          *gorm.DB
	svc         *Service
	dir         *directory.Service
	campaigns   *campaign.Service
	rewards     *reward.Service
	ledger      *ledger.Service
	redemptions *redemption.Service
	clock       *clock.Fake
	codes       refcode.Generator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t,
		&directory.User{}, &directory.Outlet{}, &directory.CheckIn{},
		&campaign.Campaign{}, &reward.Reward{}, &reward.Payout{},
		&redemption.Request{}, &redemption.Offer{}, &ledger.Transaction{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	codes := refcode.HashGenerator{}

	dir := directory.NewService(directory.ServiceParams{DB: db, Node: node})
	campaigns := campaign.NewService(campaign.ServiceParams{DB: db, Node: node})
	ledgerSvc := ledger.NewService(ledger.ServiceParams{DB: db, Node: node})
	rewards := reward.NewService(reward.ServiceParams{
		DB:        db,
		Node:      node,
		Clock:     fake,
		Codes:     codes,
		Campaigns: campaigns,
		Directory: dir,
	})
	redemptions := redemption.NewService(redemption.ServiceParams{
		DB:      db,
		Node:    node,
		Clock:   fake,
		Codes:   codes,
		Rewards: rewards,
	})

	svc := NewService(ServiceParams{
		DB:          db,
		Node:        node,
		Clock:       fake,
		Rewards:     rewards,
		Directory:   dir,
		Ledger:      ledgerSvc,
		Redemptions: redemptions,
	})

	return &fixture{
		db:          db,
		svc:         svc,
		dir:         dir,
		campaigns:   campaigns,
		rewards:     rewards,
		ledger:      ledgerSvc,
		redemptions: redemptions,
		clock:       fake,
		codes:       codes,
	}
}

type seeded struct {
	campaign *campaign.Campaign
	outlet   *directory.Outlet
	reward   *reward.Reward
}

// seedClaim sets up a merchant with a funded balance, one outlet, a
// referrer and a claimer holding a freshly claimed reward.
func (f *fixture) seedClaim(t *testing.T) seeded {
	t.Helper()
	ctx := context.Background()

	for _, u := range []*directory.User{
		{UserID: "merchant-1", Role: directory.RoleBusinessOwner, Point: 10000},
		{UserID: "staff-1", Role: directory.RoleBusinessStaff},
		{UserID: "referrer-1"},
		{UserID: "claimer-1"},
	} {
		_, err := f.dir.CreateUser(ctx, u)
		require.NoError(t, err)
	}

	outlet, err := f.dir.CreateOutlet(ctx, &directory.Outlet{OwnerUserID: "merchant-1", Name: "Main"})
	require.NoError(t, err)

	c, err := f.campaigns.Create(ctx, &campaign.Campaign{
		OwnerUserID:         "merchant-1",
		Name:                "Bring a friend",
		StartDate:           f.clock.Now().Add(-time.Hour),
		IsEnabled:           true,
		ReferrerRewardPoint: 500,
		ReferredRewardType:  campaign.RewardPoint,
		ReferredRewardValue: 200,
		DaysToRedeem:        7,
	})
	require.NoError(t, err)

	rw, err := f.rewards.ClaimReferral(ctx, reward.ClaimReferralInput{
		Code:           f.codes.Code("referrer-1", c.CampaignID),
		CampaignID:     c.CampaignID,
		ReferrerUserID: "referrer-1",
		ClaimerUserID:  "claimer-1",
	})
	require.NoError(t, err)

	return seeded{campaign: c, outlet: outlet, reward: rw}
}

func (f *fixture) balance(t *testing.T, userID string) int64 {
	t.Helper()
	user, err := f.dir.FindUser(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, user)
	return user.Point
}

func TestCompleteRedemption_HappyPath(t *testing.T) {
	f := newFixture(t)
	s := f.seedClaim(t)
	ctx := context.Background()

	err := f.svc.CompleteRedemption(ctx, CompleteRedemptionInput{
		RewardID:    s.reward.RewardID,
		OutletID:    s.outlet.OutletID,
		StaffUserID: "staff-1",
	})
	require.NoError(t, err)

	require.EqualValues(t, 200, f.balance(t, "claimer-1"))
	require.EqualValues(t, 500, f.balance(t, "referrer-1"))
	require.EqualValues(t, 10000-700, f.balance(t, "merchant-1"))

	var rw reward.Reward
	require.NoError(t, f.db.Where("reward_id = ?", s.reward.RewardID).First(&rw).Error)
	require.True(t, rw.IsUsed)
	require.NotNil(t, rw.UseDate)
	require.Equal(t, s.outlet.OutletID, *rw.UsePlaceID)

	var rows int64
	require.NoError(t, f.db.Model(&ledger.Transaction{}).Count(&rows).Error)
	require.EqualValues(t, 4, rows)

	visit, err := f.dir.UpsertVisit(ctx, f.db, "claimer-1", s.outlet.OutletID)
	require.NoError(t, err)
	require.EqualValues(t, 2, visit.VisitCount) // was 1 after settlement
}

func TestCompleteRedemption_AtMostOnce(t *testing.T) {
	f := newFixture(t)
	s := f.seedClaim(t)
	ctx := context.Background()

	in := CompleteRedemptionInput{
		RewardID:    s.reward.RewardID,
		OutletID:    s.outlet.OutletID,
		StaffUserID: "staff-1",
	}
	require.NoError(t, f.svc.CompleteRedemption(ctx, in))

	err := f.svc.CompleteRedemption(ctx, in)
	require.Equal(t, errutil.StatusRewardExpired, errutil.StatusOf(err))

	// balances moved exactly once
	require.EqualValues(t, 200, f.balance(t, "claimer-1"))
	require.EqualValues(t, 500, f.balance(t, "referrer-1"))
	require.EqualValues(t, 9300, f.balance(t, "merchant-1"))
}

type failingLedger struct{}

func (failingLedger) Append(ctx context.Context, tx *gorm.DB, e ledger.Entry) (*ledger.Transaction, error) {
	return nil, errors.New("ledger unavailable")
}

func TestCompleteRedemption_RollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	s := f.seedClaim(t)
	ctx := context.Background()

	f.svc.ledger = failingLedger{}

	err := f.svc.CompleteRedemption(ctx, CompleteRedemptionInput{
		RewardID:    s.reward.RewardID,
		OutletID:    s.outlet.OutletID,
		StaffUserID: "staff-1",
	})
	require.Equal(t, errutil.StatusSettlementFailed, errutil.StatusOf(err))

	// nothing moved, nothing flipped, no visit recorded
	require.EqualValues(t, 0, f.balance(t, "claimer-1"))
	require.EqualValues(t, 0, f.balance(t, "referrer-1"))
	require.EqualValues(t, 10000, f.balance(t, "merchant-1"))

	var rw reward.Reward
	require.NoError(t, f.db.Where("reward_id = ?", s.reward.RewardID).First(&rw).Error)
	require.False(t, rw.IsUsed)

	var visits int64
	require.NoError(t, f.db.Model(&directory.CheckIn{}).Count(&visits).Error)
	require.Zero(t, visits)

	// the reward settles fine once the ledger recovers
	f.svc.ledger = f.ledger
	require.NoError(t, f.svc.CompleteRedemption(ctx, CompleteRedemptionInput{
		RewardID:    s.reward.RewardID,
		OutletID:    s.outlet.OutletID,
		StaffUserID: "staff-1",
	}))
}

func TestCompleteRedemption_UnknownOutlet(t *testing.T) {
	f := newFixture(t)
	s := f.seedClaim(t)

	err := f.svc.CompleteRedemption(context.Background(), CompleteRedemptionInput{
		RewardID:    s.reward.RewardID,
		OutletID:    "nope",
		StaffUserID: "staff-1",
	})
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}

func TestCompleteRedemption_ExpiredReward(t *testing.T) {
	f := newFixture(t)
	s := f.seedClaim(t)

	f.clock.Advance(8 * 24 * time.Hour)

	err := f.svc.CompleteRedemption(context.Background(), CompleteRedemptionInput{
		RewardID:    s.reward.RewardID,
		OutletID:    s.outlet.OutletID,
		StaffUserID: "staff-1",
	})
	require.Equal(t, errutil.StatusRewardExpired, errutil.StatusOf(err))
}

func TestExchangeVoucher_HappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.dir.CreateUser(ctx, &directory.User{UserID: "u-1", Point: 1000})
	require.NoError(t, err)
	require.NoError(t, f.redemptions.EnsureDefaultOffers(ctx))

	offers, err := f.redemptions.ListOffers(ctx)
	require.NoError(t, err)
	offer := offers[1] // 50000 off for 500 points

	rw, err := f.svc.ExchangeVoucher(ctx, "u-1", offer.OfferID)
	require.NoError(t, err)

	require.EqualValues(t, 500, f.balance(t, "u-1"))
	require.Equal(t, "u-1", rw.OwnerUserID)
	require.Nil(t, rw.CampaignID)
	require.Equal(t, offer.OfferID, *rw.RedemptionID)
	require.Equal(t, f.clock.Now().Add(VoucherRewardTTL), rw.ExpireDate.UTC())

	require.Len(t, rw.Payouts, 1)
	require.Equal(t, reward.SourceRedeem, rw.Payouts[0].Source)
	require.Equal(t, reward.PayoutDiscountAmount, rw.Payouts[0].Kind)
	require.EqualValues(t, 50000, rw.Payouts[0].Value)

	var rows int64
	require.NoError(t, f.db.Model(&ledger.Transaction{}).Count(&rows).Error)
	require.EqualValues(t, 1, rows)
}

func TestExchangeVoucher_InsufficientBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.dir.CreateUser(ctx, &directory.User{UserID: "u-1", Point: 100})
	require.NoError(t, err)
	require.NoError(t, f.redemptions.EnsureDefaultOffers(ctx))

	offers, err := f.redemptions.ListOffers(ctx)
	require.NoError(t, err)

	_, err = f.svc.ExchangeVoucher(ctx, "u-1", offers[0].OfferID)
	require.Equal(t, errutil.StatusInsufficientBalance, errutil.StatusOf(err))

	require.EqualValues(t, 100, f.balance(t, "u-1"))

	var rewards, rows int64
	require.NoError(t, f.db.Model(&reward.Reward{}).Count(&rewards).Error)
	require.Zero(t, rewards)
	require.NoError(t, f.db.Model(&ledger.Transaction{}).Count(&rows).Error)
	require.Zero(t, rows)
}

func TestExchangeVoucher_OfferGone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.dir.CreateUser(ctx, &directory.User{UserID: "u-1", Point: 1000})
	require.NoError(t, err)

	_, err = f.svc.ExchangeVoucher(ctx, "u-1", "nope")
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))

	require.NoError(t, f.redemptions.EnsureDefaultOffers(ctx))
	offers, err := f.redemptions.ListOffers(ctx)
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&redemption.Offer{}).
		Where("offer_id = ?", offers[0].OfferID).
		Update("is_active", false).Error)

	_, err = f.svc.ExchangeVoucher(ctx, "u-1", offers[0].OfferID)
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}

func TestExchangeVoucher_UnknownCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.redemptions.EnsureDefaultOffers(ctx))
	offers, err := f.redemptions.ListOffers(ctx)
	require.NoError(t, err)

	_, err = f.svc.ExchangeVoucher(ctx, "ghost", offers[0].OfferID)
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}

func TestCompleteRedemption_DiscountRewardMovesNoPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, u := range []*directory.User{
		{UserID: "merchant-1", Role: directory.RoleBusinessOwner, Point: 10000},
		{UserID: "staff-1", Role: directory.RoleBusinessStaff},
		{UserID: "u-1", Point: 1000},
	} {
		_, err := f.dir.CreateUser(ctx, u)
		require.NoError(t, err)
	}
	outlet, err := f.dir.CreateOutlet(ctx, &directory.Outlet{OwnerUserID: "merchant-1", Name: "Main"})
	require.NoError(t, err)
	require.NoError(t, f.redemptions.EnsureDefaultOffers(ctx))

	offers, err := f.redemptions.ListOffers(ctx)
	require.NoError(t, err)

	rw, err := f.svc.ExchangeVoucher(ctx, "u-1", offers[0].OfferID)
	require.NoError(t, err)
	require.EqualValues(t, 800, f.balance(t, "u-1"))

	require.NoError(t, f.svc.CompleteRedemption(ctx, CompleteRedemptionInput{
		RewardID:    rw.RewardID,
		OutletID:    outlet.OutletID,
		StaffUserID: "staff-1",
	}))

	// discount is applied at the till: no further point movement
	require.EqualValues(t, 800, f.balance(t, "u-1"))
	require.EqualValues(t, 10000, f.balance(t, "merchant-1"))

	var rows int64
	require.NoError(t, f.db.Model(&ledger.Transaction{}).Count(&rows).Error)
	require.EqualValues(t, 1, rows) // only the exchange debit

	var visit directory.CheckIn
	require.NoError(t, f.db.Where("user_id = ? AND outlet_id = ?", "u-1", outlet.OutletID).First(&visit).Error)
	require.EqualValues(t, 1, visit.VisitCount)
}
