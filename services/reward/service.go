package reward

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"caffino-rewards/pkg/clock"
	"caffino-rewards/pkg/db/option"
	"caffino-rewards/pkg/errutil"
	"caffino-rewards/pkg/refcode"
	"caffino-rewards/pkg/repository"
	"caffino-rewards/services/campaign"
	"caffino-rewards/services/directory"
)

// CampaignLookup is the campaign surface the claim path needs.
type CampaignLookup interface {
	FindByID(ctx context.Context, campaignID string) (*campaign.Campaign, error)
}

// Directory is the user and outlet surface the claim path needs.
type Directory interface {
	FindUser(ctx context.Context, userID string) (*directory.User, error)
	FindOutletsByOwner(ctx context.Context, ownerUserID string) ([]*directory.Outlet, error)
	HasVisitedMerchant(ctx context.Context, userID, ownerUserID string) (bool, error)
}

// Enqueuer matches the asynq client. Claims enqueue the participant
// counter sync through it so broker trouble never fails a claim.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type ServiceParams struct {
	fx.In

	DB        *gorm.DB
	Node      *snowflake.Node
	Clock     clock.Clock
	Codes     refcode.Generator
	Campaigns *campaign.Service
	Directory *directory.Service
	Asynq     *asynq.Client `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	clock     clock.Clock
	codes     refcode.Generator
	campaigns CampaignLookup
	directory Directory
	asynq     Enqueuer
	rewards   repository.Repository[Reward]
	payouts   repository.Repository[Payout]
}

func NewService(params ServiceParams) *Service {
	s := &Service{
		db:        params.DB,
		node:      params.Node,
		clock:     params.Clock,
		codes:     params.Codes,
		campaigns: params.Campaigns,
		directory: params.Directory,
		rewards:   repository.ProvideStore[Reward](params.DB),
		payouts:   repository.ProvideStore[Payout](params.DB),
	}
	if params.Asynq != nil {
		s.asynq = params.Asynq
	}
	return s
}

// GetReferralCode derives the referrer's shareable code for a campaign.
// The code is a pure function of (referrer, campaign), so re-requesting
// it always yields the same value and nothing is stored.
func (s *Service) GetReferralCode(ctx context.Context, referrerUserID, campaignID string) (string, error) {
	if referrerUserID == "" || campaignID == "" {
		return "", errutil.ValidationFailed("referrer and campaign are required", nil)
	}

	referrer, err := s.directory.FindUser(ctx, referrerUserID)
	if err != nil {
		return "", err
	}
	if referrer == nil {
		return "", errutil.NotFound("referrer not found", nil)
	}

	cmp, err := s.campaigns.FindByID(ctx, campaignID)
	if err != nil {
		return "", err
	}
	if cmp == nil {
		return "", errutil.NotFound("campaign not found", nil)
	}

	return s.codes.Code(referrerUserID, campaignID), nil
}

type ClaimReferralInput struct {
	Code           string `json:"code"`
	CampaignID     string `json:"campaign_id"`
	ReferrerUserID string `json:"referrer_user_id"`
	ClaimerUserID  string `json:"claimer_user_id"`
}

// ClaimReferral validates a presented referral code and, when every
// gate passes, creates the claimer's reward with both payout lines in
// one transaction. The campaign participant counter is synced
// asynchronously afterwards.
func (s *Service) ClaimReferral(ctx context.Context, in ClaimReferralInput) (*Reward, error) {
	if in.Code == "" || in.CampaignID == "" || in.ReferrerUserID == "" || in.ClaimerUserID == "" {
		return nil, errutil.ValidationFailed("code, campaign, referrer and claimer are required", nil)
	}
	if in.ClaimerUserID == in.ReferrerUserID {
		return nil, errutil.SelfReferral("cannot claim your own code", nil)
	}

	// the code is recomputed, never looked up, and checked before
	// anything else so a wrong code reveals nothing about the campaign
	if s.codes.Code(in.ReferrerUserID, in.CampaignID) != in.Code {
		return nil, errutil.InvalidCode("referral code does not match", nil)
	}

	cmp, err := s.campaigns.FindByID(ctx, in.CampaignID)
	if err != nil {
		return nil, err
	}
	if cmp == nil {
		return nil, errutil.NotFound("campaign not found", nil)
	}

	referrer, err := s.directory.FindUser(ctx, in.ReferrerUserID)
	if err != nil {
		return nil, err
	}
	if referrer == nil {
		return nil, errutil.InvalidCode("referral code does not match", nil)
	}

	claimer, err := s.directory.FindUser(ctx, in.ClaimerUserID)
	if err != nil {
		return nil, err
	}
	if claimer == nil {
		return nil, errutil.NotFound("claimer not found", nil)
	}

	now := s.clock.Now()
	if !cmp.IsEnabled {
		return nil, errutil.CampaignDisabled("campaign is disabled", nil)
	}
	if !cmp.Started(now) {
		return nil, errutil.CampaignDisabled("campaign has not started", nil)
	}
	if cmp.Ended(now) {
		return nil, errutil.CampaignExpired("campaign has ended", nil)
	}
	if cmp.AtCapacity() {
		return nil, errutil.CapacityReached("campaign is full", nil)
	}

	existing, err := s.rewards.FindOne(ctx, &Reward{OwnerUserID: in.ClaimerUserID, CampaignID: &in.CampaignID})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errutil.Conflict("reward already claimed for this campaign", nil)
	}

	visited, err := s.directory.HasVisitedMerchant(ctx, in.ClaimerUserID, cmp.OwnerUserID)
	if err != nil {
		return nil, err
	}
	if visited {
		return nil, errutil.NotNewCustomer("already a customer of this merchant", nil)
	}

	expire := now.Add(time.Duration(cmp.DaysToRedeem) * 24 * time.Hour)
	if cmp.EndDate != nil && cmp.EndDate.Before(expire) {
		expire = *cmp.EndDate
	}

	rw := &Reward{
		RewardID:         s.node.Generate().String(),
		OwnerUserID:      in.ClaimerUserID,
		CampaignID:       &in.CampaignID,
		ReferredByUserID: &in.ReferrerUserID,
		ExpireDate:       expire,
	}
	payouts := []*Payout{
		{
			PayoutID:          s.node.Generate().String(),
			RewardID:          rw.RewardID,
			Position:          0,
			BeneficiaryUserID: in.ReferrerUserID,
			Kind:              PayoutPoint,
			Value:             cmp.ReferrerRewardPoint,
			Source:            SourceReferrer,
		},
		{
			PayoutID:          s.node.Generate().String(),
			RewardID:          rw.RewardID,
			Position:          1,
			BeneficiaryUserID: in.ClaimerUserID,
			Kind:              PayoutKind(cmp.ReferredRewardType),
			Value:             cmp.ReferredRewardValue,
			Source:            SourceReferred,
		},
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.rewards.WithTrx(tx).Create(ctx, rw); err != nil {
			return err
		}
		return s.payouts.WithTrx(tx).BatchCreate(ctx, payouts)
	}); err != nil {
		// a racing claim that slipped past the pre-check lands on the
		// (owner, campaign) unique index
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errutil.Conflict("reward already claimed for this campaign", err)
		}
		return nil, err
	}

	s.enqueueParticipantSync(ctx, in.CampaignID)

	for _, p := range payouts {
		rw.Payouts = append(rw.Payouts, *p)
	}
	return rw, nil
}

func (s *Service) enqueueParticipantSync(ctx context.Context, campaignID string) {
	if s.asynq == nil {
		return
	}
	task, err := campaign.NewSyncParticipantsTask(campaignID)
	if err != nil {
		zap.L().Warn("failed to build participant sync task", zap.Error(err))
		return
	}
	if _, err := s.asynq.EnqueueContext(ctx, task); err != nil {
		zap.L().Warn("failed to enqueue participant sync",
			zap.String("campaign_id", campaignID),
			zap.Error(err),
		)
	}
}

// IssueVoucherReward creates a reward from an exchanged offer inside the
// caller's transaction. Voucher rewards carry no campaign link.
func (s *Service) IssueVoucherReward(ctx context.Context, tx *gorm.DB, ownerUserID, offerID string, kind PayoutKind, value int64, expire time.Time) (*Reward, error) {
	rw := &Reward{
		RewardID:     s.node.Generate().String(),
		OwnerUserID:  ownerUserID,
		RedemptionID: &offerID,
		ExpireDate:   expire,
	}
	payout := &Payout{
		PayoutID:          s.node.Generate().String(),
		RewardID:          rw.RewardID,
		Position:          0,
		BeneficiaryUserID: ownerUserID,
		Kind:              kind,
		Value:             value,
		Source:            SourceRedeem,
	}

	if err := s.rewards.WithTrx(tx).Create(ctx, rw); err != nil {
		return nil, err
	}
	if err := s.payouts.WithTrx(tx).Create(ctx, payout); err != nil {
		return nil, err
	}

	rw.Payouts = []Payout{*payout}
	return rw, nil
}

// Info is the aggregate a staff member sees before settling: the reward
// with its payout lines plus the people and places involved.
type Info struct {
	Reward   *Reward             `json:"reward"`
	Owner    *directory.User     `json:"owner,omitempty"`
	Campaign *campaign.Campaign  `json:"campaign,omitempty"`
	Referrer *directory.User     `json:"referrer,omitempty"`
	Outlets  []*directory.Outlet `json:"outlets,omitempty"`
}

// GetRewardInfo loads a redeemable reward and resolves everything
// around it. Used or expired rewards are reported as gone, not found.
func (s *Service) GetRewardInfo(ctx context.Context, rewardID string) (*Info, error) {
	rw, err := s.rewards.FindOne(ctx, &Reward{RewardID: rewardID})
	if err != nil {
		return nil, err
	}
	if rw == nil {
		return nil, errutil.NotFound("reward not found", nil)
	}
	if !rw.Redeemable(s.clock.Now()) {
		return nil, errutil.RewardExpired("reward already used or expired", nil)
	}

	if err := s.attachPayouts(ctx, rw); err != nil {
		return nil, err
	}

	info := &Info{Reward: rw}

	if info.Owner, err = s.directory.FindUser(ctx, rw.OwnerUserID); err != nil {
		return nil, err
	}
	if info.Owner == nil {
		return nil, errutil.NotFound("reward owner not found", nil)
	}

	if rw.CampaignID != nil {
		if info.Campaign, err = s.campaigns.FindByID(ctx, *rw.CampaignID); err != nil {
			return nil, err
		}
		if info.Campaign == nil {
			return nil, errutil.NotFound("campaign not found", nil)
		}
		if !info.Campaign.IsEnabled {
			return nil, errutil.CampaignDisabled("campaign is disabled", nil)
		}
		if info.Campaign.Ended(s.clock.Now()) {
			return nil, errutil.CampaignExpired("campaign has ended", nil)
		}
		if info.Outlets, err = s.directory.FindOutletsByOwner(ctx, info.Campaign.OwnerUserID); err != nil {
			return nil, err
		}
	}

	if rw.ReferredByUserID != nil {
		if info.Referrer, err = s.directory.FindUser(ctx, *rw.ReferredByUserID); err != nil {
			return nil, err
		}
		if info.Referrer == nil {
			return nil, errutil.NotFound("referrer not found", nil)
		}
	}

	return info, nil
}

// ListActiveByOwner returns the owner's unsettled, unexpired rewards,
// soonest to expire first.
func (s *Service) ListActiveByOwner(ctx context.Context, ownerUserID string) ([]*Reward, error) {
	rewards, err := s.rewards.Find(ctx, &Reward{OwnerUserID: ownerUserID},
		option.ApplyOperator(option.Condition{Field: "is_used", Operator: option.EQ, Value: false}),
		option.ApplyOperator(option.Condition{Field: "expire_date", Operator: option.GT, Value: s.clock.Now()}),
		option.WithSortBy(option.QuerySortBy{
			SortBy: "expire_date",
			Allow:  map[string]bool{"expire_date": true},
		}),
	)
	if err != nil {
		return nil, err
	}

	for _, rw := range rewards {
		if err := s.attachPayouts(ctx, rw); err != nil {
			return nil, err
		}
	}
	return rewards, nil
}

func (s *Service) attachPayouts(ctx context.Context, rw *Reward) error {
	payouts, err := s.payouts.Find(ctx, &Payout{RewardID: rw.RewardID},
		option.WithSortBy(option.QuerySortBy{
			SortBy: "position",
			Allow:  map[string]bool{"position": true},
		}),
	)
	if err != nil {
		return err
	}

	rw.Payouts = rw.Payouts[:0]
	for _, p := range payouts {
		rw.Payouts = append(rw.Payouts, *p)
	}
	return nil
}
