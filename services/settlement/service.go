package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"caffino-rewards/pkg/clock"
	"caffino-rewards/pkg/errutil"
	"caffino-rewards/services/directory"
	"caffino-rewards/services/ledger"
	"caffino-rewards/services/redemption"
	"caffino-rewards/services/reward"
)

// RewardResolver loads the staff view of a redeemable reward.
type RewardResolver interface {
	GetRewardInfo(ctx context.Context, rewardID string) (*reward.Info, error)
}

// VoucherIssuer mints the reward created by an offer exchange.
type VoucherIssuer interface {
	IssueVoucherReward(ctx context.Context, tx *gorm.DB, ownerUserID, offerID string, kind reward.PayoutKind, value int64, expire time.Time) (*reward.Reward, error)
}

// Directory is the user and outlet surface settlement moves money through.
type Directory interface {
	FindUser(ctx context.Context, userID string) (*directory.User, error)
	FindOutlet(ctx context.Context, outletID string) (*directory.Outlet, error)
	UpsertVisit(ctx context.Context, tx *gorm.DB, userID, outletID string) (*directory.CheckIn, error)
	ApplyPointDelta(ctx context.Context, tx *gorm.DB, userID string, delta int64) error
	DebitPoints(ctx context.Context, tx *gorm.DB, userID string, amount int64) error
}

// Ledger appends one immutable row per point movement.
type Ledger interface {
	Append(ctx context.Context, tx *gorm.DB, e ledger.Entry) (*ledger.Transaction, error)
}

// OfferCatalog resolves exchangeable voucher offers.
type OfferCatalog interface {
	FindOffer(ctx context.Context, offerID string) (*redemption.Offer, error)
}

// VoucherRewardTTL is how long an exchanged voucher stays redeemable.
const VoucherRewardTTL = 30 * 24 * time.Hour

type ServiceParams struct {
	fx.In

	DB          *gorm.DB
	Node        *snowflake.Node
	Clock       clock.Clock
	Rewards     *reward.Service
	Directory   *directory.Service
	Ledger      *ledger.Service
	Redemptions *redemption.Service
}

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	clock     clock.Clock
	rewards   RewardResolver
	issuer    VoucherIssuer
	directory Directory
	ledger    Ledger
	offers    OfferCatalog
}

func NewService(params ServiceParams) *Service {
	return &Service{
		db:        params.DB,
		node:      params.Node,
		clock:     params.Clock,
		rewards:   params.Rewards,
		issuer:    params.Rewards,
		directory: params.Directory,
		ledger:    params.Ledger,
		offers:    params.Redemptions,
	}
}

type CompleteRedemptionInput struct {
	RewardID    string `json:"reward_id"`
	OutletID    string `json:"outlet_id"`
	StaffUserID string `json:"staff_user_id"`
}

// CompleteRedemption settles a reward at an outlet: the reward flips to
// used exactly once, the visit is recorded, and every point payout
// moves as a credit to the beneficiary matched by a debit from the
// funding merchant, all in one transaction. Discount payouts are
// honored at the till and move no points.
func (s *Service) CompleteRedemption(ctx context.Context, in CompleteRedemptionInput) error {
	if in.RewardID == "" || in.OutletID == "" || in.StaffUserID == "" {
		return errutil.ValidationFailed("reward, outlet and staff are required", nil)
	}

	info, err := s.rewards.GetRewardInfo(ctx, in.RewardID)
	if err != nil {
		return err
	}

	outlet, err := s.directory.FindOutlet(ctx, in.OutletID)
	if err != nil {
		return err
	}
	if outlet == nil {
		return errutil.NotFound("outlet not found", nil)
	}

	// point payouts are funded by the campaign owner; a voucher reward
	// has no campaign and carries no point payout to fund
	fundingUserID := outlet.OwnerUserID
	if info.Campaign != nil {
		fundingUserID = info.Campaign.OwnerUserID
	}

	meta, err := settlementMetadata(in.StaffUserID, in.RewardID)
	if err != nil {
		return errutil.Internal("failed to encode settlement metadata", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()

		// the guarded flip is the at-most-once gate: of two racing
		// settlements only one sees an unused row
		res := tx.Model(&reward.Reward{}).
			Where("reward_id = ? AND is_used = ?", in.RewardID, false).
			Updates(map[string]any{
				"is_used":      true,
				"use_date":     now,
				"use_place_id": in.OutletID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errutil.RewardExpired("reward already used or expired", nil)
		}

		if _, err := s.directory.UpsertVisit(ctx, tx, info.Reward.OwnerUserID, in.OutletID); err != nil {
			return err
		}

		for _, p := range info.Reward.Payouts {
			if p.Kind != reward.PayoutPoint {
				continue
			}

			if err := s.directory.ApplyPointDelta(ctx, tx, p.BeneficiaryUserID, p.Value); err != nil {
				return err
			}
			if _, err := s.ledger.Append(ctx, tx, ledger.Entry{
				UserID:     p.BeneficiaryUserID,
				OutletID:   &in.OutletID,
				PointDelta: p.Value,
				Content:    "reward settlement credit",
				Metadata:   meta,
			}); err != nil {
				return err
			}

			if err := s.directory.ApplyPointDelta(ctx, tx, fundingUserID, -p.Value); err != nil {
				return err
			}
			if _, err := s.ledger.Append(ctx, tx, ledger.Entry{
				UserID:     fundingUserID,
				OutletID:   &in.OutletID,
				PointDelta: -p.Value,
				Content:    "reward settlement funding",
				Metadata:   meta,
			}); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return asSettlementError(err)
	}

	zap.L().Info("reward settled",
		zap.String("reward_id", in.RewardID),
		zap.String("outlet_id", in.OutletID),
		zap.String("staff_user_id", in.StaffUserID),
	)
	return nil
}

// ExchangeVoucher spends a customer's points on an offer and mints the
// resulting discount reward. Debit, ledger row and reward creation
// commit together or not at all.
func (s *Service) ExchangeVoucher(ctx context.Context, customerUserID, offerID string) (*reward.Reward, error) {
	if customerUserID == "" || offerID == "" {
		return nil, errutil.ValidationFailed("customer and offer are required", nil)
	}

	offer, err := s.offers.FindOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer == nil || !offer.IsActive {
		return nil, errutil.NotFound("offer not found", nil)
	}

	customer, err := s.directory.FindUser(ctx, customerUserID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, errutil.NotFound("customer not found", nil)
	}

	meta, err := exchangeMetadata(offerID, offer.Code)
	if err != nil {
		return nil, errutil.Internal("failed to encode exchange metadata", err)
	}

	var rw *reward.Reward
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.directory.DebitPoints(ctx, tx, customerUserID, offer.PointCost); err != nil {
			return err
		}

		if _, err := s.ledger.Append(ctx, tx, ledger.Entry{
			UserID:     customerUserID,
			PointDelta: -offer.PointCost,
			Content:    "voucher exchange",
			Metadata:   meta,
		}); err != nil {
			return err
		}

		expire := s.clock.Now().Add(VoucherRewardTTL)
		rw, err = s.issuer.IssueVoucherReward(ctx, tx, customerUserID, offerID, offer.DiscountType, offer.Value, expire)
		return err
	})
	if err != nil {
		return nil, asSettlementError(err)
	}

	return rw, nil
}

// asSettlementError keeps domain statuses intact and wraps anything
// else as a retryable settlement failure.
func asSettlementError(err error) error {
	var base errutil.BaseError
	if errors.As(err, &base) {
		return err
	}
	return errutil.SettlementFailed("settlement could not complete", err)
}

func settlementMetadata(staffUserID, rewardID string) (datatypes.JSON, error) {
	b, err := json.Marshal(map[string]string{
		"staff_user_id": staffUserID,
		"reward_id":     rewardID,
	})
	return datatypes.JSON(b), err
}

func exchangeMetadata(offerID, offerCode string) (datatypes.JSON, error) {
	b, err := json.Marshal(map[string]string{
		"offer_id":   offerID,
		"offer_code": offerCode,
	})
	return datatypes.JSON(b), err
}
