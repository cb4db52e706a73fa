package redemption

import (
	"context"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"caffino-rewards/pkg/clock"
	"caffino-rewards/pkg/db/option"
	"caffino-rewards/pkg/errutil"
	"caffino-rewards/pkg/refcode"
	"caffino-rewards/pkg/repository"
	"caffino-rewards/pkg/sequence"
	"caffino-rewards/services/reward"
)

// RewardResolver turns a reward id into the aggregate staff view.
type RewardResolver interface {
	GetRewardInfo(ctx context.Context, rewardID string) (*reward.Info, error)
}

type ServiceParams struct {
	fx.In

	DB      *gorm.DB
	Node    *snowflake.Node
	Clock   clock.Clock
	Codes   refcode.Generator
	Rewards *reward.Service
	Seq     sequence.Generator `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	node        *snowflake.Node
	clock       clock.Clock
	codes       refcode.Generator
	seq         sequence.Generator
	rewards     RewardResolver
	rewardStore repository.Repository[reward.Reward]
	requests    repository.Repository[Request]
	offers      repository.Repository[Offer]
}

func NewService(params ServiceParams) *Service {
	return &Service{
		db:          params.DB,
		node:        params.Node,
		clock:       params.Clock,
		codes:       params.Codes,
		seq:         params.Seq,
		rewards:     params.Rewards,
		rewardStore: repository.ProvideStore[reward.Reward](params.DB),
		requests:    repository.ProvideStore[Request](params.DB),
		offers:      repository.ProvideStore[Offer](params.DB),
	}
}

// RequestCode issues a short-lived redemption code for a reward the
// caller owns. The code is salted with the request time, so every call
// produces a new value and invalidates the previous one.
func (s *Service) RequestCode(ctx context.Context, rewardID, ownerUserID string) (*Request, error) {
	if rewardID == "" || ownerUserID == "" {
		return nil, errutil.ValidationFailed("reward and owner are required", nil)
	}

	rw, err := s.rewardStore.FindOne(ctx, &reward.Reward{RewardID: rewardID, OwnerUserID: ownerUserID})
	if err != nil {
		return nil, err
	}
	if rw == nil {
		return nil, errutil.NotFound("reward not found", nil)
	}

	now := s.clock.Now()
	if !rw.Redeemable(now) {
		return nil, errutil.RewardExpired("reward already used or expired", nil)
	}

	code := s.codes.Code(rewardID, strconv.FormatInt(now.UnixNano(), 10))

	existing, err := s.requests.FindOne(ctx, &Request{RewardID: rewardID})
	if err != nil {
		return nil, err
	}

	if existing == nil {
		req := &Request{
			RequestID:   s.node.Generate().String(),
			RewardID:    rewardID,
			Code:        code,
			RefreshedAt: now,
		}
		if err := s.requests.Create(ctx, req); err != nil {
			return nil, err
		}
		return req, nil
	}

	err = s.db.WithContext(ctx).
		Model(&Request{}).
		Where("request_id = ?", existing.RequestID).
		Updates(map[string]any{"code": code, "refreshed_at": now}).Error
	if err != nil {
		return nil, err
	}

	existing.Code = code
	existing.RefreshedAt = now
	return existing, nil
}

// ResolveByCode is the staff-side scan: a fresh code resolves to the
// full reward view, anything else reads as invalid or expired.
func (s *Service) ResolveByCode(ctx context.Context, code string) (*reward.Info, error) {
	if code == "" {
		return nil, errutil.ValidationFailed("code is required", nil)
	}

	req, err := s.requests.FindOne(ctx, &Request{Code: code})
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errutil.InvalidCode("unknown redemption code", nil)
	}
	if !req.Fresh(s.clock.Now()) {
		return nil, errutil.CodeExpired("redemption code expired", nil)
	}

	return s.rewards.GetRewardInfo(ctx, req.RewardID)
}

// ListOffers returns the active voucher catalog, cheapest first.
func (s *Service) ListOffers(ctx context.Context) ([]*Offer, error) {
	return s.offers.Find(ctx, &Offer{IsActive: true},
		option.WithSortBy(option.QuerySortBy{
			SortBy: "point_cost",
			Allow:  map[string]bool{"point_cost": true},
		}),
	)
}

// FindOffer returns nil without error when no offer exists.
func (s *Service) FindOffer(ctx context.Context, offerID string) (*Offer, error) {
	return s.offers.FindOne(ctx, &Offer{OfferID: offerID})
}

// EnsureDefaultOffers seeds the built-in catalog when no offers exist.
// Safe to run on every boot.
func (s *Service) EnsureDefaultOffers(ctx context.Context) error {
	count, err := s.offers.Count(ctx, &Offer{})
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for i := range defaultOffers {
		offer := defaultOffers[i]
		offer.OfferID = s.node.Generate().String()
		offer.Code = s.nextOfferCode(ctx)
		if err := s.offers.Create(ctx, &offer); err != nil {
			return err
		}
	}

	zap.L().Info("seeded default redemption offers", zap.Int("count", len(defaultOffers)))
	return nil
}

func (s *Service) nextOfferCode(ctx context.Context) string {
	if s.seq == nil {
		return ""
	}
	code, err := s.seq.NextOfferCode(ctx)
	if err != nil {
		zap.L().Warn("sequence backend unavailable, offer code left empty", zap.Error(err))
		return ""
	}
	return code
}
