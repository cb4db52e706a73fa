package campaign

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"caffino-rewards/pkg/errutil"
	"caffino-rewards/pkg/repository"
)

type ServiceParams struct {
	fx.In

	DB   *gorm.DB
	Node *snowflake.Node
}

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	campaigns repository.Repository[Campaign]
}

func NewService(params ServiceParams) *Service {
	return &Service{
		db:        params.DB,
		node:      params.Node,
		campaigns: repository.ProvideStore[Campaign](params.DB),
	}
}

// FindByID returns nil without error when no campaign exists.
func (s *Service) FindByID(ctx context.Context, campaignID string) (*Campaign, error) {
	return s.campaigns.FindOne(ctx, &Campaign{CampaignID: campaignID})
}

func (s *Service) ListByOwner(ctx context.Context, ownerUserID string) ([]*Campaign, error) {
	return s.campaigns.Find(ctx, &Campaign{OwnerUserID: ownerUserID})
}

func (s *Service) Create(ctx context.Context, c *Campaign) (*Campaign, error) {
	if c.Name == "" {
		return nil, errutil.ValidationFailed("campaign name is required", nil)
	}
	if c.OwnerUserID == "" {
		return nil, errutil.ValidationFailed("campaign owner is required", nil)
	}
	if c.CampaignID == "" {
		c.CampaignID = s.node.Generate().String()
	}
	if err := s.campaigns.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) SetEnabled(ctx context.Context, campaignID string, enabled bool) error {
	existing, err := s.FindByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if existing == nil {
		return errutil.NotFound("campaign not found", nil)
	}

	// map update so disabling is not dropped as a zero value
	return s.db.WithContext(ctx).
		Model(&Campaign{}).
		Where("campaign_id = ?", campaignID).
		Update("is_enabled", enabled).Error
}
