package directory

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
	db       *gorm.DB
	node     *snowflake.Node
	users    repository.Repository[User]
	outlets  repository.Repository[Outlet]
	checkIns repository.Repository[CheckIn]
}

func NewService(params ServiceParams) *Service {
	return &Service{
		db:       params.DB,
		node:     params.Node,
		users:    repository.ProvideStore[User](params.DB),
		outlets:  repository.ProvideStore[Outlet](params.DB),
		checkIns: repository.ProvideStore[CheckIn](params.DB),
	}
}

// FindUser returns nil without error when no user exists.
func (s *Service) FindUser(ctx context.Context, userID string) (*User, error) {
	return s.users.FindOne(ctx, &User{UserID: userID})
}

func (s *Service) CreateUser(ctx context.Context, user *User) (*User, error) {
	if user.UserID == "" {
		user.UserID = s.node.Generate().String()
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ApplyPointDelta moves a signed amount of points on a user's balance
// inside the caller's transaction. The update is a single relative SQL
// expression, never a read-modify-write.
func (s *Service) ApplyPointDelta(ctx context.Context, tx *gorm.DB, userID string, delta int64) error {
	res := tx.WithContext(ctx).
		Model(&User{}).
		Where("user_id = ?", userID).
		Update("point", gorm.Expr("point + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.NotFound("user not found", nil)
	}
	return nil
}

// DebitPoints subtracts amount from the user's balance only when the
// balance covers it. The guard lives in the WHERE clause so concurrent
// debits can never drive the balance negative.
func (s *Service) DebitPoints(ctx context.Context, tx *gorm.DB, userID string, amount int64) error {
	res := tx.WithContext(ctx).
		Model(&User{}).
		Where("user_id = ? AND point >= ?", userID, amount).
		Update("point", gorm.Expr("point - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.InsufficientBalance("not enough points", nil)
	}
	return nil
}

func (s *Service) FindOutlet(ctx context.Context, outletID string) (*Outlet, error) {
	return s.outlets.FindOne(ctx, &Outlet{OutletID: outletID})
}

func (s *Service) FindOutletsByOwner(ctx context.Context, ownerUserID string) ([]*Outlet, error) {
	return s.outlets.Find(ctx, &Outlet{OwnerUserID: ownerUserID})
}

func (s *Service) CreateOutlet(ctx context.Context, outlet *Outlet) (*Outlet, error) {
	if outlet.OutletID == "" {
		outlet.OutletID = s.node.Generate().String()
	}
	if err := s.outlets.Create(ctx, outlet); err != nil {
		return nil, err
	}
	return outlet, nil
}

// UpsertVisit records one visit of a user at an outlet inside the
// caller's transaction. An existing row is incremented in place, a
// first visit inserts a row with visit_count 1.
func (s *Service) UpsertVisit(ctx context.Context, tx *gorm.DB, userID, outletID string) (*CheckIn, error) {
	res := tx.WithContext(ctx).
		Model(&CheckIn{}).
		Where("user_id = ? AND outlet_id = ?", userID, outletID).
		Update("visit_count", gorm.Expr("visit_count + ?", 1))
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		checkIn := &CheckIn{
			CheckInID:  s.node.Generate().String(),
			UserID:     userID,
			OutletID:   outletID,
			VisitCount: 1,
		}
		if err := tx.WithContext(ctx).Create(checkIn).Error; err != nil {
			return nil, err
		}
		return checkIn, nil
	}

	return s.checkIns.WithTrx(tx).FindOne(ctx, &CheckIn{UserID: userID, OutletID: outletID})
}

// HasVisitedMerchant reports whether the user has ever checked in at
// any outlet owned by the given merchant owner.
func (s *Service) HasVisitedMerchant(ctx context.Context, userID, ownerUserID string) (bool, error) {
	sub := s.db.Model(&Outlet{}).
		Select("outlet_id").
		Where("owner_user_id = ?", ownerUserID)

	var count int64
	err := s.db.WithContext(ctx).
		Model(&CheckIn{}).
		Where("user_id = ? AND outlet_id IN (?)", userID, sub).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
