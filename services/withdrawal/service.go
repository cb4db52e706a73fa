package withdrawal

import (
	"context"
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"caffino-rewards/pkg/db/option"
	"caffino-rewards/pkg/errutil"
	"caffino-rewards/pkg/repository"
	"caffino-rewards/services/directory"
	"caffino-rewards/services/ledger"
)

// Directory is the user surface withdrawals debit against.
type Directory interface {
	FindUser(ctx context.Context, userID string) (*directory.User, error)
	DebitPoints(ctx context.Context, tx *gorm.DB, userID string, amount int64) error
}

// Ledger appends one immutable row per point movement.
type Ledger interface {
	Append(ctx context.Context, tx *gorm.DB, e ledger.Entry) (*ledger.Transaction, error)
}

type ServiceParams struct {
	fx.In

	DB        *gorm.DB
	Node      *snowflake.Node
	Directory *directory.Service
	Ledger    *ledger.Service
}

type Service struct {
	db          *gorm.DB
	node        *snowflake.Node
	directory   Directory
	ledger      Ledger
	withdrawals repository.Repository[Withdrawal]
}

func NewService(params ServiceParams) *Service {
	return &Service{
		db:          params.DB,
		node:        params.Node,
		directory:   params.Directory,
		ledger:      params.Ledger,
		withdrawals: repository.ProvideStore[Withdrawal](params.DB),
	}
}

// Request files a pending withdrawal for the customer. The balance
// check here is a courtesy gate; the binding one runs at approval.
func (s *Service) Request(ctx context.Context, userID string, point int64) (*Withdrawal, error) {
	if userID == "" || point <= 0 {
		return nil, errutil.ValidationFailed("user and a positive point amount are required", nil)
	}

	user, err := s.directory.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errutil.NotFound("user not found", nil)
	}
	if user.Point < point {
		return nil, errutil.InsufficientBalance("not enough points to withdraw", nil)
	}

	w := &Withdrawal{
		WithdrawalID: s.node.Generate().String(),
		UserID:       userID,
		Point:        point,
		Status:       StatusPending,
	}
	if err := s.withdrawals.Create(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Approve pays out a pending request: the status flips exactly once,
// the points leave the balance and the ledger records the debit, all
// in one transaction.
func (s *Service) Approve(ctx context.Context, withdrawalID string) error {
	w, err := s.findPending(ctx, withdrawalID)
	if err != nil {
		return err
	}

	meta, err := withdrawalMetadata(w.WithdrawalID)
	if err != nil {
		return errutil.Internal("failed to encode withdrawal metadata", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// the guarded flip keeps two racing approvals from paying twice
		res := tx.Model(&Withdrawal{}).
			Where("withdrawal_id = ? AND status = ?", withdrawalID, StatusPending).
			Update("status", StatusApproved)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errutil.Conflict("withdrawal request is not pending", nil)
		}

		if err := s.directory.DebitPoints(ctx, tx, w.UserID, w.Point); err != nil {
			return err
		}

		_, err := s.ledger.Append(ctx, tx, ledger.Entry{
			UserID:     w.UserID,
			PointDelta: -w.Point,
			Content:    "withdrawal payout",
			Metadata:   meta,
		})
		return err
	})
	if err != nil {
		return err
	}

	zap.L().Info("withdrawal approved",
		zap.String("withdrawal_id", withdrawalID),
		zap.String("user_id", w.UserID),
		zap.Int64("point", w.Point),
	)
	return nil
}

// Reject closes a pending request without touching the balance.
func (s *Service) Reject(ctx context.Context, withdrawalID string) error {
	if _, err := s.findPending(ctx, withdrawalID); err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Model(&Withdrawal{}).
		Where("withdrawal_id = ? AND status = ?", withdrawalID, StatusPending).
		Update("status", StatusRejected)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.Conflict("withdrawal request is not pending", nil)
	}
	return nil
}

// List returns requests newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, status Status) ([]*Withdrawal, error) {
	return s.withdrawals.Find(ctx, &Withdrawal{Status: status},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "DESC",
			Allow:   map[string]bool{"created_at": true},
		}),
	)
}

func (s *Service) findPending(ctx context.Context, withdrawalID string) (*Withdrawal, error) {
	if withdrawalID == "" {
		return nil, errutil.ValidationFailed("withdrawal id is required", nil)
	}

	w, err := s.withdrawals.FindOne(ctx, &Withdrawal{WithdrawalID: withdrawalID})
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, errutil.NotFound("withdrawal request not found", nil)
	}
	if w.Status != StatusPending {
		return nil, errutil.Conflict("withdrawal request is not pending", nil)
	}
	return w, nil
}

func withdrawalMetadata(withdrawalID string) (datatypes.JSON, error) {
	b, err := json.Marshal(map[string]string{
		"withdrawal_id": withdrawalID,
	})
	return datatypes.JSON(b), err
}
