package ledger

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"caffino-rewards/pkg/db/option"
	"caffino-rewards/pkg/repository"
	"caffino-rewards/pkg/sequence"
)

type ServiceParams struct {
	fx.In

	DB   *gorm.DB
	Node *snowflake.Node
	Seq  sequence.Generator `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	node         *snowflake.Node
	seq          sequence.Generator
	transactions repository.Repository[Transaction]
}

func NewService(params ServiceParams) *Service {
	return &Service{
		db:           params.DB,
		node:         params.Node,
		seq:          params.Seq,
		transactions: repository.ProvideStore[Transaction](params.DB),
	}
}

// Append writes one ledger row inside the caller's transaction. Rows are
// append only, there is no update or delete path.
func (s *Service) Append(ctx context.Context, tx *gorm.DB, e Entry) (*Transaction, error) {
	code, err := s.nextCode(ctx, e)
	if err != nil {
		return nil, err
	}

	row := &Transaction{
		TransactionID:   s.node.Generate().String(),
		TransactionCode: code,
		UserID:          e.UserID,
		OutletID:        e.OutletID,
		PointDelta:      e.PointDelta,
		Content:         e.Content,
		Metadata:        e.Metadata,
	}

	if err := s.transactions.WithTrx(tx).Create(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *Service) nextCode(ctx context.Context, e Entry) (string, error) {
	if s.seq != nil {
		scope := "platform"
		if e.OutletID != nil {
			scope = *e.OutletID
		}
		code, err := s.seq.NextTransactionCode(ctx, scope)
		if err == nil {
			return code, nil
		}
		zap.L().Warn("sequence backend unavailable, falling back to random code", zap.Error(err))
	}
	return GenerateTransactionCode()
}

// ListByUser returns the user's ledger rows, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*Transaction, error) {
	return s.transactions.Find(ctx, &Transaction{UserID: userID},
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "DESC",
			Allow:   map[string]bool{"created_at": true},
		}),
	)
}
