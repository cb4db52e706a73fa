package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"caffino-rewards/services/testutil"
)

var errForcedRollback = errors.New("forced rollback")

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &Transaction{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node})
}

func TestAppend(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	outletID := "o-1"
	row, err := svc.Append(ctx, svc.db, Entry{
		UserID:     "u-1",
		OutletID:   &outletID,
		PointDelta: 500,
		Content:    "referral payout",
	})
	require.NoError(t, err)
	require.NotEmpty(t, row.TransactionID)
	require.True(t, strings.HasPrefix(row.TransactionCode, "TXN-"))
	require.EqualValues(t, 500, row.PointDelta)

	rows, err := svc.ListByUser(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestAppend_RollsBackWithTransaction(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	err := svc.db.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.Append(ctx, tx, Entry{UserID: "u-1", PointDelta: 100}); err != nil {
			return err
		}
		return errForcedRollback
	})
	require.ErrorIs(t, err, errForcedRollback)

	rows, err := svc.ListByUser(ctx, "u-1")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestListByUser_NewestFirst(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, delta := range []int64{100, -40, 25} {
		_, err := svc.Append(ctx, svc.db, Entry{UserID: "u-1", PointDelta: delta})
		require.NoError(t, err)
	}
	_, err := svc.Append(ctx, svc.db, Entry{UserID: "u-2", PointDelta: 7})
	require.NoError(t, err)

	rows, err := svc.ListByUser(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	var sum int64
	for _, row := range rows {
		require.Equal(t, "u-1", row.UserID)
		sum += row.PointDelta
	}
	require.EqualValues(t, 85, sum)
}

func TestGenerateTransactionCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		code, err := GenerateTransactionCode()
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(code, "TXN-"))
		seen[code] = true
	}
	require.Greater(t, len(seen), 1)
}
