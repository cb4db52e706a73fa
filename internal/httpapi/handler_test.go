package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"caffino-rewards/pkg/clock"
	"caffino-rewards/pkg/config"
	"caffino-rewards/pkg/refcode"
	"caffino-rewards/services/campaign"
	"caffino-rewards/services/directory"
	"caffino-rewards/services/ledger"
	"caffino-rewards/services/redemption"
	"caffino-rewards/services/reward"
	"caffino-rewards/services/settlement"
	"caffino-rewards/services/testutil"
	"caffino-rewards/services/withdrawal"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	engine    *gin.Engine
	dir       *directory.Service
	campaigns *campaign.Service
	clock     *clock.Fake
	codes     refcode.Generator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t,
		&directory.User{}, &directory.Outlet{}, &directory.CheckIn{},
		&campaign.Campaign{}, &reward.Reward{}, &reward.Payout{},
		&redemption.Request{}, &redemption.Offer{}, &ledger.Transaction{},
		&withdrawal.Withdrawal{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	codes := refcode.HashGenerator{}

	dir := directory.NewService(directory.ServiceParams{DB: db, Node: node})
	campaigns := campaign.NewService(campaign.ServiceParams{DB: db, Node: node})
	ledgerSvc := ledger.NewService(ledger.ServiceParams{DB: db, Node: node})
	rewards := reward.NewService(reward.ServiceParams{
		DB: db, Node: node, Clock: fake, Codes: codes,
		Campaigns: campaigns, Directory: dir,
	})
	redemptions := redemption.NewService(redemption.ServiceParams{
		DB: db, Node: node, Clock: fake, Codes: codes, Rewards: rewards,
	})
	settlements := settlement.NewService(settlement.ServiceParams{
		DB: db, Node: node, Clock: fake,
		Rewards: rewards, Directory: dir, Ledger: ledgerSvc, Redemptions: redemptions,
	})
	withdrawals := withdrawal.NewService(withdrawal.ServiceParams{
		DB: db, Node: node, Directory: dir, Ledger: ledgerSvc,
	})

	engine := NewRouter(&config.Config{})
	RegisterRoutes(RouteParams{
		Engine:      engine,
		Rewards:     rewards,
		Redemptions: redemptions,
		Settlements: settlements,
		Withdrawals: withdrawals,
		Ledger:      ledgerSvc,
	})

	return &fixture{engine: engine, dir: dir, campaigns: campaigns, clock: fake, codes: codes}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) seed(t *testing.T) *campaign.Campaign {
	t.Helper()
	ctx := context.Background()

	for _, id := range []string{"referrer-1", "claimer-1"} {
		_, err := f.dir.CreateUser(ctx, &directory.User{UserID: id})
		require.NoError(t, err)
	}
	_, err := f.dir.CreateUser(ctx, &directory.User{UserID: "merchant-1", Point: 10000})
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
	return c
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestReferralFlow(t *testing.T) {
	f := newFixture(t)
	c := f.seed(t)

	rec := f.do(t, http.MethodGet, "/api/v1/referrals/code?referrer_user_id=referrer-1&campaign_id="+c.CampaignID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var codeResp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &codeResp))
	require.Len(t, codeResp.Code, refcode.CodeLength)

	claim := `{"code":"` + codeResp.Code + `","campaign_id":"` + c.CampaignID +
		`","referrer_user_id":"referrer-1","claimer_user_id":"claimer-1"}`
	rec = f.do(t, http.MethodPost, "/api/v1/referrals/claim", claim)
	require.Equal(t, http.StatusCreated, rec.Code)

	// replay of the same claim conflicts
	rec = f.do(t, http.MethodPost, "/api/v1/referrals/claim", claim)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestWithdrawalFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.dir.CreateUser(ctx, &directory.User{UserID: "customer-1", Point: 1000})
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/api/v1/withdrawals", `{"user_id":"customer-1","point":400}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var w struct {
		WithdrawalID string `json:"withdrawal_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &w))

	rec = f.do(t, http.MethodPost, "/api/v1/withdrawals/"+w.WithdrawalID+"/approve", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// a second approval conflicts
	rec = f.do(t, http.MethodPost, "/api/v1/withdrawals/"+w.WithdrawalID+"/approve", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	user, err := f.dir.FindUser(ctx, "customer-1")
	require.NoError(t, err)
	require.EqualValues(t, 600, user.Point)
}

func TestClaim_BadCodeMapsToBadRequest(t *testing.T) {
	f := newFixture(t)
	c := f.seed(t)

	claim := `{"code":"000000","campaign_id":"` + c.CampaignID +
		`","referrer_user_id":"referrer-1","claimer_user_id":"claimer-1"}`
	rec := f.do(t, http.MethodPost, "/api/v1/referrals/claim", claim)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	require.Equal(t, "INVALID_CODE", errResp.Error.Code)
}

func TestGetRewardInfo_GoneAfterExpiry(t *testing.T) {
	f := newFixture(t)
	c := f.seed(t)

	claim := `{"code":"` + f.codes.Code("referrer-1", c.CampaignID) + `","campaign_id":"` + c.CampaignID +
		`","referrer_user_id":"referrer-1","claimer_user_id":"claimer-1"}`
	rec := f.do(t, http.MethodPost, "/api/v1/referrals/claim", claim)
	require.Equal(t, http.StatusCreated, rec.Code)

	var rw struct {
		RewardID string `json:"reward_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rw))

	rec = f.do(t, http.MethodGet, "/api/v1/rewards/"+rw.RewardID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	f.clock.Advance(8 * 24 * time.Hour)

	rec = f.do(t, http.MethodGet, "/api/v1/rewards/"+rw.RewardID, "")
	require.Equal(t, http.StatusGone, rec.Code)
}

func TestMalformedBody(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/referrals/claim", "{")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
