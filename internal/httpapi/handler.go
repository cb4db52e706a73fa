package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"caffino-rewards/pkg/config"
	"caffino-rewards/pkg/errutil"
	"caffino-rewards/pkg/health"
	"caffino-rewards/pkg/middleware"
	"caffino-rewards/services/ledger"
	"caffino-rewards/services/redemption"
	"caffino-rewards/services/reward"
	"caffino-rewards/services/settlement"
	"caffino-rewards/services/withdrawal"
)

var Module = fx.Module("httpapi",
	fx.Provide(NewRouter),
	fx.Invoke(RegisterRoutes),
)

func NewRouter(cfg *config.Config) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	e := gin.New()
	e.Use(gin.Recovery(), middleware.Error())

	e.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return e
}

type RouteParams struct {
	fx.In

	Engine      *gin.Engine
	Rewards     *reward.Service
	Redemptions *redemption.Service
	Settlements *settlement.Service
	Withdrawals *withdrawal.Service
	Ledger      *ledger.Service
	Health      health.HealthService `optional:"true"`
}

func RegisterRoutes(p RouteParams) {
	h := &handler{
		rewards:     p.Rewards,
		redemptions: p.Redemptions,
		settlements: p.Settlements,
		withdrawals: p.Withdrawals,
		ledger:      p.Ledger,
	}

	if p.Health != nil {
		p.Engine.GET("/livez", p.Health.Liveness)
		p.Engine.GET("/readyz", p.Health.Readiness)
	}

	v1 := p.Engine.Group("/api/v1")

	v1.GET("/referrals/code", h.getReferralCode)
	v1.POST("/referrals/claim", h.claimReferral)

	v1.GET("/rewards", h.listRewards)
	v1.GET("/rewards/:reward_id", h.getRewardInfo)
	v1.POST("/rewards/:reward_id/code", h.requestRedemptionCode)

	v1.GET("/redemptions/resolve", h.resolveCode)
	v1.POST("/redemptions/complete", h.completeRedemption)

	v1.GET("/offers", h.listOffers)
	v1.POST("/offers/:offer_id/exchange", h.exchangeVoucher)

	v1.POST("/withdrawals", h.requestWithdrawal)
	v1.GET("/withdrawals", h.listWithdrawals)
	v1.POST("/withdrawals/:withdrawal_id/approve", h.approveWithdrawal)
	v1.POST("/withdrawals/:withdrawal_id/reject", h.rejectWithdrawal)

	v1.GET("/users/:user_id/transactions", h.listTransactions)
}

type handler struct {
	rewards     *reward.Service
	redemptions *redemption.Service
	settlements *settlement.Service
	withdrawals *withdrawal.Service
	ledger      *ledger.Service
}

func (h *handler) getReferralCode(c *gin.Context) {
	code, err := h.rewards.GetReferralCode(c.Request.Context(),
		c.Query("referrer_user_id"), c.Query("campaign_id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code})
}

func (h *handler) claimReferral(c *gin.Context) {
	var in reward.ClaimReferralInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	rw, err := h.rewards.ClaimReferral(c.Request.Context(), in)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, rw)
}

func (h *handler) listRewards(c *gin.Context) {
	rewards, err := h.rewards.ListActiveByOwner(c.Request.Context(), c.Query("owner_user_id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rewards": rewards})
}

func (h *handler) getRewardInfo(c *gin.Context) {
	info, err := h.rewards.GetRewardInfo(c.Request.Context(), c.Param("reward_id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *handler) requestRedemptionCode(c *gin.Context) {
	var body struct {
		OwnerUserID string `json:"owner_user_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	req, err := h.redemptions.RequestCode(c.Request.Context(), c.Param("reward_id"), body.OwnerUserID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":         req.Code,
		"refreshed_at": req.RefreshedAt,
	})
}

func (h *handler) resolveCode(c *gin.Context) {
	info, err := h.redemptions.ResolveByCode(c.Request.Context(), c.Query("code"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *handler) completeRedemption(c *gin.Context) {
	var in settlement.CompleteRedemptionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	if err := h.settlements.CompleteRedemption(c.Request.Context(), in); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "settled"})
}

func (h *handler) listOffers(c *gin.Context) {
	offers, err := h.redemptions.ListOffers(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offers": offers})
}

func (h *handler) exchangeVoucher(c *gin.Context) {
	var body struct {
		CustomerUserID string `json:"customer_user_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	rw, err := h.settlements.ExchangeVoucher(c.Request.Context(), body.CustomerUserID, c.Param("offer_id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, rw)
}

func (h *handler) requestWithdrawal(c *gin.Context) {
	var body struct {
		UserID string `json:"user_id"`
		Point  int64  `json:"point"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	w, err := h.withdrawals.Request(c.Request.Context(), body.UserID, body.Point)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

func (h *handler) listWithdrawals(c *gin.Context) {
	rows, err := h.withdrawals.List(c.Request.Context(), withdrawal.Status(c.Query("status")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": rows})
}

func (h *handler) approveWithdrawal(c *gin.Context) {
	if err := h.withdrawals.Approve(c.Request.Context(), c.Param("withdrawal_id")); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "approved"})
}

func (h *handler) rejectWithdrawal(c *gin.Context) {
	if err := h.withdrawals.Reject(c.Request.Context(), c.Param("withdrawal_id")); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}

func (h *handler) listTransactions(c *gin.Context) {
	rows, err := h.ledger.ListByUser(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": rows})
}
