package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/iliyamo/gym-class-booking/internal/checkin"
	"github.com/iliyamo/gym-class-booking/internal/model"
	"github.com/iliyamo/gym-class-booking/internal/qrtoken"
	"github.com/iliyamo/gym-class-booking/internal/queue"
	queuepub "github.com/iliyamo/gym-class-booking/internal/service"
)

// MemberQRHandler issues QR action tokens and serves reward progress
// and claims for the authenticated member.
type MemberQRHandler struct {
	Svc *checkin.Service
}

func NewMemberQRHandler(svc *checkin.Service) *MemberQRHandler {
	return &MemberQRHandler{Svc: svc}
}

// IssueToken mints a short-lived action token for the member.  The
// action path segment selects entry, exit or reward; reward tokens are
// only issued once both goals are met, so an ineligible member never
// holds a reward code that the claim path would reject.  With
// ?format=png the token is rendered as a QR code image.
// GET /v1/qr/:action
func (h *MemberQRHandler) IssueToken(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	action := qrtoken.Action(strings.ToLower(c.Param("action")))
	if !action.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown action"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	salt := ""
	if action == qrtoken.ActionReward {
		progress, err := h.Svc.Progress(ctx, uid)
		if err != nil {
			return checkinErrJSON(c, err)
		}
		if !h.Svc.Eligible(progress) {
			return checkinErrJSON(c, checkin.ErrGoalNotReached)
		}
		// Salt keeps two reward tokens minted in the same millisecond
		// distinct as claim keys.
		salt = uuid.NewString()
	}

	tok, payload, err := h.Svc.Codec().Issue(uid, action, salt)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token issue failed"})
	}

	if strings.EqualFold(c.QueryParam("format"), "png") {
		png, err := qrcode.Encode(tok, qrcode.Medium, 256)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "qr render failed"})
		}
		return c.Blob(http.StatusOK, "image/png", png)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"token":         tok,
		"action":        payload.Action,
		"issued_at_ms":  payload.IssuedAt,
		"expires_in_ms": h.Svc.Codec().MaxAge().Milliseconds(),
	})
}

// Progress returns the member's unclaimed hours and attended classes
// along with the goal thresholds.
// GET /v1/rewards/progress
func (h *MemberQRHandler) Progress(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	progress, err := h.Svc.Progress(ctx, uid)
	if err != nil {
		return checkinErrJSON(c, err)
	}
	hoursTarget, classesTarget := h.Svc.Targets()
	return c.JSON(http.StatusOK, echo.Map{
		"progress": progress,
		"targets": echo.Map{
			"hours":   hoursTarget,
			"classes": classesTarget,
		},
		"eligible": h.Svc.Eligible(progress),
	})
}

type claimReq struct {
	Token      string `json:"token"`
	RewardType string `json:"reward_type"`
}

// ClaimReward redeems a reward token for the authenticated member.
// POST /v1/rewards/claim
func (h *MemberQRHandler) ClaimReward(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req claimReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	claim, err := h.Svc.ClaimReward(ctx, uid, strings.TrimSpace(req.Token), strings.TrimSpace(req.RewardType))
	if err != nil {
		return checkinErrJSON(c, err)
	}

	go func(claim model.RewardClaim) {
		pubCtx, pubCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer pubCancel()
		_ = queuepub.Publish(pubCtx, queue.QueueRewardClaimed, queue.RewardClaimedEvent{
			ClaimID:    claim.ID,
			UserID:     claim.UserID,
			RewardType: claim.RewardType,
			ClaimedAt:  claim.ClaimedAt.UTC().Format(time.RFC3339),
		})
	}(*claim)

	return c.JSON(http.StatusCreated, echo.Map{
		"claim_id":    claim.ID,
		"reward_type": claim.RewardType,
		"claimed_at":  claim.ClaimedAt,
	})
}

type checkInResp struct {
	ID           uint64     `json:"id"`
	CheckedInAt  time.Time  `json:"checked_in_at"`
	CheckedOutAt *time.Time `json:"checked_out_at,omitempty"`
	Hours        float64    `json:"hours"`
}

func toCheckInResp(ci *model.CheckIn) checkInResp {
	return checkInResp{
		ID:           ci.ID,
		CheckedInAt:  ci.CheckedInAt,
		CheckedOutAt: ci.CheckedOutAt,
		Hours:        ci.Duration().Hours(),
	}
}

// MyCheckIns lists the member's visit history, newest first.
// GET /v1/my-checkins
func (h *MemberQRHandler) MyCheckIns(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Svc.ListCheckIns(ctx, uid)
	if err != nil {
		return checkinErrJSON(c, err)
	}
	out := make([]checkInResp, 0, len(items))
	for _, ci := range items {
		out = append(out, toCheckInResp(ci))
	}
	return c.JSON(http.StatusOK, echo.Map{"checkins": out})
}
