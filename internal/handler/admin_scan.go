package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-class-booking/internal/checkin"
	"github.com/iliyamo/gym-class-booking/internal/qrtoken"
	"github.com/iliyamo/gym-class-booking/internal/queue"
	queuepub "github.com/iliyamo/gym-class-booking/internal/service"
)

// AdminScanHandler is the front-desk scanner endpoint.  Staff scan a
// member's entry or exit code and the protocol opens or closes a
// check-in.
type AdminScanHandler struct {
	Svc *checkin.Service
}

func NewAdminScanHandler(svc *checkin.Service) *AdminScanHandler {
	return &AdminScanHandler{Svc: svc}
}

type scanReq struct {
	Token string `json:"token"`
}

// Scan redeems a scanned entry or exit token.
// POST /v1/admin/scan
func (h *AdminScanHandler) Scan(c echo.Context) error {
	var req scanReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Svc.Redeem(ctx, strings.TrimSpace(req.Token))
	if err != nil {
		return checkinErrJSON(c, err)
	}

	if res.CheckIn != nil {
		ev := queue.CheckInEvent{
			CheckInID:  res.CheckIn.ID,
			UserID:     res.UserID,
			Action:     string(res.Action),
			OccurredAt: time.Now().UTC().Format(time.RFC3339),
		}
		go func() {
			pubCtx, pubCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer pubCancel()
			_ = queuepub.Publish(pubCtx, queue.QueueMemberCheckedIn, ev)
		}()
	}

	resp := echo.Map{
		"action":  res.Action,
		"user_id": res.UserID,
	}
	if res.CheckIn != nil {
		resp["checkin"] = toCheckInResp(res.CheckIn)
	}
	if res.Action == qrtoken.ActionEntry && res.OpenCheckIns > 1 {
		// More than one open visit means a missed exit scan somewhere;
		// surface it so the desk can correct the record.
		resp["open_checkins"] = res.OpenCheckIns
		resp["warning"] = "member already had an open check-in"
	}
	return c.JSON(http.StatusOK, resp)
}
