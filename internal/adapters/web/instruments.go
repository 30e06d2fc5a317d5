package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"pos-ledger/internal/app"
	"pos-ledger/internal/core"
)

// ── Vouchers ──────────────────────────────────────────────────────────────────

func (h *Handler) issueVoucher(w http.ResponseWriter, r *http.Request) {
	var req app.IssueVoucherRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.IssueVoucher(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, res)
}

func (h *Handler) getVoucher(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetVoucher(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) redeemVoucher(w http.ResponseWriter, r *http.Request) {
	var req app.RedeemVoucherRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.RedeemVoucher(r.Context(), chi.URLParam(r, "code"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) cancelVoucher(w http.ResponseWriter, r *http.Request) {
	var req app.CancelVoucherRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	res, err := h.svc.CancelVoucher(r.Context(), chi.URLParam(r, "code"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// ── Layaway ───────────────────────────────────────────────────────────────────

// listLayaways handles GET /api/layaways?status=OVERDUE. Status defaults to ACTIVE.
func (h *Handler) listLayaways(w http.ResponseWriter, r *http.Request) {
	status := core.LayawayStatus(strings.ToUpper(r.URL.Query().Get("status")))
	if status == "" {
		status = core.LayawayActive
	}
	res, err := h.svc.ListLayaways(r.Context(), status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) getLayaway(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetLayaway(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) payLayaway(w http.ResponseWriter, r *http.Request) {
	var req app.LayawayPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.PayLayaway(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) cancelLayaway(w http.ResponseWriter, r *http.Request) {
	var req app.CancelLayawayRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.CancelLayaway(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) markLayawayOverdue(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.MarkLayawayOverdue(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) rescheduleLayaway(w http.ResponseWriter, r *http.Request) {
	var req app.RescheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.RescheduleLayaway(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// ── Loyalty ───────────────────────────────────────────────────────────────────

func (h *Handler) listRewards(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListRewards(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) listTiers(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListTiers(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// openLoyaltyAccount handles POST /api/loyalty/{customerID}. Opening an existing account returns it.
func (h *Handler) openLoyaltyAccount(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.OpenLoyaltyAccount(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) getLoyaltyAccount(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetLoyaltyAccount(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) accruePoints(w http.ResponseWriter, r *http.Request) {
	var req app.AccrueRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.AccruePoints(r.Context(), chi.URLParam(r, "customerID"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) redeemReward(w http.ResponseWriter, r *http.Request) {
	var req app.RedeemRewardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.RedeemReward(r.Context(), chi.URLParam(r, "customerID"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}
