package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"pos-ledger/internal/app"
	"pos-ledger/internal/core"
)

// createSale handles POST /api/sales.
func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req app.CreateSaleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.CreateSale(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, res)
}

// listSales handles GET /api/sales?status=HELD. Status defaults to HELD, the
// list a till shows when resuming parked bills.
func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	status := core.SaleStatus(strings.ToUpper(r.URL.Query().Get("status")))
	if status == "" {
		status = core.SaleHeld
	}
	res, err := h.svc.ListSales(r.Context(), status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// previewTotals handles POST /api/sales/totals.
func (h *Handler) previewTotals(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lines []app.AddItemRequest `json:"lines"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Totals(r.Context(), req.Lines)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// getSale handles GET /api/sales/{id}.
func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// addItem handles POST /api/sales/{id}/items.
func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	var req app.AddItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.AddItem(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// setQuantity handles PUT /api/sales/{id}/items/{productID}.
func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	var req app.SetQuantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.SetQuantity(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "productID"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// removeItem handles DELETE /api/sales/{id}/items/{productID}.
func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.RemoveItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "productID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) holdSale(w http.ResponseWriter, r *http.Request) {
	var req app.HoldRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	res, err := h.svc.HoldSale(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) resumeSale(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ResumeSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) expireSale(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ExpireSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) voidSale(w http.ResponseWriter, r *http.Request) {
	var req app.VoidRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.VoidSale(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// checkout handles POST /api/sales/{id}/checkout.
func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req app.CheckoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Checkout(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// startLayaway handles POST /api/sales/{id}/layaway.
func (h *Handler) startLayaway(w http.ResponseWriter, r *http.Request) {
	var req app.StartLayawayRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.StartLayaway(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, res)
}

// listRefunds handles GET /api/sales/{id}/refunds.
func (h *Handler) listRefunds(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListRefunds(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// refundSale handles POST /api/sales/{id}/refunds.
func (h *Handler) refundSale(w http.ResponseWriter, r *http.Request) {
	var req app.RefundRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.RefundSale(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, res)
}
