package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pos-ledger/internal/app"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	// RateLimitRPS <= 0 disables rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// Handler holds the ApplicationService behind the HTTP routes.
type Handler struct {
	svc     app.ApplicationService
	log     *zap.Logger
	schemas map[string]any
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, opts Options, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		svc:     svc,
		log:     log.Named("http"),
		schemas: requestSchemas(),
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(h.log))
	r.Use(Recoverer(h.log))
	r.Use(CORS(opts.AllowedOrigins))

	r.Get("/api/health", h.health)

	r.Group(func(r chi.Router) {
		if opts.RateLimitRPS > 0 {
			r.Use(NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst).Middleware)
		}
		r.Use(RequestBodyLimit(maxBodyBytes))

		// ── Schemas ───────────────────────────────────────────────────────────
		r.Get("/api/schemas", h.listSchemas)
		r.Get("/api/schemas/{name}", h.getSchema)

		// ── Sales ─────────────────────────────────────────────────────────────
		r.Post("/api/sales", h.createSale)
		r.Get("/api/sales", h.listSales)
		r.Post("/api/sales/totals", h.previewTotals)
		r.Get("/api/sales/{id}", h.getSale)
		r.Post("/api/sales/{id}/items", h.addItem)
		r.Put("/api/sales/{id}/items/{productID}", h.setQuantity)
		r.Delete("/api/sales/{id}/items/{productID}", h.removeItem)
		r.Post("/api/sales/{id}/hold", h.holdSale)
		r.Post("/api/sales/{id}/resume", h.resumeSale)
		r.Post("/api/sales/{id}/expire", h.expireSale)
		r.Post("/api/sales/{id}/void", h.voidSale)
		r.Post("/api/sales/{id}/checkout", h.checkout)
		r.Post("/api/sales/{id}/layaway", h.startLayaway)
		r.Get("/api/sales/{id}/refunds", h.listRefunds)
		r.Post("/api/sales/{id}/refunds", h.refundSale)

		// ── Vouchers ──────────────────────────────────────────────────────────
		r.Post("/api/vouchers", h.issueVoucher)
		r.Get("/api/vouchers/{code}", h.getVoucher)
		r.Post("/api/vouchers/{code}/redeem", h.redeemVoucher)
		r.Post("/api/vouchers/{code}/cancel", h.cancelVoucher)

		// ── Layaway ───────────────────────────────────────────────────────────
		r.Get("/api/layaways", h.listLayaways)
		r.Get("/api/layaways/{id}", h.getLayaway)
		r.Post("/api/layaways/{id}/payments", h.payLayaway)
		r.Post("/api/layaways/{id}/cancel", h.cancelLayaway)
		r.Post("/api/layaways/{id}/overdue", h.markLayawayOverdue)
		r.Post("/api/layaways/{id}/reschedule", h.rescheduleLayaway)

		// ── Loyalty ───────────────────────────────────────────────────────────
		r.Get("/api/rewards", h.listRewards)
		r.Get("/api/loyalty/tiers", h.listTiers)
		r.Post("/api/loyalty/{customerID}", h.openLoyaltyAccount)
		r.Get("/api/loyalty/{customerID}", h.getLoyaltyAccount)
		r.Post("/api/loyalty/{customerID}/accrue", h.accruePoints)
		r.Post("/api/loyalty/{customerID}/redeem", h.redeemReward)
	})

	return r
}

// health reports liveness.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	return decodeJSON(w, r, v)
}
