package web

import (
	"encoding/json"
	"net/http"
	"reflect"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"

	"pos-ledger/internal/app"
)

var decimalType = reflect.TypeOf(decimal.Decimal{})

// requestSchemas reflects every request body the API accepts, keyed by the
// name used in /api/schemas/{name}. Form-rendering clients build their
// inputs from these.
func requestSchemas() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == decimalType {
				return &jsonschema.Schema{
					Type:        "string",
					Pattern:     `^-?[0-9]+(\.[0-9]+)?$`,
					Description: "decimal amount",
				}
			}
			return nil
		},
	}
	bodies := map[string]any{
		"create-sale":        app.CreateSaleRequest{},
		"add-item":           app.AddItemRequest{},
		"set-quantity":       app.SetQuantityRequest{},
		"hold":               app.HoldRequest{},
		"void":               app.VoidRequest{},
		"checkout":           app.CheckoutRequest{},
		"issue-voucher":      app.IssueVoucherRequest{},
		"redeem-voucher":     app.RedeemVoucherRequest{},
		"cancel-voucher":     app.CancelVoucherRequest{},
		"start-layaway":      app.StartLayawayRequest{},
		"layaway-payment":    app.LayawayPaymentRequest{},
		"cancel-layaway":     app.CancelLayawayRequest{},
		"reschedule-layaway": app.RescheduleRequest{},
		"accrue":             app.AccrueRequest{},
		"redeem-reward":      app.RedeemRewardRequest{},
		"refund":             app.RefundRequest{},
	}
	out := make(map[string]any, len(bodies))
	for name, v := range bodies {
		out[name] = reflector.Reflect(v)
	}
	return out
}

// listSchemas handles GET /api/schemas.
func (h *Handler) listSchemas(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.schemas))
	for name := range h.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	writeJSON(w, struct {
		Schemas []string `json:"schemas"`
	}{Schemas: names})
}

// getSchema handles GET /api/schemas/{name}.
func (h *Handler) getSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s, ok := h.schemas[name]
	if !ok {
		writeError(w, r, "unknown schema "+name, "NOT_FOUND", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	_ = json.NewEncoder(w).Encode(s)
}
