package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	cartapp "github.com/dmehra2102/portal-cart/internal/cart/application"
	cart "github.com/dmehra2102/portal-cart/internal/cart/domain"
	checkoutapp "github.com/dmehra2102/portal-cart/internal/checkout/application"
	"github.com/dmehra2102/portal-cart/internal/checkout/domain"
	checkouthttp "github.com/dmehra2102/portal-cart/internal/checkout/infrastructure/http"
	"github.com/dmehra2102/portal-cart/internal/portal"
)

const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "session"
)

// Deduper drops repeated provider callbacks.
type Deduper interface {
	Key(scope, id string) string
	Seen(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type Handler struct {
	log      *slog.Logger
	sessions *portal.Sessions
	dedupe   Deduper
	tracer   trace.Tracer
}

func NewHandler(log *slog.Logger, sessions *portal.Sessions, dedupe Deduper) *Handler {
	return &Handler{
		log:      log,
		sessions: sessions,
		dedupe:   dedupe,
		tracer:   otel.Tracer("portal-http"),
	}
}

type sessionCtxKey struct{}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(h.withSession)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Delete("/", h.clearCart)
			r.Get("/events", h.cartEvents)
			r.Post("/items", h.addItem)
			r.Delete("/items", h.removeShopItems)
			r.Patch("/items/{hash}", h.adjustItem)
			r.Delete("/items/{hash}", h.removeItem)
			r.Put("/delivery", h.setDelivery)
		})

		r.Post("/session/logout", h.logout)

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/", h.getCheckout)
			r.Post("/", h.pay)
			r.Post("/payment", h.confirmPayment)
			r.Post("/payment-succeeded", h.paymentSucceeded)
			r.Post("/unlock", h.unlock)
			r.Post("/leave", h.leave)
		})
	})
	return r
}

// withSession resolves the visitor's session and forwards their bearer token
// to outbound calls.
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(SessionHeader)
		if id == "" {
			if c, err := r.Cookie(SessionCookie); err == nil {
				id = c.Value
			}
		}
		if id == "" {
			writeError(w, http.StatusUnauthorized, "missing session")
			return
		}

		ctx := context.WithValue(r.Context(), sessionCtxKey{}, id)
		if tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			ctx = checkouthttp.WithSessionToken(ctx, tok)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionID(r *http.Request) string {
	return r.Context().Value(sessionCtxKey{}).(string)
}

// session opens the visitor's session. Read-only routes use sessionID instead
// so that looking at a cart never allocates one.
func (h *Handler) session(r *http.Request) *portal.Session {
	return h.sessions.Get(sessionID(r))
}

type cartView struct {
	Cart             cart.Cart       `json:"cart"`
	ItemCount        int             `json:"itemCount"`
	EstimatedTotal   decimal.Decimal `json:"estimatedTotal"`
	DeliveryRequired bool            `json:"deliveryRequired"`
	Blockers         []cart.Blocker  `json:"blockers"`
	Ready            bool            `json:"ready"`
}

func newCartView(c cart.Cart) cartView {
	blockers := cart.CheckoutBlockers(c)
	if blockers == nil {
		blockers = []cart.Blocker{}
	}
	return cartView{
		Cart:             c,
		ItemCount:        c.ItemCount(),
		EstimatedTotal:   c.EstimatedTotal(),
		DeliveryRequired: cart.RequiresDelivery(c),
		Blockers:         blockers,
		Ready:            len(blockers) == 0,
	}
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newCartView(h.sessions.Cart(r.Context(), sessionID(r))))
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AddItem")
	defer span.End()

	var item cart.CartItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		if errors.Is(err, cart.ErrInvalidItem) {
			h.fail(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	span.SetAttributes(attribute.String("cart.shop", string(item.Shop)))

	store := h.session(r).Cart
	if err := store.Add(ctx, item); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCartView(store.Get(ctx)))
}

type adjustReq struct {
	Delta int `json:"delta"`
}

func (h *Handler) adjustItem(w http.ResponseWriter, r *http.Request) {
	var req adjustReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	store := h.session(r).Cart
	if err := store.AdjustQuantity(r.Context(), chi.URLParam(r, "hash"), req.Delta); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartView(store.Get(r.Context())))
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	store := h.session(r).Cart
	if err := store.Remove(r.Context(), chi.URLParam(r, "hash")); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartView(store.Get(r.Context())))
}

func (h *Handler) removeShopItems(w http.ResponseWriter, r *http.Request) {
	shop := cart.Shop(r.URL.Query().Get("shop"))
	if !shop.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown shop %q", shop))
		return
	}
	store := h.session(r).Cart
	n, err := store.RemoveAllWithFilter(r.Context(), cart.FromShop(shop))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": n, "cart": newCartView(store.Get(r.Context()))})
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	store := h.session(r).Cart
	if err := store.Clear(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartView(store.Get(r.Context())))
}

func (h *Handler) setDelivery(w http.ResponseWriter, r *http.Request) {
	var d cart.Delivery
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	store := h.session(r).Cart
	if err := store.SetDeliveryInformation(r.Context(), d); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartView(store.Get(r.Context())))
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context(), sessionID(r)); err != nil {
		h.fail(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getCheckout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.Status(sessionID(r)))
}

type payReq struct {
	TableNumber string `json:"tableNumber"`
}

type payResp struct {
	Handshake domain.Handshake   `json:"handshake"`
	Status    checkoutapp.Status `json:"status"`
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Pay")
	defer span.End()

	var req payReq
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
	}

	sess := h.session(r)
	// a dropped connection must not cancel an order that is already on its way
	hs, err := sess.Checkout.Pay(context.WithoutCancel(ctx), req.TableNumber)
	if err != nil {
		if target := sess.TakeRedirect(); target != "" {
			w.Header().Set("Location", target)
		}
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payResp{Handshake: hs, Status: sess.Checkout.Status()})
}

type confirmReq struct {
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ConfirmPayment")
	defer span.End()

	var req confirmReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PaymentMethod == "" {
		writeError(w, http.StatusBadRequest, "paymentMethod is required")
		return
	}
	sess := h.session(r)
	if err := sess.Checkout.ConfirmPayment(ctx, req.PaymentMethod); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Checkout.Status())
}

type succeededReq struct {
	ClientSecret string `json:"clientSecret"`
}

func (h *Handler) paymentSucceeded(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req succeededReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClientSecret == "" {
		writeError(w, http.StatusBadRequest, "clientSecret is required")
		return
	}
	sess := h.session(r)

	var key string
	if h.dedupe != nil {
		key = h.dedupe.Key("payment-succeeded", req.ClientSecret)
		seen, err := h.dedupe.Seen(ctx, key)
		if err != nil {
			h.log.Error("callback dedupe unavailable", "err", err)
			key = ""
		} else if seen {
			writeJSON(w, http.StatusOK, map[string]any{"duplicate": true, "status": sess.Checkout.Status()})
			return
		}
	}

	if err := sess.Checkout.PaymentSucceeded(ctx, req.ClientSecret); err != nil {
		if key != "" {
			if rErr := h.dedupe.Release(ctx, key); rErr != nil {
				h.log.Error("callback dedupe release failed", "err", rErr)
			}
		}
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Checkout.Status())
}

func (h *Handler) unlock(w http.ResponseWriter, r *http.Request) {
	sess := h.session(r)
	if err := sess.Checkout.Unlock(r.Context()); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Checkout.Status())
}

type leaveReq struct {
	Confirm bool `json:"confirm"`
}

type leaveResp struct {
	Left   bool               `json:"left"`
	Prompt string             `json:"prompt,omitempty"`
	Status checkoutapp.Status `json:"status"`
}

// leave is the navigation guard. Without confirm the prompt is returned and
// nothing changes while a payment is active.
func (h *Handler) leave(w http.ResponseWriter, r *http.Request) {
	var req leaveReq
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
	}
	sess := h.session(r)
	var prompt string
	left, err := sess.Checkout.Navigate(r.Context(), func(p string) bool {
		prompt = p
		return req.Confirm
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	resp := leaveResp{Left: left, Status: sess.Checkout.Status()}
	if !left {
		resp.Prompt = prompt
		writeJSON(w, http.StatusConflict, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "err", err)
	}
	var se *domain.SubmissionError
	if errors.As(err, &se) && se.Reason != "" {
		writeError(w, status, se.Reason)
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	var se *domain.SubmissionError
	switch {
	case errors.Is(err, cart.ErrInvalidItem):
		return http.StatusBadRequest
	case errors.Is(err, cartapp.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, cartapp.ErrLocked),
		errors.Is(err, checkoutapp.ErrNotReady),
		errors.Is(err, checkoutapp.ErrInProgress),
		errors.Is(err, checkoutapp.ErrNoPendingPayment),
		errors.Is(err, checkoutapp.ErrAbandoned):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDebtor):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrPaymentDeclined):
		return http.StatusUnprocessableEntity
	case errors.As(err, &se):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
