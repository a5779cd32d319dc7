package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/honeynil/dreamnity-payments/internal/infrastructure/observability"
	"github.com/honeynil/dreamnity-payments/internal/models"
	service "github.com/honeynil/dreamnity-payments/internal/services"
	pkgerrors "github.com/honeynil/dreamnity-payments/pkg/errors"
)

const maxImportBytes = 10 << 20

// Services bundles everything the HTTP surface calls into.
type Services struct {
	Auth       service.AuthService
	Ledger     service.LedgerService
	Wallet     service.WalletService
	Feed       service.NotificationFeed
	Rates      service.RatesService
	Settlement service.SettlementService
	Data       service.DataService
}

type Handler struct {
	svc Services
}

func NewHandler(s Services) *Handler {
	return &Handler{svc: s}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// fail maps service errors to HTTP statuses. Unexpected errors are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrValidation), errors.Is(err, pkgerrors.ErrInvalidSnapshot):
		h.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, pkgerrors.ErrInvalidCredentials), errors.Is(err, pkgerrors.ErrNotAuthenticated):
		h.writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, pkgerrors.ErrUserNotFound),
		errors.Is(err, pkgerrors.ErrTransactionNotFound),
		errors.Is(err, pkgerrors.ErrNotificationNotFound),
		errors.Is(err, pkgerrors.ErrSnapshotNotFound):
		h.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, pkgerrors.ErrDuplicateEmail), errors.Is(err, pkgerrors.ErrLoginSuperseded):
		h.writeError(w, http.StatusConflict, err)
	case errors.Is(err, pkgerrors.ErrRateUnavailable), errors.Is(err, pkgerrors.ErrClosed):
		h.writeError(w, http.StatusServiceUnavailable, err)
	default:
		observability.Logger(r.Context()).Error("request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, err)
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/signup", h.Signup).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/rates/usd-inr", h.GetRate).Methods("GET")
}

func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/logout", h.Logout).Methods("POST")
	r.HandleFunc("/profile", h.GetProfile).Methods("GET")
	r.HandleFunc("/profile", h.UpdateProfile).Methods("PUT")

	r.HandleFunc("/payment-links", h.CreatePaymentLink).Methods("POST")
	r.HandleFunc("/transactions", h.ListTransactions).Methods("GET")
	r.HandleFunc("/transactions", h.ClearTransactions).Methods("DELETE")
	r.HandleFunc("/transactions/{id}/complete", h.CompleteTransaction).Methods("POST")

	r.HandleFunc("/wallet", h.GetWallet).Methods("GET")
	r.HandleFunc("/wallet/settings", h.UpdateWalletSettings).Methods("PUT")
	r.HandleFunc("/wallet/convert", h.Convert).Methods("POST")
	r.HandleFunc("/wallet/transactions", h.ClearWalletTransactions).Methods("DELETE")

	r.HandleFunc("/notifications", h.ListNotifications).Methods("GET")
	r.HandleFunc("/notifications", h.ClearNotifications).Methods("DELETE")
	r.HandleFunc("/notifications/stream", h.StreamNotifications).Methods("GET")
	r.HandleFunc("/notifications/read-all", h.MarkAllNotificationsRead).Methods("POST")
	r.HandleFunc("/notifications/{id}/read", h.MarkNotificationRead).Methods("POST")
	r.HandleFunc("/notifications/{id}", h.RemoveNotification).Methods("DELETE")

	r.HandleFunc("/settlement", h.GetSettlement).Methods("GET")
	r.HandleFunc("/settlement", h.SetSettlement).Methods("PUT")

	r.HandleFunc("/data/export", h.ExportData).Methods("GET")
	r.HandleFunc("/data/import", h.ImportData).Methods("POST")
	r.HandleFunc("/data/restore/{id}", h.RestoreData).Methods("POST")
	r.HandleFunc("/data", h.ClearData).Methods("DELETE")
	r.HandleFunc("/data/last-updated", h.LastUpdated).Methods("GET")
}

// userResponse is a user without the password hash.
type userResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	AccountNo  string `json:"accountNo"`
	IFSCCode   string `json:"ifscCode"`
	JoinedDate string `json:"joinedDate"`
	Avatar     string `json:"avatar,omitempty"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Phone:      u.Phone,
		AccountNo:  u.AccountNo,
		IFSCCode:   u.IFSCCode,
		JoinedDate: u.JoinedDate,
		Avatar:     u.Avatar,
	}
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.NewUser
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.svc.Auth.Signup(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	token, user, err := h.svc.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": toUserResponse(user)})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Auth.Logout(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Auth.CurrentUser(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.ProfileUpdate
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.svc.Auth.UpdateProfile(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) GetRate(w http.ResponseWriter, r *http.Request) {
	quote, err := h.svc.Rates.Current(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, quote)
}

func (h *Handler) CreatePaymentLink(w http.ResponseWriter, r *http.Request) {
	var req models.PaymentLinkRequest
	if !h.decode(w, r, &req) {
		return
	}
	tx, err := h.svc.Ledger.CreatePaymentLink(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, tx)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	status := models.StatusType(r.URL.Query().Get("status"))
	txs, err := h.svc.Ledger.FilterByStatus(r.Context(), status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, txs)
}

func (h *Handler) CompleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	tx, err := h.svc.Ledger.SetStatus(r.Context(), id, models.StatusCompleted)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

func (h *Handler) ClearTransactions(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ledger.Clear(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Wallet.Summary(r.Context()))
}

func (h *Handler) UpdateWalletSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InitialUsdtBalance *string `json:"initialUsdtBalance"`
		ConversionRate     *string `json:"conversionRate"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.InitialUsdtBalance != nil {
		if err := h.svc.Wallet.SetInitialBalance(r.Context(), *req.InitialUsdtBalance); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if req.ConversionRate != nil {
		if err := h.svc.Wallet.SetConversionRate(r.Context(), *req.ConversionRate); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	h.writeJSON(w, http.StatusOK, h.svc.Wallet.Summary(r.Context()))
}

func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WalletAddress string `json:"walletAddress"`
		AmountUsdt    string `json:"amountUsdt"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	tx, err := h.svc.Wallet.Convert(r.Context(), req.WalletAddress, req.AmountUsdt)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, tx)
}

func (h *Handler) ClearWalletTransactions(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Wallet.ClearTransactions(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, models.FeedView{
		Notifications: h.svc.Feed.List(r.Context()),
		UnreadCount:   h.svc.Feed.UnreadCount(r.Context()),
	})
}

// StreamNotifications pushes the feed view as server-sent events on every change.
func (h *Handler) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	views, cancel := h.svc.Feed.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case view, open := <-views:
			if !open {
				return
			}
			data, err := json.Marshal(view)
			if err != nil {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Feed.MarkRead(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	h.svc.Feed.MarkAllRead(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RemoveNotification(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Feed.Remove(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	h.svc.Feed.ClearAll(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]bool{"enabled": h.svc.Settlement.Enabled(r.Context())})
}

func (h *Handler) SetSettlement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	enabled, err := h.svc.Settlement.SetEnabled(r.Context(), req.Enabled)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

func (h *Handler) ExportData(w http.ResponseWriter, r *http.Request) {
	export, err := h.svc.Data.Export(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName))
	if export.ArchiveID != 0 {
		w.Header().Set("X-Archive-Id", strconv.FormatInt(export.ArchiveID, 10))
	}
	h.writeJSON(w, http.StatusOK, export.Snapshot)
}

func (h *Handler) ImportData(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	snap, err := h.svc.Data.Import(r.Context(), body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{
		"users":        len(snap.Users),
		"transactions": len(snap.Transactions),
	})
}

func (h *Handler) RestoreData(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, errors.New("invalid snapshot id"))
		return
	}
	snap, err := h.svc.Data.RestoreArchived(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{
		"users":        len(snap.Users),
		"transactions": len(snap.Transactions),
	})
}

func (h *Handler) ClearData(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Data.Clear(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) LastUpdated(w http.ResponseWriter, r *http.Request) {
	ts, ok := h.svc.Data.LastUpdated(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusOK, map[string]any{"lastUpdated": nil})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"lastUpdated": ts})
}
