package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ftledger/internal/token/models"
	"ftledger/internal/token/ports"
	id "ftledger/pkg/domain"
	dErrors "ftledger/pkg/domain-errors"
	"ftledger/pkg/platform/httputil"
	"ftledger/pkg/platform/middleware/metadata"
	"ftledger/pkg/requestcontext"
)

// maxActionBody bounds POST /v1/actions bodies. TransferToUsers with a few
// thousand recipients fits comfortably.
const maxActionBody = 1 << 20

// Handler wires ledger endpoints to the dispatcher.
type Handler struct {
	ledger ports.Ledger
	logger *slog.Logger
}

// New constructs a ledger handler with its dependencies.
func New(ledger ports.Ledger, logger *slog.Logger) *Handler {
	return &Handler{
		ledger: ledger,
		logger: logger,
	}
}

// Register mounts ledger endpoints on the router. requireAuth guards the
// action endpoint; queries are public.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.With(requireAuth).Post("/v1/actions", h.HandleAction)

	r.Get("/v1/token", h.HandleToken)
	r.Get("/v1/balances/{account}", h.HandleBalance)
	r.Get("/v1/allowances/{owner}/{spender}", h.HandleAllowance)
	r.Get("/v1/admins", h.HandleAdmins)
	r.Get("/v1/transactions/{account}", h.HandleTxIDs)
	r.Get("/v1/transactions/{account}/{txID}", h.HandleTxValidity)
}

// HandleAction handles POST /v1/actions requests.
func (h *Handler) HandleAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	caller, ok := requestcontext.Caller(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxActionBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body too large"))
			return
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "read request body"))
		return
	}

	action, err := models.DecodeAction(body)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid action payload",
			"request_id", requestID,
			"client_ip", metadata.GetClientIP(ctx),
			"caller", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	reply, err := h.ledger.Handle(ctx, caller, action)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	raw, err := models.EncodeReply(reply)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to encode reply",
			"request_id", requestID,
			"action", action.Kind(),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "encode reply"))
		return
	}

	h.logger.DebugContext(ctx, "action served",
		"request_id", requestID,
		"action", action.Kind(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, rawJSON(raw))
}

// HandleToken handles GET /v1/token requests.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	resp, err := h.tokenInfo(r.Context())
	if err != nil {
		h.fail(w, r, "token info query failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleBalance handles GET /v1/balances/{account} requests.
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	account, err := id.ParseActorID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reply, err := ask[models.BalanceOfReply](r.Context(), h.ledger, models.BalanceOfQuery{Account: account})
	if err != nil {
		h.fail(w, r, "balance query failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{Account: account, Balance: reply.Amount})
}

// HandleAllowance handles GET /v1/allowances/{owner}/{spender} requests.
func (h *Handler) HandleAllowance(w http.ResponseWriter, r *http.Request) {
	owner, err := id.ParseActorID(chi.URLParam(r, "owner"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	spender, err := id.ParseActorID(chi.URLParam(r, "spender"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reply, err := ask[models.AllowanceReply](r.Context(), h.ledger, models.AllowanceOfAccountQuery{
		Account:         owner,
		ApprovedAccount: spender,
	})
	if err != nil {
		h.fail(w, r, "allowance query failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AllowanceResponse{Owner: owner, Spender: spender, Allowance: reply.Amount})
}

// HandleAdmins handles GET /v1/admins requests.
func (h *Handler) HandleAdmins(w http.ResponseWriter, r *http.Request) {
	reply, err := ask[models.AdminsReply](r.Context(), h.ledger, models.AdminsQuery{})
	if err != nil {
		h.fail(w, r, "admins query failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AdminsResponse{Admins: reply.Admins})
}

// HandleTxIDs handles GET /v1/transactions/{account} requests.
func (h *Handler) HandleTxIDs(w http.ResponseWriter, r *http.Request) {
	account, err := id.ParseActorID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reply, err := ask[models.TxIDsForAccountReply](r.Context(), h.ledger, models.TxIDsForAccountQuery{Account: account})
	if err != nil {
		h.fail(w, r, "tx ids query failed", err)
		return
	}
	txIDs := reply.TxIDs
	if txIDs == nil {
		txIDs = []id.TxID{}
	}
	httputil.WriteJSON(w, http.StatusOK, TxIDsResponse{Account: account, TxIDs: txIDs})
}

// HandleTxValidity handles GET /v1/transactions/{account}/{txID} requests.
// A tx id without a live record answers 404.
func (h *Handler) HandleTxValidity(w http.ResponseWriter, r *http.Request) {
	account, err := id.ParseActorID(chi.URLParam(r, "account"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	txID, err := id.ParseTxID(chi.URLParam(r, "txID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	reply, err := ask[models.TxValidityTimeReply](r.Context(), h.ledger, models.TxValidityTimeQuery{
		Account: account,
		TxID:    txID,
	})
	if err != nil {
		h.fail(w, r, "tx validity query failed", err)
		return
	}
	if reply.ValidUntil == nil {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{
			Error:       "NotFound",
			Description: fmt.Sprintf("no live transaction %s for %s", txID, account),
		})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, TxValidityResponse{Account: account, TxID: txID, ValidUntil: *reply.ValidUntil})
}

func (h *Handler) tokenInfo(ctx context.Context) (*TokenResponse, error) {
	name, err := ask[models.NameReply](ctx, h.ledger, models.NameQuery{})
	if err != nil {
		return nil, err
	}
	symbol, err := ask[models.SymbolReply](ctx, h.ledger, models.SymbolQuery{})
	if err != nil {
		return nil, err
	}
	decimals, err := ask[models.DecimalsReply](ctx, h.ledger, models.DecimalsQuery{})
	if err != nil {
		return nil, err
	}
	description, err := ask[models.DescriptionReply](ctx, h.ledger, models.DescriptionQuery{})
	if err != nil {
		return nil, err
	}
	links, err := ask[models.ExternalLinksReply](ctx, h.ledger, models.ExternalLinksQuery{})
	if err != nil {
		return nil, err
	}
	current, err := ask[models.CurrentSupplyReply](ctx, h.ledger, models.CurrentSupplyQuery{})
	if err != nil {
		return nil, err
	}
	total, err := ask[models.TotalSupplyReply](ctx, h.ledger, models.TotalSupplyQuery{})
	if err != nil {
		return nil, err
	}
	cfg, err := ask[models.ConfigReply](ctx, h.ledger, models.ConfigQuery{})
	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		Name:          name.Name,
		Symbol:        symbol.Symbol,
		Decimals:      decimals.Decimals,
		Description:   description.Description,
		ExternalLinks: links.Links,
		CurrentSupply: current.Amount,
		TotalSupply:   total.Amount,
		Config:        cfg.Config,
	}, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg,
		"request_id", requestcontext.RequestID(r.Context()),
		"error", err,
	)
	httputil.WriteError(w, err)
}

// ask runs q and asserts the reply type the dispatcher pairs with it.
func ask[T models.QueryReply](ctx context.Context, qh ports.QueryHandler, q models.Query) (T, error) {
	var zero T
	reply, err := qh.Query(ctx, q)
	if err != nil {
		return zero, err
	}
	typed, ok := reply.(T)
	if !ok {
		return zero, dErrors.New(dErrors.CodeInternal, fmt.Sprintf("query %T answered with %T", q, reply))
	}
	return typed, nil
}
