package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

const (
	defaultStatementPageSize = 50
	maxStatementPageSize     = 500
)

// Handler exposes the ledger operations over HTTP for the surrounding
// application surfaces (approval screens, statement exports, dashboards).
type Handler struct {
	logger   *slog.Logger
	service  *Service
	cache    *Cache
	validate *validator.Validate
}

// NewHandler builds the ledger HTTP handler.
func NewHandler(logger *slog.Logger, service *Service, cache *Cache) *Handler {
	return &Handler{logger: logger, service: service, cache: cache, validate: validator.New()}
}

type postEntryRequest struct {
	ContactID       int64           `json:"contact_id" validate:"required"`
	ContactType     string          `json:"contact_type" validate:"required,oneof=CUSTOMER SUPPLIER"`
	TransactionDate string          `json:"transaction_date" validate:"required,datetime=2006-01-02"`
	TransactionType string          `json:"transaction_type" validate:"required,oneof=OPENING_BALANCE INVOICE PAYMENT ADVANCE_PAYMENT RETURN REFUND"`
	TransactionID   *int64          `json:"transaction_id"`
	Description     string          `json:"description"`
	Debit           decimal.Decimal `json:"debit"`
	Credit          decimal.Decimal `json:"credit"`
	BranchID        *int64          `json:"branch_id"`
	CreatedBy       int64           `json:"created_by" validate:"required"`
}

type entryResponse struct {
	ID              int64  `json:"id"`
	ContactID       int64  `json:"contact_id"`
	ContactType     string `json:"contact_type"`
	TransactionDate string `json:"transaction_date"`
	TransactionType string `json:"transaction_type"`
	TransactionID   *int64 `json:"transaction_id,omitempty"`
	Description     string `json:"description,omitempty"`
	Debit           string `json:"debit"`
	Credit          string `json:"credit"`
	RunningBalance  string `json:"running_balance"`
	BranchID        *int64 `json:"branch_id,omitempty"`
	CreatedBy       int64  `json:"created_by"`
	CreatedAt       string `json:"created_at"`
}

func toEntryResponse(e Entry) entryResponse {
	return entryResponse{
		ID:              e.ID,
		ContactID:       e.ContactID,
		ContactType:     string(e.ContactType),
		TransactionDate: e.TransactionDate.Format("2006-01-02"),
		TransactionType: string(e.TransactionType),
		TransactionID:   e.TransactionID,
		Description:     e.Description,
		Debit:           e.Debit.String(),
		Credit:          e.Credit.String(),
		RunningBalance:  e.RunningBalance.String(),
		BranchID:        e.BranchID,
		CreatedBy:       e.CreatedBy,
		CreatedAt:       e.CreatedAt.Format(time.RFC3339),
	}
}

// PostEntry handles POST /ledger/entries.
func (h *Handler) PostEntry(w http.ResponseWriter, r *http.Request) {
	var req postEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.TransactionDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "transaction_date must be YYYY-MM-DD")
		return
	}
	entry, err := h.service.PostEntry(r.Context(), PostEntryInput{
		ContactID:       req.ContactID,
		ContactType:     ContactType(req.ContactType),
		TransactionDate: date,
		TransactionType: TransactionType(req.TransactionType),
		TransactionID:   req.TransactionID,
		Description:     req.Description,
		Debit:           req.Debit,
		Credit:          req.Credit,
		BranchID:        req.BranchID,
		CreatedBy:       req.CreatedBy,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

type statementResponse struct {
	Entries    []entryResponse `json:"entries"`
	Pagination struct {
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
		Total      int `json:"total"`
		TotalPages int `json:"total_pages"`
	} `json:"pagination"`
}

// Statement handles GET /ledger/{contactType}/{contactID}/statement. The
// full ordered statement is cached once per contact and filter; pages are
// sliced out of the cached copy.
func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
	q, err := statementQueryFromRequest(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	page, perPage, err := pageParams(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	key, err := h.cache.BuildKey(r.Context(), keyStatement(q)...)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var all []entryResponse
	err = h.cache.FetchJSON(r.Context(), key, &all, func(ctx context.Context) (interface{}, error) {
		entries, err := h.service.GetStatement(ctx, q)
		if err != nil {
			return nil, err
		}
		views := make([]entryResponse, 0, len(entries))
		for _, e := range entries {
			views = append(views, toEntryResponse(e))
		}
		return views, nil
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	meta := shared.NewPagination(page, perPage, len(all))
	start := meta.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + meta.PerPage
	if end > len(all) {
		end = len(all)
	}
	out := statementResponse{Entries: all[start:end]}
	if out.Entries == nil {
		out.Entries = []entryResponse{}
	}
	out.Pagination.Page = meta.Page
	out.Pagination.PerPage = meta.PerPage
	out.Pagination.Total = meta.Total
	out.Pagination.TotalPages = meta.TotalPages
	httpx.JSON(w, http.StatusOK, out)
}

func pageParams(r *http.Request) (page, perPage int, err error) {
	page, perPage = 1, defaultStatementPageSize
	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page <= 0 {
			return 0, 0, errors.New("page must be a positive integer")
		}
	}
	if raw := r.URL.Query().Get("per_page"); raw != "" {
		perPage, err = strconv.Atoi(raw)
		if err != nil || perPage <= 0 || perPage > maxStatementPageSize {
			return 0, 0, fmt.Errorf("per_page must be between 1 and %d", maxStatementPageSize)
		}
	}
	return page, perPage, nil
}

// AdvanceBalance handles GET /ledger/customers/{contactID}/advance.
func (h *Handler) AdvanceBalance(w http.ResponseWriter, r *http.Request) {
	customerID, err := strconv.ParseInt(chi.URLParam(r, "contactID"), 10, 64)
	if err != nil || customerID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "customer id must be a positive integer")
		return
	}
	key, err := h.cache.BuildKey(r.Context(), keyAdvance(customerID)...)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var out struct {
		CustomerID     int64  `json:"customer_id"`
		AdvanceBalance string `json:"advance_balance"`
	}
	err = h.cache.FetchJSON(r.Context(), key, &out, func(ctx context.Context) (interface{}, error) {
		advance, err := h.service.AdvanceBalance(ctx, customerID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"customer_id": customerID, "advance_balance": advance.String()}, nil
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func statementQueryFromRequest(r *http.Request) (StatementQuery, error) {
	contactID, err := strconv.ParseInt(chi.URLParam(r, "contactID"), 10, 64)
	if err != nil || contactID <= 0 {
		return StatementQuery{}, errors.New("contact id must be a positive integer")
	}
	q := StatementQuery{
		ContactID:   contactID,
		ContactType: ContactType(strings.ToUpper(chi.URLParam(r, "contactType"))),
	}
	if raw := r.URL.Query().Get("start_date"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return StatementQuery{}, errors.New("start_date must be YYYY-MM-DD")
		}
		q.StartDate = &t
	}
	if raw := r.URL.Query().Get("end_date"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return StatementQuery{}, errors.New("end_date must be YYYY-MM-DD")
		}
		q.EndDate = &t
	}
	if raw := r.URL.Query().Get("branch_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return StatementQuery{}, errors.New("branch_id must be an integer")
		}
		q.BranchID = &id
	}
	return q, q.Validate()
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrUnknownContactType):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error("ledger request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
