package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/expense-tracker/apiserver/internal/services"
	"github.com/expense-tracker/apiserver/internal/store"
	"github.com/expense-tracker/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const (
	maxUploadBytes     = 32 << 20
	maxMultipartMemory = 8 << 20
	formFieldFile      = "file"
)

// ExpenseHandler provides HTTP handlers for expenses.
type ExpenseHandler struct {
	expenseService *services.ExpenseService
}

func NewExpenseHandler(expenseService *services.ExpenseService) *ExpenseHandler {
	return &ExpenseHandler{expenseService: expenseService}
}

// ExpenseRouter registers expense routes. Every route requires an
// authenticated account with the user role.
func ExpenseRouter(r chi.Router, expenseService *services.ExpenseService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewExpenseHandler(expenseService)

	r.Use(authMiddleware, RequireRole(types.RoleUser))
	r.Post("/createExpense", handler.CreateExpense)
	r.Post("/bulk-upload", handler.BulkUpload)
	r.Get("/getall", handler.GetAll)
	r.Get("/", handler.ListExpenses)
	r.Delete("/expenses/bulk-delete", handler.BulkDelete)
	r.Patch("/{id}", handler.UpdateExpense)
	r.Delete("/{id}", handler.DeleteExpense)
}

func (h *ExpenseHandler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var in types.ExpenseInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	expense, err := h.expenseService.Create(r.Context(), in)
	if err != nil {
		if writeValidationError(w, err) {
			return
		}
		log.Error().Err(err).Msg("create expense")
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusCreated, ExpenseResponse{
		Success: true,
		Message: "Expense added successfully",
		Expense: expense,
	})
}

func (h *ExpenseHandler) BulkUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "Uploaded file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Please upload a CSV file")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile(formFieldFile)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Please upload a CSV file")
		return
	}
	defer file.Close()

	data, err := readFileLimited(file, maxUploadBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	inserted, err := h.expenseService.BulkUpload(r.Context(), services.UploadedFile{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		if writeValidationError(w, err) {
			return
		}
		log.Error().Err(err).Str("file", header.Filename).Msg("bulk upload expenses")
		if errors.Is(err, services.ErrBulkInsert) {
			writeError(w, http.StatusInternalServerError, "Error inserting expenses")
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusCreated, BulkUploadResponse{
		Success:         true,
		Message:         "Expenses uploaded successfully",
		InsertedRecords: nonNil(inserted),
	})
}

func (h *ExpenseHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.expenseService.ListAll(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list all expenses")
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, ExpenseListResponse{Success: true, Expenses: nonNil(expenses)})
}

func (h *ExpenseHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	query, err := parseExpenseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, limit := parsePagination(r)

	expenses, pagination, err := h.expenseService.List(r.Context(), query, page, limit)
	if err != nil {
		log.Error().Err(err).Msg("list expenses")
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusOK, ExpenseListResponse{
		Success:    true,
		Expenses:   nonNil(expenses),
		Pagination: &pagination,
	})
}

func (h *ExpenseHandler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	var in types.ExpenseInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.expenseService.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Expense not found")
			return
		}
		if writeValidationError(w, err) {
			return
		}
		log.Error().Err(err).Msg("update expense")
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusOK, UpdateExpenseResponse{
		Success:        true,
		Message:        "Expense updated successfully",
		UpdatedExpense: updated,
	})
}

func (h *ExpenseHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if err := decodeJSON(r, &req); err != nil || len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "Please provide an array of expense IDs")
		return
	}

	deleted, err := h.expenseService.BulkDelete(r.Context(), req.IDs)
	if err != nil {
		if writeValidationError(w, err) {
			return
		}
		log.Error().Err(err).Msg("bulk delete expenses")
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusOK, BulkDeleteResponse{
		Success:      true,
		Message:      fmt.Sprintf("%d expenses deleted successfully", deleted),
		DeletedCount: deleted,
	})
}

func (h *ExpenseHandler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := h.expenseService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "No expense found with the provided ID")
			return
		}
		log.Error().Err(err).Msg("delete expense")
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeMessage(w, http.StatusOK, "Expense deleted successfully")
}

func parseExpenseQuery(r *http.Request) (types.ExpenseQuery, error) {
	values := r.URL.Query()
	q := types.ExpenseQuery{
		Category:      strings.TrimSpace(values.Get("category")),
		PaymentMethod: strings.TrimSpace(values.Get("paymentMethod")),
		SortBy:        strings.TrimSpace(values.Get("sortBy")),
		Descending:    strings.EqualFold(strings.TrimSpace(values.Get("sortOrder")), "desc"),
	}

	if raw := strings.TrimSpace(values.Get("startDate")); raw != "" {
		date, err := types.ParseDate(raw)
		if err != nil {
			return types.ExpenseQuery{}, errors.New("Invalid startDate")
		}
		q.StartDate = date
	}
	if raw := strings.TrimSpace(values.Get("endDate")); raw != "" {
		date, err := types.ParseDate(raw)
		if err != nil {
			return types.ExpenseQuery{}, errors.New("Invalid endDate")
		}
		q.EndDate = date
	}
	return q, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("Failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("Uploaded file too large")
	}
	return data, nil
}

func nonNil(expenses []types.Expense) []types.Expense {
	if expenses == nil {
		return []types.Expense{}
	}
	return expenses
}

type ExpenseResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Expense types.Expense `json:"expense"`
}

type BulkUploadResponse struct {
	Success         bool            `json:"success"`
	Message         string          `json:"message"`
	InsertedRecords []types.Expense `json:"insertedRecords"`
}

type ExpenseListResponse struct {
	Success    bool              `json:"success"`
	Expenses   []types.Expense   `json:"expenses"`
	Pagination *types.Pagination `json:"pagination,omitempty"`
}

type UpdateExpenseResponse struct {
	Success        bool          `json:"success"`
	Message        string        `json:"message"`
	UpdatedExpense types.Expense `json:"updatedExpense"`
}

type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

type BulkDeleteResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DeletedCount int64  `json:"deletedCount"`
}
