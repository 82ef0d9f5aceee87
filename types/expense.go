package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers, matching what clients send.
	decimal.MarshalJSONWithoutQuotes = true
}

// PaymentMethod is how an expense was paid.
type PaymentMethod string

const (
	PaymentCreditCard   PaymentMethod = "Credit Card"
	PaymentCash         PaymentMethod = "Cash"
	PaymentDebitCard    PaymentMethod = "Debit Card"
	PaymentBankTransfer PaymentMethod = "Bank Transfer"
)

// PaymentMethods lists the accepted payment methods in display order.
var PaymentMethods = []PaymentMethod{
	PaymentCreditCard,
	PaymentCash,
	PaymentDebitCard,
	PaymentBankTransfer,
}

func (p PaymentMethod) Valid() bool {
	for _, m := range PaymentMethods {
		if p == m {
			return true
		}
	}
	return false
}

// Expense is a single spending record. Expenses are shared by all users.
type Expense struct {
	// ID is the unique identifier of the expense.
	ID string `json:"id" db:"id"`

	// Amount is the non-negative amount spent.
	Amount decimal.Decimal `json:"amount" db:"amount"`

	// Date is the calendar date the expense happened on.
	Date Date `json:"date" db:"date"`

	// Category is a free-form label such as "Groceries".
	Category string `json:"category" db:"category"`

	// PaymentMethod is one of PaymentMethods.
	PaymentMethod PaymentMethod `json:"paymentMethod" db:"payment_method"`

	// Description is an optional note.
	Description string `json:"description" db:"description"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ExpenseInput carries client-supplied expense fields. A nil field was not
// supplied, which lets the same shape serve creation and partial updates.
type ExpenseInput struct {
	Amount        *decimal.Decimal `json:"amount"`
	Date          *Date            `json:"date"`
	Category      *string          `json:"category"`
	PaymentMethod *string          `json:"paymentMethod"`
	Description   *string          `json:"description"`
}

// NewExpense builds an expense from input and validates it.
func NewExpense(in ExpenseInput) (Expense, error) {
	verr := &ValidationError{}
	if in.Amount == nil {
		verr.Add("amount", "Amount is a mandatory field")
	}

	var e Expense
	e.Apply(in)
	e.validate(verr)
	if err := verr.Err(); err != nil {
		return Expense{}, err
	}
	return e, nil
}

// Apply overwrites the fields present in the input and leaves the rest untouched.
// Text fields are trimmed.
func (e *Expense) Apply(in ExpenseInput) {
	if in.Amount != nil {
		e.Amount = *in.Amount
	}
	if in.Date != nil {
		e.Date = *in.Date
	}
	if in.Category != nil {
		e.Category = strings.TrimSpace(*in.Category)
	}
	if in.PaymentMethod != nil {
		e.PaymentMethod = PaymentMethod(strings.TrimSpace(*in.PaymentMethod))
	}
	if in.Description != nil {
		e.Description = strings.TrimSpace(*in.Description)
	}
}

// Validate checks the constraints every persisted expense must satisfy.
func (e Expense) Validate() error {
	verr := &ValidationError{}
	e.validate(verr)
	return verr.Err()
}

func (e Expense) validate(verr *ValidationError) {
	if e.Amount.IsNegative() {
		verr.Add("amount", "Amount cannot be negative")
	}
	if e.Date.IsZero() {
		verr.Add("date", "Date is required")
	}
	if strings.TrimSpace(e.Category) == "" {
		verr.Add("category", "Category is necessary")
	}
	switch {
	case e.PaymentMethod == "":
		verr.Add("paymentMethod", "Payment method must be specified")
	case !e.PaymentMethod.Valid():
		verr.Add("paymentMethod", "Payment method must be one of: Credit Card, Cash, Debit Card, Bank Transfer")
	}
}

// ExpenseSortFields maps the sortBy values clients may use to columns.
var ExpenseSortFields = map[string]string{
	"amount":        "amount",
	"date":          "date",
	"category":      "category",
	"paymentMethod": "payment_method",
	"description":   "description",
	"createdAt":     "created_at",
	"updatedAt":     "updated_at",
}

// DefaultExpenseSortField is used when sortBy is absent or unknown.
const DefaultExpenseSortField = "date"

// ExpenseQuery selects and orders expenses for a paginated listing.
// Zero values mean "no constraint".
type ExpenseQuery struct {
	Category      string
	PaymentMethod string
	StartDate     Date
	EndDate       Date
	SortBy        string
	Descending    bool
}

// SortColumn returns the column for SortBy, falling back to the date column.
func (q ExpenseQuery) SortColumn() string {
	if column, ok := ExpenseSortFields[q.SortBy]; ok {
		return column
	}
	return ExpenseSortFields[DefaultExpenseSortField]
}

// Pagination describes a windowed result set.
type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	ItemsPerPage int `json:"itemsPerPage"`
	TotalItems   int `json:"totalItems"`
	TotalPages   int `json:"totalPages"`
}

// NewPagination computes the page metadata; TotalPages is ceil(total/limit).
func NewPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{
		CurrentPage:  page,
		ItemsPerPage: limit,
		TotalItems:   total,
		TotalPages:   totalPages,
	}
}
