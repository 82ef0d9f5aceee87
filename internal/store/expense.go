package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/expense-tracker/apiserver/types"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const expenseColumns = `id, amount, date, category, payment_method, description, created_at, updated_at`

// ExpenseRepository handles persistence for expenses.
type ExpenseRepository struct {
	db *sql.DB
}

func NewExpenseRepository(db *sql.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) Get(ctx context.Context, id string) (types.Expense, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Expense{}, ErrNotFound
	}
	const query = `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1`
	expense, err := scanExpense(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Expense{}, ErrNotFound
		}
		return types.Expense{}, err
	}
	return expense, nil
}

// ListAll returns every expense in storage order.
func (r *ExpenseRepository) ListAll(ctx context.Context) ([]types.Expense, error) {
	const query = `SELECT ` + expenseColumns + ` FROM expenses`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return collectExpenses(rows, 0)
}

// List returns one page of expenses matching q along with the total number
// of matches. The count and the page are read by separate statements.
func (r *ExpenseRepository) List(ctx context.Context, q types.ExpenseQuery, offset, limit int) ([]types.Expense, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 10
	}

	where, args := buildExpenseFilter(q)

	countQuery := `SELECT COUNT(1) FROM expenses` + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(
		`SELECT %s FROM expenses%s %s OFFSET $%d LIMIT $%d`,
		expenseColumns, where, buildExpenseOrder(q), len(args)+1, len(args)+2,
	)
	rows, err := r.db.QueryContext(ctx, listQuery, append(args, offset, limit)...)
	if err != nil {
		return nil, 0, err
	}
	expenses, err := collectExpenses(rows, limit)
	if err != nil {
		return nil, 0, err
	}
	return expenses, total, nil
}

func (r *ExpenseRepository) Create(ctx context.Context, expense types.Expense) (types.Expense, error) {
	now := time.Now().UTC()
	expense.ID = uuid.NewString()
	expense.CreatedAt = now
	expense.UpdatedAt = now

	const query = `
		INSERT INTO expenses (id, amount, date, category, payment_method, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		expense.ID,
		expense.Amount,
		expense.Date,
		expense.Category,
		expense.PaymentMethod,
		expense.Description,
		expense.CreatedAt,
		expense.UpdatedAt,
	); err != nil {
		return types.Expense{}, err
	}
	return expense, nil
}

// CreateMany inserts all expenses in one transaction using COPY. Either every
// row is committed or none is.
func (r *ExpenseRepository) CreateMany(ctx context.Context, expenses []types.Expense) ([]types.Expense, error) {
	if len(expenses) == 0 {
		return []types.Expense{}, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(
		"expenses",
		"id", "amount", "date", "category", "payment_method", "description", "created_at", "updated_at",
	))
	if err != nil {
		return nil, fmt.Errorf("prepare copy: %w", err)
	}

	now := time.Now().UTC()
	inserted := make([]types.Expense, 0, len(expenses))
	for _, expense := range expenses {
		expense.ID = uuid.NewString()
		expense.CreatedAt = now
		expense.UpdatedAt = now
		if _, err := stmt.ExecContext(
			ctx,
			expense.ID,
			expense.Amount.String(),
			expense.Date.Time,
			expense.Category,
			string(expense.PaymentMethod),
			expense.Description,
			expense.CreatedAt,
			expense.UpdatedAt,
		); err != nil {
			_ = stmt.Close()
			return nil, fmt.Errorf("copy expense: %w", err)
		}
		inserted = append(inserted, expense)
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return nil, fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return inserted, nil
}

func (r *ExpenseRepository) Update(ctx context.Context, expense types.Expense) (types.Expense, error) {
	if _, err := uuid.Parse(expense.ID); err != nil {
		return types.Expense{}, ErrNotFound
	}
	expense.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE expenses
		SET amount = $1,
			date = $2,
			category = $3,
			payment_method = $4,
			description = $5,
			updated_at = $6
		WHERE id = $7`
	result, err := r.db.ExecContext(
		ctx,
		query,
		expense.Amount,
		expense.Date,
		expense.Category,
		expense.PaymentMethod,
		expense.Description,
		expense.UpdatedAt,
		expense.ID,
	)
	if err != nil {
		return types.Expense{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Expense{}, err
	}
	if affected == 0 {
		return types.Expense{}, ErrNotFound
	}
	return expense, nil
}

func (r *ExpenseRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	const query = `DELETE FROM expenses WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMany removes every expense whose id is in ids and returns the ids
// of the rows that existed. Callers pass only well-formed UUIDs.
func (r *ExpenseRepository) DeleteMany(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	const query = `DELETE FROM expenses WHERE id = ANY($1::uuid[]) RETURNING id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deleted := make([]string, 0, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		deleted = append(deleted, id)
	}
	return deleted, rows.Err()
}

// buildExpenseFilter renders the WHERE clause for q with positional args.
func buildExpenseFilter(q types.ExpenseQuery) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	add := func(condition string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if q.Category != "" {
		add("category = $%d", q.Category)
	}
	if q.PaymentMethod != "" {
		add("payment_method = $%d", q.PaymentMethod)
	}
	if !q.StartDate.IsZero() {
		add("date >= $%d", q.StartDate)
	}
	if !q.EndDate.IsZero() {
		add("date <= $%d", q.EndDate)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// buildExpenseOrder renders ORDER BY from a whitelisted column so user input
// never reaches the SQL text.
func buildExpenseOrder(q types.ExpenseQuery) string {
	direction := "ASC"
	if q.Descending {
		direction = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s, id ASC", q.SortColumn(), direction)
}

func scanExpense(row rowScanner) (types.Expense, error) {
	var expense types.Expense
	err := row.Scan(
		&expense.ID,
		&expense.Amount,
		&expense.Date,
		&expense.Category,
		&expense.PaymentMethod,
		&expense.Description,
		&expense.CreatedAt,
		&expense.UpdatedAt,
	)
	return expense, err
}

func collectExpenses(rows *sql.Rows, capacity int) ([]types.Expense, error) {
	defer rows.Close()

	expenses := make([]types.Expense, 0, capacity)
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return expenses, nil
}
