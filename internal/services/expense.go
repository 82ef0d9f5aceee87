package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/expense-tracker/apiserver/internal/storage"
	"github.com/expense-tracker/apiserver/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ExpenseRepository defines persistence operations for expenses.
type ExpenseRepository interface {
	Get(ctx context.Context, id string) (types.Expense, error)
	ListAll(ctx context.Context) ([]types.Expense, error)
	List(ctx context.Context, q types.ExpenseQuery, offset, limit int) ([]types.Expense, int, error)
	Create(ctx context.Context, expense types.Expense) (types.Expense, error)
	CreateMany(ctx context.Context, expenses []types.Expense) ([]types.Expense, error)
	Update(ctx context.Context, expense types.Expense) (types.Expense, error)
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) ([]string, error)
}

// UploadArchive keeps a copy of every uploaded file.
type UploadArchive interface {
	Store(ctx context.Context, upload storage.Upload) (string, error)
}

// EventPublisher delivers serialized events to a channel.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// UploadedFile is a CSV file received from a client.
type UploadedFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// ErrBulkInsert wraps persistence failures of a bulk upload.
var ErrBulkInsert = errors.New("insert expenses")

// ExpenseOption configures optional collaborators of an ExpenseService.
type ExpenseOption func(*ExpenseService)

// WithUploadArchive stores a copy of each bulk upload in archive.
func WithUploadArchive(archive UploadArchive) ExpenseOption {
	return func(s *ExpenseService) {
		s.archive = archive
	}
}

// WithEventPublisher publishes an event on channel after every mutation.
func WithEventPublisher(events EventPublisher, channel string) ExpenseOption {
	return func(s *ExpenseService) {
		s.events = events
		s.channel = channel
	}
}

// ExpenseService encapsulates expense use-cases.
type ExpenseService struct {
	repo    ExpenseRepository
	archive UploadArchive
	events  EventPublisher
	channel string
	now     func() time.Time
}

func NewExpenseService(repo ExpenseRepository, opts ...ExpenseOption) *ExpenseService {
	s := &ExpenseService{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates and stores a single expense.
func (s *ExpenseService) Create(ctx context.Context, in types.ExpenseInput) (types.Expense, error) {
	expense, err := types.NewExpense(in)
	if err != nil {
		return types.Expense{}, err
	}

	created, err := s.repo.Create(ctx, expense)
	if err != nil {
		return types.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	s.publish(ctx, types.EventExpenseCreated, []string{created.ID})
	return created, nil
}

// BulkUpload archives the file, converts every CSV row to an expense and
// inserts them all at once. One bad row rejects the whole file.
func (s *ExpenseService) BulkUpload(ctx context.Context, file UploadedFile) ([]types.Expense, error) {
	if s.archive != nil {
		location, err := s.archive.Store(ctx, storage.Upload{
			Key:          storage.UploadKey(s.now(), file.Name),
			OriginalName: file.Name,
			ContentType:  file.ContentType,
			Size:         int64(len(file.Data)),
			Body:         bytes.NewReader(file.Data),
		})
		if err != nil {
			return nil, fmt.Errorf("archive upload: %w", err)
		}
		log.Info().Str("file", file.Name).Str("location", location).Msg("archived expense upload")
	}

	verr := &types.ValidationError{}
	rows, err := readExpenseCSV(file.Data, verr)
	if err != nil {
		return nil, types.NewValidationError("file", "Invalid CSV file: "+err.Error())
	}

	expenses := make([]types.Expense, 0, len(rows))
	for i, in := range rows {
		if in == nil {
			continue
		}
		expense, err := types.NewExpense(*in)
		if err != nil {
			var rowErr *types.ValidationError
			if errors.As(err, &rowErr) {
				for _, f := range rowErr.Fields {
					verr.Add(rowField(i+1), fmt.Sprintf("Row %d: %s", i+1, f.Message))
				}
				continue
			}
			return nil, err
		}
		expenses = append(expenses, expense)
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	inserted, err := s.repo.CreateMany(ctx, expenses)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBulkInsert, err)
	}
	if len(inserted) > 0 {
		s.publish(ctx, types.EventExpenseBulkUploaded, expenseIDs(inserted))
	}
	return inserted, nil
}

func (s *ExpenseService) ListAll(ctx context.Context) ([]types.Expense, error) {
	return s.repo.ListAll(ctx)
}

// List returns one page of expenses matching q, sorted as q requests.
func (s *ExpenseService) List(ctx context.Context, q types.ExpenseQuery, page, limit int) ([]types.Expense, types.Pagination, error) {
	page, limit = normalizePage(page, limit)
	expenses, total, err := s.repo.List(ctx, q, pageOffset(page, limit), limit)
	if err != nil {
		return nil, types.Pagination{}, err
	}
	return expenses, types.NewPagination(page, limit, total), nil
}

// Update applies the present fields of in to the stored expense.
func (s *ExpenseService) Update(ctx context.Context, id string, in types.ExpenseInput) (types.Expense, error) {
	expense, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Expense{}, err
	}

	expense.Apply(in)
	if err := expense.Validate(); err != nil {
		return types.Expense{}, err
	}

	updated, err := s.repo.Update(ctx, expense)
	if err != nil {
		return types.Expense{}, err
	}
	s.publish(ctx, types.EventExpenseUpdated, []string{updated.ID})
	return updated, nil
}

// BulkDelete removes the expenses with the given ids and returns how many
// existed. The event lists only the removed ids. Ids that are not UUIDs cannot match and are skipped.
func (s *ExpenseService) BulkDelete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, ErrNoExpenseIDs
	}

	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(strings.TrimSpace(id)); err == nil {
			valid = append(valid, strings.TrimSpace(id))
		}
	}

	deleted, err := s.repo.DeleteMany(ctx, valid)
	if err != nil {
		return 0, fmt.Errorf("delete expenses: %w", err)
	}
	if len(deleted) > 0 {
		s.publish(ctx, types.EventExpenseBulkDeleted, deleted)
	}
	return int64(len(deleted)), nil
}

func (s *ExpenseService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, types.EventExpenseDeleted, []string{id})
	return nil
}

// publish sends an event when a publisher is configured. Failures are logged
// and never reach the caller.
func (s *ExpenseService) publish(ctx context.Context, kind types.EventType, ids []string) {
	if s.events == nil {
		return
	}

	event := types.NewExpenseEvent(kind, ids, s.now())
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", string(kind)).Msg("encode expense event")
		return
	}

	id, err := s.events.Publish(ctx, s.channel, data, map[string]string{"type": string(kind)})
	if err != nil {
		log.Error().Err(err).Str("type", string(kind)).Str("channel", s.channel).Msg("publish expense event")
		return
	}
	log.Debug().Str("type", string(kind)).Str("message_id", id).Int("count", event.Count).Msg("published expense event")
}

func expenseIDs(expenses []types.Expense) []string {
	ids := make([]string, 0, len(expenses))
	for _, e := range expenses {
		ids = append(ids, e.ID)
	}
	return ids
}

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// normalizePage applies the listing defaults: values below 1 fall back to the
// default and limit is capped.
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

// pageOffset is the number of rows before page. Pages too far out to address
// saturate at math.MaxInt, which selects nothing.
func pageOffset(page, limit int) int {
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}
