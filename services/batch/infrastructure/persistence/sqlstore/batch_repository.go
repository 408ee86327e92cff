// Package sqlstore implements the batch store on a SQL database. The same
// queries serve PostgreSQL and SQLite; only placeholders and row locking
// differ between the two.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ghuser/agritrack/pkg/config"
	"github.com/ghuser/agritrack/pkg/database"
	"github.com/ghuser/agritrack/pkg/events"
	batchdomain "github.com/ghuser/agritrack/services/batch/domain"
	domainevents "github.com/ghuser/agritrack/services/batch/domain/events"
	"github.com/ghuser/agritrack/services/batch/domain/models"
	"github.com/ghuser/agritrack/services/batch/domain/repositories"
)

//go:embed migrations
var migrations embed.FS

// Migrations returns the goose migrations for driver.
func Migrations(driver string) (fs.FS, error) {
	sub, err := fs.Sub(migrations, "migrations/"+driver)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: migrations for %s: %w", driver, err)
	}
	return sub, nil
}

// Outbox creates publishers that write events inside a store transaction.
// *events.EventBus implements it.
type Outbox interface {
	NewTxPublisher(tx *sql.Tx) (message.Publisher, error)
}

// BatchRepository implements repositories.BatchRepository on SQL.
type BatchRepository struct {
	db     *database.Database
	outbox Outbox
}

var _ repositories.BatchRepository = (*BatchRepository)(nil)

// NewBatchRepository returns a store on db. When outbox is non-nil every
// create and append also records an event in the same transaction.
func NewBatchRepository(db *database.Database, outbox Outbox) *BatchRepository {
	return &BatchRepository{db: db, outbox: outbox}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const batchColumns = `id, producer_name, producer_location, product_type, quantity, unit, created_at`

// Create inserts the batch row and its producer stage in one transaction.
// Returns ErrDuplicateIdentifier on primary key violations.
func (r *BatchRepository) Create(ctx context.Context, b *models.Batch) error {
	if len(b.Stages) == 0 || b.Stages[0].Role != models.RoleProducer {
		return fmt.Errorf("batch %s has no producer stage", b.ID)
	}
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, r.db.Rebind(
			`INSERT INTO batches (`+batchColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
			b.ID.String(),
			b.Producer.Name,
			b.Producer.Location,
			b.Product.Type,
			b.Product.Quantity.String(),
			string(b.Product.Unit),
			formatTime(b.CreatedAt),
		)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return fmt.Errorf("%w: %s", batchdomain.ErrDuplicateIdentifier, b.ID)
			}
			return fmt.Errorf("insert batch: %w", err)
		}

		for _, s := range b.Stages {
			if err := r.insertStage(ctx, tx, b.ID, s); err != nil {
				return err
			}
		}

		if r.outbox != nil {
			eventID := uuid.New()
			if err := r.publish(ctx, tx, domainevents.TopicBatchCreated, eventID, domainevents.BatchCreatedEvent{
				EventID:     eventID,
				Version:     domainevents.EventVersion,
				BatchID:     b.ID.String(),
				Producer:    b.Producer.Name,
				ProductType: b.Product.Type,
				OccurredAt:  b.CreatedAt,
			}); err != nil {
				return fmt.Errorf("publish batch created: %w", err)
			}
		}
		return nil
	})
}

// Get loads a batch and its full history. Returns ErrBatchNotFound if absent.
func (r *BatchRepository) Get(ctx context.Context, id models.Identifier) (*models.Batch, error) {
	return r.load(ctx, r.db.DB(), id, false)
}

// Append locks the batch row, runs fn on the locked state and inserts the
// record it returns before committing.
func (r *BatchRepository) Append(ctx context.Context, id models.Identifier, fn repositories.AppendFunc) (*models.Batch, error) {
	var updated *models.Batch
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := r.load(ctx, tx, id, true)
		if err != nil {
			return err
		}

		rec, err := fn(current.Clone())
		if err != nil {
			return err
		}
		if rec.Seq != len(current.Stages) {
			return fmt.Errorf("append stage: seq %d does not follow %d stages", rec.Seq, len(current.Stages))
		}
		if err := r.insertStage(ctx, tx, id, rec); err != nil {
			return err
		}
		current.Stages = append(current.Stages, rec)

		if r.outbox != nil {
			eventID := uuid.New()
			if err := r.publish(ctx, tx, domainevents.TopicStageAppended, eventID, domainevents.StageAppendedEvent{
				EventID:    eventID,
				Version:    domainevents.EventVersion,
				BatchID:    id.String(),
				Seq:        rec.Seq,
				Role:       string(rec.Role),
				State:      string(current.State()),
				Digest:     rec.Digest,
				OccurredAt: rec.OccurredAt,
			}); err != nil {
				return fmt.Errorf("publish stage appended: %w", err)
			}
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// FindByProducer returns the producer's batches newest first, with the total count.
func (r *BatchRepository) FindByProducer(ctx context.Context, producer string, opts repositories.QueryOpts) ([]*models.Batch, int, error) {
	var total int
	if err := r.db.DB().QueryRowContext(ctx, r.db.Rebind(
		`SELECT COUNT(*) FROM batches WHERE producer_name = ?`), producer).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count batches: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = math.MaxInt32
	}
	rows, err := r.db.DB().QueryContext(ctx, r.db.Rebind(
		`SELECT `+batchColumns+` FROM batches WHERE producer_name = ?
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`),
		producer, limit, max(opts.Offset, 0))
	if err != nil {
		return nil, 0, fmt.Errorf("query batches: %w", err)
	}
	var batches []*models.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			_ = rows.Close()
			return nil, 0, err
		}
		batches = append(batches, b)
	}
	if err := rows.Close(); err != nil {
		return nil, 0, fmt.Errorf("query batches: %w", err)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("query batches: %w", err)
	}

	if err := r.loadStagesFor(ctx, batches); err != nil {
		return nil, 0, err
	}
	return batches, total, nil
}

func (r *BatchRepository) load(ctx context.Context, q querier, id models.Identifier, lock bool) (*models.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE id = ?`
	if lock && r.db.Driver() == config.DriverPostgres {
		query += ` FOR UPDATE`
	}
	b, err := scanBatch(q.QueryRowContext(ctx, r.db.Rebind(query), id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, batchdomain.ErrBatchNotFound
		}
		return nil, err
	}

	rows, err := q.QueryContext(ctx, r.db.Rebind(
		`SELECT batch_id, seq, role, actor, occurred_at, location, attributes, details, digest
		 FROM batch_stages WHERE batch_id = ? ORDER BY seq`), id.String())
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		_, rec, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		b.Stages = append(b.Stages, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	return b, nil
}

func (r *BatchRepository) loadStagesFor(ctx context.Context, batches []*models.Batch) error {
	if len(batches) == 0 {
		return nil
	}
	byID := make(map[models.Identifier]*models.Batch, len(batches))
	args := make([]any, len(batches))
	for i, b := range batches {
		byID[b.ID] = b
		args[i] = b.ID.String()
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(batches)), ", ")

	rows, err := r.db.DB().QueryContext(ctx, r.db.Rebind(
		`SELECT batch_id, seq, role, actor, occurred_at, location, attributes, details, digest
		 FROM batch_stages WHERE batch_id IN (`+placeholders+`) ORDER BY batch_id, seq`), args...)
	if err != nil {
		return fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		id, rec, err := scanStage(rows)
		if err != nil {
			return err
		}
		if b, ok := byID[id]; ok {
			b.Stages = append(b.Stages, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("query stages: %w", err)
	}
	return nil
}

func (r *BatchRepository) insertStage(ctx context.Context, tx *sql.Tx, id models.Identifier, s models.StageRecord) error {
	attrs := []byte("{}")
	if len(s.Attributes) > 0 {
		var err error
		if attrs, err = json.Marshal(s.Attributes); err != nil {
			return fmt.Errorf("marshal attributes: %w", err)
		}
	}
	details, err := json.Marshal(s.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	_, err = tx.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO batch_stages (batch_id, seq, role, actor, occurred_at, location, attributes, details, digest)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		id.String(),
		s.Seq,
		string(s.Role),
		s.Actor,
		formatTime(s.OccurredAt),
		s.Location,
		string(attrs),
		string(details),
		s.Digest,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("insert stage %d: concurrent append to %s: %w", s.Seq, id, err)
		}
		return fmt.Errorf("insert stage: %w", err)
	}
	return nil
}

func (r *BatchRepository) publish(ctx context.Context, tx *sql.Tx, topic string, eventID uuid.UUID, event any) error {
	msg, err := events.NewMessage(ctx, eventID, domainevents.EventVersion, event)
	if err != nil {
		return err
	}
	p, err := r.outbox.NewTxPublisher(tx)
	if err != nil {
		return fmt.Errorf("create publisher: %w", err)
	}
	return p.Publish(topic, msg)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(row scanner) (*models.Batch, error) {
	var (
		id, name, location, productType, quantity, unit, createdAt string
	)
	if err := row.Scan(&id, &name, &location, &productType, &quantity, &unit, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan batch: %w", err)
	}
	qty, err := decimal.NewFromString(quantity)
	if err != nil {
		return nil, fmt.Errorf("scan batch %s: quantity: %w", id, err)
	}
	created, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("scan batch %s: created_at: %w", id, err)
	}
	return &models.Batch{
		ID:        models.Identifier(id),
		Producer:  models.Producer{Name: name, Location: location},
		Product:   models.Product{Type: productType, Quantity: qty, Unit: models.Unit(unit)},
		CreatedAt: created,
	}, nil
}

func scanStage(row scanner) (models.Identifier, models.StageRecord, error) {
	var (
		batchID, role, actor, occurredAt, location, attrs, details, digest string
		seq                                                                int
	)
	if err := row.Scan(&batchID, &seq, &role, &actor, &occurredAt, &location, &attrs, &details, &digest); err != nil {
		return "", models.StageRecord{}, fmt.Errorf("scan stage: %w", err)
	}

	var attributes map[string]string
	if err := json.Unmarshal([]byte(attrs), &attributes); err != nil {
		return "", models.StageRecord{}, fmt.Errorf("scan stage %s/%d: attributes: %w", batchID, seq, err)
	}
	if len(attributes) == 0 {
		attributes = nil
	}
	at, err := parseTime(occurredAt)
	if err != nil {
		return "", models.StageRecord{}, fmt.Errorf("scan stage %s/%d: occurred_at: %w", batchID, seq, err)
	}
	d, err := models.DecodeStageDetails(models.Role(role), []byte(details))
	if err != nil {
		return "", models.StageRecord{}, fmt.Errorf("scan stage %s/%d: %w", batchID, seq, err)
	}

	return models.Identifier(batchID), models.StageRecord{
		Seq:        seq,
		Role:       models.Role(role),
		Actor:      actor,
		OccurredAt: at,
		Location:   location,
		Attributes: attributes,
		Details:    d,
		Digest:     digest,
	}, nil
}

// timeLayout is fixed width for four-digit years in UTC, so stored values
// round-trip exactly and sort lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
