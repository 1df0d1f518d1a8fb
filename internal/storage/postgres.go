package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/capitalize-ai/lead-automation/internal/apperrors"
	"github.com/capitalize-ai/lead-automation/internal/model"
	"github.com/capitalize-ai/lead-automation/pkg/logger"
	"github.com/capitalize-ai/lead-automation/pkg/metrics"
)

const (
	defaultRetryInitialInterval = 50 * time.Millisecond
	defaultRetryMaxInterval     = 2 * time.Second
	readRetryMaxElapsedTime     = 5 * time.Second
	writeRetryMaxElapsedTime    = 10 * time.Second
)

// Config holds PostgreSQL connection settings.
type Config struct {
	DSN             string
	AutoMigrate     bool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PostgresRepo owns the GORM handle shared by the per-entity repositories.
type PostgresRepo struct {
	db     *gorm.DB
	logger *logger.Logger
}

// NewPostgresRepo connects to PostgreSQL, retrying transient failures, and
// optionally runs migrations.
func NewPostgresRepo(ctx context.Context, cfg Config, log *logger.Logger) (*PostgresRepo, error) {
	connect := func() (*gorm.DB, error) {
		db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
			Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
			SkipDefaultTransaction: true,
			TranslateError:         true,
		})
		if err != nil {
			if isTransientError(err) {
				return nil, err
			}
			return nil, backoff.Permanent(fmt.Errorf("failed to connect to postgres: %w", err))
		}
		return db, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 15 * time.Second
	b.MaxElapsedTime = time.Minute

	notify := func(err error, d time.Duration) {
		log.Warn("retrying postgres connection", zap.Error(err), zap.Duration("after", d))
	}

	db, err := backoff.RetryNotifyWithData(connect, backoff.WithContext(b, ctx), notify)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres after retries: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &PostgresRepo{db: db, logger: log}

	if cfg.AutoMigrate {
		if err := repo.Migrate(ctx); err != nil {
			return nil, err
		}
	}

	return repo, nil
}

// NewPostgresRepoFromDB wraps an existing GORM handle.
func NewPostgresRepoFromDB(db *gorm.DB, log *logger.Logger) *PostgresRepo {
	return &PostgresRepo{db: db, logger: log}
}

// Migrate creates or updates the schema. The partial unique index keeps at most
// one live conversation per contact.
func (r *PostgresRepo) Migrate(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	if err := db.AutoMigrate(
		&model.Contact{},
		&model.Conversation{},
		&model.QualificationStatus{},
		&model.Message{},
		&model.WebhookReceipt{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}

	liveIndex := `CREATE UNIQUE INDEX IF NOT EXISTS conversations_one_live_per_contact
		ON conversations (contact_id) WHERE conversation_status <> 'ended'`
	if err := db.Exec(liveIndex).Error; err != nil {
		return fmt.Errorf("failed to create live conversation index: %w", err)
	}

	r.logger.Info("database migrations applied")
	return nil
}

// Repositories returns every repository backed by this connection.
func (r *PostgresRepo) Repositories() Repositories {
	return Repositories{
		Contacts:       &contactRepo{db: r.db},
		Conversations:  &conversationRepo{db: r.db},
		Qualifications: &qualificationRepo{db: r.db},
		Messages:       &messageRepo{db: r.db},
		Receipts:       &receiptRepo{db: r.db},
	}
}

// Ping checks database connectivity.
func (r *PostgresRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (r *PostgresRepo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// newRetryPolicy creates an exponential backoff policy bound to ctx.
func newRetryPolicy(ctx context.Context, maxElapsedTime time.Duration) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = defaultRetryInitialInterval
	b.MaxInterval = defaultRetryMaxInterval
	b.MaxElapsedTime = maxElapsedTime
	b.Reset()
	return backoff.WithContext(b, ctx)
}

// withRetry runs operation, retrying transient errors, and records its duration.
func withRetry(ctx context.Context, maxElapsed time.Duration, op, entity string, operation func() error) error {
	notify := func(err error, d time.Duration) {
		logger.Global().Warn("retrying db operation",
			zap.String("operation", op),
			zap.String("entity", entity),
			zap.Error(err),
			zap.Duration("after", d),
		)
	}

	start := time.Now()
	err := backoff.RetryNotify(func() error {
		err := operation()
		if err == nil {
			return nil
		}
		if isTransientError(err) {
			return err
		}
		return backoff.Permanent(err)
	}, newRetryPolicy(ctx, maxElapsed), notify)
	metrics.ObserveDBOperation(op, entity, time.Since(start), err)

	return err
}

// isTransientError checks if the error suggests a temporary issue like a network problem.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 connection exception, class 53 insufficient resources,
		// 40P01 deadlock, 40001 serialization failure.
		return strings.HasPrefix(pgErr.Code, "08") ||
			strings.HasPrefix(pgErr.Code, "53") ||
			pgErr.Code == "40P01" ||
			pgErr.Code == "40001"
	}

	errStr := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"connection refused",
		"i/o timeout",
		"broken pipe",
		"connection reset",
		"no route to host",
		"database system is starting up",
		"connection timed out",
	} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// mapDBError converts driver errors into application errors.
func mapDBError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &apperrors.Error{Kind: apperrors.ErrNotFound, Message: msg + ": not found", Err: err}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &apperrors.Error{Kind: apperrors.ErrDuplicate, Message: msg + ": duplicate key", Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return &apperrors.Error{Kind: apperrors.ErrDuplicate, Message: fmt.Sprintf("%s: constraint %s", msg, pgErr.ConstraintName), Err: err}
		case "22P02":
			// Malformed uuid: no row can carry that id.
			return &apperrors.Error{Kind: apperrors.ErrNotFound, Message: msg + ": not found", Err: err}
		}
	}
	return apperrors.Storage(err, "%s", msg)
}
