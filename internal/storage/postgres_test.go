package storage

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/capitalize-ai/lead-automation/internal/apperrors"
	"github.com/capitalize-ai/lead-automation/internal/model"
	"github.com/capitalize-ai/lead-automation/pkg/logger"
)

// Queries are matched with partial regular expressions. GORM appends LIMIT
// and quoting details that make exact matching brittle.

// AnyTime matches any time.Time argument.
type AnyTime struct{}

// Match satisfies sqlmock.Argument.
func (a AnyTime) Match(v driver.Value) bool {
	_, ok := v.(time.Time)
	return ok
}

// jsonHas matches a JSON argument that carries every expected key and value.
type jsonHas map[string]any

// Match satisfies sqlmock.Argument.
func (j jsonHas) Match(v driver.Value) bool {
	var raw []byte
	switch val := v.(type) {
	case string:
		raw = []byte(val)
	case []byte:
		raw = val
	default:
		return false
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		return false
	}
	for k, want := range j {
		if got[k] != want {
			return false
		}
	}
	return true
}

func newMockDB(t *testing.T) (*PostgresRepo, sqlmock.Sqlmock) {
	t.Helper()
	log := logger.FromZap(zaptest.NewLogger(t))
	logger.SetGlobal(log)

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewPostgresRepoFromDB(gormDB, log), mock
}

func TestIsTransientError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "deadline", err: context.DeadlineExceeded, expected: true},
		{name: "wrapped deadline", err: fmt.Errorf("op: %w", context.DeadlineExceeded), expected: true},
		{name: "record not found", err: gorm.ErrRecordNotFound, expected: false},
		{name: "duplicate key", err: gorm.ErrDuplicatedKey, expected: false},
		{name: "connection exception", err: &pgconn.PgError{Code: "08006"}, expected: true},
		{name: "too many connections", err: &pgconn.PgError{Code: "53300"}, expected: true},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, expected: true},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, expected: true},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, expected: false},
		{name: "connection refused text", err: errors.New("dial tcp: connection refused"), expected: true},
		{name: "generic", err: errors.New("syntax error"), expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, isTransientError(tc.err))
		})
	}
}

func TestMapDBError(t *testing.T) {
	assert.NoError(t, mapDBError(nil, "x"))

	err := mapDBError(gorm.ErrRecordNotFound, "find %s", "c1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	err = mapDBError(&pgconn.PgError{Code: "23505", ConstraintName: "conversations_one_live_per_contact"}, "create")
	assert.ErrorIs(t, err, apperrors.ErrDuplicate)
	assert.Contains(t, err.Error(), "conversations_one_live_per_contact")

	err = mapDBError(&pgconn.PgError{Code: "22P02"}, "find %s", "not-a-uuid")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	err = mapDBError(errors.New("boom"), "write")
	assert.ErrorIs(t, err, apperrors.ErrStorage)
}

func TestConversationRepo_FindCurrentByContact(t *testing.T) {
	repo, mock := newMockDB(t)
	repos := repo.Repositories()
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "contact_id", "conversation_status", "created_at", "updated_at"}).
		AddRow("conv-2", "contact-1", "paused", now, now)
	mock.ExpectQuery(`SELECT \* FROM "conversations" WHERE contact_id = \$1 ORDER BY created_at DESC, id DESC`).
		WithArgs("contact-1", 1).
		WillReturnRows(rows)

	conv, err := repos.Conversations.FindCurrentByContact(context.Background(), "contact-1")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, "conv-2", conv.ID)
	assert.Equal(t, model.StatusPaused, conv.ConversationStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepo_FindCurrentByContact_None(t *testing.T) {
	repo, mock := newMockDB(t)
	repos := repo.Repositories()

	mock.ExpectQuery(`SELECT \* FROM "conversations" WHERE contact_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	conv, err := repos.Conversations.FindCurrentByContact(context.Background(), "contact-1")
	require.NoError(t, err)
	assert.Nil(t, conv)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepo_UpdateStatus(t *testing.T) {
	repo, mock := newMockDB(t)
	repos := repo.Repositories()
	reason := model.PauseReasonUser

	mock.ExpectExec(`UPDATE "conversations" SET .* WHERE id = \$\d+ AND conversation_status = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repos.Conversations.UpdateStatus(context.Background(), "conv-1", model.StatusActive, model.ConversationUpdate{
		Status:      model.StatusPaused,
		PauseReason: &reason,
		UpdatedAt:   time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepo_UpdateStatus_Conflict(t *testing.T) {
	repo, mock := newMockDB(t)
	repos := repo.Repositories()

	mock.ExpectExec(`UPDATE "conversations" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repos.Conversations.UpdateStatus(context.Background(), "conv-1", model.StatusActive, model.ConversationUpdate{
		Status:    model.StatusPaused,
		UpdatedAt: time.Now(),
	})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepo_UpdateStatus_StorageError(t *testing.T) {
	repo, mock := newMockDB(t)
	repos := repo.Repositories()

	mock.ExpectExec(`UPDATE "conversations" SET`).WillReturnError(errors.New("permission denied"))

	err := repos.Conversations.UpdateStatus(context.Background(), "conv-1", model.StatusActive, model.ConversationUpdate{
		Status:    model.StatusPaused,
		UpdatedAt: time.Now(),
	})
	assert.ErrorIs(t, err, apperrors.ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQualificationRepo_FindByContactID_None(t *testing.T) {
	repo, mock := newMockDB(t)
	repos := repo.Repositories()

	mock.ExpectQuery(`SELECT \* FROM "qualification_status" WHERE contact_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	qs, err := repos.Qualifications.FindByContactID(context.Background(), "contact-1")
	require.NoError(t, err)
	assert.Nil(t, qs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQualificationRepo_Upsert(t *testing.T) {
	repo, mock := newMockDB(t)
	repos := repo.Repositories()
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "contact_id", "automation_enabled", "created_at", "updated_at"}).
		AddRow("qs-existing", "contact-1", false, now.Add(-time.Hour), now)
	mock.ExpectQuery(`INSERT INTO "qualification_status" .* ON CONFLICT \("contact_id"\) DO UPDATE SET`).
		WillReturnRows(rows)

	stored, err := repos.Qualifications.Upsert(context.Background(), &model.QualificationStatus{
		ContactID:         "contact-1",
		AutomationEnabled: false,
		UpdatedAt:         now,
	})
	require.NoError(t, err)
	assert.Equal(t, "qs-existing", stored.ID)
	assert.False(t, stored.AutomationEnabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiptRepo_Claim_New(t *testing.T) {
	repo, mock := newMockDB(t)
	repos := repo.Repositories()

	mock.ExpectExec(`INSERT INTO "webhook_receipts" .* ON CONFLICT DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, existing, err := repos.Receipts.Claim(context.Background(), &model.WebhookReceipt{
		ExternalID: "msg-1",
		Source:     model.SourceBotPlatform,
		ReceivedAt: time.Now(),
	}, time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Nil(t, existing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiptRepo_Claim_Duplicate(t *testing.T) {
	repo, mock := newMockDB(t)
	repos := repo.Repositories()
	now := time.Now()

	mock.ExpectExec(`INSERT INTO "webhook_receipts"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "webhook_receipts" WHERE external_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"external_id", "source", "message_id", "received_at"}).
			AddRow("msg-1", model.SourceBotPlatform, "message-9", now.Add(-time.Minute)))

	claimed, existing, err := repos.Receipts.Claim(context.Background(), &model.WebhookReceipt{
		ExternalID: "msg-1",
		Source:     model.SourceBotPlatform,
		ReceivedAt: now,
	}, time.Hour)
	require.NoError(t, err)
	assert.False(t, claimed)
	require.NotNil(t, existing)
	require.NotNil(t, existing.MessageID)
	assert.Equal(t, "message-9", *existing.MessageID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReceiptRepo_Claim_Expired(t *testing.T) {
	repo, mock := newMockDB(t)
	repos := repo.Repositories()
	now := time.Now()

	mock.ExpectExec(`INSERT INTO "webhook_receipts"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT \* FROM "webhook_receipts" WHERE external_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"external_id", "source", "message_id", "received_at"}).
			AddRow("msg-1", model.SourceBotPlatform, nil, now.Add(-48*time.Hour)))
	mock.ExpectExec(`UPDATE "webhook_receipts" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	claimed, existing, err := repos.Receipts.Claim(context.Background(), &model.WebhookReceipt{
		ExternalID: "msg-1",
		Source:     model.SourceBotPlatform,
		ReceivedAt: now,
	}, 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Nil(t, existing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepo_FindByExternalID_NotFound(t *testing.T) {
	repo, mock := newMockDB(t)
	repos := repo.Repositories()

	mock.ExpectQuery(`SELECT \* FROM "messages" WHERE external_message_id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	msg, err := repos.Messages.FindByExternalID(context.Background(), "SM123")
	assert.Nil(t, msg)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactRepo_FindByPhone_Normalizes(t *testing.T) {
	repo, mock := newMockDB(t)
	repos := repo.Repositories()
	now := time.Now()

	mock.ExpectQuery(`SELECT \* FROM "contacts" WHERE phone = \$1`).
		WithArgs("9082448429", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "phone", "first_name", "created_at", "updated_at"}).
			AddRow("contact-1", "9082448429", "Dana", now, now))

	contact, err := repos.Contacts.FindByPhone(context.Background(), "+1 (908) 244-8429")
	require.NoError(t, err)
	assert.Equal(t, "contact-1", contact.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepo_FindByID_MalformedID(t *testing.T) {
	repo, mock := newMockDB(t)
	repos := repo.Repositories()

	mock.ExpectQuery(`SELECT \* FROM "conversations" WHERE id = \$1`).
		WithArgs("missing-conv", 1).
		WillReturnError(&pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "missing-conv"`})

	conv, err := repos.Conversations.FindByID(context.Background(), "missing-conv")
	assert.Nil(t, conv)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.False(t, errors.Is(err, apperrors.ErrStorage))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactRepo_FindByID_MalformedID(t *testing.T) {
	repo, mock := newMockDB(t)
	repos := repo.Repositories()

	mock.ExpectQuery(`SELECT \* FROM "contacts" WHERE id = \$1`).
		WillReturnError(&pgconn.PgError{Code: "22P02"})

	_, err := repos.Contacts.FindByID(context.Background(), "contact-x")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationRepo_Create_GeneratesTimeOrderedID(t *testing.T) {
	repo, mock := newMockDB(t)
	repos := repo.Repositories()

	mock.ExpectExec(`INSERT INTO "conversations"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	conv := &model.Conversation{ContactID: "contact-1", ConversationStatus: model.StatusActive}
	require.NoError(t, repos.Conversations.Create(context.Background(), conv))

	id, err := uuid.Parse(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepo_UpdateDelivery_MergesMetadata(t *testing.T) {
	repo, mock := newMockDB(t)
	repos := repo.Repositories()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "messages" WHERE id = \$1 .*FOR UPDATE`).
		WithArgs("msg-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "conversation_id", "direction", "delivery_status", "metadata", "created_at", "updated_at"}).
			AddRow("msg-1", "conv-1", "outbound", "pending", []byte(`{"botpressUserId":"bp-user-1"}`), now, now))
	mock.ExpectExec(`UPDATE "messages" SET .*"delivery_status"=\$1.*WHERE id = \$5`).
		WithArgs(
			string(model.DeliveryFailed),
			sqlmock.AnyArg(),
			jsonHas{"botpressUserId": "bp-user-1", "error": "carrier rejected"},
			AnyTime{},
			"msg-1",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repos.Messages.UpdateDelivery(context.Background(), "msg-1", model.DeliveryUpdate{
		Status:    model.DeliveryFailed,
		Metadata:  map[string]any{"error": "carrier rejected"},
		UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageRepo_UpdateDelivery_NotFound(t *testing.T) {
	repo, mock := newMockDB(t)
	repos := repo.Repositories()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "messages" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := repos.Messages.UpdateDelivery(context.Background(), "msg-missing", model.DeliveryUpdate{
		Status:    model.DeliveryDelivered,
		UpdatedAt: time.Now(),
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
