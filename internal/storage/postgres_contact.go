package storage

import (
	"context"

	"gorm.io/gorm"

	"github.com/capitalize-ai/lead-automation/internal/model"
	"github.com/capitalize-ai/lead-automation/pkg/phone"
)

type contactRepo struct {
	db *gorm.DB
}

// NewContactRepo creates a PostgreSQL contact repository.
func NewContactRepo(db *gorm.DB) ContactRepo {
	return &contactRepo{db: db}
}

// FindByID finds a contact by id.
func (r *contactRepo) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	var contact model.Contact
	err := withRetry(ctx, readRetryMaxElapsedTime, "find_by_id", "contact", func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).Take(&contact).Error
	})
	if err != nil {
		return nil, mapDBError(err, "failed to find contact %s", id)
	}
	return &contact, nil
}

// FindByPhone finds a contact by phone. The input is normalized first, so any
// common format matches the stored canonical key.
func (r *contactRepo) FindByPhone(ctx context.Context, raw string) (*model.Contact, error) {
	key := phone.Normalize(raw)
	var contact model.Contact
	err := withRetry(ctx, readRetryMaxElapsedTime, "find_by_phone", "contact", func() error {
		return r.db.WithContext(ctx).
			Where("phone = ?", key).
			Order("created_at DESC").
			Take(&contact).Error
	})
	if err != nil {
		return nil, mapDBError(err, "failed to find contact by phone %s", key)
	}
	return &contact, nil
}
