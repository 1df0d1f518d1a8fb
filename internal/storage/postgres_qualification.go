package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/capitalize-ai/lead-automation/internal/model"
)

type qualificationRepo struct {
	db *gorm.DB
}

// NewQualificationStatusRepo creates a PostgreSQL qualification status repository.
func NewQualificationStatusRepo(db *gorm.DB) QualificationStatusRepo {
	return &qualificationRepo{db: db}
}

// FindByContactID returns the contact's row or nil when none exists.
func (r *qualificationRepo) FindByContactID(ctx context.Context, contactID string) (*model.QualificationStatus, error) {
	var qs model.QualificationStatus
	err := withRetry(ctx, readRetryMaxElapsedTime, "find_by_contact", "qualification_status", func() error {
		return r.db.WithContext(ctx).Where("contact_id = ?", contactID).Take(&qs).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, mapDBError(err, "failed to find qualification status for contact %s", contactID)
	}
	return &qs, nil
}

// Upsert inserts the row or updates the automation columns on contact_id conflict.
func (r *qualificationRepo) Upsert(ctx context.Context, qs *model.QualificationStatus) (*model.QualificationStatus, error) {
	if qs.ID == "" {
		qs.ID = uuid.NewString()
	}

	err := withRetry(ctx, writeRetryMaxElapsedTime, "upsert", "qualification_status", func() error {
		return r.db.WithContext(ctx).
			Clauses(
				clause.OnConflict{
					Columns:   []clause.Column{{Name: "contact_id"}},
					DoUpdates: clause.AssignmentColumns([]string{"automation_enabled", "automation_change_reason", "updated_by", "updated_at"}),
				},
				clause.Returning{},
			).
			Create(qs).Error
	})
	if err != nil {
		return nil, mapDBError(err, "failed to upsert qualification status for contact %s", qs.ContactID)
	}

	stored := *qs
	return &stored, nil
}
