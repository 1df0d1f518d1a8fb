package model

import (
	"time"

	"gorm.io/gorm/schema"
)

// Contact is a lead. Phone is stored in canonical digits-only form.
type Contact struct {
	ID             string    `json:"id" gorm:"column:id;primaryKey;type:uuid"`
	Phone          string    `json:"phone" gorm:"column:phone;index"`
	FirstName      string    `json:"first_name,omitempty" gorm:"column:first_name"`
	LastName       string    `json:"last_name,omitempty" gorm:"column:last_name"`
	CreatedBy      *string   `json:"created_by,omitempty" gorm:"column:created_by"`
	OrganizationID *string   `json:"organization_id,omitempty" gorm:"column:organization_id;index"`
	CreatedAt      time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM, respecting the Namer.
func (Contact) TableName(namer schema.Namer) string {
	return namer.TableName("contacts")
}
