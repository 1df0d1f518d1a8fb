package model

import "time"

// QualificationStatus holds the per-contact automation flag and audit fields.
type QualificationStatus struct {
	ID                     string    `json:"id" gorm:"column:id;primaryKey;type:uuid"`
	ContactID              string    `json:"contact_id" gorm:"column:contact_id;uniqueIndex"`
	AutomationEnabled      bool      `json:"automation_enabled" gorm:"column:automation_enabled;not null;default:false"`
	AutomationChangeReason *string   `json:"automation_change_reason,omitempty" gorm:"column:automation_change_reason"`
	UpdatedBy              *string   `json:"updated_by,omitempty" gorm:"column:updated_by"`
	CreatedAt              time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt              time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// TableName pins the singular table name. The default naming strategy would
// pluralize it to qualification_statuses.
func (QualificationStatus) TableName() string {
	return "qualification_status"
}

// AutomationState is the tagged automation flag. The zero value is Unset,
// which is fail-closed: automation is off until explicitly enabled.
type AutomationState int

const (
	AutomationUnset AutomationState = iota
	AutomationEnabled
	AutomationDisabled
)

// AutomationStateOf derives the tagged state from an optional row.
func AutomationStateOf(qs *QualificationStatus) AutomationState {
	switch {
	case qs == nil:
		return AutomationUnset
	case qs.AutomationEnabled:
		return AutomationEnabled
	default:
		return AutomationDisabled
	}
}

// Enabled reports whether automation is explicitly on.
func (s AutomationState) Enabled() bool {
	return s == AutomationEnabled
}

func (s AutomationState) String() string {
	switch s {
	case AutomationEnabled:
		return "enabled"
	case AutomationDisabled:
		return "disabled"
	default:
		return "unset"
	}
}
