package database

import "casedesk/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Report{},
		&models.Attachment{},
		&models.ReportEvent{},
	}
}
