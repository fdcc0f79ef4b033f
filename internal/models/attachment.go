package models

// MaxAttachmentSize is the largest accepted upload, in bytes.
const MaxAttachmentSize int64 = 10 * 1024 * 1024

// AllowedAttachmentExtensions is the upload allow-list, lower case without the dot.
var AllowedAttachmentExtensions = map[string]struct{}{
	"pdf":  {},
	"doc":  {},
	"docx": {},
	"xls":  {},
	"xlsx": {},
	"txt":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"zip":  {},
}

// Attachment is a file registered against a report. It references the report by id only.
type Attachment struct {
	Base
	ReportID    string `gorm:"type:varchar(36);not null;index" json:"report_id"`
	FileName    string `gorm:"size:255;not null" json:"file_name"`
	ContentType string `gorm:"size:255;not null" json:"content_type"`
	FileSize    int64  `gorm:"not null" json:"file_size"`
	StorageKey  string `gorm:"size:255;not null;uniqueIndex" json:"-"`
	Checksum    string `gorm:"size:64;not null;default:''" json:"checksum"`
	UploadedBy  string `gorm:"size:64;not null" json:"uploaded_by"`
}

// TableName returns the database table name for Attachment.
func (Attachment) TableName() string {
	return "attachments"
}
