package service

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"casedesk/internal/models"

	"gopkg.in/yaml.v3"
)

// ReportSink receives exported reports one at a time.
type ReportSink interface {
	Write(report *models.Report) error
	Flush() error
}

// ExportRow is the flattened, format-neutral shape of an exported report.
type ExportRow struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Status      string `json:"status" yaml:"status"`
	Priority    string `json:"priority" yaml:"priority"`
	Category    string `json:"category" yaml:"category"`
	OwnerID     string `json:"owner_id" yaml:"owner_id"`
	CreatedAt   string `json:"created_at" yaml:"created_at"`
	SubmittedAt string `json:"submitted_at,omitempty" yaml:"submitted_at,omitempty"`
	ReviewedAt  string `json:"reviewed_at,omitempty" yaml:"reviewed_at,omitempty"`
	ReviewedBy  string `json:"reviewed_by,omitempty" yaml:"reviewed_by,omitempty"`
	Version     int64  `json:"version" yaml:"version"`
}

var exportHeader = []string{
	"id", "title", "status", "priority", "category", "owner_id",
	"created_at", "submitted_at", "reviewed_at", "reviewed_by", "version",
}

// NewExportRow flattens r. Timestamps are RFC 3339 in UTC.
func NewExportRow(r *models.Report) ExportRow {
	return ExportRow{
		ID:          r.ID,
		Title:       r.Title,
		Status:      string(r.Status),
		Priority:    string(r.Priority),
		Category:    r.Category,
		OwnerID:     r.OwnerID,
		CreatedAt:   formatTime(&r.CreatedAt),
		SubmittedAt: formatTime(r.SubmittedAt),
		ReviewedAt:  formatTime(r.ReviewedAt),
		ReviewedBy:  r.ReviewedBy,
		Version:     r.Version,
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Export formats.
const (
	ExportCSV  = "csv"
	ExportJSON = "json"
	ExportYAML = "yaml"
)

// NewReportSink returns a sink writing format to w.
func NewReportSink(format string, w io.Writer) (ReportSink, error) {
	switch strings.ToLower(format) {
	case ExportCSV, "":
		return newCSVSink(w), nil
	case ExportJSON:
		return &jsonSink{w: w}, nil
	case ExportYAML, "yml":
		return &yamlSink{w: w}, nil
	default:
		return nil, models.NewValidationError(fmt.Sprintf("Unsupported export format %q", format))
	}
}

// ExportContentType returns the HTTP content type for format.
func ExportContentType(format string) string {
	switch strings.ToLower(format) {
	case ExportJSON:
		return "application/json"
	case ExportYAML, "yml":
		return "application/yaml"
	default:
		return "text/csv"
	}
}

type csvSink struct {
	w      *csv.Writer
	header bool
}

func newCSVSink(w io.Writer) *csvSink {
	return &csvSink{w: csv.NewWriter(w)}
}

func (s *csvSink) Write(r *models.Report) error {
	if !s.header {
		if err := s.w.Write(exportHeader); err != nil {
			return err
		}
		s.header = true
	}
	row := NewExportRow(r)
	return s.w.Write([]string{
		row.ID, row.Title, row.Status, row.Priority, row.Category, row.OwnerID,
		row.CreatedAt, row.SubmittedAt, row.ReviewedAt, row.ReviewedBy,
		strconv.FormatInt(row.Version, 10),
	})
}

func (s *csvSink) Flush() error {
	if !s.header {
		if err := s.w.Write(exportHeader); err != nil {
			return err
		}
		s.header = true
	}
	s.w.Flush()
	return s.w.Error()
}

// jsonSink streams a JSON array without buffering the whole result.
type jsonSink struct {
	w     io.Writer
	count int
}

func (s *jsonSink) Write(r *models.Report) error {
	data, err := json.Marshal(NewExportRow(r))
	if err != nil {
		return err
	}
	prefix := ","
	if s.count == 0 {
		prefix = "["
	}
	if _, err := io.WriteString(s.w, prefix); err != nil {
		return err
	}
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	s.count++
	return nil
}

func (s *jsonSink) Flush() error {
	closing := "]\n"
	if s.count == 0 {
		closing = "[]\n"
	}
	_, err := io.WriteString(s.w, closing)
	return err
}

// yamlSink writes one sequence item per report so the output is a single YAML list.
type yamlSink struct {
	w     io.Writer
	count int
}

func (s *yamlSink) Write(r *models.Report) error {
	data, err := yaml.Marshal([]ExportRow{NewExportRow(r)})
	if err != nil {
		return err
	}
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	s.count++
	return nil
}

func (s *yamlSink) Flush() error {
	if s.count == 0 {
		_, err := io.WriteString(s.w, "[]\n")
		return err
	}
	return nil
}
