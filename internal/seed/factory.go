// Package seed creates demo reports for local development by driving the real
// report and attachment services, so seeded data always satisfies the lifecycle rules.
package seed

import (
	"fmt"
	"strings"

	"casedesk/internal/models"
	"casedesk/internal/service"

	"github.com/brianvoe/gofakeit/v6"
)

var categories = []string{
	"Safety", "Environmental", "Financial", "Equipment", "Personnel", "Compliance", "Security",
}

var priorities = []string{"Low", "Normal", "Normal", "Normal", "High", "Critical"}

// Factory builds fake report content.
type Factory struct {
	faker *gofakeit.Faker
}

// NewFactory returns a Factory. A zero seed picks a random one.
func NewFactory(seed int64) *Factory {
	return &Factory{faker: gofakeit.New(seed)}
}

// Owner returns the n-th demo report owner.
func (f *Factory) Owner(n int) models.Actor {
	return models.Actor{ID: fmt.Sprintf("demo-user-%03d", n), Role: models.RoleUser}
}

// Reviewer returns the n-th demo supervisor.
func (f *Factory) Reviewer(n int) models.Actor {
	return models.Actor{ID: fmt.Sprintf("demo-supervisor-%02d", n), Role: models.RoleSupervisor}
}

// ReportInput builds a plausible new report.
func (f *Factory) ReportInput() service.CreateReportInput {
	category := f.faker.RandomString(categories)
	return service.CreateReportInput{
		Title:       fmt.Sprintf("%s: %s", category, strings.TrimSuffix(f.faker.Sentence(6), ".")),
		Description: f.faker.Paragraph(2, 4, 12, "\n\n"),
		Category:    category,
		Priority:    f.faker.RandomString(priorities),
	}
}

// ReviewNotes returns a short reviewer comment.
func (f *Factory) ReviewNotes() string {
	return f.faker.HackerPhrase()
}

// Attachment returns a file name and text body for a demo attachment.
func (f *Factory) Attachment() (string, string) {
	name := fmt.Sprintf("%s-notes.txt", strings.ToLower(f.faker.Word()))
	return name, f.faker.Paragraph(1, 3, 10, "\n")
}

// Outcome picks the lifecycle stage a seeded report is driven to.
func (f *Factory) Outcome() models.ReportStatus {
	n := f.faker.Number(1, 100)
	switch {
	case n <= 20:
		return models.ReportStatusDraft
	case n <= 40:
		return models.ReportStatusSubmitted
	case n <= 60:
		return models.ReportStatusApproved
	case n <= 72:
		return models.ReportStatusRejected
	case n <= 88:
		return models.ReportStatusReturned
	default:
		return models.ReportStatusArchived
	}
}
