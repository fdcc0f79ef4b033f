// Package authz holds the pure authorization predicates used by report and attachment commands.
package authz

import "casedesk/internal/models"

// IsOwner reports whether actorID owns report.
func IsOwner(report *models.Report, actorID string) bool {
	return report != nil && actorID != "" && report.OwnerID == actorID
}

// IsReviewer reports whether actor may review and archive reports.
func IsReviewer(actor models.Actor) bool {
	return actor.Role == models.RoleAdministrator || actor.Role == models.RoleSupervisor
}

// CanAccessReport is the read gate for reports and their attachments: the owner or any reviewer.
func CanAccessReport(report *models.Report, actor models.Actor) bool {
	return IsOwner(report, actor.ID) || IsReviewer(actor)
}
