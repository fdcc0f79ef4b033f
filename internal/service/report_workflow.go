package service

import (
	"casedesk/internal/authz"
	"casedesk/internal/models"
)

// Command names a report lifecycle command.
type Command string

const (
	CommandCreate  Command = "create"
	CommandUpdate  Command = "update"
	CommandSubmit  Command = "submit"
	CommandReview  Command = "review"
	CommandDelete  Command = "delete"
	CommandArchive Command = "archive"
)

// transitionTable lists, per command, the statuses it may start from.
var transitionTable = map[Command][]models.ReportStatus{
	CommandUpdate:  {models.ReportStatusDraft, models.ReportStatusReturned},
	CommandSubmit:  {models.ReportStatusDraft, models.ReportStatusReturned},
	CommandReview:  {models.ReportStatusSubmitted},
	CommandDelete:  {models.ReportStatusDraft},
	CommandArchive: {models.ReportStatusApproved, models.ReportStatusRejected},
}

// reviewOutcomes are the statuses a review may decide.
var reviewOutcomes = []models.ReportStatus{
	models.ReportStatusApproved,
	models.ReportStatusRejected,
	models.ReportStatusReturned,
}

// CanTransition reports whether cmd is allowed from status.
func CanTransition(cmd Command, status models.ReportStatus) bool {
	for _, from := range transitionTable[cmd] {
		if from == status {
			return true
		}
	}
	return false
}

func isReviewOutcome(status models.ReportStatus) bool {
	for _, s := range reviewOutcomes {
		if s == status {
			return true
		}
	}
	return false
}

// authorizeCommand applies the actor rule of cmd: owner-only commands fail with UNAUTHORIZED,
// reviewer-only commands with FORBIDDEN.
func authorizeCommand(cmd Command, report *models.Report, actor models.Actor) error {
	switch cmd {
	case CommandUpdate, CommandSubmit, CommandDelete:
		if !authz.IsOwner(report, actor.ID) {
			return models.NewUnauthorizedError("Only the report owner may " + string(cmd) + " this report")
		}
	case CommandReview, CommandArchive:
		if !authz.IsReviewer(actor) {
			return models.NewForbiddenError("Reviewer role required to " + string(cmd) + " reports")
		}
	}
	return nil
}

// AvailableCommands lists the commands actor could currently run against report.
func AvailableCommands(report *models.Report, actor models.Actor) []Command {
	var out []Command
	for _, cmd := range []Command{CommandUpdate, CommandSubmit, CommandReview, CommandDelete, CommandArchive} {
		if CanTransition(cmd, report.Status) && authorizeCommand(cmd, report, actor) == nil {
			out = append(out, cmd)
		}
	}
	return out
}
