package approvals

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/meridian-crm/meridian-crm/internal/workflow"
)

var titleCaser = cases.Title(language.English)

// entityLabel renders an entity type for user-facing copy ("DEAL" -> "Deal").
func entityLabel(entity workflow.EntityType) string {
	return titleCaser.String(strings.ToLower(string(entity)))
}

func decisionCopy(request ApprovalRequest, decision Decision, reason *string) (title, message string) {
	label := entityLabel(request.RelatedTo)
	if decision == DecisionApprove {
		return fmt.Sprintf("%s approved", label),
			fmt.Sprintf("Your approval request for %s %s was approved.", strings.ToLower(label), request.RelatedID)
	}
	message = fmt.Sprintf("Your approval request for %s %s was rejected.", strings.ToLower(label), request.RelatedID)
	if reason != nil && *reason != "" {
		message += " Reason: " + *reason
	}
	return fmt.Sprintf("%s rejected", label), message
}
