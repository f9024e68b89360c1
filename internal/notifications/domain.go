package notifications

import (
	"time"

	"github.com/meridian-crm/meridian-crm/internal/workflow"
)

// Notification is an in-app message for a single user. Rows are written
// best-effort from decision side effects and read back on the user's feed.
type Notification struct {
	ID        string               `json:"id"`
	TenantID  string               `json:"tenant_id"`
	UserID    string               `json:"user_id"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	RelatedTo *workflow.EntityType `json:"related_to,omitempty"`
	RelatedID *string              `json:"related_id,omitempty"`
	ReadAt    *time.Time           `json:"read_at,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}
