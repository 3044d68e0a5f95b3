package reporting

// NotificationLevel distinguishes user-facing outcome messages.
type NotificationLevel string

const (
	NotificationSuccess NotificationLevel = "success"
	NotificationError   NotificationLevel = "error"
)

const (
	msgReportCompleted = "Comprehensive report generation completed"
	msgReportFailed    = "Comprehensive report generation failed"
)

// Notification is the user-visible message emitted when a job reaches a
// terminal state. Transient query failures never produce one.
type Notification struct {
	Level     NotificationLevel `json:"level"`
	Message   string            `json:"message"`
	EntityKey string            `json:"entity_key"`
	JobID     string            `json:"job_id"`
	Status    ReportStatus      `json:"status"`
}

// NewTerminalNotification builds the notification for a terminal status.
// The second return value is false for non-terminal statuses.
func NewTerminalNotification(entityKey, jobID string, status ReportStatus) (Notification, bool) {
	n := Notification{EntityKey: entityKey, JobID: jobID, Status: status}
	switch status {
	case ReportStatusCompleted:
		n.Level, n.Message = NotificationSuccess, msgReportCompleted
	case ReportStatusFailed:
		n.Level, n.Message = NotificationError, msgReportFailed
	default:
		return Notification{}, false
	}
	return n, true
}
