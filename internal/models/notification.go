package models

// NotificationType is the kind of event a notification reports
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
)

// Notification tells a recipient that someone liked or commented on their idea.
// Its ID is always the ID of the like or comment that produced it.
type Notification struct {
	ID        string           `json:"-"`
	Recipient string           `json:"recipient"`
	Sender    string           `json:"sender"`
	Type      NotificationType `json:"type"`
	IdeaID    string           `json:"ideaId"`
	Read      bool             `json:"read"`
	CreatedAt string           `json:"createdAt"`
}
