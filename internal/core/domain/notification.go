package domain

type NotificationKind string

const (
	NotifyInfo         NotificationKind = "info"
	NotifyError        NotificationKind = "error"
	NotifyIncomingCall NotificationKind = "incoming-call"
)

// Notification is a transient, user-visible message.
type Notification struct {
	Kind  NotificationKind  `json:"kind"`
	Title string            `json:"title"`
	Body  string            `json:"body,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

func ErrorNotification(title string, err error) Notification {
	return Notification{
		Kind:  NotifyError,
		Title: title,
		Body:  err.Error(),
	}
}
