package models

import (
	"time"

	"github.com/jellydator/validation"
)

type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationInfo    NotificationType = "info"
	NotificationWarning NotificationType = "warning"
)

// AutoExpires reports whether notifications of this type are removed on their own.
func (t NotificationType) AutoExpires() bool {
	return t == NotificationSuccess || t == NotificationError
}

// NotificationAction is a button the UI can render next to a notification.
type NotificationAction struct {
	Label  string `json:"label"`
	Target string `json:"target"`
}

type Notification struct {
	ID        string              `json:"id"`
	Type      NotificationType    `json:"type"`
	Title     string              `json:"title"`
	Message   string              `json:"message"`
	Timestamp time.Time           `json:"timestamp"`
	Read      bool                `json:"read"`
	Action    *NotificationAction `json:"action,omitempty"`
}

// Alert is the payload of an externally raised notification.
type Alert struct {
	Type    NotificationType    `json:"type"`
	Title   string              `json:"title"`
	Message string              `json:"message"`
	Action  *NotificationAction `json:"action,omitempty"`
}

func (a Alert) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Type, validation.Required, validation.In(NotificationSuccess, NotificationError, NotificationInfo, NotificationWarning)),
		validation.Field(&a.Title, validation.Required),
	)
}

// FeedView is what subscribers receive on every feed change.
type FeedView struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
}
