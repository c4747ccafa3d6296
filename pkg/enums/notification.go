package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeVisitUpdate NotificationType = "visit_update"
	NotificationTypeOfferUpdate NotificationType = "offer_update"
	NotificationTypePayment     NotificationType = "payment"
	NotificationTypeReminder    NotificationType = "reminder"
	NotificationTypeSystem      NotificationType = "system"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeVisitUpdate,
	NotificationTypeOfferUpdate,
	NotificationTypePayment,
	NotificationTypeReminder,
	NotificationTypeSystem,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}

// NotificationPriority orders notifications for recipients.
type NotificationPriority string

const (
	NotificationPriorityLow    NotificationPriority = "low"
	NotificationPriorityNormal NotificationPriority = "normal"
	NotificationPriorityHigh   NotificationPriority = "high"
)

// IsValid checks whether the given priority matches the canonical enum.
func (n NotificationPriority) IsValid() bool {
	switch n {
	case NotificationPriorityLow, NotificationPriorityNormal, NotificationPriorityHigh:
		return true
	}
	return false
}

// NotificationChannel names a requested delivery channel.
type NotificationChannel string

const (
	NotificationChannelInApp NotificationChannel = "in_app"
	NotificationChannelEmail NotificationChannel = "email"
)

// IsValid checks whether the given channel matches the canonical enum.
func (n NotificationChannel) IsValid() bool {
	return n == NotificationChannelInApp || n == NotificationChannelEmail
}

// EmailStatus records the outcome of an email delivery attempt. A nil
// pointer on the notification row means delivery was never attempted.
type EmailStatus string

const (
	EmailStatusSent   EmailStatus = "sent"
	EmailStatusFailed EmailStatus = "failed"
)

// IsValid checks whether the given status matches the canonical enum.
func (e EmailStatus) IsValid() bool {
	return e == EmailStatusSent || e == EmailStatusFailed
}
