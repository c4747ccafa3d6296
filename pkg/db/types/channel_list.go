package dbtypes

import "github.com/homevia/homevia-backend/pkg/enums"

// ChannelList is the set of delivery channels requested for a notification.
// Stored as a JSON array (gorm serializer:json) so Postgres and the SQLite
// test driver share one representation.
type ChannelList []enums.NotificationChannel

// Has reports whether the list contains the given channel.
func (c ChannelList) Has(channel enums.NotificationChannel) bool {
	for _, candidate := range c {
		if candidate == channel {
			return true
		}
	}
	return false
}
