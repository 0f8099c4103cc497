// Package classify holds the pure decisions made for every inbound
// notification: whether to look at it, whether it made a sound, and which
// identity key it belongs to.
package classify

import "time"

// Event is one notification as delivered by a source. It is never persisted.
type Event struct {
	PackageID           string  `json:"packageId"`
	Title               string  `json:"title"`
	Text                string  `json:"text"`
	ChannelID           *string `json:"channelId,omitempty"`
	Category            *string `json:"category,omitempty"`
	HasExplicitSound    bool    `json:"hasExplicitSound"`
	HasDefaultSoundFlag bool    `json:"hasDefaultSound"`
	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`
}

func (e *Event) Key() string {
	return BuildKey(e.PackageID, e.ChannelID, e.Category)
}

func (e *Event) Time() time.Time { return time.UnixMilli(e.Timestamp) }

// Ptr returns &s, or nil for the empty string.
func Ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
