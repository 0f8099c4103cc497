package classify

// IsAudible guesses whether e made a sound. A foreign app's channel sound
// settings can't be inspected, so any event with a channel counts as audible.
func IsAudible(e *Event) bool {
	if e == nil {
		return false
	}
	if e.HasExplicitSound || e.HasDefaultSoundFlag {
		return true
	}
	return e.ChannelID != nil
}
