package classify

import "strings"

// BuildKey returns "pkg:channel" where channel is channelID, or category when
// channelID is nil. Without a non-empty channel the key is pkg alone.
func BuildKey(pkg string, channelID, category *string) string {
	ch := channelID
	if ch == nil {
		ch = category
	}
	if ch == nil || *ch == "" {
		return pkg
	}
	return pkg + ":" + *ch
}

// SplitKey undoes BuildKey. Package ids never contain ':', so the first one
// separates the package from the channel.
func SplitKey(key string) (pkg, channel string) {
	pkg, channel, _ = strings.Cut(key, ":")
	return pkg, channel
}
