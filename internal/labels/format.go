package labels

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// knownApps maps id fragments to display names; first match wins.
var knownApps = []struct {
	parts []string
	name  string
}{
	{[]string{"yahoo", "mail"}, "Yahoo Mail"},
	{[]string{"whatsapp"}, "WhatsApp"},
	{[]string{"gmail"}, "Gmail"},
	{[]string{"facebook"}, "Facebook"},
	{[]string{"instagram"}, "Instagram"},
	{[]string{"twitter"}, "Twitter"},
	{[]string{"telegram"}, "Telegram"},
	{[]string{"signal"}, "Signal"},
	{[]string{"messenger"}, "Messenger"},
}

// FormatPackageName derives a display name from the package id alone.
//
//	com.yahoo.mobile.client.android.mail -> Yahoo Mail
//	org.example.notes                    -> Notes
func FormatPackageName(pkg string) string {
	for _, k := range knownApps {
		all := true
		for _, p := range k.parts {
			if !strings.Contains(pkg, p) {
				all = false
				break
			}
		}
		if all {
			return k.name
		}
	}
	last := pkg
	if i := strings.LastIndexByte(pkg, '.'); i >= 0 {
		last = pkg[i+1:]
	}
	return upperFirst(last)
}

// FormatChannelID turns a raw channel id into a label, or reports false when
// the id carries nothing readable.
//
//	500_mail__people_ -> Mail People
//	12345             -> (none)
func FormatChannelID(id string) (string, bool) {
	if utf8.RuneCountInString(id) < 3 || allDigits(id) {
		return "", false
	}
	words := make([]string, 0, 4)
	for _, w := range strings.Split(strings.ReplaceAll(id, "_", " "), " ") {
		if w == "" || allDigits(w) {
			continue
		}
		words = append(words, upperFirst(w))
	}
	out := strings.TrimSpace(strings.Join(words, " "))
	if utf8.RuneCountInString(out) < 3 {
		return "", false
	}
	return out, true
}

// RelativeTime renders the age of ts (ms epoch) relative to now.
func RelativeTime(now time.Time, ts int64) string {
	secs := max(now.Sub(time.UnixMilli(ts)).Milliseconds()/1000, 0)
	if m := secs / 60; m > 0 {
		return fmt.Sprintf("%dm %ds ago", m, secs%60)
	}
	return fmt.Sprintf("%ds ago", secs)
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func upperFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}
