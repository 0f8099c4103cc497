package classify

import "strings"

// Platform UI identities that never count as apps.
var DefaultIgnorePackages = []string{
	"com.android.systemui",
	"android",
	"com.android.system",
}

// Banner phrases from screen casting, recording and system chrome.
var DefaultIgnorePhrases = []string{
	"Oberfläche",
	"Surface",
	"Bildschirmaufnahme",
	"Screen recording",
	"Bildschirm wird übertragen",
	"Screen is being cast",
	"Android System",
	"läuft",
}

type FilterOptions struct {
	SelfID    string
	TestTitle string
	TestText  string
	// Extra entries are added to the defaults above.
	ExtraPackages []string
	ExtraPhrases  []string
}

// Filter decides which events are worth processing. It is immutable and
// safe for concurrent use.
type Filter struct {
	selfID    string
	testTitle string
	testText  string
	packages  map[string]struct{}
	phrases   []string // lower-cased
}

func NewFilter(o FilterOptions) *Filter {
	f := &Filter{
		selfID:    o.SelfID,
		testTitle: o.TestTitle,
		testText:  o.TestText,
		packages:  map[string]struct{}{},
	}
	for _, p := range append(append([]string(nil), DefaultIgnorePackages...), o.ExtraPackages...) {
		if p = strings.TrimSpace(p); p != "" {
			f.packages[p] = struct{}{}
		}
	}
	for _, p := range append(append([]string(nil), DefaultIgnorePhrases...), o.ExtraPhrases...) {
		if p = strings.TrimSpace(p); p != "" {
			f.phrases = append(f.phrases, strings.ToLower(p))
		}
	}
	return f
}

// ShouldIgnore applies the rules in order: own identity (except the exact
// self-test title/text), ignored platform packages, chrome phrases.
func (f *Filter) ShouldIgnore(pkg, title, text string) bool {
	if pkg == f.selfID {
		return title != f.testTitle || text != f.testText
	}
	if f.IsIgnoredPackage(pkg) {
		return true
	}
	lt, lx := strings.ToLower(title), strings.ToLower(text)
	for _, p := range f.phrases {
		if strings.Contains(lt, p) || strings.Contains(lx, p) {
			return true
		}
	}
	return false
}

// IsIgnoredPackage reports whether pkg is a platform identity.
func (f *Filter) IsIgnoredPackage(pkg string) bool {
	_, ok := f.packages[pkg]
	return ok
}

// IgnoresKey applies IsIgnoredPackage to the package part of an identity key.
func (f *Filter) IgnoresKey(key string) bool {
	pkg, _ := SplitKey(key)
	return f.IsIgnoredPackage(pkg)
}

func (f *Filter) SelfID() string { return f.selfID }
