package classify

import "testing"

func testFilter() *Filter {
	return NewFilter(FilterOptions{SelfID: "notifsnd", TestTitle: "Test", TestText: "Test-Benachrichtigung"})
}

func TestShouldIgnore(t *testing.T) {
	f := testFilter()
	cases := []struct {
		name             string
		pkg, title, text string
		want             bool
	}{
		{"self test escape", "notifsnd", "Test", "Test-Benachrichtigung", false},
		{"self other title", "notifsnd", "Hello", "Test-Benachrichtigung", true},
		{"self other text", "notifsnd", "Test", "something", true},
		{"self empty", "notifsnd", "", "", true},
		{"self test case matters", "notifsnd", "test", "Test-Benachrichtigung", true},
		{"system ui", "com.android.systemui", "Hi", "there", true},
		{"bare android", "android", "", "", true},
		{"system service", "com.android.system", "x", "y", true},
		{"test pair from other app is fine", "com.chat", "Test", "Test-Benachrichtigung", false},
		{"screen recording phrase", "com.rec", "SCREEN RECORDING active", "", true},
		{"umlaut phrase in text", "com.cast", "", "Bildschirm wird ÜBERTRAGEN", true},
		{"running banner", "com.vpn", "VPN läuft", "", true},
		{"surface banner", "com.any", "", "Display over surface", true},
		{"ordinary", "com.whatsapp", "Anna", "Hi!", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := f.ShouldIgnore(tc.pkg, tc.title, tc.text); got != tc.want {
				t.Fatalf("ShouldIgnore(%q,%q,%q) = %v, want %v", tc.pkg, tc.title, tc.text, got, tc.want)
			}
		})
	}
}

func TestFilterExtras(t *testing.T) {
	f := NewFilter(FilterOptions{SelfID: "me", ExtraPackages: []string{" org.gnome.Shell "}, ExtraPhrases: []string{"Updates available"}})
	if !f.ShouldIgnore("org.gnome.Shell", "a", "b") {
		t.Fatalf("extra package not ignored")
	}
	if !f.ShouldIgnore("org.pkg", "3 updates AVAILABLE", "") {
		t.Fatalf("extra phrase not ignored")
	}
	if !f.ShouldIgnore("android", "", "") {
		t.Fatalf("defaults must survive extras")
	}
	if !f.IgnoresKey("com.android.systemui:alerts") || f.IgnoresKey("com.a:android") {
		t.Fatalf("IgnoresKey must look at the package part only")
	}
}

func TestIsAudible(t *testing.T) {
	ch := "c1"
	cases := []struct {
		name string
		ev   *Event
		want bool
	}{
		{"nil", nil, false},
		{"explicit without channel", &Event{HasExplicitSound: true}, true},
		{"explicit with channel", &Event{HasExplicitSound: true, ChannelID: &ch}, true},
		{"default flag", &Event{HasDefaultSoundFlag: true}, true},
		{"channel only", &Event{ChannelID: &ch}, true},
		{"category is not a channel", &Event{Category: &ch}, false},
		{"nothing", &Event{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsAudible(tc.ev); got != tc.want {
				t.Fatalf("IsAudible = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBuildKey(t *testing.T) {
	c1, cat, empty := "c1", "cat1", ""
	cases := []struct {
		ch, cat *string
		want    string
	}{
		{&c1, nil, "com.a:c1"},
		{nil, &cat, "com.a:cat1"},
		{nil, nil, "com.a"},
		{&c1, &cat, "com.a:c1"},
		{&empty, &cat, "com.a"},
		{nil, &empty, "com.a"},
	}
	for _, tc := range cases {
		if got := BuildKey("com.a", tc.ch, tc.cat); got != tc.want {
			t.Fatalf("BuildKey = %q, want %q", got, tc.want)
		}
	}
}

func TestSplitKey(t *testing.T) {
	pkg, ch := SplitKey("com.a:group:chat")
	if pkg != "com.a" || ch != "group:chat" {
		t.Fatalf("SplitKey = %q %q", pkg, ch)
	}
	pkg, ch = SplitKey("com.a")
	if pkg != "com.a" || ch != "" {
		t.Fatalf("SplitKey = %q %q", pkg, ch)
	}
}
