package labels

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// desktopEntry is the part of a freedesktop .desktop file we care about.
type desktopEntry struct {
	id       string // file name without .desktop
	name     string
	wmClass  string
	hidden   bool
	fromPath string
}

// parseDesktopFile reads the [Desktop Entry] group. Localized keys are
// ignored; the untranslated Name is the one notification daemons report.
func parseDesktopFile(path string) (desktopEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return desktopEntry{}, err
	}
	defer f.Close()

	e := desktopEntry{
		id:       strings.TrimSuffix(filepath.Base(path), ".desktop"),
		fromPath: path,
	}
	in := false
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if line[0] == '[' {
			in = line == "[Desktop Entry]"
			continue
		}
		if !in {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(k) {
		case "Name":
			e.name = strings.TrimSpace(v)
		case "StartupWMClass":
			e.wmClass = strings.TrimSpace(v)
		case "Hidden":
			e.hidden = strings.EqualFold(strings.TrimSpace(v), "true")
		}
	}
	return e, sc.Err()
}

// catalog indexes every .desktop file matched by a set of glob patterns.
// The index is rebuilt at most once per ttl.
type catalog struct {
	patterns []string
	loose    bool
	ttl      time.Duration
	now      func() time.Time

	mu     sync.Mutex
	loaded time.Time
	exact  map[string]string
	fuzzy  map[string]string
}

func newCatalog(patterns []string, loose bool, ttl time.Duration) *catalog {
	return &catalog{patterns: patterns, loose: loose, ttl: ttl, now: time.Now}
}

// dirPatterns expands directories to recursive .desktop globs.
func dirPatterns(dirs []string) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, filepath.Join(d, "**", "*.desktop"))
		}
	}
	return out
}

func (c *catalog) refresh() {
	now := c.now()
	if c.exact != nil && now.Sub(c.loaded) < c.ttl {
		return
	}
	exact := map[string]string{}
	fuzzy := map[string]string{}
	for _, pat := range c.patterns {
		// Unreadable directories are skipped by FilepathGlob.
		paths, err := doublestar.FilepathGlob(pat)
		if err != nil {
			continue
		}
		for _, p := range paths {
			e, err := parseDesktopFile(p)
			if err != nil || e.hidden || e.name == "" {
				continue
			}
			id := strings.ToLower(e.id)
			if _, dup := exact[id]; !dup {
				exact[id] = e.name
			}
			if !c.loose {
				continue
			}
			for _, k := range []string{lastSegment(id), strings.ToLower(e.wmClass)} {
				if _, dup := fuzzy[k]; k != "" && !dup {
					fuzzy[k] = e.name
				}
			}
		}
	}
	c.exact, c.fuzzy, c.loaded = exact, fuzzy, now
}

func (c *catalog) lookup(pkg string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresh()

	id := strings.ToLower(pkg)
	if n, ok := c.exact[id]; ok {
		return n, true
	}
	if !c.loose {
		return "", false
	}
	if n, ok := c.fuzzy[id]; ok {
		return n, true
	}
	n, ok := c.fuzzy[lastSegment(id)]
	return n, ok
}

func lastSegment(id string) string {
	if i := strings.LastIndexByte(id, '.'); i >= 0 {
		return id[i+1:]
	}
	return id
}

// DefaultDesktopDirs follows the XDG base directory lookup order.
func DefaultDesktopDirs() []string {
	var dirs []string
	home := os.Getenv("XDG_DATA_HOME")
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = filepath.Join(h, ".local", "share")
		}
	}
	if home != "" {
		dirs = append(dirs, filepath.Join(home, "applications"))
	}
	data := os.Getenv("XDG_DATA_DIRS")
	if data == "" {
		data = "/usr/local/share:/usr/share"
	}
	for _, d := range filepath.SplitList(data) {
		if d != "" {
			dirs = append(dirs, filepath.Join(d, "applications"))
		}
	}
	return append(dirs, "/var/lib/flatpak/exports/share/applications")
}

// profilePatterns cover the per-user application dirs of every account.
var profilePatterns = []string{
	"/home/*/.local/share/applications/**/*.desktop",
	"/home/*/.local/share/flatpak/exports/share/applications/*.desktop",
	"/root/.local/share/applications/**/*.desktop",
}
