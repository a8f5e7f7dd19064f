package categorizer

import (
	"fmt"
	"strings"
)

// Well-known category names.
const (
	Miscellaneous = "Miscellaneous"
	Idle          = "Idle"
	Entertainment = "Entertainment"

	// DefaultColor is used for categories without a color of their own.
	DefaultColor = "#7a7a7a"
)

// Category is one named productivity label with its matching rules.
type Category struct {
	Name     string   `yaml:"name" json:"name"`
	Apps     []string `yaml:"apps" json:"apps"`
	Keywords []string `yaml:"keywords" json:"keywords"`
	Color    string   `yaml:"color,omitempty" json:"color,omitempty"`
}

// RuleSet is the ordered list of categories. Earlier categories win.
type RuleSet struct {
	Categories []Category `yaml:"categories" json:"categories"`
}

// DefaultRules returns the built-in rule-set.
func DefaultRules() RuleSet {
	return RuleSet{Categories: []Category{
		{
			Name: "Code",
			Apps: []string{"Code.exe", "code", "WindowsTerminal.exe", "Microsoft Visual Studio 2022",
				"stackoverflow.com", "jetbrains", "goland", "nvim", "alacritty", "kitty", "gnome-terminal"},
			Keywords: []string{"programming", "development", "software", "debug", "compile", "script",
				"framework", "library", "api", "github", "gitlab", "coding", "developer", "engineer",
				"algorithm", "data structure", "IDE", "integrated development environment"},
			Color: "#00d8ff",
		},
		{
			Name: "Browsing",
			Apps: []string{"chatgpt.com", "udemy.com"},
			Keywords: []string{"tutorial", "productivity", "reddit", "twitter", "course", "research",
				"study", "learning", "learn", "lecture", "education", "linkedin", "training", "workshop",
				"seminar", "webinar", "textbook", "Google Chrome", "notes", "exam", "quiz", "assignment",
				"homework", "thesis", "dissertation", "academic", "scholar", "knowledge", "studocu"},
			Color: "#b381c9",
		},
		{
			Name:     "Communication",
			Apps:     []string{"Skype.exe", "mail.google.com", "ms-teams.exe", "slack", "discord", "thunderbird"},
			Keywords: []string{"email", "gmail", "meeting", "Microsoft Teams", "call", "message", "messaging", "inbox", "outbox", "contact", "social"},
			Color:    "#5ac26d",
		},
		{
			Name: "Utilities",
			Apps: []string{"Notepad.exe", "TaskManager.exe", "explorer.exe", "Application Frame Host", "nautilus", "dolphin"},
			Keywords: []string{"utility", "tool", "manager", "explorer", "browser", "notepad", "task",
				"system", "settings", "control", "panel", "file", "folder", "directory", "calculator",
				"calendar", "clock", "reminder", "to-do", "organizer", "planner"},
			Color: "#36a2eb",
		},
		{
			Name: Entertainment,
			Apps: []string{"Spotify.exe", "spotify", "vlc.exe", "vlc", "youtube.com", "netflix.com", "twitch.tv"},
			Keywords: []string{"youtube", "music", "movie", "watch", "game", "entertainment", "video",
				"stream", "play", "song", "album", "artist", "band", "concert", "show", "series", "episode",
				"season", "trailer", "teaser", "cinema", "theater", "fun", "leisure", "hobby", "relaxation"},
			Color: "#ff6384",
		},
		{
			Name: Idle,
			Apps: []string{"LockApp.exe", "i3lock", "swaylock", "xscreensaver", "gnome-screensaver", "kscreenlocker"},
		},
		{
			Name:  Miscellaneous,
			Color: DefaultColor,
		},
	}}
}

// Validate checks that category names are unique and non-empty.
func (r RuleSet) Validate() error {
	seen := make(map[string]bool, len(r.Categories))
	for i, cat := range r.Categories {
		if strings.TrimSpace(cat.Name) == "" {
			return fmt.Errorf("category %d has no name", i)
		}
		if seen[cat.Name] {
			return fmt.Errorf("duplicate category %q", cat.Name)
		}
		seen[cat.Name] = true
	}
	return nil
}

// Names returns the category names in declaration order.
func (r RuleSet) Names() []string {
	names := make([]string, 0, len(r.Categories))
	for _, cat := range r.Categories {
		names = append(names, cat.Name)
	}
	return names
}

// normalized returns a deep copy with Miscellaneous moved to the end and
// empty patterns removed. Patterns are stored lowercase.
func (r RuleSet) normalized() RuleSet {
	out := RuleSet{Categories: make([]Category, 0, len(r.Categories)+1)}
	var misc *Category
	for _, cat := range r.Categories {
		c := Category{
			Name:     cat.Name,
			Apps:     lowerPatterns(cat.Apps),
			Keywords: lowerPatterns(cat.Keywords),
			Color:    cat.Color,
		}
		if c.Name == Miscellaneous {
			misc = &c
			continue
		}
		out.Categories = append(out.Categories, c)
	}
	if misc == nil {
		misc = &Category{Name: Miscellaneous, Color: DefaultColor}
	}
	out.Categories = append(out.Categories, *misc)
	return out
}

func lowerPatterns(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
