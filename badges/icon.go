package badges

import (
	"path"
	"strings"
	"unicode/utf16"

	"github.com/guided-traffic/meetup-client/models"
)

// Display glyphs
const (
	IconCalendar  = "📅"
	IconWriting   = "✍️"
	IconSpeech    = "💬"
	IconHandshake = "🤝"
	IconMedal     = "🏅"
)

// maxGlyphUnits is the longest server icon accepted as a glyph, in UTF-16
// code units
const maxGlyphUnits = 4

type keywordIcon struct {
	keywords []string
	icon     string
}

// Keyword table, matched in order against category, code, name and
// description
var keywordIcons = []keywordIcon{
	{keywords: []string{"streak", "attendance"}, icon: IconCalendar},
	{keywords: []string{"review"}, icon: IconWriting},
	{keywords: []string{"chat", "message"}, icon: IconSpeech},
	{keywords: []string{"participation", "meeting"}, icon: IconHandshake},
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".svg": true, ".webp": true, ".bmp": true, ".ico": true,
}

// ResolveIcon picks the glyph shown for a badge. A keyword match always
// wins, so badges of one semantic family look alike whatever icon the
// server stored. Otherwise a short server glyph is used, and the medal
// is the fallback.
func ResolveIcon(b models.UserBadge) string {
	text := strings.ToLower(strings.Join([]string{
		string(b.Category), b.BadgeCode, b.Name, b.Description,
	}, " "))
	for _, k := range keywordIcons {
		for _, kw := range k.keywords {
			if strings.Contains(text, kw) {
				return k.icon
			}
		}
	}

	if icon := strings.TrimSpace(b.Icon); isGlyph(icon) {
		return icon
	}
	return IconMedal
}

// isGlyph accepts emoji-like icons and rejects asset references
func isGlyph(s string) bool {
	if s == "" {
		return false
	}
	if strings.ContainsAny(s, `/\`) {
		return false
	}
	if imageExtensions[strings.ToLower(path.Ext(s))] {
		return false
	}
	if isDigits(s) {
		return false
	}
	return len(utf16.Encode([]rune(s))) <= maxGlyphUnits
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
