package render

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// TemplateContext holds the signer record that the text of a digital marker
// refers to with {{Name}}, {{Number}}, {{Initials}}, {{Date}},
// {{DateTime}}, {{Reason}} and {{Location}}. Unknown variables are kept.
type TemplateContext struct {
	Name     string
	Number   string
	Date     time.Time // Zero means now
	Reason   string
	Location string
}

// Expand substitutes the variables of text.
func (c TemplateContext) Expand(text string) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	date := c.Date
	if date.IsZero() {
		date = time.Now()
	}
	return strings.NewReplacer(
		"{{Name}}", c.Name,
		"{{Number}}", c.Number,
		"{{Initials}}", Initials(c.Name),
		"{{DateTime}}", date.Format("2006-01-02 15:04:05"),
		"{{Date}}", date.Format("2006-01-02"),
		"{{Reason}}", c.Reason,
		"{{Location}}", c.Location,
	).Replace(text)
}

// Initials returns the upper-cased first letter of every word of name.
func Initials(name string) string {
	var b strings.Builder
	for _, word := range strings.Fields(name) {
		r, _ := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
