package pdfmark

import (
	"strings"
	"time"
)

// Info contains the document information dictionary of a PDF.
type Info struct {
	Title        string    `json:"title"`
	Author       string    `json:"author"`
	Subject      string    `json:"subject"`
	Creator      string    `json:"creator"`
	Producer     string    `json:"producer"`
	Keywords     []string  `json:"keywords"`
	CreationDate time.Time `json:"creation_date"`
	ModDate      time.Time `json:"mod_date"`
	Pages        int       `json:"pages"`
}

// Info returns the document information of d.
func (d *Document) Info() Info {
	v := d.rdr.Trailer().Key("Info")
	info := Info{
		Title:    v.Key("Title").Text(),
		Author:   v.Key("Author").Text(),
		Subject:  v.Key("Subject").Text(),
		Creator:  v.Key("Creator").Text(),
		Producer: v.Key("Producer").Text(),
		Pages:    d.NumPage(),
	}
	if kw := v.Key("Keywords"); !kw.IsNull() {
		info.Keywords = ParseKeywords(kw.Text())
	}
	info.CreationDate, _ = ParseDate(v.Key("CreationDate").Text())
	info.ModDate, _ = ParseDate(v.Key("ModDate").Text())
	return info
}

// ParseDate parses a PDF date string (D:YYYYMMDDHHmmSSOHH'mm'). Dates with
// fewer components are accepted.
func ParseDate(v string) (time.Time, error) {
	layouts := []string{
		"D:20060102150405Z07'00'",
		"D:20060102150405Z07'00",
		"D:20060102150405Z",
		"D:20060102150405",
		"D:200601021504",
		"D:20060102",
	}
	var err error
	for _, layout := range layouts {
		var t time.Time
		if t, err = time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// ParseKeywords splits a keywords entry. Keywords may be separated by
// commas, semicolons or spaces.
func ParseKeywords(value string) []string {
	sep := func(r rune) bool {
		return r == ',' || r == ';'
	}
	if !strings.ContainsAny(value, ",;") {
		sep = func(r rune) bool { return r == ' ' }
	}
	var out []string
	for _, kw := range strings.FieldsFunc(value, sep) {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
