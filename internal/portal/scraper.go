package portal

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// locationAssignment matches a script-level redirect such as
// window.location="http://10.0.0.1:1000/fgtauth?abc" or location.href='...'.
// The quoted value must close on the same line.
var locationAssignment = regexp.MustCompile(
	`\b(?:(?:window|document|top|self)\.)?location(?:\.href)?\s*=\s*(?:"([^"\r\n]*)"|'([^'\r\n]*)')`,
)

// ExtractPortalURL returns the URL of the first location assignment in page,
// exactly as written
func ExtractPortalURL(page string) (string, bool) {
	if page == "" {
		return "", false
	}

	m := locationAssignment.FindStringSubmatch(page)
	if m == nil {
		return "", false
	}

	url := m[1]
	if url == "" {
		url = m[2]
	}
	if url == "" {
		return "", false
	}
	return url, true
}

// ExtractMagicValue returns the value attribute of the first input element
// named exactly "magic". An empty value is reported as not found.
func ExtractMagicValue(page string) (string, bool) {
	if page == "" {
		return "", false
	}

	z := html.NewTokenizer(strings.NewReader(page))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return "", false
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "input" || !hasAttr {
				continue
			}
			if value, ok := magicAttr(z); ok {
				return value, value != ""
			}
		}
	}
}

// magicAttr scans the attributes of the current tag. ok is true when the
// tag is named "magic"; value is empty when it carries no value attribute.
func magicAttr(z *html.Tokenizer) (value string, ok bool) {
	for {
		key, val, more := z.TagAttr()
		switch string(key) {
		case "name":
			ok = string(val) == "magic"
		case "value":
			value = string(val)
		}
		if !more {
			return value, ok
		}
	}
}
