package media

import "strings"

const (
	DefaultMediaType = "text/plain"
	DefaultCharset   = "US-ASCII"
)

// plaintext lists the non-"text/" media types that are still text.
var plaintext = map[string]bool{
	"application/javascript":          true,
	"application/json":                true,
	"application/ld+json":             true,
	"application/x-sh":                true,
	"application/xhtml+xml":           true,
	"application/xml":                 true,
	"application/vnd.mozilla.xul+xml": true,
	"image/svg+xml":                   true,
}

// ParseContentType splits a Content-Type value (or the metadata part of a
// data URL) into media type, charset and base64 flag. Missing parts default
// to text/plain and US-ASCII.
func ParseContentType(s string) (mediaType, charset string, isBase64 bool) {
	mediaType = DefaultMediaType
	charset = DefaultCharset

	for i, item := range strings.Split(s, ";") {
		item = strings.TrimSpace(item)
		switch {
		case i == 0:
			if item != "" {
				mediaType = item
			}
		case strings.EqualFold(item, "base64"):
			isBase64 = true
		case len(item) > len("charset=") && strings.EqualFold(item[:len("charset=")], "charset="):
			charset = strings.Trim(item[len("charset="):], `"'`)
		}
	}
	return mediaType, charset, isBase64
}

// IsPlaintext reports whether mediaType describes textual content.
func IsPlaintext(mediaType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	return strings.HasPrefix(mt, "text/") || plaintext[mt]
}

// IsHTML reports whether mediaType is one of the HTML document types.
func IsHTML(mediaType string) bool {
	return strings.EqualFold(mediaType, "text/html") || strings.EqualFold(mediaType, "application/xhtml+xml")
}

// IsCSS reports whether mediaType is a stylesheet
func IsCSS(mediaType string) bool {
	return strings.EqualFold(strings.TrimSpace(mediaType), "text/css")
}
