package urls

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/GriffinCanCode/monolith/internal/media"
)

// ErrMalformedDataURL is returned when a base64 data URL payload does not decode.
var ErrMalformedDataURL = errors.New("malformed data URL")

// PlaceholderImage is a 13x13 transparent PNG used when images are suppressed.
const PlaceholderImage = "data:image/png;base64," +
	"iVBORw0KGgoAAAANSUhEUgAAAA0AAAANCAQAAADY4iz3AAAAEUlEQVR42mNkwAkYR6UolgIACvgADsuK6xYAAAAASUVORK5CYII="

// CreateDataURL encodes data as a base64 data URL. The charset parameter is
// only written when it carries information beyond the US-ASCII default.
func CreateDataURL(mediaType, charset string, data []byte) string {
	var b strings.Builder
	b.Grow(len("data:;charset=;base64,") + len(mediaType) + len(charset) + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString("data:")
	b.WriteString(mediaType)
	if cs := strings.TrimSpace(charset); cs != "" && !strings.EqualFold(cs, "US-ASCII") {
		b.WriteString(";charset=")
		b.WriteString(cs)
	}
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}

// ParseDataURL decodes the payload of a data URL. Media type and charset
// default to text/plain and US-ASCII.
func ParseDataURL(u *url.URL) (mediaType, charset string, data []byte, err error) {
	raw := u.Opaque
	if raw == "" {
		raw = u.EscapedPath()
	}
	if u.ForceQuery || u.RawQuery != "" {
		raw += "?" + u.RawQuery
	}

	meta, payload, _ := strings.Cut(raw, ",")
	mediaType, charset, isBase64 := media.ParseContentType(meta)

	text := PercentDecode(payload)
	if !isBase64 {
		return mediaType, charset, []byte(text), nil
	}

	text = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n', '\f':
			return -1
		}
		return r
	}, text)

	data, err = base64.StdEncoding.DecodeString(text)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(text, "="))
	}
	if err != nil {
		return mediaType, charset, nil, fmt.Errorf("%w: %v", ErrMalformedDataURL, err)
	}
	return mediaType, charset, data, nil
}
