package retrieve

import (
	"net/url"

	"github.com/GriffinCanCode/monolith/internal/media"
	"github.com/GriffinCanCode/monolith/internal/urls"
)

// Asset is the result of one retrieval. Data may be shared with the cache
// and must not be modified.
type Asset struct {
	Data      []byte
	URL       *url.URL // final URL, after redirects
	MediaType string
	Charset   string
}

// DataURL encodes the asset inline. A missing media type is detected from
// the payload and URL.
func (a *Asset) DataURL() string {
	return a.DataURLAs(a.MediaType, a.Data)
}

// DataURLAs encodes data, typically a rewritten version of the payload.
// The asset's charset is carried only for textual media types.
func (a *Asset) DataURLAs(mediaType string, data []byte) string {
	if mediaType == "" {
		mediaType = media.Detect(a.Data, a.URL)
	}
	charset := a.Charset
	if !media.IsPlaintext(mediaType) {
		charset = ""
	}
	return urls.CreateDataURL(mediaType, charset, data)
}

// IsCSS reports whether the payload is a stylesheet
func (a *Asset) IsCSS() bool {
	return media.IsCSS(a.MediaType)
}

// IsHTML reports whether the payload is a markup document
func (a *Asset) IsHTML() bool {
	return media.IsHTML(a.MediaType)
}
