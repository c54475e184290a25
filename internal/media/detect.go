package media

import (
	"net/url"
	"path"
	"strings"
)

// signature pairs a byte prefix with its media type. A '.' in the prefix
// matches any byte.
type signature struct {
	prefix    string
	mediaType string
}

var signatures = []signature{
	// image
	{"GIF87a", "image/gif"},
	{"GIF89a", "image/gif"},
	{"\xFF\xD8\xFF", "image/jpeg"},
	{"\x89PNG\x0D\x0A\x1A\x0A", "image/png"},
	{"<?xml ", "image/svg+xml"},
	{"<svg ", "image/svg+xml"},
	{"RIFF....WEBPVP8 ", "image/webp"},
	{"\x00\x00\x01\x00", "image/x-icon"},
	// audio
	{"ID3", "audio/mpeg"},
	{"\xFF\x0E", "audio/mpeg"},
	{"\xFF\x0F", "audio/mpeg"},
	{"OggS", "audio/ogg"},
	{"RIFF....WAVEfmt ", "audio/wav"},
	{"fLaC", "audio/x-flac"},
	// video
	{"RIFF....AVI LIST", "video/avi"},
	{"....ftyp", "video/mp4"},
	{"\x00\x00\x01\x0B", "video/mpeg"},
	{"....moov", "video/quicktime"},
	{"\x1A\x45\xDF\xA3", "video/webm"},
}

var extensions = map[string]string{
	"avi":    "video/avi",
	"bmp":    "image/bmp",
	"css":    "text/css",
	"flac":   "audio/flac",
	"gif":    "image/gif",
	"htm":    "text/html",
	"html":   "text/html",
	"ico":    "image/x-icon",
	"jpeg":   "image/jpeg",
	"jpg":    "image/jpeg",
	"js":     "text/javascript",
	"json":   "application/json",
	"jsonld": "application/ld+json",
	"mp3":    "audio/mpeg",
	"mp4":    "video/mp4",
	"m4v":    "video/mp4",
	"ogg":    "audio/ogg",
	"ogv":    "video/ogg",
	"pdf":    "application/pdf",
	"png":    "image/png",
	"svg":    "image/svg+xml",
	"swf":    "application/x-shockwave-flash",
	"tif":    "image/tiff",
	"tiff":   "image/tiff",
	"txt":    "text/plain",
	"wav":    "audio/wav",
	"webp":   "image/webp",
	"woff":   "font/woff",
	"woff2":  "font/woff2",
	"xhtml":  "application/xhtml+xml",
	"xml":    "text/xml",
}

// Detect guesses the media type of data, first from its leading bytes and
// then from the extension of the last path segment of u. It returns "" when
// neither yields anything.
func Detect(data []byte, u *url.URL) string {
	for _, sig := range signatures {
		if hasPrefix(data, sig.prefix) {
			return sig.mediaType
		}
	}
	if u == nil {
		return ""
	}
	return DetectByFileName(path.Base(u.Path))
}

// DetectByFileName maps a file name's extension onto a media type.
func DetectByFileName(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return extensions[strings.ToLower(name[i+1:])]
}

func hasPrefix(data []byte, prefix string) bool {
	if len(data) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		if prefix[i] != '.' && prefix[i] != data[i] {
			return false
		}
	}
	return true
}
