package media

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Sniff inspects content the way a browser would and returns the bare media
// type, without parameters.
func Sniff(data []byte) string {
	mt, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")
	return strings.TrimSpace(mt)
}
