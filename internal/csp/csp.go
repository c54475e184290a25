package csp

import (
	"strings"

	"github.com/GriffinCanCode/monolith/internal/policy"
)

// Directives in the order they are emitted.
const (
	Isolate  = "default-src 'unsafe-inline' data:;"
	NoCSS    = "style-src 'none';"
	NoFonts  = "font-src 'none';"
	NoFrames = "frame-src 'none'; child-src 'none';"
	NoJS     = "script-src 'none';"
	NoImages = "img-src data:;"
)

// Compose builds the Content-Security-Policy value for p. It returns "" when
// no directive applies.
func Compose(p policy.Policy) string {
	directives := make([]string, 0, 6)

	if p.Isolate {
		directives = append(directives, Isolate)
	}
	if p.NoCSS {
		directives = append(directives, NoCSS)
	}
	if p.NoFonts {
		directives = append(directives, NoFonts)
	}
	if p.NoFrames {
		directives = append(directives, NoFrames)
	}
	if p.NoJS {
		directives = append(directives, NoJS)
	}
	if p.NoImages {
		directives = append(directives, NoImages)
	}

	return strings.Join(directives, " ")
}
