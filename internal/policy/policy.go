package policy

import (
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/GriffinCanCode/monolith/internal/cookies"
	"github.com/GriffinCanCode/monolith/internal/urls"
)

const (
	DefaultTimeout   = 60 * time.Second
	MaxTimeout       = 600 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:135.0) Gecko/20100101 Firefox/135.0"
)

// Format selects how the finished document is wrapped
type Format int

const (
	FormatHTML Format = iota
	FormatMHTML
)

// String returns the string representation of the format
func (f Format) String() string {
	switch f {
	case FormatMHTML:
		return "mhtml"
	default:
		return "html"
	}
}

// ParseFormat maps "html" or "mhtml" (any case) onto a Format.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "html", "htm":
		return FormatHTML, true
	case "mhtml", "mht":
		return FormatMHTML, true
	default:
		return FormatHTML, false
	}
}

// Policy is the set of toggles for one conversion. It is built once and
// only ever passed by value afterwards.
type Policy struct {
	NoAudio    bool
	NoVideo    bool
	NoImages   bool
	NoCSS      bool
	NoFonts    bool
	NoFrames   bool
	NoJS       bool
	NoMetadata bool

	Isolate        bool
	UnwrapNoscript bool
	IgnoreErrors   bool
	Insecure       bool
	Silent         bool

	Domains          []string
	BlacklistDomains bool

	BaseURL   string
	Encoding  string
	Timeout   time.Duration
	UserAgent string
	Cookies   []cookies.Cookie
	Format    Format
}

// Default returns a policy that embeds everything.
func Default() Policy {
	return Policy{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
	}
}

// Clone returns a copy that shares no slices with p.
func (p Policy) Clone() Policy {
	p.Domains = slices.Clone(p.Domains)
	p.Cookies = slices.Clone(p.Cookies)
	return p
}

// RequestTimeout is the per-request timeout; zero means the upper bound.
func (p Policy) RequestTimeout() time.Duration {
	if p.Timeout <= 0 {
		return MaxTimeout
	}
	return p.Timeout
}

// AllowsHost applies the domain allow or deny list to host.
func (p Policy) AllowsHost(host string) bool {
	if p.Domains == nil {
		return true
	}
	matched := urls.MatchesAny(host, p.Domains)
	if p.BlacklistDomains {
		return !matched
	}
	return matched
}

// AllowsURL is AllowsHost for the host of u
func (p Policy) AllowsURL(u *url.URL) bool {
	return p.AllowsHost(u.Hostname())
}
