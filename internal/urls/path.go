package urls

import (
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
)

// PercentDecode unescapes s. A literal "+" is kept as is rather than turned
// into a space, and invalid escapes leave s untouched.
func PercentDecode(s string) string {
	v, err := url.QueryUnescape(strings.ReplaceAll(s, "+", "%2B"))
	if err != nil {
		return s
	}
	return v
}

// FileURLToPath converts a file URL into a local filesystem path.
func FileURLToPath(u *url.URL) (string, error) {
	if Classify(u) != SchemeFile {
		return "", fmt.Errorf("%w: %s is not a file URL", ErrResolution, u.Redacted())
	}

	p := u.Path
	if p == "" {
		p = PercentDecode(u.Opaque)
	}
	if runtime.GOOS == "windows" {
		// file:///C:/dir/file has Path "/C:/dir/file"
		if len(p) >= 3 && p[0] == '/' && p[2] == ':' {
			p = p[1:]
		}
		if u.Host != "" && u.Host != "localhost" {
			p = `\\` + u.Host + filepath.FromSlash(p)
		}
	}
	return filepath.FromSlash(p), nil
}

// FromPath builds a file URL from an absolute filesystem path.
func FromPath(path string) (*url.URL, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	slashed := filepath.ToSlash(abs)
	if !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}
	return &url.URL{Scheme: "file", Path: slashed}, nil
}
