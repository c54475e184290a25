package urls

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrResolution is returned when a reference cannot be joined onto its base.
var ErrResolution = errors.New("unresolvable reference")

// EmptyDataURL is the no-op inline reference substituted for anything that failed to resolve.
const EmptyDataURL = "data:,"

// Scheme classifies a URL by how its payload is obtained
type Scheme int

const (
	SchemeOther Scheme = iota
	SchemeData
	SchemeFile
	SchemeHTTP
	SchemeHTTPS
)

// String returns the string representation of the scheme
func (s Scheme) String() string {
	switch s {
	case SchemeData:
		return "data"
	case SchemeFile:
		return "file"
	case SchemeHTTP:
		return "http"
	case SchemeHTTPS:
		return "https"
	default:
		return "other"
	}
}

// Classify maps a URL onto one of the known schemes, ignoring case.
func Classify(u *url.URL) Scheme {
	if u == nil {
		return SchemeOther
	}
	switch strings.ToLower(u.Scheme) {
	case "data":
		return SchemeData
	case "file":
		return SchemeFile
	case "http":
		return SchemeHTTP
	case "https":
		return SchemeHTTPS
	default:
		return SchemeOther
	}
}

// IsHTTP reports whether u is an http or https URL
func IsHTTP(u *url.URL) bool {
	s := Classify(u)
	return s == SchemeHTTP || s == SchemeHTTPS
}

// Parse parses an absolute URL after trimming the whitespace browsers ignore.
func Parse(raw string) (*url.URL, error) {
	u, err := url.Parse(trimReference(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolution, err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("%w: %q has no scheme", ErrResolution, raw)
	}
	return u, nil
}

// Resolve turns ref into an absolute URL. A reference that already carries a
// scheme is returned as is; anything else is joined onto base.
func Resolve(base *url.URL, ref string) (*url.URL, error) {
	ref = trimReference(ref)

	if u, err := url.Parse(ref); err == nil && u.Scheme != "" {
		return u, nil
	}

	if base == nil {
		return nil, fmt.Errorf("%w: no base for %q", ErrResolution, ref)
	}
	if base.Opaque != "" {
		return nil, fmt.Errorf("%w: cannot join %q onto %s URL", ErrResolution, ref, base.Scheme)
	}

	if Classify(base) != SchemeOther {
		ref = strings.ReplaceAll(ref, `\`, "/")
	}

	r, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolution, err)
	}
	return base.ResolveReference(r), nil
}

// ResolveOrEmpty is Resolve with the EmptyDataURL placeholder in place of
// an error.
func ResolveOrEmpty(base *url.URL, ref string) *url.URL {
	u, err := Resolve(base, ref)
	if err != nil {
		return &url.URL{Scheme: "data", Opaque: ","}
	}
	return u
}

// Clean strips the fragment. A bare trailing "?" survives.
func Clean(u *url.URL) *url.URL {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return &c
}

// Key returns the cache key for u.
func Key(u *url.URL) string {
	return Clean(u).String()
}

// Referer strips the fragment and any credentials.
func Referer(u *url.URL) *url.URL {
	c := Clean(u)
	c.User = nil
	return c
}

// Fragment returns the escaped fragment of u, or "" when there is none.
func Fragment(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.EscapedFragment()
}

// WithFragment re-appends a fragment to an inline reference.
func WithFragment(s, fragment string) string {
	if fragment == "" {
		return s
	}
	return s + "#" + fragment
}

// IsAbsolute reports whether s parses as a URL with a scheme
func IsAbsolute(s string) bool {
	u, err := url.Parse(trimReference(s))
	return err == nil && u.Scheme != ""
}

// trimReference drops surrounding whitespace and embedded tabs or newlines.
func trimReference(s string) string {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "\t\r\n") {
		s = strings.Map(func(r rune) rune {
			switch r {
			case '\t', '\r', '\n':
				return -1
			}
			return r
		}, s)
	}
	return s
}
