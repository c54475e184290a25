package cookies

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidHeader = errors.New("cookie file must start with \"# HTTP Cookie File\" or \"# Netscape HTTP Cookie File\"")

// Cookie is a single entry of a Netscape cookie jar.
type Cookie struct {
	Domain            string
	IncludeSubdomains bool
	Path              string
	HTTPSOnly         bool
	Expires           int64 // epoch seconds, 0 for session cookies
	Name              string
	Value             string
}

// IsExpired reports whether the cookie expired before now. Session cookies never expire.
func (c Cookie) IsExpired(now time.Time) bool {
	if c.Expires == 0 {
		return false
	}
	return c.Expires < now.Unix()
}

// MatchesURL reports whether the cookie should be sent along with a request to u.
func (c Cookie) MatchesURL(u *url.URL) bool {
	switch strings.ToLower(u.Scheme) {
	case "http":
		if c.HTTPSOnly {
			return false
		}
	case "https":
	default:
		return false
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	domain := strings.ToLower(c.Domain)
	if strings.HasPrefix(domain, ".") && c.IncludeSubdomains {
		if !strings.HasSuffix(host, domain) && host != domain[1:] {
			return false
		}
	} else if host != domain {
		return false
	}

	p := u.Path
	if p == "" {
		p = "/"
	}
	return strings.EqualFold(p, c.Path) || strings.HasPrefix(p, c.Path)
}

// Header joins every unexpired cookie matching u into a Cookie header value.
func Header(jar []Cookie, u *url.URL, now time.Time) string {
	var pairs []string
	for _, c := range jar {
		if !c.IsExpired(now) && c.MatchesURL(u) {
			pairs = append(pairs, c.Name+"="+c.Value)
		}
	}
	return strings.Join(pairs, "; ")
}

// Parse reads a Netscape-format cookie file. Lines that do not hold exactly
// seven tab-separated fields are skipped.
func Parse(r io.Reader) ([]Cookie, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var jar []Cookie
	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if first {
			first = false
			if line != "# HTTP Cookie File" && line != "# Netscape HTTP Cookie File" {
				return nil, ErrInvalidHeader
			}
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			continue
		}
		expires, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			continue
		}
		jar = append(jar, Cookie{
			Domain:            strings.ToLower(fields[0]),
			IncludeSubdomains: fields[1] == "TRUE",
			Path:              fields[2],
			HTTPSOnly:         fields[3] == "TRUE",
			Expires:           expires,
			Name:              fields[5],
			Value:             fields[6],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}
	if first {
		return nil, ErrInvalidHeader
	}
	return jar, nil
}
