package urls

import "strings"

// DomainIsWithin reports whether domain falls inside within.
//
// Labels are compared right to left, ignoring case. "." matches everything,
// a leading dot matches the domain itself and all of its subdomains, and a
// bare name only matches exactly.
func DomainIsWithin(domain, within string) bool {
	if within == "" {
		return false
	}
	if within == "." {
		return true
	}

	wildcard := strings.HasPrefix(within, ".")
	d := labels(domain)
	w := labels(strings.TrimPrefix(within, "."))

	if len(w) > len(d) || (!wildcard && len(w) != len(d)) {
		return false
	}
	for i := 1; i <= len(w); i++ {
		if d[len(d)-i] != w[len(w)-i] {
			return false
		}
	}
	return true
}

// MatchesAny reports whether domain is within any entry of list.
func MatchesAny(domain string, list []string) bool {
	for _, entry := range list {
		if DomainIsWithin(domain, strings.TrimSpace(entry)) {
			return true
		}
	}
	return false
}

func labels(domain string) []string {
	return strings.Split(strings.ToLower(strings.TrimSuffix(domain, ".")), ".")
}
