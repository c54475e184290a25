package css

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// unquote strips the quotes of a string token and resolves its escapes. An
// unterminated string loses only its opening quote.
func unquote(raw string) string {
	if raw == "" {
		return ""
	}
	q := raw[0]
	if q != '"' && q != '\'' {
		return unescape(raw)
	}
	s := raw[1:]
	if len(s) > 0 && s[len(s)-1] == q && !escaped(s, len(s)-1) {
		s = s[:len(s)-1]
	}
	return unescape(s)
}

// uriValue extracts the reference from a url(...) token
func uriValue(raw string) string {
	s := raw
	if i := strings.IndexByte(s, '('); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(s, ")")
	s = strings.TrimSpace(s)
	if s != "" && (s[0] == '"' || s[0] == '\'') {
		return unquote(s)
	}
	return unescape(s)
}

func escaped(s string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			break
		}
		switch c = s[i]; {
		case c == '\n':
			// line continuation
		case c == '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
		case isHex(c):
			j := i
			for j < len(s) && j-i < 6 && isHex(s[j]) {
				j++
			}
			code, _ := strconv.ParseUint(s[i:j], 16, 32)
			r := rune(code)
			if r == 0 || r > utf8.MaxRune || (r >= 0xD800 && r <= 0xDFFF) {
				r = utf8.RuneError
			}
			b.WriteRune(r)
			if j < len(s) && isSpace(s[j]) {
				if s[j] == '\r' && j+1 < len(s) && s[j+1] == '\n' {
					j++
				}
				j++
			}
			i = j - 1
		default:
			_, size := utf8.DecodeRuneInString(s[i:])
			b.WriteString(s[i : i+size])
			i += size - 1
		}
	}
	return b.String()
}

// quote serializes s as a double-quoted CSS string
func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == 0:
			b.WriteRune(utf8.RuneError)
		case r < 0x20 || r == 0x7f:
			b.WriteByte('\\')
			b.WriteString(strconv.FormatInt(int64(r), 16))
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// formatNumber writes a number the way it reads back: "1.50" becomes "1.5",
// ".5" becomes "0.5". Input that is not a number is kept as is.
func formatNumber(raw string) string {
	sign := ""
	if raw != "" && (raw[0] == '+' || raw[0] == '-') {
		sign, raw = raw[:1], raw[1:]
	}
	v, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		return sign + raw
	}
	return sign + strconv.FormatFloat(v, 'f', -1, 32)
}

// numberPrefix returns the length of the numeric part of a dimension
func numberPrefix(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	for i < len(s) && (isDigit(s[i]) || s[i] == '.') {
		i++
	}
	return i
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
