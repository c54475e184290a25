// Package css rewrites stylesheets so that every url() and @import target is
// embedded as a data URL.
package css

import (
	"context"
	"net/url"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/css/scanner"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/monolith/internal/policy"
	"github.com/GriffinCanCode/monolith/internal/retrieve"
	"github.com/GriffinCanCode/monolith/internal/urls"
)

// errUnclosedString is the scanner's error value for a string cut by a newline
const errUnclosedString = "unclosed quotation mark"

var imageProps = []string{
	// Universal
	"background",
	"background-image",
	"border-image",
	"border-image-source",
	"content",
	"cursor",
	"list-style",
	"list-style-image",
	"mask",
	"mask-image",
	// @counter-style descriptors
	"additive-symbols",
	"negative",
	"pad",
	"prefix",
	"suffix",
	"symbols",
}

// IsImageURLProp reports whether a url() under the named property loads an
// image.
func IsImageURLProp(name string) bool {
	return slices.ContainsFunc(imageProps, func(p string) bool {
		return strings.EqualFold(p, name)
	})
}

// Embed rewrites the stylesheet or declaration list css, located at base.
// Targets that cannot be retrieved keep their remote address when it is an
// http(s) URL and are dropped otherwise. Malformed input is dropped
// silently; Embed never fails.
func Embed(ctx context.Context, sess *retrieve.Session, base *url.URL, css string) string {
	r := &rewriter{
		ctx:    ctx,
		sess:   sess,
		policy: sess.Policy(),
		logger: sess.Logger(),
		base:   base,
	}
	if base != nil {
		r.chain = []string{urls.Key(base)}
	}
	sess.Metrics().IncStylesheets()
	return r.run(css)
}

type rewriter struct {
	ctx    context.Context
	sess   *retrieve.Session
	policy policy.Policy
	logger *zap.Logger

	base  *url.URL
	chain []string // stylesheets being embedded, outermost first

	input string // remaining input of sc
	sc    *scanner.Scanner
	done  bool
}

func (r *rewriter) run(css string) string {
	r.input = css
	r.sc = scanner.New(css)
	r.done = false

	out := r.block("", "", "", "")
	if strings.TrimSpace(out) == "" {
		return ""
	}
	return out
}

func (r *rewriter) next() *scanner.Token {
	if r.done {
		return &scanner.Token{Type: scanner.TokenEOF}
	}
	tok := r.sc.Next()
	if tok.Type == scanner.TokenError && tok.Value == errUnclosedString {
		return r.resume(tok)
	}
	if tok.Type == scanner.TokenEOF || tok.Type == scanner.TokenError {
		r.done = true
	}
	return tok
}

// resume drops an unterminated string up to the end of its line and
// continues scanning after it. An unclosed comment still ends the input.
func (r *rewriter) resume(bad *scanner.Token) *scanner.Token {
	rest := r.input[offset(r.input, bad.Line, bad.Column):]
	i := strings.IndexByte(rest, '\n')
	if i < 0 {
		r.done = true
		return &scanner.Token{Type: scanner.TokenEOF}
	}
	r.input = rest[i:]
	r.sc = scanner.New(r.input)
	return r.next()
}

// offset converts a scanner position (1-based line and column) of a quote
// into a byte offset of s. The scanner counts columns in runes, except
// after non-ASCII delimiters where it counts bytes.
func offset(s string, line, column int) int {
	start := 0
	for ; line > 1; line-- {
		i := strings.IndexByte(s[start:], '\n')
		if i < 0 {
			return len(s)
		}
		start += i + 1
	}

	pos := start
	for c := column; c > 1 && pos < len(s); c-- {
		_, w := utf8.DecodeRuneInString(s[pos:])
		pos += w
	}
	if pos < len(s) && isQuote(s[pos]) {
		return pos
	}
	if pos = start + column - 1; pos < len(s) && isQuote(s[pos]) {
		return pos
	}
	return min(pos, len(s))
}

func isQuote(c byte) bool {
	return c == '"' || c == '\''
}

// block re-emits tokens up to the closing delimiter (not included) or the
// end of input. rule, prop and fn are the enclosing at-rule, property and
// function names.
func (r *rewriter) block(closer, rule, prop, fn string) string {
	var b strings.Builder

	currRule, currProp := rule, prop
	ident := ""

	for {
		tok := r.next()

		switch tok.Type {
		case scanner.TokenEOF, scanner.TokenError:
			return b.String()

		case scanner.TokenBOM:

		case scanner.TokenChar:
			switch v := tok.Value; v {
			case closer:
				return b.String()
			case "(", "[", "{":
				end := closing(v)
				if r.skipsRule(currRule) {
					r.skip(end)
					currRule = ""
					continue
				}
				b.WriteString(v)
				b.WriteString(r.block(end, rule, currProp, fn))
				b.WriteString(end)
				if v == "{" {
					currProp, ident = "", ""
				}
			case ":":
				if ident != "" {
					currProp = ident
				}
				b.WriteString(v)
			case ";", "}":
				currProp, ident = "", ""
				b.WriteString(v)
			default:
				b.WriteString(v)
			}

		case scanner.TokenIdent:
			currRule = ""
			ident = tok.Value
			b.WriteString(tok.Value)

		case scanner.TokenAtKeyword:
			currRule = strings.ToLower(strings.TrimPrefix(tok.Value, "@"))
			if r.skipsRule(currRule) {
				continue
			}
			b.WriteString(tok.Value)

		case scanner.TokenHash:
			if len(tok.Value) > 1 && !isDigit(tok.Value[1]) {
				currRule = ""
			}
			b.WriteString(tok.Value)

		case scanner.TokenString:
			value := unquote(tok.Value)
			switch {
			case currRule == "import":
				currRule = ""
				if value == "" {
					b.WriteString(`""`)
					continue
				}
				if target, ok := r.importTarget(value); ok {
					b.WriteString(quote(target))
				}
			case fn == "url":
				if value == "" {
					continue
				}
				if strings.HasPrefix(value, "#") {
					b.WriteString(quote(value))
					continue
				}
				if target, ok := r.assetTarget(value, currProp); ok {
					b.WriteString(quote(target))
				}
			default:
				b.WriteString(quote(value))
			}

		case scanner.TokenURI:
			value := uriValue(tok.Value)
			isImport := currRule == "import"
			if isImport {
				currRule = ""
			}

			if value == "" {
				b.WriteString("url()")
				continue
			}
			if strings.HasPrefix(value, "#") {
				b.WriteString(tok.Value)
				continue
			}

			var target string
			var ok bool
			if isImport {
				target, ok = r.importTarget(value)
			} else {
				target, ok = r.assetTarget(value, currProp)
			}
			b.WriteString("url(")
			if ok {
				b.WriteString(quote(target))
			}
			b.WriteString(")")

		case scanner.TokenFunction:
			name := strings.TrimSuffix(tok.Value, "(")
			b.WriteString(tok.Value)
			b.WriteString(r.block(")", currRule, currProp, strings.ToLower(name)))
			b.WriteString(")")

		case scanner.TokenNumber:
			b.WriteString(formatNumber(tok.Value))
		case scanner.TokenPercentage:
			b.WriteString(formatNumber(strings.TrimSuffix(tok.Value, "%")))
			b.WriteString("%")
		case scanner.TokenDimension:
			n := numberPrefix(tok.Value)
			b.WriteString(formatNumber(tok.Value[:n]))
			b.WriteString(tok.Value[n:])

		default:
			// whitespace, comments, CDO/CDC, attribute matchers, unicode ranges
			b.WriteString(tok.Value)
		}
	}
}

// skip discards a block without emitting it
func (r *rewriter) skip(closer string) {
	for {
		tok := r.next()
		switch tok.Type {
		case scanner.TokenEOF, scanner.TokenError:
			return
		case scanner.TokenFunction:
			r.skip(")")
		case scanner.TokenChar:
			switch tok.Value {
			case closer:
				return
			case "(", "[", "{":
				r.skip(closing(tok.Value))
			}
		}
	}
}

func (r *rewriter) skipsRule(rule string) bool {
	return r.policy.NoFonts && rule == "font-face"
}

// assetTarget retrieves a url() reference and returns the inline replacement
func (r *rewriter) assetTarget(ref, prop string) (string, bool) {
	if r.policy.NoImages && IsImageURLProp(prop) {
		return urls.PlaceholderImage, true
	}

	resolved := urls.ResolveOrEmpty(r.base, ref)
	asset, err := r.sess.Retrieve(r.ctx, r.base, resolved)
	if err != nil {
		return r.fallback(resolved)
	}

	data := asset.Data
	if asset.IsCSS() {
		if nested, ok := r.nested(asset); ok {
			data = []byte(nested)
		}
	}
	return urls.WithFragment(asset.DataURLAs(asset.MediaType, data), urls.Fragment(resolved)), true
}

// importTarget retrieves an @import target and embeds it recursively
func (r *rewriter) importTarget(ref string) (string, bool) {
	resolved := urls.ResolveOrEmpty(r.base, ref)
	if slices.Contains(r.chain, urls.Key(resolved)) {
		r.logger.Warn(urls.Key(resolved) + " (circular import)")
		return r.fallback(resolved)
	}

	asset, err := r.sess.Retrieve(r.ctx, r.base, resolved)
	if err != nil {
		return r.fallback(resolved)
	}

	nested, ok := r.nested(asset)
	if !ok {
		return r.fallback(resolved)
	}

	mediaType := asset.MediaType
	if mediaType == "" {
		mediaType = "text/css"
	}
	return urls.WithFragment(asset.DataURLAs(mediaType, []byte(nested)), urls.Fragment(resolved)), true
}

// nested rewrites a retrieved stylesheet relative to its own address
func (r *rewriter) nested(asset *retrieve.Asset) (string, bool) {
	key := urls.Key(asset.URL)
	if slices.Contains(r.chain, key) {
		return "", false
	}

	child := &rewriter{
		ctx:    r.ctx,
		sess:   r.sess,
		policy: r.policy,
		logger: r.logger,
		base:   asset.URL,
		chain:  append(slices.Clone(r.chain), key),
	}
	r.sess.Metrics().IncStylesheets()
	return child.run(string(asset.Data)), true
}

// fallback keeps remote references and drops everything else
func (r *rewriter) fallback(u *url.URL) (string, bool) {
	if urls.IsHTTP(u) {
		return u.String(), true
	}
	return "", false
}

func closing(opener string) string {
	switch opener {
	case "(":
		return ")"
	case "[":
		return "]"
	default:
		return "}"
	}
}
