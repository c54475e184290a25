package dom

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/GriffinCanCode/monolith/internal/urls"
)

// DefaultCharset is reported for documents nothing declares a charset for
const DefaultCharset = "UTF-8"

// minSniffConfidence is the lowest chardet confidence acted upon
const minSniffConfidence = 30

// Load parses a document and settles its charset. A valid charset hint
// from the transport wins; otherwise the first in-document declaration is
// used; otherwise, for bytes that are not UTF-8, the charset is sniffed.
// When the winner differs from what the document declares, the
// declaration is rewritten so the serialized output stays consistent.
//
// Whitespace trailing the body, such as the newline ending a previously
// saved document, is dropped.
func Load(data []byte, hint string) (*html.Node, string, error) {
	doc, cs, err := load(data, hint)
	if err != nil {
		return nil, "", err
	}
	trimTrailingSpace(doc)
	return doc, cs, nil
}

func load(data []byte, hint string) (*html.Node, string, error) {
	if authoritative(hint) {
		doc, err := ParseHTML(data, hint)
		if err != nil {
			return nil, "", err
		}
		if declared, ok := GetCharset(doc); ok && !sameCharset(declared, hint) {
			SetCharset(doc, hint)
		}
		return doc, hint, nil
	}

	doc, err := ParseHTML(data, "")
	if err != nil {
		return nil, "", err
	}

	if declared, ok := GetCharset(doc); ok && ValidCharset(declared) {
		if isUTF8(declared) {
			return doc, declared, nil
		}
		if doc, err = ParseHTML(data, declared); err != nil {
			return nil, "", err
		}
		return doc, declared, nil
	}

	if !utf8.Valid(data) {
		if sniffed := sniffCharset(data); sniffed != "" && !isUTF8(sniffed) {
			if doc, err = ParseHTML(data, sniffed); err != nil {
				return nil, "", err
			}
			SetCharset(doc, sniffed)
			return doc, sniffed, nil
		}
	}

	return doc, DefaultCharset, nil
}

func trimTrailingSpace(doc *html.Node) {
	body := find(doc, "body").First()
	if body.Length() == 0 {
		return
	}
	n := body.Get(0)
	for c := n.LastChild; c != nil && c.Type == html.TextNode && strings.TrimSpace(c.Data) == ""; c = n.LastChild {
		n.RemoveChild(c)
	}
}

// authoritative reports whether a transport charset hint should override
// the document. US-ASCII is what a missing charset parameter defaults to,
// so it does not count.
func authoritative(hint string) bool {
	hint = strings.TrimSpace(hint)
	return hint != "" && !strings.EqualFold(hint, "us-ascii") && ValidCharset(hint)
}

func sameCharset(a, b string) bool {
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return true
	}
	_, na := charset.Lookup(strings.TrimSpace(a))
	_, nb := charset.Lookup(strings.TrimSpace(b))
	return na != "" && na == nb
}

func sniffCharset(data []byte) string {
	res, err := chardet.NewHtmlDetector().DetectBest(data)
	if err != nil || res == nil || res.Confidence < minSniffConfidence {
		return ""
	}
	if !ValidCharset(res.Charset) {
		return ""
	}
	return res.Charset
}

// BaseURL is the URL references in doc resolve against: the document's
// own base element, resolved against documentURL, or documentURL itself.
func BaseURL(doc *html.Node, documentURL *url.URL) *url.URL {
	href, ok := GetBaseURL(doc)
	if !ok || strings.TrimSpace(href) == "" {
		return documentURL
	}
	u, err := urls.Resolve(documentURL, href)
	if err != nil {
		return documentURL
	}
	return u
}

// Render is Serialize into a string, for diagnostics and tests
func Render(doc *html.Node) string {
	out, err := Serialize(doc, "")
	if err != nil {
		return fmt.Sprintf("<!-- %v -->", err)
	}
	return string(out)
}
