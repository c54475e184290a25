package dom

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/monolith/internal/urls"
)

// LinkType is a set of link relations, as listed in a rel attribute
type LinkType uint8

const (
	LinkAlternate LinkType = 1 << iota
	LinkAppleTouchIcon
	LinkDNSPrefetch
	LinkFavicon
	LinkPreload
	LinkPrefetch
	LinkStylesheet
)

// Has reports whether every relation in o is in t
func (t LinkType) Has(o LinkType) bool {
	return o != 0 && t&o == o
}

// ParseLinkType reads a rel attribute. Unknown relations are ignored.
func ParseLinkType(rel string) LinkType {
	var t LinkType
	for _, token := range strings.Fields(strings.ToLower(rel)) {
		switch token {
		case "alternate":
			t |= LinkAlternate
		case "apple-touch-icon":
			t |= LinkAppleTouchIcon
		case "dns-prefetch", "preconnect":
			t |= LinkDNSPrefetch
		case "icon":
			t |= LinkFavicon
		case "preload", "modulepreload":
			t |= LinkPreload
		case "prefetch":
			t |= LinkPrefetch
		case "stylesheet":
			t |= LinkStylesheet
		}
	}
	return t
}

// IsFavicon reports whether rel marks a favicon link ("icon",
// "shortcut icon", any case).
func IsFavicon(rel string) bool {
	return ParseLinkType(rel).Has(LinkFavicon)
}

var titlePolicy = bluemonday.StrictPolicy()

func find(doc *html.Node, selector string) *goquery.Selection {
	return goquery.NewDocumentFromNode(doc).Find(selector)
}

// head returns the document's head element, creating one if the tree has
// an html element without it.
func head(doc *html.Node) *goquery.Selection {
	if h := find(doc, "head").First(); h.Length() > 0 {
		return h
	}
	root := find(doc, "html").First()
	if root.Length() == 0 {
		return root
	}
	root.PrependNodes(element("head"))
	return root.Find("head").First()
}

// GetCharset returns the charset declared by the first meta charset or
// meta http-equiv="Content-Type" element, in document order.
func GetCharset(doc *html.Node) (string, bool) {
	for _, n := range htmlquery.Find(doc, "//meta[@charset or @http-equiv]") {
		if v, ok := getAttr(n, "charset"); ok {
			return strings.TrimSpace(v), true
		}
		if !strings.EqualFold(strings.TrimSpace(attrOr(n, "http-equiv", "")), "content-type") {
			continue
		}
		if cs, ok := contentCharset(attrOr(n, "content", "")); ok {
			return cs, true
		}
	}
	return "", false
}

// SetCharset rewrites every charset declaration to name, adding a meta
// charset element when the document has none.
func SetCharset(doc *html.Node, name string) {
	found := false
	for _, n := range htmlquery.Find(doc, "//meta[@charset or @http-equiv]") {
		if _, ok := getAttr(n, "charset"); ok {
			setAttr(n, "charset", name)
			found = true
			continue
		}
		if strings.EqualFold(strings.TrimSpace(attrOr(n, "http-equiv", "")), "content-type") {
			setAttr(n, "content", "text/html; charset="+name)
			found = true
		}
	}
	if !found {
		head(doc).PrependNodes(element("meta", html.Attribute{Key: "charset", Val: name}))
	}
}

func contentCharset(content string) (string, bool) {
	for _, part := range strings.Split(content, ";") {
		part = strings.TrimSpace(part)
		if len(part) > 8 && strings.EqualFold(part[:8], "charset=") {
			return strings.Trim(part[8:], `"' `), true
		}
	}
	return "", false
}

// GetBaseURL returns the href of the first base element that has one
func GetBaseURL(doc *html.Node) (string, bool) {
	return find(doc, "base[href]").First().Attr("href")
}

// SetBaseURL points the first base element at href, adding one when the
// document has none.
func SetBaseURL(doc *html.Node, href string) {
	if base := find(doc, "base").First(); base.Length() > 0 {
		base.SetAttr("href", href)
		return
	}
	head(doc).PrependNodes(element("base", html.Attribute{Key: "href", Val: href}))
}

// HasFavicon reports whether the document links a favicon
func HasFavicon(doc *html.Node) bool {
	return find(doc, "link[rel]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return IsFavicon(s.AttrOr("rel", ""))
	}).Length() > 0
}

// AddFavicon appends a favicon link with the given href to the head
func AddFavicon(doc *html.Node, href string) {
	head(doc).AppendNodes(element("link",
		html.Attribute{Key: "rel", Val: "icon"},
		html.Attribute{Key: "href", Val: href},
	))
}

func robots(doc *html.Node) *goquery.Selection {
	return find(doc, "meta[name]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.EqualFold(strings.TrimSpace(s.AttrOr("name", "")), "robots")
	})
}

// GetRobots returns the content of the first meta robots element
func GetRobots(doc *html.Node) (string, bool) {
	return robots(doc).First().Attr("content")
}

// SetRobots sets the content of every meta robots element, adding one when
// the document has none.
func SetRobots(doc *html.Node, content string) {
	if sel := robots(doc); sel.Length() > 0 {
		sel.SetAttr("content", content)
		return
	}
	head(doc).AppendNodes(element("meta",
		html.Attribute{Key: "name", Val: "robots"},
		html.Attribute{Key: "content", Val: content},
	))
}

// GetTitle returns the text of the first title element with any markup
// removed and whitespace collapsed.
func GetTitle(doc *html.Node) (string, bool) {
	title := find(doc, "title").First()
	if title.Length() == 0 {
		return "", false
	}
	text := html.UnescapeString(titlePolicy.Sanitize(title.Text()))
	return strings.Join(strings.Fields(text), " "), true
}

// AddCSP inserts a Content-Security-Policy meta element as the first child
// of the head. An empty policy, or the same policy already in that place,
// adds nothing.
func AddCSP(doc *html.Node, policy string) {
	if policy == "" {
		return
	}
	h := head(doc)
	if first := h.Children().First(); goquery.NodeName(first) == "meta" &&
		strings.EqualFold(first.AttrOr("http-equiv", ""), "Content-Security-Policy") &&
		first.AttrOr("content", "") == policy {
		return
	}
	h.PrependNodes(element("meta",
		html.Attribute{Key: "http-equiv", Val: "Content-Security-Policy"},
		html.Attribute{Key: "content", Val: policy},
	))
}

// MetadataComment is the comment prepended to saved documents. Local
// sources are not named.
func MetadataComment(u *url.URL, at time.Time, version string) string {
	source := "local source"
	if urls.IsHTTP(u) {
		source = urls.Referer(u).String()
	}
	return fmt.Sprintf("<!-- Saved from %s at %s using monolith v%s -->",
		source, at.UTC().Format(time.RFC3339), version)
}
