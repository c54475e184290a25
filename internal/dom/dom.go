// Package dom parses documents into x/net/html trees, rewrites every
// external reference in them into an inline representation, and serializes
// them back.
package dom

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// ParseHTML builds a tree from data decoded with the named charset. An
// empty or unknown name parses the bytes as UTF-8. Scripting is treated as
// disabled so that noscript contents become elements that can be walked.
func ParseHTML(data []byte, charsetName string) (*html.Node, error) {
	r := bytes.NewReader(data)

	var doc *html.Node
	var err error
	if enc := lookup(charsetName); enc != nil && !isUTF8(charsetName) {
		doc, err = html.ParseWithOptions(transform.NewReader(r, enc.NewDecoder()), html.ParseOptionEnableScripting(false))
	} else {
		doc, err = html.ParseWithOptions(r, html.ParseOptionEnableScripting(false))
	}
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Serialize renders doc encoded with the named charset. Characters the
// charset cannot represent are written as numeric character references.
func Serialize(doc *html.Node, charsetName string) ([]byte, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	enc := lookup(charsetName)
	if enc == nil || isUTF8(charsetName) {
		return buf.Bytes(), nil
	}

	out, _, err := transform.Bytes(encoding.HTMLEscapeUnsupported(enc.NewEncoder()), buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", charsetName, err)
	}
	return out, nil
}

// ValidCharset reports whether name is a charset label documents can be
// decoded from and encoded to.
func ValidCharset(name string) bool {
	return lookup(name) != nil
}

func lookup(name string) encoding.Encoding {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	enc, canonical := charset.Lookup(name)
	if enc == nil || canonical == "replacement" {
		return nil
	}
	return enc
}

func isUTF8(name string) bool {
	_, canonical := charset.Lookup(strings.TrimSpace(name))
	return canonical == "utf-8"
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func attrOr(n *html.Node, key, fallback string) string {
	if v, ok := getAttr(n, key); ok {
		return v
	}
	return fallback
}

// setAttr replaces the first attribute named key or appends a new one
func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// removeAttr drops every attribute named key, duplicates included
func removeAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

func textContent(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func setTextContent(n *html.Node, s string) {
	removeChildren(n)
	if s != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: s})
	}
}

func element(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag)), Attr: attrs}
}
