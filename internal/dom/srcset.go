package dom

import (
	"context"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/monolith/internal/retrieve"
	"github.com/GriffinCanCode/monolith/internal/urls"
)

// srcsetWorkers bounds concurrent retrievals for one srcset attribute
const srcsetWorkers = 4

// SrcsetItem is one image candidate of a srcset attribute
type SrcsetItem struct {
	Path       string
	Descriptor string
}

// ParseSrcset splits a srcset attribute into candidates. Commas inside a
// path do not separate candidates; only ASCII whitespace ends a path.
func ParseSrcset(srcset string) []SrcsetItem {
	var items []SrcsetItem
	s := srcset
	for {
		s = strings.TrimLeft(s, " \t\n\r\f,")
		if s == "" {
			return items
		}

		end := strings.IndexAny(s, " \t\n\r\f")
		if end < 0 {
			end = len(s)
		}
		path := s[:end]
		s = s[end:]

		if strings.HasSuffix(path, ",") {
			items = append(items, SrcsetItem{Path: strings.TrimRight(path, ",")})
			continue
		}

		var descriptors []string
		descriptors, s = parseDescriptors(s)
		items = append(items, SrcsetItem{Path: path, Descriptor: strings.Join(descriptors, " ")})
	}
}

// parseDescriptors reads descriptors up to the comma that ends the
// candidate and returns the remaining input.
func parseDescriptors(s string) ([]string, string) {
	var descriptors []string
	var current strings.Builder
	inParens := false

	flush := func() {
		if current.Len() > 0 {
			descriptors = append(descriptors, current.String())
			current.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inParens:
			current.WriteByte(c)
			if c == ')' {
				inParens = false
			}
		case c == '(':
			current.WriteByte(c)
			inParens = true
		case c == ',':
			flush()
			return descriptors, s[i+1:]
		case isSpace(c):
			flush()
		default:
			current.WriteByte(c)
		}
	}
	flush()
	return descriptors, ""
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

// EmbedSrcset replaces every candidate of srcset with an inline image,
// keeping descriptors. Under NoImages every candidate becomes the
// placeholder image without any retrieval.
func EmbedSrcset(ctx context.Context, sess *retrieve.Session, base *url.URL, srcset string) string {
	items := ParseSrcset(srcset)
	paths := make([]string, len(items))

	if sess.Policy().NoImages {
		for i := range items {
			paths[i] = urls.PlaceholderImage
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(srcsetWorkers)
		for i, item := range items {
			g.Go(func() error {
				paths[i] = embedImage(gctx, sess, base, item.Path)
				return nil
			})
		}
		_ = g.Wait()
	}

	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = paths[i]
		if item.Descriptor != "" {
			parts[i] += " " + item.Descriptor
		}
	}
	return strings.Join(parts, ", ")
}

// embedImage inlines one image reference. Failed remote references keep
// their address; anything else becomes the placeholder.
func embedImage(ctx context.Context, sess *retrieve.Session, base *url.URL, ref string) string {
	resolved := urls.ResolveOrEmpty(base, ref)
	asset, err := sess.Retrieve(ctx, base, resolved)
	if err != nil {
		if urls.IsHTTP(resolved) {
			return resolved.String()
		}
		return urls.PlaceholderImage
	}
	return urls.WithFragment(asset.DataURL(), urls.Fragment(resolved))
}
