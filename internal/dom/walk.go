package dom

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/GriffinCanCode/monolith/internal/css"
	"github.com/GriffinCanCode/monolith/internal/policy"
	"github.com/GriffinCanCode/monolith/internal/retrieve"
	"github.com/GriffinCanCode/monolith/internal/urls"
)

// encoder turns a retrieved asset into its inline form
type encoder func(*retrieve.Asset) string

// Walk rewrites, in document order, every reference under node that the
// document at documentURL depends on. References are replaced by data URLs,
// by placeholders where the session's policy suppresses them, or by
// absolute addresses for navigation targets. Retrieval failures never stop
// the walk.
func Walk(ctx context.Context, sess *retrieve.Session, documentURL *url.URL, node *html.Node) {
	w := &walker{
		ctx:    ctx,
		sess:   sess,
		policy: sess.Policy(),
		logger: sess.Logger(),
		base:   documentURL,
	}
	w.walk(node)
}

type walker struct {
	ctx    context.Context
	sess   *retrieve.Session
	policy policy.Policy
	logger *zap.Logger
	base   *url.URL
}

func (w *walker) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		w.element(n)
	}

	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		w.walk(c)
		c = next
	}

	if n.Type == html.ElementNode && n.DataAtom == atom.Noscript && w.policy.UnwrapNoscript {
		unwrapNoscript(n)
	}
}

func (w *walker) element(n *html.Node) {
	if n.Namespace == "svg" {
		switch n.Data {
		case "image", "use", "feImage":
			w.svgHref(n)
		}
	} else {
		switch n.DataAtom {
		case atom.Link:
			w.link(n)
		case atom.Style:
			w.styleElement(n)
		case atom.Img:
			w.img(n)
		case atom.Input:
			if strings.EqualFold(strings.TrimSpace(attrOr(n, "type", "")), "image") {
				w.image(n, "src")
			}
		case atom.A, atom.Area:
			w.absolutize(n, "href")
		case atom.Form:
			w.absolutize(n, "action")
		case atom.Script:
			w.script(n)
		case atom.Iframe, atom.Frame:
			w.frame(n)
		case atom.Body:
			w.background(n)
		case atom.Meta:
			w.meta(n)
		case atom.Audio:
			w.playable(n, w.policy.NoAudio)
		case atom.Video:
			w.playable(n, w.policy.NoVideo)
			w.image(n, "poster")
		case atom.Source, atom.Track:
			w.source(n)
		case atom.Object:
			w.embedded(n, "data")
		case atom.Embed:
			w.embedded(n, "src")
		}
	}

	if _, ok := getAttr(n, "style"); ok {
		w.styleAttr(n)
	}
	if w.policy.NoJS {
		removeEventHandlers(n)
	}
}

func (w *walker) link(n *html.Node) {
	t := ParseLinkType(attrOr(n, "rel", ""))

	switch {
	case t.Has(LinkStylesheet):
		if w.policy.NoCSS {
			removeAttr(n, "href")
			removeAttr(n, "integrity")
			return
		}
		w.embedAttr(n, "href", "", w.stylesheet)

	case t.Has(LinkFavicon), t.Has(LinkAppleTouchIcon):
		if w.policy.NoImages {
			removeAttr(n, "href")
			removeAttr(n, "integrity")
			return
		}
		w.embedAttr(n, "href", "", nil)

	case t.Has(LinkPreload), t.Has(LinkPrefetch), t.Has(LinkDNSPrefetch):
		// hints only, left untouched

	default:
		w.absolutize(n, "href")
	}
}

func (w *walker) stylesheet(a *retrieve.Asset) string {
	rewritten := css.Embed(w.ctx, w.sess, a.URL, string(a.Data))
	return a.DataURLAs("text/css", []byte(rewritten))
}

func (w *walker) styleElement(n *html.Node) {
	if w.policy.NoCSS {
		removeChildren(n)
		return
	}
	setTextContent(n, css.Embed(w.ctx, w.sess, w.base, textContent(n)))
}

func (w *walker) styleAttr(n *html.Node) {
	if w.policy.NoCSS {
		removeAttr(n, "style")
		return
	}
	setAttr(n, "style", css.Embed(w.ctx, w.sess, w.base, attrOr(n, "style", "")))
}

func (w *walker) img(n *html.Node) {
	w.image(n, "src")

	if srcset, ok := getAttr(n, "srcset"); ok && strings.TrimSpace(srcset) != "" {
		setAttr(n, "srcset", EmbedSrcset(w.ctx, w.sess, w.base, srcset))
	}
}

// image inlines an image-bearing attribute, or swaps in the placeholder
// image when images are suppressed.
func (w *walker) image(n *html.Node, key string) {
	if _, ok := getAttr(n, key); !ok {
		return
	}
	if w.policy.NoImages {
		setAttr(n, key, urls.PlaceholderImage)
		removeAttr(n, "integrity")
		return
	}
	w.embedAttr(n, key, urls.PlaceholderImage, nil)
}

// background handles the legacy body[background] attribute. Unlike img
// sources it is dropped rather than replaced when images are suppressed.
func (w *walker) background(n *html.Node) {
	if _, ok := getAttr(n, "background"); !ok {
		return
	}
	if w.policy.NoImages {
		removeAttr(n, "background")
		return
	}
	w.embedAttr(n, "background", "", nil)
}

// absolutize points a navigation target at its absolute address without
// retrieving it.
func (w *walker) absolutize(n *html.Node, key string) {
	ref, ok := getAttr(n, key)
	if !ok {
		return
	}
	trimmed := strings.TrimSpace(ref)

	switch {
	case w.policy.NoJS && strings.HasPrefix(strings.ToLower(trimmed), "javascript:"):
		setAttr(n, key, "javascript:;")
	case trimmed == "", strings.HasPrefix(trimmed, "#"), urls.IsAbsolute(trimmed):
	default:
		if u, err := urls.Resolve(w.base, trimmed); err == nil {
			setAttr(n, key, u.String())
		}
	}
}

func (w *walker) script(n *html.Node) {
	if isDataBlock(attrOr(n, "type", "")) {
		return
	}
	if w.policy.NoJS {
		removeAttr(n, "src")
		removeAttr(n, "integrity")
		removeChildren(n)
		return
	}
	w.embedAttr(n, "src", "", func(a *retrieve.Asset) string {
		return a.DataURLAs("text/javascript", a.Data)
	})
}

// isDataBlock reports whether a script type marks inert data, such as JSON,
// rather than something a browser executes.
func isDataBlock(scriptType string) bool {
	t := strings.ToLower(strings.TrimSpace(scriptType))
	if t == "" || t == "module" {
		return false
	}
	return !strings.Contains(t, "javascript") && !strings.Contains(t, "ecmascript")
}

func (w *walker) frame(n *html.Node) {
	if w.policy.NoFrames {
		setAttr(n, "src", "")
		return
	}

	ref, ok := getAttr(n, "src")
	if !ok || strings.TrimSpace(ref) == "" {
		return
	}

	resolved := urls.ResolveOrEmpty(w.base, ref)
	fallback := ""
	if urls.IsHTTP(resolved) {
		fallback = resolved.String()
	}

	asset, err := w.sess.Retrieve(w.ctx, w.base, resolved)
	if err != nil {
		setAttr(n, "src", fallback)
		return
	}
	if !asset.IsHTML() {
		setAttr(n, "src", urls.WithFragment(asset.DataURL(), urls.Fragment(resolved)))
		return
	}

	nested, err := w.sess.Enter(asset.URL)
	if err != nil {
		w.logger.Warn(urls.Key(asset.URL) + " (frame cycle)")
		setAttr(n, "src", fallback)
		return
	}

	doc, charset, err := Load(asset.Data, asset.Charset)
	if err != nil {
		w.logger.Warn(urls.Key(asset.URL)+" (unparsable frame)", zap.Error(err))
		setAttr(n, "src", fallback)
		return
	}

	Walk(w.ctx, nested, BaseURL(doc, asset.URL), doc)
	w.sess.Metrics().IncFrames()

	out, err := Serialize(doc, charset)
	if err != nil {
		w.logger.Warn(urls.Key(asset.URL)+" (unserializable frame)", zap.Error(err))
		setAttr(n, "src", fallback)
		return
	}
	setAttr(n, "src", urls.WithFragment(urls.CreateDataURL("text/html", charset, out), urls.Fragment(resolved)))
}

// meta disarms refresh and location redirects
func (w *walker) meta(n *html.Node) {
	switch strings.ToLower(strings.TrimSpace(attrOr(n, "http-equiv", ""))) {
	case "refresh", "location":
		removeAttr(n, "http-equiv")
	}
}

// playable handles the src of audio and video elements
func (w *walker) playable(n *html.Node, suppressed bool) {
	if suppressed {
		removeAttr(n, "src")
		return
	}
	w.embedAttr(n, "src", "", nil)
}

// source handles source and track elements by what their parent plays
func (w *walker) source(n *html.Node) {
	var parent atom.Atom
	if n.Parent != nil {
		parent = n.Parent.DataAtom
	}

	switch parent {
	case atom.Audio:
		w.playable(n, w.policy.NoAudio)
	case atom.Video:
		w.playable(n, w.policy.NoVideo)
	case atom.Picture:
		w.image(n, "src")
		if srcset, ok := getAttr(n, "srcset"); ok && strings.TrimSpace(srcset) != "" {
			setAttr(n, "srcset", EmbedSrcset(w.ctx, w.sess, w.base, srcset))
		}
	default:
		w.embedAttr(n, "src", "", nil)
	}
}

// embedded handles object and embed elements, which are nested browsing
// contexts like frames.
func (w *walker) embedded(n *html.Node, key string) {
	if w.policy.NoFrames {
		if _, ok := getAttr(n, key); ok {
			setAttr(n, key, "")
		}
		return
	}
	w.embedAttr(n, key, "", nil)
}

func (w *walker) svgHref(n *html.Node) {
	for i := range n.Attr {
		a := &n.Attr[i]
		if a.Key != "href" || (a.Namespace != "" && a.Namespace != "xlink") {
			continue
		}
		ref := strings.TrimSpace(a.Val)
		if ref == "" || strings.HasPrefix(ref, "#") {
			continue
		}
		if n.Data != "use" && w.policy.NoImages {
			a.Val = urls.PlaceholderImage
			continue
		}
		a.Val, _ = w.inline(ref, "", "", nil)
	}
}

// embedAttr replaces the reference in attribute key with its inline form.
// A subresource integrity value is verified first and dropped once the
// reference no longer points at the original address.
func (w *walker) embedAttr(n *html.Node, key, fallback string, encode encoder) {
	ref, ok := getAttr(n, key)
	if !ok || strings.TrimSpace(ref) == "" {
		return
	}

	integrity, _ := getAttr(n, "integrity")
	value, replaced := w.inline(ref, fallback, integrity, encode)
	setAttr(n, key, value)
	if replaced {
		removeAttr(n, "integrity")
	}
}

// inline retrieves ref and returns its data URL with the fragment kept. A
// reference that cannot be retrieved keeps its absolute address when it is
// remote and becomes fallback otherwise. The second result reports whether
// the original address was replaced.
func (w *walker) inline(ref, fallback, integrity string, encode encoder) (string, bool) {
	resolved := urls.ResolveOrEmpty(w.base, ref)

	asset, err := w.sess.Retrieve(w.ctx, w.base, resolved)
	if err != nil {
		if urls.IsHTTP(resolved) {
			return resolved.String(), false
		}
		return fallback, true
	}

	if strings.TrimSpace(integrity) != "" && !CheckIntegrity(asset.Data, integrity) {
		w.logger.Warn(urls.Key(resolved) + " (integrity mismatch)")
		return fallback, true
	}

	if encode == nil {
		encode = (*retrieve.Asset).DataURL
	}
	return urls.WithFragment(encode(asset), urls.Fragment(resolved)), true
}

func removeEventHandlers(n *html.Node) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && IsEventHandler(a.Key) {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}

// unwrapNoscript replaces a noscript element by its children, bracketed by
// comments that record the element and its attributes.
func unwrapNoscript(n *html.Node) {
	parent := n.Parent
	if parent == nil {
		return
	}

	var open strings.Builder
	open.WriteString("noscript")
	for _, a := range n.Attr {
		open.WriteString(" " + a.Key + `="` + html.EscapeString(a.Val) + `"`)
	}

	parent.InsertBefore(&html.Node{Type: html.CommentNode, Data: open.String()}, n)
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		parent.InsertBefore(c, n)
		c = next
	}
	parent.InsertBefore(&html.Node{Type: html.CommentNode, Data: "/noscript"}, n)
	parent.RemoveChild(n)
}
