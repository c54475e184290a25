// Package core turns a target document into a single self-contained file.
//
// Embed does the work on an already retrieved document; Create and
// CreateFromData add target parsing, output encoding, the metadata comment
// and the optional MHTML envelope around it.
package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/monolith/internal/csp"
	"github.com/GriffinCanCode/monolith/internal/dom"
	"github.com/GriffinCanCode/monolith/internal/media"
	"github.com/GriffinCanCode/monolith/internal/policy"
	"github.com/GriffinCanCode/monolith/internal/retrieve"
	"github.com/GriffinCanCode/monolith/internal/urls"
)

// Version is reported in the metadata comment. Overridden at link time.
var Version = "2.10.1"

var (
	ErrNoTarget          = errors.New("no target specified")
	ErrUnsupportedTarget = errors.New("unsupported target")
	ErrUnknownEncoding   = errors.New("unknown encoding")
	ErrRetrieveTarget    = errors.New("could not retrieve target document")
)

const (
	mhtmlHeader = "MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/related; boundary=\"----=_NextPart_000_0000\"\r\n" +
		"\r\n" +
		"------=_NextPart_000_0000\r\n" +
		"Content-Type: text/html; charset=\"utf-8\"\r\n" +
		"Content-Location: http://example.com/\r\n" +
		"\r\n"
	mhtmlFooter = "\r\n------=_NextPart_000_0000--\r\n"
)

// now is replaced in tests
var now = time.Now

// Document is an embedded document ready to be serialized.
type Document struct {
	Root    *html.Node
	Charset string
	Title   string
}

// Embed parses data, the document retrieved from target, and inlines every
// asset it references according to the session's policy. charsetHint is
// the charset the transport reported, if any.
func Embed(ctx context.Context, data []byte, charsetHint string, target *url.URL, sess *retrieve.Session) (*Document, error) {
	p := sess.Policy()
	logger := sess.Logger()

	root, charset, err := dom.Load(data, charsetHint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	base := baseURL(root, target, p.BaseURL, logger)

	sess = sess.Root(target)
	dom.Walk(ctx, sess, base, root)

	if p.BaseURL != "" {
		dom.SetBaseURL(root, p.BaseURL)
	}

	if !p.NoImages && urls.IsHTTP(base) && urls.IsHTTP(target) && !dom.HasFavicon(root) {
		favicon, err := urls.Resolve(base, "/favicon.ico")
		if err == nil {
			if asset, err := sess.Retrieve(ctx, base, favicon); err == nil {
				dom.AddFavicon(root, asset.DataURL())
			}
		}
	}

	if content, _ := dom.GetRobots(root); content != "none" {
		dom.SetRobots(root, "none")
	}

	if p.Encoding != "" {
		charset = p.Encoding
		dom.SetCharset(root, charset)
	}

	dom.AddCSP(root, csp.Compose(p))

	title, _ := dom.GetTitle(root)
	return &Document{Root: root, Charset: charset, Title: title}, nil
}

// baseURL picks the URL relative references are resolved against. A custom
// base overrides the document's own base element, except that file bases
// only apply to documents that were themselves read from disk.
func baseURL(root *html.Node, target *url.URL, custom string, logger *zap.Logger) *url.URL {
	if custom == "" {
		return dom.BaseURL(root, target)
	}

	fromFile := urls.Classify(target) == urls.SchemeFile

	if u, err := urls.Parse(custom); err == nil {
		if urls.Classify(u) == urls.SchemeFile && !fromFile {
			return target
		}
		return u
	}

	if !fromFile {
		return target
	}
	if _, err := os.Stat(custom); err != nil {
		logger.Warn("base path does not exist", zap.String("path", custom))
		return target
	}
	u, err := urls.FromPath(custom)
	if err != nil {
		logger.Warn("could not map base path to a URL", zap.String("path", custom), zap.Error(err))
		return target
	}
	return u
}

// CreateFromData embeds data retrieved from target and serializes the
// result in the session's output format. It returns the output and the
// document title. A nil target stands for a document of unknown origin,
// such as one read from standard input; it gets no metadata comment.
func CreateFromData(ctx context.Context, sess *retrieve.Session, data []byte, charsetHint string, target *url.URL) ([]byte, string, error) {
	p := sess.Policy()
	if err := validateEncoding(p); err != nil {
		return nil, "", err
	}

	documentURL := target
	if documentURL == nil {
		documentURL = &url.URL{Scheme: "data", Opaque: "text/html,"}
	}

	doc, err := Embed(ctx, data, charsetHint, documentURL, sess)
	if err != nil {
		return nil, "", err
	}

	out, err := dom.Serialize(doc.Root, doc.Charset)
	if err != nil {
		return nil, "", fmt.Errorf("failed to serialize document: %w", err)
	}

	var buf bytes.Buffer
	if p.Format == policy.FormatMHTML {
		buf.WriteString(mhtmlHeader)
	}
	if !p.NoMetadata && target != nil {
		buf.WriteString(dom.MetadataComment(target, now(), Version))
		buf.WriteByte('\n')
	}
	buf.Write(out)

	if p.Format == policy.FormatMHTML {
		buf.WriteString(mhtmlFooter)
	} else if !bytes.HasSuffix(out, []byte("\n")) {
		buf.WriteByte('\n')
	}

	return buf.Bytes(), doc.Title, nil
}

// Create retrieves target and turns it into a single file. Targets that are
// not markup are returned as retrieved.
func Create(ctx context.Context, sess *retrieve.Session, target string) ([]byte, string, error) {
	if strings.TrimSpace(target) == "" {
		return nil, "", ErrNoTarget
	}
	if err := validateEncoding(sess.Policy()); err != nil {
		return nil, "", err
	}

	u, err := ParseTarget(target)
	if err != nil {
		return nil, "", err
	}

	asset, err := sess.Retrieve(ctx, nil, u)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrRetrieveTarget, err)
	}

	mediaType := asset.MediaType
	if mediaType == "" {
		mediaType = media.Detect(asset.Data, asset.URL)
	}
	if mediaType == "" {
		mediaType = media.Sniff(asset.Data)
	}
	if !media.IsHTML(mediaType) {
		return asset.Data, "", nil
	}

	return CreateFromData(ctx, sess, asset.Data, asset.Charset, asset.URL)
}

// ParseTarget turns a command-line target into a URL. Existing filesystem
// paths become file URLs; anything else without a scheme is assumed to be
// a website.
func ParseTarget(target string) (*url.URL, error) {
	target = strings.TrimSpace(target)

	if u, err := urls.Parse(target); err == nil && len(u.Scheme) > 1 {
		switch urls.Classify(u) {
		case urls.SchemeData, urls.SchemeFile, urls.SchemeHTTP, urls.SchemeHTTPS:
			return u, nil
		}
		if _, statErr := os.Stat(target); statErr != nil {
			return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedTarget, u.Scheme)
		}
	}

	if info, err := os.Stat(target); err == nil {
		if info.IsDir() {
			return nil, fmt.Errorf("%w: local target %q is not a file", ErrUnsupportedTarget, target)
		}
		u, err := urls.FromPath(target)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrUnsupportedTarget, target, err)
		}
		return u, nil
	}

	u, err := urls.Parse("http://" + target)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrUnsupportedTarget, target, err)
	}
	return u, nil
}

func validateEncoding(p policy.Policy) error {
	if p.Encoding != "" && !dom.ValidCharset(p.Encoding) {
		return fmt.Errorf("%w %q", ErrUnknownEncoding, p.Encoding)
	}
	return nil
}
