package retrieve

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/monolith/internal/cookies"
	"github.com/GriffinCanCode/monolith/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/monolith/internal/media"
	"github.com/GriffinCanCode/monolith/internal/urls"
)

// Retrieve obtains the payload of target on behalf of the document at
// parent. A nil parent means target is the top-level document.
//
// Data URLs are decoded in place. File URLs are only read when the parent is
// a local file too. HTTP(S) URLs are served from the cache when possible,
// checked against the domain list, then fetched with cookies and a Referer.
// Concurrent retrievals of the same URL (ignoring the fragment) share one
// fetch.
func (s *Session) Retrieve(ctx context.Context, parent, target *url.URL) (*Asset, error) {
	if target == nil {
		return nil, failure(ErrResolution, "<nil>", nil)
	}
	if parent == nil {
		parent = target
	}

	switch urls.Classify(target) {
	case urls.SchemeData:
		return s.retrieveData(target)
	case urls.SchemeFile:
		s.visit(target)
		return s.retrieveFile(parent, target)
	case urls.SchemeHTTP, urls.SchemeHTTPS:
		s.visit(target)
		return s.retrieveHTTP(ctx, parent, target)
	default:
		s.logger.Warn("unsupported scheme", zap.String("url", target.String()))
		return nil, failure(ErrUnsupportedScheme, target.Scheme, nil)
	}
}

func (s *Session) retrieveData(target *url.URL) (*Asset, error) {
	mediaType, charset, data, err := urls.ParseDataURL(target)
	if err != nil {
		return nil, failure(ErrDecode, "data URL", err)
	}
	return &Asset{Data: data, URL: target, MediaType: mediaType, Charset: charset}, nil
}

func (s *Session) retrieveFile(parent, target *url.URL) (*Asset, error) {
	key := urls.Key(target)
	timer := monitoring.NewTimer(s.metrics, "file")

	if urls.Classify(parent) != urls.SchemeFile {
		s.logger.Error(key + " (security error)")
		timer.Stop(monitoring.OutcomeBlocked, 0)
		return nil, failure(ErrSecurity, key, nil)
	}

	path, err := urls.FileURLToPath(target)
	if err != nil {
		timer.Stop(monitoring.OutcomeFailed, 0)
		return nil, failure(ErrResolution, key, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		s.logger.Error(key + " (file not found)")
		timer.Stop(monitoring.OutcomeFailed, 0)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, failure(ErrNotFound, path, nil)
		}
		return nil, failure(ErrNotFound, path, err)
	}
	if info.IsDir() {
		s.logger.Error(key + " (is a directory)")
		timer.Stop(monitoring.OutcomeFailed, 0)
		return nil, failure(ErrIsDirectory, path, nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Error(key+" (unreadable)", zap.Error(err))
		timer.Stop(monitoring.OutcomeFailed, 0)
		return nil, failure(ErrNotFound, path, err)
	}

	s.logger.Info(key)
	timer.Stop(monitoring.OutcomeFetched, len(data))

	return &Asset{
		Data:      data,
		URL:       target,
		MediaType: media.Detect(data, target),
	}, nil
}

func (s *Session) retrieveHTTP(ctx context.Context, parent, target *url.URL) (*Asset, error) {
	key := urls.Key(target)

	if asset, ok := s.fromCache(key, target); ok {
		return asset, nil
	}

	if !s.policy.AllowsURL(target) {
		s.logger.Warn(key + " (domain excluded)")
		s.metrics.RecordRetrieval(target.Scheme, monitoring.OutcomeBlocked, 0, 0)
		return nil, failure(ErrBlockedDomain, target.Hostname(), nil)
	}

	v, err, _ := s.flight.Do(key, func() (any, error) {
		// a fetch for the same key may have finished while this one queued
		if asset, ok := s.fromCache(key, target); ok {
			return asset, nil
		}
		return s.fetch(ctx, parent, target, key)
	})
	if err != nil {
		return nil, err
	}

	// callers get their own copy of the header fields
	asset := *v.(*Asset)
	return &asset, nil
}

func (s *Session) fromCache(key string, target *url.URL) (*Asset, bool) {
	entry, ok := s.cache.Get(key)
	if !ok {
		return nil, false
	}

	s.logger.Info(key + " (from cache)")
	s.metrics.RecordRetrieval(target.Scheme, monitoring.OutcomeCached, len(entry.Data), 0)

	return &Asset{
		Data:      entry.Data,
		URL:       target,
		MediaType: entry.MediaType,
		Charset:   entry.Charset,
	}, true
}

func (s *Session) fetch(ctx context.Context, parent, target *url.URL, key string) (*Asset, error) {
	headers := make(map[string]string, 2)
	if header := cookies.Header(s.policy.Cookies, target, time.Now()); header != "" {
		headers["Cookie"] = header
	}
	if urls.IsHTTP(parent) && parent.String() != target.String() {
		headers["Referer"] = urls.Referer(parent).String()
	}

	timer := monitoring.NewTimer(s.metrics, target.Scheme)

	resp, err := s.client.Get(ctx, urls.Clean(target), headers)
	if err != nil {
		s.logger.Error(fmt.Sprintf("%s (%v)", key, err))
		timer.Stop(monitoring.OutcomeFailed, 0)
		return nil, failure(ErrNetwork, key, err)
	}

	if !resp.IsSuccess() && !s.policy.IgnoreErrors {
		status := fmt.Sprintf("%d %s", resp.Status, http.StatusText(resp.Status))
		s.logger.Error(fmt.Sprintf("%s (%s)", key, status))
		timer.Stop(monitoring.OutcomeFailed, 0)
		return nil, failure(ErrHTTPStatus, fmt.Sprintf("%s (%s)", key, status), nil)
	}

	final := resp.URL
	finalKey := urls.Key(final)
	if finalKey == key {
		s.logger.Info(key)
	} else {
		s.logger.Info(key + " -> " + final.String())
	}

	var mediaType, charset string
	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		mediaType, charset, _ = media.ParseContentType(contentType)
	} else {
		mediaType = media.Detect(resp.Body, final)
	}

	s.cache.Set(finalKey, resp.Body, mediaType, charset)
	if finalKey != key {
		s.cache.Set(key, resp.Body, mediaType, charset)
	}
	timer.Stop(monitoring.OutcomeFetched, len(resp.Body))

	return &Asset{
		Data:      resp.Body,
		URL:       final,
		MediaType: mediaType,
		Charset:   charset,
	}, nil
}
