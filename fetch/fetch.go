// Package fetch downloads manifests and media segments over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/net/proxy"
	"golang.org/x/sync/semaphore"

	"github.com/xeptore/mpdq/config"
	"github.com/xeptore/mpdq/dash/value"
	"github.com/xeptore/mpdq/httputil"
	"github.com/xeptore/mpdq/redact"
)

var (
	ErrTooManyRequests = errors.New("too many requests")
	ErrNotText         = errors.New("manifest is not a text document")
	ErrEmptySegment    = errors.New("empty segment")
)

// StatusError is a final non-success response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return "unexpected response code " + strconv.Itoa(e.Code) + ": " + e.Message
}

type Fetcher struct {
	client *http.Client
	sem    *semaphore.Weighted
	conf   config.Fetch
}

func New(logger zerolog.Logger, conf config.Fetch) (*Fetcher, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert

	if conf.Proxy.Enabled() {
		var proxyAuth *proxy.Auth
		if len(conf.Proxy.Username) > 0 && len(conf.Proxy.Password) > 0 {
			proxyAuth = &proxy.Auth{
				User:     conf.Proxy.Username,
				Password: conf.Proxy.Password,
			}
		}
		sock5, err := proxy.SOCKS5(
			"tcp",
			net.JoinHostPort(conf.Proxy.Host, strconv.Itoa(conf.Proxy.Port)),
			proxyAuth,
			proxy.Direct,
		)
		if nil != err {
			return nil, fmt.Errorf("create proxy dialer: %v", err)
		}
		dc, ok := sock5.(proxy.ContextDialer)
		if !ok {
			return nil, errors.New("failed to cast proxy to ContextDialer")
		}
		transport.Proxy = nil
		transport.DialContext = dc.DialContext
		logger.Debug().Dict("proxy", conf.Proxy.ToDict()).Msg("Using SOCKS5 proxy")
	}

	return &Fetcher{
		client: &http.Client{ //nolint:exhaustruct
			Transport: transport,
			Timeout:   conf.Timeout.Duration,
		},
		sem:  semaphore.NewWeighted(conf.MaxConcurrent),
		conf: conf,
	}, nil
}

// Manifest is a fetched manifest document.
type Manifest struct {
	Body []byte
	// URL is the location after redirects, the base of relative references.
	URL       string
	FetchedAt time.Time
	MimeType  string
}

// Manifest fetches link, retrying timeouts and transient failures.
func (f *Fetcher) Manifest(ctx context.Context, logger zerolog.Logger, link string) (*Manifest, error) {
	logger = logger.With().Str("url", redact.URL(link)).Logger()

	var out *Manifest
	err := retry.Do(
		ctx,
		retry.WithMaxRetries(f.conf.MaxRetries, retry.NewFibonacci(500*time.Millisecond)),
		func(ctx context.Context) error {
			m, err := f.manifest(ctx, logger, link)
			if nil != err {
				if isRetryable(err) {
					logger.Warn().Err(err).Msg("Retrying manifest fetch")
					return retry.RetryableError(err)
				}
				return err
			}
			out = m

			return nil
		},
	)
	if nil != err {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}

	return out, nil
}

func (f *Fetcher) manifest(ctx context.Context, logger zerolog.Logger, link string) (m *Manifest, err error) {
	resp, err := f.do(ctx, link, nil)
	if nil != err {
		return nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close manifest response body")
			err = errors.Join(err, fmt.Errorf("close manifest response body: %v", closeErr))
		}
	}()

	if err := checkStatus(resp, http.StatusOK); nil != err {
		return nil, err
	}

	body, err := httputil.ReadResponseBody(resp, f.conf.MaxManifestSize)
	if nil != err {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	mime := mimetype.Detect(body)
	if !isText(mime) {
		logger.Error().Str("mime_type", mime.String()).Msg("Manifest response is not text")
		return nil, fmt.Errorf("%w: %s", ErrNotText, mime.String())
	}

	logger.Debug().Int("size", len(body)).Str("mime_type", mime.String()).Msg("Manifest fetched")

	return &Manifest{
		Body:      body,
		URL:       resp.Request.URL.String(),
		FetchedAt: time.Now().UTC(),
		MimeType:  mime.String(),
	}, nil
}

func isText(m *mimetype.MIME) bool {
	for ; nil != m; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}

	return false
}

// Segment copies the resource at uri, limited to r when set, into w and
// returns the number of bytes written. Failures before the body arrives are
// retried; a failure while copying is not, since w already holds part of it.
func (f *Fetcher) Segment(
	ctx context.Context,
	logger zerolog.Logger,
	uri string,
	r *value.Range,
	w io.Writer,
) (int64, error) {
	logger = logger.With().Str("url", redact.URL(uri)).Logger()

	var resp *http.Response
	err := retry.Do(
		ctx,
		retry.WithMaxRetries(f.conf.MaxRetries, retry.NewFibonacci(500*time.Millisecond)),
		func(ctx context.Context) error {
			res, err := f.do(ctx, uri, r)
			if nil != err {
				if isRetryable(err) {
					return retry.RetryableError(err)
				}
				return err
			}

			expected := http.StatusOK
			if nil != r {
				expected = http.StatusPartialContent
			}
			if err := checkStatus(res, expected); nil != err {
				if closeErr := res.Body.Close(); nil != closeErr {
					logger.Error().Err(closeErr).Msg("Failed to close segment response body")
				}
				if isRetryable(err) {
					logger.Warn().Err(err).Msg("Retrying segment fetch")
					return retry.RetryableError(err)
				}
				return err
			}
			resp = res

			return nil
		},
	)
	if nil != err {
		return 0, fmt.Errorf("fetch segment: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close segment response body")
		}
	}()

	n, err := io.Copy(w, resp.Body)
	if nil != err {
		logger.Error().Err(err).Msg("Failed to copy segment")
		return n, fmt.Errorf("copy segment: %w", err)
	}
	if n == 0 {
		return 0, ErrEmptySegment
	}

	return n, nil
}

func (f *Fetcher) do(ctx context.Context, link string, r *value.Range) (*http.Response, error) {
	if err := f.sem.Acquire(ctx, 1); nil != err {
		return nil, fmt.Errorf("acquire request slot: %w", err)
	}
	defer f.sem.Release(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if nil != err {
		return nil, fmt.Errorf("create request: %v", err)
	}
	req.Header.Set("User-Agent", f.conf.UserAgent)
	if h := httputil.RangeHeader(r); h != "" {
		req.Header.Set("Range", h)
	}

	resp, err := f.client.Do(req)
	if nil != err {
		return nil, fmt.Errorf("send request: %w", err)
	}

	return resp, nil
}

func checkStatus(resp *http.Response, expected int) error {
	code := resp.StatusCode
	if code == expected {
		return nil
	}
	if code == http.StatusTooManyRequests {
		return ErrTooManyRequests
	}

	body, err := httputil.ReadOptionalResponseBody(resp, 4096)
	if nil != err && !errors.Is(err, httputil.ErrBodyTooLarge) {
		return &StatusError{Code: code, Message: ""}
	}

	return &StatusError{Code: code, Message: httputil.ErrorMessage(body)}
}

func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTooManyRequests) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return httputil.IsRetryableStatus(statusErr.Code)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}
