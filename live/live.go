// Package live keeps a dynamic presentation's manifest up to date.
package live

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/xeptore/mpdq/config"
	"github.com/xeptore/mpdq/dash"
	"github.com/xeptore/mpdq/dash/mpd"
	"github.com/xeptore/mpdq/fetch"
	"github.com/xeptore/mpdq/ratelimit"
	"github.com/xeptore/mpdq/redact"
	"github.com/xeptore/mpdq/result"
	"github.com/xeptore/mpdq/store"
)

type ManifestFetcher interface {
	Manifest(ctx context.Context, logger zerolog.Logger, link string) (*fetch.Manifest, error)
}

type SnapshotStore interface {
	Put(snap store.Snapshot) error
}

// Refresher refetches one manifest for as long as it stays dynamic.
type Refresher struct {
	logger  zerolog.Logger
	fetcher ManifestFetcher
	store   SnapshotStore
	conf    config.Refresh
	url     string
	limiter *rate.Limiter
	current *dash.Client
}

// New creates a refresher for url. A nil store disables snapshots.
func New(
	logger zerolog.Logger,
	fetcher ManifestFetcher,
	snapshots SnapshotStore,
	conf config.Refresh,
	url string,
) *Refresher {
	return &Refresher{
		logger:  logger.With().Str("manifest", redact.URL(url)).Logger(),
		fetcher: fetcher,
		store:   snapshots,
		conf:    conf,
		url:     url,
		limiter: ratelimit.New(conf),
		current: nil,
	}
}

// WithClient makes refreshes rebuild c, keeping its selected period and
// streams, instead of starting from a bare client.
func (r *Refresher) WithClient(c *dash.Client) *Refresher {
	r.current = c
	return r
}

// Run publishes every refreshed client on updates until the presentation
// turns static, ctx is done, or refreshing keeps failing. The final failure
// is published as well as returned.
func (r *Refresher) Run(ctx context.Context, updates chan<- result.Of[dash.Client]) error {
	b := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(r.conf.MinInterval.Duration),
				backoff.WithMaxInterval(r.conf.MaxInterval.Duration),
				backoff.WithMaxElapsedTime(0),
			),
			r.conf.MaxFailures,
		),
		ctx,
	)

	for {
		if err := r.limiter.Wait(ctx); nil != err {
			return r.stop(ctx, err)
		}

		c, err := r.refresh(ctx)
		if nil != err {
			if errors.Is(err, context.Canceled) {
				return r.stop(ctx, err)
			}

			wait := b.NextBackOff()
			if wait == backoff.Stop {
				r.logger.Error().Err(err).Msg("Giving up refreshing manifest")
				r.publish(ctx, updates, result.Err[dash.Client](err))
				return err
			}

			r.logger.Warn().Err(err).Dur("retry_in", wait).Msg("Failed to refresh manifest")
			if err := sleep(ctx, wait); nil != err {
				return r.stop(ctx, err)
			}
			continue
		}
		b.Reset()
		r.current = c

		if !r.publish(ctx, updates, result.Ok(c)) {
			return r.stop(ctx, ctx.Err())
		}

		if !c.IsLive() {
			r.logger.Info().Msg("Presentation is static, stopping refresh")
			return nil
		}

		interval := ratelimit.Jitter(r.interval(c))
		r.logger.Debug().Dur("interval", interval).Msg("Waiting for next manifest refresh")
		if err := sleep(ctx, interval); nil != err {
			return r.stop(ctx, err)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) (*dash.Client, error) {
	m, err := r.fetcher.Manifest(ctx, r.logger, r.url)
	if nil != err {
		return nil, err
	}

	var c *dash.Client
	if nil == r.current {
		c, err = dash.New(r.logger, m.Body, m.URL)
	} else {
		c, err = r.current.Refresh(m.Body)
	}
	if nil != err {
		return nil, fmt.Errorf("load refreshed manifest: %w", err)
	}

	if nil != r.store {
		snap := store.Snapshot{
			URL:       r.url,
			FetchedAt: m.FetchedAt,
			Type:      c.Presentation().Type.String(),
			Periods:   len(c.Periods()),
			Body:      m.Body,
		}
		if err := r.store.Put(snap); nil != err {
			r.logger.Error().Err(err).Msg("Failed to store manifest snapshot")
		}
	}

	r.logger.
		Debug().
		Int("periods", len(c.Periods())).
		Time("fetched_at", m.FetchedAt).
		Msg("Manifest refreshed")

	return c, nil
}

// interval is the manifest's minimum update period clamped to the
// configured bounds. Without one the maximum interval is used.
func (r *Refresher) interval(c *dash.Client) time.Duration {
	period := c.Presentation().MinimumUpdatePeriod
	if period == mpd.Unset {
		return r.conf.MaxInterval.Duration
	}

	return min(max(time.Duration(period)*time.Millisecond, r.conf.MinInterval.Duration), r.conf.MaxInterval.Duration)
}

func (r *Refresher) publish(ctx context.Context, updates chan<- result.Of[dash.Client], res result.Of[dash.Client]) bool {
	select {
	case updates <- res:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *Refresher) stop(ctx context.Context, err error) error {
	if nil != ctx.Err() {
		r.logger.Debug().Msg("Manifest refresh canceled")
		return ctx.Err()
	}

	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
