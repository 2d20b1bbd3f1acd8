package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/xeptore/mpdq/cache"
	"github.com/xeptore/mpdq/config"
	"github.com/xeptore/mpdq/constants"
	"github.com/xeptore/mpdq/dash"
	"github.com/xeptore/mpdq/download"
	"github.com/xeptore/mpdq/fetch"
	"github.com/xeptore/mpdq/live"
	"github.com/xeptore/mpdq/log"
	"github.com/xeptore/mpdq/prompt"
	"github.com/xeptore/mpdq/redact"
	"github.com/xeptore/mpdq/render"
	"github.com/xeptore/mpdq/result"
	"github.com/xeptore/mpdq/store"
	"github.com/xeptore/mpdq/unit"
)

func main() {
	logger := log.NewDefault()

	streamFlags := []cli.Flag{
		//nolint:exhaustruct
		&cli.IntFlag{
			Name:  "period",
			Usage: "Period index",
			Value: 0,
		},
		//nolint:exhaustruct
		&cli.IntFlag{
			Name:    "adaptation-set",
			Aliases: []string{"a"},
			Usage:   "Adaptation set index within the period",
			Value:   0,
		},
		//nolint:exhaustruct
		&cli.StringFlag{
			Name:    "representation",
			Aliases: []string{"r"},
			Usage:   "Representation ID; asks on a terminal when omitted",
		},
		//nolint:exhaustruct
		&cli.Int64Flag{
			Name:  "max-bandwidth",
			Usage: "Pick the best representation not above this bandwidth instead of asking",
		},
	}

	//nolint:exhaustruct
	app := &cli.Command{
		Name:    "mpdq",
		Version: constants.Version,
		Metadata: map[string]any{
			"compiled_at": constants.CompileTime,
		},
		Suggest:                    true,
		Usage:                      "MPEG-DASH manifest inspector",
		EnableShellCompletion:      true,
		ShellCompletionCommandName: "shell-completion",
		Flags: []cli.Flag{
			//nolint:exhaustruct
			&cli.StringFlag{
				Name:     "config",
				Usage:    "Config file path",
				Required: false,
			},
		},
		Commands: []*cli.Command{
			//nolint:exhaustruct
			{
				Name:      "inspect",
				Usage:     "Print the periods, adaptation sets and representations of a manifest",
				ArgsUsage: "<url|file>",
				Flags: []cli.Flag{
					//nolint:exhaustruct
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print JSON instead of a table",
					},
					//nolint:exhaustruct
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Print the value at a JSON path, e.g. periods.0.adaptation_sets.#.lang",
					},
					//nolint:exhaustruct
					&cli.BoolFlag{
						Name:  "qr",
						Usage: "Also print the manifest URL as a QR code",
					},
				},
				Action: inspect,
			},
			//nolint:exhaustruct
			{
				Name:      "segments",
				Usage:     "List the fragments of a representation",
				ArgsUsage: "<url|file>",
				Flags: append(
					streamFlags,
					//nolint:exhaustruct
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of fragments to list",
						Value: 20,
					},
					//nolint:exhaustruct
					&cli.BoolFlag{
						Name:  "now",
						Usage: "Start at the live edge of a dynamic manifest",
					},
					//nolint:exhaustruct
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print JSON instead of a table",
					},
				),
				Action: segments,
			},
			//nolint:exhaustruct
			{
				Name:      "download",
				Usage:     "Download a representation into one file",
				ArgsUsage: "<url>",
				Flags: append(
					streamFlags,
					//nolint:exhaustruct
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"o"},
						Usage:    "Output file name inside the download directory",
						Required: true,
					},
					//nolint:exhaustruct
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of fragments to download, 0 for all",
						Value: 0,
					},
				),
				Action: downloadStream,
			},
			//nolint:exhaustruct
			{
				Name:      "watch",
				Usage:     "Follow live manifests and store every revision",
				ArgsUsage: "<url>...",
				Action:    watch,
			},
			//nolint:exhaustruct
			{
				Name:      "history",
				Usage:     "List stored revisions of a manifest, or the watched manifests",
				ArgsUsage: "[url]",
				Flags: []cli.Flag{
					//nolint:exhaustruct
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of revisions to list",
						Value: 20,
					},
					//nolint:exhaustruct
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print JSON instead of a table",
					},
				},
				Action: history,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); nil != err {
		if errors.Is(err, context.Canceled) {
			logger.Trace().Msg("Application was canceled")
			os.Exit(1)
		}

		var exitCode exitCodeError
		if errors.As(err, &exitCode) {
			os.Exit(int(exitCode))
		}

		logger.Error().Err(err).Msg("Application exited with error")
		os.Exit(10)
	}
}

type exitCodeError int

func (e exitCodeError) Error() string {
	return "error with exit code: " + strconv.Itoa(int(e))
}

func setup(cmd *cli.Command) (zerolog.Logger, *config.Config, error) {
	logger := log.NewDefault()

	if err := godotenv.Load(); nil != err {
		if !errors.Is(err, os.ErrNotExist) {
			return logger, nil, fmt.Errorf("load .env file: %v", err)
		}
		logger.Debug().Msg(".env file was not found")
	} else {
		logger.Debug().Msg(".env file was loaded")
	}

	conf, err := config.Load(cmd.String("config"))
	if nil != err {
		return logger, nil, fmt.Errorf("load config: %v", err)
	}

	logger = log.FromConfig(conf.Log)

	logger.Debug().Dict("config", conf.ToDict()).Msg("Config loaded")

	return logger, conf, nil
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// loader reads manifests from disk or over HTTP, caching remote ones.
type loader struct {
	fetcher *fetch.Fetcher
	cache   *cache.Cache
}

func newLoader(logger zerolog.Logger, conf *config.Config) (*loader, error) {
	f, err := fetch.New(logger, conf.Fetch)
	if nil != err {
		return nil, fmt.Errorf("create fetcher: %v", err)
	}

	return &loader{fetcher: f, cache: cache.New(conf.Cache)}, nil
}

func (l *loader) Close() {
	l.cache.Manifests.Close()
}

func (l *loader) client(ctx context.Context, logger zerolog.Logger, source string) (*dash.Client, error) {
	if !isRemote(source) {
		data, err := os.ReadFile(source)
		if nil != err {
			return nil, fmt.Errorf("read manifest file: %v", err)
		}

		abs, err := filepath.Abs(source)
		if nil != err {
			return nil, fmt.Errorf("resolve manifest path: %v", err)
		}
		location := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String() //nolint:exhaustruct

		return dash.New(logger, data, location)
	}

	item, err := l.cache.Manifests.Fetch(source, l.cache.DefaultTTL, func() (*fetch.Manifest, error) {
		return l.fetcher.Manifest(ctx, logger, source)
	})
	if nil != err {
		return nil, err
	}
	m := item.Value()

	return dash.New(logger, m.Body, m.URL)
}

func inspect(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := setup(cmd)
	if nil != err {
		return err
	}

	source := cmd.Args().First()
	if source == "" {
		logger.Error().Msg("Manifest URL or file is required")
		return exitCodeError(2)
	}

	l, err := newLoader(logger, conf)
	if nil != err {
		return err
	}
	defer l.Close()

	c, err := l.client(ctx, logger, source)
	if nil != err {
		return fmt.Errorf("load manifest: %w", err)
	}

	p := render.Describe(c)

	switch {
	case cmd.String("query") != "":
		out, err := render.Query(p, cmd.String("query"))
		if nil != err {
			if errors.Is(err, render.ErrNoMatch) {
				logger.Error().Str("query", cmd.String("query")).Msg("Query matched nothing")
				return exitCodeError(4)
			}
			return fmt.Errorf("query manifest: %v", err)
		}
		fmt.Fprintln(os.Stdout, out)
	case cmd.Bool("json"):
		if err := render.JSON(os.Stdout, p); nil != err {
			return err
		}
	default:
		render.Table(os.Stdout, p, render.IsTerminal(os.Stdout))
	}

	if cmd.Bool("qr") {
		if err := render.QR(os.Stdout, c.Location()); nil != err {
			return err
		}
	}

	return nil
}

func selectStream(logger zerolog.Logger, cmd *cli.Command, c *dash.Client) (*dash.Stream, error) {
	if err := c.SetPeriodIndex(int(cmd.Int("period"))); nil != err {
		return nil, fmt.Errorf("select period: %w", err)
	}

	asIdx := int(cmd.Int("adaptation-set"))
	sets := c.AdaptationSets()
	if asIdx < 0 || asIdx >= len(sets) {
		return nil, fmt.Errorf("%w: %d", dash.ErrAdaptationSetNotFound, asIdx)
	}

	if maxBandwidth := cmd.Int64("max-bandwidth"); maxBandwidth > 0 {
		return c.SetupStreamWithMaxBandwidth(asIdx, maxBandwidth)
	}

	repID := cmd.String("representation")
	if repID == "" {
		id, err := prompt.SelectRepresentation(&sets[asIdx])
		switch {
		case nil == err:
			repID = id
		case errors.Is(err, syscall.ENOTTY):
			logger.Debug().Msg("No terminal to ask on, using the lowest representation")
		default:
			return nil, err
		}
	}

	return c.SetupStream(asIdx, repID)
}

func segments(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := setup(cmd)
	if nil != err {
		return err
	}

	source := cmd.Args().First()
	if source == "" {
		logger.Error().Msg("Manifest URL or file is required")
		return exitCodeError(2)
	}

	l, err := newLoader(logger, conf)
	if nil != err {
		return err
	}
	defer l.Close()

	c, err := l.client(ctx, logger, source)
	if nil != err {
		return fmt.Errorf("load manifest: %w", err)
	}

	s, err := selectStream(logger, cmd, c)
	if nil != err {
		return fmt.Errorf("set up stream: %w", err)
	}

	if cmd.Bool("now") {
		if ok, err := c.SeekToTime(time.Now()); nil != err {
			return fmt.Errorf("seek to live edge: %w", err)
		} else if !ok {
			logger.Warn().Msg("No fragment is available at the live edge yet")
		}
	}

	fragments, err := s.NextFragments(int(cmd.Int("limit")))
	if nil != err {
		return fmt.Errorf("resolve fragments: %v", err)
	}

	if cmd.Bool("json") {
		return render.JSON(os.Stdout, fragments)
	}
	render.Fragments(os.Stdout, fragments, render.IsTerminal(os.Stdout))

	return nil
}

func downloadStream(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := setup(cmd)
	if nil != err {
		return err
	}

	source := cmd.Args().First()
	if !isRemote(source) {
		logger.Error().Msg("Manifest URL is required")
		return exitCodeError(2)
	}

	l, err := newLoader(logger, conf)
	if nil != err {
		return err
	}
	defer l.Close()

	c, err := l.client(ctx, logger, source)
	if nil != err {
		return fmt.Errorf("load manifest: %w", err)
	}

	s, err := selectStream(logger, cmd, c)
	if nil != err {
		return fmt.Errorf("set up stream: %w", err)
	}

	if _, known := s.SegmentCount(); !known && cmd.Int("limit") <= 0 {
		logger.Error().Msg("Stream has no end, a fragment limit is required")
		return exitCodeError(2)
	}

	d := download.New(l.fetcher, conf.Download)
	done := make(chan struct{})
	go reportProgress(logger, d.Progress(), done)

	res, err := d.Stream(ctx, logger, s, cmd.String("output"), int(cmd.Int("limit")))
	close(done)
	if nil != err {
		return fmt.Errorf("download stream: %w", err)
	}

	logger.
		Info().
		Str("file", res.File).
		Int("fragments", res.Fragments).
		Int64("bytes", res.Bytes).
		Msg("Download finished")

	return nil
}

func reportProgress(logger zerolog.Logger, p *download.Progress, done <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			logger.
				Info().
				Int("percent", p.Percent()).
				Int64("fragments", p.Fragments()).
				Str("downloaded", unit.FormatBytes(p.Bytes())).
				Msg("Downloading")
		}
	}
}

func watch(ctx context.Context, cmd *cli.Command) (err error) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := setup(cmd)
	if nil != err {
		return err
	}

	urls := cmd.Args().Slice()
	if len(urls) == 0 {
		logger.Error().Msg("At least one manifest URL is required")
		return exitCodeError(2)
	}

	f, err := fetch.New(logger, conf.Fetch)
	if nil != err {
		return fmt.Errorf("create fetcher: %v", err)
	}

	st, err := store.Open(conf.Store.Path)
	if nil != err {
		return fmt.Errorf("open store: %v", err)
	}
	defer func() {
		if closeErr := st.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close store")
			err = errors.Join(err, closeErr)
		}
	}()

	var wg errgroup.Group
	for _, link := range urls {
		wg.Go(func() error {
			if err := follow(ctx, logger, f, st, conf.Refresh, link); nil != err {
				logger.Error().Err(err).Str("manifest", redact.URL(link)).Msg("Stopped following manifest")
				return err
			}

			return nil
		})
	}

	if err := wg.Wait(); nil != err {
		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("Watch stopped")
			return nil
		}

		return fmt.Errorf("watch manifests: %w", err)
	}

	return nil
}

func follow(
	ctx context.Context,
	logger zerolog.Logger,
	f *fetch.Fetcher,
	st *store.Store,
	conf config.Refresh,
	link string,
) error {
	updates := make(chan result.Of[dash.Client])

	wg, wgctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		defer close(updates)
		return live.New(logger, f, st, conf, link).Run(wgctx, updates)
	})
	wg.Go(func() error {
		logger := logger.With().Str("manifest", redact.URL(link)).Logger()
		first := true
		for res := range updates {
			c, err := res.Get()
			if nil != err {
				continue
			}

			if first {
				if _, err := c.SetupStream(0, ""); nil != err {
					logger.Warn().Err(err).Msg("Failed to set up a stream to follow")
				}
				first = false
			}

			logUpdate(logger, c)
		}

		return nil
	})

	return wg.Wait()
}

func logUpdate(logger zerolog.Logger, c *dash.Client) {
	now := time.Now()

	if c.IsLive() {
		if _, err := c.SeekToTime(now); nil != err {
			logger.Warn().Err(err).Msg("Failed to seek to live edge")
		}
	}

	for _, s := range c.Streams() {
		ev := logger.
			Info().
			Str("period", c.PeriodID()).
			Int("periods", len(c.Periods())).
			Str("representation", s.Representation.ID)

		if f, err := s.NextFragment(); nil == err {
			ev = ev.Uint32("number", f.Number).Dur("timestamp", f.Timestamp)
		}
		if end, ok := c.NextSegmentAvailabilityEnd(s); ok {
			ev = ev.Time("available_until", end)
		}

		ev.Msg("Manifest updated")
	}
}

func history(_ context.Context, cmd *cli.Command) (err error) {
	logger, conf, err := setup(cmd)
	if nil != err {
		return err
	}

	st, err := store.Open(conf.Store.Path)
	if nil != err {
		return fmt.Errorf("open store: %v", err)
	}
	defer func() {
		if closeErr := st.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close store")
			err = errors.Join(err, closeErr)
		}
	}()

	link := cmd.Args().First()
	if link == "" {
		urls, err := st.URLs()
		if nil != err {
			return err
		}
		for _, u := range urls {
			fmt.Fprintln(os.Stdout, redact.URL(u))
		}

		return nil
	}

	snaps, err := st.History(link, int(cmd.Int("limit")))
	if nil != err {
		if errors.Is(err, store.ErrNotFound) {
			logger.Error().Str("manifest", redact.URL(link)).Msg("No stored revisions of manifest")
			return exitCodeError(3)
		}
		return fmt.Errorf("load history: %v", err)
	}

	if cmd.Bool("json") {
		return render.JSON(os.Stdout, snaps)
	}
	render.History(os.Stdout, snaps, render.IsTerminal(os.Stdout))

	return nil
}
