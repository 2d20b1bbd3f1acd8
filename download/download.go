// Package download saves a stream's segments into a single media file.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/xeptore/mpdq/config"
	"github.com/xeptore/mpdq/dash"
	"github.com/xeptore/mpdq/dash/value"
	"github.com/xeptore/mpdq/iterutil"
	"github.com/xeptore/mpdq/mathutil"
	"github.com/xeptore/mpdq/must"
)

var ErrNoFragments = errors.New("stream has no fragments to download")

type SegmentFetcher interface {
	Segment(ctx context.Context, logger zerolog.Logger, uri string, r *value.Range, w io.Writer) (int64, error)
}

// Dir is the directory downloads are written into.
type Dir string

func (d Dir) File(name string) string {
	return filepath.Join(string(d), name)
}

type Result struct {
	File      string
	Fragments int
	Bytes     int64
}

type Downloader struct {
	fetcher  SegmentFetcher
	conf     config.Download
	progress Progress
}

func New(fetcher SegmentFetcher, conf config.Download) *Downloader {
	must.Be(conf.Workers > 0, "download workers must be positive")
	must.Be(conf.ChunkSegments > 0, "download chunk size must be positive")

	return &Downloader{fetcher: fetcher, conf: conf, progress: Progress{}} //nolint:exhaustruct
}

// Progress reports on the download currently running.
func (d *Downloader) Progress() *Progress {
	return &d.progress
}

// Stream writes the initialization segment followed by up to limit media
// fragments of s into fileName under the download directory. A non-positive
// limit downloads every fragment, which never ends for streams of unknown
// length.
func (d *Downloader) Stream(
	ctx context.Context,
	logger zerolog.Logger,
	s *dash.Stream,
	fileName string,
	limit int,
) (res *Result, err error) {
	fileName = Dir(d.conf.Dir).File(fileName)
	logger = logger.With().Str("file", fileName).Str("representation", s.Representation.ID).Logger()

	fragments, err := iterutil.Collect2(iterutil.Take2(s.Fragments(), limit))
	if nil != err {
		logger.Error().Err(err).Msg("Failed to resolve stream fragments")
		return nil, fmt.Errorf("resolve fragments: %v", err)
	}
	if len(fragments) == 0 {
		return nil, ErrNoFragments
	}

	initialization, hasInit, err := s.Initialization()
	if nil != err {
		logger.Error().Err(err).Msg("Failed to resolve initialization segment")
		return nil, fmt.Errorf("resolve initialization segment: %v", err)
	}

	d.progress.start(len(fragments))

	numChunks := mathutil.DivCeil(len(fragments), d.conf.ChunkSegments)
	logger.Debug().Int("fragments", len(fragments)).Int("chunks", numChunks).Msg("Downloading stream")

	wg, wgctx := errgroup.WithContext(ctx)
	wg.SetLimit(d.conf.Workers)
	for i, chunk := range iterutil.WithIndex(slices.Chunk(fragments, d.conf.ChunkSegments)) {
		wg.Go(func() error {
			select {
			case <-wgctx.Done():
				return nil
			default:
			}

			logger := logger.With().Int("chunk_index", i).Logger()

			if err := d.downloadChunk(wgctx, logger, chunkFileName(fileName, i), chunk); nil != err {
				return fmt.Errorf("download chunk %d: %w", i, err)
			}

			return nil
		})
	}

	if err := wg.Wait(); nil != err {
		removeChunks(logger, fileName, numChunks)
		return nil, fmt.Errorf("wait for download workers: %w", err)
	}

	f, err := os.OpenFile(fileName, os.O_CREATE|os.O_SYNC|os.O_TRUNC|os.O_WRONLY, 0o0600)
	if nil != err {
		logger.Error().Err(err).Msg("Failed to create media file")
		removeChunks(logger, fileName, numChunks)
		return nil, fmt.Errorf("create media file: %v", err)
	}
	defer func() {
		if closeErr := f.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close media file")
			err = errors.Join(err, fmt.Errorf("close media file: %v", closeErr))
		}
		if nil != err {
			removeChunks(logger, fileName, numChunks)
			if removeErr := os.Remove(fileName); nil != removeErr && !errors.Is(removeErr, os.ErrNotExist) {
				logger.Error().Err(removeErr).Msg("Failed to remove incomplete media file")
				err = errors.Join(err, fmt.Errorf("remove incomplete media file: %v", removeErr))
			}
			res = nil
		}
	}()

	var written int64
	if hasInit {
		n, err := d.fetcher.Segment(ctx, logger, initialization.URI, initialization.Range, f)
		if nil != err {
			return nil, fmt.Errorf("download initialization segment: %w", err)
		}
		written += n
		d.progress.add(n, false)
	}

	for i := range numChunks {
		n, err := appendChunk(f, logger, chunkFileName(fileName, i))
		if nil != err {
			return nil, fmt.Errorf("write chunk %d to media file: %v", i, err)
		}
		written += n
	}

	if err := f.Sync(); nil != err {
		logger.Error().Err(err).Msg("Failed to sync media file")
		return nil, fmt.Errorf("sync media file: %v", err)
	}

	logger.Info().Int64("bytes", written).Int("fragments", len(fragments)).Msg("Stream downloaded")

	return &Result{File: fileName, Fragments: len(fragments), Bytes: written}, nil
}

func chunkFileName(fileName string, idx int) string {
	return fileName + ".chunk." + strconv.Itoa(idx)
}

func (d *Downloader) downloadChunk(
	ctx context.Context,
	logger zerolog.Logger,
	fileName string,
	fragments []dash.Fragment,
) (err error) {
	f, err := os.OpenFile(fileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_SYNC, 0o600)
	if nil != err {
		logger.Error().Err(err).Msg("Failed to create chunk file")
		return fmt.Errorf("create chunk file: %v", err)
	}
	defer func() {
		if closeErr := f.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close chunk file")
			err = errors.Join(err, fmt.Errorf("close chunk file: %v", closeErr))
		}
	}()

	for _, frag := range fragments {
		logger := logger.With().Uint32("number", frag.Number).Dur("timestamp", frag.Timestamp).Logger()
		n, err := d.fetcher.Segment(ctx, logger, frag.URI, frag.Range, f)
		if nil != err {
			logger.Error().Err(err).Msg("Failed to download media segment")
			return fmt.Errorf("download media segment %d: %w", frag.Number, err)
		}
		d.progress.add(n, true)
	}

	return nil
}

func appendChunk(f *os.File, logger zerolog.Logger, chunkFileName string) (n int64, err error) {
	fp, err := os.OpenFile(chunkFileName, os.O_RDONLY, 0o0600)
	if nil != err {
		logger.Error().Err(err).Msg("Failed to open chunk file")
		return 0, fmt.Errorf("open chunk file: %v", err)
	}
	defer func() {
		if closeErr := fp.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close chunk file")
			err = errors.Join(err, fmt.Errorf("close chunk file: %v", closeErr))
		}
	}()

	n, err = io.Copy(f, fp)
	if nil != err {
		logger.Error().Err(err).Msg("Failed to copy chunk to media file")
		return n, fmt.Errorf("copy chunk to media file: %v", err)
	}

	if err := os.Remove(chunkFileName); nil != err {
		logger.Error().Err(err).Msg("Failed to remove chunk file")
		return n, fmt.Errorf("remove chunk file: %v", err)
	}

	return n, nil
}

func removeChunks(logger zerolog.Logger, fileName string, numChunks int) {
	for i := range numChunks {
		name := chunkFileName(fileName, i)
		if err := os.Remove(name); nil != err && !errors.Is(err, os.ErrNotExist) {
			logger.Error().Err(err).Str("chunk_file", name).Msg("Failed to remove chunk file")
		}
	}
}
