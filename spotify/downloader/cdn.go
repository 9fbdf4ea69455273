package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/xeptore/beater/httputil"
	"github.com/xeptore/beater/mathutil"
	"github.com/xeptore/beater/spotify/session"
	"github.com/xeptore/beater/spotify/types"
	"github.com/xeptore/beater/unit"
)

const (
	cdnChunkSize       = 1 * unit.Mebibyte
	defaultMaxFileSize = 512 * unit.Mebibyte
)

func (d *Downloader) maxFileSize() int {
	if d.conf.MaxFileSizeMiB > 0 {
		return d.conf.MaxFileSizeMiB * unit.Mebibyte
	}

	return defaultMaxFileSize
}

// fetch resolves the file to a signed CDN URL and downloads it whole.
func (d *Downloader) fetch(ctx context.Context, logger zerolog.Logger, fileID types.FileID) ([]byte, error) {
	urls, err := d.session.ResolveCDN(ctx, logger, fileID)
	if nil != err {
		return nil, fmt.Errorf("%w: %w", ErrCDNResolutionFailed, err)
	}

	cdnURL, ok := lo.Find(urls, usableURL)
	if !ok {
		logger.Error().Strs("urls", urls).Msg("No usable CDN URL")
		return nil, fmt.Errorf("%w: no usable url among %d", ErrCDNResolutionFailed, len(urls))
	}

	return d.fetchBlob(ctx, logger, cdnURL)
}

func usableURL(s string) bool {
	u, err := url.Parse(s)
	return nil == err && (u.Scheme == "http" || u.Scheme == "https") && len(u.Host) > 0
}

// fetchBlob requests the first chunk and, when the server answers with a
// partial response, downloads the remaining chunks concurrently into the
// same buffer.
func (d *Downloader) fetchBlob(ctx context.Context, logger zerolog.Logger, cdnURL string) ([]byte, error) {
	first, err := d.getRange(ctx, logger, cdnURL, 0, cdnChunkSize-1)
	if nil != err {
		return nil, err
	}

	if first.status == http.StatusOK || first.total <= len(first.body) {
		return first.body, nil
	}

	blob := make([]byte, first.total)
	copy(blob, first.body)

	wg, wgctx := errgroup.WithContext(ctx)
	wg.SetLimit(max(1, d.conf.Concurrency.CDNChunks))

	for i, span := range mathutil.Spans(first.total, cdnChunkSize)[1:] {
		wg.Go(func() error {
			c, err := d.getRange(wgctx, logger, cdnURL, span.Start, span.End)
			if nil != err {
				return fmt.Errorf("download chunk %d: %w", i+1, err)
			}

			if c.status != http.StatusPartialContent || c.total != first.total {
				return fmt.Errorf(
					"%w: chunk %d answered with status %d and total size %d, expected %d",
					ErrFetchFailed,
					i+1,
					c.status,
					c.total,
					first.total,
				)
			}
			copy(blob[span.Start:], c.body)

			return nil
		})
	}

	if err := wg.Wait(); nil != err {
		return nil, err
	}

	return blob, nil
}

type chunk struct {
	status int
	total  int
	body   []byte
}

func (d *Downloader) getRange(
	ctx context.Context,
	logger zerolog.Logger,
	cdnURL string,
	start, end int,
) (c *chunk, err error) {
	if timeout := d.conf.Timeouts.DownloadCDNChunk.Duration; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cdnURL, nil)
	if nil != err {
		return nil, fmt.Errorf("%w: create request: %v", ErrFetchFailed, err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	resp, err := d.session.HTTPClient().Do(req)
	if nil != err {
		if errors.Is(err, context.Canceled) {
			return nil, context.Canceled
		}

		logger.Error().Err(err).Int("range_start", start).Msg("Failed to send CDN request")

		return nil, fmt.Errorf("%w: send request: %w", ErrFetchFailed, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close CDN response body")
			err = errors.Join(err, fmt.Errorf("close cdn response body: %v", closeErr))
		}
	}()

	switch code := resp.StatusCode; code {
	case http.StatusOK:
		body, err := httputil.ReadLimitedBody(resp, int64(d.maxFileSize()))
		if nil != err {
			return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}

		return &chunk{status: code, total: len(body), body: body}, nil
	case http.StatusPartialContent:
		total, err := contentRangeTotal(resp.Header.Get("Content-Range"), d.maxFileSize())
		if nil != err {
			return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
		}

		want := min(end, total-1) - start + 1
		body := make([]byte, want)
		if _, err := io.ReadFull(resp.Body, body); nil != err {
			logger.Error().Err(err).Int("range_start", start).Int("expected", want).Msg("Short CDN read")
			return nil, fmt.Errorf("%w: read range %d-%d: %w", ErrFetchFailed, start, end, err)
		}

		return &chunk{status: code, total: total, body: body}, nil
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, session.ErrTooManyRequests)
	default:
		respBytes, err := httputil.ReadErrorBody(resp)
		if nil != err {
			return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}

		logger.Error().Int("status_code", code).Bytes("response_body", respBytes).Msg("Unexpected CDN response status code")

		return nil, fmt.Errorf("%w: unexpected response code %d", ErrFetchFailed, code)
	}
}

// contentRangeTotal extracts the complete length of a "bytes a-b/total"
// header value. Totals above limit are rejected.
func contentRangeTotal(v string, limit int) (int, error) {
	_, totalStr, ok := strings.Cut(v, "/")
	if !ok || totalStr == "*" {
		return 0, fmt.Errorf("unusable content range %q", v)
	}

	total, err := strconv.Atoi(totalStr)
	if nil != err || total <= 0 {
		return 0, fmt.Errorf("invalid content range total %q", v)
	}

	if total > limit {
		return 0, fmt.Errorf("file size %d exceeds the %d bytes limit", total, limit)
	}

	return total, nil
}
