package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"

	"github.com/xeptore/beater/config"
	"github.com/xeptore/beater/httputil"
)

func newHTTPClient(conf config.SpotifySession) (*http.Client, error) {
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
			return nil, fmt.Errorf("create socks5 dialer: %v", err)
		}
		dc, ok := sock5.(proxy.ContextDialer)
		if !ok {
			return nil, errors.New("failed to cast proxy to ContextDialer")
		}
		transport.Proxy = nil
		transport.DialContext = dc.DialContext
	}

	return &http.Client{Transport: transport}, nil //nolint:exhaustruct
}

type request struct {
	method  string
	url     string
	body    io.Reader
	headers map[string]string
	timeout time.Duration
	auth    bool
}

// do sends req and returns the 2xx response body. Status codes are mapped to
// the package's error kinds.
func (s *Session) do(ctx context.Context, logger zerolog.Logger, req request) (b []byte, status int, err error) {
	if err := s.limiter.Wait(ctx); nil != err {
		return nil, 0, fmt.Errorf("wait for rate limiter: %w", err)
	}

	if req.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, req.body)
	if nil != err {
		logger.Error().Err(err).Msg("Failed to create request")
		return nil, 0, fmt.Errorf("create request: %v", err)
	}

	httpReq.Header.Set("User-Agent", s.conf.UserAgent)
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	if req.auth {
		t, err := s.currentToken()
		if nil != err {
			return nil, 0, err
		}
		httpReq.Header.Set("Authorization", "Bearer "+t.AccessToken)
	}

	resp, err := s.client.Do(httpReq)
	if nil != err {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, context.DeadlineExceeded
		}

		if errors.Is(err, context.Canceled) {
			return nil, 0, context.Canceled
		}

		logger.Error().Err(err).Msg("Failed to send request")

		return nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close response body")
			err = errors.Join(err, fmt.Errorf("close response body: %v", closeErr))
		}
	}()

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		respBytes, err := httputil.ReadResponseBody(resp)
		if nil != err {
			logger.Error().Err(err).Int("status_code", code).Msg("Failed to read response body")
			return nil, code, err
		}

		return respBytes, code, nil
	case code == http.StatusUnauthorized:
		respBytes, err := httputil.ReadErrorBody(resp)
		if nil != err {
			return nil, code, err
		}

		if httputil.IsTokenExpiredResponse(respBytes) {
			s.token.Store(nil)
		}

		return nil, code, fmt.Errorf("%w: %s", ErrUnauthorized, httputil.ErrorMessage(respBytes))
	case code == http.StatusNotFound:
		return nil, code, ErrNotFound
	case code == http.StatusTooManyRequests:
		return nil, code, ErrTooManyRequests
	case code == http.StatusForbidden:
		respBytes, err := httputil.ReadErrorBody(resp)
		if nil != err {
			return nil, code, err
		}

		return nil, code, fmt.Errorf("%w: %s", ErrForbidden, httputil.ErrorMessage(respBytes))
	default:
		respBytes, err := httputil.ReadErrorBody(resp)
		if nil != err {
			return nil, code, err
		}

		logger.Error().Int("status_code", code).Bytes("response_body", respBytes).Msg("Unexpected response status code")

		return nil, code, fmt.Errorf("unexpected response code %d with body: %s", code, httputil.ErrorMessage(respBytes))
	}
}
