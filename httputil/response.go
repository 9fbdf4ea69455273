package httputil

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

var ErrBodyTooLarge = errors.New("response body too large")

// ReadLimitedBody reads at most limit bytes of the response body and fails
// with ErrBodyTooLarge when there is more.
func ReadLimitedBody(resp *http.Response, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if nil != err {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if int64(len(b)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, limit)
	}

	return b, nil
}

func ReadResponseBody(resp *http.Response) ([]byte, error) {
	respBody, err := io.ReadAll(resp.Body)
	if nil != err {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return respBody, nil
}

// ReadErrorBody reads a non-2xx response body. A failed read is folded into
// the returned error so callers always get something to report.
func ReadErrorBody(resp *http.Response) ([]byte, error) {
	b, err := ReadResponseBody(resp)
	if nil != err {
		return nil, errors.Join(
			fmt.Errorf("unexpected response code %d", resp.StatusCode),
			err,
		)
	}

	return b, nil
}

// ErrorMessage extracts the message of an {"error":{"status":..,"message":..}}
// body, or returns the raw body when it does not have that shape.
func ErrorMessage(b []byte) string {
	if !gjson.ValidBytes(b) {
		return string(b)
	}

	if msg := gjson.GetBytes(b, "error.message"); msg.Type == gjson.String {
		return msg.Str
	}

	if msg := gjson.GetBytes(b, "error_description"); msg.Type == gjson.String {
		return msg.Str
	}

	return string(b)
}

func IsTokenExpiredResponse(b []byte) bool {
	if !gjson.ValidBytes(b) {
		return false
	}

	return gjson.GetBytes(b, "error.status").Int() == http.StatusUnauthorized &&
		gjson.GetBytes(b, "error.message").Str == "The access token expired"
}
