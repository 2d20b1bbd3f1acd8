package httputil

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/xeptore/mpdq/dash/value"
)

var (
	ErrEmptyBody    = errors.New("unexpected empty response body")
	ErrBodyTooLarge = errors.New("response body exceeds size limit")
)

const maxErrorMessageLen = 256

// ReadResponseBody reads at most limit bytes of the body. A non-positive
// limit reads everything.
func ReadResponseBody(resp *http.Response, limit int64) ([]byte, error) {
	respBody, err := ReadOptionalResponseBody(resp, limit)
	if nil != err {
		return nil, err
	}
	if len(respBody) == 0 {
		return nil, ErrEmptyBody
	}

	return respBody, nil
}

func ReadOptionalResponseBody(resp *http.Response, limit int64) ([]byte, error) {
	r := io.Reader(resp.Body)
	if limit > 0 {
		r = io.LimitReader(resp.Body, limit+1)
	}

	respBody, err := io.ReadAll(r)
	if nil != err {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}
	if limit > 0 && int64(len(respBody)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, limit)
	}

	return respBody, nil
}

// IsRetryableStatus reports whether a request that got code is worth repeating.
func IsRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// RangeHeader formats r as a Range header value. A last byte before the
// first one leaves the range open ended, which is how "100-" parses.
func RangeHeader(r *value.Range) string {
	if nil == r {
		return ""
	}

	first := strconv.FormatUint(r.First, 10)
	if r.Last < r.First {
		return "bytes=" + first + "-"
	}

	return "bytes=" + first + "-" + strconv.FormatUint(r.Last, 10)
}

// ErrorMessage extracts a readable message from an error response body.
// JSON bodies contribute their "message" or "error" field.
func ErrorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"message", "error.message", "error", "detail"} {
			if v := gjson.GetBytes(body, path); v.Type == gjson.String {
				return v.String()
			}
		}
	}

	if len(body) > maxErrorMessageLen {
		return string(body[:maxErrorMessageLen]) + "..."
	}

	return string(body)
}
