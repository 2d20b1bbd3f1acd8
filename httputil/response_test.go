package httputil_test

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/mpdq/dash/value"
	"github.com/xeptore/mpdq/httputil"
)

func response(body string) *http.Response {
	return &http.Response{ //nolint:exhaustruct
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestReadResponseBody(t *testing.T) {
	t.Parallel()

	b, err := httputil.ReadResponseBody(response("<MPD/>"), 6)
	require.NoError(t, err)
	assert.Equal(t, "<MPD/>", string(b))

	_, err = httputil.ReadResponseBody(response("<MPD/>"), 5)
	require.ErrorIs(t, err, httputil.ErrBodyTooLarge)

	_, err = httputil.ReadResponseBody(response(""), 0)
	require.ErrorIs(t, err, httputil.ErrEmptyBody)

	b, err = httputil.ReadOptionalResponseBody(response(""), 0)
	require.NoError(t, err)
	assert.Empty(t, b)
}

func TestRangeHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    *value.Range
		expected string
	}{
		{name: "none", input: nil, expected: ""},
		{name: "closed", input: &value.Range{First: 100, Last: 199}, expected: "bytes=100-199"},
		{name: "single byte", input: &value.Range{First: 0, Last: 0}, expected: "bytes=0-0"},
		{name: "open tail", input: &value.Range{First: 100, Last: 0}, expected: "bytes=100-"},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, httputil.RangeHeader(test.input), test.name)
	}
}

func TestIsRetryableStatus(t *testing.T) {
	t.Parallel()

	assert.True(t, httputil.IsRetryableStatus(http.StatusTooManyRequests))
	assert.True(t, httputil.IsRetryableStatus(http.StatusServiceUnavailable))
	assert.False(t, httputil.IsRetryableStatus(http.StatusNotFound))
	assert.False(t, httputil.IsRetryableStatus(http.StatusOK))
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "token expired", httputil.ErrorMessage([]byte(`{"status":403,"message":"token expired"}`)))
	assert.Equal(t, "nope", httputil.ErrorMessage([]byte(`{"error":{"message":"nope"}}`)))
	assert.Equal(t, "Forbidden", httputil.ErrorMessage([]byte("Forbidden")))
	assert.Len(t, httputil.ErrorMessage([]byte(strings.Repeat("x", 1000))), 259)
}
