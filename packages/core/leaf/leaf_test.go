package leaf

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseHelpers(t *testing.T) {
	resp := &Response{
		Status: 200,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
			"X-Request-Id": "abc",
		},
		Cookies:  map[string]string{"session": "s1"},
		Body:     []byte(`{"id": 7}`),
		Duration: 1500 * time.Microsecond,
	}

	assert.Equal(t, "abc", resp.Header("x-request-id"))
	assert.Equal(t, "", resp.Header("missing"))
	assert.Equal(t, "s1", resp.Cookie("session"))
	assert.True(t, resp.IsJSON())
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, 1.5, resp.DurationMs())

	body, err := resp.BodyJSON()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": float64(7)}, body)
}

func TestResponseJSONSniffing(t *testing.T) {
	noHeader := &Response{Body: []byte(`  [1, 2]`)}
	assert.True(t, noHeader.IsJSON())

	plain := &Response{Body: []byte("plain text")}
	assert.False(t, plain.IsJSON())
}

func TestErrorKinds(t *testing.T) {
	base := NewError(KindNetwork, "connection refused to %s", "localhost:9999")
	assert.Equal(t, KindNetwork, KindOf(base))
	assert.Contains(t, base.Error(), "network")
	assert.Contains(t, base.Error(), "localhost:9999")

	wrapped := fmt.Errorf("step failed: %w", base)
	assert.Equal(t, KindNetwork, KindOf(wrapped))

	plain := errors.New("anything")
	assert.Equal(t, KindSystem, KindOf(plain))
}

func TestErrorPartial(t *testing.T) {
	resp := &Response{Status: 500, Body: []byte("boom")}
	err := NewError(KindBusiness, "server rejected request").WithPartial(resp)

	wrapped := fmt.Errorf("attempt 2: %w", err)
	got := PartialOf(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, 500, got.Status)

	assert.Nil(t, PartialOf(errors.New("bare")))
}

func TestWrapErrorUnwraps(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := WrapError(KindNetwork, cause, "GET http://localhost failed")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "dial tcp")
}
