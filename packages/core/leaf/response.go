package leaf

import (
	"encoding/json"
	"strings"
	"time"
)

// Response is the normalized outcome of a leaf operation. HTTP leaves
// fill every field; database and script leaves map their output onto
// Status and Body so extraction and validation work uniformly.
type Response struct {
	Status   int
	Headers  map[string]string
	Cookies  map[string]string
	Body     []byte
	Duration time.Duration

	// Raw keeps the leaf-specific payload (rows, process state) for
	// reporters that want more than the normalized view.
	Raw any
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

func (r *Response) BodyJSON() (any, error) {
	var result any
	if err := json.Unmarshal(r.Body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Header looks a header up case-insensitively.
func (r *Response) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Cookie looks a cookie up by exact name.
func (r *Response) Cookie(name string) string {
	return r.Cookies[name]
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	if strings.Contains(r.ContentType(), "application/json") {
		return true
	}
	// DB and script leaves emit JSON bodies without headers.
	trimmed := strings.TrimSpace(string(r.Body))
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

func (r *Response) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 300
}

func (r *Response) DurationMs() float64 {
	return float64(r.Duration.Microseconds()) / 1000.0
}
