package middleware

import (
	"bytes"
	"net/http"
)

// responseRecorder wraps an http.ResponseWriter and tees the response
// body into a buffer while streaming it to the client unchanged. The
// original requester always receives exactly what the handler wrote.
type responseRecorder struct {
	rw          http.ResponseWriter
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{rw: w, status: http.StatusOK}
}

func (r *responseRecorder) Header() http.Header {
	return r.rw.Header()
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = statusCode
	r.rw.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(b)
	return r.rw.Write(b)
}

// StatusCode returns the status written by the handler, or 200 when
// the handler never called WriteHeader explicitly.
func (r *responseRecorder) StatusCode() int {
	return r.status
}

// Body returns the captured response body.
func (r *responseRecorder) Body() []byte {
	return r.body.Bytes()
}
