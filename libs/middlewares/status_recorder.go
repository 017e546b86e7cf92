package middlewares

import "net/http"

// StatusRecorder wraps http.ResponseWriter to capture status code and body size
type StatusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

// NewStatusRecorder wraps w, defaulting the status to 200
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *StatusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *StatusRecorder) Write(p []byte) (int, error) {
	n, err := r.ResponseWriter.Write(p)
	r.bytes += n
	return n, err
}

// Status returns the recorded status code
func (r *StatusRecorder) Status() int { return r.status }

// Bytes returns the number of body bytes written
func (r *StatusRecorder) Bytes() int { return r.bytes }
