package httputil

import (
	"net/http"
	"net/url"
	"os"
	"runtime"
	"time"
)

// RequestEvent is the information provided to a request logger after a
// request completes.
type RequestEvent struct {
	Timestamp       time.Time
	Request         *http.Request
	URL             *url.URL
	StatusCode      int
	ResponseTime    time.Duration
	ResponseHeaders http.Header
	RemoteAddr      string
	ServerHostname  string
	Panic           interface{}
	StackTrace      []byte
}

// RequestLogger receives one event per completed request.
type RequestLogger func(ev *RequestEvent)

type loggingHandler struct {
	h        http.Handler
	log      RequestLogger
	hostname string
}

// LoggingHandler wraps a handler recovering panics and reporting every
// request to the provided logger.
func LoggingHandler(h http.Handler, log RequestLogger) http.Handler {
	hostname, _ := os.Hostname()
	return &loggingHandler{h: h, log: log, hostname: hostname}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (h *loggingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w}
	// Save the URL since handlers are allowed to mutate the request
	earl := *r.URL

	ev := &RequestEvent{
		Timestamp:      start,
		Request:        r,
		URL:            &earl,
		RemoteAddr:     r.RemoteAddr,
		ServerHostname: h.hostname,
	}
	defer func() {
		if p := recover(); p != nil {
			buf := make([]byte, 1<<16)
			buf = buf[:runtime.Stack(buf, false)]
			ev.Panic = p
			ev.StackTrace = buf
			if sw.status == 0 {
				http.Error(sw, "Internal server error", http.StatusInternalServerError)
			}
		}
		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		ev.StatusCode = sw.status
		ev.ResponseTime = time.Since(start)
		ev.ResponseHeaders = sw.Header()
		h.log(ev)
	}()
	h.h.ServeHTTP(sw, r)
}
