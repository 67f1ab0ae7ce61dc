package httputil

import (
	"net/http"
	"time"

	"github.com/samuel/go-metrics/metrics"
)

type metricsHandler struct {
	h            http.Handler
	statRequests *metrics.Counter
	statResponse map[int]*metrics.Counter
	statLatency  metrics.Histogram
}

// MetricsHandler wraps a handler to record request counts by status class and
// response latency.
func MetricsHandler(h http.Handler, registry metrics.Registry) http.Handler {
	mh := &metricsHandler{
		h:            h,
		statRequests: metrics.NewCounter(),
		statResponse: map[int]*metrics.Counter{
			2: metrics.NewCounter(),
			3: metrics.NewCounter(),
			4: metrics.NewCounter(),
			5: metrics.NewCounter(),
		},
		statLatency: metrics.NewUnbiasedHistogram(),
	}
	registry.Add("requests/total", mh.statRequests)
	registry.Add("requests/response/2xx", mh.statResponse[2])
	registry.Add("requests/response/3xx", mh.statResponse[3])
	registry.Add("requests/response/4xx", mh.statResponse[4])
	registry.Add("requests/response/5xx", mh.statResponse[5])
	registry.Add("requests/latency", mh.statLatency)
	return mh
}

func (mh *metricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mh.statRequests.Inc(1)
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w}
	mh.h.ServeHTTP(sw, r)
	if sw.status == 0 {
		sw.status = http.StatusOK
	}
	if c := mh.statResponse[sw.status/100]; c != nil {
		c.Inc(1)
	}
	mh.statLatency.Update(time.Since(start).Nanoseconds() / 1e3)
}
