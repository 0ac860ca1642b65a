package app

import (
	"net/http"
	"sync/atomic"
)

func recordAuth(dst *string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h := r.Header.Get("Authorization"); h != "" {
			*dst = h
		}
		next.ServeHTTP(w, r)
	})
}

// limitFirst answers the first n requests with 429 and counts every request
func limitFirst(n int32, calls *atomic.Int32, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= n {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
