package middleware

import (
	"net/http"

	"github.com/Migiro-Johans/HRS/internal/transport/http/api"
)

// BodyLimit caps mutation payloads. Requests declaring an oversized body are
// refused before any of it is read; undeclared lengths are still cut off by
// MaxBytesReader during decode.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
				if r.ContentLength > maxBytes {
					api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds the allowed size", GetRequestID(r.Context()))
					return
				}
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
