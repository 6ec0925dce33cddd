package observability

import (
	"net"
	"net/http"
	"strings"
)

// RequestMeta is the caller metadata attached to events and logs.
type RequestMeta struct {
	RequestID string
	DeviceID  string
	IP        string
}

// RequestMetaFrom extracts RequestMeta from gateway headers. The client IP is
// the first X-Forwarded-For hop, then X-Real-IP, then the socket peer.
func RequestMetaFrom(r *http.Request) RequestMeta {
	return RequestMeta{
		RequestID: r.Header.Get("X-Request-Id"),
		DeviceID:  r.Header.Get("X-Device-Id"),
		IP:        clientIP(r),
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
