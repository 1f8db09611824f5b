package proxy

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientID(t *testing.T) {
	tests := []struct {
		name           string
		remoteAddr     string
		headers        map[string]string
		trustForwarded bool
		want           string
	}{
		{"ipv4 with port", "192.0.2.1:54321", nil, false, "192.0.2.1"},
		{"ipv6 with port", "[2001:db8::1]:443", nil, false, "2001:db8::1"},
		{"no port", "192.0.2.1", nil, false, "192.0.2.1"},
		{"empty", "", nil, false, ""},
		{"headers ignored by default", "192.0.2.1:1", map[string]string{"X-Real-IP": "198.51.100.7"}, false, "192.0.2.1"},
		{"x-real-ip", "192.0.2.1:1", map[string]string{"X-Real-IP": "198.51.100.7"}, true, "198.51.100.7"},
		{"cf-connecting-ip", "192.0.2.1:1", map[string]string{"CF-Connecting-IP": "198.51.100.8"}, true, "198.51.100.8"},
		{"x-forwarded-for first entry", "192.0.2.1:1", map[string]string{"X-Forwarded-For": " 203.0.113.5 , 10.0.0.1"}, true, "203.0.113.5"},
		{"x-real-ip wins", "192.0.2.1:1", map[string]string{"X-Real-IP": "198.51.100.7", "X-Forwarded-For": "203.0.113.5"}, true, "198.51.100.7"},
		{"no headers falls back", "192.0.2.1:1", nil, true, "192.0.2.1"},
		{"empty forwarded list falls back", "192.0.2.1:1", map[string]string{"X-Forwarded-For": " , 10.0.0.1"}, true, "192.0.2.1"},
		{"control characters stripped", "192.0.2.1:1", map[string]string{"X-Real-IP": "198.51.100.7\x1b[2J"}, true, "198.51.100.7[2J"},
		{"oversized header truncated", "192.0.2.1:1", map[string]string{"X-Real-IP": strings.Repeat("a", 300)}, true, strings.Repeat("a", 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientID(r, tt.trustForwarded))
		})
	}
}
