// Package proxy implements the HTTP surface of botradar: a reverse proxy
// that classifies every request's client before forwarding it.
//
// Request Flow:
//  1. Gate resolves the client identifier and asks the detection engine
//  2. Bad clients get 401 and never reach the backend
//  3. Suspicious requests gain a Bot-Probability header
//  4. Everything else is forwarded through the circuit-breaking backend
package proxy

import (
	"net"
	"net/http"
	"strings"

	"github.com/xoelrdgz/botradar/pkg/sanitize"
)

// ClientID derives the client identifier from a request.
//
// By default only the host part of RemoteAddr is used. When trustForwarded
// is set (the proxy sits behind another proxy or a CDN), X-Real-IP,
// CF-Connecting-IP and the first X-Forwarded-For entry are consulted first,
// in that order.
//
// Header values are client controlled, so they are reduced to printable
// ASCII and capped at sanitize.MaxClientIDLength before use as a key.
//
// Returns the raw RemoteAddr if it has no port, and "" if nothing is known.
// Every string, including "", is a valid registry key.
func ClientID(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if ip := sanitize.Identifier(forwardedIP(r.Header), sanitize.MaxClientIDLength); ip != "" {
			return ip
		}
	}
	return hostOnly(r.RemoteAddr)
}

func forwardedIP(h http.Header) string {
	if v := strings.TrimSpace(h.Get("X-Real-IP")); v != "" {
		return hostOnly(v)
	}
	if v := strings.TrimSpace(h.Get("CF-Connecting-IP")); v != "" {
		return hostOnly(v)
	}
	if v := h.Get("X-Forwarded-For"); v != "" {
		first, _, _ := strings.Cut(v, ",")
		if first = strings.TrimSpace(first); first != "" {
			return hostOnly(first)
		}
	}
	return ""
}

// hostOnly strips an optional port. Addresses without a port are returned
// unchanged.
func hostOnly(addr string) string {
	addr = strings.TrimSpace(addr)
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
