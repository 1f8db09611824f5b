package input

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/xoelrdgz/botradar/internal/domain"
	"github.com/xoelrdgz/botradar/internal/ports"
)

var (
	ErrInvalidLogFormat = errors.New("invalid log format")
	ErrMissingTimestamp = errors.New("log entry has no timestamp")

	clfTimeLayout = "02/Jan/2006:15:04:05 -0700"
)

// CombinedLogParser parses the nginx/Apache combined format:
//
//	ip - user [02/Jan/2006:15:04:05 -0700] "GET /path HTTP/1.1" 200 123 "ref" "ua"
//
// Referer and user agent are optional, which also accepts common log format.
type CombinedLogParser struct{}

func NewCombinedLogParser() *CombinedLogParser {
	return &CombinedLogParser{}
}

func (p *CombinedLogParser) Parse(line string) (*domain.LogEntry, error) {
	truncated := false
	if len(line) > domain.MaxLineLength {
		line = line[:domain.MaxLineLength]
		truncated = true
	}

	entry := domain.AcquireLogEntry()
	if err := parseCombined(line, entry); err != nil {
		domain.ReleaseLogEntry(entry)
		return nil, err
	}
	entry.Truncated = truncated
	entry.RawLine = strings.Clone(line)
	return entry, nil
}

func parseCombined(line string, entry *domain.LogEntry) error {
	ipField, rest, ok := strings.Cut(line, " ")
	if !ok || ipField == "" {
		return ErrInvalidLogFormat
	}
	addr, err := netip.ParseAddr(ipField)
	if err != nil {
		return ErrInvalidLogFormat
	}
	entry.IP = addr

	// ident and user
	open := strings.IndexByte(rest, '[')
	if open == -1 {
		return ErrInvalidLogFormat
	}
	rest = rest[open+1:]
	tsField, rest, ok := strings.Cut(rest, "]")
	if !ok {
		return ErrInvalidLogFormat
	}
	ts, err := time.Parse(clfTimeLayout, tsField)
	if err != nil {
		return ErrMissingTimestamp
	}
	entry.Timestamp = ts

	rest = strings.TrimLeft(rest, " ")
	if !strings.HasPrefix(rest, `"`) {
		return ErrInvalidLogFormat
	}
	reqEnd := findClosingQuote(rest, 1)
	if reqEnd == -1 {
		return ErrInvalidLogFormat
	}
	method, path, err := parseRequest(rest[1:reqEnd])
	if err != nil {
		return err
	}
	entry.Method = strings.Clone(method)
	entry.Path = strings.Clone(path)
	rest = strings.TrimLeft(rest[reqEnd+1:], " ")

	statusField, rest, _ := strings.Cut(rest, " ")
	status, err := strconv.Atoi(statusField)
	if err != nil || status < 100 || status > 599 {
		return ErrInvalidLogFormat
	}
	entry.StatusCode = status

	bytesField, rest, _ := strings.Cut(rest, " ")
	if n, err := strconv.Atoi(bytesField); err == nil && n > 0 {
		entry.BytesSent = n
	}

	// referer, then user agent
	rest = strings.TrimLeft(rest, " ")
	if strings.HasPrefix(rest, `"`) {
		if end := findClosingQuote(rest, 1); end != -1 {
			rest = strings.TrimLeft(rest[end+1:], " ")
		}
	}
	if strings.HasPrefix(rest, `"`) {
		if end := findClosingQuote(rest, 1); end != -1 {
			entry.UserAgent = strings.Clone(unescapeQuotes(rest[1:end]))
		}
	}
	return nil
}

func (p *CombinedLogParser) Format() string {
	return "combined"
}

// JSONLogEntry is the nginx JSON log_format understood by JSONParser.
type JSONLogEntry struct {
	Timestamp     string `json:"timestamp"`
	TimeISO8601   string `json:"time_iso8601"`
	RemoteAddr    string `json:"remote_addr"`
	RequestMethod string `json:"request_method"`
	RequestURI    string `json:"request_uri"`
	Status        int    `json:"status"`
	BodyBytesSent int    `json:"body_bytes_sent"`
	HTTPUserAgent string `json:"http_user_agent"`
}

type JSONParser struct {
	maxLineLength int
}

func NewJSONParser() *JSONParser {
	return &JSONParser{
		maxLineLength: domain.MaxLineLength,
	}
}

// Parse decodes one JSON object per line. Unlike live traffic, replayed
// entries must carry their own time; lines without a parseable timestamp
// are rejected with ErrMissingTimestamp.
func (p *JSONParser) Parse(line string) (*domain.LogEntry, error) {
	if len(line) > p.maxLineLength {
		return nil, ErrInvalidLogFormat
	}
	if len(line) < 2 || line[0] != '{' {
		return nil, ErrInvalidLogFormat
	}

	var raw JSONLogEntry
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return nil, ErrInvalidLogFormat
	}

	ts, ok := parseJSONTime(raw.Timestamp)
	if !ok {
		ts, ok = parseJSONTime(raw.TimeISO8601)
	}
	if !ok {
		return nil, ErrMissingTimestamp
	}

	entry := domain.AcquireLogEntry()
	entry.Timestamp = ts
	entry.IP = parseRemoteAddr(raw.RemoteAddr)
	entry.Method = raw.RequestMethod
	entry.Path = raw.RequestURI
	entry.StatusCode = raw.Status
	entry.BytesSent = raw.BodyBytesSent
	entry.UserAgent = raw.HTTPUserAgent
	entry.RawLine = line
	return entry, nil
}

func (p *JSONParser) Format() string {
	return "json"
}

func parseJSONTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, clfTimeLayout} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// parseRemoteAddr accepts a bare address or host:port.
func parseRemoteAddr(s string) netip.Addr {
	if addr, err := netip.ParseAddr(s); err == nil {
		return addr
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		if addr, err := netip.ParseAddr(host); err == nil {
			return addr
		}
	}
	return netip.Addr{}
}

func findClosingQuote(s string, start int) int {
	i := start
	for i < len(s) {
		if s[i] == '\\' && i+1 < len(s) {
			i += 2
			continue
		}
		if s[i] == '"' {
			return i
		}
		i++
	}
	return -1
}

// parseRequest splits `METHOD /path PROTO`; the protocol is optional.
func parseRequest(s string) (method, path string, err error) {
	method, rest, ok := strings.Cut(s, " ")
	if !ok || len(method) < 3 || len(method) > 10 {
		return "", "", ErrInvalidLogFormat
	}
	path = rest
	if i := strings.LastIndexByte(rest, ' '); i > 0 {
		path = rest[:i]
	}
	return method, path, nil
}

func unescapeQuotes(s string) string {
	if !strings.Contains(s, `\"`) {
		return s
	}
	return strings.ReplaceAll(s, `\"`, `"`)
}

// AutoDetectParser picks JSON for lines starting with '{' and combined
// format otherwise.
type AutoDetectParser struct {
	jsonParser *JSONParser
	clfParser  *CombinedLogParser
}

func NewAutoDetectParser() *AutoDetectParser {
	return &AutoDetectParser{
		jsonParser: NewJSONParser(),
		clfParser:  NewCombinedLogParser(),
	}
}

func (p *AutoDetectParser) Parse(line string) (*domain.LogEntry, error) {
	if len(line) > 0 && line[0] == '{' {
		return p.jsonParser.Parse(line)
	}
	return p.clfParser.Parse(line)
}

func (p *AutoDetectParser) Format() string {
	return "auto"
}

// NewParser returns the parser for a format name: "combined", "json" or
// "auto".
func NewParser(format string) (ports.LineParser, error) {
	switch format {
	case "", "auto":
		return NewAutoDetectParser(), nil
	case "combined", "clf", "nginx":
		return NewCombinedLogParser(), nil
	case "json":
		return NewJSONParser(), nil
	default:
		return nil, fmt.Errorf("unknown log format: %q", format)
	}
}
