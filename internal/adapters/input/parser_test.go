package input

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombinedLogParser(t *testing.T) {
	parser := NewCombinedLogParser()

	tests := []struct {
		name       string
		line       string
		wantErr    error
		wantIP     string
		wantMethod string
		wantPath   string
		wantStatus int
		wantUA     string
	}{
		{
			name:       "valid GET request",
			line:       `192.168.1.10 - - [28/Dec/2025:10:00:00 +0000] "GET /admin/login.php HTTP/1.1" 401 1234 "-" "Mozilla/5.0"`,
			wantIP:     "192.168.1.10",
			wantMethod: "GET",
			wantPath:   "/admin/login.php",
			wantStatus: 401,
			wantUA:     "Mozilla/5.0",
		},
		{
			name:       "valid POST request",
			line:       `10.0.0.1 - frank [28/Dec/2025:12:30:45 +0100] "POST /api/users HTTP/1.1" 201 5678 "-" "curl/7.68.0"`,
			wantIP:     "10.0.0.1",
			wantMethod: "POST",
			wantPath:   "/api/users",
			wantStatus: 201,
			wantUA:     "curl/7.68.0",
		},
		{
			name:       "common log format without referer",
			line:       `172.16.0.1 - - [01/Jan/2025:00:00:00 +0000] "GET /search?q=test HTTP/1.0" 200 -`,
			wantIP:     "172.16.0.1",
			wantMethod: "GET",
			wantPath:   "/search?q=test",
			wantStatus: 200,
		},
		{
			name:       "ipv6 and escaped user agent",
			line:       `2001:db8::1 - - [01/Jan/2025:00:00:00 +0000] "GET / HTTP/2.0" 304 0 "https://example.com/" "bot \"v1\""`,
			wantIP:     "2001:db8::1",
			wantMethod: "GET",
			wantPath:   "/",
			wantStatus: 304,
			wantUA:     `bot "v1"`,
		},
		{name: "invalid format", line: "this is not a valid log line", wantErr: ErrInvalidLogFormat},
		{name: "empty line", line: "", wantErr: ErrInvalidLogFormat},
		{name: "invalid IP", line: `999.1.1.1 - - [01/Jan/2025:00:00:00 +0000] "GET / HTTP/1.1" 200 1 "-" "-"`, wantErr: ErrInvalidLogFormat},
		{name: "bad timestamp", line: `10.0.0.1 - - [yesterday] "GET / HTTP/1.1" 200 1 "-" "-"`, wantErr: ErrMissingTimestamp},
		{name: "bad status", line: `10.0.0.1 - - [01/Jan/2025:00:00:00 +0000] "GET / HTTP/1.1" 999 1 "-" "-"`, wantErr: ErrInvalidLogFormat},
		{name: "bad method", line: `10.0.0.1 - - [01/Jan/2025:00:00:00 +0000] "X / HTTP/1.1" 200 1 "-" "-"`, wantErr: ErrInvalidLogFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := parser.Parse(tt.line)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, entry)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantIP, entry.IP.String())
			assert.Equal(t, tt.wantMethod, entry.Method)
			assert.Equal(t, tt.wantPath, entry.Path)
			assert.Equal(t, tt.wantStatus, entry.StatusCode)
			assert.Equal(t, tt.wantUA, entry.UserAgent)
			assert.Equal(t, tt.line, entry.RawLine)
		})
	}
}

func TestCombinedLogParser_Timestamp(t *testing.T) {
	entry, err := NewCombinedLogParser().Parse(`10.0.0.1 - - [28/Dec/2025:12:30:45 +0100] "GET / HTTP/1.1" 200 1 "-" "-"`)
	require.NoError(t, err)

	assert.True(t, entry.Timestamp.Equal(time.Date(2025, 12, 28, 11, 30, 45, 0, time.UTC)))
	assert.Equal(t, 1, entry.BytesSent)
}

func TestJSONParser(t *testing.T) {
	parser := NewJSONParser()

	entry, err := parser.Parse(`{"timestamp":"2024-01-01T10:00:00.5Z","remote_addr":"192.168.1.1:4433","request_method":"GET","request_uri":"/test","status":200,"http_user_agent":"ua"}`)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.1", entry.IP.String())
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 500000000, time.UTC), entry.Timestamp.UTC())
	assert.Equal(t, "/test", entry.Path)
	assert.Equal(t, "ua", entry.UserAgent)

	entry, err = parser.Parse(`{"time_iso8601":"2024-01-01T10:00:00+00:00","remote_addr":"::1"}`)
	require.NoError(t, err)
	assert.Equal(t, "::1", entry.IP.String())

	_, err = parser.Parse(`{"remote_addr":"10.0.0.1"}`)
	assert.ErrorIs(t, err, ErrMissingTimestamp)

	_, err = parser.Parse(`{"unclosed": "string`)
	assert.ErrorIs(t, err, ErrInvalidLogFormat)

	_, err = parser.Parse(`[]`)
	assert.ErrorIs(t, err, ErrInvalidLogFormat)
}

func TestAutoDetectParser(t *testing.T) {
	parser := NewAutoDetectParser()

	entry, err := parser.Parse(`{"timestamp":"2024-01-01T00:00:00Z","remote_addr":"10.0.0.1"}`)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", entry.IP.String())

	entry, err = parser.Parse(`10.0.0.2 - - [01/Jan/2025:00:00:00 +0000] "GET / HTTP/1.1" 200 1 "-" "-"`)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.2", entry.IP.String())
	assert.Equal(t, "auto", parser.Format())
}

func TestNewParser(t *testing.T) {
	for format, want := range map[string]string{"": "auto", "auto": "auto", "nginx": "combined", "combined": "combined", "json": "json"} {
		p, err := NewParser(format)
		require.NoError(t, err)
		assert.Equal(t, want, p.Format())
	}

	_, err := NewParser("xml")
	assert.Error(t, err)
}

func FuzzCombinedLogParser(f *testing.F) {
	parser := NewCombinedLogParser()
	f.Add(`192.168.1.10 - - [28/Dec/2025:10:00:00 +0000] "GET / HTTP/1.1" 200 1 "-" "Mozilla/5.0"`)
	f.Add(`10.0.0.1 - - [`)
	f.Add(`10.0.0.1 - - [01/Jan/2025:00:00:00 +0000] "`)
	f.Add(`10.0.0.1 - - [01/Jan/2025:00:00:00 +0000] "GET" 200`)

	f.Fuzz(func(t *testing.T, line string) {
		entry, err := parser.Parse(line)
		if err == nil && !entry.IP.IsValid() {
			t.Fatalf("accepted line without valid IP: %q", line)
		}
	})
}
