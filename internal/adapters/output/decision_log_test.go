package output

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/botradar/internal/domain"
)

func decision(client string, status domain.ActorStatus) *domain.Decision {
	return domain.NewDecision(client, status, domain.DecisionSourceProxy, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestJSONDecisionLog_WritesLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	l, err := NewJSONDecisionLog(JSONDecisionLogConfig{FilePath: path})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, l.Send(ctx, decision("10.0.0.1", domain.Bad())))
	require.NoError(t, l.Send(ctx, decision("10.0.0.2", domain.Suspicious(0.5))))
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "second close is a no-op")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got []domain.Decision
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var d domain.Decision
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &d))
		got = append(got, d)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "10.0.0.1", got[0].ClientID)
	assert.Equal(t, domain.ActorClassBad, got[0].Class)
	assert.Equal(t, 0.5, got[1].Score)
}

func TestJSONDecisionLog_FilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	l, err := NewJSONDecisionLog(JSONDecisionLogConfig{FilePath: path})
	require.NoError(t, err)
	defer l.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestJSONDecisionLog_FileAndStdout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	l, err := NewJSONDecisionLog(JSONDecisionLogConfig{FilePath: path, Stdout: true})
	require.NoError(t, err)

	require.NoError(t, l.Send(context.Background(), decision("10.0.0.9", domain.Bad())))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var d domain.Decision
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &d))
	assert.Equal(t, "10.0.0.9", d.ClientID)
	assert.Equal(t, domain.ActorClassBad, d.Class)
}

func TestJSONDecisionLog_Discard(t *testing.T) {
	l, err := NewJSONDecisionLog(JSONDecisionLogConfig{})
	require.NoError(t, err)

	assert.NoError(t, l.Send(context.Background(), decision("x", domain.Bad())))
	assert.NoError(t, l.Flush())
	assert.NoError(t, l.Close())
}

func TestJSONDecisionLog_BadPath(t *testing.T) {
	_, err := NewJSONDecisionLog(JSONDecisionLogConfig{FilePath: filepath.Join(t.TempDir(), "missing", "x.jsonl")})
	assert.Error(t, err)
}

func TestMemoryDecisionLog_Ring(t *testing.T) {
	l := NewMemoryDecisionLog(3)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, l.Send(ctx, decision(id, domain.Bad())))
	}

	assert.Equal(t, 3, l.Count())
	ids := func(ds []*domain.Decision) []string {
		out := make([]string, len(ds))
		for i, d := range ds {
			out[i] = d.ClientID
		}
		return out
	}
	assert.Equal(t, []string{"c", "d", "e"}, ids(l.Latest(0)))
	assert.Equal(t, []string{"d", "e"}, ids(l.Latest(2)))
	assert.Equal(t, []string{"c", "d", "e"}, ids(l.Latest(10)))
}

func TestMemoryDecisionLog_Empty(t *testing.T) {
	l := NewMemoryDecisionLog(0)

	assert.Empty(t, l.Latest(5))
	assert.Equal(t, 0, l.Count())
	assert.NoError(t, l.Flush())
	assert.NoError(t, l.Close())
}
