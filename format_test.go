package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name  string
		bytes int64
		want  string
	}{
		{"zero", 0, "0 B"},
		{"bytes", 1000, "1000 B"},
		{"kilobytes", 2048, "2.0 KB"},
		{"megabytes", 3670016, "3.5 MB"},
		{"gigabytes", 2147483648, "2.0 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatSize(tt.bytes))
		})
	}
}

func TestFormatTime(t *testing.T) {
	thisYear := time.Date(time.Now().Year(), time.July, 4, 18, 45, 0, 0, time.Local)
	oldYear := time.Date(2019, time.November, 9, 7, 0, 0, 0, time.Local)

	assert.Equal(t, "Jul  4 18:45", formatTime(thisYear))
	assert.Equal(t, "Nov  9  2019", formatTime(oldYear))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a longer caption here", 10, "a longe..."},
		{"line one\nline two", 40, "line one line two"},
		{"café au lait", 6, "caf..."},
		{"abcdef", 2, "ab"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, truncate(tt.in, tt.n), "truncate(%q, %d)", tt.in, tt.n)
	}
}

func TestPrintTable_AlignsColumns(t *testing.T) {
	var buf bytes.Buffer

	printTable(&buf, []string{"POSTED", "KIND", "URL"}, [][]string{
		{"Jan  2 10:00", "photo", "https://example.com/p/A/"},
		{"Feb 14 09:30", "video", "https://example.com/p/BB/"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)

	col := strings.Index(lines[0], "KIND")
	assert.Equal(t, col, strings.Index(lines[1], "photo"))
	assert.Equal(t, col, strings.Index(lines[2], "video"))
	assert.False(t, strings.HasSuffix(lines[0], " "))
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"count": 2}))
	assert.Equal(t, "{\n  \"count\": 2\n}\n", buf.String())
}
