package session

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	return NewStore(filepath.Join(t.TempDir(), "session.json"), testLogger(t))
}

func testBundle(account, deviceID string) *Bundle {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	return NewBundle(account,
		[]byte(`{"device_id":"`+deviceID+`","uuid":"11111111-2222-3333-4444-555555555555"}`),
		[]Cookie{
			{
				Name:     "sessionid",
				Value:    "sess-" + deviceID,
				Domain:   ".example.com",
				Path:     "/",
				Expires:  time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
				Secure:   true,
				HTTPOnly: true,
			},
			{Name: "csrftoken", Value: "csrf-" + deviceID, Domain: ".example.com", Path: "/"},
		},
		created,
	)
}

func TestLoad_MissingFile(t *testing.T) {
	s := NewStore("/nonexistent/dir/session.json", testLogger(t))
	assert.Nil(t, s.Load())
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	require.Nil(t, s.Load())

	b := testBundle("alice", "dev-1")
	require.NoError(t, s.Save(b))

	loaded := s.Load()
	require.NotNil(t, loaded)
	assert.Equal(t, b, loaded)
}

func TestSaveLoad_SettingsKeptByteForByte(t *testing.T) {
	s := newTestStore(t)

	for _, settings := range []string{
		"{\"ua\": \"a<b&c\",\n  \"n\": 1}",
		"not json at all \x00\xff",
	} {
		b := NewBundle("alice", []byte(settings), nil, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, s.Save(b))

		loaded := s.Load()
		require.NotNil(t, loaded)
		assert.Equal(t, b, loaded)
		assert.Equal(t, settings, string(loaded.Settings))
	}
}

func TestLoad_CorruptJSONIsAbsentAndRemoved(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"version":1,"account":"al`), FilePerms))

	assert.Nil(t, s.Load())

	_, err := os.Stat(s.Path())
	assert.True(t, errors.Is(err, os.ErrNotExist), "corrupt file should be removed")
}

func TestLoad_TruncatedFileIsAbsent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(testBundle("alice", "dev-1")))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(), data[:len(data)/2], FilePerms))

	assert.Nil(t, s.Load())
}

func TestLoad_SchemaMismatchIsAbsent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no version", `{"account":"alice","settings":{"a":1},"cookies":[]}`},
		{"previous version", `{"version":1,"account":"alice","settings":{"a":1},"cookies":[]}`},
		{"future version", `{"version":3,"account":"alice","settings":"eyJhIjoxfQ==","cookies":[]}`},
		{"missing account", `{"version":2,"settings":"eyJhIjoxfQ==","cookies":[]}`},
		{"missing settings", `{"version":2,"account":"alice","cookies":[]}`},
		{"null settings", `{"version":2,"account":"alice","settings":null}`},
		{"empty settings", `{"version":2,"account":"alice","settings":""}`},
		{"settings not base64", `{"version":2,"account":"alice","settings":"{not base64"}`},
		{"legacy bare settings", `{"device_id":"x","cookie":"y"}`},
		{"empty file", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			require.NoError(t, os.WriteFile(s.Path(), []byte(tt.content), FilePerms))

			assert.Nil(t, s.Load())
		})
	}
}

func TestInvalidate_ClearsSlot(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(testBundle("alice", "dev-1")))
	require.NotNil(t, s.Load())

	require.NoError(t, s.Invalidate())
	assert.Nil(t, s.Load())
}

func TestInvalidate_EmptySlotIsNotAnError(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Invalidate())
	assert.Nil(t, s.Load())
}

func TestSave_OverwritesWholesale(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(testBundle("alice", "dev-1")))

	second := testBundle("alice", "dev-2")
	second.Cookies = second.Cookies[:1]
	require.NoError(t, s.Save(second))

	loaded := s.Load()
	require.NotNil(t, loaded)
	assert.Equal(t, second, loaded)
	assert.Len(t, loaded.Cookies, 1)
}

func TestSave_CreatesDirectoryWithOwnerOnlyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "session.json")
	s := NewStore(path, testLogger(t))

	require.NoError(t, s.Save(testBundle("alice", "dev-1")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePerms), info.Mode().Perm())
}

func TestSave_RejectsIncompleteBundle(t *testing.T) {
	s := newTestStore(t)

	err := s.Save(&Bundle{Version: SchemaVersion, Account: "alice"})
	require.Error(t, err)

	var perr *PersistError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, s.Path(), perr.Path)

	_, statErr := os.Stat(s.Path())
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestSave_UnwritableMediumKeepsPreviousBundle(t *testing.T) {
	s := newTestStore(t)

	previous := testBundle("alice", "dev-1")
	require.NoError(t, s.Save(previous))

	diskFull := errors.New("no space left on device")
	s.createTemp = func(string, string) (*os.File, error) {
		return nil, diskFull
	}

	err := s.Save(testBundle("alice", "dev-2"))
	require.Error(t, err)
	assert.ErrorIs(t, err, diskFull)

	var perr *PersistError
	assert.ErrorAs(t, err, &perr)

	loaded := s.Load()
	require.NotNil(t, loaded)
	assert.Equal(t, previous, loaded)
}

func TestSave_ReadOnlyDirectoryKeepsPreviousBundle(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}

	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "session.json"), testLogger(t))

	previous := testBundle("alice", "dev-1")
	require.NoError(t, s.Save(previous))

	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o700) })

	err := s.Save(testBundle("alice", "dev-2"))
	require.Error(t, err)

	assert.Equal(t, previous, s.Load())
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "session.json"), testLogger(t))

	require.NoError(t, s.Save(testBundle("alice", "dev-1")))

	s.createTemp = func(dir, pattern string) (*os.File, error) {
		f, err := os.CreateTemp(dir, pattern)
		if err != nil {
			return nil, err
		}

		// Closing early makes the subsequent Write fail after the file exists.
		f.Close()

		return f, nil
	}

	require.Error(t, s.Save(testBundle("alice", "dev-2")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "session.json", entries[0].Name())
}

func TestCookiesFromHTTP_DropsExpired(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	b := testBundle("alice", "dev-1")
	httpCookies := b.HTTPCookies()
	require.Len(t, httpCookies, 2)

	httpCookies[1].Expires = now.Add(-time.Hour)
	httpCookies = append(httpCookies, expiredByMaxAge())

	got := CookiesFromHTTP(httpCookies, now)
	require.Len(t, got, 1)
	assert.Equal(t, b.Cookies[0], got[0])
}

func TestCookiesFromHTTP_MaxAgeSetsExpiry(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	got := CookiesFromHTTP(httpCookiesWithMaxAge(3600), now)
	require.Len(t, got, 1)
	assert.Equal(t, now.Add(time.Hour), got[0].Expires)
}

func expiredByMaxAge() *http.Cookie {
	return &http.Cookie{Name: "ds_user", Value: "gone", MaxAge: -1}
}

func httpCookiesWithMaxAge(seconds int) []*http.Cookie {
	return []*http.Cookie{{Name: "rur", Value: "x", Path: "/", MaxAge: seconds}}
}
