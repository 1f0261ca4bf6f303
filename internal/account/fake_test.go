package account

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const (
	fakePassword   = "hunter2"
	fakeSessionID  = "sess-ok"
	fakeCSRFToken  = "csrf-123"
	checkpointUser = "checkpointed"
)

// fakeService emulates the account service endpoints used by Client.
type fakeService struct {
	t   *testing.T
	srv *httptest.Server

	mu         sync.Mutex
	logins     int
	uploads    []fakeUpload
	configured []fakeConfigure
}

type fakeUpload struct {
	Path   string
	Params string
	Size   int
}

type fakeConfigure struct {
	Path    string
	Caption string
	Upload  string
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()

	f := &fakeService{t: t}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+fetchHeadersPath, f.fetchHeaders)
	mux.HandleFunc("POST "+loginPath, f.login)
	mux.HandleFunc("GET /api/v1/accounts/current_user/", f.currentUser)
	mux.HandleFunc("POST "+photoUploadPath, f.upload)
	mux.HandleFunc("POST "+videoUploadPath, f.upload)
	mux.HandleFunc("POST "+configurePath, f.configure)
	mux.HandleFunc("POST "+configureReelPath, f.configure)

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)

	return f
}

func (f *fakeService) loginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.logins
}

func (f *fakeService) uploaded() []fakeUpload {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]fakeUpload(nil), f.uploads...)
}

func (f *fakeService) posts() []fakeConfigure {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]fakeConfigure(nil), f.configured...)
}

func (f *fakeService) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		f.t.Errorf("encoding response: %v", err)
	}
}

func (f *fakeService) authorized(r *http.Request) bool {
	ck, err := r.Cookie("sessionid")
	return err == nil && ck.Value == fakeSessionID
}

func (f *fakeService) fetchHeaders(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: fakeCSRFToken, Path: "/"})
	f.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (f *fakeService) login(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.logins++
	f.mu.Unlock()

	if r.Header.Get("X-CSRFToken") != fakeCSRFToken {
		f.writeJSON(w, http.StatusForbidden, map[string]string{"message": "CSRF token missing or incorrect"})
		return
	}

	if err := r.ParseForm(); err != nil {
		f.writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	switch {
	case r.PostForm.Get("username") == checkpointUser:
		f.writeJSON(w, http.StatusBadRequest, map[string]any{
			"message":        "checkpoint_required",
			"checkpoint_url": "https://example.com/challenge/",
			"status":         "fail",
		})
	case r.PostForm.Get("password") != fakePassword:
		f.writeJSON(w, http.StatusBadRequest, map[string]any{
			"message":             "The password you entered is incorrect. Please try again.",
			"invalid_credentials": true,
			"error_type":          "bad_password",
			"status":              "fail",
		})
	default:
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: fakeSessionID, Path: "/", HttpOnly: true, MaxAge: 86400})
		http.SetCookie(w, &http.Cookie{Name: "ds_user_id", Value: "4242", Path: "/"})
		f.writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"logged_in_user": map[string]any{
				"pk":        4242,
				"username":  r.PostForm.Get("username"),
				"full_name": "Test User",
			},
		})
	}
}

func (f *fakeService) currentUser(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		f.writeJSON(w, http.StatusForbidden, map[string]string{"message": "login_required", "status": "fail"})
		return
	}

	f.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"user":   map[string]any{"pk": 4242, "username": "alice", "full_name": "Test User"},
	})
}

func (f *fakeService) upload(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		f.writeJSON(w, http.StatusForbidden, map[string]string{"message": "login_required"})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		f.t.Errorf("reading upload: %v", err)
	}

	f.mu.Lock()
	f.uploads = append(f.uploads, fakeUpload{
		Path:   r.URL.Path,
		Params: r.Header.Get("X-Instagram-Rupload-Params"),
		Size:   len(body),
	})
	f.mu.Unlock()

	uploadID := strings.SplitN(r.Header.Get("X-Entity-Name"), "_", 2)[0]
	f.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "upload_id": uploadID})
}

func (f *fakeService) configure(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		f.writeJSON(w, http.StatusForbidden, map[string]string{"message": "login_required"})
		return
	}

	if err := r.ParseForm(); err != nil {
		f.writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	f.mu.Lock()
	f.configured = append(f.configured, fakeConfigure{
		Path:    r.URL.RequestURI(),
		Caption: r.PostForm.Get("caption"),
		Upload:  r.PostForm.Get("upload_id"),
	})
	f.mu.Unlock()

	f.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"media":  map[string]any{"pk": 987, "id": "987_4242", "code": "CxYz"},
	})
}
