package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const (
	testAccount  = "alice"
	testPassword = "hunter2"
	testMediaURL = "https://www.instagram.com/p/CxYz/"
)

// fakeService is a minimal stand-in for the account service: login,
// current user, uploads and configure. Sessions stay valid until revoke.
type fakeService struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	logins   int
	valid    bool
	captions []string
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()

	f := &fakeService{t: t}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/si/fetch_headers/", func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "csrf", Path: "/"})
		f.reply(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	mux.HandleFunc("POST /api/v1/accounts/login/", f.login)
	mux.HandleFunc("GET /api/v1/accounts/current_user/", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}

		f.reply(w, http.StatusOK, map[string]any{
			"status": "ok",
			"user":   map[string]any{"pk": 4242, "username": testAccount, "full_name": "Alice Example"},
		})
	})
	mux.HandleFunc("POST /rupload_igphoto/", f.upload)
	mux.HandleFunc("POST /rupload_igvideo/", f.upload)
	mux.HandleFunc("POST /api/v1/media/configure/", f.configure)
	mux.HandleFunc("POST /api/v1/media/configure_to_clips/", f.configure)

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)

	return f
}

func (f *fakeService) reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		f.t.Errorf("encoding response: %v", err)
	}
}

func (f *fakeService) authorized(w http.ResponseWriter, r *http.Request) bool {
	f.mu.Lock()
	valid := f.valid
	f.mu.Unlock()

	if ck, err := r.Cookie("sessionid"); err == nil && ck.Value == "sess" && valid {
		return true
	}

	f.reply(w, http.StatusForbidden, map[string]any{"message": "login_required", "status": "fail"})

	return false
}

func (f *fakeService) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		f.reply(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		return
	}

	f.mu.Lock()
	f.logins++
	ok := r.PostForm.Get("password") == testPassword
	if ok {
		f.valid = true
	}
	f.mu.Unlock()

	if !ok {
		f.reply(w, http.StatusBadRequest, map[string]any{
			"message":             "The password you entered is incorrect.",
			"invalid_credentials": true,
			"error_type":          "bad_password",
			"status":              "fail",
		})

		return
	}

	http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "sess", Path: "/", MaxAge: 86400})
	f.reply(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"logged_in_user": map[string]any{"pk": 4242, "username": r.PostForm.Get("username")},
	})
}

func (f *fakeService) upload(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}

	id := strings.SplitN(r.Header.Get("X-Entity-Name"), "_", 2)[0]
	f.reply(w, http.StatusOK, map[string]any{"status": "ok", "upload_id": id})
}

func (f *fakeService) configure(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(w, r) {
		return
	}

	if err := r.ParseForm(); err != nil {
		f.reply(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		return
	}

	f.mu.Lock()
	f.captions = append(f.captions, r.PostForm.Get("caption"))
	f.mu.Unlock()

	f.reply(w, http.StatusOK, map[string]any{
		"status": "ok",
		"media":  map[string]any{"pk": 987, "id": "987_4242", "code": "CxYz"},
	})
}

// revoke invalidates every issued session, as if it expired server side.
func (f *fakeService) revoke() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.valid = false
}

func (f *fakeService) loginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.logins
}

func (f *fakeService) postedCaptions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.captions...)
}
