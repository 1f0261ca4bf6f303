package account

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// User is the authenticated account as reported by the service.
type User struct {
	ID         int64  `json:"pk"`
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	IsPrivate  bool   `json:"is_private"`
	IsVerified bool   `json:"is_verified"`
}

// Media is a published post.
type Media struct {
	PK   int64  `json:"pk"`
	ID   string `json:"id"`
	Code string `json:"code"`
}

// URL returns the public permalink for the post, or "" if unknown.
func (m *Media) URL() string {
	if m.Code == "" {
		return ""
	}

	return "https://www.instagram.com/p/" + m.Code + "/"
}

// MediaID returns the best available identifier for display and history.
func (m *Media) MediaID() string {
	if m.ID != "" {
		return m.ID
	}

	return strconv.FormatInt(m.PK, 10)
}

type loginResponse struct {
	Status       string `json:"status"`
	LoggedInUser User   `json:"logged_in_user"`
}

type currentUserResponse struct {
	Status string `json:"status"`
	User   User   `json:"user"`
}

type uploadResponse struct {
	Status   string `json:"status"`
	UploadID string `json:"upload_id"`
}

type configureResponse struct {
	Status string `json:"status"`
	Media  Media  `json:"media"`
}

// deviceSettings is the opaque settings blob carried in the session bundle.
// It identifies the emulated device so later runs present the same identity
// the session was created with.
type deviceSettings struct {
	DeviceID  string `json:"device_id"`
	UUID      string `json:"uuid"`
	PhoneID   string `json:"phone_id"`
	UserAgent string `json:"user_agent"`
	UserID    int64  `json:"user_id,omitempty"`
}

func newDeviceSettings(userAgent string) deviceSettings {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")

	return deviceSettings{
		DeviceID:  "android-" + hex[:16],
		UUID:      uuid.NewString(),
		PhoneID:   uuid.NewString(),
		UserAgent: userAgent,
	}
}

func decodeDeviceSettings(raw []byte) (deviceSettings, error) {
	var ds deviceSettings
	if err := json.Unmarshal(raw, &ds); err != nil {
		return deviceSettings{}, fmt.Errorf("account: decoding session settings: %w", err)
	}

	return ds, nil
}
