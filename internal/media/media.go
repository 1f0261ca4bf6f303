// Package media classifies local media files and fetches remote media with
// an external command.
package media

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Kind is the publishable category of a media file.
type Kind string

// Media kinds.
const (
	KindPhoto Kind = "photo"
	KindVideo Kind = "video"
)

// ErrUnsupported is returned by Classify for extensions that cannot be posted.
var ErrUnsupported = errors.New("media: unsupported file type")

// Classify returns the kind of the file at path based on its extension.
func Classify(path string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return KindPhoto, nil
	case ".mp4", ".mov":
		return KindVideo, nil
	default:
		return "", fmt.Errorf("%w: %s (want jpg, jpeg, png, mp4 or mov)", ErrUnsupported, filepath.Base(path))
	}
}
