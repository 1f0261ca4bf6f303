package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tonimelisma/reelpost/internal/session"
)

const (
	photoUploadPath    = "/rupload_igphoto/"
	videoUploadPath    = "/rupload_igvideo/"
	configurePath      = "/api/v1/media/configure/"
	configureVideoPath = "/api/v1/media/configure/?video=1"
	configureReelPath  = "/api/v1/media/configure_to_clips/"

	mediaTypePhoto = "1"
	mediaTypeVideo = "2"
)

// ErrMissingCover is returned when a video is published without a cover image.
var ErrMissingCover = errors.New("account: video posts need a cover image")

// VideoPost describes a video publish request.
type VideoPost struct {
	Path    string
	Cover   string
	Caption string

	// AsReel publishes to the short-video feed instead of the main feed.
	AsReel bool
}

// PublishPhoto uploads the image at path and posts it with caption.
func (c *Client) PublishPhoto(ctx context.Context, b *session.Bundle, path, caption string) (*Media, error) {
	ds, cn, err := c.sessionConn(b)
	if err != nil {
		return nil, err
	}

	uploadID := c.newUploadID()

	c.logger.Info("uploading photo",
		slog.String("path", path),
		slog.String("upload_id", uploadID),
	)

	if err := c.upload(ctx, cn, ds, photoUploadPath, uploadID, mediaTypePhoto, path, false); err != nil {
		return nil, err
	}

	return c.configure(ctx, cn, ds, configurePath, url.Values{
		"upload_id":   {uploadID},
		"caption":     {caption},
		"source_type": {"4"},
	})
}

// PublishVideo uploads a video and its cover image under one upload ID and
// posts them, either to the feed or as a reel.
func (c *Client) PublishVideo(ctx context.Context, b *session.Bundle, post VideoPost) (*Media, error) {
	if post.Cover == "" {
		return nil, ErrMissingCover
	}

	ds, cn, err := c.sessionConn(b)
	if err != nil {
		return nil, err
	}

	uploadID := c.newUploadID()

	c.logger.Info("uploading video",
		slog.String("path", post.Path),
		slog.String("upload_id", uploadID),
		slog.Bool("reel", post.AsReel),
	)

	if err := c.upload(ctx, cn, ds, videoUploadPath, uploadID, mediaTypeVideo, post.Path, post.AsReel); err != nil {
		return nil, err
	}

	if err := c.upload(ctx, cn, ds, photoUploadPath, uploadID, mediaTypePhoto, post.Cover, false); err != nil {
		return nil, fmt.Errorf("account: uploading cover: %w", err)
	}

	target := configureVideoPath
	if post.AsReel {
		target = configureReelPath
	}

	return c.configure(ctx, cn, ds, target, url.Values{
		"upload_id":   {uploadID},
		"caption":     {post.Caption},
		"source_type": {"4"},
	})
}

func (c *Client) sessionConn(b *session.Bundle) (deviceSettings, *conn, error) {
	ds, err := decodeDeviceSettings(b.Settings)
	if err != nil {
		return deviceSettings{}, nil, err
	}

	cn, err := c.connFor(b)
	if err != nil {
		return deviceSettings{}, nil, err
	}

	return ds, cn, nil
}

func (c *Client) newUploadID() string {
	return strconv.FormatInt(c.now().UnixMilli(), 10)
}

// ruploadParams is sent as the X-Instagram-Rupload-Params header.
type ruploadParams struct {
	UploadID      string `json:"upload_id"`
	MediaType     string `json:"media_type"`
	IsClipsVideo  string `json:"is_clips_video,omitempty"`
	RetryContext  string `json:"retry_context"`
	ImageCompress string `json:"image_compression,omitempty"`
}

// upload sends the raw bytes of the file at path to the resumable-upload
// endpoint rooted at base.
func (c *Client) upload(
	ctx context.Context, cn *conn, ds deviceSettings, base, uploadID, mediaType, path string, clips bool,
) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("account: reading %s: %w", path, err)
	}

	params := ruploadParams{
		UploadID:     uploadID,
		MediaType:    mediaType,
		RetryContext: `{"num_step_auto_retry":0,"num_reupload":0,"num_step_manual_retry":0}`,
	}

	if mediaType == mediaTypePhoto {
		params.ImageCompress = `{"lib_name":"moz","lib_version":"3.1.m","quality":"80"}`
	}

	if clips {
		params.IsClipsVideo = "1"
	}

	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("account: encoding upload params: %w", err)
	}

	entity := uploadID + "_0_" + strconv.Itoa(len(data))

	h := deviceHeader(ds)
	h.Set("X-Instagram-Rupload-Params", string(rawParams))
	h.Set("X-Entity-Name", entity)
	h.Set("X-Entity-Length", strconv.Itoa(len(data)))
	h.Set("X-Entity-Type", mimeFor(path))
	h.Set("Offset", "0")

	resp, err := c.do(ctx, cn, request{
		method:      http.MethodPost,
		path:        base + entity,
		contentType: "application/octet-stream",
		body:        data,
		header:      h,
	})
	if err != nil {
		return fmt.Errorf("account: uploading %s: %w", filepath.Base(path), err)
	}
	defer resp.Body.Close()

	var ur uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return fmt.Errorf("account: decoding upload response: %w", err)
	}

	c.logger.Debug("upload accepted",
		slog.String("upload_id", ur.UploadID),
		slog.Int("bytes", len(data)),
	)

	return nil
}

func (c *Client) configure(ctx context.Context, cn *conn, ds deviceSettings, target string, form url.Values) (*Media, error) {
	form.Set("device_id", ds.DeviceID)
	form.Set("_uuid", ds.UUID)

	if ds.UserID != 0 {
		form.Set("_uid", strconv.FormatInt(ds.UserID, 10))
	}

	resp, err := c.do(ctx, cn, request{
		method:      http.MethodPost,
		path:        target,
		contentType: formContentType,
		body:        []byte(form.Encode()),
		header:      deviceHeader(ds),
	})
	if err != nil {
		return nil, fmt.Errorf("account: configuring post: %w", err)
	}
	defer resp.Body.Close()

	var cr configureResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("account: decoding configure response: %w", err)
	}

	c.logger.Info("post published",
		slog.String("media_id", cr.Media.MediaID()),
		slog.String("code", cr.Media.Code),
	)

	return &cr.Media, nil
}

// mimeFor returns the upload entity type for path based on its extension.
func mimeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	default:
		return "image/jpeg"
	}
}
