// Package capture receives webcam frames from the front end and keeps
// the latest one available for conversation turns.
package capture

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robit-man/gemma3-evaluation-app/pkg/convo"
	"github.com/robit-man/gemma3-evaluation-app/pkg/errorsx"
)

// ErrCaptureUnavailable reports that no frame has been captured yet.
var ErrCaptureUnavailable = errors.New("capture unavailable")

// Capturer produces the current still frame on demand.
type Capturer interface {
	CaptureFrame() (convo.ImageBlob, error)
}

// FrameStore persists frames uploaded by the browser and remembers the
// most recent one. Files land as frame_<unixts>.jpg in the frames dir,
// like the original webcam_frames drop.
type FrameStore struct {
	mu   sync.RWMutex
	dir  string
	last *convo.ImageBlob
	log  *slog.Logger
	now  func() time.Time
}

func NewFrameStore(dir string, log *slog.Logger) (*FrameStore, error) {
	if dir == "" {
		dir = "webcam_frames"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create frames dir: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &FrameStore{dir: dir, log: log, now: time.Now}, nil
}

// StoreDataURL decodes a browser data URL (data:image/jpeg;base64,...),
// writes the frame to disk and caches it as the latest capture. It
// returns the decoded blob and the file path written.
func (s *FrameStore) StoreDataURL(dataURL string) (convo.ImageBlob, string, error) {
	blob, err := DecodeDataURL(dataURL)
	if err != nil {
		return convo.ImageBlob{}, "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := fmt.Sprintf("frame_%d.jpg", s.now().Unix())
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, blob.Data, 0o644); err != nil {
		return convo.ImageBlob{}, "", fmt.Errorf("write frame: %w", err)
	}
	s.last = &blob
	s.log.Debug("frame stored", "path", path, "bytes", len(blob.Data))
	return blob, path, nil
}

// CaptureFrame returns the most recently stored frame.
func (s *FrameStore) CaptureFrame() (convo.ImageBlob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return convo.ImageBlob{}, errorsx.Wrap(ErrCaptureUnavailable, errorsx.ReasonCaptureUnavailable)
	}
	return *s.last, nil
}

// DecodeDataURL splits a data URL into its mime tag and payload bytes.
func DecodeDataURL(dataURL string) (convo.ImageBlob, error) {
	header, encoded, found := strings.Cut(dataURL, ",")
	if !found {
		return convo.ImageBlob{}, fmt.Errorf("malformed data url")
	}
	mime := "image/jpeg"
	if rest, ok := strings.CutPrefix(header, "data:"); ok {
		m, _, _ := strings.Cut(rest, ";")
		if m != "" {
			mime = m
		}
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return convo.ImageBlob{}, fmt.Errorf("decode frame payload: %w", err)
	}
	return convo.ImageBlob{Data: data, MIME: mime}, nil
}
