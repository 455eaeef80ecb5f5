// Package youtube wraps yt-dlp as a subprocess for searching YouTube and
// fetching audio or video files.
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inyogeshwar/YTMusicLabBot/internal/domain"
	"github.com/inyogeshwar/YTMusicLabBot/internal/logging"
)

const (
	defaultYtdlpPath    = "yt-dlp"
	defaultFetchTimeout = 10 * time.Minute
	searchTimeout       = 90 * time.Second

	// DefaultSearchLimit is how many results a text search returns.
	DefaultSearchLimit = 8
)

// ErrYtdlpNotInstalled is returned when the yt-dlp executable cannot run.
var ErrYtdlpNotInstalled = errors.New("yt-dlp is not installed")

// Track is a single search result.
type Track struct {
	ID       string
	Title    string
	Uploader string
	Duration time.Duration
}

// URL returns the canonical watch URL for the track.
func (t Track) URL() string {
	return "https://www.youtube.com/watch?v=" + t.ID
}

// Media is a downloaded file on disk. Call Cleanup when done with it.
type Media struct {
	Path      string
	Title     string
	Performer string
	Kind      domain.MediaKind
	SizeBytes int64

	scratchDir string
}

// Cleanup removes the scratch directory holding the media file.
func (m *Media) Cleanup() {
	if m == nil || m.scratchDir == "" {
		return
	}
	_ = os.RemoveAll(m.scratchDir)
}

// Fetcher runs yt-dlp. The zero value is not usable; construct with
// NewFetcher.
type Fetcher struct {
	path         string
	tempDir      string
	maxFileBytes int64
	timeout      time.Duration
	logger       *logrus.Entry
}

// NewFetcher constructs a fetcher. tempDir must exist; each download gets
// its own scratch subdirectory inside it.
func NewFetcher(path, tempDir string, maxFileBytes int64, logger *logrus.Entry) *Fetcher {
	if path == "" {
		path = defaultYtdlpPath
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Fetcher{
		path:         path,
		tempDir:      tempDir,
		maxFileBytes: maxFileBytes,
		timeout:      defaultFetchTimeout,
		logger:       logger,
	}
}

// CheckInstalled verifies the yt-dlp executable is runnable.
func (f *Fetcher) CheckInstalled(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, f.path, "--version")
	if err := cmd.Run(); err != nil {
		return ErrYtdlpNotInstalled
	}
	return nil
}

// Search runs a flat-playlist YouTube search and returns up to limit tracks.
func (f *Fetcher) Search(ctx context.Context, query string, limit int) ([]Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", domain.ErrValidation)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	args := []string{
		"--flat-playlist",
		"-J",
		"--no-warnings",
		searchTarget(query, limit),
	}

	cmdCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	stdout, err := f.run(cmdCtx, args)
	if err != nil {
		return nil, err
	}

	tracks, err := parseSearchOutput(stdout)
	if err != nil {
		return nil, err
	}

	f.logger.WithFields(logging.Fields{
		"event":   "youtube_search",
		"query":   query,
		"results": len(tracks),
	}).Debug("search completed")

	return tracks, nil
}

// FetchAudio downloads the URL as an mp3.
func (f *Fetcher) FetchAudio(ctx context.Context, url string) (*Media, error) {
	track, err := f.probe(ctx, url)
	if err != nil {
		return nil, err
	}

	args := []string{
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", "192K",
		"--no-playlist",
		"--no-warnings",
	}

	return f.download(ctx, url, track, domain.MediaAudio, args)
}

// FetchVideo downloads the URL as an mp4, preferring a format under the
// configured size cap.
func (f *Fetcher) FetchVideo(ctx context.Context, url string) (*Media, error) {
	track, err := f.probe(ctx, url)
	if err != nil {
		return nil, err
	}

	format := fmt.Sprintf("best[ext=mp4][filesize<%d]/best[ext=mp4]/best", f.maxFileBytes)
	args := []string{
		"-f", format,
		"--no-playlist",
		"--no-warnings",
	}

	return f.download(ctx, url, track, domain.MediaVideo, args)
}

// probe fetches metadata without downloading.
func (f *Fetcher) probe(ctx context.Context, url string) (Track, error) {
	if strings.TrimSpace(url) == "" {
		return Track{}, fmt.Errorf("%w: url is required", domain.ErrValidation)
	}

	cmdCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	stdout, err := f.run(cmdCtx, []string{"-J", "--no-playlist", "--no-warnings", url})
	if err != nil {
		return Track{}, err
	}

	var entry ytdlpEntry
	if err := json.Unmarshal(stdout, &entry); err != nil {
		return Track{}, fmt.Errorf("parse yt-dlp metadata: %w", err)
	}

	return entry.track(), nil
}

func (f *Fetcher) download(ctx context.Context, url string, track Track, kind domain.MediaKind, extraArgs []string) (*Media, error) {
	scratch := filepath.Join(f.tempDir, uuid.NewString())
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	args := append([]string{}, extraArgs...)
	args = append(args, "-o", filepath.Join(scratch, "media.%(ext)s"), url)

	cmdCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if _, err := f.run(cmdCtx, args); err != nil {
		_ = os.RemoveAll(scratch)
		return nil, err
	}

	path, size, err := locateDownload(scratch)
	if err != nil {
		_ = os.RemoveAll(scratch)
		return nil, err
	}

	if f.maxFileBytes > 0 && size > f.maxFileBytes {
		_ = os.RemoveAll(scratch)
		return nil, fmt.Errorf("%w: %d bytes exceeds the %d byte cap", domain.ErrMediaTooLarge, size, f.maxFileBytes)
	}

	f.logger.WithFields(logging.Fields{
		"event": "youtube_download",
		"kind":  string(kind),
		"title": track.Title,
		"bytes": size,
	}).Info("media downloaded")

	return &Media{
		Path:       path,
		Title:      track.Title,
		Performer:  track.Uploader,
		Kind:       kind,
		SizeBytes:  size,
		scratchDir: scratch,
	}, nil
}

func (f *Fetcher) run(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, f.path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("yt-dlp timed out: %w", ctx.Err())
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, classifyStderr(stderr.String(), err)
	}

	return stdout.Bytes(), nil
}

// classifyStderr maps well-known yt-dlp failure messages onto domain errors.
func classifyStderr(stderr string, err error) error {
	lowered := strings.ToLower(stderr)

	for _, marker := range []string{
		"video unavailable",
		"private video",
		"this video is not available",
		"members-only",
		"age-restricted",
		"sign in to confirm your age",
		"no video results",
		"is not a valid url",
	} {
		if strings.Contains(lowered, marker) {
			return fmt.Errorf("%w: %s", domain.ErrMediaUnavailable, firstLine(stderr))
		}
	}

	return fmt.Errorf("yt-dlp failed: %w: %s", err, firstLine(stderr))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

// searchTarget builds the ytsearch pseudo-URL understood by yt-dlp.
func searchTarget(query string, limit int) string {
	return fmt.Sprintf("ytsearch%d:%s", limit, query)
}

// locateDownload finds the single media file yt-dlp wrote into dir.
func locateDownload(dir string) (string, int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, fmt.Errorf("read scratch dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".part") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return "", 0, fmt.Errorf("stat download: %w", err)
		}
		return filepath.Join(dir, entry.Name()), info.Size(), nil
	}

	return "", 0, fmt.Errorf("%w: no file produced", domain.ErrMediaUnavailable)
}

type ytdlpEntry struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Uploader string  `json:"uploader"`
	Channel  string  `json:"channel"`
	Duration float64 `json:"duration"`
}

func (e ytdlpEntry) track() Track {
	uploader := e.Uploader
	if uploader == "" {
		uploader = e.Channel
	}

	return Track{
		ID:       e.ID,
		Title:    e.Title,
		Uploader: uploader,
		Duration: time.Duration(e.Duration * float64(time.Second)),
	}
}

type ytdlpPlaylist struct {
	Entries []ytdlpEntry `json:"entries"`
}

func parseSearchOutput(data []byte) ([]Track, error) {
	var playlist ytdlpPlaylist
	if err := json.Unmarshal(data, &playlist); err != nil {
		return nil, fmt.Errorf("parse yt-dlp output: %w", err)
	}

	tracks := make([]Track, 0, len(playlist.Entries))
	for _, entry := range playlist.Entries {
		if entry.ID == "" {
			continue
		}
		tracks = append(tracks, entry.track())
	}

	return tracks, nil
}
