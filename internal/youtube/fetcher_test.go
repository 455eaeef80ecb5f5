package youtube

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/inyogeshwar/YTMusicLabBot/internal/domain"
)

func TestSearchTarget(t *testing.T) {
	if got := searchTarget("never gonna give you up", 8); got != "ytsearch8:never gonna give you up" {
		t.Fatalf("unexpected search target %q", got)
	}
}

func TestParseSearchOutput(t *testing.T) {
	data := []byte(`{
		"entries": [
			{"id": "abc123", "title": "Song A", "uploader": "Artist A", "duration": 213},
			{"id": "def456", "title": "Song B", "channel": "Artist B", "duration": 187.5},
			{"id": "", "title": "no id, skipped"}
		]
	}`)

	tracks, err := parseSearchOutput(data)
	if err != nil {
		t.Fatalf("parseSearchOutput: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(tracks))
	}

	first := tracks[0]
	if first.ID != "abc123" || first.Title != "Song A" || first.Uploader != "Artist A" {
		t.Fatalf("unexpected first track: %+v", first)
	}
	if first.Duration != 213*time.Second {
		t.Fatalf("unexpected duration: %v", first.Duration)
	}
	if first.URL() != "https://www.youtube.com/watch?v=abc123" {
		t.Fatalf("unexpected URL: %q", first.URL())
	}

	// uploader falls back to channel
	if tracks[1].Uploader != "Artist B" {
		t.Fatalf("expected channel fallback, got %q", tracks[1].Uploader)
	}
}

func TestParseSearchOutputInvalidJSON(t *testing.T) {
	if _, err := parseSearchOutput([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestClassifyStderr(t *testing.T) {
	base := errors.New("exit status 1")

	unavailable := []string{
		"ERROR: Video unavailable",
		"ERROR: Private video. Sign in if you've been granted access",
		"ERROR: This video is not available in your country",
		"ERROR: Sign in to confirm your age",
		"ERROR: 'htp://x' is not a valid URL",
	}
	for _, msg := range unavailable {
		if err := classifyStderr(msg, base); !errors.Is(err, domain.ErrMediaUnavailable) {
			t.Fatalf("expected ErrMediaUnavailable for %q, got %v", msg, err)
		}
	}

	err := classifyStderr("ERROR: unable to download webpage", base)
	if errors.Is(err, domain.ErrMediaUnavailable) {
		t.Fatalf("generic failure must not map to ErrMediaUnavailable: %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped exec error, got %v", err)
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("first\nsecond\nthird"); got != "first" {
		t.Fatalf("unexpected first line %q", got)
	}
	if got := firstLine("  only  "); got != "only" {
		t.Fatalf("unexpected trimmed line %q", got)
	}
}

func TestLocateDownload(t *testing.T) {
	dir := t.TempDir()

	if _, _, err := locateDownload(dir); !errors.Is(err, domain.ErrMediaUnavailable) {
		t.Fatalf("expected ErrMediaUnavailable for empty dir, got %v", err)
	}

	// partial files are ignored
	if err := os.WriteFile(filepath.Join(dir, "media.mp3.part"), []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := locateDownload(dir); !errors.Is(err, domain.ErrMediaUnavailable) {
		t.Fatalf("expected partial file to be ignored, got %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "media.mp3"), []byte("audio-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	path, size, err := locateDownload(dir)
	if err != nil {
		t.Fatalf("locateDownload: %v", err)
	}
	if filepath.Base(path) != "media.mp3" {
		t.Fatalf("unexpected path %q", path)
	}
	if size != int64(len("audio-bytes")) {
		t.Fatalf("unexpected size %d", size)
	}
}

func TestMediaCleanup(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scratch")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	m := &Media{scratchDir: dir}
	m.Cleanup()

	if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected scratch dir removed, got %v", err)
	}

	var nilMedia *Media
	nilMedia.Cleanup()
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	f := NewFetcher("yt-dlp", t.TempDir(), 0, nil)

	if _, err := f.Search(context.Background(), "   ", 5); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
