// Package lyrics looks up song information through the Genius API.
package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/inyogeshwar/YTMusicLabBot/internal/domain"
	"github.com/inyogeshwar/YTMusicLabBot/internal/logging"
)

const defaultBaseURL = "https://api.genius.com"

// HTTPClient abstracts the HTTP transport so tests can stub it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// SongInfo is the result of a lyrics lookup.
type SongInfo struct {
	Title       string
	Artist      string
	Album       string
	URL         string
	Thumbnail   string
	ReleaseDate string
}

// Client calls the Genius API.
type Client struct {
	httpClient HTTPClient
	token      string
	baseURL    string
	logger     *logrus.Entry
}

// NewClient constructs a Genius client. httpClient defaults to
// http.DefaultClient when nil.
func NewClient(token string, httpClient HTTPClient, logger *logrus.Entry) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("genius api token is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Client{
		httpClient: httpClient,
		token:      token,
		baseURL:    defaultBaseURL,
		logger:     logger,
	}, nil
}

// Lookup searches Genius for the song and returns its metadata. The raw
// title is cleaned of YouTube noise before searching. Returns
// domain.ErrLyricsNotFound when nothing matches.
func (c *Client) Lookup(ctx context.Context, rawTitle string) (SongInfo, error) {
	query := CleanTitle(rawTitle)
	if query == "" {
		return SongInfo{}, fmt.Errorf("%w: song title is required", domain.ErrValidation)
	}

	hit, err := c.search(ctx, query)
	if err != nil {
		return SongInfo{}, err
	}

	info := SongInfo{
		Title:     hit.Title,
		Artist:    hit.PrimaryArtist.Name,
		URL:       hit.URL,
		Thumbnail: hit.SongArtImageThumbnailURL,
	}

	// The song endpoint carries fields search omits; failure here only
	// loses the extras.
	if song, err := c.song(ctx, hit.ID); err == nil {
		if song.ReleaseDateForDisplay != "" {
			info.ReleaseDate = song.ReleaseDateForDisplay
		}
		if song.Album != nil {
			info.Album = song.Album.Name
		}
	} else {
		c.logger.WithFields(logging.Fields{
			"event":   "lyrics_song_detail",
			"song_id": hit.ID,
		}).WithError(err).Warn("song detail fetch failed")
	}

	c.logger.WithFields(logging.Fields{
		"event": "lyrics_lookup",
		"query": query,
		"title": info.Title,
	}).Debug("lyrics lookup completed")

	return info, nil
}

type geniusHit struct {
	ID                       int64  `json:"id"`
	Title                    string `json:"full_title"`
	URL                      string `json:"url"`
	SongArtImageThumbnailURL string `json:"song_art_image_thumbnail_url"`
	PrimaryArtist            struct {
		Name string `json:"name"`
	} `json:"primary_artist"`
}

type geniusSong struct {
	ReleaseDateForDisplay string `json:"release_date_for_display"`

	// album is null for singles.
	Album *struct {
		Name string `json:"name"`
	} `json:"album"`
}

func (c *Client) search(ctx context.Context, query string) (geniusHit, error) {
	var payload struct {
		Response struct {
			Hits []struct {
				Result geniusHit `json:"result"`
			} `json:"hits"`
		} `json:"response"`
	}

	endpoint := c.baseURL + "/search?q=" + url.QueryEscape(query)
	if err := c.get(ctx, endpoint, &payload); err != nil {
		return geniusHit{}, err
	}

	if len(payload.Response.Hits) == 0 {
		return geniusHit{}, fmt.Errorf("%w: %q", domain.ErrLyricsNotFound, query)
	}

	return payload.Response.Hits[0].Result, nil
}

func (c *Client) song(ctx context.Context, songID int64) (geniusSong, error) {
	var payload struct {
		Response struct {
			Song geniusSong `json:"song"`
		} `json:"response"`
	}

	endpoint := fmt.Sprintf("%s/songs/%d", c.baseURL, songID)
	if err := c.get(ctx, endpoint, &payload); err != nil {
		return geniusSong{}, err
	}

	return payload.Response.Song, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build genius request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("genius request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrLyricsNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("genius request: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read genius response: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse genius response: %w", err)
	}

	return nil
}

var (
	bracketedNoise = regexp.MustCompile(`(?i)[\(\[][^\)\]]*(official|video|audio|lyric|lyrics|visualizer|hd|4k|mv)[^\)\]]*[\)\]]`)
	featuredCredit = regexp.MustCompile(`(?i)\s+(ft\.?|feat\.?|featuring)\s+.*$`)
	multiSpace     = regexp.MustCompile(`\s{2,}`)
)

// CleanTitle strips YouTube upload noise so the remaining text searches
// well on Genius.
func CleanTitle(rawTitle string) string {
	cleaned := bracketedNoise.ReplaceAllString(rawTitle, " ")
	cleaned = featuredCredit.ReplaceAllString(cleaned, "")
	cleaned = multiSpace.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// FormatInfo renders the lookup result as a reply message.
func FormatInfo(info SongInfo) string {
	var b strings.Builder

	b.WriteString("🎵 " + info.Title + "\n")
	if info.Artist != "" {
		b.WriteString("🎤 " + info.Artist + "\n")
	}
	if info.Album != "" {
		b.WriteString("💿 " + info.Album + "\n")
	}
	if info.ReleaseDate != "" {
		b.WriteString("📅 " + info.ReleaseDate + "\n")
	}
	if info.URL != "" {
		b.WriteString("\n📖 Full lyrics: " + info.URL)
	}

	return strings.TrimRight(b.String(), "\n")
}
