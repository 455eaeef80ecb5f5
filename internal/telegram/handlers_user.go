package telegram

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/inyogeshwar/YTMusicLabBot/internal/domain"
	"github.com/inyogeshwar/YTMusicLabBot/internal/logging"
	"github.com/inyogeshwar/YTMusicLabBot/internal/lyrics"
	"github.com/inyogeshwar/YTMusicLabBot/internal/metrics"
	"github.com/inyogeshwar/YTMusicLabBot/internal/youtube"
)

var youtubeURLPattern = regexp.MustCompile(`(?i)(youtube\.com/watch\?|youtu\.be/|youtube\.com/shorts/)`)

const (
	callbackPick   = "pick:"
	callbackFormat = "fmt:"
	callbackAdmin  = "adm:"
	callbackLyrics = "lyr:"
	sessionExpired = "⌛ Session expired. Please search again."
	promoSeparator = "━━━━━━━━━━━━━━━━━━━━"
	startText      = "🎶 Welcome to YT Music Lab!\n\n" +
		"Send me a song name to search YouTube, or paste a YouTube link to download it directly.\n\n" +
		"Commands:\n" +
		"/search <query> — search for music\n" +
		"/lyrics <song> — find song lyrics\n" +
		"/musicmenu — show the music menu\n" +
		"/help — how to use the bot"
	helpText = "ℹ️ How to use this bot:\n\n" +
		"1. Send a song name or use /search <query>\n" +
		"2. Pick a result and choose MP3 or MP4\n" +
		"3. Paste a YouTube link for a direct download\n" +
		"4. Use /lyrics <song> to look up lyrics"
)

func (d *dispatcher) handleStart(ctx context.Context, m messenger, update *models.Update) {
	it, ok := d.beginMessage(ctx, m, update)
	if !ok {
		return
	}

	d.reply(ctx, m, it, startText)
}

func (d *dispatcher) handleHelp(ctx context.Context, m messenger, update *models.Update) {
	it, ok := d.beginMessage(ctx, m, update)
	if !ok {
		return
	}

	d.reply(ctx, m, it, helpText)
}

func (d *dispatcher) handleMusicMenu(ctx context.Context, m messenger, update *models.Update) {
	it, ok := d.beginMessage(ctx, m, update)
	if !ok {
		return
	}

	_, err := m.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: it.chatID,
		Text:   "🎧 Music Menu\n\nWhat would you like to do?",
		ReplyMarkup: &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{{Text: "🔍 Search Music", CallbackData: "menu:search"}},
				{{Text: "📜 Find Lyrics", CallbackData: "menu:lyrics"}},
				{{Text: "ℹ️ Help", CallbackData: "menu:help"}},
			},
		},
	})
	if err != nil {
		d.logger.WithField("event", "music_menu").WithError(err).Error("menu send failed")
	}
}

func (d *dispatcher) handleSearchCommand(ctx context.Context, m messenger, update *models.Update) {
	it, ok := d.beginMessage(ctx, m, update)
	if !ok {
		return
	}

	query := strings.TrimSpace(strings.TrimPrefix(it.text, "/search"))
	if query == "" {
		d.reply(ctx, m, it, "Usage: /search <song name>")
		return
	}

	d.runSearch(ctx, m, it, query)
}

func (d *dispatcher) handleLyricsCommand(ctx context.Context, m messenger, update *models.Update) {
	it, ok := d.beginMessage(ctx, m, update)
	if !ok {
		return
	}

	query := strings.TrimSpace(strings.TrimPrefix(it.text, "/lyrics"))
	if query == "" {
		d.reply(ctx, m, it, "Usage: /lyrics <song name>")
		return
	}

	d.runLyrics(ctx, m, it, query)
}

// handleText routes free-form messages: YouTube links go straight to the
// format chooser, anything else is a search query.
func (d *dispatcher) handleText(ctx context.Context, m messenger, update *models.Update) {
	it, ok := d.beginMessage(ctx, m, update)
	if !ok {
		return
	}
	if it.text == "" || strings.HasPrefix(it.text, "/") {
		return
	}

	if youtubeURLPattern.MatchString(it.text) {
		d.sendFormatChooser(ctx, m, it, trackForURL(it.text))
		return
	}

	d.runSearch(ctx, m, it, it.text)
}

// trackForURL wraps a raw URL so the download flow can treat direct links
// and picked search results the same way.
func trackForURL(url string) youtube.Track {
	return youtube.Track{ID: rawURLMarker + url, Title: "YouTube link"}
}

// rawURLMarker distinguishes direct links from search result video ids.
const rawURLMarker = "url\x00"

func trackURL(t youtube.Track) string {
	if strings.HasPrefix(t.ID, rawURLMarker) {
		return strings.TrimPrefix(t.ID, rawURLMarker)
	}
	return t.URL()
}

func (d *dispatcher) runSearch(ctx context.Context, m messenger, it interaction, query string) {
	tracks, err := d.fetcher.Search(ctx, query, youtube.DefaultSearchLimit)
	if err != nil {
		d.logger.WithFields(logging.Fields{
			"event": "search",
			"query": query,
		}).WithError(err).Error("search failed")
		d.reply(ctx, m, it, "❌ Search failed. Please try again later.")
		return
	}
	if len(tracks) == 0 {
		d.reply(ctx, m, it, "🤷 No results found for \""+query+"\".")
		return
	}

	d.sessions.SetResults(it.userID, tracks)

	keyboard := make([][]models.InlineKeyboardButton, 0, len(tracks))
	for i, track := range tracks {
		label := fmt.Sprintf("%d. %s", i+1, track.Title)
		if track.Duration > 0 {
			label += " (" + formatDuration(track.Duration) + ")"
		}
		keyboard = append(keyboard, []models.InlineKeyboardButton{
			{Text: label, CallbackData: callbackPick + strconv.Itoa(i)},
		})
	}

	_, err = m.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      it.chatID,
		Text:        "🔍 Results for \"" + query + "\":",
		ReplyMarkup: &models.InlineKeyboardMarkup{InlineKeyboard: keyboard},
	})
	if err != nil {
		d.logger.WithField("event", "search").WithError(err).Error("results send failed")
	}
}

func (d *dispatcher) runLyrics(ctx context.Context, m messenger, it interaction, query string) {
	info, err := d.lyrics.Lookup(ctx, query)
	if err != nil {
		if errors.Is(err, domain.ErrLyricsNotFound) {
			metrics.LyricsLookups.WithLabelValues("not_found").Inc()
			d.reply(ctx, m, it, "🤷 No lyrics found for \""+query+"\".")
			return
		}
		metrics.LyricsLookups.WithLabelValues("error").Inc()
		d.logger.WithFields(logging.Fields{
			"event": "lyrics",
			"query": query,
		}).WithError(err).Error("lyrics lookup failed")
		d.reply(ctx, m, it, "❌ Lyrics lookup failed. Please try again later.")
		return
	}

	metrics.LyricsLookups.WithLabelValues("found").Inc()

	d.sessions.SetLyricsQuery(it.userID, lyricsDownloadQuery(info))

	_, err = m.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: it.chatID,
		Text:   lyrics.FormatInfo(info),
		ReplyMarkup: &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{{Text: "🎵 Download MP3", CallbackData: callbackLyrics + "dl"}},
			},
		},
	})
	if err != nil {
		d.logger.WithField("event", "lyrics").WithError(err).Error("lyrics reply failed")
	}
}

// lyricsDownloadQuery builds the search query the download button uses.
func lyricsDownloadQuery(info lyrics.SongInfo) string {
	query := info.Title
	if info.Artist != "" && !strings.Contains(query, info.Artist) {
		query += " " + info.Artist
	}
	return strings.TrimSpace(query)
}

// callbackLyricsDownload fetches the top search result for the remembered
// lyrics match as audio.
func (d *dispatcher) callbackLyricsDownload(ctx context.Context, m messenger, it interaction) {
	query, ok := d.sessions.LyricsQuery(it.userID)
	if !ok {
		d.reply(ctx, m, it, sessionExpired)
		return
	}

	tracks, err := d.fetcher.Search(ctx, query, 1)
	if err != nil {
		d.logger.WithFields(logging.Fields{
			"event": "lyrics_download",
			"query": query,
		}).WithError(err).Error("search failed")
		d.reply(ctx, m, it, "❌ Search failed. Please try again later.")
		return
	}
	if len(tracks) == 0 {
		d.reply(ctx, m, it, "🤷 No results found for \""+query+"\".")
		return
	}

	d.sessions.SetPending(it.userID, tracks[0])
	d.runDownload(ctx, m, it, tracks[0], domain.MediaAudio)
}

// handleCallback dispatches inline keyboard presses.
func (d *dispatcher) handleCallback(ctx context.Context, m messenger, update *models.Update) {
	it, ok := d.beginCallback(ctx, m, update)
	if !ok {
		return
	}

	switch {
	case strings.HasPrefix(it.text, callbackPick):
		d.callbackPick(ctx, m, it)
	case strings.HasPrefix(it.text, callbackFormat):
		d.callbackFormat(ctx, m, it)
	case strings.HasPrefix(it.text, callbackAdmin):
		d.callbackAdmin(ctx, m, it)
	case strings.HasPrefix(it.text, callbackLyrics):
		d.callbackLyricsDownload(ctx, m, it)
	case it.text == "menu:search":
		d.reply(ctx, m, it, "Send me a song name and I'll search YouTube for it.")
	case it.text == "menu:lyrics":
		d.reply(ctx, m, it, "Usage: /lyrics <song name>")
	case it.text == "menu:help":
		d.reply(ctx, m, it, helpText)
	default:
		d.logger.WithFields(logging.Fields{
			"event": "callback",
			"data":  it.text,
		}).Debug("unrecognized callback")
	}
}

func (d *dispatcher) callbackPick(ctx context.Context, m messenger, it interaction) {
	index, err := strconv.Atoi(strings.TrimPrefix(it.text, callbackPick))
	if err != nil {
		d.reply(ctx, m, it, sessionExpired)
		return
	}

	track, ok := d.sessions.Result(it.userID, index)
	if !ok {
		d.reply(ctx, m, it, sessionExpired)
		return
	}

	d.sessions.SetPending(it.userID, track)
	d.sendFormatChooser(ctx, m, it, track)
}

func (d *dispatcher) sendFormatChooser(ctx context.Context, m messenger, it interaction, track youtube.Track) {
	d.sessions.SetPending(it.userID, track)

	_, err := m.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: it.chatID,
		Text:   "🎯 " + track.Title + "\n\nChoose a format:",
		ReplyMarkup: &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{
				{
					{Text: "🎵 MP3", CallbackData: callbackFormat + "mp3"},
					{Text: "🎬 MP4", CallbackData: callbackFormat + "mp4"},
				},
				{{Text: "📜 Lyrics", CallbackData: callbackFormat + "lyrics"}},
			},
		},
	})
	if err != nil {
		d.logger.WithField("event", "format_chooser").WithError(err).Error("chooser send failed")
	}
}

func (d *dispatcher) callbackFormat(ctx context.Context, m messenger, it interaction) {
	track, ok := d.sessions.Pending(it.userID)
	if !ok {
		d.reply(ctx, m, it, sessionExpired)
		return
	}

	switch strings.TrimPrefix(it.text, callbackFormat) {
	case "mp3":
		d.runDownload(ctx, m, it, track, domain.MediaAudio)
	case "mp4":
		d.runDownload(ctx, m, it, track, domain.MediaVideo)
	case "lyrics":
		d.runLyrics(ctx, m, it, track.Title)
	default:
		d.reply(ctx, m, it, sessionExpired)
	}
}

// runDownload is the full download pipeline: fetch, deliver, record, promo.
// The processing notice is removed shortly after delivery.
func (d *dispatcher) runDownload(ctx context.Context, m messenger, it interaction, track youtube.Track, kind domain.MediaKind) {
	processing, err := m.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: it.chatID,
		Text:   "⏳ Downloading, please wait...",
	})
	if err != nil {
		d.logger.WithField("event", "download").WithError(err).Error("processing notice failed")
	}

	url := trackURL(track)

	var media *youtube.Media
	if kind == domain.MediaAudio {
		media, err = d.fetcher.FetchAudio(ctx, url)
	} else {
		media, err = d.fetcher.FetchVideo(ctx, url)
	}
	if err != nil {
		d.failDownload(ctx, m, it, err)
		return
	}
	defer media.Cleanup()

	if err := d.deliver(ctx, m, it, media); err != nil {
		metrics.DownloadFailures.WithLabelValues("delivery").Inc()
		d.logger.WithFields(logging.Fields{
			"event": "download",
			"kind":  string(kind),
			"title": media.Title,
		}).WithError(err).Error("media delivery failed")
		d.reply(ctx, m, it, "❌ Could not send the file. Please try again.")
		return
	}

	record := domain.DownloadRecord{
		UserID:    it.userID,
		Kind:      kind,
		Title:     media.Title,
		SizeBytes: media.SizeBytes,
	}
	if err := d.store.RecordDownload(ctx, record); err != nil {
		d.logger.WithFields(logging.Fields{
			"event":   "download",
			"user_id": it.userID,
		}).WithError(err).Error("download record failed")
	}

	metrics.Downloads.WithLabelValues(string(kind)).Inc()

	d.logger.WithFields(logging.Fields{
		"event":   "download",
		"user_id": it.userID,
		"kind":    string(kind),
		"title":   media.Title,
		"bytes":   media.SizeBytes,
	}).Info("download delivered")

	// Promo failures must never spoil a successful download.
	d.sendPromo(ctx, m, it)

	if processing != nil {
		scheduleDelete(m, it.chatID, processing.ID, d.logger)
	}
}

func (d *dispatcher) failDownload(ctx context.Context, m messenger, it interaction, err error) {
	switch {
	case errors.Is(err, domain.ErrMediaTooLarge):
		metrics.DownloadFailures.WithLabelValues("too_large").Inc()
		d.reply(ctx, m, it, "⚠️ That file is too large for Telegram. Try the MP3 version.")
	case errors.Is(err, domain.ErrMediaUnavailable):
		metrics.DownloadFailures.WithLabelValues("unavailable").Inc()
		d.reply(ctx, m, it, "⚠️ That video is unavailable or cannot be downloaded.")
	default:
		metrics.DownloadFailures.WithLabelValues("error").Inc()
		d.logger.WithField("event", "download").WithError(err).Error("download failed")
		d.reply(ctx, m, it, "❌ Download failed. Please try again later.")
	}
}

func (d *dispatcher) deliver(ctx context.Context, m messenger, it interaction, media *youtube.Media) error {
	f, err := os.Open(media.Path)
	if err != nil {
		return fmt.Errorf("open media: %w", err)
	}
	defer func() { _ = f.Close() }()

	upload := &models.InputFileUpload{
		Filename: filepath.Base(media.Path),
		Data:     f,
	}

	if media.Kind == domain.MediaAudio {
		_, err = m.SendAudio(ctx, &bot.SendAudioParams{
			ChatID:    it.chatID,
			Audio:     upload,
			Title:     media.Title,
			Performer: media.Performer,
			Caption:   media.Title,
		})
		return err
	}

	_, err = m.SendVideo(ctx, &bot.SendVideoParams{
		ChatID:            it.chatID,
		Video:             upload,
		Caption:           media.Title,
		SupportsStreaming: true,
	})
	return err
}

// sendPromo delivers the configured promo banner after a download.
func (d *dispatcher) sendPromo(ctx context.Context, m messenger, it interaction) {
	promo, err := d.store.GetPromo(ctx)
	if err != nil {
		d.logger.WithField("event", "promo").WithError(err).Warn("promo lookup failed")
		return
	}
	if promo == nil {
		return
	}

	d.reply(ctx, m, it, promoSeparator)

	_, err = m.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:  it.chatID,
		Photo:   &models.InputFileString{Data: promo.FileID},
		Caption: promo.Caption,
	})
	if err != nil {
		d.logger.WithField("event", "promo").WithError(err).Warn("promo send failed")
	}
}

func formatDuration(dur time.Duration) string {
	total := int(dur.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
