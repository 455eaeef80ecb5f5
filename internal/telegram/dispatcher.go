package telegram

import (
	"context"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"github.com/inyogeshwar/YTMusicLabBot/internal/domain"
	"github.com/inyogeshwar/YTMusicLabBot/internal/logging"
	"github.com/inyogeshwar/YTMusicLabBot/internal/lyrics"
	"github.com/inyogeshwar/YTMusicLabBot/internal/metrics"
	"github.com/inyogeshwar/YTMusicLabBot/internal/roles"
	"github.com/inyogeshwar/YTMusicLabBot/internal/youtube"
)

// messenger is the slice of the Telegram API the handlers use. *bot.Bot
// satisfies it; tests substitute a fake.
type messenger interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	SendAudio(ctx context.Context, params *bot.SendAudioParams) (*models.Message, error)
	SendVideo(ctx context.Context, params *bot.SendVideoParams) (*models.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
	GetChatMember(ctx context.Context, params *bot.GetChatMemberParams) (*models.ChatMember, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// dataStore is the persistence surface the dispatcher reads and writes.
type dataStore interface {
	ListAdmins(ctx context.Context) ([]domain.AdminRole, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
	CountUsers(ctx context.Context) (domain.UserStats, error)
	DownloadStats(ctx context.Context) (domain.DownloadStats, error)
	RecordDownload(ctx context.Context, rec domain.DownloadRecord) error
	Settings(ctx context.Context) (domain.Settings, error)
	GetPromo(ctx context.Context) (*domain.Promo, error)
}

// settingsMutator is the serialized configuration surface for admin commands.
type settingsMutator interface {
	SetForcedChannel(ctx context.Context, channelRef string) (string, error)
	ClearForcedChannel(ctx context.Context) error
	SetPromo(ctx context.Context, fileID, caption string) error
	ClearPromo(ctx context.Context) error
	AddAdmin(ctx context.Context, userID int64) error
	RemoveAdmin(ctx context.Context, userID int64) error
}

type userRegistrar interface {
	EnsureUser(ctx context.Context, u domain.User) (bool, error)
}

type mediaFetcher interface {
	Search(ctx context.Context, query string, limit int) ([]youtube.Track, error)
	FetchAudio(ctx context.Context, url string) (*youtube.Media, error)
	FetchVideo(ctx context.Context, url string) (*youtube.Media, error)
}

type lyricsProvider interface {
	Lookup(ctx context.Context, rawTitle string) (lyrics.SongInfo, error)
}

// dispatcher routes updates through a fixed pipeline: register the user,
// resolve their tier, apply channel gating, then hand off to the matched
// handler.
type dispatcher struct {
	store     dataStore
	mutator   settingsMutator
	registrar userRegistrar
	resolver  roles.Resolver
	fetcher   mediaFetcher
	lyrics    lyricsProvider
	sessions  *sessionStore

	processStart time.Time
	logger       *logrus.Entry
}

// interaction is one resolved inbound update.
type interaction struct {
	userID    int64
	chatID    int64
	messageID int
	text      string
	tier      domain.Tier
}

func (it interaction) isAdmin() bool {
	return it.tier.IsAdmin()
}

// beginMessage runs the pipeline for a message update. ok is false when the
// update carries no usable actor or the user is gated; gated users have
// already been prompted to join.
func (d *dispatcher) beginMessage(ctx context.Context, m messenger, update *models.Update) (interaction, bool) {
	if update == nil || update.Message == nil || update.Message.From == nil {
		return interaction{}, false
	}

	msg := update.Message
	it := interaction{
		userID:    msg.From.ID,
		chatID:    msg.Chat.ID,
		messageID: msg.ID,
		text:      strings.TrimSpace(msg.Text),
	}

	return d.resolve(ctx, m, it, msg.From)
}

// beginCallback runs the pipeline for a callback query and acknowledges it.
func (d *dispatcher) beginCallback(ctx context.Context, m messenger, update *models.Update) (interaction, bool) {
	if update == nil || update.CallbackQuery == nil {
		return interaction{}, false
	}

	cb := update.CallbackQuery
	_, _ = m.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cb.ID})

	it := interaction{
		userID: cb.From.ID,
		text:   strings.TrimSpace(cb.Data),
	}
	if cb.Message.Message != nil {
		it.chatID = cb.Message.Message.Chat.ID
		it.messageID = cb.Message.Message.ID
	}
	if it.chatID == 0 {
		it.chatID = cb.From.ID
	}

	return d.resolve(ctx, m, it, &cb.From)
}

func (d *dispatcher) resolve(ctx context.Context, m messenger, it interaction, from *models.User) (interaction, bool) {
	// Registration is unconditional; a later rejection must still leave
	// the user counted.
	_, err := d.registrar.EnsureUser(ctx, domain.User{
		UserID:    from.ID,
		Username:  from.Username,
		FirstName: from.FirstName,
		LastName:  from.LastName,
	})
	if err != nil {
		d.logger.WithFields(logging.Fields{
			"event":   "user_register",
			"user_id": from.ID,
		}).WithError(err).Error("user registration failed")
	}

	it.tier = d.resolveTier(ctx, it.userID)

	if !it.isAdmin() && !gateExempt(it.text) {
		if channel, member := d.channelMembership(ctx, m, it.userID); !member {
			d.promptJoin(ctx, m, it, channel)
			return it, false
		}
	}

	return it, true
}

func (d *dispatcher) resolveTier(ctx context.Context, userID int64) domain.Tier {
	roster, err := d.store.ListAdmins(ctx)
	if err != nil {
		d.logger.WithFields(logging.Fields{
			"event":   "role_resolution",
			"user_id": userID,
		}).WithError(err).Error("admin roster lookup failed")
		// Without a roster nobody gets elevated except the fixed primary.
		roster = nil
	}

	return d.resolver.Resolve(userID, roster)
}

// gateExempt lists interactions a non-member may still use.
func gateExempt(text string) bool {
	return strings.HasPrefix(text, "/start") || strings.HasPrefix(text, "/help")
}

// channelMembership reports whether userID may proceed. Lookup failures
// count as membership so a misconfigured channel never locks everyone out.
func (d *dispatcher) channelMembership(ctx context.Context, m messenger, userID int64) (string, bool) {
	settings, err := d.store.Settings(ctx)
	if err != nil {
		d.logger.WithField("event", "channel_gate").WithError(err).Error("settings lookup failed")
		return "", true
	}

	channel := settings.ForcedChannel
	if channel == "" {
		return "", true
	}

	member, err := m.GetChatMember(ctx, &bot.GetChatMemberParams{
		ChatID: channelChatRef(channel),
		UserID: userID,
	})
	if err != nil {
		d.logger.WithFields(logging.Fields{
			"event":   "channel_gate",
			"channel": channel,
			"user_id": userID,
		}).WithError(err).Warn("membership lookup failed, allowing")
		return channel, true
	}

	switch member.Type {
	case models.ChatMemberTypeOwner, models.ChatMemberTypeAdministrator,
		models.ChatMemberTypeMember, models.ChatMemberTypeRestricted:
		return channel, true
	}

	return channel, false
}

func (d *dispatcher) promptJoin(ctx context.Context, m messenger, it interaction, channel string) {
	metrics.GatedRejections.Inc()

	d.logger.WithFields(logging.Fields{
		"event":   "channel_gate",
		"user_id": it.userID,
		"channel": channel,
	}).Info("interaction gated")

	_, err := m.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: it.chatID,
		Text:   "🔒 Please join our channel to use this bot, then try again.",
		ReplyMarkup: &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{{
				{Text: "📢 Join Channel", URL: channelJoinURL(channel)},
			}},
		},
	})
	if err != nil {
		d.logger.WithField("event", "channel_gate").WithError(err).Error("join prompt failed")
	}
}

// channelChatRef converts a stored channel reference into the form the
// Bot API accepts for chat lookups.
func channelChatRef(channel string) string {
	if strings.HasPrefix(channel, "@") {
		return channel
	}
	if idx := strings.Index(channel, "t.me/"); idx >= 0 {
		return "@" + strings.Trim(channel[idx+len("t.me/"):], "/")
	}
	return "@" + channel
}

func channelJoinURL(channel string) string {
	if strings.Contains(channel, "t.me/") {
		return channel
	}
	return "https://t.me/" + strings.TrimPrefix(channel, "@")
}

// reply sends a plain text message to the interaction's chat.
func (d *dispatcher) reply(ctx context.Context, m messenger, it interaction, text string) {
	_, err := m.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: it.chatID,
		Text:   text,
	})
	if err != nil {
		d.logger.WithFields(logging.Fields{
			"event":   "reply",
			"chat_id": it.chatID,
		}).WithError(err).Error("reply failed")
	}
}
