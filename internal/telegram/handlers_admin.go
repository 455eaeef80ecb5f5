package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/inyogeshwar/YTMusicLabBot/internal/domain"
	"github.com/inyogeshwar/YTMusicLabBot/internal/logging"
)

const (
	adminOnlyText   = "⛔ This command is for admins only."
	primaryOnlyText = "⛔ Only the primary admin can manage the admin roster."
)

// authorize classifies the actor against the tier an action needs. The
// returned error always wraps domain.ErrUnauthorized.
func authorize(it interaction, need domain.Tier) error {
	if need == domain.TierPrimary {
		if it.tier != domain.TierPrimary {
			return fmt.Errorf("%w: primary admin required", domain.ErrUnauthorized)
		}
		return nil
	}

	if !it.isAdmin() {
		return fmt.Errorf("%w: admin tier required", domain.ErrUnauthorized)
	}
	return nil
}

// requireAdmin runs the pipeline and rejects non-admin actors.
func (d *dispatcher) requireAdmin(ctx context.Context, m messenger, update *models.Update) (interaction, bool) {
	it, ok := d.beginMessage(ctx, m, update)
	if !ok {
		return it, false
	}

	if err := authorize(it, domain.TierSecondary); err != nil {
		d.logger.WithFields(logging.Fields{
			"event":   "admin_command",
			"user_id": it.userID,
			"text":    it.text,
		}).WithError(err).Warn("admin command rejected")
		d.reply(ctx, m, it, adminOnlyText)
		return it, false
	}

	return it, true
}

// requirePrimary additionally rejects secondary admins. Secondaries get an
// explicit denial rather than a silent drop so the boundary is discoverable.
func (d *dispatcher) requirePrimary(ctx context.Context, m messenger, update *models.Update) (interaction, bool) {
	it, ok := d.requireAdmin(ctx, m, update)
	if !ok {
		return it, false
	}

	if err := authorize(it, domain.TierPrimary); err != nil {
		d.logger.WithFields(logging.Fields{
			"event":   "admin_command",
			"user_id": it.userID,
			"text":    it.text,
		}).WithError(err).Warn("primary-only command rejected")
		d.reply(ctx, m, it, primaryOnlyText)
		return it, false
	}

	return it, true
}

func (d *dispatcher) handleBroadcast(ctx context.Context, m messenger, update *models.Update) {
	it, ok := d.requireAdmin(ctx, m, update)
	if !ok {
		return
	}

	text := strings.TrimSpace(strings.TrimPrefix(it.text, "/broadcast"))
	if text == "" {
		d.reply(ctx, m, it, "Usage: /broadcast <message>")
		return
	}

	d.runBroadcast(ctx, m, it, text)
}

func (d *dispatcher) handleUsers(ctx context.Context, m messenger, update *models.Update) {
	it, ok := d.requireAdmin(ctx, m, update)
	if !ok {
		return
	}

	d.reply(ctx, m, it, d.usersReport(ctx))
}

func (d *dispatcher) handleStats(ctx context.Context, m messenger, update *models.Update) {
	it, ok := d.requireAdmin(ctx, m, update)
	if !ok {
		return
	}

	d.reply(ctx, m, it, d.statsReport(ctx))
}

func (d *dispatcher) handleAdmins(ctx context.Context, m messenger, update *models.Update) {
	it, ok := d.requireAdmin(ctx, m, update)
	if !ok {
		return
	}

	_, err := m.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      it.chatID,
		Text:        d.adminsReport(ctx),
		ReplyMarkup: adminPanelKeyboard(it.tier),
	})
	if err != nil {
		d.logger.WithField("event", "admin_panel").WithError(err).Error("panel send failed")
	}
}

// adminPanelKeyboard builds the control panel. Roster management rows only
// appear for the primary admin.
func adminPanelKeyboard(tier domain.Tier) *models.InlineKeyboardMarkup {
	keyboard := [][]models.InlineKeyboardButton{
		{
			{Text: "👥 Users", CallbackData: callbackAdmin + "users"},
			{Text: "📊 Stats", CallbackData: callbackAdmin + "stats"},
		},
		{
			{Text: "📢 Broadcast", CallbackData: callbackAdmin + "broadcast"},
			{Text: "🛡 Admins", CallbackData: callbackAdmin + "admins"},
		},
		{
			{Text: "📺 Set Channel", CallbackData: callbackAdmin + "setchannel"},
			{Text: "🗑 Clear Channel", CallbackData: callbackAdmin + "clearchannel"},
		},
		{
			{Text: "🎯 Add Promo", CallbackData: callbackAdmin + "addpromo"},
			{Text: "❌ Delete Promo", CallbackData: callbackAdmin + "delpromo"},
		},
	}

	if tier == domain.TierPrimary {
		keyboard = append(keyboard, []models.InlineKeyboardButton{
			{Text: "➕ Add Admin", CallbackData: callbackAdmin + "addadmin"},
			{Text: "➖ Remove Admin", CallbackData: callbackAdmin + "deladmin"},
		})
	}

	return &models.InlineKeyboardMarkup{InlineKeyboard: keyboard}
}

func (d *dispatcher) sendAdminPanel(ctx context.Context, m messenger, it interaction) {
	_, err := m.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      it.chatID,
		Text:        "🛡 Admin Control Panel\n\nChoose an action:",
		ReplyMarkup: adminPanelKeyboard(it.tier),
	})
	if err != nil {
		d.logger.WithField("event", "admin_panel").WithError(err).Error("panel send failed")
	}
}

// callbackAdmin routes the control panel buttons. Buttons whose command
// needs arguments reply with the usage hint; argument-free ones act
// directly.
func (d *dispatcher) callbackAdmin(ctx context.Context, m messenger, it interaction) {
	if err := authorize(it, domain.TierSecondary); err != nil {
		d.reply(ctx, m, it, adminOnlyText)
		return
	}

	action := strings.TrimPrefix(it.text, callbackAdmin)

	switch action {
	case "addadmin", "deladmin":
		if err := authorize(it, domain.TierPrimary); err != nil {
			d.reply(ctx, m, it, primaryOnlyText)
			return
		}
	}

	switch action {
	case "users":
		d.reply(ctx, m, it, d.usersReport(ctx))
	case "stats":
		d.reply(ctx, m, it, d.statsReport(ctx))
	case "admins":
		d.reply(ctx, m, it, d.adminsReport(ctx))
	case "broadcast":
		d.reply(ctx, m, it, "Usage: /broadcast <message>")
	case "setchannel":
		d.reply(ctx, m, it, "Usage: /setchannel <@channel or t.me link>")
	case "clearchannel":
		d.runClearChannel(ctx, m, it)
	case "addpromo":
		d.reply(ctx, m, it, "Reply to a photo with /addpromo <caption> to set the promo.")
	case "delpromo":
		d.runDelPromo(ctx, m, it)
	case "addadmin":
		d.reply(ctx, m, it, "Usage: /addadmin <user id>")
	case "deladmin":
		d.reply(ctx, m, it, "Usage: /deladmin <user id>")
	}
}

func (d *dispatcher) usersReport(ctx context.Context) string {
	stats, err := d.store.CountUsers(ctx)
	if err != nil {
		d.logger.WithField("event", "users_report").WithError(err).Error("user count failed")
		return "❌ Could not load user statistics."
	}

	return fmt.Sprintf("👥 Users\n\nTotal: %d\nActive: %d", stats.Total, stats.Active)
}

func (d *dispatcher) statsReport(ctx context.Context) string {
	users, err := d.store.CountUsers(ctx)
	if err != nil {
		d.logger.WithField("event", "stats_report").WithError(err).Error("user count failed")
		return "❌ Could not load statistics."
	}

	downloads, err := d.store.DownloadStats(ctx)
	if err != nil {
		d.logger.WithField("event", "stats_report").WithError(err).Error("download stats failed")
		return "❌ Could not load statistics."
	}

	return fmt.Sprintf(
		"📊 Bot Statistics\n\n"+
			"Users: %d (%d active)\n"+
			"Downloads: %d total, %d today\n"+
			"Audio: %d · Video: %d\n"+
			"Uptime: %s",
		users.Total, users.Active,
		downloads.Total, downloads.Today,
		downloads.ByKind[domain.MediaAudio], downloads.ByKind[domain.MediaVideo],
		time.Since(d.processStart).Round(time.Second),
	)
}

func (d *dispatcher) adminsReport(ctx context.Context) string {
	roster, err := d.store.ListAdmins(ctx)
	if err != nil {
		d.logger.WithField("event", "admins_report").WithError(err).Error("roster lookup failed")
		return "❌ Could not load the admin roster."
	}

	var b strings.Builder
	b.WriteString("🛡 Admin Roster\n")
	for _, role := range roster {
		if role.Tier == domain.TierPrimary {
			b.WriteString(fmt.Sprintf("\n👑 %d (primary)", role.UserID))
		} else {
			b.WriteString(fmt.Sprintf("\n• %d", role.UserID))
		}
	}

	return b.String()
}

func (d *dispatcher) handleSetChannel(ctx context.Context, m messenger, update *models.Update) {
	it, ok := d.requireAdmin(ctx, m, update)
	if !ok {
		return
	}

	ref := strings.TrimSpace(strings.TrimPrefix(it.text, "/setchannel"))
	if ref == "" {
		d.reply(ctx, m, it, "Usage: /setchannel <@channel or t.me link>")
		return
	}

	normalized, err := d.mutator.SetForcedChannel(ctx, ref)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			d.reply(ctx, m, it, "⚠️ That channel reference is not valid.")
			return
		}
		d.logger.WithField("event", "set_channel").WithError(err).Error("channel update failed")
		d.reply(ctx, m, it, "❌ Could not update the channel.")
		return
	}

	d.reply(ctx, m, it, "✅ Forced channel set to "+normalized+".")
}

func (d *dispatcher) handleClearChannel(ctx context.Context, m messenger, update *models.Update) {
	it, ok := d.requireAdmin(ctx, m, update)
	if !ok {
		return
	}

	d.runClearChannel(ctx, m, it)
}

func (d *dispatcher) runClearChannel(ctx context.Context, m messenger, it interaction) {
	if err := d.mutator.ClearForcedChannel(ctx); err != nil {
		d.logger.WithField("event", "clear_channel").WithError(err).Error("channel clear failed")
		d.reply(ctx, m, it, "❌ Could not clear the channel.")
		return
	}

	d.reply(ctx, m, it, "✅ Forced channel cleared. The bot is open to everyone.")
}

// handleAddPromo expects the command as a reply to a photo; the caption is
// taken from the command arguments, falling back to the photo's caption.
// A bare /addpromo with no reply opens the control panel instead.
func (d *dispatcher) handleAddPromo(ctx context.Context, m messenger, update *models.Update) {
	it, ok := d.requireAdmin(ctx, m, update)
	if !ok {
		return
	}

	reply := update.Message.ReplyToMessage
	if reply == nil {
		d.sendAdminPanel(ctx, m, it)
		return
	}
	if len(reply.Photo) == 0 {
		d.reply(ctx, m, it, "Usage: reply to a photo with /addpromo <caption>")
		return
	}

	caption := strings.TrimSpace(strings.TrimPrefix(it.text, "/addpromo"))
	if caption == "" {
		caption = strings.TrimSpace(reply.Caption)
	}
	if caption == "" {
		d.reply(ctx, m, it, "⚠️ A promo needs a caption. Add one after /addpromo.")
		return
	}

	// The largest photo size is last.
	fileID := reply.Photo[len(reply.Photo)-1].FileID

	if err := d.mutator.SetPromo(ctx, fileID, caption); err != nil {
		d.logger.WithField("event", "add_promo").WithError(err).Error("promo update failed")
		d.reply(ctx, m, it, "❌ Could not save the promo.")
		return
	}

	d.reply(ctx, m, it, "✅ Promo saved. It will follow every download.")
}

func (d *dispatcher) handleDelPromo(ctx context.Context, m messenger, update *models.Update) {
	it, ok := d.requireAdmin(ctx, m, update)
	if !ok {
		return
	}

	d.runDelPromo(ctx, m, it)
}

func (d *dispatcher) runDelPromo(ctx context.Context, m messenger, it interaction) {
	if err := d.mutator.ClearPromo(ctx); err != nil {
		d.logger.WithField("event", "del_promo").WithError(err).Error("promo clear failed")
		d.reply(ctx, m, it, "❌ Could not remove the promo.")
		return
	}

	d.reply(ctx, m, it, "✅ Promo removed.")
}

func (d *dispatcher) handleAddAdmin(ctx context.Context, m messenger, update *models.Update) {
	it, ok := d.requirePrimary(ctx, m, update)
	if !ok {
		return
	}

	userID, ok := parseUserIDArg(it.text, "/addadmin")
	if !ok {
		d.reply(ctx, m, it, "Usage: /addadmin <user id>")
		return
	}

	switch err := d.mutator.AddAdmin(ctx, userID); {
	case err == nil:
		d.reply(ctx, m, it, fmt.Sprintf("✅ User %d is now a secondary admin.", userID))
	case errors.Is(err, domain.ErrAlreadyAdmin):
		d.reply(ctx, m, it, fmt.Sprintf("ℹ️ User %d is already an admin.", userID))
	case errors.Is(err, domain.ErrPrimaryImmutable):
		d.reply(ctx, m, it, "⚠️ The primary admin cannot be changed.")
	default:
		d.logger.WithField("event", "add_admin").WithError(err).Error("roster update failed")
		d.reply(ctx, m, it, "❌ Could not update the roster.")
	}
}

func (d *dispatcher) handleDelAdmin(ctx context.Context, m messenger, update *models.Update) {
	it, ok := d.requirePrimary(ctx, m, update)
	if !ok {
		return
	}

	userID, ok := parseUserIDArg(it.text, "/deladmin")
	if !ok {
		d.reply(ctx, m, it, "Usage: /deladmin <user id>")
		return
	}

	switch err := d.mutator.RemoveAdmin(ctx, userID); {
	case err == nil:
		d.reply(ctx, m, it, fmt.Sprintf("✅ User %d is no longer an admin.", userID))
	case errors.Is(err, domain.ErrNotAnAdmin):
		d.reply(ctx, m, it, fmt.Sprintf("ℹ️ User %d is not an admin.", userID))
	case errors.Is(err, domain.ErrPrimaryImmutable):
		d.reply(ctx, m, it, "⚠️ The primary admin cannot be removed.")
	default:
		d.logger.WithField("event", "del_admin").WithError(err).Error("roster update failed")
		d.reply(ctx, m, it, "❌ Could not update the roster.")
	}
}

func parseUserIDArg(text, command string) (int64, bool) {
	arg := strings.TrimSpace(strings.TrimPrefix(text, command))
	if arg == "" {
		return 0, false
	}

	userID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || userID == 0 {
		return 0, false
	}

	return userID, true
}
