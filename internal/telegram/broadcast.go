package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"

	"github.com/inyogeshwar/YTMusicLabBot/internal/logging"
	"github.com/inyogeshwar/YTMusicLabBot/internal/metrics"
)

const (
	// broadcastProgressEvery controls how often the progress message is
	// refreshed during a broadcast.
	broadcastProgressEvery = 50

	// broadcastPause spaces sends out to stay under Bot API rate limits.
	broadcastPause = 50 * time.Millisecond
)

// runBroadcast sends text to every known user. Per-recipient failures are
// counted, not retried; the final report aggregates both outcomes.
func (d *dispatcher) runBroadcast(ctx context.Context, m messenger, it interaction, text string) {
	userIDs, err := d.store.ListUserIDs(ctx)
	if err != nil {
		d.logger.WithField("event", "broadcast").WithError(err).Error("audience lookup failed")
		d.reply(ctx, m, it, "❌ Could not load the user list.")
		return
	}
	if len(userIDs) == 0 {
		d.reply(ctx, m, it, "ℹ️ There are no users to broadcast to.")
		return
	}

	progress, err := m.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: it.chatID,
		Text:   fmt.Sprintf("📢 Broadcasting to %d users...", len(userIDs)),
	})
	if err != nil {
		d.logger.WithField("event", "broadcast").WithError(err).Error("progress notice failed")
	}

	var sent, failed int
	for i, userID := range userIDs {
		if ctx.Err() != nil {
			break
		}

		_, err := m.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: userID,
			Text:   text,
		})
		if err != nil {
			failed++
			metrics.BroadcastMessages.WithLabelValues("failed").Inc()
			d.logger.WithFields(logging.Fields{
				"event":   "broadcast",
				"user_id": userID,
			}).WithError(err).Debug("broadcast delivery failed")
		} else {
			sent++
			metrics.BroadcastMessages.WithLabelValues("sent").Inc()
		}

		if progress != nil && (i+1)%broadcastProgressEvery == 0 {
			_, _ = m.EditMessageText(ctx, &bot.EditMessageTextParams{
				ChatID:    it.chatID,
				MessageID: progress.ID,
				Text:      fmt.Sprintf("📢 Broadcasting... %d/%d", i+1, len(userIDs)),
			})
		}

		select {
		case <-ctx.Done():
		case <-time.After(broadcastPause):
		}
	}

	report := fmt.Sprintf("📢 Broadcast complete\n\n✅ %d delivered\n❌ %d failed", sent, failed)

	if progress != nil {
		if _, err := m.EditMessageText(ctx, &bot.EditMessageTextParams{
			ChatID:    it.chatID,
			MessageID: progress.ID,
			Text:      report,
		}); err == nil {
			d.logBroadcast(it.userID, sent, failed)
			return
		}
	}

	d.reply(ctx, m, it, report)
	d.logBroadcast(it.userID, sent, failed)
}

func (d *dispatcher) logBroadcast(adminID int64, sent, failed int) {
	d.logger.WithFields(logging.Fields{
		"event":    "broadcast",
		"admin_id": adminID,
		"sent":     sent,
		"failed":   failed,
	}).Info("broadcast finished")
}
