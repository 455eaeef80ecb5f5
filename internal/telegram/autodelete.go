package telegram

import (
	"context"
	"time"

	"github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"

	"github.com/inyogeshwar/YTMusicLabBot/internal/logging"
)

const (
	autoDeleteDelay   = 30 * time.Second
	autoDeleteTimeout = 10 * time.Second
)

// scheduleDelete removes the message after autoDeleteDelay without blocking
// the caller. The returned function cancels the pending deletion.
func scheduleDelete(m messenger, chatID int64, messageID int, logger *logrus.Entry) func() {
	timer := time.AfterFunc(autoDeleteDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), autoDeleteTimeout)
		defer cancel()

		_, err := m.DeleteMessage(ctx, &bot.DeleteMessageParams{
			ChatID:    chatID,
			MessageID: messageID,
		})
		if err != nil {
			logger.WithFields(logging.Fields{
				"event":      "auto_delete",
				"chat_id":    chatID,
				"message_id": messageID,
			}).WithError(err).Debug("scheduled delete failed")
		}
	})

	return func() { timer.Stop() }
}
