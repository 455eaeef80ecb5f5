// Package telegram hosts the Telegram client, routing, and handlers.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"github.com/inyogeshwar/YTMusicLabBot/internal/config"
	"github.com/inyogeshwar/YTMusicLabBot/internal/logging"
	"github.com/inyogeshwar/YTMusicLabBot/internal/roles"
)

type botClient interface {
	Start(ctx context.Context)
	RegisterHandler(handlerType bot.HandlerType, pattern string, matchType bot.MatchType, f bot.HandlerFunc, middlewares ...bot.Middleware) string
	SetMyCommands(ctx context.Context, params *bot.SetMyCommandsParams) (bool, error)
}

// *bot.Bot must keep satisfying the seam.
var _ botClient = (*bot.Bot)(nil)

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
		"callback_query",
	}

	createBot = func(token string, options ...bot.Option) (botClient, error) {
		return bot.New(token, options...)
	}
)

// Client wraps the Telegram bot instance and the update dispatcher.
type Client struct {
	bot        botClient
	dispatcher *dispatcher
	logger     *logrus.Entry
}

// Option customizes client construction.
type Option func(*dispatcher)

// WithStore wires the persistence layer.
func WithStore(store dataStore) Option {
	return func(d *dispatcher) { d.store = store }
}

// WithMutator wires the serialized settings mutator.
func WithMutator(mutator settingsMutator) Option {
	return func(d *dispatcher) { d.mutator = mutator }
}

// WithUserRegistrar wires the user registration helper.
func WithUserRegistrar(registrar userRegistrar) Option {
	return func(d *dispatcher) { d.registrar = registrar }
}

// WithResolver wires the admin tier resolver.
func WithResolver(resolver roles.Resolver) Option {
	return func(d *dispatcher) { d.resolver = resolver }
}

// WithFetcher wires the media fetcher.
func WithFetcher(fetcher mediaFetcher) Option {
	return func(d *dispatcher) { d.fetcher = fetcher }
}

// WithLyrics wires the lyrics provider.
func WithLyrics(provider lyricsProvider) Option {
	return func(d *dispatcher) { d.lyrics = provider }
}

// WithProcessStart records the process start time for uptime reporting.
func WithProcessStart(start time.Time) Option {
	return func(d *dispatcher) { d.processStart = start }
}

// NewClient initializes the Telegram bot with long polling and registers
// all command, text, and callback handlers.
func NewClient(cfg config.Config, logger *logrus.Entry, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, errors.New("bot token is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	d := &dispatcher{
		sessions:     newSessionStore(),
		processStart: time.Now(),
		logger:       logger,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.store == nil {
		return nil, errors.New("store is required")
	}
	if d.mutator == nil {
		return nil, errors.New("settings mutator is required")
	}
	if d.registrar == nil {
		return nil, errors.New("user registrar is required")
	}
	if d.fetcher == nil {
		return nil, errors.New("media fetcher is required")
	}
	if d.lyrics == nil {
		return nil, errors.New("lyrics provider is required")
	}

	tgBot, err := createBot(cfg.BotToken,
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			d.handleText(ctx, b, update)
		}),
		bot.WithErrorsHandler(errorHandler(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}

	c := &Client{
		bot:        tgBot,
		dispatcher: d,
		logger:     logger,
	}
	c.registerHandlers()

	return c, nil
}

func (c *Client) registerHandlers() {
	d := c.dispatcher

	commands := map[string]func(context.Context, messenger, *models.Update){
		"/start":        d.handleStart,
		"/help":         d.handleHelp,
		"/search":       d.handleSearchCommand,
		"/lyrics":       d.handleLyricsCommand,
		"/musicmenu":    d.handleMusicMenu,
		"/broadcast":    d.handleBroadcast,
		"/users":        d.handleUsers,
		"/stats":        d.handleStats,
		"/admins":       d.handleAdmins,
		"/setchannel":   d.handleSetChannel,
		"/clearchannel": d.handleClearChannel,
		"/addpromo":     d.handleAddPromo,
		"/delpromo":     d.handleDelPromo,
		"/addadmin":     d.handleAddAdmin,
		"/deladmin":     d.handleDelAdmin,
	}

	for pattern, handler := range commands {
		handler := handler
		c.bot.RegisterHandler(bot.HandlerTypeMessageText, pattern, bot.MatchTypePrefix,
			func(ctx context.Context, b *bot.Bot, update *models.Update) {
				handler(ctx, b, update)
			})
	}

	for _, prefix := range []string{callbackPick, callbackFormat, callbackAdmin, callbackLyrics, "menu:"} {
		c.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, prefix, bot.MatchTypePrefix,
			func(ctx context.Context, b *bot.Bot, update *models.Update) {
				d.handleCallback(ctx, b, update)
			})
	}
}

// Start announces the command menu and begins long polling until the
// context is canceled.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.publishCommandMenu(ctx)

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	c.bot.Start(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

func (c *Client) publishCommandMenu(ctx context.Context) {
	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: []models.BotCommand{
			{Command: "start", Description: "Start the bot"},
			{Command: "search", Description: "Search for music"},
			{Command: "lyrics", Description: "Find song lyrics"},
			{Command: "musicmenu", Description: "Show the music menu"},
			{Command: "help", Description: "How to use the bot"},
		},
	})
	if err != nil {
		c.logger.WithField("event", "command_menu").WithError(err).Warn("command menu publish failed")
	}
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}
