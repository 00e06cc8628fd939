// Package bot implements the catbot event core: a long-polling loop
// that fetches Telegram updates, matches them against registered
// predicate/action tasks and executes matched actions concurrently,
// advancing a persisted cursor so restarts never replay handled
// events.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/The-Earth/catbot/internal/logger"
	"github.com/The-Earth/catbot/store"
	"github.com/The-Earth/catbot/telegram"
	"github.com/sirupsen/logrus"
)

// Lifecycle errors.
var (
	ErrAlreadyRunning = errors.New("bot is already running")
	ErrNotRunning     = errors.New("bot is not running")
)

// Bot owns the poll/dispatch loop, the task registry and the cursor.
// Build one with New, register tasks, then call Start.
type Bot struct {
	cfg      *Config
	client   *telegram.Client
	api      transport
	self     *telegram.BotUser
	registry registry
	cursor   store.CursorStore
	sem      chan struct{}
	poller   poller

	mu      sync.Mutex
	running bool
	stop    context.CancelFunc
	done    chan struct{}
}

// New builds a Bot from cfg: it constructs the transport, learns the
// bot's identity via getMe and opens the cursor store.
func New(cfg *Config) (*Bot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := telegram.NewClient(cfg.ClientConfig())
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	self, err := client.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("getMe failed: %w", err)
	}

	cursorStore, err := cfg.OpenStore()
	if err != nil {
		return nil, err
	}

	b := newBot(cfg, client, cursorStore, self)
	b.client = client

	logger.WithFields(logrus.Fields{
		"bot_id":       self.ID,
		"bot_username": self.Username,
	}).Info("bot-initialized")

	return b, nil
}

// newBot wires a Bot from its parts. Tests use it to inject a fake
// transport and an in-memory cursor store.
func newBot(cfg *Config, api transport, cursorStore store.CursorStore, self *telegram.BotUser) *Bot {
	return &Bot{
		cfg:    cfg,
		api:    api,
		self:   self,
		cursor: cursorStore,
		sem:    make(chan struct{}, cfg.Workers.MaxConcurrent),
		poller: poller{
			api:     api,
			timeout: cfg.Poll.Timeout(),
			limit:   cfg.Poll.Limit,
		},
	}
}

// Client returns the underlying Telegram client for issuing bot
// actions from handlers.
func (b *Bot) Client() *telegram.Client {
	return b.client
}

// Self returns the bot's own account as reported by getMe.
func (b *Bot) Self() *telegram.BotUser {
	return b.self
}

// DetectCommand reports whether msg starts with cmd, either bare
// ("/ban") or addressed to this bot ("/ban@somebot"). With
// requireUsername set, only the addressed form matches.
func (b *Bot) DetectCommand(cmd string, msg *telegram.Message, requireUsername bool) bool {
	if !requireUsername && msg.HasCommand(cmd) {
		return strings.HasPrefix(msg.Content(), cmd)
	}
	addressed := cmd + "@" + b.self.Username
	if msg.HasCommand(addressed) {
		return strings.HasPrefix(msg.Content(), addressed)
	}
	return false
}

// Start runs the poll/dispatch loop until ctx is cancelled or Stop is
// called. It blocks the caller. On every exit path the cursor is
// flushed and the store closed; a flush failure is returned rather
// than silently dropped. A Bot runs at most once.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return ErrAlreadyRunning
	}
	b.running = true
	runCtx, cancel := context.WithCancel(ctx)
	b.stop = cancel
	done := make(chan struct{})
	b.done = done
	b.mu.Unlock()

	defer close(done)
	defer cancel()

	return b.run(runCtx)
}

// Stop signals the loop to stop after the in-flight batch, then waits
// for Start to return. In-flight handler goroutines are not awaited;
// they own their own completion.
func (b *Bot) Stop() error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return ErrNotRunning
	}
	stop, done := b.stop, b.done
	b.mu.Unlock()

	stop()
	<-done
	return nil
}
