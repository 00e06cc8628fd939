package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/The-Earth/catbot/bot"
	"github.com/The-Earth/catbot/internal/logger"
	"github.com/The-Earth/catbot/telegram"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configFile string

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the bot",
		Long:  "Start the bot: long-poll for updates and dispatch them to handlers until interrupted",
		Run: func(cmd *cobra.Command, args []string) {
			// A local .env is convenient in development; the real
			// environment wins when no file exists.
			if err := godotenv.Load(); err != nil {
				log.Print("no .env file found, using environment as-is")
			}

			cfg, err := bot.LoadConfig(configFile)
			if err != nil {
				log.Fatalf("Failed to load config: %v", err)
			}

			if err := logger.Init(cfg.LoggerConfig()); err != nil {
				log.Fatalf("Failed to initialize logger: %v", err)
			}

			b, err := bot.New(cfg)
			if err != nil {
				log.Fatalf("Failed to initialize bot: %v", err)
			}

			registerHandlers(b)

			// Stop on SIGINT/SIGTERM; cancellation abandons the
			// in-flight long poll and Start flushes the cursor before
			// returning.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.WithFields(logrus.Fields{
				"config":       configFile,
				"bot_username": b.Self().Username,
			}).Info("catbot-starting")

			if err := b.Start(ctx); err != nil {
				logger.WithField("error", err).Error("catbot-stopped-with-error")
				os.Exit(1)
			}
			logger.Info("catbot-stopped")
		},
	}
)

// registerHandlers wires the demonstration tasks. All registration
// happens before Start.
func registerHandlers(b *bot.Bot) {
	client := b.Client()

	// /start in a private chat gets a greeting.
	b.OnMessage(
		func(msg *telegram.Message) bool {
			return msg.Chat.IsPrivate() && b.DetectCommand("/start", msg, false)
		},
		func(msg *telegram.Message) {
			if _, err := client.SendMessage(context.Background(), msg.Chat.ID, "Hello! I am alive.", nil); err != nil {
				logger.WithFields(logrus.Fields{
					"chat_id": msg.Chat.ID,
					"error":   err,
				}).Error("start-reply-failed")
			}
		},
	)

	// Every callback query gets acknowledged so clients do not hang
	// in the loading state.
	b.OnCallback(
		func(*telegram.CallbackQuery) bool { return true },
		func(q *telegram.CallbackQuery) {
			if err := client.AnswerCallbackQuery(context.Background(), q.ID, nil); err != nil {
				logger.WithFields(logrus.Fields{
					"query_id": q.ID,
					"error":    err,
				}).Error("callback-answer-failed")
			}
		},
	)

	// Log when the bot itself is added to or removed from a chat.
	b.OnMyChatMember(
		func(*telegram.ChatMemberUpdated) bool { return true },
		func(upd *telegram.ChatMemberUpdated) {
			logger.WithFields(logrus.Fields{
				"chat_id":    upd.Chat.ID,
				"old_status": upd.OldChatMember.Status,
				"new_status": upd.NewChatMember.Status,
			}).Info("bot-membership-changed")
		},
		bot.Inline(),
	)
}

func init() {
	startCmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "Path to configuration file")
}
