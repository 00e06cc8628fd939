package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "catbot",
	Short: "catbot is a Telegram bot long-polling runtime",
	Long: `catbot runs a Telegram bot built on the catbot library: it long-polls
the Bot API for updates, dispatches them to registered handlers and
persists the update cursor so restarts never replay handled events.

The bundled handlers answer /start in private chats and acknowledge
inline keyboard callbacks; real bots import the library and register
their own tasks.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}
