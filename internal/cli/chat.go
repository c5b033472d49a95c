package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mindfulai/naina/internal/chat"
	"github.com/mindfulai/naina/internal/tui"
)

var (
	flagChatUser  string
	flagChatTheme string
	flagChatPlain bool
	flagChatLLM   bool
)

func init() {
	chatCmd.Flags().StringVarP(&flagChatUser, "user", "u", "", "user id (default: $USER)")
	chatCmd.Flags().StringVar(&flagChatTheme, "theme", "mocha", "color theme: mocha, latte")
	chatCmd.Flags().BoolVar(&flagChatPlain, "plain", false, "line-based chat without the full-screen UI")
	chatCmd.Flags().BoolVar(&flagChatLLM, "llm", false, "generate conversational replies with the language model")

	rootCmd.AddCommand(chatCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with NAINA in the terminal",
	Long: `Chat with NAINA in the terminal.

Messages go through the same crisis screening as the API. Type /help inside
the chat for commands, /resources for crisis hotlines.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]any{}
		if cmd.Flags().Changed("llm") {
			overrides["llm.enabled"] = flagChatLLM
		}
		cfg, err := loadConfig(overrides)
		if err != nil {
			return err
		}

		// Logs would tear the full-screen UI; keep only errors on stderr.
		if !flagChatPlain && !flagVerbose {
			cfg.Logging.Level = "error"
		}
		a, err := newApp(cmd.Context(), cfg, appOptions{logOutput: cmd.ErrOrStderr()})
		if err != nil {
			return err
		}
		defer a.Close()

		userID := flagChatUser
		if userID == "" {
			userID = os.Getenv("USER")
		}

		if flagChatPlain || !isTerminal(os.Stdin) {
			return plainChat(cmd.Context(), a.svc, userID, cmd.InOrStdin(), cmd.OutOrStdout())
		}
		return tui.Run(a.svc, tui.Options{UserID: userID, Theme: flagChatTheme})
	},
}

// plainChat reads one message per line and prints each reply.
func plainChat(ctx context.Context, svc *chat.Service, userID string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}
		reply, err := svc.Handle(ctx, chat.Input{UserID: userID, Message: line})
		if errors.Is(err, chat.ErrEmptyMessage) {
			continue
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "NAINA: %s\n\n", reply.Response)
	}
	return scanner.Err()
}
