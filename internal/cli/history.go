package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mindfulai/naina/internal/session"
	"github.com/mindfulai/naina/internal/transcript"
	"github.com/mindfulai/naina/internal/utils"
)

var (
	flagHistoryLimit  int
	flagHistoryFormat string
	flagHistoryFile   string
)

func init() {
	historyShowCmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", transcript.DefaultHistoryLimit, "most recent exchanges to show")
	historyExportCmd.Flags().StringVarP(&flagHistoryFormat, "format", "f", "json", "export format: json, yaml, txt")
	historyExportCmd.Flags().StringVar(&flagHistoryFile, "file", "", "output file (default: stdout)")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyAnalyticsCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyUsersCmd)

	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"conversations"},
	Short:   "Browse, export and delete stored conversations",
}

var historyShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Show a user's recent exchanges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()
		files, err := a.requireFiles()
		if err != nil {
			return err
		}

		userID := session.NormalizeUserID(args[0])
		msgs, err := files.History(cmd.Context(), userID, flagHistoryLimit)
		if err != nil {
			return err
		}

		if isStructured() {
			return newWriter(cmd).Write(map[string]any{
				"user_id":  userID,
				"messages": msgs,
				"count":    len(msgs),
			})
		}

		w := cmd.OutOrStdout()
		if len(msgs) == 0 {
			fmt.Fprintf(w, "No conversation stored for %s\n", userID)
			return nil
		}
		for _, m := range msgs {
			marker := ""
			if m.IsCrisis {
				marker = " [crisis]"
			}
			fmt.Fprintf(w, "[%s]%s\n", m.Timestamp.Local().Format(time.DateTime), marker)
			fmt.Fprintf(w, "  You:   %s\n", utils.Truncate(m.UserMessage, 200))
			fmt.Fprintf(w, "  NAINA: %s\n", utils.Truncate(m.AIResponse, 200))
		}
		return nil
	},
}

var historyAnalyticsCmd = &cobra.Command{
	Use:   "analytics <user-id>",
	Short: "Summarise a user's conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()
		files, err := a.requireFiles()
		if err != nil {
			return err
		}

		userID := session.NormalizeUserID(args[0])
		stats, err := files.Analytics(cmd.Context(), userID)
		if err != nil {
			return err
		}

		if isStructured() {
			return newWriter(cmd).Write(stats)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "User:              %s\n", userID)
		fmt.Fprintf(w, "Messages:          %d\n", stats.TotalMessages)
		fmt.Fprintf(w, "Crisis turns:      %d\n", stats.CrisisCount)
		fmt.Fprintf(w, "Avg response time: %.2fs\n", stats.AvgResponseTime)
		if stats.CreatedAt != nil {
			fmt.Fprintf(w, "Started:           %s\n", stats.CreatedAt.Local().Format(time.DateTime))
		}
		if len(stats.Emotions) > 0 {
			fmt.Fprintln(w, "Emotions:")
			for name, n := range stats.Emotions {
				fmt.Fprintf(w, "  %-10s %d\n", name, n)
			}
		}
		return nil
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export <user-id>",
	Short: "Export a conversation as json, yaml or txt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()
		files, err := a.requireFiles()
		if err != nil {
			return err
		}

		userID := session.NormalizeUserID(args[0])
		data, err := files.Export(cmd.Context(), userID, flagHistoryFormat)
		if errors.Is(err, transcript.ErrNotFound) {
			return fmt.Errorf("no conversation stored for %s", userID)
		}
		if err != nil {
			return err
		}

		if flagHistoryFile == "" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(flagHistoryFile, data, 0o600); err != nil {
			return fmt.Errorf("failed to write file: %w", err)
		}
		return newWriter(cmd).Write(map[string]any{
			"status": "exported",
			"format": flagHistoryFormat,
			"file":   flagHistoryFile,
			"bytes":  len(data),
		})
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <user-id>",
	Short: "Delete a user's conversation, counters and crisis events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		userID := session.NormalizeUserID(args[0])
		if a.files != nil {
			if err := a.files.Delete(ctx, userID); err != nil {
				return err
			}
		}
		if err := a.svc.ResetSession(ctx, userID); err != nil {
			return err
		}
		events := 0
		if a.db != nil {
			if events, err = a.db.DeleteCrisisEvents(ctx, userID); err != nil {
				return err
			}
		}

		if isStructured() {
			return newWriter(cmd).Write(map[string]any{
				"user_id":        userID,
				"deleted":        true,
				"events_deleted": events,
			})
		}
		newWriter(cmd).Success(fmt.Sprintf("Deleted conversation for %s (%d crisis events)", userID, events))
		return nil
	},
}

var historyUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "List users with a stored conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()
		files, err := a.requireFiles()
		if err != nil {
			return err
		}

		users, err := files.Users(cmd.Context())
		if err != nil {
			return err
		}
		if isStructured() {
			return newWriter(cmd).Write(map[string]any{"users": users, "count": len(users)})
		}
		for _, u := range users {
			fmt.Fprintln(cmd.OutOrStdout(), u)
		}
		return nil
	},
}
