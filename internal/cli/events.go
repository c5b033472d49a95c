package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mindfulai/naina/internal/output"
)

var (
	flagEventsUser  string
	flagEventsLimit int
)

func init() {
	eventsCmd.Flags().StringVarP(&flagEventsUser, "user", "u", "", "only this user's events")
	eventsCmd.Flags().IntVarP(&flagEventsLimit, "limit", "n", 50, "maximum events to show")

	rootCmd.AddCommand(eventsCmd)
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List audited crisis turns, newest first",
	Long: `List the crisis turns recorded in the audit database.

Each event holds the severity, matched phrases, the reply kind chosen and
the user's crisis count after the turn. Message text is never stored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.Close()
		database, err := a.requireDB()
		if err != nil {
			return err
		}

		events, err := database.ListCrisisEvents(cmd.Context(), flagEventsUser, flagEventsLimit)
		if err != nil {
			return err
		}

		if isStructured() {
			return newWriter(cmd).Write(map[string]any{"events": events, "count": len(events)})
		}
		if len(events) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No crisis events recorded")
			return nil
		}

		rows := make([][]string, 0, len(events))
		for _, e := range events {
			kind := e.Kind
			if e.FailSafe {
				kind += " (fail-safe)"
			}
			rows = append(rows, []string{
				e.CreatedAt.Local().Format(time.DateTime),
				e.UserID,
				strings.ToUpper(e.Severity),
				strconv.Itoa(e.CrisisCount),
				kind,
				strings.Join(e.Matched, ", "),
			})
		}
		output.OutputTable([]string{"TIME", "USER", "SEVERITY", "COUNT", "REPLY", "MATCHED"}, rows)
		return nil
	},
}
