package cli

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mindfulai/naina/internal/output"
	"github.com/mindfulai/naina/internal/session"
)

var (
	flagSessionBackend string
	flagSessionTTL     time.Duration
)

func init() {
	sessionCmd.PersistentFlags().StringVar(&flagSessionBackend, "backend", "", "session backend: sqlite, redis (memory state lives only inside 'naina serve')")
	sessionGCCmd.Flags().DurationVar(&flagSessionTTL, "ttl", 0, "evict users idle for longer than this (default from config)")

	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionResetCmd)
	sessionCmd.AddCommand(sessionGCCmd)
	sessionCmd.AddCommand(sessionListCmd)

	rootCmd.AddCommand(sessionCmd)
}

var sessionCmd = &cobra.Command{
	Use:     "session",
	Aliases: []string{"sessions"},
	Short:   "Inspect and reset per-user crisis counters",
	Long: `Inspect and reset the short-term counters kept for each user:
the crisis count that drives escalation and the negative-emotion streak.

The memory backend only exists inside a running server; use the sqlite or
redis backend to share counters with these commands.`,
}

func sessionOverrides() map[string]any {
	if flagSessionBackend == "" {
		return nil
	}
	return map[string]any{"session.backend": flagSessionBackend}
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Show a user's counters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), sessionOverrides())
		if err != nil {
			return err
		}
		defer a.Close()

		userID := session.NormalizeUserID(args[0])
		c, err := a.store.Get(cmd.Context(), userID)
		if err != nil {
			return err
		}

		if isStructured() {
			return newWriter(cmd).Write(map[string]any{
				"user_id":            userID,
				"counters":           c,
				"resource_threshold": a.policy.ResourceThreshold(),
			})
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "User:            %s\n", userID)
		fmt.Fprintf(w, "Crisis count:    %d (resources from %d)\n", c.CrisisCount, a.policy.ResourceThreshold())
		fmt.Fprintf(w, "Negative streak: %d\n", c.NegativeEmotionStreak)
		if c.LastSeen.IsZero() {
			fmt.Fprintln(w, "Last seen:       never")
		} else {
			fmt.Fprintf(w, "Last seen:       %s\n", c.LastSeen.Local().Format(time.RFC3339))
		}
		return nil
	},
}

var sessionResetCmd = &cobra.Command{
	Use:   "reset <user-id>",
	Short: "Forget a user's counters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), sessionOverrides())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.svc.ResetSession(cmd.Context(), args[0]); err != nil {
			return err
		}
		newWriter(cmd).Success(fmt.Sprintf("Reset counters for %s", session.NormalizeUserID(args[0])))
		return nil
	},
}

var sessionGCCmd = &cobra.Command{
	Use:   "gc",
	Short: "Evict users idle longer than the session TTL",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), sessionOverrides())
		if err != nil {
			return err
		}
		defer a.Close()

		ttl := flagSessionTTL
		if ttl <= 0 {
			ttl = a.sessionTTL()
		}
		if ttl <= 0 {
			return fmt.Errorf("no ttl: pass --ttl or set session.ttl_minutes")
		}

		janitor := session.NewJanitor(a.store, session.JanitorConfig{TTL: ttl, Logger: a.logger})
		evicted := janitor.Sweep(cmd.Context())
		remaining, err := a.store.Len(cmd.Context())
		if err != nil {
			return err
		}

		if isStructured() {
			return newWriter(cmd).Write(map[string]any{
				"evicted":   evicted,
				"remaining": remaining,
				"ttl":       ttl.String(),
			})
		}
		newWriter(cmd).Success(fmt.Sprintf("Evicted %d idle users (idle > %s), %d remaining", evicted, ttl, remaining))
		return nil
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked users (sqlite backend)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), sessionOverrides())
		if err != nil {
			return err
		}
		defer a.Close()

		if a.cfg.Session.Backend != "sqlite" {
			n, err := a.store.Len(cmd.Context())
			if err != nil {
				return err
			}
			if isStructured() {
				return newWriter(cmd).Write(map[string]any{"backend": a.cfg.Session.Backend, "count": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d users tracked by the %s backend (listing needs --backend sqlite)\n", n, a.cfg.Session.Backend)
			return nil
		}

		all, err := a.db.Counters().ListCounters(cmd.Context())
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(all))
		for id := range all {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			return all[ids[i]].LastSeen.After(all[ids[j]].LastSeen)
		})

		if isStructured() {
			return newWriter(cmd).Write(map[string]any{"backend": "sqlite", "count": len(ids), "sessions": all})
		}
		if len(ids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No tracked users")
			return nil
		}
		rows := make([][]string, 0, len(ids))
		for _, id := range ids {
			c := all[id]
			rows = append(rows, []string{
				id,
				strconv.Itoa(c.CrisisCount),
				strconv.Itoa(c.NegativeEmotionStreak),
				c.LastSeen.Local().Format(time.DateTime),
			})
		}
		output.OutputTable([]string{"USER", "CRISIS", "NEG STREAK", "LAST SEEN"}, rows)
		return nil
	},
}
