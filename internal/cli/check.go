package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mindfulai/naina/internal/crisis"
	"github.com/mindfulai/naina/internal/emotion"
	"github.com/mindfulai/naina/internal/session"
)

var (
	flagCheckCount    int
	flagCheckExitCode bool
	flagCheckResponse bool
)

func init() {
	for _, c := range []*cobra.Command{checkCmd, patternsTestCmd} {
		c.Flags().IntVar(&flagCheckCount, "count", 0, "crisis turns the user has already had")
		c.Flags().BoolVar(&flagCheckExitCode, "exit-code", false, "exit 1 when the message is a crisis")
		c.Flags().BoolVar(&flagCheckResponse, "response", false, "print the reply that would be sent")
	}
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check <message>",
	Short: "Classify a message without recording anything",
	Long: `Classify a message and show the escalation decision it would get.

Nothing is stored. Use --count to say how many crisis turns the user has
already had; the decision is made as if this turn were the next one.

Use --exit-code to exit 1 when the message is a crisis, for scripting:
  naina check "I can't go on" --exit-code && echo ok`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

// patternsTestCmd is "check" under the patterns command.
var patternsTestCmd = &cobra.Command{
	Use:   "test <message>",
	Short: "Alias for 'check' - classify a message against the phrase library",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

type checkResult struct {
	Message  string          `json:"message"`
	Verdict  crisis.Verdict  `json:"verdict"`
	Emotion  emotion.Result  `json:"emotion"`
	Decision crisis.Decision `json:"decision"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	if flagCheckCount < 0 {
		return fmt.Errorf("--count must not be negative")
	}
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	message := strings.Join(args, " ")
	classifier := newClassifier(cfg)
	policy := crisis.NewPolicy(crisis.WithResourceThreshold(cfg.Crisis.ResourceThreshold))

	v := classifier.Classify(message)
	res := checkResult{
		Message:  message,
		Verdict:  v,
		Emotion:  emotion.NewClassifier().Classify(message),
		Decision: policy.Decide(v, session.Counters{CrisisCount: flagCheckCount}),
	}
	if !flagCheckResponse {
		res.Decision.ResponseText = ""
	}

	if isStructured() {
		if err := newWriter(cmd).Write(res); err != nil {
			return err
		}
	} else {
		writeCheckText(cmd, res)
	}

	if flagCheckExitCode && v.IsCrisis {
		return &ExitError{Code: 1}
	}
	return nil
}

func writeCheckText(cmd *cobra.Command, res checkResult) {
	w := cmd.OutOrStdout()
	v := res.Verdict
	fmt.Fprintf(w, "Message:    %s\n", res.Message)
	fmt.Fprintf(w, "Severity:   %s\n", strings.ToUpper(v.Severity.String()))
	fmt.Fprintf(w, "Crisis:     %v\n", v.IsCrisis)
	fmt.Fprintf(w, "Confidence: %.2f\n", v.Confidence)
	if len(v.MatchedKeywords) > 0 {
		fmt.Fprintf(w, "Matched:    %s\n", strings.Join(v.MatchedKeywords, ", "))
	}
	if v.AdvisoryMessage != "" {
		fmt.Fprintf(w, "Advisory:   %s\n", v.AdvisoryMessage)
	}
	if v.IsCrisis {
		fmt.Fprintf(w, "Topic:      %s\n", v.Topic)
		fmt.Fprintf(w, "Reply:      %s (crisis count %d)\n", res.Decision.Kind, res.Decision.CrisisCount)
	} else {
		fmt.Fprintf(w, "Emotion:    %s (%.2f)\n", res.Emotion.Emotion, res.Emotion.Confidence)
	}
	if res.Decision.ResponseText != "" {
		fmt.Fprintf(w, "\n%s\n", res.Decision.ResponseText)
	}
}
