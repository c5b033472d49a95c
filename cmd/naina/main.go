// Command naina runs the NAINA wellness companion: the chat API, a terminal
// chat, and tools for inspecting crisis screening and stored state.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/mindfulai/naina/internal/cli"
	"github.com/mindfulai/naina/internal/output"
)

func main() {
	// A missing .env is normal; OPENAI_API_KEY and NAINA_* may come from the environment.
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		if output.IsJSON() {
			_ = output.OutputJSONError(err, 1)
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
