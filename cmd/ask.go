package cmd

import (
	"fmt"
	"log/slog"
	"strings"
)

func runAsk(args []string, logger *slog.Logger) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("ask: a question is required")
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := setupApp(ctx, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	answer, err := a.Synthesizer.RagChat(ctx, question)
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}
