package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jkaninda/hundreds/internal/chat"
)

var askCmd = &cobra.Command{
	Use:   "ask QUESTION...",
	Short: "Answer one question locally and exit",
	Long: `Answer a single question against the configured dataset without
starting a gateway.

Examples:
  hundreds ask "How many ODI hundreds does Virat Kohli have?"
  hundreds ask Ricky Ponting total`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(_ *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("question is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	sc, err := initShared(ctx, cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	reply, _ := sc.turnHandler("ask").HandleTurn(ctx, chat.NewTranscript(sc.greeting), question)
	fmt.Println(reply.Text)
	return nil
}
