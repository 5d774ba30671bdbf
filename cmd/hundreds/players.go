package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var playersOutput string

var playersCmd = &cobra.Command{
	Use:   "players [NAME]",
	Short: "List the dataset or show one player's card",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlayers,
}

func init() {
	playersCmd.Flags().StringVarP(&playersOutput, "output", "o", "table", "output format: table or json")
}

func runPlayers(_ *cobra.Command, args []string) error {
	if playersOutput != "table" && playersOutput != "json" {
		return fmt.Errorf("unknown output format %q", playersOutput)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sc, err := initShared(context.Background(), cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	if len(args) == 1 {
		p, ok := sc.Dataset.Lookup(args[0])
		if !ok {
			return fmt.Errorf("player %q not found", args[0])
		}
		if playersOutput == "json" {
			return writeJSON(p)
		}
		fmt.Println(sc.Answers.Card(p))
		return nil
	}

	players := sc.Dataset.Players()
	if playersOutput == "json" {
		return writeJSON(players)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PLAYER\tTESTS\tODIS\tT20IS\tTOTAL")
	for _, p := range players {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", p.Name, p.Tests, p.ODIs, p.T20Is, p.Total())
	}
	return w.Flush()
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
