package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/cognitive/internal/action"
	"github.com/user/cognitive/internal/store"
)

func init() {
	rootCmd.AddCommand(journalCmd, actionCmd)
	actionCmd.AddCommand(actionListCmd, actionCallCmd)

	journalCmd.Flags().IntP("limit", "n", 20, "number of entries to show")
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show recent generation events",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		limit, _ := cmd.Flags().GetInt("limit")

		journal := store.NewJournal(cfg.JournalPath())
		entries, err := journal.Tail(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("read journal: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("Journal is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tAT\tKIND\tREQUEST\tMODEL\tLATENCY\tERROR")
		for _, e := range entries {
			latency := ""
			if e.LatencyMs > 0 {
				latency = (time.Duration(e.LatencyMs) * time.Millisecond).String()
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				e.Seq, e.At.Format(time.RFC3339), e.Kind, e.RequestID, e.Model, latency, e.Error)
		}
		return w.Flush()
	},
}

var actionCmd = &cobra.Command{
	Use:   "action",
	Short: "Call registered integration actions",
}

var actionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered action types",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			for _, t := range a.registry.Types() {
				fmt.Fprintln(os.Stdout, t)
			}
			return nil
		})
	},
}

var actionCallCmd = &cobra.Command{
	Use:   "call <type> [input-json]",
	Short: "Call an action with a JSON input",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := json.RawMessage(`{}`)
		if len(args) == 2 {
			if !json.Valid([]byte(args[1])) {
				return fmt.Errorf("input is not valid JSON")
			}
			input = json.RawMessage(args[1])
		}

		return withApp(cmd.Context(), func(a *app) error {
			res, err := a.registry.CallAction(cmd.Context(), action.Call{Type: args[0], Input: input})
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}
