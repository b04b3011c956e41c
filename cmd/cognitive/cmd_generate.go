package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/cognitive/internal/cognitive"
	"github.com/user/cognitive/pkg/llm"
)

func init() {
	rootCmd.AddCommand(generateCmd, modelsCmd, prefsCmd)
	prefsCmd.AddCommand(prefsShowCmd, prefsSetCmd)

	generateCmd.Flags().StringP("model", "m", string(llm.RefBest), `model ref, "best" or "fast"`)
	generateCmd.Flags().StringP("system", "s", "", "system prompt")
	generateCmd.Flags().Int("max-tokens", 0, "maximum output tokens")
	generateCmd.Flags().Bool("json", false, "print the full response envelope as JSON")

	prefsSetCmd.Flags().StringSlice("best", nil, "ranked model refs for \"best\"")
	prefsSetCmd.Flags().StringSlice("fast", nil, "ranked model refs for \"fast\"")
}

var generateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Generate a completion with retries and model fallback",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, _ := cmd.Flags().GetString("model")
		system, _ := cmd.Flags().GetString("system")
		maxTokens, _ := cmd.Flags().GetInt("max-tokens")
		asJSON, _ := cmd.Flags().GetBool("json")

		return withApp(cmd.Context(), func(a *app) error {
			resp, err := a.client.GenerateContent(cmd.Context(), llm.GenerateInput{
				Model:        model,
				SystemPrompt: system,
				MaxTokens:    maxTokens,
				Messages:     []llm.Message{{Role: "user", Content: strings.Join(args, " ")}},
			})
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(resp)
			}
			fmt.Fprintln(os.Stdout, resp.Output.Text())
			fmt.Fprintf(os.Stderr, "[%s, %s, %d+%d tokens, $%.6f]\n",
				resp.Meta.Model.Ref(), resp.Meta.Latency.Round(time.Millisecond),
				resp.Meta.Tokens.Input, resp.Meta.Tokens.Output,
				resp.Meta.Cost.Input+resp.Meta.Cost.Output)
			return nil
		})
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List installed models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			models, err := a.client.FetchInstalledModels(cmd.Context())
			if err != nil {
				return err
			}
			if len(models) == 0 {
				fmt.Println("No models installed.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "REF\tNAME\tINPUT $/1M\tOUTPUT $/1M\tTAGS")
			for _, m := range models {
				fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\t%s\n", m.Ref(), m.Name,
					m.Input.CostPer1MTokens, m.Output.CostPer1MTokens, strings.Join(m.Tags, ","))
			}
			return w.Flush()
		})
	},
}

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Manage model preferences",
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show ranked models and active downtimes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			prefs, err := a.client.FetchPreferences(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(prefs)
		})
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Replace the ranked model lists",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		best, _ := cmd.Flags().GetStringSlice("best")
		fast, _ := cmd.Flags().GetStringSlice("fast")

		return withApp(cmd.Context(), func(a *app) error {
			current, err := a.client.FetchPreferences(cmd.Context())
			if err != nil {
				return err
			}
			prefs := current.Clone()
			if prefs == nil {
				prefs = &cognitive.Preferences{}
			}
			if cmd.Flags().Changed("best") {
				prefs.Best = toRefs(best)
			}
			if cmd.Flags().Changed("fast") {
				prefs.Fast = toRefs(fast)
			}
			if err := a.client.SetPreferences(cmd.Context(), prefs, true); err != nil {
				return err
			}
			return printJSON(prefs)
		})
	},
}

func toRefs(in []string) []llm.Ref {
	refs := make([]llm.Ref, 0, len(in))
	for _, s := range in {
		refs = append(refs, llm.Ref(s))
	}
	return refs
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
