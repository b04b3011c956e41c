package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/cognitive/internal/deploy"
	"github.com/user/cognitive/internal/integration"
	"github.com/user/cognitive/internal/platform"
)

func init() {
	rootCmd.AddCommand(deployCmd)
	deployCmd.Flags().Bool("dry-run", false, "print the request body instead of sending it")
}

var deployCmd = &cobra.Command{
	Use:   "deploy <definition>",
	Short: "Create or update an integration on the platform",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		def, err := integration.LoadIntegrationDefinition(args[0])
		if err != nil {
			return err
		}
		if cfg.Platform.URL == "" {
			return fmt.Errorf("platform.url is not configured")
		}

		pc := platform.New(platform.Config{URL: cfg.Platform.URL, Token: cfg.Platform.Token, BotID: cfg.Platform.BotID})
		defer pc.Close()
		deployer := deploy.NewDeployer(pc)

		if dryRun {
			plan, err := deployer.Plan(cmd.Context(), def)
			if err != nil {
				return err
			}
			if plan.Update != nil {
				fmt.Fprintf(os.Stderr, "would update integration %s\n", plan.RemoteID)
			} else {
				fmt.Fprintf(os.Stderr, "would create integration %s@%s\n", def.Name, def.Version)
			}
			return printJSON(plan.Body())
		}

		deployed, err := deployer.Deploy(cmd.Context(), def)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Deployed %s@%s (id %s).\n", deployed.Name, deployed.Version, deployed.ID)
		return nil
	},
}
