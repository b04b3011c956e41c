package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/cognitive/internal/integration"
)

func init() {
	rootCmd.AddCommand(interfaceCmd)
	interfaceCmd.AddCommand(interfaceResolveCmd)

	interfaceResolveCmd.Flags().String("integration", "", "integration definition to extend with the resolved interface")
}

var interfaceCmd = &cobra.Command{
	Use:   "interface",
	Short: "Work with interface packages",
}

var interfaceResolveCmd = &cobra.Command{
	Use:   "resolve <package> <bindings>",
	Short: "Resolve an interface package against entity bindings and renames",
	Long: `Resolve substitutes the package's entity placeholders with the bound schemas
and applies the action, event and channel renames. Both files may be JSON or YAML.

With --integration the resolved items are merged into that definition and the
extended definition is printed instead.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pkg, err := integration.LoadInterfacePackage(args[0])
		if err != nil {
			return err
		}
		in, err := integration.LoadExtensionInput(args[1], pkg)
		if err != nil {
			return err
		}

		defPath, _ := cmd.Flags().GetString("integration")
		if defPath == "" {
			out, err := integration.ResolveInterface(*in)
			if err != nil {
				return err
			}
			return printJSON(out)
		}

		def, err := integration.LoadIntegrationDefinition(defPath)
		if err != nil {
			return err
		}
		if _, err := def.Extend(*in); err != nil {
			return fmt.Errorf("extending %s: %w", def.Name, err)
		}
		return printJSON(def)
	},
}
