package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/cognitive/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("Cognitive Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		openaiBackend := cfg.Backends["openai"]
		openaiBackend.Kind = "openai"
		openaiBackend.BaseURL = prompt(scanner, "OpenAI-compatible base URL", openaiBackend.BaseURL)
		openaiBackend.APIKey = prompt(scanner, "OpenAI API key", openaiBackend.APIKey)

		geminiBackend := cfg.Backends["gemini"]
		geminiBackend.Kind = "gemini"
		geminiBackend.APIKey = prompt(scanner, "Gemini API key (optional)", geminiBackend.APIKey)

		if cfg.Backends == nil {
			cfg.Backends = make(map[string]config.BackendConfig)
		}
		cfg.Backends["openai"] = openaiBackend
		if geminiBackend.APIKey != "" {
			cfg.Backends["gemini"] = geminiBackend
		}

		cfg.Preferences.Backend = prompt(scanner, "Preferences store (file, sqlite, platform)", cfg.Preferences.Backend)
		if cfg.Preferences.Backend == "platform" {
			cfg.Platform.URL = prompt(scanner, "Platform URL", cfg.Platform.URL)
			cfg.Platform.Token = prompt(scanner, "Platform token", cfg.Platform.Token)
			cfg.Platform.BotID = prompt(scanner, "Bot ID", cfg.Platform.BotID)
		}

		cfg.Server.Addr = prompt(scanner, "HTTP listen address", cfg.Server.Addr)

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
