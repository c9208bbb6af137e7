package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mixlab-ai/mixlab/internal/config"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactive configuration wizard",
		Long:  "Guides you through setting up mixlab: choose a provider, enter your API key, name the brand and pick where the chat log lives.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit()
		},
	}
}

// wizardProviders are offered in this order; the first is the default.
var wizardProviders = []string{"gemini", "openai", "anthropic", "deepseek", "groq"}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)
	ask := func(prompt, def string) string {
		fmt.Print(prompt)
		line, _ := reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
		return def
	}

	fmt.Println("Welcome to the mixlab configuration wizard!")
	fmt.Println()

	fmt.Println("Available providers:")
	for i, p := range wizardProviders {
		fmt.Printf("  %d. %s\n", i+1, p)
	}
	providerName := wizardProviders[0]
	if n, err := strconv.Atoi(ask(fmt.Sprintf("\nSelect provider (1-%d) [1]: ", len(wizardProviders)), "1")); err == nil && n >= 1 && n <= len(wizardProviders) {
		providerName = wizardProviders[n-1]
	}
	fmt.Printf("Selected: %s\n\n", providerName)

	apiKey := ask(fmt.Sprintf("Enter API key for %s: ", providerName), "")
	if apiKey == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	def := config.DefaultConfig()
	brand := ask(fmt.Sprintf("Brand name [%s]: ", def.Brand), def.Brand)

	backend := ask("Chat log backend (sqlite, sheets, none) [sqlite]: ", config.BackendSQLite)
	logStore := map[string]any{"backend": backend}
	switch backend {
	case config.BackendSQLite, config.BackendNone:
	case config.BackendSheets:
		id := ask("Spreadsheet ID: ", "")
		if id == "" {
			return fmt.Errorf("the sheets backend needs a spreadsheet ID")
		}
		logStore["sheets"] = map[string]any{
			"spreadsheet_id":   id,
			"sheet":            ask("Worksheet name [Sheet1]: ", "Sheet1"),
			"credentials_file": ask("Service account JSON (empty for default credentials): ", ""),
		}
	default:
		return fmt.Errorf("unknown chat log backend %q", backend)
	}

	configData := map[string]any{
		"provider": providerName,
		"brand":    brand,
		"providers": map[string]any{
			providerName: map[string]any{
				"api_key": apiKey,
			},
		},
		"log_store": logStore,
	}

	data, err := yaml.Marshal(configData)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	configDir, err := config.Dir()
	if err != nil {
		return fmt.Errorf("get config dir: %w", err)
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("\nConfig file already exists at %s\n", configPath)
		if a := strings.ToLower(ask("Overwrite? [y/N]: ", "n")); a != "y" && a != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("\nConfig saved to %s\n", configPath)
	fmt.Println("You can now run: mixlab")
	return nil
}
