package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	queueFile          string
	contentDir         string
	anthropicKey       string
	exaKey             string
	itemLimit          int
	settingsPath       string
	researchPromptPath string
	templatePath       string
	debugEnabled       bool
)

// debugf logs only when --debug is set.
func debugf(format string, args ...interface{}) {
	if debugEnabled {
		log.Printf("[DEBUG] "+format, args...)
	}
}

var rootCmd = &cobra.Command{
	Use:   "guidebook-writer",
	Short: "Batch generator for curated climbing area guides",
	Long: `Processes a queue of climbing areas: researches each area, extracts and
validates its routes, curates them into quota-balanced categories, and
writes a reviewed markdown guide. Progress is persisted in the queue file
so an interrupted batch resumes where it left off.`,
	Run: func(cmd *cobra.Command, args []string) {
		loadEnv()

		if anthropicKey == "" {
			anthropicKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if anthropicKey == "" {
			log.Fatal("API key required: use --api-key flag or ANTHROPIC_API_KEY environment variable")
		}
		if exaKey == "" {
			exaKey = os.Getenv("EXA_API_KEY")
		}
		if exaKey == "" {
			log.Fatal("Research key required: use --exa-key flag or EXA_API_KEY environment variable")
		}

		overrides := &ConfigOverrides{}
		if settingsPath != "" {
			overrides.SettingsPath = &settingsPath
		}
		if researchPromptPath != "" {
			overrides.ResearchPromptPath = &researchPromptPath
		}
		if templatePath != "" {
			overrides.TemplatePath = &templatePath
		}

		config, err := NewConfig(overrides)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		if queueFile != "" {
			config.Settings.QueueFile = queueFile
		}
		if contentDir != "" {
			config.Settings.ContentDir = contentDir
		}

		processor, err := NewGuideProcessor(config, exaKey, anthropicKey, itemLimit)
		if err != nil {
			log.Fatalf("Failed to create processor: %v", err)
		}

		if _, err := processor.Run(); err != nil {
			log.Fatalf("Processing failed: %v", err)
		}
	},
}

// loadEnv loads .env.local first, then falls back to .env.
func loadEnv() {
	if _, err := os.Stat(".env.local"); err == nil {
		_ = godotenv.Load(".env.local")
		return
	}
	_ = godotenv.Load()
}

func init() {
	rootCmd.Flags().StringVar(&queueFile, "queue", "", "Path to the area queue file")
	rootCmd.Flags().StringVar(&contentDir, "content-dir", "", "Directory for generated guides")
	rootCmd.Flags().StringVar(&anthropicKey, "api-key", "", "Anthropic API key")
	rootCmd.Flags().StringVar(&exaKey, "exa-key", "", "Exa research API key")
	rootCmd.Flags().IntVar(&itemLimit, "limit", 0, "Stop after processing this many items (0 = all)")
	rootCmd.Flags().StringVar(&settingsPath, "settings", "", "Path to an alternate settings.yaml")
	rootCmd.Flags().StringVar(&researchPromptPath, "research-prompt", "", "Path to custom research instruction file")
	rootCmd.Flags().StringVar(&templatePath, "template", "", "Path to custom guide template file")
	rootCmd.Flags().BoolVar(&debugEnabled, "debug", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
