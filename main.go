package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/AnTengye/keydates/config"
	"github.com/AnTengye/keydates/extraction"
	"github.com/AnTengye/keydates/pkg/logger"
	"github.com/AnTengye/keydates/service"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "config.yaml"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "keydates",
	Short: "Extract key dates from contracts and other documents",
	Long: `keydates reads PDF, DOCX and TXT documents, asks a chat-completion model
for the key dates they contain, and returns a validated list of date events.
Malformed model output gets one repair attempt; if that fails the result is empty.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to YAML config")
	rootCmd.AddCommand(newServeCmd(), newExtractCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig reads .env and the YAML config, then initializes logging. A
// missing default config file is not an error.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	path := configPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	slog.Info("configuration loaded", "path", path, "model", cfg.LLM.Model)

	return cfg, nil
}

// newPipeline builds the extraction pipeline backed by the configured model.
func newPipeline(cfg *config.Config) *extraction.Pipeline {
	return extraction.New(service.NewLLMService(&cfg.LLM), extraction.Config{
		DocCharLimit:  cfg.Extraction.DocCharLimit,
		MaxPageHints:  cfg.Extraction.MaxPageHints,
		PageHintChars: cfg.Extraction.PageHintChars,
		Instruction:   loadInstruction(cfg.Extraction.PromptPath),
	})
}

// loadInstruction returns the custom extraction instruction at path, or ""
// when no path is set or the file cannot be read.
func loadInstruction(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("prompt file unavailable, using default instruction", "path", path, "error", err)
		return ""
	}
	slog.Info("custom prompt loaded", "path", path, "bytes", len(data))
	return string(data)
}
