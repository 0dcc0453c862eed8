package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"screenai-backend/internal/pkg/logger"
)

var (
	verbose   bool
	serverURL string
	version   = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "screenai",
	Short: "Ask Gemini about text, images and screen regions",
	Long: `screenai drives the ScreenAI assistant from a terminal.

It can talk to a running server the way a browser page does, or run the
whole pipeline in-process with provider keys from the environment.

Quick Start:
  screenai ask "what is a monad"            # via the server
  screenai ask --local --chat "hello"       # in-process, keep chatting
  screenai ocr receipt.png                  # extract text with OCR.space
  screenai render notes.md                  # preview reply markdown as HTML`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load .env file if it exists
		godotenv.Load()
	},
}

func newLogger() logger.ILogger {
	return logger.NewConsoleLogger(verbose)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "ScreenAI server base URL")

	rootCmd.AddCommand(askCmd, ocrCmd, renderCmd, tokenCmd, credentialsCmd)
}
