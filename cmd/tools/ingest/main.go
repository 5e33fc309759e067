package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/zhouzirui/medrag/backend/internal/config"
)

var cfg *config.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build and inspect the medical document vector index",
	Long: `Load reference documents (PDF, text, Markdown, HTML), split them into
chunks and store their embeddings in the pgvector collection the chatbot
retrieves from.

Examples:
  ingest add ./data                     # Index every supported file under ./data
  ingest add --reset book.pdf           # Replace the collection with one book
  ingest status                         # Show how many chunks are indexed`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			klog.V(6).Infof("no .env file loaded: %v", err)
		}

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func main() {
	klog.InitFlags(nil)
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	defer klog.Flush()

	rootCmd.AddCommand(newAddCmd(), newStatusCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		klog.Flush()
		os.Exit(1)
	}
}
