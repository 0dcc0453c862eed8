package main

import (
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"screenai-backend/internal/credentials"
)

var redisURL string

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage provider keys in the shared Redis store",
	Long: `Writes the keys a server started with CREDENTIAL_SOURCE=redis reads.
Keys are read on every request, so changes apply without a restart.`,
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set <gemini|ocr_space> <key>",
	Short: "Store a provider key (an empty key removes it)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := credentials.ParseProvider(args[0])
		if err != nil {
			return err
		}
		store, closeFn, err := openCredentialStore()
		if err != nil {
			return err
		}
		defer closeFn()

		if err := store.Set(cmd.Context(), p, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s key updated\n", p)
		return nil
	},
}

var credentialsShowCmd = &cobra.Command{
	Use:   "show <gemini|ocr_space>",
	Short: "Show whether a provider key is set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := credentials.ParseProvider(args[0])
		if err != nil {
			return err
		}
		store, closeFn, err := openCredentialStore()
		if err != nil {
			return err
		}
		defer closeFn()

		key, err := store.Get(cmd.Context(), p)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", p, mask(key))
		return nil
	},
}

func openCredentialStore() (*credentials.RedisStore, func(), error) {
	url := redisURL
	if url == "" {
		url = os.Getenv("REDIS_URL")
	}
	if url == "" {
		return nil, nil, fmt.Errorf("set --redis or REDIS_URL")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	return credentials.NewRedisStore(client, credentials.DefaultRedisKey), func() { client.Close() }, nil
}

// mask keeps the last four characters.
func mask(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

func init() {
	credentialsCmd.PersistentFlags().StringVar(&redisURL, "redis", "", "Redis URL (defaults to REDIS_URL)")
	credentialsCmd.AddCommand(credentialsSetCmd, credentialsShowCmd)
}
