// Command docctl inspects collab documents directly in MongoDB.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gogotex/gogotex/backend/collab-service/internal/config"
	"github.com/gogotex/gogotex/backend/collab-service/internal/database"
	"github.com/gogotex/gogotex/backend/collab-service/internal/document/service"
	"github.com/gogotex/gogotex/backend/collab-service/internal/identity"
	"github.com/gogotex/gogotex/backend/collab-service/pkg/logger"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openService connects to the configured database. The caller must call the
// returned close func. Replaced in tests.
var openService = func(ctx context.Context) (service.Service, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger.Init(cfg.Log.Level)
	if cfg.MongoDB.URI == "" {
		return nil, nil, fmt.Errorf("MONGODB_URI is not set")
	}
	client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = client.Disconnect(context.Background()) }
	svc, err := service.NewMongoService(ctx, client.Database(cfg.MongoDB.Database), service.Options{LockTTL: cfg.Lock.TTL})
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("initializing document store: %w", err)
	}
	return svc, closeFn, nil
}

var rootCmd = &cobra.Command{
	Use:          "docctl",
	Short:        "Inspect collaborative documents",
	SilenceUsage: true,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		docs, err := svc.List(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(docs) == 0 {
			fmt.Fprintln(out, "No documents.")
			return nil
		}
		for _, d := range docs {
			lock := "-"
			if holder := d.LockHolder(time.Now()); holder != "" {
				lock = holder
			}
			fmt.Fprintf(out, "%s\tv%d\t%s\tlock:%s\n", d.ID, d.Version, d.Name, lock)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <document-id>",
	Short: "Show the change log of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		hist, err := svc.History(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, rec := range hist {
			fmt.Fprintf(out, "v%d\t%s\t%s\t%d op(s)\n", rec.Version, rec.Timestamp.Format(time.RFC3339), rec.Author, len(rec.Ops))
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <document-id>",
	Short: "Print a document at its current or a past version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := cmd.Flags().GetInt("version")

		svc, closeFn, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		var text string
		if version < 0 {
			d, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			text = d.Content
		} else {
			text, err = svc.ViewVersion(cmd.Context(), args[0], version)
			if err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <document-id>",
	Short: "Replay the change log and compare it with the stored content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeFn, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		v, err := svc.Verify(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !v.Consistent {
			return fmt.Errorf("document %s is inconsistent at v%d: %s", v.DocumentID, v.Version, v.Problem)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "document %s OK: %d record(s), v%d\n", v.DocumentID, v.Records, v.Version)
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Sign a development token with JWT_SECRET",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cfg.JWT.Secret == "" {
			return fmt.Errorf("JWT_SECRET is not set")
		}
		tok, err := identity.IssueToken(cfg.JWT.Secret, args[0], name, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	showCmd.Flags().Int("version", -1, "version to reconstruct (default: current)")
	tokenCmd.Flags().String("name", "", "display name claim")
	tokenCmd.Flags().Duration("ttl", time.Hour, "token lifetime")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(tokenCmd)
}
