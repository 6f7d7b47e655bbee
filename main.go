package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mudler/ragcontext/pkg/client"
	"github.com/mudler/ragcontext/pkg/config"
	"github.com/mudler/ragcontext/rag"
	"github.com/mudler/ragcontext/rag/sources"
	"github.com/mudler/xlog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var configFile string

	root := &cobra.Command{
		Use:          "ragcontext",
		Short:        "Build retrieval augmented context blocks for language model prompts",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file (yaml, json or toml)")

	root.AddCommand(newServeCmd(v, &configFile), newQueryCmd())
	return root
}

func newServeCmd(v *viper.Viper, configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.Load(v, *configFile)
			if err != nil {
				return err
			}
			for _, w := range cfg.Validate() {
				xlog.Warn("Configuration warning", "warning", w)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			clients := rag.NewClients(ctx, cfg)
			defer clients.Close()

			s := newServer(
				clients,
				rag.NewContextBuilder(clients.Searcher, clients.Reranker, rag.ContextOptions(cfg)...),
				rag.NewIngestor(clients.Engine, cfg.MaxChunkSize, &sources.Config{GitPrivateKey: cfg.GitPrivateKey}),
			)

			e := newEcho(s)
			go func() {
				<-ctx.Done()
				if err := e.Shutdown(context.Background()); err != nil {
					xlog.Error("Shutdown failed", "error", err)
				}
			}()

			xlog.Info("Starting API", "address", cfg.ListenAddress)
			if err := e.Start(cfg.ListenAddress); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("listen-address", "", "address the API listens on")
	flags.String("vector-engine", "", "vector engine: upstash, chromem, postgres or qdrant")
	flags.String("rerank-engine", "", "rerank engine: cohere, localai, keyword or none")
	flags.String("collection-name", "", "collection used by local engines")
	flags.String("collection-db-path", "", "directory of the chromem database")
	flags.String("embedding-model", "", "embedding model used by local engines")
	flags.Int("max-chunk-size", 0, "maximum size of a stored chunk")
	flags.Int("rag-top-k", 0, "candidates requested from the vector search")
	flags.Bool("rag-use-reranking", true, "rerank candidates when a reranker is configured")
	flags.Float64("rag-relevance-threshold", 0, "minimum relevance kept after reranking")

	return cmd
}

func newQueryCmd() *cobra.Command {
	var (
		serverURL string
		topK      int
		noRerank  bool
		asJSON    bool
		search    bool
	)

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Build a context block through a running server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := client.NewClient(serverURL)
			query := strings.Join(args, " ")

			if search {
				results, err := c.Search(ctx, query, topK)
				if err != nil {
					return err
				}
				return printJSON(cmd, results)
			}

			req := client.ContextRequest{Query: query, TopK: topK}
			if noRerank {
				off := false
				req.UseReranking = &off
			}

			res, err := c.BuildContext(ctx, req)
			if err != nil {
				return err
			}
			if res == nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "no context available")
				return nil
			}
			if asJSON {
				return printJSON(cmd, res)
			}
			fmt.Fprint(cmd.OutOrStdout(), res.SystemPrompt)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&serverURL, "server", "http://localhost:8080", "ragcontext API address")
	flags.IntVar(&topK, "top-k", 0, "candidates requested from the vector search")
	flags.BoolVar(&noRerank, "no-rerank", false, "skip reranking")
	flags.BoolVar(&asJSON, "json", false, "print the whole result as JSON")
	flags.BoolVar(&search, "search", false, "print the raw vector search results")

	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
