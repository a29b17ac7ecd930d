package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/bpmn-lod-mapper/internal/bootstrap"
	"github.com/kirillkom/bpmn-lod-mapper/internal/config"
	"github.com/kirillkom/bpmn-lod-mapper/internal/core/usecase"
	"github.com/kirillkom/bpmn-lod-mapper/internal/infrastructure/mapping"
	"github.com/kirillkom/bpmn-lod-mapper/internal/infrastructure/resilience"
	"github.com/kirillkom/bpmn-lod-mapper/internal/infrastructure/triplestore/sparqlhttp"
	"github.com/kirillkom/bpmn-lod-mapper/internal/observability/logging"
)

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:           "bpmnctl",
		Short:         "Operate the BPMN to RDF mapper",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(logging.NewJSONLogger("bpmnctl", logLevel, logging.FileOptions{}))
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(translateCmd(), rulesCmd(), getCmd())
	return cmd
}

func translateCmd() *cobra.Command {
	var rulesPath, base string

	cmd := &cobra.Command{
		Use:   "translate <file>",
		Short: "Print the N-Triples a BPMN file maps to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			mapper, err := bootstrap.NewMapper(config.Config{MappingRulesPath: rulesPath, MappingBaseIRI: base})
			if err != nil {
				return err
			}
			graph, err := mapper.Translate(cmd.Context(), strings.TrimPrefix(string(raw), "\ufeff"))
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), graph.NTriples())
			return err
		},
	}
	cmd.Flags().StringVar(&rulesPath, "rules", os.Getenv("MAPPING_RULES_PATH"), "Mapping rule file (default: built-in BPMN rules)")
	cmd.Flags().StringVar(&base, "base", os.Getenv("MAPPING_BASE_IRI"), "Base IRI for mapped elements")
	return cmd
}

func rulesCmd() *cobra.Command {
	var rulesPath string

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Validate a mapping rule set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rules, err := mapping.LoadRules(rulesPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "base: %s\n", rules.Base)
			fmt.Fprintf(out, "rules: %d\n", len(rules.Rules))
			for _, r := range rules.Rules {
				fmt.Fprintf(out, "  %s\n", r.Label())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&rulesPath, "rules", os.Getenv("MAPPING_RULES_PATH"), "Mapping rule file (default: built-in BPMN rules)")
	return cmd
}

func getCmd() *cobra.Command {
	var endpoint, graph, link string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Look up a registered upload in a SPARQL store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := sparqlhttp.New(sparqlhttp.Config{
				QueryEndpoint: endpoint,
				Timeout:       timeout,
			}, resilience.NewExecutor(resilience.DefaultConfig(), slog.Default()), slog.Default())

			if link == "" {
				link = "/" + args[0]
			}
			desc, err := usecase.NewGetUploadUseCase(store, graph).GetByID(cmd.Context(), args[0], link)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(desc)
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", envOr("SPARQL_ENDPOINT", "http://localhost:8890/sparql"), "SPARQL query endpoint")
	cmd.Flags().StringVar(&graph, "graph", os.Getenv("STORE_GRAPH"), "Named graph to query")
	cmd.Flags().StringVar(&link, "link", "", "Self link to report (default: /<id>)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
