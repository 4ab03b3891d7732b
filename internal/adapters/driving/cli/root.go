// Package cli implements the command-line driving adapter. Commands
// talk to the core through the driving ports; wiring the concrete
// services happens in the composition root via SetServices.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aulalabs/knowledge-core/internal/core/domain"
	"github.com/aulalabs/knowledge-core/internal/core/ports/driven"
	"github.com/aulalabs/knowledge-core/internal/core/ports/driving"
	"github.com/aulalabs/knowledge-core/internal/logger"
)

var (
	ingestService    driving.IngestionService
	retrievalService driving.RetrievalService
	documentStore    driven.DocumentStore
)

// setupFn builds the services once flags are parsed; installed by the
// composition root through OnSetup.
var setupFn func(configPath string) error

var (
	flagVerbose bool
	flagConfig  string
	flagTeacher string
	flagSchool  string
)

var rootCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Document knowledge base for class analysis",
	Long: `Manages a teacher's document knowledge base: ingests uploaded
files into searchable chunks with vector embeddings and assembles
retrieval context for downstream analysis.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(flagVerbose)
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		if setupFn == nil {
			return fmt.Errorf("services not configured")
		}
		return setupFn(flagConfig)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&flagTeacher, "teacher", "", "teacher id owning the documents")
	rootCmd.PersistentFlags().StringVar(&flagSchool, "school", "", "school id owning the documents")
}

// SetServices injects the service implementations.
func SetServices(ingest driving.IngestionService, retrieval driving.RetrievalService, store driven.DocumentStore) {
	ingestService = ingest
	retrievalService = retrieval
	documentStore = store
}

// OnSetup registers the function that wires services after flag
// parsing. It receives the --config value.
func OnSetup(fn func(configPath string) error) {
	setupFn = fn
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// tenantScope builds the scope from the persistent flags.
func tenantScope() (domain.TenantScope, error) {
	scope := domain.TenantScope{TeacherID: flagTeacher, SchoolID: flagSchool}
	if scope.IsZero() {
		return scope, fmt.Errorf("--teacher and --school are required")
	}
	return scope, nil
}
