package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

var (
	routingLogLimit int
	routingLogJSON  bool
)

var routingLogCmd = &cobra.Command{
	Use:   "routing-log",
	Short: "Inspect and annotate routing decisions",
	Long: `Every routed question is recorded with all classifier scores. Annotating
records with the scopes that should have been chosen builds a feedback dataset
for tuning keywords, prototypes and the fallback threshold.`,
}

var routingLogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent routing decisions",
	Args:  cobra.NoArgs,
	RunE:  runRoutingLogList,
}

var routingLogAnnotateCmd = &cobra.Command{
	Use:   "annotate [record-id] [category...]",
	Short: "Record the correct scopes for a decision",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runRoutingLogAnnotate,
}

func init() {
	routingLogListCmd.Flags().IntVarP(&routingLogLimit, "limit", "n", 20, "maximum number of records (0 = all)")
	routingLogListCmd.Flags().BoolVar(&routingLogJSON, "json", false, "output records as JSON")
	routingLogCmd.AddCommand(routingLogListCmd)
	routingLogCmd.AddCommand(routingLogAnnotateCmd)
	rootCmd.AddCommand(routingLogCmd)
}

func runRoutingLogList(cmd *cobra.Command, _ []string) error {
	if routingLogService == nil {
		return errors.New("routing log not configured")
	}

	records, err := routingLogService.List(commandContext(cmd), routingLogLimit)
	if err != nil {
		return fmt.Errorf("failed to list routing log: %w", err)
	}

	if routingLogJSON {
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal records: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(records) == 0 {
		cmd.Println("No routing decisions recorded.")
		return nil
	}

	for i := range records {
		r := &records[i]
		cmd.Printf("%s  %s  %q\n", r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.QueryText)
		cmd.Printf("    scopes: %s", joinCategories(r.Decision.Scopes))
		if r.Decision.IncludesFullCorpus {
			cmd.Print(" +full")
		}
		if r.Decision.Degraded {
			cmd.Print(" (degraded)")
		}
		cmd.Println()
		if len(r.CorrectScopes) > 0 {
			cmd.Printf("    correct: %s\n", joinCategories(r.CorrectScopes))
		}
	}
	return nil
}

func runRoutingLogAnnotate(cmd *cobra.Command, args []string) error {
	if routingLogService == nil {
		return errors.New("routing log not configured")
	}

	id := args[0]
	correct := domain.ParseCategories(args[1:])
	if len(correct) == 0 {
		return fmt.Errorf("%w: at least one category is required", domain.ErrInvalidInput)
	}

	if err := routingLogService.Annotate(commandContext(cmd), id, correct); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("routing record %s not found", id)
		}
		return fmt.Errorf("failed to annotate: %w", err)
	}

	cmd.Printf("Annotated %s: %s\n", id, joinCategories(correct))
	return nil
}

func joinCategories(cs []domain.Category) string {
	if len(cs) == 0 {
		return "-"
	}
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.String()
	}
	return strings.Join(names, ", ")
}
