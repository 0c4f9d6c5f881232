package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

var routeJSON bool

var routeCmd = &cobra.Command{
	Use:   "route [query]",
	Short: "Show how a question is routed",
	Long: `Classifies a question into knowledge categories and prints every
category confidence, the selected scopes and whether the full corpus is added.`,
	Args: cobra.ExactArgs(1),
	RunE: runRoute,
}

func init() {
	routeCmd.Flags().BoolVar(&routeJSON, "json", false, "output the decision as JSON")
	rootCmd.AddCommand(routeCmd)
}

func runRoute(cmd *cobra.Command, args []string) error {
	if routerService == nil {
		return errors.New("router service not configured")
	}

	decision := routerService.Route(commandContext(cmd), domain.Query{RawText: args[0]})

	if routeJSON {
		data, err := json.MarshalIndent(decision, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal decision: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	printDecision(cmd, &decision)
	return nil
}

func printDecision(cmd *cobra.Command, d *domain.RoutingDecision) {
	scopes := make([]string, len(d.Scopes))
	for i, c := range d.Scopes {
		scopes[i] = c.String()
	}
	if d.IncludesFullCorpus {
		scopes = append(scopes, "(full corpus)")
	}

	cmd.Printf("Routing (%s): %s\n", d.Classifier, strings.Join(scopes, ", "))
	for _, s := range d.Scores {
		cmd.Printf("  %-10s %.3f\n", s.Category, s.Confidence)
	}
	if d.Degraded {
		cmd.Printf("  degraded: %s\n", d.DegradedReason)
	}
}
