package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

var (
	retrieveK          int
	retrieveStrategy   string
	retrieveCategories []string
	retrieveHistory    []string
	retrieveJSON       bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Retrieve sections for a question",
	Long: `Ranks corpus sections for a player question.

Strategies:
  dense    - cosine similarity of embeddings (default)
  lexical  - BM25 keyword scoring
  hybrid   - reciprocal rank fusion of dense and lexical rankings

Without --category the question is routed first; low-confidence routing
also searches the full corpus.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().IntVarP(&retrieveK, "k", "k", 0, "number of sections (0 = configured default)")
	retrieveCmd.Flags().StringVarP(&retrieveStrategy, "strategy", "s", "", "dense, lexical or hybrid")
	retrieveCmd.Flags().StringSliceVarP(&retrieveCategories, "category", "c", nil, "restrict to categories and skip routing")
	retrieveCmd.Flags().StringArrayVar(&retrieveHistory, "history", nil, "previous player message (repeatable, oldest first)")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	ctx := commandContext(cmd)
	if err := ensureCorpus(ctx); err != nil {
		return err
	}

	opts := domain.RetrieveOptions{K: retrieveK, Scope: parseScope(retrieveCategories)}
	if retrieveStrategy != "" {
		strategy, err := domain.ParseStrategy(retrieveStrategy)
		if err != nil {
			return err
		}
		opts.Strategy = strategy
	}

	query := domain.Query{RawText: args[0]}
	for _, h := range retrieveHistory {
		query.Context = append(query.Context, domain.ConversationTurn{Role: domain.RoleUser, Content: h})
	}

	result, err := retrievalService.Retrieve(ctx, query, opts)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if retrieveJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if result.Routing != nil {
		printDecision(cmd, result.Routing)
		cmd.Println()
	}
	if result.IsEmpty() {
		cmd.Println("No relevant knowledge found.")
		return nil
	}

	cmd.Printf("Results (%s, %s):\n\n", result.Strategy, result.Elapsed.Round(time.Microsecond))
	for i := range result.Hits {
		h := &result.Hits[i]
		heading := h.Section.Title
		if heading == "" {
			heading = h.SectionID
		}
		cmd.Printf("  [%d] %s (%.4f)\n", h.Rank, heading, h.Score)
		cmd.Printf("      %s | %s\n", h.SectionID, h.Section.Category)
		if crumb := h.Section.Breadcrumb(); crumb != "" {
			cmd.Printf("      %s\n", crumb)
		}
		cmd.Printf("      %s\n\n", snippet(h.Section.Text, 160))
	}
	return nil
}

// snippet shortens text to at most n runes on a word boundary.
func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	cut := string(runes[:n])
	if i := strings.LastIndex(cut, " "); i > n/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
