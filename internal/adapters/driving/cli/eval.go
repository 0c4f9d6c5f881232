package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/lorekeeper/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

var (
	evalCases      string
	evalK          int
	evalStrategies []string
	evalRouter     bool
	evalLabel      string
	evalJSON       bool
	evalShowCases  bool
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Benchmark retrieval against labelled questions",
	Long: `Runs every labelled question through the retriever and reports MRR,
Recall@k and latency, overall and per question category.

Pass several strategies to compare them on the same snapshot:
  lorekeeper eval --cases cases.yaml --strategy dense,lexical,hybrid

With --json the output is an array with one report per strategy.`,
	Args: cobra.NoArgs,
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVar(&evalCases, "cases", "cases.yaml", "evaluation cases file (YAML or JSON)")
	evalCmd.Flags().IntVarP(&evalK, "k", "k", 5, "cutoff for MRR and Recall@k")
	evalCmd.Flags().StringSliceVarP(&evalStrategies, "strategy", "s", nil, "strategies to evaluate (default: configured)")
	evalCmd.Flags().BoolVar(&evalRouter, "router", false, "route each question instead of searching the full corpus")
	evalCmd.Flags().StringVar(&evalLabel, "label", "", "configuration label used in reports")
	evalCmd.Flags().BoolVar(&evalJSON, "json", false, "output reports as JSON")
	evalCmd.Flags().BoolVar(&evalShowCases, "cases-detail", false, "list every case result")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, _ []string) error {
	if evaluationService == nil {
		return errors.New("evaluation service not configured")
	}
	if loadCases == nil {
		return errors.New("case loader not configured")
	}

	cases, err := loadCases(evalCases)
	if err != nil {
		return fmt.Errorf("failed to load cases: %w", err)
	}

	ctx := commandContext(cmd)
	if err := ensureCorpus(ctx); err != nil {
		return err
	}

	strategies := []domain.Strategy{""}
	if len(evalStrategies) > 0 {
		strategies = strategies[:0]
		for _, name := range evalStrategies {
			s, err := domain.ParseStrategy(strings.TrimSpace(name))
			if err != nil {
				return err
			}
			strategies = append(strategies, s)
		}
	}

	reports := make([]*domain.Report, 0, len(strategies))
	for _, strategy := range strategies {
		cfg := domain.EvaluationConfig{K: evalK, Strategy: strategy, UseRouter: evalRouter}
		if evalLabel != "" {
			cfg.Label = evalLabel
			if len(strategies) > 1 {
				cfg.Label += "-" + strategy.String()
			}
		}
		report, err := evaluationService.Evaluate(ctx, cases, cfg)
		if err != nil {
			return fmt.Errorf("evaluation failed: %w", err)
		}
		reports = append(reports, report)
	}

	if evalJSON {
		data, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal reports: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	styled := isTerminal(cmd.OutOrStdout())
	for _, r := range reports {
		renderReport(cmd.OutOrStdout(), r, styled)
	}
	return nil
}

// renderReport prints a report summary, styled with lipgloss on terminals.
func renderReport(w io.Writer, r *domain.Report, styled bool) {
	st := styles.DefaultStyles()
	title := fmt.Sprintf("%s (%d cases, k=%d)", r.Config.Label, r.Cases, r.Config.K)
	if styled {
		title = st.Title.Render(title)
	}
	fmt.Fprintln(w, title)

	summary := fmt.Sprintf("MRR %.3f | Recall@%d %.3f | latency mean %s p50 %s p95 %s max %s",
		r.MRR, r.Config.K, r.RecallAtK, r.Latency.Mean, r.Latency.P50, r.Latency.P95, r.Latency.Max)
	if r.RoutingAccuracy != nil {
		summary += fmt.Sprintf(" | routing accuracy %.3f", *r.RoutingAccuracy)
	}
	fmt.Fprintln(w, summary)

	worst, _ := r.WorstCategory()
	rows := make([][]string, 0, len(r.ByCategory))
	for _, c := range r.ByCategory {
		rows = append(rows, []string{
			c.Category,
			fmt.Sprintf("%d", c.Cases),
			fmt.Sprintf("%.3f", c.MRR),
			fmt.Sprintf("%.3f", c.RecallAtK),
		})
	}
	headers := []string{"CATEGORY", "CASES", "MRR", fmt.Sprintf("R@%d", r.Config.K)}

	if styled {
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(st.Muted).
			Headers(headers...).
			Rows(rows...).
			StyleFunc(func(row, _ int) lipgloss.Style {
				switch {
				case row == table.HeaderRow:
					return st.Header
				case row >= 0 && row < len(r.ByCategory) && r.ByCategory[row].Category == worst.Category:
					return st.Warning.Padding(0, 1)
				default:
					return st.Normal.Padding(0, 1)
				}
			})
		fmt.Fprintln(w, t.String())
	} else {
		fmt.Fprintf(w, "  %-18s %5s %7s %7s\n", headers[0], headers[1], headers[2], headers[3])
		for _, row := range rows {
			fmt.Fprintf(w, "  %-18s %5s %7s %7s\n", row[0], row[1], row[2], row[3])
		}
	}

	if evalShowCases {
		for _, c := range r.Results {
			fmt.Fprintf(w, "  %-8s rank=%d recall=%.2f %s\n", c.CaseID, c.FirstRank, c.Recall, strings.Join(c.Retrieved, ", "))
		}
	}
	fmt.Fprintln(w)
}
