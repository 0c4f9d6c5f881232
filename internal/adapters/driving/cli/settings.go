package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure retrieval, routing and AI provider settings.

Use subcommands to configure specific settings or run the interactive wizard.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure all settings step by step.`,
	RunE:  runSettingsWizard,
}

var settingsStrategyCmd = &cobra.Command{
	Use:   "strategy [dense|lexical|hybrid]",
	Short: "Set the default retrieval strategy",
	Long: `Set the strategy used when a query does not name one.

Available strategies:
  dense   - Cosine similarity over section embeddings (default)
  lexical - BM25 keyword ranking, no embedding provider needed
  hybrid  - Reciprocal rank fusion of dense and lexical rankings`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSettingsStrategy,
}

var settingsClassifierCmd = &cobra.Command{
	Use:   "classifier [keyword|embedding|llm]",
	Short: "Set the query router backend",
	Long: `Select how questions are routed to corpus categories.

Available classifiers:
  keyword   - Configured keyword matches (default, offline)
  embedding - Similarity to per-category example questions
  llm       - Per-category confidences from an LLM provider`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSettingsClassifier,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long:  `Configure the embedding provider used by dense and hybrid retrieval.`,
	RunE:  runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long:  `Configure the LLM provider used by the llm classifier.`,
	RunE:  runSettingsLLM,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	settingsCmd.AddCommand(settingsStrategyCmd)
	settingsCmd.AddCommand(settingsClassifierCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Corpus]")
	cmd.Printf("  Path: %s\n", settings.Corpus.Path)
	cmd.Printf("  Granularity: %s\n", settings.Corpus.Granularity)
	if settings.Corpus.Granularity == domain.GranularitySentence {
		cmd.Printf("  Sentences: %d (overlap %d)\n", settings.Corpus.SentencesPerChunk, settings.Corpus.SentenceOverlap)
	}
	cmd.Println()

	cmd.Println("[Retrieval]")
	cmd.Printf("  Strategy: %s\n", settings.Retrieval.Strategy)
	cmd.Printf("  K: %d\n", settings.Retrieval.K)
	cmd.Printf("  RRF k: %d\n", settings.Retrieval.RRFK)
	cmd.Println()

	cmd.Println("[Routing]")
	cmd.Printf("  Classifier: %s\n", settings.Routing.Classifier)
	cmd.Printf("  Fallback threshold: %.2f\n", settings.Routing.FallbackThreshold)
	cmd.Printf("  Max scopes: %d\n", settings.Routing.MaxScopes)
	names := make([]domain.Category, len(settings.Routing.Categories))
	for i, p := range settings.Routing.Categories {
		names[i] = p.Category
	}
	cmd.Printf("  Categories: %s\n", joinCategories(names))
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	if settings.Embedding.Provider == domain.AIProviderOllama {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	printAPIKey(cmd, settings.Embedding.Provider, settings.Embedding.APIKey)
	cmd.Printf("  Status: %s\n", configuredStatus(settings.Embedding.IsConfigured()))
	cmd.Println()

	cmd.Println("[LLM]")
	if settings.LLM.Provider == "" {
		cmd.Println("  Provider: (not set)")
	} else {
		cmd.Printf("  Provider: %s\n", settings.LLM.Provider.Description())
		cmd.Printf("  Model: %s\n", settings.LLM.Model)
		if settings.LLM.Provider == domain.AIProviderOllama {
			cmd.Printf("  Base URL: %s\n", settings.LLM.BaseURL)
		}
		printAPIKey(cmd, settings.LLM.Provider, settings.LLM.APIKey)
	}
	cmd.Printf("  Status: %s\n", configuredStatus(settings.LLM.IsConfigured()))
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'lorekeeper settings wizard' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func printAPIKey(cmd *cobra.Command, provider domain.AIProvider, key string) {
	if !provider.RequiresAPIKey() {
		return
	}
	if key != "" {
		cmd.Printf("  API Key: %s\n", maskAPIKey(key))
	} else {
		cmd.Printf("  API Key: (not set)\n")
	}
}

func configuredStatus(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	cmd.Println("Lorekeeper Settings Wizard")
	cmd.Println("==========================")
	cmd.Println()

	reader := bufio.NewReader(cmd.InOrStdin())

	cmd.Println("Step 1: Select Retrieval Strategy")
	cmd.Println("---------------------------------")
	strategy, err := chooseStrategy(cmd, reader, 1)
	if err != nil {
		return err
	}
	cmd.Printf("Set strategy to: %s\n\n", strategy)

	cmd.Println("Step 2: Select Query Router")
	cmd.Println("---------------------------")
	classifier, err := chooseClassifier(cmd, reader, 1)
	if err != nil {
		return err
	}
	cmd.Printf("Set classifier to: %s\n\n", classifier)

	if strategy.RequiresEmbedding() || classifier == domain.ClassifierEmbedding {
		cmd.Println("Step 3: Configure Embedding Provider")
		cmd.Println("------------------------------------")
		if err := configureEmbeddingProvider(cmd, reader); err != nil {
			return err
		}
	} else {
		cmd.Println("Step 3: Embedding Provider (skipped)")
		cmd.Println("------------------------------------")
		cmd.Println("Not required for lexical retrieval.")
		cmd.Println()
	}

	if classifier == domain.ClassifierLLM {
		cmd.Println("Step 4: Configure LLM Provider")
		cmd.Println("------------------------------")
		if err := configureLLMProvider(cmd, reader); err != nil {
			return err
		}
	} else {
		cmd.Println("Step 4: LLM Provider (skipped)")
		cmd.Println("------------------------------")
		cmd.Println("Only the llm classifier needs one.")
		cmd.Println()
	}

	cmd.Println("Configuration Complete!")
	cmd.Println("=======================")
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	} else {
		cmd.Println("All settings are valid and saved.")
	}

	return nil
}

func runSettingsStrategy(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	var strategy domain.Strategy
	if len(args) == 1 {
		s, err := domain.ParseStrategy(args[0])
		if err != nil {
			return err
		}
		if err := settingsService.SetStrategy(s); err != nil {
			return fmt.Errorf("failed to set strategy: %w", err)
		}
		strategy = s
	} else {
		s, err := chooseStrategy(cmd, bufio.NewReader(cmd.InOrStdin()), 0)
		if err != nil {
			return err
		}
		strategy = s
	}

	cmd.Printf("Retrieval strategy set to: %s\n", strategy)

	if strategy.RequiresEmbedding() {
		settings, _ := settingsService.Get() //nolint:errcheck // Best-effort check
		if settings != nil && !settings.Embedding.IsConfigured() {
			cmd.Println("\nNote: This strategy requires an embedding provider.")
			cmd.Println("Run 'lorekeeper settings embedding' to configure.")
		}
	}
	return nil
}

func runSettingsClassifier(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	var kind domain.ClassifierKind
	if len(args) == 1 {
		k := domain.ClassifierKind(strings.ToLower(args[0]))
		if !k.IsValid() {
			return fmt.Errorf("%w: unknown classifier %q (want keyword, embedding or llm)", domain.ErrInvalidInput, args[0])
		}
		if err := settingsService.SetClassifier(k); err != nil {
			return fmt.Errorf("failed to set classifier: %w", err)
		}
		kind = k
	} else {
		k, err := chooseClassifier(cmd, bufio.NewReader(cmd.InOrStdin()), 0)
		if err != nil {
			return err
		}
		kind = k
	}

	cmd.Printf("Query router set to: %s\n", kind)

	if kind == domain.ClassifierLLM {
		settings, _ := settingsService.Get() //nolint:errcheck // Best-effort check
		if settings != nil && !settings.LLM.IsConfigured() {
			cmd.Println("\nNote: This classifier requires an LLM provider.")
			cmd.Println("Run 'lorekeeper settings llm' to configure.")
		}
	}
	return nil
}

// chooseStrategy prompts for a strategy. A zero defaultVal makes the choice mandatory.
func chooseStrategy(cmd *cobra.Command, reader *bufio.Reader, defaultVal int) (domain.Strategy, error) {
	strategies := domain.AllStrategies()
	for i, s := range strategies {
		cmd.Printf("  %d. %s\n", i+1, s)
	}
	idx := promptChoice(cmd, reader, len(strategies), defaultVal)
	if idx == 0 {
		return "", errors.New("invalid selection")
	}
	selected := strategies[idx-1]
	if err := settingsService.SetStrategy(selected); err != nil {
		return "", fmt.Errorf("failed to set strategy: %w", err)
	}
	return selected, nil
}

func chooseClassifier(cmd *cobra.Command, reader *bufio.Reader, defaultVal int) (domain.ClassifierKind, error) {
	kinds := []domain.ClassifierKind{domain.ClassifierKeyword, domain.ClassifierEmbedding, domain.ClassifierLLM}
	for i, k := range kinds {
		cmd.Printf("  %d. %s\n", i+1, k)
	}
	idx := promptChoice(cmd, reader, len(kinds), defaultVal)
	if idx == 0 {
		return "", errors.New("invalid selection")
	}
	selected := kinds[idx-1]
	if err := settingsService.SetClassifier(selected); err != nil {
		return "", fmt.Errorf("failed to set classifier: %w", err)
	}
	return selected, nil
}

func promptChoice(cmd *cobra.Command, reader *bufio.Reader, maxVal, defaultVal int) int {
	if defaultVal > 0 {
		cmd.Printf("\nEnter choice [%d]: ", defaultVal)
	} else {
		cmd.Print("\nEnter choice: ")
	}
	return parseChoice(readLine(reader), maxVal, defaultVal)
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return configureEmbeddingProvider(cmd, bufio.NewReader(cmd.InOrStdin()))
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return configureLLMProvider(cmd, bufio.NewReader(cmd.InOrStdin()))
}

//nolint:dupl // Mirrors configureLLMProvider for embeddings
func configureEmbeddingProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select Embedding Provider")
	providers := domain.AllEmbeddingProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	idx := promptChoice(cmd, reader, len(providers), 1)
	selectedProvider := providers[idx-1]

	defaultModel := domain.DefaultEmbeddingModels()[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key (blank to use the environment): ")
		apiKey = readPassword(cmd.InOrStdin(), reader)
		cmd.Println()
	}

	if err := settingsService.SetEmbeddingProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("Embedding provider configured: %s (%s)\n", selectedProvider.Description(), model)
	cmd.Println("Run 'lorekeeper index' to re-embed the corpus.")
	cmd.Println()
	return nil
}

//nolint:dupl // Mirrors configureEmbeddingProvider for LLMs
func configureLLMProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select LLM Provider")
	providers := domain.AllLLMProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	idx := promptChoice(cmd, reader, len(providers), 1)
	selectedProvider := providers[idx-1]

	defaultModel := domain.DefaultLLMModels()[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key (blank to use the environment): ")
		apiKey = readPassword(cmd.InOrStdin(), reader)
		cmd.Println()
	}

	if err := settingsService.SetLLMProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateLLMConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("LLM provider configured: %s (%s)\n\n", selectedProvider.Description(), model)
	return nil
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo when in is a terminal and falls back to
// the buffered reader otherwise.
func readPassword(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return string(password)
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
