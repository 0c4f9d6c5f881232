// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - EmbeddingService: Turns text into dense vectors (the built-in hashing model works offline)
//   - LexicalIndexBuilder: Builds a BM25 index for each corpus snapshot
//   - Classifier: Scores query categories for the router
//   - CorpusSource: Supplies sections whenever the underlying knowledge changes
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - SectionStore: Persists embedded snapshots so embeddings survive restarts
//   - RoutingLogStore: Audit log of routing decisions for feedback datasets
//   - EventSink: Progress events for a query
//   - MetricsRecorder: Retrieval and routing telemetry
//   - LLMService: Language model used by the LLM classifier
//   - PromptStore: User-customisable prompt templates
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
