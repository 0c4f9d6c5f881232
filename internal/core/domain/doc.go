// Package domain defines the core retrieval entities for Lorekeeper.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Section: an indexed unit of corpus text with its embedding
//   - Query: one user request plus conversation context
//   - RoutingDecision: per-category confidences and the chosen scopes
//   - RetrievalResult: the ranked hits returned to response generation
//   - EvaluationCase and Report: offline benchmark inputs and outputs
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
