// Package classifier holds the query router backends.
//
// Subpackages:
//   - keyword: local keyword and phrase rules from the category profiles
//   - prototype: nearest-exemplar classifier over the embedding model
//   - llm: remote LLM asked for per-category confidences
//
// All of them implement driven.Classifier and are picked at configuration time.
package classifier
