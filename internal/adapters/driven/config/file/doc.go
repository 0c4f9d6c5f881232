// Package file provides file-based implementations of driven port interfaces.
//
// Adapters:
//   - ConfigStore: TOML configuration with dotted keys
//   - PromptStore: user-editable LLM prompt templates
package file
