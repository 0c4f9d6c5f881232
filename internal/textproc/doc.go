// Package textproc holds the text analysis shared by the lexical index, the
// hashing embedder, the keyword classifier and the sentence chunker.
//
// All functions are pure and deterministic so that indexes built from the
// same corpus always agree.
package textproc
