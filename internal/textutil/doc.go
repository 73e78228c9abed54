// Package textutil provides text normalization, slugs and similarity scoring
// for Japanese and Latin fan-content titles and names.
//
// The primary use cases are:
//   - Folding names to a comparison key (NFKC, width, case, punctuation)
//   - Generating URL slugs for celebrities and locations
//   - Scoring name similarity with term-frequency fingerprints
//
// Latin and digit runs become word tokens. Han, Hiragana and Katakana runs
// have no word boundaries, so they are split into overlapping character
// bigrams before counting.
package textutil
