// Package sanitizer normalizes user supplied free text before validation and
// storage.
//
// All functions are idempotent: applying them twice yields the same result.
// Invalid input never produces an error; it is reduced to the empty string
// and left for the validators to reject.
//
// Normalization includes:
//   - Single line fields (locations): trim, collapse internal whitespace
//   - Multi line fields (comments, special requests): strip control characters,
//     collapse runs of blanks within a line, keep at most one empty line in a row
//   - Identifiers: trim surrounding whitespace only
package sanitizer
