// Package tokenizer splits identifier-like strings into language-aware
// tokens and scores one token stream against another with a subsequence
// distance metric. It backs the fuzzy-name lookup in symbolindex.
package tokenizer

import "strings"

// Tokenize splits s into tokens, applying each rule in order at the current
// position:
//
//   - ':' followed by ':' is a single two-character token.
//   - a leading identifier character [A-Za-z_] consumes the maximal run of
//     [A-Za-z_0-9].
//   - a digit consumes the maximal run of [0-9_].
//   - whitespace consumes the maximal run and, if normalizeWhitespace is
//     set, collapses it to a single " " token; otherwise the run itself is
//     the token.
//   - anything else is a single-character token.
//
// Tokenize is idempotent in the sense required by the fuzzy matcher:
// concatenating the returned tokens reproduces s exactly when
// normalizeWhitespace is false.
func Tokenize(s string, normalizeWhitespace bool) []string {
	var tokens []string

	runes := []rune(s)
	i := 0
	for i < len(runes) {
		c := runes[i]

		switch {
		case c == ':' && i+1 < len(runes) && runes[i+1] == ':':
			tokens = append(tokens, "::")
			i += 2

		case isIdentStart(c):
			j := i + 1
			for j < len(runes) && isIdentCont(runes[j]) {
				j++
			}
			tokens = append(tokens, string(runes[i:j]))
			i = j

		case isDigit(c):
			j := i + 1
			for j < len(runes) && (isDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			tokens = append(tokens, string(runes[i:j]))
			i = j

		case isSpace(c):
			j := i + 1
			for j < len(runes) && isSpace(runes[j]) {
				j++
			}
			if normalizeWhitespace {
				tokens = append(tokens, " ")
			} else {
				tokens = append(tokens, string(runes[i:j]))
			}
			i = j

		default:
			tokens = append(tokens, string(c))
			i++
		}
	}

	return tokens
}

func isIdentStart(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isIdentCont(c rune) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}

func isSpace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// Join reconstructs the original string from tokens produced with
// normalizeWhitespace=false.
func Join(tokens []string) string {
	return strings.Join(tokens, "")
}

// NoMatch is returned by Distance to signal "no match": either a query
// token was never found in the candidate stream, or the running mismatch
// count exceeded the caller-supplied bound.
const NoMatch = -1

// Distance walks query left to right; for each query token it advances
// through candidate counting mismatches until a match is found. If a query
// token is never found before candidate is exhausted, it returns NoMatch. If
// the accumulated mismatch count would exceed bound, it short-circuits and
// returns NoMatch. bound may be set to a very large value (e.g. math.MaxInt)
// to disable the early-exit behavior.
//
// This is a subsequence metric and is asymmetric by design: a short query
// matches any candidate that contains its tokens in order.
func Distance(query, candidate []string, bound int) int {
	dist := 0
	ci := 0

	for _, qt := range query {
		found := false
		for ci < len(candidate) {
			if candidate[ci] == qt {
				ci++
				found = true
				break
			}
			ci++
			dist++
			if dist > bound {
				return NoMatch
			}
		}
		if !found {
			return NoMatch
		}
	}

	return dist
}
