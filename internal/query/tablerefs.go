package query

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokQuoted
	tokString
	tokNumber
	tokPunct
)

type token struct {
	kind tokenKind
	text string // words are upper-cased; quoted identifiers keep their case
}

// Functions whose argument syntax uses FROM without naming a table
var fromTakingFunctions = map[string]bool{
	"EXTRACT":   true,
	"TRIM":      true,
	"SUBSTRING": true,
	"SUBSTR":    true,
	"OVERLAY":   true,
	"POSITION":  true,
}

// Keywords that end a FROM clause at the current nesting depth
var fromClauseTerminators = map[string]bool{
	"WHERE": true, "GROUP": true, "HAVING": true, "ORDER": true, "LIMIT": true,
	"OFFSET": true, "FETCH": true, "UNION": true, "EXCEPT": true, "INTERSECT": true,
	"QUALIFY": true, "WINDOW": true, "SELECT": true,
}

var allowedQualifiers = map[string]bool{"main": true, "public": true}

type tableRefs struct {
	tables    [][]string // dotted name parts, lower-cased
	functions []string   // table functions used as a FROM source
	sources   []string   // FROM sources that are neither a name nor a subquery
	ctes      []string
}

func tokenize(sql string) []token {
	var tokens []token

	runes := []rune(sql)
	for i := 0; i < len(runes); {
		r := runes[i]

		switch {
		case unicode.IsSpace(r):
			i++
		case r == '\'':
			j := i + 1
			for j < len(runes) {
				if runes[j] == '\'' {
					if j+1 < len(runes) && runes[j+1] == '\'' {
						j += 2
						continue
					}
					break
				}
				j++
			}
			tokens = append(tokens, token{kind: tokString})
			i = j + 1
		case r == '"':
			var b strings.Builder
			j := i + 1
			for j < len(runes) {
				if runes[j] == '"' {
					if j+1 < len(runes) && runes[j+1] == '"' {
						b.WriteRune('"')
						j += 2
						continue
					}
					break
				}
				b.WriteRune(runes[j])
				j++
			}
			tokens = append(tokens, token{kind: tokQuoted, text: b.String()})
			i = j + 1
		case r == '`':
			j := i + 1
			for j < len(runes) && runes[j] != '`' {
				j++
			}
			if j == len(runes) {
				tokens = append(tokens, token{kind: tokPunct, text: "`"})
				i++
				continue
			}
			tokens = append(tokens, token{kind: tokQuoted, text: string(runes[i+1 : j])})
			i = j + 1
		case r == '_' || unicode.IsLetter(r):
			j := i + 1
			for j < len(runes) && (runes[j] == '_' || runes[j] == '$' || unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j])) {
				j++
			}
			tokens = append(tokens, token{kind: tokWord, text: strings.ToUpper(string(runes[i:j]))})
			i = j
		case unicode.IsDigit(r):
			j := i + 1
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			tokens = append(tokens, token{kind: tokNumber})
			i = j
		default:
			tokens = append(tokens, token{kind: tokPunct, text: string(r)})
			i++
		}
	}

	return tokens
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

func (t token) isIdent() bool {
	return t.kind == tokWord || t.kind == tokQuoted
}

func (t token) describe() string {
	switch t.kind {
	case tokString:
		return "string literal"
	case tokNumber:
		return "number"
	default:
		return t.text
	}
}

func (t token) ident() string {
	return strings.ToLower(t.text)
}

// extractTableRefs walks the token stream and collects every relation named
// after FROM, JOIN, or a comma inside a FROM clause.
func extractTableRefs(sql string) tableRefs {
	tokens := tokenize(sql)
	refs := tableRefs{}

	// stack of the word that opened each parenthesis ("" when none)
	var parens []string
	inFrom := map[int]bool{}

	at := func(i int) token {
		if i < 0 || i >= len(tokens) {
			return token{kind: tokPunct}
		}
		return tokens[i]
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		depth := len(parens)

		switch {
		case tok.is(tokPunct, "("):
			opener := ""
			if prev := at(i - 1); prev.kind == tokWord {
				opener = prev.text
			}
			parens = append(parens, opener)

		case tok.is(tokPunct, ")"):
			inFrom[depth] = false
			if depth > 0 {
				parens = parens[:depth-1]
			}

		case tok.isIdent() && at(i+1).is(tokWord, "AS") &&
			(at(i+2).is(tokPunct, "(") || (at(i+2).is(tokWord, "MATERIALIZED") && at(i+3).is(tokPunct, "("))):
			refs.ctes = append(refs.ctes, tok.ident())

		case tok.is(tokWord, "FROM"):
			if depth > 0 && fromTakingFunctions[parens[depth-1]] {
				continue
			}
			if at(i - 1).is(tokWord, "DISTINCT") {
				continue
			}
			inFrom[depth] = true
			i = readTableRef(tokens, i+1, &refs) - 1

		case tok.is(tokWord, "JOIN"):
			i = readTableRef(tokens, i+1, &refs) - 1

		case tok.is(tokPunct, ",") && inFrom[depth]:
			i = readTableRef(tokens, i+1, &refs) - 1

		case tok.kind == tokWord && fromClauseTerminators[tok.text]:
			inFrom[depth] = false
		}
	}

	return refs
}

// readTableRef parses one relation starting at i and returns the index of
// the first token it did not consume.
func readTableRef(tokens []token, i int, refs *tableRefs) int {
	for i < len(tokens) && (tokens[i].is(tokWord, "LATERAL") || tokens[i].is(tokWord, "ONLY")) {
		i++
	}

	if i >= len(tokens) || tokens[i].is(tokPunct, "(") {
		// derived table or nothing at all
		return i
	}

	if !tokens[i].isIdent() {
		refs.sources = append(refs.sources, tokens[i].describe())
		return i + 1
	}

	parts := []string{tokens[i].ident()}
	i++

	for i+1 < len(tokens) && tokens[i].is(tokPunct, ".") && tokens[i+1].isIdent() {
		parts = append(parts, tokens[i+1].ident())
		i += 2
	}

	if i < len(tokens) && tokens[i].is(tokPunct, "(") {
		refs.functions = append(refs.functions, strings.Join(parts, "."))
		return i
	}

	refs.tables = append(refs.tables, parts)

	return i
}
