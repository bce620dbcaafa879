package query

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/kyleking/hr-insight/internal/types"
)

// StatementChecker asks the data store itself whether a query is a single
// read-only selection. Implementations live next to the store drivers.
type StatementChecker interface {
	CheckStatement(ctx context.Context, sql string) error
}

const readOnlyReason = "only read-only queries are allowed"

var (
	selectPrefix = regexp.MustCompile(`^SELECT\b`)

	// A statement separator followed by anything but whitespace
	trailingStatement = regexp.MustCompile(`;\s*\S`)

	commentMarkers = []string{";--", "--", "/*"}

	deniedKeywords = []string{
		"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE", "TRUNCATE",
		"EXECUTE", "EXEC",
		// store control surface
		"ATTACH", "DETACH", "COPY", "PRAGMA", "INSTALL", "LOAD", "EXPORT", "IMPORT",
		"CALL", "GRANT", "REVOKE", "VACUUM", "MERGE", "SET",
	}
)

type keywordRule struct {
	token   string
	pattern *regexp.Regexp
}

// Validator applies the safety checks every generated query must pass
// before it reaches the executor. It does no I/O.
type Validator struct {
	rules []keywordRule
}

// NewValidator compiles the keyword denylist
func NewValidator() *Validator {
	rules := make([]keywordRule, 0, len(deniedKeywords)+1)
	for _, kw := range deniedKeywords {
		rules = append(rules, keywordRule{
			token:   kw,
			pattern: regexp.MustCompile(`\b` + kw + `\b`),
		})
	}

	rules = append(rules, keywordRule{
		token:   "REPLACE INTO",
		pattern: regexp.MustCompile(`\bREPLACE\s+INTO\b`),
	})

	return &Validator{rules: rules}
}

// Validate checks sql against the allowed table set. All checks run on an
// upper-cased, trimmed copy; the caller executes the original text.
// Keywords inside string literals are rejected too.
func (v *Validator) Validate(sql string, allowedTables []string) types.ValidationVerdict {
	normalized := strings.ToUpper(strings.TrimSpace(sql))
	if normalized == "" {
		return types.Reject("query must not be empty")
	}

	if !selectPrefix.MatchString(normalized) {
		return types.Reject(readOnlyReason)
	}

	for _, marker := range commentMarkers {
		if strings.Contains(normalized, marker) {
			return types.Reject(fmt.Sprintf("forbidden comment marker: %s", marker))
		}
	}

	for _, rule := range v.rules {
		if rule.pattern.MatchString(normalized) {
			return types.Reject(fmt.Sprintf("forbidden keyword: %s", rule.token))
		}
	}

	if trailingStatement.MatchString(normalized) {
		return types.Reject("multiple statements are not allowed")
	}

	return checkTableReferences(sql, allowedTables)
}

func checkTableReferences(sql string, allowedTables []string) types.ValidationVerdict {
	refs := extractTableRefs(sql)

	allowed := make(map[string]bool, len(allowedTables)+len(refs.ctes))
	for _, t := range allowedTables {
		allowed[strings.ToLower(strings.TrimSpace(t))] = true
	}

	for _, cte := range refs.ctes {
		allowed[cte] = true
	}

	if len(refs.sources) > 0 {
		return types.Reject(fmt.Sprintf("unsupported table source: %s", refs.sources[0]))
	}

	if len(refs.functions) > 0 {
		return types.Reject(fmt.Sprintf("table functions are not allowed: %s", refs.functions[0]))
	}

	for _, ref := range refs.tables {
		name := ref[len(ref)-1]
		if len(ref) > 2 || (len(ref) == 2 && !allowedQualifiers[ref[0]]) {
			return types.Reject(fmt.Sprintf("table not allowed: %s", strings.Join(ref, ".")))
		}

		if !allowed[name] {
			return types.Reject(fmt.Sprintf("table not allowed: %s", name))
		}
	}

	return types.Accept()
}
