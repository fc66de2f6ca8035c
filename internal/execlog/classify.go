package execlog

import "strings"

var readOnlyKeywords = map[string]bool{
	"SELECT":  true,
	"WITH":    true,
	"PRAGMA":  true,
	"EXPLAIN": true,
	"VALUES":  true,
}

// Statements that open, close or mark transactions. They would leave the
// single pooled connection inside a user transaction, so they are refused.
var transactionKeywords = map[string]bool{
	"BEGIN":     true,
	"COMMIT":    true,
	"END":       true,
	"ROLLBACK":  true,
	"SAVEPOINT": true,
	"RELEASE":   true,
}

var writeKeywords = map[string]bool{
	"INSERT":  true,
	"UPDATE":  true,
	"DELETE":  true,
	"REPLACE": true,
}

// IsReadOnly reports whether a statement only reads. Leading line and block
// comments are skipped before the first keyword is inspected. A WITH
// statement is read-only only when the statement after its common table
// expressions is a SELECT or VALUES.
func IsReadOnly(sql string) bool {
	body := stripLeadingComments(sql)
	kw := firstWord(body)
	if !readOnlyKeywords[kw] {
		return false
	}
	if kw == "WITH" {
		main := mainKeyword(body[len(kw):])
		return main == "SELECT" || main == "VALUES"
	}
	return true
}

// IsTransactionControl reports whether a statement begins, ends or marks a
// transaction.
func IsTransactionControl(sql string) bool {
	return transactionKeywords[firstWord(stripLeadingComments(sql))]
}

// firstWord returns the upper-cased leading identifier of s, or "" when s
// does not start with one.
func firstWord(s string) string {
	i := 0
	for i < len(s) && isIdentChar(s[i]) {
		i++
	}
	return strings.ToUpper(s[:i])
}

// mainKeyword scans the common table expression list that follows WITH and
// returns the first statement keyword found outside parentheses, quotes and
// comments. It returns "" when none is found.
func mainKeyword(s string) string {
	depth := 0
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '(':
			depth++
			i++
		case c == ')':
			depth--
			i++
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(s, i, c)
		case c == '[':
			i = skipQuoted(s, i, ']')
		case strings.HasPrefix(s[i:], "--"):
			j := strings.IndexByte(s[i:], '\n')
			if j < 0 {
				return ""
			}
			i += j + 1
		case strings.HasPrefix(s[i:], "/*"):
			j := strings.Index(s[i+2:], "*/")
			if j < 0 {
				return ""
			}
			i += j + 4
		case isIdentChar(c):
			word := firstWord(s[i:])
			if depth == 0 && (readOnlyKeywords[word] || writeKeywords[word]) && word != "WITH" {
				return word
			}
			i += len(word)
		default:
			i++
		}
	}
	return ""
}

// skipQuoted returns the index just past the quoted run starting at s[start].
// A doubled closing quote is an escape.
func skipQuoted(s string, start int, closing byte) int {
	for i := start + 1; i < len(s); i++ {
		if s[i] != closing {
			continue
		}
		if i+1 < len(s) && s[i+1] == closing && closing != ']' {
			i++
			continue
		}
		return i + 1
	}
	return len(s)
}

func stripLeadingComments(sql string) string {
	s := strings.TrimSpace(sql)
	for {
		switch {
		case strings.HasPrefix(s, "--"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return ""
			}
			s = strings.TrimSpace(s[i+1:])
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s[2:], "*/")
			if i < 0 {
				return ""
			}
			s = strings.TrimSpace(s[i+4:])
		default:
			return s
		}
	}
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
