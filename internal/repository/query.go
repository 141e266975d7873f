package repository

import (
	"strconv"
	"strings"
)

type scanner interface {
	Scan(dest ...any) error
}

// filter accumulates optional AND clauses with positional placeholders.
// Each clause uses "?" for its arguments; they are numbered on the fly.
type filter struct {
	clauses []string
	args    []any
}

func (f *filter) add(clause string, args ...any) {
	for _, arg := range args {
		f.args = append(f.args, arg)
		clause = strings.Replace(clause, "?", "$"+strconv.Itoa(len(f.args)), 1)
	}
	f.clauses = append(f.clauses, clause)
}

func (f *filter) where() string {
	if len(f.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.clauses, " AND ")
}
