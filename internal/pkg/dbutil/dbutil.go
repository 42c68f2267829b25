package dbutil

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// gendry emits MySQL-flavored SQL. The protocol index lives in
// postgres, so queries pass through Finalize before execution.
var mysqlLimitRe = regexp.MustCompile(`(?i)LIMIT\s+\?\s*,\s*\?`)

// Finalize converts a gendry-built query to postgres form: the
// `LIMIT ?,?` offset/count pair becomes `LIMIT ? OFFSET ?` (swapping
// the two bound args to match) and every `?` placeholder is rebound to
// `$n`.
func Finalize(query string, args []interface{}) (string, []interface{}) {
	if loc := mysqlLimitRe.FindStringIndex(query); loc != nil {
		bound := strings.Count(query[:loc[0]], "?")
		if bound+1 < len(args) {
			args[bound], args[bound+1] = args[bound+1], args[bound]
			query = mysqlLimitRe.ReplaceAllString(query, "LIMIT ? OFFSET ?")
		}
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}

// IsConflict reports a postgres unique violation.
func IsConflict(err error) bool {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
