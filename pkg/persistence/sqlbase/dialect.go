package sqlbase

import "regexp"

// Dialect captures the differences between SQL backends that the shared queries care about.
// Queries are written with PostgreSQL style $N placeholders.
type Dialect struct {
	Name   string
	Rebind func(query string) string
}

var positional = regexp.MustCompile(`\$(\d+)`)

// Postgres uses queries unchanged.
var Postgres = Dialect{
	Name:   "postgres",
	Rebind: func(query string) string { return query },
}

// SQLite rewrites $N into ?N, which SQLite binds by number.
var SQLite = Dialect{
	Name:   "sqlite3",
	Rebind: func(query string) string { return positional.ReplaceAllString(query, "?$1") },
}
