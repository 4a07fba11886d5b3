package database

import sq "github.com/Masterminds/squirrel"

// Dialect names the persistence backend and carries the squirrel statement
// builder configured with that backend's placeholder style. Repository code
// is written once against database/sql; placeholder rewriting, the
// migration SQL and the row-lock suffix of the daily-aggregate upsert are
// what differ between backends (spec Open Question b).
type Dialect struct {
	Name        string
	Placeholder sq.PlaceholderFormat
}

var (
	SQLite   = Dialect{Name: "sqlite", Placeholder: sq.Question}
	Postgres = Dialect{Name: "postgres", Placeholder: sq.Dollar}
)

// Builder returns a squirrel statement builder using this dialect's
// placeholder format.
func (d Dialect) Builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(d.Placeholder)
}
