package query

import "fmt"

// PlaceholderFunc returns the SQL placeholder for a given 1-based parameter index.
type PlaceholderFunc func(index int) string

// DollarPlaceholder returns $1, $2, etc. (PostgreSQL).
func DollarPlaceholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// QuestionPlaceholder returns ? for all params (MySQL, SQLite).
func QuestionPlaceholder(_ int) string {
	return "?"
}

// AtPPlaceholder returns @p1, @p2, etc. (SQL Server).
func AtPPlaceholder(index int) string {
	return fmt.Sprintf("@p%d", index)
}

// ColonPlaceholder returns :1, :2, etc. (Oracle).
func ColonPlaceholder(index int) string {
	return fmt.Sprintf(":%d", index)
}
