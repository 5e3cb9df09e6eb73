// Package query holds the small amount of SQL and filter-expression
// plumbing shared by the record store adapters: identifier validation,
// dialect placeholders, and equality filters for REST table APIs.
package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MaxIdentifierLength is the longest table, column or slot name accepted.
const MaxIdentifierLength = 64

// ErrInvalidIdentifier is wrapped by every ValidateIdentifier failure.
var ErrInvalidIdentifier = errors.New("invalid identifier")

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Identifiers are interpolated into SQL text, so keywords that would change
// the statement's shape are refused outright.
var reservedWords = map[string]bool{
	"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true,
	"DROP": true, "CREATE": true, "ALTER": true, "TRUNCATE": true,
	"EXEC": true, "EXECUTE": true, "UNION": true, "INTO": true,
	"FROM": true, "WHERE": true, "TABLE": true, "SET": true,
	"VALUES": true, "OUTPUT": true, "RETURNING": true, "AND": true,
	"OR": true, "NOT": true, "NULL": true, "LIMIT": true,
}

// ValidateIdentifier reports whether name can be used as a table, column or
// session slot name. Errors wrap ErrInvalidIdentifier.
func ValidateIdentifier(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidIdentifier)
	case len(name) > MaxIdentifierLength:
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidIdentifier, name, MaxIdentifierLength)
	case !identifierPattern.MatchString(name):
		return fmt.Errorf("%w: %q may only contain letters, digits and underscores", ErrInvalidIdentifier, name)
	case reservedWords[strings.ToUpper(name)]:
		return fmt.Errorf("%w: %q is a reserved word", ErrInvalidIdentifier, name)
	}
	return nil
}

// ValidateIdentifiers validates each name in order and returns the first
// failure.
func ValidateIdentifiers(names []string) error {
	for _, name := range names {
		if err := ValidateIdentifier(name); err != nil {
			return err
		}
	}
	return nil
}
