package query

import (
	"fmt"
	"strconv"
	"strings"
)

// maxFilterValue bounds string literals placed in a filter expression.
const maxFilterValue = 4096

// EqualityFilter renders a DreamFactory-style filter expression matching
// rows where field equals value, e.g. (email = 'a@b.com'). String values are
// single-quoted with embedded quotes doubled, which is the escape the
// faucet filter parser understands.
func EqualityFilter(field string, value interface{}) (string, error) {
	if err := ValidateIdentifier(field); err != nil {
		return "", err
	}

	var lit string
	switch v := value.(type) {
	case nil:
		return fmt.Sprintf("(%s IS NULL)", field), nil
	case string:
		if len(v) > maxFilterValue {
			return "", fmt.Errorf("filter value too long (max %d bytes)", maxFilterValue)
		}
		v = strings.ReplaceAll(v, "\x00", "")
		lit = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		lit = strconv.FormatBool(v)
	case int:
		lit = strconv.Itoa(v)
	case int64:
		lit = strconv.FormatInt(v, 10)
	case float64:
		lit = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return "", fmt.Errorf("unsupported filter value type %T", value)
	}

	return fmt.Sprintf("(%s = %s)", field, lit), nil
}
