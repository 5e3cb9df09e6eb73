package recordstore

import (
	"fmt"
	"sort"
	"strings"

	"github.com/faucetdb/packetdesk/internal/query"
)

// insertStyle says how a dialect hands back the row it just inserted.
type insertStyle int

const (
	insertReturning insertStyle = iota // INSERT ... RETURNING *
	insertOutput                       // INSERT ... OUTPUT INSERTED.* VALUES ...
	insertReselect                     // plain INSERT, then SELECT by id
)

// dialect captures the per-database SQL differences the store needs.
type dialect struct {
	name        string
	sqlDriver   string // database/sql driver name
	schema      string
	placeholder query.PlaceholderFunc
	quote       func(string) string
	insert      insertStyle
	topN        bool // SELECT TOP 1 instead of LIMIT 1
	fetchFirst  bool // FETCH FIRST 1 ROWS ONLY instead of LIMIT 1
	intBools    bool // bind bools as 1/0
	adminDDL    string
}

func quoteDouble(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteBacktick(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func quoteBracket(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

var dialects = map[string]dialect{
	"sqlite": {
		name:        "sqlite",
		sqlDriver:   "sqlite",
		placeholder: query.QuestionPlaceholder,
		quote:       quoteDouble,
		insert:      insertReturning,
		adminDDL: `CREATE TABLE IF NOT EXISTS admin_users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_login DATETIME
		)`,
	},
	"postgres": {
		name:        "postgres",
		sqlDriver:   "pgx",
		placeholder: query.DollarPlaceholder,
		quote:       quoteDouble,
		insert:      insertReturning,
		adminDDL: `CREATE TABLE IF NOT EXISTS admin_users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_login TIMESTAMPTZ
		)`,
	},
	"mysql": {
		name:        "mysql",
		sqlDriver:   "mysql",
		placeholder: query.QuestionPlaceholder,
		quote:       quoteBacktick,
		insert:      insertReselect,
		adminDDL: "CREATE TABLE IF NOT EXISTS admin_users (" +
			"id VARCHAR(26) PRIMARY KEY, " +
			"email VARCHAR(255) NOT NULL UNIQUE, " +
			"password_hash VARCHAR(255) NOT NULL, " +
			"is_active TINYINT(1) NOT NULL DEFAULT 1, " +
			"created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6), " +
			"last_login DATETIME(6) NULL)",
	},
	"mssql": {
		name:        "mssql",
		sqlDriver:   "sqlserver",
		schema:      "dbo",
		placeholder: query.AtPPlaceholder,
		quote:       quoteBracket,
		insert:      insertOutput,
		topN:        true,
		adminDDL: `IF OBJECT_ID(N'admin_users', N'U') IS NULL
		CREATE TABLE admin_users (
			id NVARCHAR(26) NOT NULL PRIMARY KEY,
			email NVARCHAR(255) NOT NULL UNIQUE,
			password_hash NVARCHAR(255) NOT NULL,
			is_active BIT NOT NULL DEFAULT 1,
			created_at DATETIME2 NOT NULL DEFAULT SYSUTCDATETIME(),
			last_login DATETIME2 NULL
		)`,
	},
	"oracle": {
		name:        "oracle",
		sqlDriver:   "oracle",
		placeholder: query.ColonPlaceholder,
		quote:       quoteDouble,
		insert:      insertReselect,
		fetchFirst:  true,
		intBools:    true,
		// Quoted names keep the lower-case columns the rest of the store
		// expects; ORA-00955 means the table already exists.
		adminDDL: `BEGIN
	EXECUTE IMMEDIATE 'CREATE TABLE "admin_users" (
		"id" VARCHAR2(26) PRIMARY KEY,
		"email" VARCHAR2(255) NOT NULL UNIQUE,
		"password_hash" VARCHAR2(255) NOT NULL,
		"is_active" NUMBER(1) DEFAULT 1 NOT NULL,
		"created_at" TIMESTAMP DEFAULT SYSTIMESTAMP NOT NULL,
		"last_login" TIMESTAMP NULL
	)';
EXCEPTION
	WHEN OTHERS THEN
		IF SQLCODE != -955 THEN
			RAISE;
		END IF;
END;`,
	},
}

func lookupDialect(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return dialect{}, fmt.Errorf("no SQL dialect for driver %q", driver)
	}
	return d, nil
}

func (d dialect) withSchema(schema string) dialect {
	if schema != "" {
		d.schema = schema
	}
	return d
}

func (d dialect) table(name string) (string, error) {
	if err := query.ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("table: %w", err)
	}
	if d.schema != "" {
		return d.quote(d.schema) + "." + d.quote(name), nil
	}
	return d.quote(name), nil
}

// arg converts a value to what the driver binds.
func (d dialect) arg(v interface{}) interface{} {
	if b, ok := v.(bool); ok && d.intBools {
		if b {
			return 1
		}
		return 0
	}
	return v
}

func sortedColumns(row Row) ([]string, error) {
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	if err := query.ValidateIdentifiers(cols); err != nil {
		return nil, err
	}
	return cols, nil
}

// buildInsert returns a single-row INSERT. Columns are emitted in sorted
// order so the generated SQL is deterministic.
func (d dialect) buildInsert(table string, row Row) (string, []interface{}, error) {
	if len(row) == 0 {
		return "", nil, fmt.Errorf("at least one column is required")
	}
	tbl, err := d.table(table)
	if err != nil {
		return "", nil, err
	}
	cols, err := sortedColumns(row)
	if err != nil {
		return "", nil, err
	}

	quoted := make([]string, len(cols))
	params := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, c := range cols {
		quoted[i] = d.quote(c)
		params[i] = d.placeholder(i + 1)
		args[i] = d.arg(row[c])
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tbl)
	b.WriteString(" (")
	b.WriteString(strings.Join(quoted, ", "))
	b.WriteString(")")
	if d.insert == insertOutput {
		b.WriteString(" OUTPUT INSERTED.*")
	}
	b.WriteString(" VALUES (")
	b.WriteString(strings.Join(params, ", "))
	b.WriteString(")")
	if d.insert == insertReturning {
		b.WriteString(" RETURNING *")
	}
	return b.String(), args, nil
}

// buildSelectOne returns a query for the first row where field = value.
func (d dialect) buildSelectOne(table, field string, value interface{}) (string, []interface{}, error) {
	tbl, err := d.table(table)
	if err != nil {
		return "", nil, err
	}
	if err := query.ValidateIdentifier(field); err != nil {
		return "", nil, fmt.Errorf("field: %w", err)
	}

	where := d.quote(field) + " = " + d.placeholder(1)
	args := []interface{}{d.arg(value)}
	switch {
	case d.topN:
		return "SELECT TOP 1 * FROM " + tbl + " WHERE " + where, args, nil
	case d.fetchFirst:
		return "SELECT * FROM " + tbl + " WHERE " + where + " FETCH FIRST 1 ROWS ONLY", args, nil
	}
	return "SELECT * FROM " + tbl + " WHERE " + where + " LIMIT 1", args, nil
}

// buildUpdate returns an UPDATE setting every column of patch on rows where
// field = value.
func (d dialect) buildUpdate(table string, patch Row, field string, value interface{}) (string, []interface{}, error) {
	if len(patch) == 0 {
		return "", nil, fmt.Errorf("at least one field to update is required")
	}
	tbl, err := d.table(table)
	if err != nil {
		return "", nil, err
	}
	if err := query.ValidateIdentifier(field); err != nil {
		return "", nil, fmt.Errorf("field: %w", err)
	}
	cols, err := sortedColumns(patch)
	if err != nil {
		return "", nil, err
	}

	sets := make([]string, len(cols))
	args := make([]interface{}, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = d.quote(c) + " = " + d.placeholder(i+1)
		args = append(args, d.arg(patch[c]))
	}
	args = append(args, d.arg(value))

	q := "UPDATE " + tbl + " SET " + strings.Join(sets, ", ") +
		" WHERE " + d.quote(field) + " = " + d.placeholder(len(cols)+1)
	return q, args, nil
}
