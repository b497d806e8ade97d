package querysql

import (
	"fmt"
	"strings"
)

// Dialect selects identifier quoting.
type Dialect string

const (
	// DialectPlain emits identifiers verbatim.
	DialectPlain Dialect = "plain"
	// DialectANSI quotes identifiers with double quotes.
	DialectANSI Dialect = "ansi"
	// DialectMySQL quotes identifiers with backticks.
	DialectMySQL Dialect = "mysql"
	// DialectMSSQL quotes identifiers with square brackets.
	DialectMSSQL Dialect = "mssql"
)

// ParseDialect parses a dialect name case-insensitively.
func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case DialectPlain, DialectANSI, DialectMySQL, DialectMSSQL:
		return d, nil
	case "":
		return DialectPlain, nil
	default:
		return "", fmt.Errorf("invalid dialect %q (must be plain, ansi, mysql or mssql)", s)
	}
}

// quote renders one identifier for the dialect.
func (d Dialect) quote(name string) string {
	switch d {
	case DialectANSI:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	case DialectMySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case DialectMSSQL:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	default:
		return name
	}
}

// AliasMode controls per-instance table aliases.
type AliasMode string

const (
	// AliasAuto aliases only relations placed more than once.
	AliasAuto AliasMode = "auto"
	// AliasAlways aliases every instance of a multi-instance canvas. A
	// single instance still compiles to SELECT * FROM <relation>.
	AliasAlways AliasMode = "always"
	// AliasNever qualifies by bare relation name. A relation placed twice
	// then yields ambiguous qualification; queryir.Validate reports it.
	AliasNever AliasMode = "never"
)

// ParseAliasMode parses an alias mode case-insensitively.
func ParseAliasMode(s string) (AliasMode, error) {
	switch m := AliasMode(strings.ToLower(strings.TrimSpace(s))); m {
	case AliasAuto, AliasAlways, AliasNever:
		return m, nil
	case "":
		return AliasAuto, nil
	default:
		return "", fmt.Errorf("invalid alias mode %q (must be auto, always or never)", s)
	}
}
