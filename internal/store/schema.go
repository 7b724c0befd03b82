package store

import (
	"embed"
	"fmt"
	"os"
	"strings"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// DefaultSchema returns the embedded schema for driver.
func DefaultSchema(driver string) ([]byte, error) {
	d, err := lookupDialect(driver)
	if err != nil {
		return nil, err
	}
	return schemaFS.ReadFile("schema/" + d.name() + ".sql")
}

// LoadSchema reads the schema at path, or the embedded default when path is
// empty. An unreadable file is fatal for the run.
func LoadSchema(path, driver string) ([]byte, error) {
	if path == "" {
		return DefaultSchema(driver)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return b, nil
}

// SplitStatements splits a schema script on ';' terminators. Line comments
// and semicolons inside quoted literals do not split.
func SplitStatements(script string) []string {
	var (
		stmts   []string
		cur     strings.Builder
		quote   byte
		comment bool
	)

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(script); i++ {
		c := script[i]

		if comment {
			if c == '\n' {
				comment = false
				cur.WriteByte(c)
			}
			continue
		}

		if quote != 0 {
			cur.WriteByte(c)
			if c == quote {
				quote = 0
			}
			continue
		}

		switch {
		case c == '-' && i+1 < len(script) && script[i+1] == '-':
			comment = true
			i++
		case c == '\'' || c == '"':
			quote = c
			cur.WriteByte(c)
		case c == ';':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()

	return stmts
}
