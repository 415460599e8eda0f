package db

import (
	"fmt"
	"strings"
)

// Placeholder selects the positional parameter style of the target driver.
type Placeholder int

const (
	// Dollar is PostgreSQL style: $1, $2, ...
	Dollar Placeholder = iota
	// Question is SQLite style: ?, ?, ...
	Question
)

// UpsertConfig defines a natural-key upsert statement for one entity table.
// Statements are built once per entity and reused, never assembled inline at
// call sites.
type UpsertConfig struct {
	Table        string   // target table
	Columns      []string // all columns being inserted
	ConflictKeys []string // columns forming the unique constraint
	UpdateCols   []string // columns to update on conflict; nil = all non-conflict columns
	Placeholder  Placeholder
}

// SQL renders the INSERT ... ON CONFLICT ... DO UPDATE statement.
func (c UpsertConfig) SQL() string {
	updateCols := c.UpdateCols
	if updateCols == nil {
		conflictSet := make(map[string]bool, len(c.ConflictKeys))
		for _, k := range c.ConflictKeys {
			conflictSet[k] = true
		}
		for _, col := range c.Columns {
			if !conflictSet[col] {
				updateCols = append(updateCols, col)
			}
		}
	}

	placeholders := make([]string, len(c.Columns))
	for i := range c.Columns {
		if c.Placeholder == Question {
			placeholders[i] = "?"
		} else {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		}
	}

	setClauses := make([]string, len(updateCols))
	for i, col := range updateCols {
		setClauses[i] = fmt.Sprintf("%s = EXCLUDED.%s", col, col)
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		c.Table,
		strings.Join(c.Columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(c.ConflictKeys, ", "),
		strings.Join(setClauses, ", "),
	)
}
