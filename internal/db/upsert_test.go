package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpsertConfig_SQL_Dollar(t *testing.T) {
	sql := UpsertConfig{
		Table:        "sanction_sources",
		Columns:      []string{"id", "label", "updated_at"},
		ConflictKeys: []string{"id"},
	}.SQL()

	assert.Equal(t,
		"INSERT INTO sanction_sources (id, label, updated_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT (id) DO UPDATE SET label = EXCLUDED.label, updated_at = EXCLUDED.updated_at",
		sql)
}

func TestUpsertConfig_SQL_Question(t *testing.T) {
	sql := UpsertConfig{
		Table:        "source_records",
		Columns:      []string{"source_id", "source_record_id", "content_hash"},
		ConflictKeys: []string{"source_id", "source_record_id"},
		Placeholder:  Question,
	}.SQL()

	assert.Equal(t,
		"INSERT INTO source_records (source_id, source_record_id, content_hash) VALUES (?, ?, ?) "+
			"ON CONFLICT (source_id, source_record_id) DO UPDATE SET content_hash = EXCLUDED.content_hash",
		sql)
}

func TestUpsertConfig_SQL_ExplicitUpdateCols(t *testing.T) {
	sql := UpsertConfig{
		Table:        "kpi_definitions",
		Columns:      []string{"id", "label", "kind", "created_at"},
		ConflictKeys: []string{"id"},
		UpdateCols:   []string{"label", "kind"},
	}.SQL()

	assert.Contains(t, sql, "DO UPDATE SET label = EXCLUDED.label, kind = EXCLUDED.kind")
	assert.NotContains(t, sql, "created_at = EXCLUDED.created_at")
}
