package engine

import (
	"task-manager-api/internal/metadata"
)

func col(name string, t metadata.SemanticType) metadata.ColumnMetadata {
	return metadata.ColumnMetadata{Name: name, Type: t}
}

// testSchema mirrors the migrated users and tasks tables.
func testSchema() *metadata.Schema {
	return metadata.NewSchema(map[string][]metadata.ColumnMetadata{
		"users": {
			col("id", metadata.TypeInteger),
			col("name", metadata.TypeString),
			col("email", metadata.TypeString),
			col("email_verified_at", metadata.TypeDatetime),
			col("password", metadata.TypeString),
			col("remember_token", metadata.TypeString),
			col("admin", metadata.TypeBoolean),
			col("created_at", metadata.TypeDatetime),
			col("updated_at", metadata.TypeDatetime),
		},
		"tasks": {
			col("id", metadata.TypeInteger),
			col("user_id", metadata.TypeInteger),
			col("title", metadata.TypeString),
			col("description", metadata.TypeText),
			col("due_date", metadata.TypeDate),
			col("created_at", metadata.TypeDatetime),
			col("updated_at", metadata.TypeDatetime),
		},
	})
}
