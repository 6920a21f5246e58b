package resultset

import "context"

// TableMetadata describes a table held by a backend.
type TableMetadata struct {
	Name    string
	Columns []ColumnDescriptor
	Rows    int
}

// Backend executes batches and answers with their event streams.
type Backend interface {
	Execute(ctx context.Context, source string) EventSource
	GetTables() []TableMetadata
}
