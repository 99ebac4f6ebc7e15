package database

import (
	stdsql "database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/paradyne-ai/callcore/pkg/database"
)

// NewTestClient creates a test database client in a schema of its own.
// In CI (when CI_DATABASE_URL is set): connects to the external PostgreSQL
// service container. In local dev: uses a shared testcontainer started once
// per package. Schema drop and connection close happen via t.Cleanup.
func NewTestClient(t *testing.T) *database.Client {
	t.Helper()

	baseConnStr := getOrCreateSharedDatabase(t)
	schemaName := GenerateSchemaName(t)
	createSchema(t, baseConnStr, schemaName)

	connStrWithSchema := AddSearchPathToConnString(baseConnStr, schemaName)
	db, err := stdsql.Open("pgx", connStrWithSchema)
	require.NoError(t, err)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	require.NoError(t, database.RunMigrations(db, "test"))

	dropSchemaCleanup(t, baseConnStr, schemaName)
	t.Cleanup(func() { _ = db.Close() })

	return database.NewClientFromDB(db)
}

// NewSharedTestDB creates one schema shared by several clients. Cross-pool
// tests (NOTIFY/LISTEN delivery, scheduler lease races across replicas)
// need independent connection pools over the same data.
type SharedTestDB struct {
	connStrWithSchema string
	baseConnStr       string
	schemaName        string
}

// NewSharedTestDB creates the shared schema and runs migrations once.
func NewSharedTestDB(t *testing.T) *SharedTestDB {
	t.Helper()

	baseConnStr := getOrCreateSharedDatabase(t)
	schemaName := GenerateSchemaName(t)
	createSchema(t, baseConnStr, schemaName)

	connStrWithSchema := AddSearchPathToConnString(baseConnStr, schemaName)
	db, err := stdsql.Open("pgx", connStrWithSchema)
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(db, "test"))
	require.NoError(t, db.Close())

	// LIFO cleanup order: clients registered later close before the drop.
	dropSchemaCleanup(t, baseConnStr, schemaName)

	return &SharedTestDB{
		connStrWithSchema: connStrWithSchema,
		baseConnStr:       baseConnStr,
		schemaName:        schemaName,
	}
}

// NewClient creates an independent *database.Client backed by a fresh
// connection pool to the shared schema.
func (s *SharedTestDB) NewClient(t *testing.T) *database.Client {
	t.Helper()

	db, err := stdsql.Open("pgx", s.connStrWithSchema)
	require.NoError(t, err)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	t.Cleanup(func() { _ = db.Close() })

	return database.NewClientFromDB(db)
}

// ConnString returns the schema-scoped connection string for components that
// open dedicated connections (the notify listener).
func (s *SharedTestDB) ConnString() string {
	return s.connStrWithSchema
}
