package migrations

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func getTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping migration integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	return pool
}

func runSQL(t *testing.T, pool *pgxpool.Pool, filename string) {
	t.Helper()
	sql, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err = pool.Exec(ctx, string(sql))
	if err != nil {
		t.Fatalf("failed to execute %s: %v", filename, err)
	}
}

func tableExists(t *testing.T, pool *pgxpool.Pool, table string) bool {
	t.Helper()
	var exists bool
	err := pool.QueryRow(context.Background(),
		"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)", table,
	).Scan(&exists)
	if err != nil {
		t.Fatalf("failed to check table %s: %v", table, err)
	}
	return exists
}

func TestMigration_UpCreatesContentHashesTable(t *testing.T) {
	pool := getTestPool(t)
	defer pool.Close()

	runSQL(t, pool, "001_content_hashes.up.sql")

	if !tableExists(t, pool, "content_hashes") {
		t.Error("content_hashes table does not exist after up migration")
	}
}

func TestMigration_UpIsIdempotent(t *testing.T) {
	pool := getTestPool(t)
	defer pool.Close()

	runSQL(t, pool, "001_content_hashes.up.sql")
	runSQL(t, pool, "001_content_hashes.up.sql")
}

func TestMigration_DownAndUpCycle(t *testing.T) {
	pool := getTestPool(t)
	defer pool.Close()

	runSQL(t, pool, "001_content_hashes.down.sql")
	runSQL(t, pool, "001_content_hashes.up.sql")

	if !tableExists(t, pool, "content_hashes") {
		t.Error("content_hashes table does not exist after down+up cycle")
	}
}

func TestMigration_HashColumnIsPrimaryKey(t *testing.T) {
	pool := getTestPool(t)
	defer pool.Close()

	runSQL(t, pool, "001_content_hashes.up.sql")

	var dataType string
	err := pool.QueryRow(context.Background(), `
		SELECT udt_name FROM information_schema.columns
		WHERE table_name = 'content_hashes' AND column_name = 'hash'
	`).Scan(&dataType)
	if err != nil {
		t.Fatalf("failed to check hash column: %v", err)
	}
	if dataType != "bytea" {
		t.Errorf("hash column type = %q, want %q", dataType, "bytea")
	}

	var isPK bool
	err = pool.QueryRow(context.Background(), `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
			  ON tc.constraint_name = kcu.constraint_name AND tc.table_name = kcu.table_name
			WHERE tc.table_name = 'content_hashes' AND tc.constraint_type = 'PRIMARY KEY'
			  AND kcu.column_name = 'hash'
		)
	`).Scan(&isPK)
	if err != nil {
		t.Fatalf("failed to check hash primary key: %v", err)
	}
	if !isPK {
		t.Error("hash column is not the primary key of content_hashes")
	}
}
