package store

import (
	"context"
	"path/filepath"
	"testing"
)

const projectsSeed = `
CREATE TABLE projects (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	status VARCHAR(20),
	budget REAL,
	due DATE
);
INSERT INTO projects (id, name, status, budget, due) VALUES
	(1, 'Alpha Plant', '進行中', 1200.5, '2025-01-15'),
	(2, 'beta line', '完了', 300, '2024-11-30'),
	(3, 'ÄPFEL Depot', '進行中', NULL, NULL),
	(4, 'Straße 9', '保留', 50.25, '2025-03-01'),
	(5, '100% done_ok', '完了', 10, '2024-01-01');
`

// createTestStore creates a writable store in a temp dir seeded with projects.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Seed(context.Background(), projectsSeed); err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}
	return s
}
