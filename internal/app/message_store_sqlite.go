package app

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteMessageStore keeps chat history in a single sqlite database under
// the state directory.
type SQLiteMessageStore struct {
	Root   string
	dbPath string

	mu   sync.Mutex
	db   *sql.DB
	once sync.Once
	err  error
}

func NewSQLiteMessageStore(root string) (*SQLiteMessageStore, error) {
	if strings.TrimSpace(root) == "" {
		root = DefaultStateDir()
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	st := &SQLiteMessageStore{
		Root:   root,
		dbPath: filepath.Join(root, "ollamadash.db"),
	}
	// Initialize eagerly so callers fail fast.
	if err := st.init(); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *SQLiteMessageStore) init() error {
	s.once.Do(func() {
		db, err := sql.Open("sqlite", s.dbPath)
		if err != nil {
			s.err = err
			return
		}
		// Keep sqlite responsive under contention.
		_, _ = db.Exec("PRAGMA busy_timeout = 5000;")
		_, _ = db.Exec("PRAGMA journal_mode = WAL;")
		_, _ = db.Exec("PRAGMA synchronous = NORMAL;")

		schema := []string{
			`CREATE TABLE IF NOT EXISTS messages (
				id TEXT PRIMARY KEY,
				role TEXT NOT NULL,
				content TEXT NOT NULL,
				model_name TEXT NOT NULL,
				created_at_ns INTEGER NOT NULL
			);`,
			`CREATE INDEX IF NOT EXISTS idx_messages_model_created ON messages(model_name, created_at_ns);`,
		}
		for _, stmt := range schema {
			if _, err := db.Exec(stmt); err != nil {
				_ = db.Close()
				s.err = err
				return
			}
		}

		s.db = db
	})
	return s.err
}

func (s *SQLiteMessageStore) dbConn() (*sql.DB, error) {
	if err := s.init(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, errors.New("sqlite store unavailable")
	}
	return db, nil
}

func (s *SQLiteMessageStore) Insert(msg ChatMessage) error {
	if strings.TrimSpace(msg.ID) == "" {
		return errors.New("missing message id")
	}
	db, err := s.dbConn()
	if err != nil {
		return err
	}
	_, err = db.Exec(
		`INSERT OR REPLACE INTO messages (id, role, content, model_name, created_at_ns) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.Role, msg.Content, msg.ModelName, msg.CreatedAt.UnixNano(),
	)
	return err
}

func (s *SQLiteMessageStore) Delete(msg ChatMessage) error {
	db, err := s.dbConn()
	if err != nil {
		return err
	}
	_, err = db.Exec(`DELETE FROM messages WHERE id = ?`, msg.ID)
	return err
}

func (s *SQLiteMessageStore) Fetch(modelName string) ([]ChatMessage, error) {
	db, err := s.dbConn()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(
		`SELECT id, role, content, model_name, created_at_ns FROM messages WHERE model_name = ? ORDER BY created_at_ns ASC`,
		modelName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChatMessage
	for rows.Next() {
		var msg ChatMessage
		var createdNS int64
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.ModelName, &createdNS); err != nil {
			return nil, err
		}
		msg.CreatedAt = time.Unix(0, createdNS)
		out = append(out, msg)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLiteMessageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
