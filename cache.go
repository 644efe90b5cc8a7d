package main

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// The local cache mirrors sessions and fetched/sent messages into
// ~/.codechat/cache.db. It warms the timeline while a network fetch is in
// flight and feeds the export subcommand; the backend stays authoritative.

func openCacheDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db %q: %w", path, err)
	}
	return db, nil
}

func ensureCacheSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			project_id INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT NOT NULL,
			session_id INTEGER NOT NULL,
			sender_type TEXT NOT NULL,
			content TEXT NOT NULL,
			model_used TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (session_id, id)
		);
		CREATE INDEX IF NOT EXISTS idx_messages_session
			ON messages (session_id, position);
	`)
	if err != nil {
		return fmt.Errorf("ensure cache schema: %w", err)
	}
	return nil
}

func cacheSession(db *sql.DB, sess session) error {
	_, err := db.Exec(`
		INSERT INTO sessions (id, title, project_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			project_id = excluded.project_id,
			updated_at = excluded.updated_at
	`, sess.id, sess.title, sess.projectID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("cache session %d: %w", sess.id, err)
	}
	return nil
}

func cacheSessions(db *sql.DB, sessions []session) error {
	for _, sess := range sessions {
		if err := cacheSession(db, sess); err != nil {
			return err
		}
	}
	return nil
}

// cacheMessages replaces the cached timeline for one session. Position is
// the insertion order of the in-memory sequence, which is the ordering
// contract for messages.
func cacheMessages(db *sql.DB, sessionID int64, messages []chatMessage) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin message cache tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear cached messages for session %d: %w", sessionID, err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for position, msg := range messages {
		if _, err := tx.Exec(`
			INSERT INTO messages (id, session_id, sender_type, content, model_used, created_at, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, msg.id, sessionID, msg.senderType, msg.content, msg.modelUsed, now, position); err != nil {
			return fmt.Errorf("cache message %q: %w", msg.id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit message cache tx: %w", err)
	}
	return nil
}

func loadCachedMessages(db *sql.DB, sessionID int64) ([]chatMessage, error) {
	rows, err := db.Query(`
		SELECT id, sender_type, content, model_used
		FROM messages
		WHERE session_id = ?
		ORDER BY position ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query cached messages for session %d: %w", sessionID, err)
	}
	defer rows.Close()

	var messages []chatMessage
	for rows.Next() {
		msg := chatMessage{sessionID: sessionID, status: deliveryConfirmed}
		if err := rows.Scan(&msg.id, &msg.senderType, &msg.content, &msg.modelUsed); err != nil {
			return nil, fmt.Errorf("scan cached message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cached messages: %w", err)
	}
	return messages, nil
}

func loadCachedSession(db *sql.DB, sessionID int64) (session, bool, error) {
	var sess session
	err := db.QueryRow(`
		SELECT id, title, project_id FROM sessions WHERE id = ?
	`, sessionID).Scan(&sess.id, &sess.title, &sess.projectID)
	if err == sql.ErrNoRows {
		return session{}, false, nil
	}
	if err != nil {
		return session{}, false, fmt.Errorf("load cached session %d: %w", sessionID, err)
	}
	return sess, true, nil
}

func dropCachedSession(db *sql.DB, sessionID int64) error {
	if _, err := db.Exec(`DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("drop cached messages for session %d: %w", sessionID, err)
	}
	if _, err := db.Exec(`DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("drop cached session %d: %w", sessionID, err)
	}
	return nil
}

// dropCachedProject cascades like the in-memory stores: every cached session
// under the project goes, timelines included.
func dropCachedProject(db *sql.DB, projectID int64) error {
	if _, err := db.Exec(`
		DELETE FROM messages WHERE session_id IN
			(SELECT id FROM sessions WHERE project_id = ?)
	`, projectID); err != nil {
		return fmt.Errorf("drop cached project %d messages: %w", projectID, err)
	}
	if _, err := db.Exec(`DELETE FROM sessions WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("drop cached project %d sessions: %w", projectID, err)
	}
	return nil
}
