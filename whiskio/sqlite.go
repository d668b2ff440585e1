package whiskio

import (
	"database/sql"
	"fmt"

	"github.com/elyall/whisk-1/whisk"
)

// SessionStore persists an editing session (whisker assignments plus the
// face hint) to SQLite. The driver is registered by the importer, as in:
//
//	import _ "modernc.org/sqlite"
type SessionStore struct {
	db *sql.DB
}

const sessionSchema = `
	CREATE TABLE IF NOT EXISTS whisker_points (
		frame INTEGER NOT NULL,
		traj_id INTEGER NOT NULL,
		idx INTEGER NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		PRIMARY KEY (frame, traj_id, idx)
	);

	CREATE TABLE IF NOT EXISTS session_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
`

// OpenSessionStore opens (creating if needed) the session database at path.
func OpenSessionStore(path string) (*SessionStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	if _, err := db.Exec(sessionSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create session schema: %w", err)
	}
	return &SessionStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

// Save replaces the persisted session with the store's current contents
// in one transaction, so a failed save never leaves a half-written
// session behind. Safe to call from an autosave goroutine: Records()
// snapshots the store under its read lock.
func (s *SessionStore) Save(store *whisk.TrajectoryStore, hint whisk.FaceHint) error {
	records := store.Records()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin session save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM whisker_points`); err != nil {
		return fmt.Errorf("clear whisker points: %w", err)
	}
	insert, err := tx.Prepare(`INSERT INTO whisker_points (frame, traj_id, idx, x, y) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare point insert: %w", err)
	}
	defer insert.Close()
	for _, rec := range records {
		for i, pt := range rec.Points {
			if _, err := insert.Exec(rec.Frame, rec.TrajectoryID, i, pt.X, pt.Y); err != nil {
				return fmt.Errorf("insert point (frame %d, traj %d, idx %d): %w", rec.Frame, rec.TrajectoryID, i, err)
			}
		}
	}

	meta := map[string]string{
		"face_hint":   hint.String(),
		"frame_count": fmt.Sprintf("%d", store.FrameCount()),
	}
	for key, value := range meta {
		if _, err := tx.Exec(
			`INSERT INTO session_meta (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, value,
		); err != nil {
			return fmt.Errorf("store session meta %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session save: %w", err)
	}
	return nil
}

// Load rebuilds a TrajectoryStore and the face hint from the persisted
// session.
func (s *SessionStore) Load() (*whisk.TrajectoryStore, whisk.FaceHint, error) {
	var frameCountStr string
	err := s.db.QueryRow(`SELECT value FROM session_meta WHERE key = 'frame_count'`).Scan(&frameCountStr)
	if err != nil {
		return nil, whisk.FaceUnset, fmt.Errorf("read session frame count: %w", err)
	}
	var frameCount int
	if _, err := fmt.Sscanf(frameCountStr, "%d", &frameCount); err != nil {
		return nil, whisk.FaceUnset, fmt.Errorf("bad session frame count %q: %w", frameCountStr, err)
	}

	hint := whisk.FaceUnset
	var hintStr string
	err = s.db.QueryRow(`SELECT value FROM session_meta WHERE key = 'face_hint'`).Scan(&hintStr)
	switch {
	case err == sql.ErrNoRows:
		// pre-face-hint session, leave unset
	case err != nil:
		return nil, whisk.FaceUnset, fmt.Errorf("read session face hint: %w", err)
	default:
		hint = whisk.ParseFaceHint(hintStr)
	}

	rows, err := s.db.Query(
		`SELECT frame, traj_id, x, y FROM whisker_points ORDER BY frame, traj_id, idx`,
	)
	if err != nil {
		return nil, whisk.FaceUnset, fmt.Errorf("read whisker points: %w", err)
	}
	defer rows.Close()

	store := whisk.NewTrajectoryStore(frameCount)
	var (
		curFrame  = -1
		curTraj   = -1
		curPoints []whisk.Point
	)
	flush := func() error {
		if curFrame < 0 {
			return nil
		}
		seg, err := whisk.NewSegment(curPoints)
		if err != nil {
			return fmt.Errorf("session segment (frame %d, traj %d): %w", curFrame, curTraj, err)
		}
		return store.Assign(curTraj, curFrame, seg)
	}
	for rows.Next() {
		var frame, traj int
		var x, y float64
		if err := rows.Scan(&frame, &traj, &x, &y); err != nil {
			return nil, whisk.FaceUnset, fmt.Errorf("scan whisker point: %w", err)
		}
		if frame != curFrame || traj != curTraj {
			if err := flush(); err != nil {
				return nil, whisk.FaceUnset, err
			}
			curFrame, curTraj = frame, traj
			curPoints = nil
		}
		curPoints = append(curPoints, whisk.Point{X: x, Y: y})
	}
	if err := rows.Err(); err != nil {
		return nil, whisk.FaceUnset, fmt.Errorf("iterate whisker points: %w", err)
	}
	if err := flush(); err != nil {
		return nil, whisk.FaceUnset, err
	}
	return store, hint, nil
}
