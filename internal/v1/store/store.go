package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/aria-chat/backend/go/internal/v1/apperr"
	"github.com/aria-chat/backend/go/internal/v1/metrics"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by lookups that found no matching row.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence surface the core facade and lobby/room actors
// depend on. Defined as an interface so tests can substitute an
// in-memory fake without dragging in SQLite.
type Store interface {
	GetRoomByID(ctx context.Context, roomID int64) (*Room, error)
	GetRoomByName(ctx context.Context, name string) (*Room, error)
	CreateRoom(ctx context.Context, name, password string) (*Room, error)

	GetRecentPosts(ctx context.Context, roomID int64, count int) ([]PostAndImage, error)
	CreatePost(ctx context.Context, roomID int64, post *NewPost, image *NewImage) (*PostAndImage, error)
	DeletePost(ctx context.Context, roomID, postID, userID int64, isAdmin bool) (bool, error)

	GetEmotes(ctx context.Context, roomID int64) ([]Emote, error)
	CreateEmote(ctx context.Context, roomID int64, emote *NewEmote) (*Emote, error)
	DeleteEmote(ctx context.Context, roomID, emoteID int64) (bool, error)

	SetRoomContent(ctx context.Context, roomID int64, content string) error
	SetRoomPlaybackState(ctx context.Context, roomID int64, playbackState string) error

	UpdatePostImages(ctx context.Context, hash, ext, tnExt string) error
	UpdateEmoteImages(ctx context.Context, hash, ext string) error

	GenerateUserID(ctx context.Context) (int64, error)

	CreateRefreshToken(ctx context.Context, claims string) (string, error)
	RefreshRefreshToken(ctx context.Context, token string) (*RefreshResult, error)

	// Ping reports whether the store is reachable, for readiness probes.
	Ping(ctx context.Context) error

	Close() error
}

// migrations holds the ordered list of DDL statements that bring the schema
// up to date. Index i corresponds to version i+1; never edit or reorder an
// existing entry, only append.
var migrations = []string{
	// v1 — rooms
	`CREATE TABLE IF NOT EXISTS rooms (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at     TEXT NOT NULL DEFAULT (datetime('now')),
		updated_at     TEXT NOT NULL DEFAULT (datetime('now')),
		name           TEXT NOT NULL UNIQUE,
		password       TEXT NOT NULL,
		content        TEXT NOT NULL DEFAULT '',
		playback_state TEXT NOT NULL DEFAULT '',
		claimed_at     TEXT NOT NULL DEFAULT (datetime('now')),
		expires_at     TEXT
	)`,
	// v2 — posts
	`CREATE TABLE IF NOT EXISTS posts (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		updated_at TEXT NOT NULL DEFAULT (datetime('now')),
		room_id    INTEGER NOT NULL REFERENCES rooms(id),
		name       TEXT NOT NULL DEFAULT '',
		comment    TEXT NOT NULL DEFAULT '',
		ip         TEXT NOT NULL DEFAULT '',
		is_deleted INTEGER NOT NULL DEFAULT 0,
		user_id    INTEGER NOT NULL,
		admin      INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_room ON posts(room_id, id)`,
	// v3 — images
	`CREATE TABLE IF NOT EXISTS images (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		post_id    INTEGER NOT NULL REFERENCES posts(id),
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		updated_at TEXT NOT NULL DEFAULT (datetime('now')),
		filename   TEXT NOT NULL DEFAULT '',
		hash       TEXT NOT NULL DEFAULT '',
		ext        TEXT NOT NULL DEFAULT '',
		tn_ext     TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_images_post ON images(post_id)`,
	`CREATE INDEX IF NOT EXISTS idx_images_hash ON images(hash)`,
	// v4 — emotes
	`CREATE TABLE IF NOT EXISTS emotes (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		updated_at TEXT NOT NULL DEFAULT (datetime('now')),
		room_id    INTEGER NOT NULL REFERENCES rooms(id),
		name       TEXT NOT NULL,
		hash       TEXT NOT NULL DEFAULT '',
		ext        TEXT NOT NULL DEFAULT '',
		UNIQUE(room_id, name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_emotes_hash ON emotes(hash)`,
	// v5 — refresh tokens
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		token      TEXT PRIMARY KEY,
		claims     TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`,
	// v6 — user id sequence (SQLite has no global sequence object; a single
	// counter row stands in for Postgres's user_id_seq)
	`CREATE TABLE IF NOT EXISTS user_id_seq (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		value INTEGER NOT NULL
	)`,
	`INSERT OR IGNORE INTO user_id_seq(id, value) VALUES (1, 0)`,
	// v7 — WAL for concurrent readers
	`PRAGMA journal_mode=WAL`,
}

// SQLiteStore is the embedded-SQLite implementation of Store.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at path and applies any
// pending migrations. Use ":memory:" for ephemeral in-process storage.
func New(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		log.Printf("[store] busy_timeout: %v (non-fatal)", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Ping verifies the database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRow(
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i, stmt := range migrations {
		v := i + 1
		if v <= current {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
		if _, err := s.db.Exec(`INSERT INTO schema_migrations(version) VALUES(?)`, v); err != nil {
			return fmt.Errorf("record migration %d: %w", v, err)
		}
	}
	return nil
}

func scanRoom(row interface{ Scan(...any) error }) (*Room, error) {
	var r Room
	var expiresAt sql.NullString
	var createdAt, updatedAt, claimedAt string
	if err := row.Scan(&r.ID, &createdAt, &updatedAt, &r.Name, &r.Password, &r.Content, &r.PlaybackState, &claimedAt, &expiresAt); err != nil {
		return nil, err
	}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	r.ClaimedAt = parseTime(claimedAt)
	if expiresAt.Valid {
		t := parseTime(expiresAt.String)
		r.ExpiresAt = &t
	}
	return &r, nil
}

func (s *SQLiteStore) GetRoomByID(ctx context.Context, roomID int64) (*Room, error) {
	defer observeStore("get_room_by_id")()
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at, name, password, content, playback_state, claimed_at, expires_at
		 FROM rooms WHERE id = ?`, roomID)
	r, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, "get room by id", err)
	}
	return r, nil
}

func (s *SQLiteStore) GetRoomByName(ctx context.Context, name string) (*Room, error) {
	defer observeStore("get_room_by_name")()
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at, name, password, content, playback_state, claimed_at, expires_at
		 FROM rooms WHERE name = ?`, name)
	r, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, "get room by name", err)
	}
	return r, nil
}

func (s *SQLiteStore) CreateRoom(ctx context.Context, name, password string) (*Room, error) {
	defer observeStore("create_room")()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO rooms(name, password) VALUES (?, ?)`, name, password)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, "create room", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, "create room", err)
	}
	return s.GetRoomByID(ctx, id)
}

// GetRecentPosts returns up to count (capped at 50) of a room's
// non-deleted posts, oldest first, preserving arrival order.
func (s *SQLiteStore) GetRecentPosts(ctx context.Context, roomID int64, count int) ([]PostAndImage, error) {
	defer observeStore("get_recent_posts")()
	if count > 50 {
		count = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.created_at, p.updated_at, p.room_id, p.name, p.comment, p.ip, p.is_deleted, p.user_id, p.admin,
		        i.id, i.created_at, i.updated_at, i.filename, i.hash, i.ext, i.tn_ext
		 FROM (SELECT * FROM posts WHERE room_id = ? AND is_deleted = 0 ORDER BY id DESC LIMIT ?) p
		 LEFT JOIN images i ON i.post_id = p.id
		 ORDER BY p.id ASC`, roomID, count)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, "get recent posts", err)
	}
	defer rows.Close()

	var out []PostAndImage
	for rows.Next() {
		pi, err := scanPostAndImage(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStoreError, "get recent posts", err)
		}
		out = append(out, *pi)
	}
	return out, rows.Err()
}

func scanPostAndImage(rows *sql.Rows) (*PostAndImage, error) {
	var pi PostAndImage
	var createdAt, updatedAt string
	var imgID sql.NullInt64
	var imgCreatedAt, imgUpdatedAt, filename, hash, ext, tnExt sql.NullString
	if err := rows.Scan(
		&pi.Post.ID, &createdAt, &updatedAt, &pi.Post.RoomID, &pi.Post.Name, &pi.Post.Comment,
		&pi.Post.IP, &pi.Post.IsDeleted, &pi.Post.UserID, &pi.Post.Admin,
		&imgID, &imgCreatedAt, &imgUpdatedAt, &filename, &hash, &ext, &tnExt,
	); err != nil {
		return nil, err
	}
	pi.Post.CreatedAt = parseTime(createdAt)
	pi.Post.UpdatedAt = parseTime(updatedAt)
	if imgID.Valid {
		pi.Image = &Image{
			ID:        imgID.Int64,
			PostID:    pi.Post.ID,
			CreatedAt: parseTime(imgCreatedAt.String),
			UpdatedAt: parseTime(imgUpdatedAt.String),
			Filename:  filename.String,
			Hash:      hash.String,
			Ext:       ext.String,
			TnExt:     tnExt.String,
		}
	}
	return &pi, nil
}

func (s *SQLiteStore) CreatePost(ctx context.Context, roomID int64, post *NewPost, image *NewImage) (*PostAndImage, error) {
	defer observeStore("create_post")()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, "create post", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO posts(room_id, name, comment, ip, user_id, admin) VALUES (?, ?, ?, ?, ?, ?)`,
		roomID, post.Name, post.Comment, post.IP, post.UserID, post.Admin)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, "create post", err)
	}
	postID, err := res.LastInsertId()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, "create post", err)
	}

	var img *Image
	if image != nil {
		ires, err := tx.ExecContext(ctx,
			`INSERT INTO images(post_id, filename, hash, ext, tn_ext) VALUES (?, ?, ?, ?, ?)`,
			postID, image.Filename, image.Hash, image.Ext, image.TnExt)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStoreError, "create post image", err)
		}
		imgID, err := ires.LastInsertId()
		if err != nil {
			return nil, apperr.Wrap(apperr.KindStoreError, "create post image", err)
		}
		img = &Image{ID: imgID, PostID: postID, Filename: image.Filename, Hash: image.Hash, Ext: image.Ext, TnExt: image.TnExt}
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, "create post", err)
	}

	return &PostAndImage{
		Post: Post{
			ID: postID, RoomID: roomID, Name: post.Name, Comment: post.Comment,
			IP: post.IP, UserID: post.UserID, Admin: post.Admin,
		},
		Image: img,
	}, nil
}

// DeletePost soft-deletes a post if the caller is its author or a room
// admin. Returns false (no error) when the post does not exist or the
// caller lacks permission.
func (s *SQLiteStore) DeletePost(ctx context.Context, roomID, postID, userID int64, isAdmin bool) (bool, error) {
	defer observeStore("delete_post")()
	q := `UPDATE posts SET is_deleted = 1, updated_at = datetime('now')
	      WHERE id = ? AND room_id = ? AND is_deleted = 0 AND (user_id = ? OR ? = 1)`
	res, err := s.db.ExecContext(ctx, q, postID, roomID, userID, boolToInt(isAdmin))
	if err != nil {
		return false, apperr.Wrap(apperr.KindStoreError, "delete post", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Wrap(apperr.KindStoreError, "delete post", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetEmotes(ctx context.Context, roomID int64) ([]Emote, error) {
	defer observeStore("get_emotes")()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, updated_at, room_id, name, hash, ext FROM emotes WHERE room_id = ? ORDER BY id ASC`, roomID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, "get emotes", err)
	}
	defer rows.Close()

	var out []Emote
	for rows.Next() {
		var e Emote
		var createdAt, updatedAt string
		if err := rows.Scan(&e.ID, &createdAt, &updatedAt, &e.RoomID, &e.Name, &e.Hash, &e.Ext); err != nil {
			return nil, apperr.Wrap(apperr.KindStoreError, "get emotes", err)
		}
		e.CreatedAt = parseTime(createdAt)
		e.UpdatedAt = parseTime(updatedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateEmote(ctx context.Context, roomID int64, emote *NewEmote) (*Emote, error) {
	defer observeStore("create_emote")()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO emotes(room_id, name, hash, ext) VALUES (?, ?, ?, ?)`,
		roomID, emote.Name, emote.Hash, emote.Ext)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, "create emote", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, "create emote", err)
	}
	return &Emote{ID: id, RoomID: roomID, Name: emote.Name, Hash: emote.Hash, Ext: emote.Ext}, nil
}

func (s *SQLiteStore) DeleteEmote(ctx context.Context, roomID, emoteID int64) (bool, error) {
	defer observeStore("delete_emote")()
	res, err := s.db.ExecContext(ctx, `DELETE FROM emotes WHERE id = ? AND room_id = ?`, emoteID, roomID)
	if err != nil {
		return false, apperr.Wrap(apperr.KindStoreError, "delete emote", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Wrap(apperr.KindStoreError, "delete emote", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) SetRoomContent(ctx context.Context, roomID int64, content string) error {
	defer observeStore("set_room_content")()
	_, err := s.db.ExecContext(ctx, `UPDATE rooms SET content = ?, updated_at = datetime('now') WHERE id = ?`, content, roomID)
	if err != nil {
		return apperr.Wrap(apperr.KindStoreError, "set room content", err)
	}
	return nil
}

func (s *SQLiteStore) SetRoomPlaybackState(ctx context.Context, roomID int64, playbackState string) error {
	defer observeStore("set_room_playback_state")()
	_, err := s.db.ExecContext(ctx, `UPDATE rooms SET playback_state = ?, updated_at = datetime('now') WHERE id = ?`, playbackState, roomID)
	if err != nil {
		return apperr.Wrap(apperr.KindStoreError, "set room playback state", err)
	}
	return nil
}

func (s *SQLiteStore) UpdatePostImages(ctx context.Context, hash, ext, tnExt string) error {
	defer observeStore("update_post_images")()
	_, err := s.db.ExecContext(ctx,
		`UPDATE images SET ext = ?, tn_ext = ?, updated_at = datetime('now') WHERE hash = ?`, ext, tnExt, hash)
	if err != nil {
		return apperr.Wrap(apperr.KindStoreError, "update post images", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateEmoteImages(ctx context.Context, hash, ext string) error {
	defer observeStore("update_emote_images")()
	_, err := s.db.ExecContext(ctx,
		`UPDATE emotes SET ext = ?, updated_at = datetime('now') WHERE hash = ?`, ext, hash)
	if err != nil {
		return apperr.Wrap(apperr.KindStoreError, "update emote images", err)
	}
	return nil
}

// GenerateUserID hands out a monotonically increasing pseudonymous user id,
// standing in for the Postgres user_id_seq the original backend used.
func (s *SQLiteStore) GenerateUserID(ctx context.Context) (int64, error) {
	defer observeStore("generate_user_id")()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindStoreError, "generate user id", err)
	}
	defer tx.Rollback()

	var id int64
	if err := tx.QueryRowContext(ctx, `UPDATE user_id_seq SET value = value + 1 WHERE id = 1 RETURNING value`).Scan(&id); err != nil {
		return 0, apperr.Wrap(apperr.KindStoreError, "generate user id", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, apperr.Wrap(apperr.KindStoreError, "generate user id", err)
	}
	return id, nil
}

func (s *SQLiteStore) CreateRefreshToken(ctx context.Context, claims string) (string, error) {
	defer observeStore("create_refresh_token")()
	token := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO refresh_tokens(token, claims) VALUES (?, ?)`, token, claims); err != nil {
		return "", apperr.Wrap(apperr.KindStoreError, "create refresh token", err)
	}
	return token, nil
}

// RefreshRefreshToken atomically rotates a refresh token: the old token is
// invalidated and a new one minted carrying the same claims, in a single
// transaction. Returns ErrNotFound if token is unknown.
func (s *SQLiteStore) RefreshRefreshToken(ctx context.Context, token string) (*RefreshResult, error) {
	defer observeStore("refresh_refresh_token")()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, "refresh token", err)
	}
	defer tx.Rollback()

	var claims string
	err = tx.QueryRowContext(ctx, `SELECT claims FROM refresh_tokens WHERE token = ?`, token).Scan(&claims)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, "refresh token", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = ?`, token); err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, "refresh token", err)
	}

	newToken := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `INSERT INTO refresh_tokens(token, claims) VALUES (?, ?)`, newToken, claims); err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, "refresh token", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Wrap(apperr.KindStoreError, "refresh token", err)
	}

	return &RefreshResult{Token: newToken, Claims: claims}, nil
}

func observeStore(operation string) func() {
	start := time.Now()
	return func() {
		metrics.StoreOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
