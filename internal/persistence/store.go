// Package persistence is the Postgres-backed adapter for streamer records,
// field credentials, and live-snapshot bookkeeping. API keys are never
// stored in plaintext, only their SHA-256 digest (see hashKey).
package persistence

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"broadcastd/internal/hub"
	"broadcastd/internal/relay"
	"broadcastd/pkg/cache"
)

// recordCacheTTL bounds how long a streamer record is cached before a fresh
// DB read, covering reconnect storms without serving stale admin edits for
// long.
const recordCacheTTL = 15 * time.Second

// ErrNotFound is returned when a streamer lookup matches no row.
var ErrNotFound = errors.New("streamer not found")

// StreamerConfig is the JSON blob stored alongside a streamer row, holding
// RTMP destinations and any future per-streamer tunables.
type StreamerConfig struct {
	StreamDestinations []DestinationConfig `json:"stream_destinations"`
}

// DestinationConfig is one configured RTMP push target as persisted.
type DestinationConfig struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Transmux bool   `json:"transmux"`
	Enabled  bool   `json:"enabled"`
}

// Streamer is the full persisted row, including the credential digest.
type Streamer struct {
	ID            string
	Name          string
	Email         string
	AvatarURL     string
	Color         string
	IsCrown       bool
	Socials       []string
	APIKeyDigest  string
	Config        StreamerConfig
	Approved      bool
	CreatedAt     time.Time
}

// Store is the Postgres-backed persistence adapter.
type Store struct {
	db          *sql.DB
	autoApprove bool
	records     *cache.Cache
}

// New constructs a Store over an already-connected *sql.DB (see
// pkg/database.Connect).
func New(db *sql.DB, autoApprove bool) *Store {
	return &Store{
		db:          db,
		autoApprove: autoApprove,
		records:     cache.New(cache.Options{TTL: recordCacheTTL}, cache.MetricsHooks{}),
	}
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func generateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return "bd_" + hex.EncodeToString(buf), nil
}

// CreateStreamer registers a new streamer and returns it plus its plaintext
// API key (shown exactly once, never persisted or logged again).
func (s *Store) CreateStreamer(ctx context.Context, name, email, avatarURL, color string, socials []string) (Streamer, string, error) {
	id := uuid.NewString()
	apiKey, err := generateAPIKey()
	if err != nil {
		return Streamer{}, "", err
	}
	digest := hashKey(apiKey)
	now := time.Now().UTC()
	socialsJSON, _ := json.Marshal(socials)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO streamers (id, name, email, avatar_url, color, socials, api_key_digest, approved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, name, email, avatarURL, color, socialsJSON, digest, s.autoApprove, now,
	)
	if err != nil {
		return Streamer{}, "", fmt.Errorf("insert streamer: %w", err)
	}

	return Streamer{
		ID: id, Name: name, Email: email, AvatarURL: avatarURL, Color: color,
		Socials: socials, APIKeyDigest: digest, Approved: s.autoApprove, CreatedAt: now,
	}, apiKey, nil
}

// ValidateFieldCredential satisfies hub.Store: checks the presented API key
// digest against the row for streamerID, distinguishing an unknown/wrong
// credential from a correct-but-unapproved one so the caller can choose
// between close codes 4001 and 4003.
func (s *Store) ValidateFieldCredential(ctx context.Context, streamerID, apiKey string) (hub.CredentialStatus, error) {
	digest := hashKey(apiKey)
	var approved bool
	err := s.db.QueryRowContext(ctx,
		`SELECT approved FROM streamers WHERE id = $1 AND api_key_digest = $2`,
		streamerID, digest,
	).Scan(&approved)
	if errors.Is(err, sql.ErrNoRows) {
		return hub.CredentialInvalid, nil
	}
	if err != nil {
		return hub.CredentialInvalid, fmt.Errorf("validate field credential: %w", err)
	}
	if !approved {
		return hub.CredentialUnapproved, nil
	}
	return hub.CredentialValid, nil
}

// GetStreamerRecord satisfies hub.Store: fetches metadata needed to bring a
// field connection live. Cached briefly (recordCacheTTL) since a field
// agent's reconnect storm would otherwise hit Postgres once per attempt.
func (s *Store) GetStreamerRecord(ctx context.Context, streamerID string) (hub.StreamerRecord, error) {
	val, _, err := s.records.Get(ctx, streamerID, func(ctx context.Context, key string) (interface{}, bool, error) {
		row, err := s.getByID(ctx, key)
		if err != nil {
			return nil, false, err
		}
		destinations := make([]relay.Destination, 0, len(row.Config.StreamDestinations))
		for _, d := range row.Config.StreamDestinations {
			destinations = append(destinations, relay.Destination{
				Name: d.Name, URL: d.URL, Transmux: d.Transmux, Enabled: d.Enabled,
			})
		}
		record := hub.StreamerRecord{
			ID: row.ID, Name: row.Name, AvatarURL: row.AvatarURL, Color: row.Color,
			IsCrown: row.IsCrown, Socials: row.Socials, Destinations: destinations,
		}
		return record, true, nil
	})
	if err != nil {
		return hub.StreamerRecord{}, err
	}
	return val.(hub.StreamerRecord), nil
}

// DeleteLiveSnapshot satisfies hub.Store. Live presence is tracked only
// in-memory by the hub; this is a no-op hook kept for symmetry with the
// persisted-snapshot design some deployments may add.
func (s *Store) DeleteLiveSnapshot(ctx context.Context, streamerID string) error {
	return nil
}

func (s *Store) getByID(ctx context.Context, id string) (Streamer, error) {
	var row Streamer
	var socialsJSON, configJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, avatar_url, color, is_crown, socials, config, approved, created_at
		FROM streamers WHERE id = $1`, id,
	).Scan(&row.ID, &row.Name, &row.Email, &row.AvatarURL, &row.Color, &row.IsCrown, &socialsJSON, &configJSON, &row.Approved, &row.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Streamer{}, ErrNotFound
	}
	if err != nil {
		return Streamer{}, fmt.Errorf("get streamer %s: %w", id, err)
	}
	_ = json.Unmarshal(socialsJSON, &row.Socials)
	_ = json.Unmarshal(configJSON, &row.Config)
	return row, nil
}

// ListStreamers returns every streamer row, optionally filtered to approved
// only.
func (s *Store) ListStreamers(ctx context.Context, approvedOnly bool) ([]Streamer, error) {
	query := `SELECT id, name, email, avatar_url, color, is_crown, socials, config, approved, created_at FROM streamers`
	if approvedOnly {
		query += ` WHERE approved = true`
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list streamers: %w", err)
	}
	defer rows.Close()

	var out []Streamer
	for rows.Next() {
		var row Streamer
		var socialsJSON, configJSON []byte
		if err := rows.Scan(&row.ID, &row.Name, &row.Email, &row.AvatarURL, &row.Color, &row.IsCrown, &socialsJSON, &configJSON, &row.Approved, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan streamer row: %w", err)
		}
		_ = json.Unmarshal(socialsJSON, &row.Socials)
		_ = json.Unmarshal(configJSON, &row.Config)
		out = append(out, row)
	}
	return out, rows.Err()
}

// ApproveStreamer marks a pending streamer as approved.
func (s *Store) ApproveStreamer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE streamers SET approved = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("approve streamer %s: %w", id, err)
	}
	s.records.Delete(id)
	return mustAffectOne(res, id)
}

// SetCrown sets or clears the is_crown flag on a streamer row.
func (s *Store) SetCrown(ctx context.Context, id string, crowned bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE streamers SET is_crown = $1 WHERE id = $2`, crowned, id)
	if err != nil {
		return fmt.Errorf("set crown %s: %w", id, err)
	}
	s.records.Delete(id)
	return mustAffectOne(res, id)
}

// DeleteStreamer permanently removes a streamer row.
func (s *Store) DeleteStreamer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM streamers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete streamer %s: %w", id, err)
	}
	s.records.Delete(id)
	return mustAffectOne(res, id)
}

// RotateCredential issues a fresh API key for id, invalidating the old one,
// supplementing the original's admin surface (§11).
func (s *Store) RotateCredential(ctx context.Context, id string) (string, error) {
	apiKey, err := generateAPIKey()
	if err != nil {
		return "", err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE streamers SET api_key_digest = $1 WHERE id = $2`, hashKey(apiKey), id)
	if err != nil {
		return "", fmt.Errorf("rotate credential %s: %w", id, err)
	}
	if err := mustAffectOne(res, id); err != nil {
		return "", err
	}
	return apiKey, nil
}

func mustAffectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
