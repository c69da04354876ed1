// internal/database/game.go
package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/tambola/internal/models"
	"github.com/sirupsen/logrus"
)

const uniqueViolation = "23505"

// GameRepository stores game documents in the "games" table. Timestamps live in
// their own columns so the store hands them back as pgtype.Timestamptz; everything
// else is kept in the jsonb doc column.
type GameRepository struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
}

func NewGameRepository(pool *pgxpool.Pool, logger *logrus.Logger) *GameRepository {
	return &GameRepository{pool: pool, logger: logger}
}

// InsertGame writes a single game document. A reused id yields models.ErrDuplicateGame.
func (r *GameRepository) InsertGame(ctx context.Context, doc models.Document) error {
	row, err := splitDocument(doc)
	if err != nil {
		return err
	}

	q := `
		INSERT INTO games (id, host_id, status, created_at, start_time, doc)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	err = pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			row.id, row.hostID, row.status,
			row.createdAt, row.startTime, row.payload,
		)
		return execErr
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", models.ErrDuplicateGame, row.id)
		}
		return fmt.Errorf("failed to insert game: %w", err)
	}
	return nil
}

// ListGames returns the documents matching q. Rows whose payload is not a JSON
// object are logged and left out.
func (r *GameRepository) ListGames(ctx context.Context, q models.GameQuery) ([]models.Document, error) {
	sql, args, err := buildListQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		var (
			id                   string
			createdAt, startTime pgtype.Timestamptz
			payload              []byte
		)
		if err := rows.Scan(&id, &createdAt, &startTime, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan game row: %w", err)
		}
		doc, err := mergeDocument(id, payload, createdAt, startTime)
		if err != nil {
			r.logger.WithFields(logrus.Fields{
				"game_id": id,
				"error":   err,
			}).Warn("skipping game row with malformed payload")
			continue
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read game rows: %w", err)
	}
	return docs, nil
}

func buildListQuery(q models.GameQuery) (string, []any, error) {
	if q.OrderBy != "" && q.OrderBy != models.OrderByCreatedAt {
		return "", nil, fmt.Errorf("unsupported ordering %q", q.OrderBy)
	}

	sql := `SELECT id, created_at, start_time, doc FROM games`
	var args []any
	if q.Status != "" {
		args = append(args, string(q.Status))
		sql += ` WHERE status = $1`
	}
	if q.Descending {
		sql += ` ORDER BY created_at DESC`
	} else {
		sql += ` ORDER BY created_at ASC`
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	return sql, args, nil
}

type gameRow struct {
	id        string
	hostID    string
	status    string
	createdAt pgtype.Timestamptz
	startTime pgtype.Timestamptz
	payload   []byte
}

// splitDocument pulls the indexed columns out of doc and encodes the rest as JSON.
func splitDocument(doc models.Document) (gameRow, error) {
	var row gameRow
	var ok bool

	if row.id, ok = doc[models.FieldID].(string); !ok || row.id == "" {
		return row, errors.New("game document has no id")
	}
	if row.hostID, ok = doc[models.FieldHostID].(string); !ok || row.hostID == "" {
		return row, fmt.Errorf("game %s has no host id", row.id)
	}
	if row.status, ok = doc[models.FieldStatus].(string); !ok || row.status == "" {
		return row, fmt.Errorf("game %s has no status", row.id)
	}

	var err error
	if row.createdAt, err = timestampColumn(doc[models.FieldCreatedAt]); err != nil || !row.createdAt.Valid {
		return row, fmt.Errorf("game %s has no valid createdAt: %v", row.id, err)
	}
	if row.startTime, err = timestampColumn(doc[models.FieldStartTime]); err != nil {
		return row, fmt.Errorf("game %s startTime: %w", row.id, err)
	}

	rest := make(models.Document, len(doc))
	for k, v := range doc {
		if k == models.FieldCreatedAt || k == models.FieldStartTime {
			continue
		}
		rest[k] = v
	}
	row.payload, err = json.Marshal(rest)
	if err != nil {
		return row, fmt.Errorf("failed to marshal game %s: %w", row.id, err)
	}
	return row, nil
}

// mergeDocument decodes a stored payload and puts the timestamp columns back.
func mergeDocument(id string, payload []byte, createdAt, startTime pgtype.Timestamptz) (models.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var doc models.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if doc == nil {
		return nil, errors.New("decode payload: null document")
	}
	if _, ok := doc[models.FieldID]; !ok {
		doc[models.FieldID] = id
	}
	doc[models.FieldCreatedAt] = createdAt
	doc[models.FieldStartTime] = startTime
	return doc, nil
}

func timestampColumn(v any) (pgtype.Timestamptz, error) {
	switch t := v.(type) {
	case nil:
		return pgtype.Timestamptz{}, nil
	case pgtype.Timestamptz:
		return t, nil
	case time.Time:
		if t.IsZero() {
			return pgtype.Timestamptz{}, nil
		}
		return pgtype.Timestamptz{Time: t, Valid: true}, nil
	}
	return pgtype.Timestamptz{}, fmt.Errorf("unsupported timestamp type %T", v)
}
