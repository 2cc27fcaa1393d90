package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/familyhub/internal/docstore"
	"github.com/lalith-99/familyhub/internal/feed"
	"go.uber.org/zap"
)

// uniqueViolation is the SQLSTATE Postgres reports for a duplicate key.
const uniqueViolation = "23505"

// Filter field names are inlined into SQL so the expression indexes on
// data->>'familyId' and data->>'inviteCode' can be used.
var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DocumentStore is a docstore.Store over the documents table. Each batch
// runs in one transaction; documents touched by an update are locked for
// the duration so concurrent array transforms never lose each other's
// elements.
type DocumentStore struct {
	pool   *pgxpool.Pool
	pub    feed.Publisher
	logger *zap.Logger
	now    func() time.Time
}

func NewDocumentStore(pool *pgxpool.Pool, pub feed.Publisher, logger *zap.Logger) *DocumentStore {
	return &DocumentStore{pool: pool, pub: pub, logger: logger, now: time.Now}
}

func (s *DocumentStore) Get(ctx context.Context, collection, key string) (*docstore.Document, error) {
	query := `
		SELECT data, version, created_at, updated_at
		FROM documents
		WHERE collection = $1 AND key = $2`

	doc := docstore.Document{Collection: collection, Key: key}
	var raw []byte
	err := s.pool.QueryRow(ctx, query, collection, key).Scan(
		&raw,
		&doc.Version,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s/%s: %w", collection, key, docstore.ErrNotFound)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	if err := json.Unmarshal(raw, &doc.Data); err != nil {
		return nil, fmt.Errorf("decode document %s/%s: %w", collection, key, err)
	}
	return &doc, nil
}

func (s *DocumentStore) Set(ctx context.Context, collection, key string, data docstore.Fields) error {
	return s.Batch().Set(collection, key, data).Commit(ctx)
}

func (s *DocumentStore) Update(ctx context.Context, collection, key string, data docstore.Fields) error {
	return s.Batch().Update(collection, key, data).Commit(ctx)
}

func (s *DocumentStore) Delete(ctx context.Context, collection, key string) error {
	return s.Batch().Delete(collection, key).Commit(ctx)
}

func (s *DocumentStore) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT key, data, version, created_at, updated_at
		FROM documents
		WHERE collection = $1`)
	args := []any{q.Collection}

	for _, f := range q.Filters {
		if !fieldName.MatchString(f.Field) {
			return nil, fmt.Errorf("%w: bad filter field %q", docstore.ErrInvalidDocument, f.Field)
		}
		if str, ok := f.Value.(string); ok {
			args = append(args, str)
			fmt.Fprintf(&sb, " AND data->>'%s' = $%d AND jsonb_typeof(data->'%s') = 'string'", f.Field, len(args), f.Field)
			continue
		}
		// Missing fields compare as JSON null, matching the in-memory store.
		raw, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: filter %q: %v", docstore.ErrInvalidDocument, f.Field, err)
		}
		args = append(args, string(raw))
		fmt.Fprintf(&sb, " AND COALESCE(data->'%s', 'null'::jsonb) = $%d::jsonb", f.Field, len(args))
	}

	sb.WriteString(" ORDER BY key")
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := make([]docstore.Document, 0)
	for rows.Next() {
		doc := docstore.Document{Collection: q.Collection}
		var raw []byte
		if err := rows.Scan(&doc.Key, &raw, &doc.Version, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if err := json.Unmarshal(raw, &doc.Data); err != nil {
			return nil, fmt.Errorf("decode document %s/%s: %w", q.Collection, doc.Key, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	return docs, nil
}

func (s *DocumentStore) Batch() *docstore.Batch {
	return docstore.NewBatch(s.commit)
}

func (s *DocumentStore) commit(ctx context.Context, writes []docstore.Write) error {
	now := s.now().UTC()

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, w := range writes {
			if err := applyWrite(ctx, tx, w, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.pub != nil {
		if err := s.pub.Publish(context.WithoutCancel(ctx), docstore.Changes(writes, now)...); err != nil {
			s.logger.Warn("failed to publish document changes",
				zap.Int("writes", len(writes)),
				zap.Error(err),
			)
		}
	}
	return nil
}

func applyWrite(ctx context.Context, tx pgx.Tx, w docstore.Write, now time.Time) error {
	switch w.Op {
	case feed.OpCreate:
		data, err := encode(nil, w, now)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO documents (collection, key, data, version, created_at, updated_at)
			VALUES ($1, $2, $3::jsonb, 1, $4, $4)`,
			w.Collection, w.Key, data, now)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("%s/%s: %w", w.Collection, w.Key, docstore.ErrAlreadyExists)
			}
			return fmt.Errorf("create document: %w", err)
		}
		return nil

	case feed.OpSet:
		data, err := encode(nil, w, now)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO documents (collection, key, data, version, created_at, updated_at)
			VALUES ($1, $2, $3::jsonb, 1, $4, $4)
			ON CONFLICT (collection, key) DO UPDATE
			SET data = EXCLUDED.data,
			    version = documents.version + 1,
			    updated_at = EXCLUDED.updated_at`,
			w.Collection, w.Key, data, now)
		if err != nil {
			return fmt.Errorf("set document: %w", err)
		}
		return nil

	case feed.OpUpdate:
		base, exists, err := lockDocument(ctx, tx, w)
		if err != nil {
			return err
		}
		if err := w.Check(base, exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%s/%s: %w", w.Collection, w.Key, docstore.ErrNotFound)
		}
		data, err := encode(base, w, now)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE documents
			SET data = $3::jsonb, version = version + 1, updated_at = $4
			WHERE collection = $1 AND key = $2`,
			w.Collection, w.Key, data, now)
		if err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		return nil

	case feed.OpDelete:
		if len(w.Expect) > 0 {
			base, exists, err := lockDocument(ctx, tx, w)
			if err != nil {
				return err
			}
			if err := w.Check(base, exists); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND key = $2`, w.Collection, w.Key)
		if err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unknown write op %q", w.Op)
	}
}

// lockDocument reads the target of w and holds its row lock until the
// transaction ends, so conditions and transforms see a stable document.
func lockDocument(ctx context.Context, tx pgx.Tx, w docstore.Write) (docstore.Fields, bool, error) {
	var raw []byte
	err := tx.QueryRow(ctx, `
		SELECT data FROM documents
		WHERE collection = $1 AND key = $2
		FOR UPDATE`,
		w.Collection, w.Key).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("lock document: %w", err)
	}
	var data docstore.Fields
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, false, fmt.Errorf("decode document %s/%s: %w", w.Collection, w.Key, err)
	}
	return data, true, nil
}

func encode(base docstore.Fields, w docstore.Write, now time.Time) (string, error) {
	data, err := docstore.ApplyFields(base, w.Data, now)
	if err != nil {
		return "", fmt.Errorf("%s/%s: %w", w.Collection, w.Key, err)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode document %s/%s: %w", w.Collection, w.Key, err)
	}
	return string(raw), nil
}
