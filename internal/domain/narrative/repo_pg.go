package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uwdesk/decisioncore/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type communicationRepoPG struct{ pool *pgxpool.Pool }

func NewCommunicationRepoPG(pool *pgxpool.Pool) CommunicationRepository {
	return &communicationRepoPG{pool: pool}
}

func (r *communicationRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const communicationCols = `id, communication_type, case_reference, subject, status,
	sections, metadata, edit_history, approved_by, approved_at,
	version_id, created_at, updated_at`

func (r *communicationRepoPG) scanCommunication(row pgx.Row) (*Communication, error) {
	var (
		c                    Communication
		sectionsRaw, metaRaw []byte
		editsRaw             []byte
		approvedBy           *string
		approvedAt           *time.Time
		sections             []Section
		edits                []EditRecord
	)
	err := row.Scan(&c.ID, &c.Type, &c.CaseReference, &c.Subject, &c.Status,
		&sectionsRaw, &metaRaw, &editsRaw, &approvedBy, &approvedAt,
		&c.VersionID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(sectionsRaw, &sections); err != nil {
		return nil, fmt.Errorf("decode sections: %w", err)
	}
	if err := json.Unmarshal(metaRaw, &c.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if len(editsRaw) > 0 {
		if err := json.Unmarshal(editsRaw, &edits); err != nil {
			return nil, fmt.Errorf("decode edit history: %w", err)
		}
	}
	if approvedBy != nil {
		c.ApprovedBy = *approvedBy
	}
	c.ApprovedAt = approvedAt
	return Restore(c, sections, edits), nil
}

type encodedState struct {
	sections, metadata, edits []byte
}

func encodeState(c *Communication) (encodedState, error) {
	var (
		out encodedState
		err error
	)
	if out.sections, err = json.Marshal(c.Sections()); err != nil {
		return out, fmt.Errorf("encode sections: %w", err)
	}
	if out.metadata, err = json.Marshal(c.Metadata); err != nil {
		return out, fmt.Errorf("encode metadata: %w", err)
	}
	if out.edits, err = json.Marshal(c.EditHistory()); err != nil {
		return out, fmt.Errorf("encode edit history: %w", err)
	}
	return out, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *communicationRepoPG) Create(ctx context.Context, c *Communication) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	st, err := encodeState(c)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO communication (id, communication_type, case_reference, subject, status,
			sections, metadata, edit_history, approved_by, approved_at,
			version_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		c.ID, c.Type, c.CaseReference, c.Subject, c.Status,
		st.sections, st.metadata, st.edits, nullable(c.ApprovedBy), c.ApprovedAt,
		c.VersionID, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *communicationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Communication, error) {
	return r.scanCommunication(r.conn(ctx).QueryRow(ctx, `SELECT `+communicationCols+` FROM communication WHERE id = $1`, id))
}

func (r *communicationRepoPG) Update(ctx context.Context, c *Communication, expectedVersion int) error {
	st, err := encodeState(c)
	if err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE communication SET status=$2, sections=$3, edit_history=$4,
			approved_by=$5, approved_at=$6, version_id=version_id+1, updated_at=$7
		WHERE id = $1 AND version_id = $8`,
		c.ID, c.Status, st.sections, st.edits,
		nullable(c.ApprovedBy), c.ApprovedAt, c.UpdatedAt, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM communication WHERE id = $1)`, c.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	c.VersionID = expectedVersion + 1
	return nil
}

func (r *communicationRepoPG) List(ctx context.Context, limit, offset int) ([]*Communication, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM communication`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+communicationCols+` FROM communication ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Communication
	for rows.Next() {
		c, err := r.scanCommunication(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}
