// FilePath: internal/repository/sqlstore/sqlstore.collection.go
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/sauqing9/api-sitras/internal/database"
	"github.com/sauqing9/api-sitras/internal/errors"
	"github.com/sauqing9/api-sitras/internal/models"
	"github.com/sauqing9/api-sitras/internal/repository"
)

type docPtr[T any] interface {
	*T
	models.Document
}

// row is the stored form of a document: envelope columns plus the JSON body
type row struct {
	ID        string `db:"id"`
	CreatedAt int64  `db:"created_at"`
	Doc       string `db:"doc"`
}

// Table stores one entity type as JSON documents
type Table[T any, PT docPtr[T]] struct {
	SQLBaseRepo
	name   string
	prefix string
	entity string
	flag   func(*T) bool
	now    func() time.Time
}

func newTable[T any, PT docPtr[T]](db database.DB, name, prefix, entity string) *Table[T, PT] {
	return &Table[T, PT]{
		SQLBaseRepo: SQLBaseRepo{db: db},
		name:        name,
		prefix:      prefix,
		entity:      entity,
		now:         time.Now,
	}
}

func (t *Table[T, PT]) Insert(ctx context.Context, doc *T) error {
	meta := PT(doc).Meta()
	repository.Stamp(meta, t.prefix, t.now())

	body, err := json.Marshal(doc)
	if err != nil {
		return errors.NewInternalError("failed to encode "+t.entity, err)
	}
	flagged := 0
	if t.flag != nil && t.flag(doc) {
		flagged = 1
	}

	query := `INSERT INTO ` + t.name + ` (id, created_at, flagged, doc) VALUES (?, ?, ?, ?)`
	if _, err := t.db.GetDB().ExecContext(ctx, t.db.GetDB().Rebind(query), meta.ID, meta.Timestamp.UnixMilli(), flagged, string(body)); err != nil {
		return errors.NewDatabaseError("failed to store "+t.entity, err)
	}
	return nil
}

func (t *Table[T, PT]) Get(ctx context.Context, id string) (*T, error) {
	var r row
	query := `SELECT id, created_at, doc FROM ` + t.name + ` WHERE id = ?`

	err := t.db.GetDB().GetContext(ctx, &r, t.db.GetDB().Rebind(query), id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError(t.entity+" not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get "+t.entity, err)
	}
	return t.decode(r)
}

func (t *Table[T, PT]) Latest(ctx context.Context) (*T, error) {
	return t.first(ctx, "")
}

func (t *Table[T, PT]) Recent(ctx context.Context, limit int) ([]*T, error) {
	rows := []row{}
	query := `SELECT id, created_at, doc FROM ` + t.name + ` ORDER BY created_at DESC, seq DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	if err := t.db.GetDB().SelectContext(ctx, &rows, t.db.GetDB().Rebind(query), args...); err != nil {
		return nil, errors.NewDatabaseError("failed to list "+t.entity, err)
	}

	docs := make([]*T, 0, len(rows))
	for _, r := range rows {
		doc, err := t.decode(r)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (t *Table[T, PT]) Delete(ctx context.Context, id string) error {
	rows, err := t.execAffected(ctx, `DELETE FROM `+t.name+` WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.NewNotFoundError(t.entity+" not found", nil)
	}
	return nil
}

func (t *Table[T, PT]) DeleteAll(ctx context.Context) (int64, error) {
	return t.execAffected(ctx, `DELETE FROM `+t.name)
}

func (t *Table[T, PT]) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return t.execAffected(ctx, `DELETE FROM `+t.name+` WHERE created_at < ?`, before.UnixMilli())
}

func (t *Table[T, PT]) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := t.db.GetDB().GetContext(ctx, &n, `SELECT COUNT(*) FROM `+t.name); err != nil {
		return 0, errors.NewDatabaseError("failed to count "+t.entity, err)
	}
	return n, nil
}

// first returns the most recent document matching an optional extra condition
func (t *Table[T, PT]) first(ctx context.Context, where string) (*T, error) {
	var r row
	query := `SELECT id, created_at, doc FROM ` + t.name + where + ` ORDER BY created_at DESC, seq DESC LIMIT 1`

	err := t.db.GetDB().GetContext(ctx, &r, t.db.GetDB().Rebind(query))
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("no "+t.entity+" found", err)
		}
		return nil, errors.NewDatabaseError("failed to get latest "+t.entity, err)
	}
	return t.decode(r)
}

func (t *Table[T, PT]) decode(r row) (*T, error) {
	doc := new(T)
	if err := json.Unmarshal([]byte(r.Doc), doc); err != nil {
		return nil, errors.NewDatabaseError("failed to decode "+t.entity, err)
	}
	meta := PT(doc).Meta()
	meta.ID = r.ID
	meta.Timestamp = time.UnixMilli(r.CreatedAt).UTC()
	return doc, nil
}

// ManualTable adds the extracted-values lookup to the manual data table
type ManualTable struct {
	*Table[models.ManualData, *models.ManualData]
}

func (t *ManualTable) LatestWithExtracted(ctx context.Context) (*models.ManualData, error) {
	return t.first(ctx, ` WHERE flagged = 1`)
}

var _ repository.ManualDataRepository = (*ManualTable)(nil)
