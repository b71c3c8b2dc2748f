// Package pgstore implements docstore.Store on PostgreSQL through GORM. All
// collections share one table of JSONB documents keyed by (collection, id).
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/anonto42/ideafeed/backend/internal/docstore"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// document is one row of the documents table
type document struct {
	Collection string `gorm:"primaryKey;size:64"`
	ID         string `gorm:"primaryKey;size:191"`
	Data       []byte `gorm:"type:jsonb;not null"`
}

func (document) TableName() string {
	return "documents"
}

// Store implements docstore.Store for PostgreSQL
type Store struct {
	db    *gorm.DB
	newID func() string
}

// New creates a Store. Open db with TranslateError so duplicate keys map to
// gorm.ErrDuplicatedKey.
func New(db *gorm.DB) *Store {
	return &Store{db: db, newID: uuid.NewString}
}

// Migrate creates the documents table and its containment index.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&document{}); err != nil {
		return fmt.Errorf("migrate documents: %w", err)
	}
	return db.Exec("CREATE INDEX IF NOT EXISTS idx_documents_data ON documents USING gin (data jsonb_path_ops)").Error
}

// Get retrieves a document by id from PostgreSQL
func (s *Store) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	var row document
	err := s.db.WithContext(ctx).Where("collection = ? AND id = ?", collection, id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
		}
		return nil, err
	}
	return row.decode()
}

// Create inserts a new document and fails if the id is already taken
func (s *Store) Create(ctx context.Context, collection, id string, fields docstore.Fields) error {
	row, err := newDocument(collection, id, fields)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrAlreadyExists)
		}
		return err
	}
	return nil
}

// Add inserts a new document under a generated id
func (s *Store) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	id := s.newID()
	if err := s.Create(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

// Set replaces a document, inserting it if needed
func (s *Store) Set(ctx context.Context, collection, id string, fields docstore.Fields) error {
	row, err := newDocument(collection, id, fields)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data"}),
	}).Create(row).Error
}

// Update merges fields into an existing document in one statement
func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	return update(s.db.WithContext(ctx), collection, id, fields)
}

// Delete removes a document. A missing document is not an error.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	return s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&document{}).Error
}

// DeleteExisting removes a document and reports ErrNotFound when no row was
// deleted.
func (s *Store) DeleteExisting(ctx context.Context, collection, id string) error {
	res := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&document{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	return nil
}

// Query runs a JSONB containment query with optional order and limit
func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	tx := s.db.WithContext(ctx).Where("collection = ?", q.Collection)
	if len(q.Filters) > 0 {
		filter, err := containment(q.Filters)
		if err != nil {
			return nil, err
		}
		tx = tx.Where("data @> ?::jsonb", filter)
	}
	if q.OrderBy != "" {
		tx = tx.Order(orderBy(q))
	}
	tx = tx.Order("id")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []document
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	docs := make([]docstore.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := row.decode()
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

// Batch stages writes that commit in one SQL transaction
func (s *Store) Batch() docstore.Batch {
	return &batch{db: s.db}
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type batch struct {
	docstore.Staged
	db *gorm.DB
}

func (b *batch) Commit(ctx context.Context) error {
	if b.Len() == 0 {
		return nil
	}
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, w := range b.Writes {
			switch w.Op {
			case docstore.WriteUpdate:
				if err := update(tx, w.Collection, w.ID, w.Fields); err != nil {
					return err
				}
			case docstore.WriteDelete:
				err := tx.Where("collection = ? AND id = ?", w.Collection, w.ID).Delete(&document{}).Error
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func update(db *gorm.DB, collection, id string, fields docstore.Fields) error {
	expr, args, err := updateExpr(fields)
	if err != nil {
		return err
	}
	res := db.Model(&document{}).
		Where("collection = ? AND id = ?", collection, id).
		Update("data", gorm.Expr(expr, args...))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	return nil
}

// updateExpr builds the new value of the data column: plain fields are merged
// with ||, increments are applied with jsonb_set on the stored number.
func updateExpr(fields docstore.Fields) (string, []any, error) {
	set, inc := docstore.SplitIncrements(fields)

	expr := "data"
	var args []any
	if len(set) > 0 {
		raw, err := json.Marshal(set)
		if err != nil {
			return "", nil, fmt.Errorf("encode fields: %w", err)
		}
		expr = "(" + expr + " || ?::jsonb)"
		args = append(args, string(raw))
	}

	keys := make([]string, 0, len(inc))
	for k := range inc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		expr = "jsonb_set(" + expr + ", ?::text[], to_jsonb(COALESCE((data->>(?::text))::bigint, 0) + ?))"
		args = append(args, "{"+k+"}", k, inc[k])
	}
	return expr, args, nil
}

// containment encodes equality filters as a JSONB object for @>.
func containment(filters []docstore.Filter) (string, error) {
	obj := make(map[string]any, len(filters))
	for _, f := range filters {
		obj[f.Field] = f.Value
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("encode filters: %w", err)
	}
	return string(raw), nil
}

func orderBy(q docstore.Query) clause.OrderBy {
	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	return clause.OrderBy{Expression: clause.Expr{
		SQL:                "data->(?::text) " + dir,
		Vars:               []any{q.OrderBy},
		WithoutParentheses: true,
	}}
}

func newDocument(collection, id string, fields docstore.Fields) (*document, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	return &document{Collection: collection, ID: id, Data: raw}, nil
}

func (d document) decode() (*docstore.Document, error) {
	fields := docstore.Fields{}
	if err := json.Unmarshal(d.Data, &fields); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", d.Collection, d.ID, err)
	}
	return &docstore.Document{ID: d.ID, Fields: fields}, nil
}
