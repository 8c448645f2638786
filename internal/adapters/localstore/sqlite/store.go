package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/viberater/viberater/internal/application/ports"
	"github.com/viberater/viberater/internal/domain/entity"
	"github.com/viberater/viberater/internal/domain/errors"
	"github.com/viberater/viberater/internal/domain/syncop"
	"github.com/viberater/viberater/internal/infrastructure/logging"
)

// Store implements ports.LocalStorePort on top of SQLite.
type Store struct {
	conn   *Connection
	logger *logging.Logger
}

// NewStore creates a Store backed by the given connection.
func NewStore(conn *Connection, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Store{conn: conn, logger: logger}
}

// Init opens the database and applies migrations.
func (s *Store) Init(ctx context.Context) error {
	if err := s.conn.Open(); err != nil {
		return errors.NewError(errors.CodeStorage, "open local store", err)
	}
	s.logger.DebugContext(ctx, "local store ready", "path", s.conn.Path())
	return nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// collectionTable maps a resource to its table name. The set is closed so the
// name can be interpolated into SQL safely.
func collectionTable(collection entity.Resource) (string, error) {
	switch collection {
	case entity.ResourceIdea:
		return "ideas", nil
	case entity.ResourceProject:
		return "projects", nil
	case entity.ResourceTask:
		return "tasks", nil
	}
	return "", errors.NewError(errors.CodeValidation, string(collection), errors.ErrUnknownResource)
}

// GetAll returns every record in the collection.
func (s *Store) GetAll(ctx context.Context, collection entity.Resource) ([]ports.Document, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}
	table, err := collectionTable(collection)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT id, data FROM %s ORDER BY id`, table))
	if err != nil {
		return nil, errors.NewError(errors.CodeStorage, "list "+table, err)
	}
	defer rows.Close()

	var docs []ports.Document
	for rows.Next() {
		var doc ports.Document
		var data string
		if err := rows.Scan(&doc.ID, &data); err != nil {
			return nil, errors.NewError(errors.CodeStorage, "scan "+table, err)
		}
		doc.Data = []byte(data)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewError(errors.CodeStorage, "iterate "+table, err)
	}
	return docs, nil
}

// Get returns the record with the given id.
func (s *Store) Get(ctx context.Context, collection entity.Resource, id string) (ports.Document, error) {
	db, err := s.db()
	if err != nil {
		return ports.Document{}, err
	}
	table, err := collectionTable(collection)
	if err != nil {
		return ports.Document{}, err
	}

	var data string
	err = db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT data FROM %s WHERE id = ?`, table), id,
	).Scan(&data)
	if stderrors.Is(err, sql.ErrNoRows) {
		return ports.Document{}, errors.NewError(errors.CodeNotFound, table+"/"+id, errors.ErrNotFound)
	}
	if err != nil {
		return ports.Document{}, errors.NewError(errors.CodeStorage, "get "+table, err)
	}
	return ports.Document{ID: id, Data: []byte(data)}, nil
}

// Put upserts a record.
func (s *Store) Put(ctx context.Context, collection entity.Resource, doc ports.Document) error {
	db, err := s.db()
	if err != nil {
		return err
	}
	table, err := collectionTable(collection)
	if err != nil {
		return err
	}
	if doc.ID == "" {
		return errors.NewError(errors.CodeValidation, "document missing id", nil)
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP
	`, table), doc.ID, string(doc.Data))
	if err != nil {
		return errors.NewError(errors.CodeStorage, "put "+table, err)
	}
	return nil
}

// Delete removes a record. Missing records are not an error.
func (s *Store) Delete(ctx context.Context, collection entity.Resource, id string) error {
	db, err := s.db()
	if err != nil {
		return err
	}
	table, err := collectionTable(collection)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id,
	); err != nil {
		return errors.NewError(errors.CodeStorage, "delete "+table, err)
	}
	return nil
}

// Enqueue appends an operation to the sync queue.
func (s *Store) Enqueue(ctx context.Context, op syncop.Operation) (syncop.Operation, error) {
	db, err := s.db()
	if err != nil {
		return syncop.Operation{}, err
	}
	if err := op.Validate(); err != nil {
		return syncop.Operation{}, err
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO sync_queue (resource, method, entity_id, payload, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, string(op.Resource), string(op.Method), op.EntityID, string(op.Payload), op.Timestamp)
	if err != nil {
		return syncop.Operation{}, errors.NewError(errors.CodeStorage, "enqueue operation", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return syncop.Operation{}, errors.NewError(errors.CodeStorage, "enqueue operation id", err)
	}
	op.ID = id

	s.logger.DebugContext(ctx, "operation queued",
		"operation_id", op.ID,
		"resource", op.Resource,
		"method", op.Method,
		"entity_id", op.EntityID,
	)
	return op, nil
}

const opColumns = `id, resource, method, entity_id, payload, timestamp, synced, attempts, last_error, dead_lettered`

// PendingOps returns unsynced operations in insertion order.
func (s *Store) PendingOps(ctx context.Context) ([]syncop.Operation, error) {
	return s.queryOps(ctx, `
		SELECT `+opColumns+` FROM sync_queue
		WHERE synced = 0 AND dead_lettered = 0
		ORDER BY id
	`)
}

// DeadLetteredOps returns terminally rejected operations in insertion order.
func (s *Store) DeadLetteredOps(ctx context.Context) ([]syncop.Operation, error) {
	return s.queryOps(ctx, `
		SELECT `+opColumns+` FROM sync_queue
		WHERE dead_lettered = 1
		ORDER BY id
	`)
}

func (s *Store) queryOps(ctx context.Context, query string) ([]syncop.Operation, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewError(errors.CodeStorage, "query sync queue", err)
	}
	defer rows.Close()

	var ops []syncop.Operation
	for rows.Next() {
		var op syncop.Operation
		var resource, method, payload string
		if err := rows.Scan(
			&op.ID, &resource, &method, &op.EntityID, &payload,
			&op.Timestamp, &op.Synced, &op.Attempts, &op.LastError, &op.DeadLettered,
		); err != nil {
			return nil, errors.NewError(errors.CodeStorage, "scan sync queue", err)
		}
		op.Resource = entity.Resource(resource)
		op.Method = syncop.Method(method)
		if payload != "" {
			op.Payload = []byte(payload)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewError(errors.CodeStorage, "iterate sync queue", err)
	}
	return ops, nil
}

// MarkSynced records a successful replay.
func (s *Store) MarkSynced(ctx context.Context, opID int64) error {
	return s.updateOp(ctx, opID, `UPDATE sync_queue SET synced = 1, last_error = '' WHERE id = ?`)
}

// MarkFailed records a failed replay attempt, keeping the operation queued.
func (s *Store) MarkFailed(ctx context.Context, opID int64, cause string) error {
	db, err := s.db()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
		UPDATE sync_queue SET attempts = attempts + 1, last_error = ? WHERE id = ?
	`, cause, opID)
	if err != nil {
		return errors.NewError(errors.CodeStorage, "mark operation failed", err)
	}
	return s.requireRow(res, opID)
}

// MarkDeadLettered excludes a terminally rejected operation from future drains.
func (s *Store) MarkDeadLettered(ctx context.Context, opID int64, cause string) error {
	db, err := s.db()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
		UPDATE sync_queue SET dead_lettered = 1, attempts = attempts + 1, last_error = ? WHERE id = ?
	`, cause, opID)
	if err != nil {
		return errors.NewError(errors.CodeStorage, "dead-letter operation", err)
	}
	return s.requireRow(res, opID)
}

// RewriteEntityID repoints pending operations from a provisional id to the
// server-issued id. Payload references are rewritten as a quoted JSON string
// so a task queued under a provisional project follows the project's new id.
func (s *Store) RewriteEntityID(ctx context.Context, oldID, newID string) error {
	db, err := s.db()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `
		UPDATE sync_queue
		SET entity_id = CASE WHEN entity_id = ? THEN ? ELSE entity_id END,
		    payload = REPLACE(COALESCE(payload, ''), ?, ?)
		WHERE synced = 0
	`, oldID, newID, `"`+oldID+`"`, `"`+newID+`"`); err != nil {
		return errors.NewError(errors.CodeStorage, "rewrite entity id", err)
	}
	return nil
}

func (s *Store) updateOp(ctx context.Context, opID int64, query string) error {
	db, err := s.db()
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, query, opID)
	if err != nil {
		return errors.NewError(errors.CodeStorage, "update operation", err)
	}
	return s.requireRow(res, opID)
}

func (s *Store) requireRow(res sql.Result, opID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewError(errors.CodeStorage, "rows affected", err)
	}
	if n == 0 {
		return errors.NewError(errors.CodeNotFound, fmt.Sprintf("operation %d", opID), errors.ErrNotFound)
	}
	return nil
}

func (s *Store) db() (*sql.DB, error) {
	db, err := s.conn.DB()
	if err != nil {
		return nil, errors.NewError(errors.CodeStorage, "local store", errors.ErrStoreClosed)
	}
	return db, nil
}
