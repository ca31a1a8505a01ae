// Package export writes the merged snapshot into a SQLite database.
package export

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	_ "modernc.org/sqlite"

	"github.com/collegelist/aicte/internal/catalog"
	"github.com/collegelist/aicte/internal/rows"
	"github.com/collegelist/aicte/internal/snapshot"
	"github.com/collegelist/aicte/pkg/store"
)

//go:embed schema.sql
var Schema string

var tracer = otel.Tracer("internal/export")

const insertInstitution = `INSERT INTO institutions
	(id, name, university, state, district, address, institution_type, programmes_count, raw)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// OpenSQLite opens the database file at path, creating it when missing.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// ":memory:" databases are private to one connection.
	db.SetMaxOpenConns(1)
	return db, nil
}

// SQLite replaces the institutions table of db with the snapshot stored under
// from, in one transaction, and returns the number of rows written.
func SQLite(ctx context.Context, db *sql.DB, st *store.Store, from string) (int, error) {
	ctx, span := tracer.Start(ctx, "SQLite")
	defer span.End()
	span.SetAttributes(attribute.String("from", from))

	recs, err := snapshot.Load(ctx, st, from)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	n, err := replace(ctx, db, recs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	slog.InfoContext(ctx, "exported snapshot to sqlite", "from", from, "rows", n)
	return n, nil
}

func replace(ctx context.Context, db *sql.DB, recs []rows.Record) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, Schema); err != nil {
		return 0, fmt.Errorf("create schema: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertInstitution)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range recs {
		raw, err := store.Encode(rec)
		if err != nil {
			return 0, fmt.Errorf("encode record %d: %w", i, err)
		}
		sum := catalog.Summarize(rec)
		_, err = stmt.ExecContext(ctx,
			nullable(sum.ID),
			nullable(sum.Name),
			nullable(sum.University),
			nullable(sum.State),
			nullable(sum.District),
			text(rec["address"]),
			text(rec["institution_type"]),
			sum.ProgrammesCount,
			string(raw),
		)
		if err != nil {
			return 0, fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(recs), nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func text(v any) sql.NullString {
	s := catalog.String(v)
	return sql.NullString{String: s, Valid: s != ""}
}
