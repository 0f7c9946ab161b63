package recordstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// PostgresStore keeps each record table in a PostgreSQL table of the same
// name. Every table has a row_id primary key and a seq column that fixes
// table order; the remaining columns follow the schema header.
type PostgresStore struct {
	db queryable
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: pool}
}

// Header reads the live column list so that a table altered outside the
// application is reported as it really is.
func (p *PostgresStore) Header(ctx context.Context, table Table) ([]string, error) {
	if _, err := SchemaFor(table); err != nil {
		return nil, err
	}
	rows, err := p.db.Query(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`, string(table))
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", table, err)
	}
	defer rows.Close()

	var header []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan header of %s: %w", table, err)
		}
		if name == "row_id" || name == "seq" {
			continue
		}
		header = append(header, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate header of %s: %w", table, err)
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: %s has no columns", ErrUnknownTable, table)
	}
	return header, nil
}

func (p *PostgresStore) FetchAll(ctx context.Context, table Table) ([]Row, error) {
	s, err := SchemaFor(table)
	if err != nil {
		return nil, err
	}

	query := `SELECT row_id, ` + strings.Join(s.Columns, ", ") + ` FROM ` + string(table) + ` ORDER BY seq`
	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", table, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var id uuid.UUID
		vals := make([]string, len(s.Columns))
		dest := make([]interface{}, 0, len(vals)+1)
		dest = append(dest, &id)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}

		values := make(map[string]string, len(s.Columns))
		for i, col := range s.Columns {
			values[col] = vals[i]
		}
		out = append(out, Row{ID: id, Position: len(out) + HeaderOffset, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}

func (p *PostgresStore) AppendRow(ctx context.Context, table Table, values []string) (Row, error) {
	s, err := SchemaFor(table)
	if err != nil {
		return Row{}, err
	}
	padded, err := padValues(s.Columns, values)
	if err != nil {
		return Row{}, err
	}

	id := uuid.New()
	args := make([]interface{}, 0, len(padded)+1)
	args = append(args, id)
	placeholders := make([]string, 0, len(padded)+1)
	placeholders = append(placeholders, "$1")
	for i, v := range padded {
		args = append(args, v)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
	}

	query := `INSERT INTO ` + string(table) + ` (row_id, ` + strings.Join(s.Columns, ", ") + `)
		VALUES (` + strings.Join(placeholders, ", ") + `) RETURNING seq`

	var seq int64
	if err := p.db.QueryRow(ctx, query, args...).Scan(&seq); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Row{}, fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		}
		return Row{}, fmt.Errorf("append to %s: %w", table, err)
	}

	var before int
	if err := p.db.QueryRow(ctx, `SELECT COUNT(*) FROM `+string(table)+` WHERE seq < $1`, seq).Scan(&before); err != nil {
		return Row{}, fmt.Errorf("locate appended row in %s: %w", table, err)
	}

	row := Row{ID: id, Position: before + HeaderOffset, Values: make(map[string]string, len(s.Columns))}
	for i, col := range s.Columns {
		row.Values[col] = padded[i]
	}
	return row, nil
}

func (p *PostgresStore) UpdateCell(ctx context.Context, table Table, id uuid.UUID, column, value string) error {
	s, err := SchemaFor(table)
	if err != nil {
		return err
	}
	idx, err := ColumnIndex(s.Columns, column)
	if err != nil {
		return fmt.Errorf("%w: %s", err, column)
	}

	tag, err := p.db.Exec(ctx,
		`UPDATE `+string(table)+` SET `+s.Columns[idx-1]+` = $1 WHERE row_id = $2`, value, id)
	if err != nil {
		return fmt.Errorf("update %s.%s: %w", table, s.Columns[idx-1], err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrRowNotFound, id)
	}
	return nil
}

// NextID advances the table counter to max(counter, row count) + 1 in a
// single statement, so concurrent callers never receive the same value.
func (p *PostgresStore) NextID(ctx context.Context, table Table) (int, error) {
	if _, err := SchemaFor(table); err != nil {
		return 0, err
	}
	var next int
	err := p.db.QueryRow(ctx, `
		INSERT INTO id_counters (table_name, value)
		VALUES ($1, (SELECT COUNT(*) FROM `+string(table)+`) + 1)
		ON CONFLICT (table_name) DO UPDATE
			SET value = GREATEST(id_counters.value, EXCLUDED.value - 1) + 1
		RETURNING value`, string(table)).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next id for %s: %w", table, err)
	}
	return next, nil
}
