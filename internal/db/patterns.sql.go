package db

import (
	"context"
	"database/sql"
)

const createPattern = `
INSERT INTO language_patterns (sociolect, text, text_hash, category, context, vector_id)
VALUES (?, ?, ?, ?, ?, ?)
`

// CreatePatternParams are the columns written by CreatePattern.
type CreatePatternParams struct {
	Sociolect string
	Text      string
	TextHash  string
	Category  string
	Context   string
	VectorID  sql.NullInt64
}

func (q *Queries) CreatePattern(ctx context.Context, arg CreatePatternParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createPattern,
		arg.Sociolect,
		arg.Text,
		arg.TextHash,
		arg.Category,
		arg.Context,
		arg.VectorID,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const getPatternByHash = `
SELECT id, sociolect, text, text_hash, category, context, vector_id, created_at
FROM language_patterns
WHERE sociolect = ? AND text_hash = ?
`

// GetPatternByHashParams identifies a pattern inside one partition.
type GetPatternByHashParams struct {
	Sociolect string
	TextHash  string
}

func (q *Queries) GetPatternByHash(ctx context.Context, arg GetPatternByHashParams) (LanguagePattern, error) {
	row := q.db.QueryRowContext(ctx, getPatternByHash, arg.Sociolect, arg.TextHash)
	var i LanguagePattern
	err := row.Scan(
		&i.ID,
		&i.Sociolect,
		&i.Text,
		&i.TextHash,
		&i.Category,
		&i.Context,
		&i.VectorID,
		&i.CreatedAt,
	)
	return i, err
}

const listPatternsBySociolect = `
SELECT id, sociolect, text, text_hash, category, context, vector_id, created_at
FROM language_patterns
WHERE sociolect = ?
ORDER BY id
`

func (q *Queries) ListPatternsBySociolect(ctx context.Context, sociolect string) ([]LanguagePattern, error) {
	rows, err := q.db.QueryContext(ctx, listPatternsBySociolect, sociolect)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LanguagePattern
	for rows.Next() {
		var i LanguagePattern
		if err := rows.Scan(
			&i.ID,
			&i.Sociolect,
			&i.Text,
			&i.TextHash,
			&i.Category,
			&i.Context,
			&i.VectorID,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countPatterns = `SELECT COUNT(*) FROM language_patterns`

func (q *Queries) CountPatterns(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countPatterns)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countPatternsBySociolect = `
SELECT sociolect, COUNT(*) AS count
FROM language_patterns
GROUP BY sociolect
ORDER BY sociolect
`

func (q *Queries) CountPatternsBySociolect(ctx context.Context) ([]CountBySociolectRow, error) {
	rows, err := q.db.QueryContext(ctx, countPatternsBySociolect)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CountBySociolectRow
	for rows.Next() {
		var i CountBySociolectRow
		if err := rows.Scan(&i.Sociolect, &i.Count); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const setPatternVectorID = `UPDATE language_patterns SET vector_id = ? WHERE id = ?`

// SetPatternVectorIDParams links a catalog row to its stored vector.
type SetPatternVectorIDParams struct {
	VectorID sql.NullInt64
	ID       int64
}

func (q *Queries) SetPatternVectorID(ctx context.Context, arg SetPatternVectorIDParams) error {
	_, err := q.db.ExecContext(ctx, setPatternVectorID, arg.VectorID, arg.ID)
	return err
}

const deletePatternsBySociolect = `DELETE FROM language_patterns WHERE sociolect = ?`

func (q *Queries) DeletePatternsBySociolect(ctx context.Context, sociolect string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deletePatternsBySociolect, sociolect)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
