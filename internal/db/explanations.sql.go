package db

import "context"

const createExplanation = `
INSERT INTO explanations (run_id, topic, sociolect, meme_name, explanation, sources)
VALUES (?, ?, ?, ?, ?, ?)
`

// CreateExplanationParams are the columns written by CreateExplanation.
type CreateExplanationParams struct {
	RunID       string
	Topic       string
	Sociolect   string
	MemeName    string
	Explanation string
	Sources     string
}

func (q *Queries) CreateExplanation(ctx context.Context, arg CreateExplanationParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createExplanation,
		arg.RunID,
		arg.Topic,
		arg.Sociolect,
		arg.MemeName,
		arg.Explanation,
		arg.Sources,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const listRecentExplanations = `
SELECT id, run_id, topic, sociolect, meme_name, explanation, sources, created_at
FROM explanations
ORDER BY created_at DESC, id DESC
LIMIT ?
`

func (q *Queries) ListRecentExplanations(ctx context.Context, limit int64) ([]Explanation, error) {
	rows, err := q.db.QueryContext(ctx, listRecentExplanations, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Explanation
	for rows.Next() {
		var i Explanation
		if err := rows.Scan(
			&i.ID,
			&i.RunID,
			&i.Topic,
			&i.Sociolect,
			&i.MemeName,
			&i.Explanation,
			&i.Sources,
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

const countExplanations = `SELECT COUNT(*) FROM explanations`

func (q *Queries) CountExplanations(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countExplanations)
	var count int64
	err := row.Scan(&count)
	return count, err
}
