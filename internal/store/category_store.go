package store

import "context"

type CategoryStore struct {
	db DB
}

type Category struct {
	ID        string  `db:"id"`
	UserID    *string `db:"user_id"`
	Name      string  `db:"name"`
	Color     string  `db:"color"`
	CreatedAt any     `db:"created_at"`
}

type CategoryInput struct {
	ID     string
	UserID *string
	Name   string
	Color  string
}

func NewCategoryStore(db DB) *CategoryStore {
	return &CategoryStore{db: db}
}

// FindVisible looks up a category by normalized (lowercased) name among the
// categories visible to the user: the user's own plus global ones. When both
// scopes match, the user-owned category wins (NULLS LAST keeps the global
// row behind the owned one). Returns sql.ErrNoRows when nothing matches.
func (s *CategoryStore) FindVisible(ctx context.Context, userID, normalizedName string) (Category, error) {
	var row Category
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, name, color, created_at
		FROM categories
		WHERE (user_id = $1 OR user_id IS NULL) AND lower(name) = $2
		ORDER BY user_id NULLS LAST
		LIMIT 1
	`, userID, normalizedName)
	if err != nil {
		return Category{}, err
	}
	return row, nil
}

func (s *CategoryStore) Create(ctx context.Context, input CategoryInput) error {
	query := `
		INSERT INTO categories (id, user_id, name, color)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.db.ExecContext(ctx, query, input.ID, input.UserID, input.Name, input.Color)
	return err
}

func (s *CategoryStore) ListVisible(ctx context.Context, userID string) ([]Category, error) {
	var rows []Category
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, name, color, created_at
		FROM categories
		WHERE user_id = $1 OR user_id IS NULL
		ORDER BY name
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
