package services

import (
	"context"
	"database/sql"
	"errors"
	"hash/fnv"
	"strings"

	"github.com/google/uuid"

	"ledgersync/internal/db"
	"ledgersync/internal/store"
)

const fallbackCategoryName = "Uncategorized"

// Fixed palette for lazily created categories. The color is picked by
// hashing the normalized name so the same label always gets the same color.
var categoryPalette = []string{
	"#e74c3c", "#e67e22", "#f1c40f", "#27ae60", "#16a085",
	"#3498db", "#9b59b6", "#34495e", "#95a5a6", "#d35400",
}

type CategoryStore interface {
	FindVisible(ctx context.Context, userID, normalizedName string) (store.Category, error)
	Create(ctx context.Context, input store.CategoryInput) error
}

// CategoryResolver maps provider category labels to local category ids,
// creating user-owned categories on demand.
type CategoryResolver struct {
	categories CategoryStore
}

func NewCategoryResolver(categories CategoryStore) *CategoryResolver {
	return &CategoryResolver{categories: categories}
}

// Resolve returns the id of the category visible to the user matching the
// label case-insensitively; a user-owned match wins over a global one. When
// nothing matches, a new user-owned category is created.
func (r *CategoryResolver) Resolve(ctx context.Context, userID, label string) (string, error) {
	name := strings.TrimSpace(label)
	if name == "" {
		name = fallbackCategoryName
	}
	normalized := strings.ToLower(name)

	category, err := r.categories.FindVisible(ctx, userID, normalized)
	if err == nil {
		return category.ID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	categoryID := uuid.NewString()
	owner := userID
	createErr := r.categories.Create(ctx, store.CategoryInput{
		ID:     categoryID,
		UserID: &owner,
		Name:   name,
		Color:  paletteColor(normalized),
	})
	if createErr == nil {
		return categoryID, nil
	}
	if db.IsUniqueViolation(createErr) {
		// A concurrent sync created the category between lookup and insert.
		category, err := r.categories.FindVisible(ctx, userID, normalized)
		if err != nil {
			return "", err
		}
		return category.ID, nil
	}
	return "", createErr
}

func paletteColor(normalizedName string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalizedName))
	return categoryPalette[int(h.Sum32())%len(categoryPalette)]
}
