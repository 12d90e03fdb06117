// chapter_repository.go implements ChapterRepository. None of its writes run in a
// transaction: creation reads the sibling count and inserts in two statements,
// and reordering issues one UPDATE per chapter.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sharebook/sharebook/internal/db/models"
)

// ChapterRepository handles chapter database operations
type ChapterRepository struct {
	db *sql.DB
}

// NewChapterRepository creates a new ChapterRepository
func NewChapterRepository(db *sql.DB) *ChapterRepository {
	return &ChapterRepository{db: db}
}

const chapterColumns = `id, project_id, title, content, video_url, order_index, created_at, updated_at`

func scanChapter(row interface{ Scan(...any) error }) (*models.Chapter, error) {
	c := &models.Chapter{}
	err := row.Scan(
		&c.ID,
		&c.ProjectID,
		&c.Title,
		&c.Content,
		&c.VideoURL,
		&c.OrderIndex,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CountByProject returns the number of chapters in a project
func (r *ChapterRepository) CountByProject(ctx context.Context, projectID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chapters WHERE project_id = $1`, projectID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count chapters: %w", err)
	}
	return n, nil
}

// Create inserts a chapter with the OrderIndex already set by the caller
func (r *ChapterRepository) Create(ctx context.Context, c *models.Chapter) error {
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt

	query := `
		INSERT INTO chapters (id, project_id, title, content, video_url, order_index, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.ProjectID, c.Title, c.Content, c.VideoURL, c.OrderIndex, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create chapter: %w", err)
	}
	return nil
}

// GetByID retrieves a chapter by ID
func (r *ChapterRepository) GetByID(ctx context.Context, id string) (*models.Chapter, error) {
	query := `SELECT ` + chapterColumns + ` FROM chapters WHERE id = $1`
	c, err := scanChapter(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chapter: %w", err)
	}
	return c, nil
}

// ListByProject returns a project's chapters ordered by order_index, then created_at
func (r *ChapterRepository) ListByProject(ctx context.Context, projectID string) ([]*models.Chapter, error) {
	query := `SELECT ` + chapterColumns + `
		FROM chapters
		WHERE project_id = $1
		ORDER BY order_index ASC, created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	defer rows.Close()

	chapters := make([]*models.Chapter, 0)
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, err
		}
		chapters = append(chapters, c)
	}
	return chapters, rows.Err()
}

// Update saves title, content and video URL
func (r *ChapterRepository) Update(ctx context.Context, c *models.Chapter) error {
	c.UpdatedAt = time.Now()
	query := `UPDATE chapters SET title = $2, content = $3, video_url = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, c.ID, c.Title, c.Content, c.VideoURL, c.UpdatedAt); err != nil {
		return fmt.Errorf("failed to update chapter: %w", err)
	}
	return nil
}

// SetOrderIndex writes one chapter's position. projectID scopes the update so a
// foreign chapter id is silently ignored.
func (r *ChapterRepository) SetOrderIndex(ctx context.Context, projectID, id string, index int) error {
	query := `UPDATE chapters SET order_index = $3, updated_at = $4 WHERE id = $1 AND project_id = $2`
	if _, err := r.db.ExecContext(ctx, query, id, projectID, index, time.Now()); err != nil {
		return fmt.Errorf("failed to reorder chapter: %w", err)
	}
	return nil
}

// Delete removes a chapter. Remaining order_index values are left as-is.
func (r *ChapterRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM chapters WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete chapter: %w", err)
	}
	return nil
}
