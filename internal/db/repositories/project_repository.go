// project_repository.go implements ProjectRepository: project CRUD, owner
// listings, and the paginated public explore query.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sharebook/sharebook/internal/db/models"
)

// ProjectRepository handles project database operations
type ProjectRepository struct {
	db *sql.DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, user_id, title, description, cover_image, visibility, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (*models.Project, error) {
	p := &models.Project{}
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Title,
		&p.Description,
		&p.CoverImage,
		&p.Visibility,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func scanProjects(rows *sql.Rows) ([]*models.Project, error) {
	defer rows.Close()
	projects := make([]*models.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Create inserts a new project
func (r *ProjectRepository) Create(ctx context.Context, p *models.Project) error {
	p.ID = uuid.New().String()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt

	query := `
		INSERT INTO projects (id, user_id, title, description, cover_image, visibility, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.UserID, p.Title, p.Description, p.CoverImage, p.Visibility, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// GetByID retrieves a project by ID
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	p, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// ListByUser returns every project owned by userID, most recently updated first
func (r *ProjectRepository) ListByUser(ctx context.Context, userID string) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE user_id = $1 ORDER BY updated_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return scanProjects(rows)
}

// ListPublicByUser returns up to limit public projects of userID for profile pages
func (r *ProjectRepository) ListPublicByUser(ctx context.Context, userID string, limit int) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + `
		FROM projects
		WHERE user_id = $1 AND visibility = 'public'
		ORDER BY updated_at DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list public projects: %w", err)
	}
	return scanProjects(rows)
}

// SearchPublic returns a page of public projects whose title or description
// matches search (case-insensitive), plus the total match count.
func (r *ProjectRepository) SearchPublic(ctx context.Context, search string, limit, offset int) ([]*models.Project, int, error) {
	where := `WHERE visibility = 'public'`
	args := []interface{}{}
	if search != "" {
		where += ` AND (title ILIKE $1 OR description ILIKE $1)`
		args = append(args, "%"+search+"%")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count public projects: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM projects %s ORDER BY updated_at DESC LIMIT $%d OFFSET $%d`,
		projectColumns, where, n+1, n+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search public projects: %w", err)
	}
	projects, err := scanProjects(rows)
	if err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

// Update saves title and description
func (r *ProjectRepository) Update(ctx context.Context, p *models.Project) error {
	p.UpdatedAt = time.Now()
	query := `UPDATE projects SET title = $2, description = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, p.ID, p.Title, p.Description, p.UpdatedAt); err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return nil
}

// UpdateVisibility sets the visibility column
func (r *ProjectRepository) UpdateVisibility(ctx context.Context, id, visibility string) error {
	query := `UPDATE projects SET visibility = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, visibility, time.Now()); err != nil {
		return fmt.Errorf("failed to update project visibility: %w", err)
	}
	return nil
}

// UpdateCover sets the cover image URL
func (r *ProjectRepository) UpdateCover(ctx context.Context, id, coverURL string) error {
	query := `UPDATE projects SET cover_image = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, coverURL, time.Now()); err != nil {
		return fmt.Errorf("failed to update project cover: %w", err)
	}
	return nil
}

// Touch bumps updated_at, used when a chapter changes
func (r *ProjectRepository) Touch(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE projects SET updated_at = $2 WHERE id = $1`, id, time.Now()); err != nil {
		return fmt.Errorf("failed to touch project: %w", err)
	}
	return nil
}

// Delete removes a project; chapters are removed by ON DELETE CASCADE
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}
