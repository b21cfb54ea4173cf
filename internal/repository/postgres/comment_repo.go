// internal/repository/postgres/comment_repo.go
package postgres

import (
	"context"
	"fmt"

	"crm-service/internal/domain/lead"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CommentRepository stores lead comments. There is no update or delete.
type CommentRepository struct {
	db *pgxpool.Pool
}

func NewCommentRepository(db *pgxpool.Pool) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Create(ctx context.Context, c *lead.Comment) error {
	query := `
		INSERT INTO lead_comments (lead_id, party_id, author_id, title, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query, c.LeadID, c.PartyID, c.AuthorID, c.Title, c.Body).
		Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// ListByLead returns a lead's comments in creation order.
func (r *CommentRepository) ListByLead(ctx context.Context, leadID int64) ([]lead.Comment, error) {
	query := `
		SELECT c.id, c.lead_id, c.party_id, c.author_id,
		       COALESCE(NULLIF(up.full_name, ''), i.email, ''),
		       c.title, c.body, c.created_at
		FROM lead_comments c
		JOIN auth_identities i ON i.id = c.author_id
		LEFT JOIN user_profiles up ON up.identity_id = c.author_id
		WHERE c.lead_id = $1
		ORDER BY c.created_at, c.id
	`

	rows, err := r.db.Query(ctx, query, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []lead.Comment{}
	for rows.Next() {
		var c lead.Comment
		if err := rows.Scan(&c.ID, &c.LeadID, &c.PartyID, &c.AuthorID, &c.AuthorName, &c.Title, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
