package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spec-kit/support-desk/internal/domain"
)

// AnalyticsRepository runs reporting queries over database/sql.
type AnalyticsRepository interface {
	Dashboard(ctx context.Context) (*domain.Dashboard, error)
	RecentRatings(ctx context.Context, limit int) ([]domain.RatedTicket, error)
	UserActivity(ctx context.Context, userID string) (*domain.UserActivity, error)
}

type analyticsRepository struct {
	db *sql.DB
}

// NewAnalyticsRepository builds repository over a *sql.DB (pgx stdlib in production).
func NewAnalyticsRepository(db *sql.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

const (
	statusCountsQuery = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status = 'open'),
               COUNT(*) FILTER (WHERE status = 'in_progress'),
               COUNT(*) FILTER (WHERE status = 'resolved'),
               COUNT(*) FILTER (WHERE status = 'closed')
        FROM tickets`
	categoryBreakdownQuery = `SELECT category, COUNT(*) FROM tickets GROUP BY category ORDER BY COUNT(*) DESC`
	statusBreakdownQuery   = `SELECT status, COUNT(*) FROM tickets GROUP BY status ORDER BY status`
	trendQuery             = `
        SELECT DATE(created_at) AS day, COUNT(*)
        FROM tickets
        WHERE created_at >= NOW() - INTERVAL '30 days'
        GROUP BY day
        ORDER BY day ASC`
	ratingSummaryQuery = `SELECT COALESCE(AVG(rating), 0)::float8, COUNT(rating) FROM tickets WHERE rating IS NOT NULL`
)

func (r *analyticsRepository) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	var dash domain.Dashboard

	s := &dash.Stats
	if err := r.db.QueryRowContext(ctx, statusCountsQuery).Scan(&s.Total, &s.Open, &s.InProgress, &s.Resolved, &s.Closed); err != nil {
		return nil, fmt.Errorf("status counts: %w", err)
	}

	var err error
	if dash.CategoryBreakdown, err = r.buckets(ctx, categoryBreakdownQuery); err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}
	if dash.StatusBreakdown, err = r.buckets(ctx, statusBreakdownQuery); err != nil {
		return nil, fmt.Errorf("status breakdown: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, trendQuery)
	if err != nil {
		return nil, fmt.Errorf("trends: %w", err)
	}
	defer rows.Close()
	dash.Trends = []domain.DailyCount{}
	for rows.Next() {
		var day domain.DailyCount
		if err := rows.Scan(&day.Date, &day.Count); err != nil {
			return nil, fmt.Errorf("trends: %w", err)
		}
		dash.Trends = append(dash.Trends, day)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("trends: %w", err)
	}

	if err := r.db.QueryRowContext(ctx, ratingSummaryQuery).Scan(&dash.Ratings.Average, &dash.Ratings.Total); err != nil {
		return nil, fmt.Errorf("rating summary: %w", err)
	}
	return &dash, nil
}

func (r *analyticsRepository) buckets(ctx context.Context, query string) ([]domain.BucketCount, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.BucketCount{}
	for rows.Next() {
		var b domain.BucketCount
		if err := rows.Scan(&b.Key, &b.Count); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

func (r *analyticsRepository) RecentRatings(ctx context.Context, limit int) ([]domain.RatedTicket, error) {
	const query = `
        SELECT t.id, t.title, t.rating, t.feedback, t.created_at, u.name, u.email
        FROM tickets t
        JOIN users u ON t.user_id = u.id
        WHERE t.rating IS NOT NULL
        ORDER BY t.updated_at DESC
        LIMIT $1`
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.RatedTicket{}
	for rows.Next() {
		var rt domain.RatedTicket
		var feedback sql.NullString
		if err := rows.Scan(&rt.TicketID, &rt.Title, &rt.Rating, &feedback, &rt.CreatedAt, &rt.CustomerName, &rt.CustomerEmail); err != nil {
			return nil, err
		}
		if feedback.Valid {
			rt.Feedback = &feedback.String
		}
		result = append(result, rt)
	}
	return result, rows.Err()
}

func (r *analyticsRepository) UserActivity(ctx context.Context, userID string) (*domain.UserActivity, error) {
	const query = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status = 'open'),
               COUNT(*) FILTER (WHERE status = 'in_progress'),
               COUNT(*) FILTER (WHERE status = 'resolved'),
               COUNT(*) FILTER (WHERE status = 'closed'),
               COUNT(rating)
        FROM tickets WHERE user_id = $1`
	var a domain.UserActivity
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&a.Total, &a.Open, &a.InProgress, &a.Resolved, &a.Closed, &a.Rated); err != nil {
		return nil, err
	}
	return &a, nil
}
