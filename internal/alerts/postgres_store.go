package alerts

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/mohamedkhairy/coin-alerts/internal/config"
	"github.com/mohamedkhairy/coin-alerts/internal/models"
	"github.com/mohamedkhairy/coin-alerts/pkg/logger"
)

// PostgresStore is a PostgreSQL-backed implementation of Store
type PostgresStore struct {
	db       *sql.DB
	dbConfig config.DatabaseConfig
}

// NewPostgresStore creates a new database-backed alert store
func NewPostgresStore(dbConfig config.DatabaseConfig) (*PostgresStore, error) {
	// Build connection string
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.Database,
		dbConfig.SSLMode,
	)

	// Open database connection
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(dbConfig.MaxConnections)
	db.SetMaxIdleConns(dbConfig.MaxIdleConns)
	db.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{
		db:       db,
		dbConfig: dbConfig,
	}

	logger.Info("Postgres alert store initialized",
		logger.String("host", dbConfig.Host),
		logger.Int("port", dbConfig.Port),
		logger.String("database", dbConfig.Database),
	)

	return store, nil
}

// CreateAlert persists a new alert
func (s *PostgresStore) CreateAlert(ctx context.Context, alert *models.Alert) error {
	if alert == nil {
		return fmt.Errorf("alert cannot be nil")
	}
	if err := alert.Validate(); err != nil {
		return fmt.Errorf("invalid alert: %w", err)
	}

	now := time.Now()
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = now
	}
	if alert.UpdatedAt.IsZero() {
		alert.UpdatedAt = now
	}

	query := `
		INSERT INTO alerts (id, owner_id, asset_id, kind, threshold, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		alert.ID,
		alert.OwnerID,
		models.NormalizeAssetID(alert.AssetID),
		alert.Kind,
		alert.Threshold,
		alert.Enabled,
		alert.CreatedAt,
		alert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	return nil
}

// GetAlert retrieves a single alert by ID
func (s *PostgresStore) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	query := `
		SELECT id, owner_id, asset_id, kind, threshold, enabled, created_at, updated_at
		FROM alerts
		WHERE id = $1
	`

	var alert models.Alert
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&alert.ID,
		&alert.OwnerID,
		&alert.AssetID,
		&alert.Kind,
		&alert.Threshold,
		&alert.Enabled,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query alert: %w", err)
	}

	return &alert, nil
}

// ListAlerts retrieves alerts matching the filter in creation order
func (s *PostgresStore) ListAlerts(ctx context.Context, filter Filter) ([]*models.Alert, error) {
	query := `
		SELECT id, owner_id, asset_id, kind, threshold, enabled, created_at, updated_at
		FROM alerts
		WHERE 1=1
	`
	args := []interface{}{}
	argIndex := 1

	if filter.OwnerID != "" {
		query += fmt.Sprintf(" AND owner_id = $%d", argIndex)
		args = append(args, filter.OwnerID)
		argIndex++
	}

	if filter.AssetID != "" {
		query += fmt.Sprintf(" AND asset_id = $%d", argIndex)
		args = append(args, models.NormalizeAssetID(filter.AssetID))
		argIndex++
	}

	if filter.EnabledOnly {
		query += " AND enabled = true"
	}

	query += " ORDER BY created_at ASC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
		argIndex++
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var result []*models.Alert
	for rows.Next() {
		var alert models.Alert
		if err := rows.Scan(
			&alert.ID,
			&alert.OwnerID,
			&alert.AssetID,
			&alert.Kind,
			&alert.Threshold,
			&alert.Enabled,
			&alert.CreatedAt,
			&alert.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		result = append(result, &alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}

	return result, nil
}

// SetEnabled sets the enabled flag of an alert
func (s *PostgresStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	query := `
		UPDATE alerts
		SET enabled = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := s.db.ExecContext(ctx, query, enabled, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return models.ErrAlertNotFound
	}

	return nil
}

// AppendHistory records that an alert fired at the given price
func (s *PostgresStore) AppendHistory(ctx context.Context, alertID string, price float64) error {
	query := `
		INSERT INTO alert_history (id, alert_id, price, triggered_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.db.ExecContext(ctx, query,
		uuid.New().String(),
		alertID,
		price,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert history record: %w", err)
	}

	return nil
}

// ListHistory retrieves firing records for an alert, newest first
func (s *PostgresStore) ListHistory(ctx context.Context, alertID string, limit int) ([]*models.AlertHistory, error) {
	query := `
		SELECT id, alert_id, price, triggered_at
		FROM alert_history
		WHERE alert_id = $1
		ORDER BY triggered_at DESC
	`
	args := []interface{}{alertID}

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var result []*models.AlertHistory
	for rows.Next() {
		var record models.AlertHistory
		if err := rows.Scan(
			&record.ID,
			&record.AlertID,
			&record.Price,
			&record.TriggeredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		result = append(result, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}

	return result, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Compile-time interface check
var _ Store = (*PostgresStore)(nil)
