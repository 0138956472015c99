package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/UninstallAll/AIDAscraper/internal/models"
)

const siteColumns = `id, tenant_id, name, url, description, start_urls, allowed_domains,
	requires_login, login_url, login_username_field, login_password_field,
	login_username, login_password, list_page_xpath, next_page_xpath,
	detail_page_xpath, field_mappings, use_playwright_rendering, extra_config,
	is_active, created_at, updated_at`

// PostgresSiteRepository stores site configurations in PostgreSQL.
type PostgresSiteRepository struct {
	db *sql.DB
}

func NewPostgresSiteRepository(db *sql.DB) *PostgresSiteRepository {
	return &PostgresSiteRepository{db: db}
}

func (r *PostgresSiteRepository) Create(ctx context.Context, cfg *models.SiteConfiguration) error {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	query := `
		INSERT INTO site_configurations (` + siteColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`

	_, err := r.db.ExecContext(ctx, query,
		cfg.ID,
		cfg.TenantID,
		cfg.Name,
		cfg.URL,
		cfg.Description,
		cfg.StartURLs,
		cfg.AllowedDomains,
		cfg.RequiresLogin,
		cfg.LoginURL,
		cfg.LoginUsernameField,
		cfg.LoginPasswordField,
		cfg.LoginUsername,
		cfg.LoginPassword,
		cfg.ListPageXPath,
		cfg.NextPageXPath,
		cfg.DetailPageXPath,
		cfg.FieldMappings,
		cfg.UsePlaywrightRendering,
		cfg.ExtraConfig,
		cfg.IsActive,
		cfg.CreatedAt,
		cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert site configuration: %w", err)
	}

	return nil
}

func (r *PostgresSiteRepository) GetByID(ctx context.Context, id string) (*models.SiteConfiguration, error) {
	query := `SELECT ` + siteColumns + ` FROM site_configurations WHERE id = $1`

	cfg, err := scanSite(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query site configuration: %w", err)
	}

	return cfg, nil
}

func (r *PostgresSiteRepository) List(ctx context.Context, filter models.SiteFilter) ([]*models.SiteConfiguration, error) {
	whereClause, args := buildSiteWhere(filter)
	// #nosec G202 -- where clause holds placeholders only
	query := `SELECT ` + siteColumns + ` FROM site_configurations WHERE 1=1` + whereClause +
		` ORDER BY name ASC, id ASC`
	query, args = appendPaging(query, args, filter.Limit, filter.Skip)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query site configurations: %w", err)
	}
	defer rows.Close()

	sites := make([]*models.SiteConfiguration, 0)
	for rows.Next() {
		cfg, scanErr := scanSite(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan site configuration: %w", scanErr)
		}
		sites = append(sites, cfg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate site configurations: %w", err)
	}

	return sites, nil
}

// Count returns the number of configurations matching filter, ignoring paging.
func (r *PostgresSiteRepository) Count(ctx context.Context, filter models.SiteFilter) (int, error) {
	whereClause, args := buildSiteWhere(filter)
	query := `SELECT COUNT(*) FROM site_configurations WHERE 1=1` + whereClause

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count site configurations: %w", err)
	}
	return count, nil
}

func (r *PostgresSiteRepository) Update(ctx context.Context, cfg *models.SiteConfiguration) error {
	cfg.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE site_configurations
		SET name = $2, url = $3, description = $4, start_urls = $5, allowed_domains = $6,
		    requires_login = $7, login_url = $8, login_username_field = $9,
		    login_password_field = $10, login_username = $11, login_password = $12,
		    list_page_xpath = $13, next_page_xpath = $14, detail_page_xpath = $15,
		    field_mappings = $16, use_playwright_rendering = $17, extra_config = $18,
		    is_active = $19, updated_at = $20
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		cfg.ID,
		cfg.Name,
		cfg.URL,
		cfg.Description,
		cfg.StartURLs,
		cfg.AllowedDomains,
		cfg.RequiresLogin,
		cfg.LoginURL,
		cfg.LoginUsernameField,
		cfg.LoginPasswordField,
		cfg.LoginUsername,
		cfg.LoginPassword,
		cfg.ListPageXPath,
		cfg.NextPageXPath,
		cfg.DetailPageXPath,
		cfg.FieldMappings,
		cfg.UsePlaywrightRendering,
		cfg.ExtraConfig,
		cfg.IsActive,
		cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update site configuration: %w", err)
	}

	return requireAffected(result)
}

func (r *PostgresSiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM site_configurations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete site configuration: %w", err)
	}

	return requireAffected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (*models.SiteConfiguration, error) {
	var cfg models.SiteConfiguration
	err := row.Scan(
		&cfg.ID,
		&cfg.TenantID,
		&cfg.Name,
		&cfg.URL,
		&cfg.Description,
		&cfg.StartURLs,
		&cfg.AllowedDomains,
		&cfg.RequiresLogin,
		&cfg.LoginURL,
		&cfg.LoginUsernameField,
		&cfg.LoginPasswordField,
		&cfg.LoginUsername,
		&cfg.LoginPassword,
		&cfg.ListPageXPath,
		&cfg.NextPageXPath,
		&cfg.DetailPageXPath,
		&cfg.FieldMappings,
		&cfg.UsePlaywrightRendering,
		&cfg.ExtraConfig,
		&cfg.IsActive,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func buildSiteWhere(filter models.SiteFilter) (whereClause string, args []any) {
	var clauses []string
	args = make([]any, 0)
	pos := 1

	if filter.TenantID != "" {
		clauses = append(clauses, fmt.Sprintf("tenant_id = $%d", pos))
		args = append(args, filter.TenantID)
		pos++
	}
	if filter.Search != "" {
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR url ILIKE $%d)", pos, pos))
		args = append(args, "%"+filter.Search+"%")
		pos++
	}
	if filter.Active != nil {
		clauses = append(clauses, fmt.Sprintf("is_active = $%d", pos))
		args = append(args, *filter.Active)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

// appendPaging adds LIMIT/OFFSET placeholders after the existing args.
func appendPaging(query string, args []any, limit, skip int) (string, []any) {
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if skip > 0 {
		args = append(args, skip)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}
	return query, args
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
