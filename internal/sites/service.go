// Package sites manages site configurations. Every write is validated first,
// so no invalid configuration ever reaches the repository.
package sites

import (
	"context"
	"errors"
	"fmt"

	"github.com/UninstallAll/AIDAscraper/internal/apperr"
	"github.com/UninstallAll/AIDAscraper/internal/events"
	"github.com/UninstallAll/AIDAscraper/internal/logger"
	"github.com/UninstallAll/AIDAscraper/internal/metrics"
	"github.com/UninstallAll/AIDAscraper/internal/models"
	"github.com/UninstallAll/AIDAscraper/internal/repository"
	"github.com/UninstallAll/AIDAscraper/internal/validation"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500

	resourceName = "site configuration"
)

// Service is the site configuration store used by the API and the job manager.
type Service struct {
	repo      repository.SiteRepository
	publisher *events.Publisher
	metrics   *metrics.Metrics
	log       logger.Logger
}

// NewService creates a site configuration service. publisher and m may be nil.
func NewService(
	repo repository.SiteRepository,
	publisher *events.Publisher,
	m *metrics.Metrics,
	log logger.Logger,
) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{repo: repo, publisher: publisher, metrics: m, log: log}
}

// List returns one page of configurations and the total matching the filter.
func (s *Service) List(ctx context.Context, filter models.SiteFilter) ([]*models.SiteConfiguration, int, error) {
	filter.Limit, filter.Skip = clampPage(filter.Limit, filter.Skip)

	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list site configurations: %w", err)
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count site configurations: %w", err)
	}

	return items, total, nil
}

// Get returns a configuration visible to tenantID. An empty tenantID is unscoped.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*models.SiteConfiguration, error) {
	cfg, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound(resourceName, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get site configuration: %w", err)
	}

	if tenantID != "" && cfg.TenantID != tenantID {
		return nil, apperr.NotFound(resourceName, id)
	}

	return cfg, nil
}

// Create validates cfg and stores it under tenantID.
func (s *Service) Create(ctx context.Context, tenantID string, cfg *models.SiteConfiguration) (*models.SiteConfiguration, error) {
	if cfg == nil {
		return nil, apperr.Validation([]string{validation.MsgMissing})
	}

	if result := validation.Validate(cfg); !result.Valid {
		s.metrics.RecordValidationFailure("create")
		return nil, apperr.Validation(result.Errors)
	}

	toStore := cfg.Clone()
	toStore.ID = ""
	toStore.TenantID = tenantID

	if err := s.repo.Create(ctx, toStore); err != nil {
		return nil, fmt.Errorf("create site configuration: %w", err)
	}

	s.log.Info("Site configuration created",
		logger.String("site_id", toStore.ID),
		logger.String("tenant_id", tenantID),
		logger.String("name", toStore.Name),
	)
	s.publisher.PublishAsync(events.Event{
		EventType:  events.SiteCreated,
		ResourceID: toStore.ID,
		TenantID:   tenantID,
		Payload:    events.SitePayload{Name: toStore.Name, URL: toStore.URL, IsActive: toStore.IsActive},
	})

	return toStore, nil
}

// Update merges patch into the stored configuration and re-validates the result.
func (s *Service) Update(ctx context.Context, tenantID, id string, patch Patch) (*models.SiteConfiguration, error) {
	current, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	merged := current.Clone()
	changed := patch.Apply(merged)

	if result := validation.Validate(merged); !result.Valid {
		s.metrics.RecordValidationFailure("update")
		return nil, apperr.Validation(result.Errors)
	}

	if err = s.repo.Update(ctx, merged); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(resourceName, id)
		}
		return nil, fmt.Errorf("update site configuration: %w", err)
	}

	s.log.Info("Site configuration updated",
		logger.String("site_id", id),
		logger.Strings("changed_fields", changed),
	)
	s.publisher.PublishAsync(events.Event{
		EventType:  events.SiteUpdated,
		ResourceID: id,
		TenantID:   merged.TenantID,
		Payload:    events.SiteUpdatedPayload{ChangedFields: changed},
	})

	return merged, nil
}

// Delete removes a configuration. Jobs that reference it are kept.
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	current, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}

	if err = s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(resourceName, id)
		}
		return fmt.Errorf("delete site configuration: %w", err)
	}

	s.log.Info("Site configuration deleted", logger.String("site_id", id))
	s.publisher.PublishAsync(events.Event{
		EventType:  events.SiteDeleted,
		ResourceID: id,
		TenantID:   current.TenantID,
		Payload:    events.SitePayload{Name: current.Name, URL: current.URL, IsActive: current.IsActive},
	})

	return nil
}

// Export serializes a configuration without its identity.
func (s *Service) Export(ctx context.Context, tenantID, id string, format Format) ([]byte, error) {
	cfg, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	data, err := NewDocument(cfg).Encode(format)
	if err != nil {
		return nil, fmt.Errorf("export site configuration: %w", err)
	}
	return data, nil
}

// Import decodes a serialized configuration, validates it and creates it.
// Undecodable input is a validation error with a single message.
func (s *Service) Import(ctx context.Context, tenantID string, data []byte, format Format) (*models.SiteConfiguration, error) {
	doc, err := DecodeDocument(data, format)
	if err != nil {
		s.metrics.RecordValidationFailure("import")
		return nil, apperr.Validation([]string{fmt.Sprintf("configuration is malformed: %v", err)})
	}

	cfg := doc.Config()
	if result := validation.Validate(cfg); !result.Valid {
		s.metrics.RecordValidationFailure("import")
		return nil, apperr.Validation(result.Errors)
	}

	return s.Create(ctx, tenantID, cfg)
}

// RowResult is the outcome of one configuration in a batch import.
type RowResult struct {
	Row    int                       `json:"row"`
	Site   *models.SiteConfiguration `json:"site,omitempty"`
	Errors []string                  `json:"errors,omitempty"`
}

// BatchRow is one configuration of a batch import with its source row number.
type BatchRow struct {
	Row    int
	Config *models.SiteConfiguration
}

// ImportBatch creates every valid configuration and reports the invalid ones.
// It stops only on a storage failure.
func (s *Service) ImportBatch(
	ctx context.Context, tenantID string, rows []BatchRow,
) (created int, results []RowResult, err error) {
	results = make([]RowResult, 0, len(rows))
	for _, in := range rows {
		row := RowResult{Row: in.Row}

		site, createErr := s.Create(ctx, tenantID, in.Config)
		switch {
		case createErr == nil:
			row.Site = site
			created++
		case apperr.IsKind(createErr, apperr.KindValidation):
			var appErr *apperr.Error
			errors.As(createErr, &appErr)
			row.Errors = appErr.Details
		default:
			return created, results, createErr
		}
		results = append(results, row)
	}
	return created, results, nil
}

// Validate checks cfg without storing it.
func (s *Service) Validate(cfg *models.SiteConfiguration) validation.Result {
	return validation.Validate(cfg)
}

// Schema returns the declarative site configuration schema.
func (s *Service) Schema() validation.Schema {
	return validation.GetSchema()
}

func clampPage(limit, skip int) (clampedLimit, clampedSkip int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if skip < 0 {
		skip = 0
	}
	return limit, skip
}
