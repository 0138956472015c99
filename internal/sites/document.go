package sites

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/UninstallAll/AIDAscraper/internal/models"
)

// Format is an export/import serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat maps a query value to a Format. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported format %q", s)
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

// Document is the portable form of a site configuration. It carries no
// identity, tenant or timestamps so it can be imported anywhere.
type Document struct {
	Name                   string            `json:"name"                               yaml:"name"`
	URL                    string            `json:"url"                                yaml:"url"`
	Description            string            `json:"description,omitempty"              yaml:"description,omitempty"`
	StartURLs              []string          `json:"start_urls"                         yaml:"start_urls"`
	AllowedDomains         []string          `json:"allowed_domains,omitempty"          yaml:"allowed_domains,omitempty"`
	RequiresLogin          bool              `json:"requires_login"                     yaml:"requires_login"`
	LoginURL               string            `json:"login_url,omitempty"                yaml:"login_url,omitempty"`
	LoginUsernameField     string            `json:"login_username_field,omitempty"     yaml:"login_username_field,omitempty"`
	LoginPasswordField     string            `json:"login_password_field,omitempty"     yaml:"login_password_field,omitempty"`
	LoginUsername          string            `json:"login_username,omitempty"           yaml:"login_username,omitempty"`
	LoginPassword          string            `json:"login_password,omitempty"           yaml:"login_password,omitempty"`
	ListPageXPath          string            `json:"list_page_xpath,omitempty"          yaml:"list_page_xpath,omitempty"`
	NextPageXPath          string            `json:"next_page_xpath,omitempty"          yaml:"next_page_xpath,omitempty"`
	DetailPageXPath        string            `json:"detail_page_xpath,omitempty"        yaml:"detail_page_xpath,omitempty"`
	FieldMappings          map[string]string `json:"field_mappings,omitempty"           yaml:"field_mappings,omitempty"`
	UsePlaywrightRendering bool              `json:"use_playwright_rendering"           yaml:"use_playwright_rendering"`
	ExtraConfig            map[string]any    `json:"extra_config,omitempty"             yaml:"extra_config,omitempty"`
	IsActive               bool              `json:"is_active"                          yaml:"is_active"`
}

// NewDocument strips identity from cfg.
func NewDocument(cfg *models.SiteConfiguration) Document {
	c := cfg.Clone()
	return Document{
		Name:                   c.Name,
		URL:                    c.URL,
		Description:            c.Description,
		StartURLs:              c.StartURLs,
		AllowedDomains:         c.AllowedDomains,
		RequiresLogin:          c.RequiresLogin,
		LoginURL:               c.LoginURL,
		LoginUsernameField:     c.LoginUsernameField,
		LoginPasswordField:     c.LoginPasswordField,
		LoginUsername:          c.LoginUsername,
		LoginPassword:          c.LoginPassword,
		ListPageXPath:          c.ListPageXPath,
		NextPageXPath:          c.NextPageXPath,
		DetailPageXPath:        c.DetailPageXPath,
		FieldMappings:          c.FieldMappings,
		UsePlaywrightRendering: c.UsePlaywrightRendering,
		ExtraConfig:            c.ExtraConfig,
		IsActive:               c.IsActive,
	}
}

// Config converts d into an unsaved site configuration.
func (d Document) Config() *models.SiteConfiguration {
	cfg := &models.SiteConfiguration{
		Name:                   d.Name,
		URL:                    d.URL,
		Description:            d.Description,
		StartURLs:              models.StringArray(d.StartURLs),
		AllowedDomains:         models.StringArray(d.AllowedDomains),
		RequiresLogin:          d.RequiresLogin,
		LoginURL:               d.LoginURL,
		LoginUsernameField:     d.LoginUsernameField,
		LoginPasswordField:     d.LoginPasswordField,
		LoginUsername:          d.LoginUsername,
		LoginPassword:          d.LoginPassword,
		ListPageXPath:          d.ListPageXPath,
		NextPageXPath:          d.NextPageXPath,
		DetailPageXPath:        d.DetailPageXPath,
		FieldMappings:          models.StringMap(d.FieldMappings),
		UsePlaywrightRendering: d.UsePlaywrightRendering,
		ExtraConfig:            models.JSONMap(d.ExtraConfig),
		IsActive:               d.IsActive,
	}
	return cfg.Clone()
}

// Encode serializes d in format f.
func (d Document) Encode(f Format) ([]byte, error) {
	switch f {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	default:
		data, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return data, nil
	}
}

// DecodeDocument parses data in format f. Unknown fields are rejected and
// is_active defaults to true.
func DecodeDocument(data []byte, f Format) (Document, error) {
	doc := Document{IsActive: true}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return doc, errors.New("document is empty")
	}

	switch f {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(trimmed))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return doc, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		if trimmed[0] != '{' {
			return doc, errors.New("document must be a JSON object")
		}
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return doc, fmt.Errorf("decode json: %w", err)
		}
	}

	if doc.ExtraConfig != nil {
		doc.ExtraConfig = normalizeYAML(doc.ExtraConfig).(map[string]any)
	}
	return doc, nil
}

// normalizeYAML turns map[any]any nodes into map[string]any so the value
// can be stored as JSON.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	default:
		return v
	}
}
