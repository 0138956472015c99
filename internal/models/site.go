package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SiteConfiguration describes how one target site is crawled.
type SiteConfiguration struct {
	ID                     string      `json:"id"`
	Name                   string      `json:"name"`
	URL                    string      `json:"url"`
	Description            string      `json:"description,omitempty"`
	StartURLs              StringArray `json:"start_urls"`
	AllowedDomains         StringArray `json:"allowed_domains"`
	RequiresLogin          bool        `json:"requires_login"`
	LoginURL               string      `json:"login_url,omitempty"`
	LoginUsernameField     string      `json:"login_username_field,omitempty"`
	LoginPasswordField     string      `json:"login_password_field,omitempty"`
	LoginUsername          string      `json:"login_username,omitempty"`
	LoginPassword          string      `json:"login_password,omitempty"`
	ListPageXPath          string      `json:"list_page_xpath,omitempty"`
	NextPageXPath          string      `json:"next_page_xpath,omitempty"`
	DetailPageXPath        string      `json:"detail_page_xpath,omitempty"`
	FieldMappings          StringMap   `json:"field_mappings"`
	UsePlaywrightRendering bool        `json:"use_playwright_rendering"`
	ExtraConfig            JSONMap     `json:"extra_config"`
	IsActive               bool        `json:"is_active"`
	TenantID               string      `json:"tenant_id"`
	CreatedAt              time.Time   `json:"created_at"`
	UpdatedAt              time.Time   `json:"updated_at"`
}

// Clone returns a deep copy so callers never share slices or maps with a store.
func (s *SiteConfiguration) Clone() *SiteConfiguration {
	if s == nil {
		return nil
	}
	c := *s
	c.StartURLs = append(StringArray(nil), s.StartURLs...)
	c.AllowedDomains = append(StringArray(nil), s.AllowedDomains...)
	if s.FieldMappings != nil {
		c.FieldMappings = make(StringMap, len(s.FieldMappings))
		for k, v := range s.FieldMappings {
			c.FieldMappings[k] = v
		}
	}
	if s.ExtraConfig != nil {
		c.ExtraConfig = make(JSONMap, len(s.ExtraConfig))
		for k, v := range s.ExtraConfig {
			c.ExtraConfig[k] = v
		}
	}
	return &c
}

// SiteFilter holds pagination and filter params for listing site configurations.
type SiteFilter struct {
	TenantID string
	Active   *bool  // nil = all
	Search   string // matches name or url
	Skip     int
	Limit    int
}

// StringArray is a string slice stored as a JSON array column.
type StringArray []string

// Value implements driver.Valuer for database storage.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(a))
}

// Scan implements sql.Scanner for database retrieval.
func (a *StringArray) Scan(value any) error {
	return scanJSON(value, a)
}

// StringMap is a string-to-string mapping stored as a JSON object column.
type StringMap map[string]string

// Value implements driver.Valuer for database storage.
func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]string(m))
}

// Scan implements sql.Scanner for database retrieval.
func (m *StringMap) Scan(value any) error {
	return scanJSON(value, m)
}

// JSONMap is an open-ended mapping stored as a JSON object column.
type JSONMap map[string]any

// Value implements driver.Valuer for database storage.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(m))
}

// Scan implements sql.Scanner for database retrieval.
func (m *JSONMap) Scan(value any) error {
	return scanJSON(value, m)
}

func scanJSON(value, dest any) error {
	if value == nil {
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
