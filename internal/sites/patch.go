package sites

import (
	"github.com/UninstallAll/AIDAscraper/internal/models"
)

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Name                   *string            `json:"name"`
	URL                    *string            `json:"url"`
	Description            *string            `json:"description"`
	StartURLs              *[]string          `json:"start_urls"`
	AllowedDomains         *[]string          `json:"allowed_domains"`
	RequiresLogin          *bool              `json:"requires_login"`
	LoginURL               *string            `json:"login_url"`
	LoginUsernameField     *string            `json:"login_username_field"`
	LoginPasswordField     *string            `json:"login_password_field"`
	LoginUsername          *string            `json:"login_username"`
	LoginPassword          *string            `json:"login_password"`
	ListPageXPath          *string            `json:"list_page_xpath"`
	NextPageXPath          *string            `json:"next_page_xpath"`
	DetailPageXPath        *string            `json:"detail_page_xpath"`
	FieldMappings          *map[string]string `json:"field_mappings"`
	UsePlaywrightRendering *bool              `json:"use_playwright_rendering"`
	ExtraConfig            *map[string]any    `json:"extra_config"`
	IsActive               *bool              `json:"is_active"`
}

// Apply merges p into cfg and returns the names of the fields it set.
func (p Patch) Apply(cfg *models.SiteConfiguration) []string {
	var changed []string

	setString := func(name string, dst *string, src *string) {
		if src != nil {
			*dst = *src
			changed = append(changed, name)
		}
	}
	setBool := func(name string, dst *bool, src *bool) {
		if src != nil {
			*dst = *src
			changed = append(changed, name)
		}
	}

	setString("name", &cfg.Name, p.Name)
	setString("url", &cfg.URL, p.URL)
	setString("description", &cfg.Description, p.Description)
	if p.StartURLs != nil {
		cfg.StartURLs = append(models.StringArray(nil), *p.StartURLs...)
		changed = append(changed, "start_urls")
	}
	if p.AllowedDomains != nil {
		cfg.AllowedDomains = append(models.StringArray(nil), *p.AllowedDomains...)
		changed = append(changed, "allowed_domains")
	}
	setBool("requires_login", &cfg.RequiresLogin, p.RequiresLogin)
	setString("login_url", &cfg.LoginURL, p.LoginURL)
	setString("login_username_field", &cfg.LoginUsernameField, p.LoginUsernameField)
	setString("login_password_field", &cfg.LoginPasswordField, p.LoginPasswordField)
	setString("login_username", &cfg.LoginUsername, p.LoginUsername)
	setString("login_password", &cfg.LoginPassword, p.LoginPassword)
	setString("list_page_xpath", &cfg.ListPageXPath, p.ListPageXPath)
	setString("next_page_xpath", &cfg.NextPageXPath, p.NextPageXPath)
	setString("detail_page_xpath", &cfg.DetailPageXPath, p.DetailPageXPath)
	if p.FieldMappings != nil {
		cfg.FieldMappings = make(models.StringMap, len(*p.FieldMappings))
		for k, v := range *p.FieldMappings {
			cfg.FieldMappings[k] = v
		}
		changed = append(changed, "field_mappings")
	}
	setBool("use_playwright_rendering", &cfg.UsePlaywrightRendering, p.UsePlaywrightRendering)
	if p.ExtraConfig != nil {
		cfg.ExtraConfig = make(models.JSONMap, len(*p.ExtraConfig))
		for k, v := range *p.ExtraConfig {
			cfg.ExtraConfig[k] = v
		}
		changed = append(changed, "extra_config")
	}
	setBool("is_active", &cfg.IsActive, p.IsActive)

	return changed
}
