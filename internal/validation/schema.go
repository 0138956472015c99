package validation

// Field types used in the schema.
const (
	TypeString  = "string"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// FieldSchema documents one configuration field for a form renderer.
type FieldSchema struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Format       string `json:"format,omitempty"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Required     bool   `json:"required"`
	RequiredWhen string `json:"required_when,omitempty"`
	Items        string `json:"items,omitempty"`
	Secret       bool   `json:"secret,omitempty"`
}

// Schema is declarative metadata only; Validate is the sole authority.
type Schema struct {
	Type     string        `json:"type"`
	Required []string      `json:"required"`
	Fields   []FieldSchema `json:"fields"`
}

const whenLogin = "requires_login"

var siteSchema = []FieldSchema{
	{Name: "name", Type: TypeString, Title: "Site name", Description: "Display name of the crawled site", Required: true},
	{Name: "url", Type: TypeString, Format: "uri", Title: "Site URL", Description: "Main URL of the site", Required: true},
	{Name: "description", Type: TypeString, Title: "Description", Description: "Free-form notes about the site"},
	{Name: "start_urls", Type: TypeArray, Items: "uri", Title: "Start URLs", Description: "URLs the crawl begins from", Required: true},
	{Name: "allowed_domains", Type: TypeArray, Items: TypeString, Title: "Allowed domains", Description: "Domains the crawler may follow links into"},
	{Name: "requires_login", Type: TypeBoolean, Title: "Requires login", Description: "Whether the site must be logged into before crawling"},
	{Name: "login_url", Type: TypeString, Format: "uri", Title: "Login URL", Description: "URL of the login page", RequiredWhen: whenLogin},
	{Name: "login_username_field", Type: TypeString, Title: "Username field", Description: "Name of the username input on the login form", RequiredWhen: whenLogin},
	{Name: "login_password_field", Type: TypeString, Title: "Password field", Description: "Name of the password input on the login form", RequiredWhen: whenLogin},
	{Name: "login_username", Type: TypeString, Title: "Username", Description: "Account used to log in", RequiredWhen: whenLogin},
	{Name: "login_password", Type: TypeString, Title: "Password", Description: "Password used to log in", RequiredWhen: whenLogin, Secret: true},
	{Name: "list_page_xpath", Type: TypeString, Format: "xpath", Title: "List page XPath", Description: "Selects item links on a list page"},
	{Name: "next_page_xpath", Type: TypeString, Format: "xpath", Title: "Next page XPath", Description: "Selects the next-page link"},
	{Name: "detail_page_xpath", Type: TypeString, Format: "xpath", Title: "Detail page XPath", Description: "Selects the content of a detail page"},
	{Name: "field_mappings", Type: TypeObject, Items: TypeString, Title: "Field mappings", Description: "Output field name to XPath expression"},
	{Name: "use_playwright_rendering", Type: TypeBoolean, Title: "Render JavaScript", Description: "Render pages in a headless browser before extraction"},
	{Name: "extra_config", Type: TypeObject, Title: "Executor config", Description: "Executor-specific settings, passed through untouched"},
	{Name: "is_active", Type: TypeBoolean, Title: "Active", Description: "Only active configurations can run jobs"},
}

// GetSchema returns a copy of the site configuration schema.
func GetSchema() Schema {
	fields := make([]FieldSchema, len(siteSchema))
	copy(fields, siteSchema)

	var required []string
	for _, f := range fields {
		if f.Required {
			required = append(required, f.Name)
		}
	}

	return Schema{Type: TypeObject, Required: required, Fields: fields}
}
