// Package importer reads site configurations from Excel workbooks.
package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/UninstallAll/AIDAscraper/internal/models"
)

// Column headers recognized on the first row. Order does not matter.
const (
	ColName               = "name"
	ColURL                = "url"
	ColDescription        = "description"
	ColStartURLs          = "start_urls"
	ColAllowedDomains     = "allowed_domains"
	ColRequiresLogin      = "requires_login"
	ColLoginURL           = "login_url"
	ColLoginUsernameField = "login_username_field"
	ColLoginPasswordField = "login_password_field"
	ColLoginUsername      = "login_username"
	ColLoginPassword      = "login_password"
	ColListPageXPath      = "list_page_xpath"
	ColNextPageXPath      = "next_page_xpath"
	ColDetailPageXPath    = "detail_page_xpath"
	ColFieldMappings      = "field_mappings"
	ColUsePlaywright      = "use_playwright_rendering"
	ColExtraConfig        = "extra_config"
	ColIsActive           = "is_active"

	headerRowIndex = 1 // Excel rows are 1-based, header is row 1
)

// Headers lists every recognized column in template order.
var Headers = []string{
	ColName, ColURL, ColDescription, ColStartURLs, ColAllowedDomains,
	ColRequiresLogin, ColLoginURL, ColLoginUsernameField, ColLoginPasswordField,
	ColLoginUsername, ColLoginPassword, ColListPageXPath, ColNextPageXPath,
	ColDetailPageXPath, ColFieldMappings, ColUsePlaywright, ColExtraConfig, ColIsActive,
}

var requiredHeaders = []string{ColName, ColURL, ColStartURLs}

// SiteRow is a decoded spreadsheet row.
type SiteRow struct {
	Row    int // Excel row number (for error reporting)
	Config *models.SiteConfiguration
}

// ImportError represents a decoding error for a specific row. Row 0 is the workbook itself.
type ImportError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ParseExcelFile decodes the first sheet of the workbook. Rows whose cells
// cannot be decoded are reported as errors; rule validation is left to the caller.
func ParseExcelFile(r io.Reader) ([]SiteRow, []ImportError) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, []ImportError{{Row: 0, Error: fmt.Sprintf("open workbook: %v", err)}}
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, []ImportError{{Row: 0, Error: fmt.Sprintf("read sheet %q: %v", sheet, err)}}
	}
	if len(rows) < headerRowIndex {
		return nil, []ImportError{{Row: headerRowIndex, Error: "header row is missing"}}
	}

	columns := indexHeaders(rows[headerRowIndex-1])
	for _, h := range requiredHeaders {
		if _, ok := columns[h]; !ok {
			return nil, []ImportError{{Row: headerRowIndex, Error: fmt.Sprintf("missing required column %q", h)}}
		}
	}

	var parsed []SiteRow
	var importErrors []ImportError
	for i := headerRowIndex; i < len(rows); i++ {
		rowNum := i + 1
		cells := rows[i]
		if isBlank(cells) {
			continue
		}

		cfg, decodeErr := decodeRow(columns, cells)
		if decodeErr != "" {
			importErrors = append(importErrors, ImportError{Row: rowNum, Error: decodeErr})
			continue
		}
		parsed = append(parsed, SiteRow{Row: rowNum, Config: cfg})
	}

	return parsed, importErrors
}

// Template returns an empty workbook with the header row filled in.
func Template(w io.Writer) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	for i, h := range Headers {
		cell, err := excelize.CoordinatesToCellName(i+1, headerRowIndex)
		if err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
		if err = f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("set header %q: %w", h, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func indexHeaders(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if key != "" {
			columns[key] = i
		}
	}
	return columns
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

type rowReader struct {
	columns map[string]int
	cells   []string
	err     string
}

func (r *rowReader) str(col string) string {
	idx, ok := r.columns[col]
	if !ok || idx >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[idx])
}

func (r *rowReader) boolean(col string, def bool) bool {
	raw := r.str(col)
	if raw == "" || r.err != "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "yes", "y":
		return true
	case "no", "n":
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		r.err = fmt.Sprintf("%s must be true or false", col)
		return def
	}
	return v
}

// list accepts a JSON array or newline/comma separated values.
func (r *rowReader) list(col string) models.StringArray {
	raw := r.str(col)
	if raw == "" || r.err != "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			r.err = fmt.Sprintf("%s must be a valid JSON array", col)
			return nil
		}
		return out
	}
	var out models.StringArray
	for _, part := range strings.FieldsFunc(raw, func(c rune) bool { return c == '\n' || c == ',' }) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (r *rowReader) object(col string, dest any) {
	raw := r.str(col)
	if raw == "" || r.err != "" {
		return
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		r.err = fmt.Sprintf("%s must be valid JSON", col)
	}
}

func decodeRow(columns map[string]int, cells []string) (*models.SiteConfiguration, string) {
	r := &rowReader{columns: columns, cells: cells}

	cfg := &models.SiteConfiguration{
		Name:                   r.str(ColName),
		URL:                    r.str(ColURL),
		Description:            r.str(ColDescription),
		StartURLs:              r.list(ColStartURLs),
		AllowedDomains:         r.list(ColAllowedDomains),
		RequiresLogin:          r.boolean(ColRequiresLogin, false),
		LoginURL:               r.str(ColLoginURL),
		LoginUsernameField:     r.str(ColLoginUsernameField),
		LoginPasswordField:     r.str(ColLoginPasswordField),
		LoginUsername:          r.str(ColLoginUsername),
		LoginPassword:          r.str(ColLoginPassword),
		ListPageXPath:          r.str(ColListPageXPath),
		NextPageXPath:          r.str(ColNextPageXPath),
		DetailPageXPath:        r.str(ColDetailPageXPath),
		UsePlaywrightRendering: r.boolean(ColUsePlaywright, false),
		IsActive:               r.boolean(ColIsActive, true),
	}
	r.object(ColFieldMappings, &cfg.FieldMappings)
	r.object(ColExtraConfig, &cfg.ExtraConfig)

	if r.err != "" {
		return nil, r.err
	}
	return cfg, ""
}
