// Package validation checks site configurations against the structural schema
// and the conditional login rules before they may be stored or run.
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/UninstallAll/AIDAscraper/internal/models"
)

// Result is the outcome of validating one configuration.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Error messages, in rule order.
const (
	MsgMalformed            = "configuration must be a JSON object"
	MsgMissing              = "configuration is missing"
	MsgNameRequired         = "name is required"
	MsgURLRequired          = "url is required"
	MsgURLInvalid           = "url is not a valid URL"
	MsgStartURLsRequired    = "start_urls must contain at least one URL"
	MsgLoginURLRequired     = "login URL is required when requires_login is set"
	MsgLoginURLInvalid      = "login URL is not a valid URL"
	MsgUsernameFieldMissing = "login username field name is required when requires_login is set"
	MsgPasswordFieldMissing = "login password field name is required when requires_login is set"
	MsgUsernameMissing      = "login username is required when requires_login is set"
	MsgPasswordMissing      = "login password is required when requires_login is set"
)

var uriChecker = validator.New()

// IsURL reports whether s is an absolute URL.
func IsURL(s string) bool {
	return uriChecker.Var(s, "required,url") == nil
}

// Validate applies the rules in fixed order and never mutates cfg.
func Validate(cfg *models.SiteConfiguration) Result {
	if cfg == nil {
		return invalid(MsgMissing)
	}

	var errs []string

	if blank(cfg.Name) {
		errs = append(errs, MsgNameRequired)
	}

	switch {
	case blank(cfg.URL):
		errs = append(errs, MsgURLRequired)
	case !IsURL(cfg.URL):
		errs = append(errs, MsgURLInvalid)
	}

	if len(cfg.StartURLs) == 0 {
		errs = append(errs, MsgStartURLsRequired)
	} else {
		// Only the first offender is reported.
		for _, u := range cfg.StartURLs {
			if !IsURL(u) {
				errs = append(errs, fmt.Sprintf("start URL %q is not a valid URL", u))
				break
			}
		}
	}

	if cfg.RequiresLogin {
		errs = append(errs, loginErrors(cfg)...)
	}

	if len(errs) > 0 {
		return Result{Valid: false, Errors: errs}
	}
	return Result{Valid: true, Errors: []string{}}
}

func loginErrors(cfg *models.SiteConfiguration) []string {
	var errs []string
	switch {
	case blank(cfg.LoginURL):
		errs = append(errs, MsgLoginURLRequired)
	case !IsURL(cfg.LoginURL):
		errs = append(errs, MsgLoginURLInvalid)
	}
	if blank(cfg.LoginUsernameField) {
		errs = append(errs, MsgUsernameFieldMissing)
	}
	if blank(cfg.LoginPasswordField) {
		errs = append(errs, MsgPasswordFieldMissing)
	}
	if blank(cfg.LoginUsername) {
		errs = append(errs, MsgUsernameMissing)
	}
	if blank(cfg.LoginPassword) {
		errs = append(errs, MsgPasswordMissing)
	}
	return errs
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// ValidateJSON decodes raw and validates it. Input that is not a JSON object,
// or whose fields have the wrong types, yields a single top-level error.
func ValidateJSON(raw []byte) Result {
	cfg, errs := Decode(raw)
	if errs != nil {
		return Result{Valid: false, Errors: errs}
	}
	return Validate(cfg)
}

// Decode parses a JSON object into a configuration without applying the
// rules. is_active defaults to true. Undecodable input yields a single error message.
func Decode(raw []byte) (*models.SiteConfiguration, []string) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, []string{MsgMissing}
	}
	if trimmed[0] != '{' {
		return nil, []string{MsgMalformed}
	}

	cfg := models.SiteConfiguration{IsActive: true}
	if err := json.Unmarshal(trimmed, &cfg); err != nil {
		return nil, []string{fmt.Sprintf("configuration is malformed: %v", err)}
	}
	return &cfg, nil
}

func invalid(msg string) Result {
	return Result{Valid: false, Errors: []string{msg}}
}
