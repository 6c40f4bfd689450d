// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strings"
)

// Validator validates settings and entry configuration against the
// structural invariants every entry must satisfy.
type Validator struct{}

// NewValidator creates a new config validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidationError aggregates multiple field-level validation failures.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single field validation failure.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(msgs, "; ")
}

// IsEmpty returns true if there are no validation errors.
func (e *ValidationError) IsEmpty() bool {
	return len(e.Errors) == 0
}

// Add records a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// Validate checks settings validity, including every configured proxy entry.
func (v *Validator) Validate(s *Settings) error {
	errs := &ValidationError{}

	v.validateListeners(s, errs)
	v.validateCertificates(s, errs)
	for i, e := range s.Proxies {
		v.validateEntry(i, e, errs)
	}

	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func (v *Validator) validateListeners(s *Settings, errs *ValidationError) {
	if s.HTTPPort < 0 || s.HTTPPort > 65535 {
		errs.Add("http_port", "must be between 0 and 65535")
	}
	if s.HTTPSPort < 0 || s.HTTPSPort > 65535 {
		errs.Add("https_port", "must be between 0 and 65535")
	}
	if s.HTTPPort == 0 && s.HTTPSPort == 0 {
		errs.Add("http_port", "at least one of http_port or https_port must be nonzero")
	}
	if s.AutoReload < 0 {
		errs.Add("auto_reload", "must not be negative")
	}
}

func (v *Validator) validateCertificates(s *Settings, errs *ValidationError) {
	if s.HTTPSPort != 0 && s.CertificatesFolder == "" && !s.TailscaleFallback {
		errs.Add("certificates_folder", "required when https_port is set and tailscale_fallback is not enabled")
	}
}

// validateEntry checks a single entry's invariants: it must have at least
// one of target, redirect_to_url,
// redirect_to_domain, or redirect_to_https, or it can never respond
// successfully.
func (v *Validator) validateEntry(i int, e EntryConfig, errs *ValidationError) {
	prefix := fmt.Sprintf("proxies[%d]", i)

	if e.Domain == "" {
		errs.Add(prefix+".domain", "is required")
	}

	hasAction := e.Target != "" || e.RedirectToURL != "" || e.RedirectToDomain != "" || e.RedirectToHTTPS
	if !hasAction {
		errs.Add(prefix, "must set at least one of target, redirect_to_url, redirect_to_domain, redirect_to_https")
	}
}
