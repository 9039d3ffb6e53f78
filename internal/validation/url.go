// Package validation checks operator-supplied configuration values before
// any network activity happens.
package validation

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// BoardURLValidator validates the configured board API base URL.
type BoardURLValidator struct {
	// AllowLocalhost determines if localhost URLs are permitted
	AllowLocalhost bool
	// MaxLength is the maximum allowed URL length
	MaxLength int
}

// NewBoardURLValidator creates a validator with secure defaults
func NewBoardURLValidator() *BoardURLValidator {
	return &BoardURLValidator{
		AllowLocalhost: false,
		MaxLength:      2048,
	}
}

// NewPermissiveBoardURLValidator creates a validator that allows local
// development and test servers
func NewPermissiveBoardURLValidator() *BoardURLValidator {
	return &BoardURLValidator{
		AllowLocalhost: true,
		MaxLength:      2048,
	}
}

// ValidateAndNormalize validates a base URL and returns it without a
// trailing slash.
func (v *BoardURLValidator) ValidateAndNormalize(input string) (string, error) {
	input = strings.TrimSpace(input)

	if input == "" {
		return "", fmt.Errorf("base URL cannot be empty")
	}
	if len(input) > v.MaxLength {
		return "", fmt.Errorf("base URL too long (max %d characters)", v.MaxLength)
	}

	if strings.ContainsAny(input, "<>\"'`") {
		return "", fmt.Errorf("base URL contains invalid characters")
	}

	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		input = "https://" + input
	}

	parsedURL, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("base URL must use http or https protocol")
	}

	if parsedURL.Host == "" {
		return "", fmt.Errorf("base URL must have a valid hostname")
	}

	if !v.AllowLocalhost && isLocalhost(parsedURL.Hostname()) {
		return "", fmt.Errorf("localhost URLs are not permitted")
	}

	return strings.TrimSuffix(parsedURL.String(), "/"), nil
}

func isLocalhost(host string) bool {
	host = strings.ToLower(host)
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
