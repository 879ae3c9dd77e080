package utils

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrEmptyURL      = errors.New("please provide a URL")
	ErrInvalidURL    = errors.New("invalid URL format")
	ErrInvalidScheme = errors.New("URL scheme must be http or https")
	ErrEmptyHost     = errors.New("URL host cannot be empty")

	ErrAliasLength   = errors.New("custom alias must be between 3 and 30 characters")
	ErrAliasCharset  = errors.New("custom alias must be alphanumeric")
	ErrAliasReserved = errors.New("custom alias is reserved")
)

const (
	MinAliasLength = 3
	MaxAliasLength = 30
)

var (
	validate       = validator.New()
	aliasLengthTag = fmt.Sprintf("min=%d,max=%d", MinAliasLength, MaxAliasLength)
)

// reservedAliases collide with routes mounted next to the catch-all redirect.
var reservedAliases = map[string]struct{}{
	"api":       {},
	"health":    {},
	"metrics":   {},
	"admin":     {},
	"analytics": {},
	"auth":      {},
	"login":     {},
	"logout":    {},
	"register":  {},
	"static":    {},
	"assets":    {},
	"docs":      {},
	"swagger":   {},
	"favicon":   {},
}

// ValidateOriginalURL accepts only absolute http(s) URLs with a host.
func ValidateOriginalURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrEmptyURL
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return ErrInvalidURL
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return ErrInvalidScheme
	}

	if u.Hostname() == "" {
		return ErrEmptyHost
	}
	return nil
}

func NormalizeAlias(alias string) string {
	return strings.ToLower(strings.TrimSpace(alias))
}

// ValidateAlias checks the shape of an already normalized alias.
func ValidateAlias(alias string) error {
	if validate.Var(alias, aliasLengthTag) != nil {
		return ErrAliasLength
	}
	if validate.Var(alias, "alphanum") != nil {
		return ErrAliasCharset
	}
	if IsReserved(alias) {
		return ErrAliasReserved
	}
	return nil
}

func IsReserved(alias string) bool {
	_, ok := reservedAliases[strings.ToLower(alias)]
	return ok
}
