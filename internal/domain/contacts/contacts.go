// Package contacts validates addresses submitted to the opt-in contact list.
package contacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"
)

const (
	maxEmailLen          = 254
	defaultLookupTimeout = 3 * time.Second
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Resolver is the subset of *net.Resolver used for the domain check.
type Resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Validator checks submitted addresses.
type Validator struct {
	resolver Resolver
	timeout  time.Duration
	dnsCheck bool
}

// NewValidator creates a Validator that checks domains with net.DefaultResolver.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		resolver: net.DefaultResolver,
		timeout:  defaultLookupTimeout,
		dnsCheck: true,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate normalizes raw and runs, in order, the required, length, format,
// typo, disposable-domain and domain-existence checks. It returns the
// lower-cased address or a *ValidationError.
func (v *Validator) Validate(ctx context.Context, raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", &ValidationError{Kind: ErrEmailRequired, Message: "Email is required"}
	}
	if len(email) > maxEmailLen {
		return "", &ValidationError{Kind: ErrEmailTooLong, Message: "Email address too long"}
	}
	if !emailPattern.MatchString(email) {
		return "", &ValidationError{Kind: ErrEmailFormat, Message: "Invalid email format. Please check for typos."}
	}

	at := strings.LastIndexByte(email, '@')
	local, domain := email[:at], email[at+1:]

	if fixed, ok := domainTypos[domain]; ok {
		suggestion := local + "@" + fixed
		return "", &ValidationError{
			Kind:       ErrEmailTypo,
			Message:    fmt.Sprintf("Did you mean %s?", suggestion),
			Suggestion: suggestion,
		}
	}
	if _, ok := disposableDomains[domain]; ok {
		return "", &ValidationError{
			Kind:    ErrDisposable,
			Message: "Temporary email addresses are not allowed. Please use your regular email.",
		}
	}
	if v.dnsCheck && !v.domainExists(ctx, domain) {
		return "", &ValidationError{
			Kind:    ErrDomainNotFound,
			Message: fmt.Sprintf("The domain '%s' doesn't appear to exist. Please check your email address.", domain),
		}
	}
	return email, nil
}

// domainExists accepts a domain with an MX record or, failing that, any host record.
func (v *Validator) domainExists(ctx context.Context, domain string) bool {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	if mx, err := v.resolver.LookupMX(ctx, domain); err == nil && len(mx) > 0 {
		return true
	}
	addrs, err := v.resolver.LookupHost(ctx, domain)
	return err == nil && len(addrs) > 0
}

// HashEmail is the anonymized form written to the usage log.
func HashEmail(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(email)))
	return hex.EncodeToString(sum[:])[:16]
}
