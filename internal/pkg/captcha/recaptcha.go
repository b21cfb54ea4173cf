// Package captcha verifies reCAPTCHA responses posted with public forms.
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

var ErrMissingResponse = errors.New("captcha response is missing")

// Verifier is the CAPTCHA collaborator used by lead intake.
type Verifier interface {
	IsAvailable() bool
	SiteKey() string
	Verify(ctx context.Context, response, remoteIP string) (bool, error)
}

type Recaptcha struct {
	siteKey   string
	secret    string
	verifyURL string
	client    *http.Client
}

// NewRecaptcha returns a verifier. It reports unavailable when either key is empty.
func NewRecaptcha(siteKey, secret string) *Recaptcha {
	return &Recaptcha{
		siteKey:   siteKey,
		secret:    secret,
		verifyURL: DefaultVerifyURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// WithVerifyURL points the verifier at another endpoint.
func (r *Recaptcha) WithVerifyURL(u string) *Recaptcha {
	r.verifyURL = u
	return r
}

func (r *Recaptcha) IsAvailable() bool {
	return r != nil && r.siteKey != "" && r.secret != ""
}

func (r *Recaptcha) SiteKey() string {
	if r == nil {
		return ""
	}
	return r.siteKey
}

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify asks the reCAPTCHA service whether response is a solved challenge.
func (r *Recaptcha) Verify(ctx context.Context, response, remoteIP string) (bool, error) {
	if strings.TrimSpace(response) == "" {
		return false, ErrMissingResponse
	}

	form := url.Values{
		"secret":   {r.secret},
		"response": {response},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("failed to build captcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to reach captcha service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("captcha service returned status %d", resp.StatusCode)
	}

	var body siteVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("failed to decode captcha response: %w", err)
	}
	return body.Success, nil
}

// Disabled never asks for a challenge.
type Disabled struct{}

func (Disabled) IsAvailable() bool { return false }
func (Disabled) SiteKey() string   { return "" }
func (Disabled) Verify(context.Context, string, string) (bool, error) {
	return true, nil
}
