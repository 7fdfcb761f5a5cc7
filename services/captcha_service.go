package services

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

var ErrCaptchaFailed = errors.New("captcha_failed")

type captchaResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
	Hostname   string   `json:"hostname"`
}

// CaptchaVerifier checks widget tokens against a siteverify endpoint.
// reCAPTCHA, hCaptcha and Turnstile all accept the same form.
type CaptchaVerifier struct {
	Secret    string
	SiteKey   string
	VerifyURL string
	Client    *http.Client
}

func NewCaptchaVerifier(secret, siteKey, verifyURL string) *CaptchaVerifier {
	return &CaptchaVerifier{
		Secret:    secret,
		SiteKey:   siteKey,
		VerifyURL: verifyURL,
		Client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *CaptchaVerifier) Enabled() bool {
	return v != nil && v.Secret != ""
}

func (v *CaptchaVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	if !v.Enabled() {
		return nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: missing token", ErrCaptchaFailed)
	}

	form := url.Values{}
	form.Set("secret", v.Secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("cannot build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.Client.Do(req)
	if err != nil {
		return fmt.Errorf("captcha request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("captcha HTTP error %d", resp.StatusCode)
	}

	var cr captchaResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return fmt.Errorf("captcha JSON parse error: %w", err)
	}
	if !cr.Success {
		return fmt.Errorf("%w: %s", ErrCaptchaFailed, strings.Join(cr.ErrorCodes, ","))
	}
	return nil
}
