// ewaste - E-waste collection marketplace
// Copyright (C) 2025  ewaste contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.

// Package client talks to the ewaste REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jredh-dev/ewaste/internal/centers"
	"github.com/jredh-dev/ewaste/pkg/models"
)

const callTimeout = 10 * time.Second

// APIError is a non-2xx response. Message is the server's user-facing text.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return e.Message
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Session is what the server returns on sign-in.
type Session struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Principal models.Principal `json:"principal"`
}

// Me is the signed-in principal plus its profile.
type Me struct {
	Principal models.Principal       `json:"principal"`
	User      *models.UserProfile    `json:"user,omitempty"`
	Company   *models.CompanyProfile `json:"company,omitempty"`
}

// Company is an entry in the submission company picker.
type Company struct {
	ID          string `json:"id"`
	CompanyName string `json:"company_name"`
}

// Estimate is a valuation preview.
type Estimate struct {
	Weight   string `json:"weight"`
	Estimate int    `json:"estimate"`
	Currency string `json:"currency"`
}

// SubmitForm is the body of a new submission.
type SubmitForm struct {
	ItemName       string  `json:"name"`
	Quantity       int     `json:"quantity"`
	Weight         float64 `json:"weight"`
	CompanyID      string  `json:"company_id"`
	ImageRef       string  `json:"image_url,omitempty"`
	Phone          string  `json:"phone"`
	Address        string  `json:"address"`
	Prize          *int    `json:"prize,omitempty"`
	IdempotencyKey string  `json:"idempotency_key,omitempty"`
}

// SubmitResult is the server's reply to a submission.
type SubmitResult struct {
	Submission    *models.Submission `json:"submission"`
	PointsAwarded int64              `json:"points_awarded"`
	Replayed      bool               `json:"replayed,omitempty"`
}

// Requests is a company's filtered review list plus per-tab counts.
type Requests struct {
	Requests []models.Submission `json:"requests"`
	Counts   map[string]int      `json:"counts"`
}

// UserRegistration is the body of a user sign-up.
type UserRegistration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	Mobile   string `json:"mobile"`
}

// CompanyRegistration is the body of a company sign-up.
type CompanyRegistration struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	CompanyName string `json:"company_name"`
	Phone       string `json:"phone"`
	Certificate string `json:"certificate,omitempty"`
}

// Client is an HTTP client for the ewaste API. It is safe for concurrent use
// once the token is set.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a Client. token may be empty for public calls.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: callTimeout},
	}
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) { c.token = token }

// --- Public ---

func (c *Client) Estimate(ctx context.Context, weight string) (*Estimate, error) {
	var out Estimate
	err := c.do(ctx, http.MethodGet, "/api/estimate?weight="+url.QueryEscape(weight), nil, &out)
	return &out, err
}

func (c *Client) Centers(ctx context.Context, city string) ([]centers.Center, error) {
	path := "/api/centers"
	if city != "" {
		path += "?city=" + url.QueryEscape(city)
	}
	var out []centers.Center
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) RegisterUser(ctx context.Context, r UserRegistration) (*Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodPost, "/api/register/user", r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RegisterCompany(ctx context.Context, r CompanyRegistration) (*Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodPost, "/api/register/company", r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var out Session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/login", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Signed in ---

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/logout", nil, nil)
}

func (c *Client) Me(ctx context.Context) (*Me, error) {
	var out Me
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Companies(ctx context.Context) ([]Company, error) {
	var out []Company
	err := c.do(ctx, http.MethodGet, "/api/companies", nil, &out)
	return out, err
}

func (c *Client) Submissions(ctx context.Context) ([]models.Submission, error) {
	var out []models.Submission
	err := c.do(ctx, http.MethodGet, "/api/submissions", nil, &out)
	return out, err
}

// Submit creates a submission. When the server stored the submission but
// could not award points, both the result and an *APIError are returned.
func (c *Client) Submit(ctx context.Context, f SubmitForm) (*SubmitResult, error) {
	var out SubmitResult
	err := c.do(ctx, http.MethodPost, "/api/submissions", f, &out)
	if err != nil && out.Submission == nil {
		return nil, err
	}
	return &out, err
}

func (c *Client) Requests(ctx context.Context, status string) (*Requests, error) {
	path := "/api/requests"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var out Requests
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetStatus(ctx context.Context, id string, status models.Status) (*models.Submission, error) {
	var out models.Submission
	body := map[string]models.Status{"status": status}
	if err := c.do(ctx, http.MethodPatch, "/api/requests/"+url.PathEscape(id)+"/status", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Submitter(ctx context.Context, id string) (*models.UserProfile, error) {
	var out models.UserProfile
	if err := c.do(ctx, http.MethodGet, "/api/requests/"+url.PathEscape(id)+"/submitter", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Analytics(ctx context.Context) (*models.Stats, error) {
	var out models.Stats
	if err := c.do(ctx, http.MethodGet, "/api/analytics", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CompanyProfile(ctx context.Context) (*models.CompanyProfile, error) {
	var out models.CompanyProfile
	if err := c.do(ctx, http.MethodGet, "/api/company/profile", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateCompanyProfile(ctx context.Context, u models.CompanyUpdate) (*models.CompanyProfile, error) {
	var out models.CompanyProfile
	if err := c.do(ctx, http.MethodPut, "/api/company/profile", u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends one request under its own timeout. out is decoded even for
// error responses so a partial result can be recovered.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s %s encode: %w", method, path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s read: %w", method, path, err)
	}

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		if out != nil {
			_ = json.Unmarshal(raw, out)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s decode: %w", method, path, err)
	}
	return nil
}
