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
)

// FallbackMessage is shown when the API gives no usable message.
const FallbackMessage = "Something went wrong"

// APIError is a non-2xx API response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// Message extracts the user-facing text of err.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return FallbackMessage
}

// Student mirrors a student profile record.
type Student struct {
	ID         string    `json:"_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Course     string    `json:"course"`
	EnrolledAt time.Time `json:"enrolledAt"`
	User       string    `json:"user"`
}

// SignupRequest is the signup form.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// ProfileFields are the fields a student may edit on their own profile.
type ProfileFields struct {
	Name   *string `json:"name,omitempty"`
	Email  *string `json:"email,omitempty"`
	Course *string `json:"course,omitempty"`
}

// NewStudent is the admin enrolment form.
type NewStudent struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Course string `json:"course"`
}

// Client calls the API and keeps the issued session in a SessionStore.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	sessions SessionStore
}

// New builds a Client. httpClient may be nil.
func New(baseURL string, sessions SessionStore, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse api url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: api url %q must be absolute", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: u, http: httpClient, sessions: sessions}, nil
}

// Signup registers an account and stores the returned session.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", false, req, &s); err != nil {
		return Session{}, err
	}
	return s, c.sessions.Set(ctx, s)
}

// Login exchanges credentials for a session and stores it.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var s Session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", false, body, &s); err != nil {
		return Session{}, err
	}
	return s, c.sessions.Set(ctx, s)
}

// Logout forgets the stored session.
func (c *Client) Logout(ctx context.Context) error {
	return c.sessions.Clear(ctx)
}

// Me loads the signed-in student's profile.
func (c *Client) Me(ctx context.Context) (Student, error) {
	var out Student
	err := c.do(ctx, http.MethodGet, "/api/students/me", true, nil, &out)
	return out, err
}

// UpdateMe edits the signed-in student's profile.
func (c *Client) UpdateMe(ctx context.Context, fields ProfileFields) (Student, error) {
	var out Student
	err := c.do(ctx, http.MethodPut, "/api/students/me", true, fields, &out)
	return out, err
}

// ListStudents returns every student, most recently enrolled first.
func (c *Client) ListStudents(ctx context.Context) ([]Student, error) {
	var out []Student
	err := c.do(ctx, http.MethodGet, "/api/students", true, nil, &out)
	return out, err
}

// CreateStudent enrols a student with the server's default password.
func (c *Client) CreateStudent(ctx context.Context, in NewStudent) (Student, error) {
	var out Student
	err := c.do(ctx, http.MethodPost, "/api/students", true, in, &out)
	return out, err
}

// UpdateStudent sets arbitrary profile fields as an administrator.
func (c *Client) UpdateStudent(ctx context.Context, id string, fields map[string]any) (Student, error) {
	var out Student
	err := c.do(ctx, http.MethodPut, "/api/students/"+url.PathEscape(id), true, fields, &out)
	return out, err
}

// DeleteStudent removes a student profile and its identity.
func (c *Client) DeleteStudent(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/students/"+url.PathEscape(id), true, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, authenticated bool, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		s, err := c.sessions.Get(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&msg)
		return &APIError{Status: resp.StatusCode, Message: msg.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}
	return nil
}
