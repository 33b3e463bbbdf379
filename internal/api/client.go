package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/atelier-commerce/atelier/internal/session"
)

// Client is an HTTP client for the Atelier storefront API. Resource calls
// ride the authenticating Transport; login and refresh are unauthenticated
// and use the plain client so a rejected login can never trigger a refresh.
type Client struct {
	baseURL     string
	httpClient  *http.Client // authenticated, refresh-and-retry
	plainClient *http.Client // unauthenticated (login)
}

// New creates an API client whose requests authenticate against the given
// session store
func New(baseURL string, store session.Store, opts ...TransportOption) *Client {
	transport := NewTransport(store, fmt.Sprintf("%s/api/auth/refresh", baseURL), opts...)

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		plainClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient sets a custom authenticated HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents the credential bundle issued at login
type LoginResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         session.User `json:"user"`
}

// Login authenticates the user and returns the issued credential bundle
func (c *Client) Login(email, password string) (*session.Credentials, error) {
	reqBody := LoginRequest{
		Email:    email,
		Password: password,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.plainClient.Post(
		fmt.Sprintf("%s/api/auth/login", c.baseURL),
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("login failed (status %d): %s", resp.StatusCode, string(body))
	}

	var loginResp LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &session.Credentials{
		AccessToken:  loginResp.AccessToken,
		RefreshToken: loginResp.RefreshToken,
		User:         loginResp.User,
	}, nil
}

// Me returns the profile of the authenticated user
func (c *Client) Me() (*session.User, error) {
	var user session.User
	if err := c.get("/api/auth/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Product represents a storefront product
type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	InStock  bool    `json:"in_stock"`
}

// ListProducts returns the storefront catalog
func (c *Client) ListProducts() ([]Product, error) {
	var products []Product
	if err := c.get("/api/products", &products); err != nil {
		return nil, err
	}
	return products, nil
}

// Order represents a customer order
type Order struct {
	ID            string  `json:"id"`
	Number        string  `json:"number"`
	CustomerEmail string  `json:"customer_email"`
	Total         float64 `json:"total"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"created_at"`
}

// ListOrders returns the caller's orders (all orders for back-office roles)
func (c *Client) ListOrders() ([]Order, error) {
	var orders []Order
	if err := c.get("/api/orders", &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// DashboardStats represents the admin dashboard summary
type DashboardStats struct {
	Revenue   float64 `json:"revenue"`
	Orders    int     `json:"orders"`
	Customers int     `json:"customers"`
	Pending   int     `json:"pending"`
}

// GetDashboardStats returns the admin dashboard summary
func (c *Client) GetDashboardStats() (*DashboardStats, error) {
	var stats DashboardStats
	if err := c.get("/api/admin/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// get issues an authenticated GET and decodes the JSON response
func (c *Client) get(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s%s", c.baseURL, path), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request to %s failed (status %d): %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
