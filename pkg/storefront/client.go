package storefront

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/greencart/internal/oas"
	"github.com/xenking/greencart/pkg/cart"
)

// ErrUnauthorized is returned when the server rejects the session.
var ErrUnauthorized = errors.New("not authorized")

// APIError is a {success:false} result reported by the server.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return "storefront: " + e.Message
}

// StatusError is an unexpected HTTP status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("storefront: unexpected status %d: %s", e.Code, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code >= http.StatusInternalServerError || e.Code == http.StatusTooManyRequests
}

// Client calls the storefront API. Session cookies set by Login are kept in
// the client's cookie jar.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the API at baseURL. When httpClient is nil
// a client with a cookie jar is created.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		jar, _ := cookiejar.New(nil)
		httpClient = &http.Client{Jar: jar}
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    httpClient,
	}
}

// Login signs a customer in and returns the account with its server cart.
func (c *Client) Login(ctx context.Context, email, password string) (*oas.User, error) {
	var resp oas.UserResponse
	if err := c.do(ctx, http.MethodPost, "/api/user/login", &oas.LoginRequest{
		Email:    email,
		Password: password,
	}, &resp); err != nil {
		return nil, err
	}
	if err := result(resp.Response); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// Me returns the signed-in customer.
func (c *Client) Me(ctx context.Context) (*oas.User, error) {
	var resp oas.UserResponse
	if err := c.do(ctx, http.MethodGet, "/api/user/is-auth", nil, &resp); err != nil {
		return nil, err
	}
	if err := result(resp.Response); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// Products returns the catalog.
func (c *Client) Products(ctx context.Context) ([]oas.Product, error) {
	var resp oas.ProductListResponse
	if err := c.do(ctx, http.MethodGet, "/api/product/list", nil, &resp); err != nil {
		return nil, err
	}
	if err := result(resp.Response); err != nil {
		return nil, err
	}
	return resp.Products, nil
}

// UpdateCart replaces the server copy of the user's cart.
func (c *Client) UpdateCart(ctx context.Context, userID string, items cart.Cart) error {
	var resp oas.Response
	if err := c.do(ctx, http.MethodPost, "/api/cart/update", &oas.CartUpdateRequest{
		UserID:    userID,
		CartItems: items,
	}, &resp); err != nil {
		return err
	}
	return result(resp)
}

func result(r oas.Response) error {
	if !r.Success {
		return &APIError{Message: r.Message}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body oas.Encoder, out oas.Decoder) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(oas.Marshal(body))
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return errors.Wrap(err, "read response")
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
	if err := oas.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}
