// Package gateway реализует HTTP клиент upstream API датчика:
// ленту измерений, вход и управление пользователями
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sensor-dashboard/internal/metrics"
	"sensor-dashboard/internal/models"
)

const (
	opFetchFeeds = "fetch_feeds"
	opLogin      = "login"
	opListUsers  = "list_users"
	opCreateUser = "create_user"
	opUpdateUser = "update_user"
	opDeleteUser = "delete_user"
)

// FeedQuery параметры запроса ленты; пустые даты означают отсутствие границы
type FeedQuery struct {
	Limit     int    `json:"limit"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// Client обращается к upstream API по базовому адресу
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создает клиента; timeout 0 оставляет поведение транспорта по умолчанию
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL возвращает базовый адрес upstream API
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchFeeds получает набор записей GET {base}/data
func (c *Client) FetchFeeds(ctx context.Context, q FeedQuery) (batch models.FeedBatch, err error) {
	defer c.observe(opFetchFeeds, time.Now(), &err)

	if q.Limit <= 0 {
		return nil, ErrInvalidLimit
	}

	path := "/data?limit=" + strconv.Itoa(q.Limit)
	if q.StartDate != "" {
		path += "&start_date=" + url.QueryEscape(q.StartDate)
	}
	if q.EndDate != "" {
		path += "&end_date=" + url.QueryEscape(q.EndDate)
	}

	var resp models.FeedsResponse
	if err := c.do(ctx, opFetchFeeds, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &ApplicationError{Op: opFetchFeeds, Message: resp.Error}
	}
	if resp.Feeds == nil {
		return models.FeedBatch{}, nil
	}
	return resp.Feeds, nil
}

// Login проверяет учетные данные POST {base}/login
func (c *Client) Login(ctx context.Context, email, senha string) (user *models.User, err error) {
	defer c.observe(opLogin, time.Now(), &err)

	var resp models.LoginResponse
	err = c.do(ctx, opLogin, http.MethodPost, "/login", models.LoginRequest{Email: email, Senha: senha}, &resp)
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			msg := httpErr.Message
			if msg == "" {
				msg = "Erro ao fazer login"
			}
			return nil, &ApplicationError{Op: opLogin, Message: msg}
		}
		return nil, err
	}
	if resp.Error != "" {
		return nil, &ApplicationError{Op: opLogin, Message: resp.Error}
	}
	if resp.User == nil {
		return nil, &DecodeError{Op: opLogin, Err: fmt.Errorf("response has no user")}
	}
	return resp.User, nil
}

// ListUsers GET {base}/users
func (c *Client) ListUsers(ctx context.Context) (users []models.User, err error) {
	defer c.observe(opListUsers, time.Now(), &err)

	if err := c.do(ctx, opListUsers, http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// CreateUser POST {base}/users
func (c *Client) CreateUser(ctx context.Context, in models.UserInput) (out json.RawMessage, err error) {
	defer c.observe(opCreateUser, time.Now(), &err)

	if err := c.do(ctx, opCreateUser, http.MethodPost, "/users", in.Payload(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateUser PUT {base}/users/{id}
func (c *Client) UpdateUser(ctx context.Context, id int, in models.UserInput) (out json.RawMessage, err error) {
	defer c.observe(opUpdateUser, time.Now(), &err)

	if err := c.do(ctx, opUpdateUser, http.MethodPut, "/users/"+strconv.Itoa(id), in.Payload(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteUser DELETE {base}/users/{id}
func (c *Client) DeleteUser(ctx context.Context, id int) (err error) {
	defer c.observe(opDeleteUser, time.Now(), &err)

	return c.do(ctx, opDeleteUser, http.MethodDelete, "/users/"+strconv.Itoa(id), nil, nil)
}

// do выполняет запрос и раскладывает ошибки по типам
func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, mErr := json.Marshal(body)
		if mErr != nil {
			return fmt.Errorf("%s: failed to marshal request: %w", op, mErr)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &HTTPError{
			Op:         op,
			Status:     resp.StatusCode,
			StatusText: statusText(resp),
		}
		var payload struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&payload) == nil {
			httpErr.Message = payload.Error
		}
		return httpErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

// observe учитывает длительность и исход вызова
func (c *Client) observe(op string, start time.Time, err *error) {
	metrics.UpstreamDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.UpstreamRequests.WithLabelValues(op, outcome(*err)).Inc()
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
