// Package remote stores tickets in a PostgREST-style table API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/vindesk/internal/clock"
	"github.com/smallbiznis/vindesk/internal/ticket/domain"
)

const restPath = "/rest/v1"

type Config struct {
	BaseURL string
	APIKey  string
	Table   string
	Timeout time.Duration
}

type Store struct {
	endpoint string
	apiKey   string
	client   *http.Client
	clock    clock.Clock
}

// row mirrors the remote table columns.
type row struct {
	ID         int64     `json:"id,omitempty"`
	VIN        string    `json:"vin"`
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username,omitempty"`
	Status     string    `json:"status"`
	AssigneeID *int64    `json:"assignee_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (r row) toDomain() domain.Ticket {
	updated := r.UpdatedAt
	if updated.IsZero() {
		updated = r.CreatedAt
	}
	return domain.Ticket{
		ID:          r.ID,
		Identifier:  r.VIN,
		RequesterID: r.UserID,
		DisplayName: r.Username,
		Status:      domain.Status(strings.ToUpper(r.Status)),
		AssigneeID:  r.AssigneeID,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   updated.UTC(),
	}
}

type statusPatch struct {
	Status     domain.Status `json:"status"`
	AssigneeID *int64        `json:"assignee_id,omitempty"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

func New(cfg Config, c clock.Clock) (*Store, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("%w: remote url is empty", domain.ErrBackendUnavailable)
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	if !strings.HasSuffix(base, restPath) {
		base += restPath
	}
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		table = "tickets"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Store{
		endpoint: base + "/" + url.PathEscape(table),
		apiKey:   strings.TrimSpace(cfg.APIKey),
		client:   &http.Client{Timeout: timeout},
		clock:    c,
	}, nil
}

func (s *Store) Backend() string { return domain.BackendRemote }

func (s *Store) Create(ctx context.Context, identifier string, requesterID int64, displayName string) (*domain.Ticket, error) {
	if strings.TrimSpace(identifier) == "" {
		return nil, domain.ErrInvalidIdentifier
	}
	now := s.clock.Now()
	rows, err := s.do(ctx, http.MethodPost, nil, row{
		VIN:       identifier,
		UserID:    requesterID,
		Username:  strings.TrimSpace(displayName),
		Status:    string(domain.StatusNew),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: create returned no rows", domain.ErrUnexpectedResponse)
	}
	ticket := rows[0].toDomain()
	return &ticket, nil
}

func (s *Store) Get(ctx context.Context, id int64) (*domain.Ticket, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("id", "eq."+strconv.FormatInt(id, 10))
	rows, err := s.do(ctx, http.MethodGet, q, nil)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	ticket := rows[0].toDomain()
	return &ticket, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id int64, status domain.Status, assigneeID *int64) (bool, error) {
	if !status.Valid() {
		return false, domain.ErrInvalidStatus
	}
	q := url.Values{}
	q.Set("id", "eq."+strconv.FormatInt(id, 10))
	rows, err := s.do(ctx, http.MethodPatch, q, statusPatch{Status: status, AssigneeID: assigneeID, UpdatedAt: s.clock.Now()})
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// CompareAndSetStatus relies on the table API applying the filter and the
// patch as one UPDATE statement; an empty result means the guard failed.
func (s *Store) CompareAndSetStatus(ctx context.Context, id int64, from []domain.Status, to domain.Status, assigneeID *int64) (bool, error) {
	if !to.Valid() || len(from) == 0 {
		return false, domain.ErrInvalidStatus
	}
	q := url.Values{}
	q.Set("id", "eq."+strconv.FormatInt(id, 10))
	q.Set("status", inFilter(from))
	rows, err := s.do(ctx, http.MethodPatch, q, statusPatch{Status: to, AssigneeID: assigneeID, UpdatedAt: s.clock.Now()})
	if err != nil {
		return false, err
	}
	return len(rows) == 1, nil
}

func (s *Store) FindOpen(ctx context.Context, identifier string, requesterID int64) (*domain.Ticket, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("vin", "eq."+identifier)
	q.Set("user_id", "eq."+strconv.FormatInt(requesterID, 10))
	q.Set("status", inFilter(domain.OpenStatuses))
	q.Set("order", "id.desc")
	q.Set("limit", "1")
	rows, err := s.do(ctx, http.MethodGet, q, nil)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	ticket := rows[0].toDomain()
	return &ticket, nil
}

func (s *Store) ListByRequester(ctx context.Context, requesterID int64, limit int) ([]domain.Ticket, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("user_id", "eq."+strconv.FormatInt(requesterID, 10))
	q.Set("order", "id.desc")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	rows, err := s.do(ctx, http.MethodGet, q, nil)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Ticket, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// Ping reads a single id to prove the table is reachable with our key.
func (s *Store) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("select", "id")
	q.Set("limit", "1")
	_, err := s.do(ctx, http.MethodGet, q, nil)
	return err
}

func (s *Store) do(ctx context.Context, method string, query url.Values, body any) ([]row, error) {
	target := s.endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: %s %d", domain.ErrBackendUnavailable, method, resp.StatusCode)
	}
	if resp.StatusCode == http.StatusConflict {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateOpen, strings.TrimSpace(string(raw)))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s %d: %s", domain.ErrUnexpectedResponse, method, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var rows []row
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnexpectedResponse, err)
	}
	return rows, nil
}

// inFilter renders a PostgREST "in" operator, e.g. in.(NEW,TAKEN).
func inFilter(statuses []domain.Status) string {
	parts := make([]string, 0, len(statuses))
	for _, status := range statuses {
		parts = append(parts, string(status))
	}
	return "in.(" + strings.Join(parts, ",") + ")"
}

var _ domain.Store = (*Store)(nil)
