package infra

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

	"github.com/tnqbao/gau-review-orchestrator/config"
	"github.com/tnqbao/gau-review-orchestrator/entity"
)

// Record is a single row of a tabular record store (Airtable REST shape).
type Record struct {
	ID     string                 `json:"id"`
	Fields map[string]interface{} `json:"fields"`
}

type recordPage struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

type RecordStoreService struct {
	BaseURL string
	Token   string
	client  *http.Client
}

func InitRecordStoreService(cfg *config.EnvConfig) *RecordStoreService {
	return NewRecordStoreService(cfg.ExternalService.RecordStoreURL, cfg.ExternalService.RecordStoreToken, cfg.Review.WriteBackTimeout)
}

func NewRecordStoreService(baseURL, token string, timeout time.Duration) *RecordStoreService {
	return &RecordStoreService{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *RecordStoreService) tableURL(baseID, table string) string {
	return fmt.Sprintf("%s/%s/%s", s.BaseURL, url.PathEscape(baseID), url.PathEscape(table))
}

func (s *RecordStoreService) do(ctx context.Context, method, target string, body interface{}, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call record store: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read record store response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return &StatusError{Service: "record store", StatusCode: resp.StatusCode, Body: truncateBody(respBody), Err: ErrRecordNotFound}
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Service: "record store", StatusCode: resp.StatusCode, Body: truncateBody(respBody)}
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, dest); err != nil {
		return fmt.Errorf("failed to decode record store response: %w", err)
	}
	return nil
}

func (s *RecordStoreService) GetRecord(ctx context.Context, loc entity.RecordLocation) (*Record, error) {
	var record Record
	target := s.tableURL(loc.BaseID, loc.TableName) + "/" + url.PathEscape(loc.RecordID)
	if err := s.do(ctx, http.MethodGet, target, nil, &record); err != nil {
		return nil, err
	}
	if record.Fields == nil {
		record.Fields = map[string]interface{}{}
	}
	return &record, nil
}

// UpdateRecord patches only the given fields, leaving the rest of the row untouched.
func (s *RecordStoreService) UpdateRecord(ctx context.Context, loc entity.RecordLocation, fields map[string]interface{}) error {
	target := s.tableURL(loc.BaseID, loc.TableName) + "/" + url.PathEscape(loc.RecordID)
	return s.do(ctx, http.MethodPatch, target, map[string]interface{}{"fields": fields}, nil)
}

// ListRecords pages through a table. limit <= 0 reads every row.
func (s *RecordStoreService) ListRecords(ctx context.Context, baseID, table string, limit int) ([]Record, error) {
	var records []Record
	offset := ""

	for {
		query := url.Values{}
		query.Set("pageSize", "100")
		if limit > 0 {
			query.Set("maxRecords", strconv.Itoa(limit))
		}
		if offset != "" {
			query.Set("offset", offset)
		}

		var page recordPage
		if err := s.do(ctx, http.MethodGet, s.tableURL(baseID, table)+"?"+query.Encode(), nil, &page); err != nil {
			return nil, err
		}
		records = append(records, page.Records...)

		if page.Offset == "" || (limit > 0 && len(records) >= limit) {
			break
		}
		offset = page.Offset
	}

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
