package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/elastic/go-elasticsearch/v9/esapi"

	"github.com/Skotchmaster/accounts/internal/transport"
)

type Config struct {
	URL      string
	User     string
	Password string

	// Transport replaces the HTTP transport; tests use it.
	Transport http.RoundTripper
}

func NewClient(ctx context.Context, cfg Config) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: new client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("info", res)
	}
	return client, nil
}

// Directory keeps a searchable copy of live accounts in one index.
type Directory struct {
	ES        *elasticsearch.Client
	IndexName string
}

func NewDirectory(es *elasticsearch.Client, index string) *Directory {
	return &Directory{ES: es, IndexName: index}
}

func (d *Directory) Index(ctx context.Context, acc transport.Account) error {
	body, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("elasticsearch: marshal account: %w", err)
	}

	res, err := d.ES.Index(
		d.IndexName,
		bytes.NewReader(body),
		d.ES.Index.WithContext(ctx),
		d.ES.Index.WithDocumentID(acc.ID),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch: index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index", res)
	}
	return nil
}

// Remove deletes the document of accountID. A missing document is not an error.
func (d *Directory) Remove(ctx context.Context, accountID string) error {
	res, err := d.ES.Delete(d.IndexName, accountID, d.ES.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch: delete: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete", res)
	}
	return nil
}

func (d *Directory) Search(ctx context.Context, query string, from, size int) ([]transport.Account, int64, error) {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"userName^2", "email"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, 0, fmt.Errorf("elasticsearch: encode query: %w", err)
	}

	res, err := d.ES.Search(
		d.ES.Search.WithContext(ctx),
		d.ES.Search.WithIndex(d.IndexName),
		d.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("elasticsearch: search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, 0, responseError("search", res)
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source transport.Account `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, 0, fmt.Errorf("elasticsearch: decode search: %w", err)
	}

	accounts := make([]transport.Account, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		accounts[i] = hit.Source
	}
	return accounts, r.Hits.Total.Value, nil
}

func responseError(op string, res *esapi.Response) error {
	b, _ := io.ReadAll(io.LimitReader(res.Body, 1<<10))
	return fmt.Errorf("elasticsearch: %s: %s: %s", op, res.Status(), strings.TrimSpace(string(b)))
}
