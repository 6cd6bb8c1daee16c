package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/accounts/internal/transport"
)

type call struct {
	method string
	path   string
	body   string
}

// fakeES answers every request with the next queued response.
type fakeES struct {
	calls     []call
	responses []*http.Response
}

func (f *fakeES) RoundTrip(req *http.Request) (*http.Response, error) {
	var body string
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		body = string(b)
	}
	f.calls = append(f.calls, call{method: req.Method, path: req.URL.Path, body: body})

	res := f.responses[0]
	f.responses = f.responses[1:]
	res.Request = req
	return res, nil
}

func respond(status int, body string) *http.Response {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("X-Elastic-Product", "Elasticsearch")
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

const infoBody = `{"version":{"number":"9.0.0","build_flavor":"default"},"tagline":"You Know, for Search"}`

func newDirectory(t *testing.T, responses ...*http.Response) (*Directory, *fakeES) {
	t.Helper()
	fake := &fakeES{responses: append([]*http.Response{respond(http.StatusOK, infoBody)}, responses...)}
	client, err := NewClient(context.Background(), Config{
		URL:       "http://es.local:9200",
		Transport: fake,
	})
	require.NoError(t, err)
	return NewDirectory(client, "accounts"), fake
}

func TestDirectory_Index(t *testing.T) {
	d, fake := newDirectory(t, respond(http.StatusCreated, `{"result":"created"}`))

	err := d.Index(context.Background(), transport.Account{ID: "42", UserName: "alice", Email: "a@x.com"})
	require.NoError(t, err)

	last := fake.calls[len(fake.calls)-1]
	assert.Equal(t, http.MethodPut, last.method)
	assert.Equal(t, "/accounts/_doc/42", last.path)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(last.body), &doc))
	assert.Equal(t, "alice", doc["userName"])
	assert.NotContains(t, last.body, "password")
}

func TestDirectory_Remove(t *testing.T) {
	d, fake := newDirectory(t,
		respond(http.StatusOK, `{"result":"deleted"}`),
		respond(http.StatusNotFound, `{"result":"not_found"}`),
		respond(http.StatusInternalServerError, `{"error":"boom"}`),
	)
	ctx := context.Background()

	require.NoError(t, d.Remove(ctx, "42"))
	assert.Equal(t, http.MethodDelete, fake.calls[1].method)
	assert.Equal(t, "/accounts/_doc/42", fake.calls[1].path)

	require.NoError(t, d.Remove(ctx, "42"), "already gone")

	err := d.Remove(ctx, "42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestDirectory_Search(t *testing.T) {
	d, fake := newDirectory(t, respond(http.StatusOK, `{
		"hits": {
			"total": {"value": 3},
			"hits": [
				{"_source": {"id": "1", "userName": "alice", "email": "a@x.com"}},
				{"_source": {"id": "2", "userName": "alicia", "email": "al@x.com"}}
			]
		}
	}`))

	accounts, total, err := d.Search(context.Background(), "alice", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, accounts, 2)
	assert.Equal(t, "alice", accounts[0].UserName)
	assert.Equal(t, "2", accounts[1].ID)

	last := fake.calls[len(fake.calls)-1]
	assert.Equal(t, "/accounts/_search", last.path)

	var q map[string]any
	require.NoError(t, json.Unmarshal([]byte(last.body), &q))
	assert.EqualValues(t, 0, q["from"])
	assert.EqualValues(t, 2, q["size"])
	assert.Contains(t, last.body, `"query":"alice"`)
}

func TestDirectory_SearchError(t *testing.T) {
	d, _ := newDirectory(t, respond(http.StatusBadRequest, `{"error":"parse_exception"}`))

	_, _, err := d.Search(context.Background(), "alice", 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse_exception")
}

func TestNewClient_InfoError(t *testing.T) {
	fake := &fakeES{responses: []*http.Response{respond(http.StatusUnauthorized, `{"error":"security_exception"}`)}}
	_, err := NewClient(context.Background(), Config{URL: "http://es.local:9200", Transport: fake})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "info")
}
