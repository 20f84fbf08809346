package openai

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/article-matcher/internal/common"
	"github.com/joseph-ayodele/article-matcher/internal/llm"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" || r.Header.Get("Authorization") != "Bearer test-key" {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		if err := json.Unmarshal(body, &req); err != nil || req["model"] != "gpt-4o-mini" {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		resp := map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(url string, lenient bool) *Client {
	return NewClient(Config{
		APIKey:          "test-key",
		BaseURL:         url,
		LenientOptional: lenient,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var sample = []llm.CatalogEntry{
	{ID: 1, Label: "Буровая коронка BL-4590"},
	{ID: 2, Label: "Штанга буровая R32"},
}

func TestSuggestMatch(t *testing.T) {
	srv := chatServer(t, `{"record_id":2,"confidence":91,"reason":"same rod"}`)
	defer srv.Close()

	got, err := newTestClient(srv.URL, false).SuggestMatch(t.Context(), llm.MatchRequest{Query: "штанга R-32", Sample: sample})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.RecordID)
	assert.Equal(t, 91.0, got.Confidence)
}

func TestSuggestMatch_NullRecord(t *testing.T) {
	srv := chatServer(t, "```json\n{\"record_id\":null,\"confidence\":0}\n```")
	defer srv.Close()

	got, err := newTestClient(srv.URL, false).SuggestMatch(t.Context(), llm.MatchRequest{Query: "что-то", Sample: sample})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSuggestMatch_UnknownRecordDiscarded(t *testing.T) {
	srv := chatServer(t, `{"record_id":99,"confidence":95}`)
	defer srv.Close()

	got, err := newTestClient(srv.URL, false).SuggestMatch(t.Context(), llm.MatchRequest{Query: "x", Sample: sample})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSuggestMatch_Lenient(t *testing.T) {
	srv := chatServer(t, `{"record_id":"1","confidence":"0.8"}`)
	defer srv.Close()

	_, err := newTestClient(srv.URL, false).SuggestMatch(t.Context(), llm.MatchRequest{Query: "коронка", Sample: sample})
	require.Error(t, err)

	got, err := newTestClient(srv.URL, true).SuggestMatch(t.Context(), llm.MatchRequest{Query: "коронка", Sample: sample})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.RecordID)
	assert.InDelta(t, 80.0, got.Confidence, 1e-9)
}

func TestSuggestMatch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, false).SuggestMatch(t.Context(), llm.MatchRequest{Query: "x", Sample: sample})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrAssistUnavailable)
}

func TestSuggestMatch_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	c := NewClient(Config{}, nil)
	_, err := c.SuggestMatch(t.Context(), llm.MatchRequest{Query: "x", Sample: sample})
	assert.ErrorIs(t, err, common.ErrAssistUnavailable)
}

func TestInferColumns(t *testing.T) {
	srv := chatServer(t, `{"header_row":2,"identifier_column":1,"descriptive_column":3}`)
	defer srv.Close()

	rows := [][]string{
		{"Счёт №12", "", ""},
		{"Арт.", "Кол-во", "Товар"},
		{"BL-4590", "2", "Коронка"},
	}
	got, err := newTestClient(srv.URL, false).InferColumns(t.Context(), rows)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, llm.ColumnSuggestion{HeaderRow: 2, IdentifierColumn: 1, DescriptiveColumn: 3}, *got)
}

func TestInferColumns_OutOfRange(t *testing.T) {
	srv := chatServer(t, `{"header_row":1,"identifier_column":7,"descriptive_column":0}`)
	defer srv.Close()

	_, err := newTestClient(srv.URL, false).InferColumns(t.Context(), [][]string{{"a", "b"}})
	assert.Error(t, err)
}
