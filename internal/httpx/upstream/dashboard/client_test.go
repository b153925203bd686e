package dashboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadim/neo-dashboard/internal/domain/calendar/entity"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(WithBaseURL(srv.URL + "/api/")), srv
}

func TestNew_Options(t *testing.T) {
	c := New()
	assert.Equal(t, defaultBaseURL, c.baseURL)
	assert.Equal(t, defaultTimeout, c.httpClient.Timeout)

	custom := &http.Client{}
	c = New(WithBaseURL("http://example.test/api///"), WithHTTPClient(custom), WithTimeout(5*time.Second))
	assert.Equal(t, "http://example.test/api", c.baseURL)
	assert.Same(t, custom, c.httpClient)
	assert.Equal(t, 5*time.Second, c.httpClient.Timeout)

	c = New(WithBaseURL(""), WithHTTPClient(nil), WithTimeout(0))
	assert.Equal(t, defaultBaseURL, c.baseURL)
	assert.Equal(t, defaultTimeout, c.httpClient.Timeout)
}

func TestClient_GetAnalytics(t *testing.T) {
	var gotPath, gotQuery, gotAuth, gotAccept string
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		gotAuth, gotAccept = r.Header.Get("Authorization"), r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"api_calls_used": 3,
			"api_calls_remaining": 7,
			"data": [
				{"account_id": 7, "account_name": "cyber.uz", "platform": "instagram",
				 "metrics": {"followers": 1200}, "fetched_at": "2025-11-15T09:00:00Z"},
				{"id": "8", "username": "neo", "platform_type": "tiktok", "views": 55}
			]
		}`))
	})

	t.Run("cached", func(t *testing.T) {
		p, err := c.GetAnalytics(context.Background(), "secret", true)
		require.NoError(t, err)

		assert.Equal(t, "/api/analytics", gotPath)
		assert.Equal(t, "cache=true", gotQuery)
		assert.Equal(t, "Bearer secret", gotAuth)
		assert.Equal(t, "application/json", gotAccept)

		assert.True(t, p.Success)
		assert.Equal(t, 3, p.APICallsUsed)
		assert.Equal(t, 7, p.APICallsRemaining)
		require.Len(t, p.Data, 2)

		assert.Equal(t, "7", p.Data[0].AccountID)
		assert.Equal(t, "cyber.uz", p.Data[0].AccountName)
		assert.Equal(t, "instagram", p.Data[0].Platform)
		assert.JSONEq(t, `{"followers": 1200}`, string(p.Data[0].Metrics))
		require.NotNil(t, p.Data[0].FetchedAt)
		assert.True(t, p.Data[0].FetchedAt.Equal(time.Date(2025, time.November, 15, 9, 0, 0, 0, time.UTC)))

		assert.Equal(t, "8", p.Data[1].AccountID)
		assert.Equal(t, "neo", p.Data[1].AccountName)
		assert.Equal(t, "tiktok", p.Data[1].Platform)
		assert.Contains(t, string(p.Data[1].Metrics), `"views": 55`)
	})

	t.Run("fresh", func(t *testing.T) {
		_, err := c.GetAnalytics(context.Background(), "secret", false)
		require.NoError(t, err)
		assert.Equal(t, "", gotQuery)
	})
}

func TestParseAnalytics(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		records     int
		wantErr     error
		wantLimit   bool
		wantFailure string
	}{
		{name: "null data", body: `{"success":true,"data":null,"api_calls_used":1,"api_calls_remaining":9}`},
		{name: "missing data", body: `{"success":true,"api_calls_used":1,"api_calls_remaining":9}`},
		{name: "empty data", body: `{"success":true,"data":[],"api_calls_used":1,"api_calls_remaining":9}`},
		{name: "records", body: `{"success":true,"data":[{"id":1},{"id":2}],"api_calls_used":1,"api_calls_remaining":9}`, records: 2},
		{name: "not an object", body: `[1,2,3]`, wantErr: ErrMalformedPayload},
		{name: "missing counters", body: `{"success":true,"data":[]}`, wantErr: ErrMalformedPayload},
		{name: "string counters", body: `{"success":true,"data":[],"api_calls_used":"1","api_calls_remaining":"9"}`, wantErr: ErrMalformedPayload},
		{name: "data is an object", body: `{"success":true,"data":{"id":1},"api_calls_used":1,"api_calls_remaining":9}`, wantErr: ErrMalformedPayload},
		{name: "record is a scalar", body: `{"success":true,"data":[1],"api_calls_used":1,"api_calls_remaining":9}`, wantErr: ErrMalformedPayload},
		{name: "limit reported with 200", body: `{"success":false,"error":"Refresh limit exceeded","api_calls_used":10,"api_calls_remaining":0}`, wantLimit: true},
		{name: "failure reported with 200", body: `{"success":false,"error":"Instagram API unavailable","data":null,"api_calls_used":4,"api_calls_remaining":6}`, wantFailure: "Instagram API unavailable"},
		{name: "failure without message", body: `{"success":false,"api_calls_used":4,"api_calls_remaining":6}`, wantFailure: "request was not successful"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := parseAnalytics([]byte(tt.body))
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantLimit:
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.True(t, apiErr.IsLimitExceeded())
				used, remaining, ok := apiErr.Quota()
				assert.True(t, ok)
				assert.Equal(t, 10, used)
				assert.Equal(t, 0, remaining)
			case tt.wantFailure != "":
				assert.Nil(t, p)
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusOK, apiErr.StatusCode)
				assert.Equal(t, tt.wantFailure, apiErr.Message)
				assert.False(t, apiErr.IsLimitExceeded())
			default:
				require.NoError(t, err)
				assert.NotNil(t, p.Data)
				assert.Len(t, p.Data, tt.records)
			}
		})
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
		limit   bool
		quotaOK bool
		wantErr error
		wantAPI bool
	}{
		{name: "429", status: http.StatusTooManyRequests, body: `{"error":"Refresh limit exceeded"}`, message: "Refresh limit exceeded", limit: true, wantAPI: true},
		{name: "429 with counters", status: http.StatusTooManyRequests, body: `{"error":"x","api_calls_used":10,"api_calls_remaining":0}`, message: "x", limit: true, quotaOK: true, wantAPI: true},
		{name: "429 with string counters", status: http.StatusTooManyRequests, body: `{"error":"x","api_calls_used":"10","api_calls_remaining":"0"}`, message: "x", limit: true, wantAPI: true},
		{name: "403 limit message", status: http.StatusForbidden, body: `{"message":"Daily API limit exceeded"}`, message: "Daily API limit exceeded", limit: true, wantAPI: true},
		{name: "nested message", status: http.StatusUnauthorized, body: `{"error":{"message":"token expired"}}`, message: "token expired", wantAPI: true},
		{name: "html 500", status: http.StatusInternalServerError, body: `<html>oops</html>`, message: "Internal Server Error", wantAPI: true},
		{name: "200 not json", status: http.StatusOK, body: `<html>login</html>`, wantErr: ErrMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.GetAnalytics(context.Background(), "tok", false)
			require.Error(t, err)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if !tt.wantAPI {
				return
			}

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.Equal(t, tt.limit, apiErr.IsLimitExceeded())
			_, _, ok := apiErr.Quota()
			assert.Equal(t, tt.quotaOK, ok)
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(WithBaseURL(url))
	_, err := c.GetAnalytics(context.Background(), "tok", true)
	assert.ErrorIs(t, err, ErrNetwork)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestClient_SearchPosts(t *testing.T) {
	var query map[string][]string
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/posts/search", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		query = r.URL.Query()
		w.Write([]byte(`{"posts":[
			{"id": 1, "status": "scheduled", "scheduled_at": "2025-11-15T10:00:00Z", "created_at": "2025-11-01T00:00:00Z", "brand_name": "Neo", "platform_type": "instagram", "content": "hello"},
			{"id": "2", "status": "draft", "scheduled_at": null, "created_at": "2025-11-02T00:00:00Z"}
		]}`))
	})

	posts, err := c.SearchPosts(context.Background(), "tok", SearchPostsInput{
		Query:      "launch",
		Status:     "scheduled",
		From:       "2025-10-26",
		To:         "2025-12-06",
		AccountIDs: []string{"7", "9"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"launch"}, query["query"])
	assert.Equal(t, []string{"scheduled"}, query["status"])
	assert.Equal(t, []string{"2025-10-26"}, query["from"])
	assert.Equal(t, []string{"2025-12-06"}, query["to"])
	assert.Equal(t, []string{"7", "9"}, query["account_ids[]"])

	require.Len(t, posts, 2)
	assert.Equal(t, entity.PostID("1"), posts[0].ID)
	assert.Equal(t, entity.PostStatusScheduled, posts[0].Status)
	require.NotNil(t, posts[0].ScheduledAt)
	assert.Equal(t, "2025-11-15T10:00:00Z", *posts[0].ScheduledAt)
	assert.Equal(t, "Neo", posts[0].BrandName)
	assert.Nil(t, posts[1].ScheduledAt)
}

func TestClient_SearchPosts_NonStringDate(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"posts":[
			{"id": 1, "status": "scheduled", "scheduled_at": "2025-11-15T10:00:00Z", "created_at": "2025-11-01T00:00:00Z"},
			{"id": 2, "scheduled_at": null, "created_at": 1730419200}
		]}`))
	})

	posts, err := c.SearchPosts(context.Background(), "tok", SearchPostsInput{})
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert.Equal(t, entity.PostID("1"), posts[0].ID)
	assert.Equal(t, entity.PostID("2"), posts[1].ID)
	_, err = posts[1].EffectiveDate(time.UTC)
	assert.ErrorIs(t, err, entity.ErrInvalidPostDate)
}

func TestClient_SearchPosts_Empty(t *testing.T) {
	for _, body := range []string{`{"posts":null}`, `{}`} {
		c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})

		posts, err := c.SearchPosts(context.Background(), "tok", SearchPostsInput{})
		require.NoError(t, err)
		assert.NotNil(t, posts)
		assert.Empty(t, posts)
	}
}

func TestClient_SearchPosts_Malformed(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"posts":"nope"}`))
	})

	_, err := c.SearchPosts(context.Background(), "tok", SearchPostsInput{})
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
