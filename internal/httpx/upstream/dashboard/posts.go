package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/vadim/neo-dashboard/internal/domain/calendar/entity"
)

// SearchPostsInput is the filter of GET /posts/search
type SearchPostsInput struct {
	Query      string
	Status     string
	From       string // YYYY-MM-DD
	To         string // YYYY-MM-DD
	AccountIDs []string
}

type searchPostsResponse struct {
	Posts []entity.Post `json:"posts"`
}

// SearchPosts retrieves the posts matching the filter
func (c *Client) SearchPosts(ctx context.Context, token string, in SearchPostsInput) ([]entity.Post, error) {
	params := url.Values{}
	params.Set("query", in.Query)
	params.Set("status", in.Status)
	params.Set("from", in.From)
	params.Set("to", in.To)
	for _, id := range in.AccountIDs {
		params.Add("account_ids[]", id)
	}

	body, err := c.get(ctx, token, "/posts/search", params.Encode())
	if err != nil {
		return nil, err
	}

	var out searchPostsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decoding posts: %w", ErrMalformedPayload, err)
	}
	if out.Posts == nil {
		out.Posts = []entity.Post{}
	}

	return out.Posts, nil
}
