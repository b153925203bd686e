package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/vadim/neo-dashboard/internal/domain/analytics/entity"
)

// GetAnalytics calls GET /analytics. With cached set the server answers from its cache
// without spending quota; without it a live computation consumes one call.
func (c *Client) GetAnalytics(ctx context.Context, token string, cached bool) (*entity.Payload, error) {
	params := url.Values{}
	if cached {
		params.Set("cache", "true")
	}

	body, err := c.get(ctx, token, "/analytics", params.Encode())
	if err != nil {
		return nil, err
	}

	return parseAnalytics(body)
}

// parseAnalytics validates the analytics envelope and extracts its records
func parseAnalytics(body []byte) (*entity.Payload, error) {
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: analytics body is not an object", ErrMalformedPayload)
	}

	// A 200 with success=false is a failure, including a spent quota on some deployments
	if success := root.Get("success"); success.Exists() && !success.Bool() {
		apiErr := newAPIError(http.StatusOK, body)
		if apiErr.Message == http.StatusText(http.StatusOK) {
			apiErr.Message = "request was not successful"
		}
		return nil, apiErr
	}

	used := root.Get("api_calls_used")
	remaining := root.Get("api_calls_remaining")
	if used.Type != gjson.Number || remaining.Type != gjson.Number {
		return nil, fmt.Errorf("%w: missing api call counters", ErrMalformedPayload)
	}

	payload := &entity.Payload{
		Success:           root.Get("success").Bool(),
		APICallsUsed:      int(used.Int()),
		APICallsRemaining: int(remaining.Int()),
		Data:              []entity.AccountAnalytics{},
	}

	data := root.Get("data")
	switch {
	case !data.Exists() || data.Type == gjson.Null:
	case data.IsArray():
		for _, item := range data.Array() {
			if !item.IsObject() {
				return nil, fmt.Errorf("%w: analytics record is not an object", ErrMalformedPayload)
			}
			payload.Data = append(payload.Data, parseAccountAnalytics(item))
		}
	default:
		return nil, fmt.Errorf("%w: data is neither an array nor null", ErrMalformedPayload)
	}

	return payload, nil
}

func parseAccountAnalytics(item gjson.Result) entity.AccountAnalytics {
	rec := entity.AccountAnalytics{
		AccountID:   firstString(item, "account_id", "id"),
		AccountName: firstString(item, "account_name", "name", "username"),
		Platform:    firstString(item, "platform", "platform_type"),
	}

	if metrics := item.Get("metrics"); metrics.Exists() {
		rec.Metrics = []byte(metrics.Raw)
	} else {
		rec.Metrics = []byte(item.Raw)
	}

	if ts := item.Get("fetched_at"); ts.Exists() {
		if t := ts.Time(); !t.IsZero() {
			rec.FetchedAt = &t
		}
	}

	return rec
}

func firstString(item gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := item.Get(p); v.Exists() && v.Type != gjson.Null {
			return v.String()
		}
	}
	return ""
}
