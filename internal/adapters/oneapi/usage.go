package oneapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/zcw199604/one-api-hub/internal/core"
)

const (
	logPageSize = 100
	// Pagination safety cap: a misbehaving server that keeps reporting more
	// rows than it serves must not hold a refresh hostage. Hitting the cap
	// degrades to partial totals instead of failing the call.
	maxLogPages = 20
)

type logPageResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Data    logPage `json:"data"`
}

type logPage struct {
	Items []logItem
	Total int64
}

type logItem struct {
	Quota            float64 `json:"quota"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
}

// UnmarshalJSON tolerates both fork shapes of the log payload: New API wraps
// rows as {"items": […], "total": n}, older One API returns a bare array.
func (p *logPage) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var bare []logItem
		if err := json.Unmarshal(trimmed, &bare); err != nil {
			return err
		}
		p.Items = bare
		p.Total = -1 // unknown; pagination stops on a short page instead
		return nil
	}

	var wrapped struct {
		Items []logItem `json:"items"`
		Total int64     `json:"total"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return err
	}
	p.Items = wrapped.Items
	p.Total = wrapped.Total
	return nil
}

// GetUsageStats sums the account's self-log over the requested window by
// paginating /api/log/self: quota, prompt and completion tokens per row,
// with the server-reported row total as the request count.
func (a *Adapter) GetUsageStats(ctx context.Context, creds core.SiteCredentials, window core.TimeRange) (core.UsageStats, error) {
	if err := a.requireTokenAuth(creds); err != nil {
		return core.UsageStats{}, err
	}

	stats := core.UsageStats{RawUnit: rawUnit, ConversionFactor: conversionFactor}

	var fetched int64
	total := int64(-1)

	for page := 1; ; page++ {
		path := fmt.Sprintf("/api/log/self?p=%d&page_size=%d&type=0&start_timestamp=%d&end_timestamp=%d",
			page, logPageSize, window.Start, window.End)

		var resp logPageResponse
		if err := a.doGet(ctx, creds, path, &resp); err != nil {
			return core.UsageStats{}, err
		}
		if !resp.Success {
			return core.UsageStats{}, fmt.Errorf("oneapi: %s: %s", path, failureMessage(resp.Message))
		}

		for _, item := range resp.Data.Items {
			stats.RawConsumption += item.Quota
			stats.PromptTokens += item.PromptTokens
			stats.CompletionTokens += item.CompletionTokens
		}
		fetched += int64(len(resp.Data.Items))
		if resp.Data.Total >= 0 {
			total = resp.Data.Total
		}

		if total >= 0 && fetched >= total {
			break
		}
		if len(resp.Data.Items) < logPageSize {
			break
		}
		if page >= maxLogPages {
			log.Printf("[oneapi] log pagination cap (%d pages) reached for %s; usage totals are partial", maxLogPages, creds.SiteURL)
			break
		}
	}

	if total >= 0 {
		stats.RequestCount = total
	} else {
		stats.RequestCount = fetched
	}
	return stats, nil
}
