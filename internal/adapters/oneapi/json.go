package oneapi

import (
	"bytes"
	"encoding/json"
)

// unmarshalItemsOrArray decodes list payloads that arrive either as a bare
// JSON array (One API) or wrapped as {"items": […]} (New API and friends).
func unmarshalItemsOrArray[T any](data []byte, out *[]T) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}
	var wrapped struct {
		Items []T `json:"items"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return err
	}
	*out = wrapped.Items
	return nil
}
