// Package adapterbase centralizes adapter metadata handling. Site-specific
// packages embed Base and implement the operation interfaces they declare.
package adapterbase

import "github.com/zcw199604/one-api-hub/internal/core"

// Base holds the immutable metadata descriptor for an adapter.
type Base struct {
	meta core.AdapterMetadata
}

func New(meta core.AdapterMetadata) Base {
	normalized := meta
	if normalized.Name == "" {
		normalized.Name = normalized.ID
	}
	if normalized.Version == "" {
		normalized.Version = "1.0.0"
	}
	normalized.SiteTypes = append([]string(nil), meta.SiteTypes...)
	normalized.Capabilities = append([]core.Capability(nil), meta.Capabilities...)
	if meta.Balance != nil {
		balance := *meta.Balance
		normalized.Balance = &balance
	}
	return Base{meta: normalized}
}

// Metadata returns a defensive copy so callers cannot mutate the descriptor.
func (b Base) Metadata() core.AdapterMetadata {
	out := b.meta
	out.SiteTypes = append([]string(nil), b.meta.SiteTypes...)
	out.Capabilities = append([]core.Capability(nil), b.meta.Capabilities...)
	if b.meta.Balance != nil {
		balance := *b.meta.Balance
		out.Balance = &balance
	}
	return out
}
