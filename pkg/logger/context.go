package logger

import (
	"context"
	"log/slog"
)

type tenantKey struct{}

// WithTenant stores the tenant ID in ctx so TenantExtractor can add it to every record.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// TenantFromContext returns the tenant ID stored by WithTenant.
func TenantFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(tenantKey{}).(string)
	return id, ok && id != ""
}

// TenantExtractor adds tenant_id from ctx when present.
func TenantExtractor(ctx context.Context) (slog.Attr, bool) {
	id, ok := TenantFromContext(ctx)
	if !ok {
		return slog.Attr{}, false
	}
	return TenantID(id), true
}
