// Package context carries the per-trigger identities through request and notification handling:
// who the build runs as, for which tenant, and the correlation id stamped on published events.
package context

import "context"

type ContextKey string

var (
	RequestIDKey     = ContextKey("X-Request-Id")
	TenantIDKey      = ContextKey("X-Tenant-Id")
	UserIDKey        = ContextKey("X-User-Id")
	CorrelationIDKey = ContextKey("X-Correlation-Id")
)

func get(ctx context.Context, key ContextKey) string {
	value, _ := ctx.Value(key).(string)
	return value
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string { return get(ctx, RequestIDKey) }

func SetTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

func GetTenantID(ctx context.Context) string { return get(ctx, TenantIDKey) }

// SetUserID stores the identity builds run as.
func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func GetUserID(ctx context.Context) string { return get(ctx, UserIDKey) }

// SetCorrelationID stores the id copied onto every event published for one trigger.
func SetCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

func GetCorrelationID(ctx context.Context) string { return get(ctx, CorrelationIDKey) }

// Fields returns the identities set on ctx as log fields, leaving out empty ones.
func Fields(ctx context.Context) map[string]any {
	fields := map[string]any{}
	for name, key := range map[string]ContextKey{
		"request_id":     RequestIDKey,
		"tenant_id":      TenantIDKey,
		"user_id":        UserIDKey,
		"correlation_id": CorrelationIDKey,
	} {
		if value := get(ctx, key); value != "" {
			fields[name] = value
		}
	}
	return fields
}
