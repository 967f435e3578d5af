package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/willow/pkg/context"
)

const (
	// HeaderTenantID is the header key for tenant ID
	HeaderTenantID = "X-Tenant-ID"
	// HeaderUserID is the header key for the user the repository is read as
	HeaderUserID = "X-User-ID"
	// HeaderCorrelationID ties published lineage events back to the request
	HeaderCorrelationID = "X-Correlation-ID"
)

// Context copies request identity headers into the request context. Missing request and
// correlation ids are generated, and the correlation id is echoed on the response.
func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			correlationID := req.Header.Get(HeaderCorrelationID)
			if correlationID == "" {
				correlationID = requestID
			}

			ctx := req.Context()
			ctx = appctx.SetRequestID(ctx, requestID)
			ctx = appctx.SetCorrelationID(ctx, correlationID)
			ctx = appctx.SetTenantID(ctx, req.Header.Get(HeaderTenantID))
			ctx = appctx.SetUserID(ctx, req.Header.Get(HeaderUserID))

			c.Response().Header().Set(HeaderCorrelationID, correlationID)
			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
