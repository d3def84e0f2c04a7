package interceptors

import (
	"context"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"collabhub/backend/internal/tenant"
)

// tenantMetadata is the gRPC metadata key carrying the organization id.
const tenantMetadata = "x-organization-id"

// TenantHTTP resolves the organization id of the request (path, then X-Organization-ID, then
// the organizationId query parameter) into the request context. The value only lives in that
// context, so it is gone once the handler returns on any path.
func TenantHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := tenant.Resolve(r); ok {
			r = r.WithContext(tenant.WithOrganization(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// TenantUnary is the gRPC counterpart of TenantHTTP, reading x-organization-id metadata.
func TenantUnary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			for _, v := range md.Get(tenantMetadata) {
				if id, ok := tenant.Parse(v); ok {
					ctx = tenant.WithOrganization(ctx, id)
					break
				}
			}
		}
		return handler(ctx, req)
	}
}
