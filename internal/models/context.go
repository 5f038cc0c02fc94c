package models

import "context"

type requestMetaKey struct{}

// RequestMeta carries supplementary request data through context so the
// fraud gate can record login locations without changing the service
// signatures.
type RequestMeta struct {
	Location  string // coarse geo/IP location resolved by the layer above
	UserAgent string
}

// WithRequestMeta attaches request metadata to a context.
func WithRequestMeta(ctx context.Context, meta *RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// GetRequestMeta retrieves request metadata from context, or nil if absent.
func GetRequestMeta(ctx context.Context) *RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(*RequestMeta)
	return meta
}
