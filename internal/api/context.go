package api

import "context"

type contextKey string

const (
	ctxKeyUser      contextKey = "user"
	ctxKeyRequestID contextKey = "request_id"
)

func withUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, ctxKeyUser, username)
}

func userFromCtx(ctx context.Context) string {
	u, _ := ctx.Value(ctxKeyUser).(string)
	return u
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

func requestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}
