package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxConference
	ctxRole
)

func WithIdentity(ctx context.Context, userID, conference, role string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxConference, conference)
	ctx = context.WithValue(ctx, ctxRole, role)
	return ctx
}

func UserID(ctx context.Context) (string, error) {
	return stringValue(ctx, ctxUserID, "user_id")
}

func Conference(ctx context.Context) (string, error) {
	return stringValue(ctx, ctxConference, "conference")
}

func Role(ctx context.Context) (string, error) {
	return stringValue(ctx, ctxRole, "role")
}

func stringValue(ctx context.Context, key ctxKey, name string) (string, error) {
	if s, ok := ctx.Value(key).(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New(name + " not in context")
}
