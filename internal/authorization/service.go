package authorization

import (
	"context"
	"errors"

	authdomain "github.com/smallbiznis/voucherportal/internal/auth/domain"
)

type Service interface {
	// Authorize returns ErrForbidden when the user's role does not grant
	// action on object.
	Authorize(ctx context.Context, user *authdomain.User, object string, action string) error
}

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)
