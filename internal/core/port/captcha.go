package port

import (
	"context"
	"errors"

	"github.com/certbridge/auth-service/internal/core/domain"
)

var (
	// ErrCaptchaTimeout indicates the challenge verifier did not answer in time.
	ErrCaptchaTimeout = errors.New("captcha verification timed out")
	// ErrCaptchaUnavailable indicates a transport or protocol failure talking
	// to the challenge verifier. It is never treated as a pass.
	ErrCaptchaUnavailable = errors.New("captcha verification unavailable")
)

// CaptchaVerifier delegates proof-of-humanity token verification to an
// external challenge service.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (*domain.CaptchaResult, error)
}
