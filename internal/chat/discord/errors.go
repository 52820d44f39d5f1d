package discord

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/vaidashi/hire-a-tutor/pkg/circuitbreaker"
	apperrors "github.com/vaidashi/hire-a-tutor/pkg/errors"
)

// classify maps a discordgo failure onto the application error taxonomy
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, circuitbreaker.ErrOpen) {
		return apperrors.NewUnavailableError("⚠️ Discord is having trouble right now. Please try again in a minute.").
			WithCause(err).WithContext("op", op)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.NewTimeoutError("⚠️ Discord took too long to respond.").WithCause(err).WithContext("op", op)
	}

	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		switch code := rest.Response.StatusCode; {
		case code == http.StatusForbidden || code == http.StatusUnauthorized:
			return apperrors.NewForbiddenError("⛔ I don't have permission to do that. Please contact an administrator.").
				WithCause(err).WithContext("op", op)
		case code == http.StatusNotFound:
			return apperrors.NewNotFoundError("❌ That channel or message no longer exists.").
				WithCause(err).WithContext("op", op)
		case code == http.StatusTooManyRequests:
			return apperrors.NewRateLimitedError("⏳ Discord is rate limiting me. Please try again shortly.").
				WithCause(err).WithContext("op", op)
		case code >= 500:
			return apperrors.NewTemporaryError("⚠️ Discord did not respond. Please try again later.").
				WithCause(err).WithContext("op", op)
		default:
			return apperrors.NewInternalError(fmt.Sprintf("⚠️ Discord rejected the request (%d).", code)).
				WithCause(err).WithContext("op", op)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.NewTemporaryError("⚠️ Discord did not respond. Please try again later.").
			WithCause(err).WithContext("op", op)
	}

	return apperrors.NewInternalError("⚠️ Something went wrong talking to Discord.").WithCause(err).WithContext("op", op)
}

// tripsBreaker reports whether err says Discord itself is unhealthy.
// Permission and not-found answers are the caller's problem.
func tripsBreaker(err error) bool {
	switch apperrors.KindOf(err) {
	case apperrors.KindPermission, apperrors.KindNotFound, apperrors.KindValidation:
		return false
	}
	return !errors.Is(err, apperrors.ErrInternal)
}
