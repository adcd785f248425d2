package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	feedbackAuth "github.com/MrEthical07/feedbackAuth"
)

// errBadRequest reports an undecodable body.
var errBadRequest = errors.New("malformed request body")

type problem struct {
	Detail string `json:"detail"`
}

var statusTable = []struct {
	err    error
	status int
	detail string
}{
	{feedbackAuth.ErrAlreadyRegistered, http.StatusBadRequest, "a user with this email or username already exists"},
	{feedbackAuth.ErrSelfModification, http.StatusBadRequest, "you cannot change your own role or active state"},
	{errBadRequest, http.StatusBadRequest, "malformed request body"},
	{feedbackAuth.ErrInvalidCredentials, http.StatusUnauthorized, "no active account found with the given credentials"},
	{feedbackAuth.ErrExpiredOrInvalidToken, http.StatusUnauthorized, "token is invalid or expired"},
	{feedbackAuth.ErrUnauthenticated, http.StatusUnauthorized, "authentication credentials were not provided"},
	{feedbackAuth.ErrForbidden, http.StatusForbidden, "access denied"},
	{feedbackAuth.ErrUserNotFound, http.StatusNotFound, "not found"},
	{feedbackAuth.ErrLoginRateLimited, http.StatusTooManyRequests, "too many login attempts, try again later"},
	{feedbackAuth.ErrRegistrationRateLimited, http.StatusTooManyRequests, "too many registrations, try again later"},
	{feedbackAuth.ErrRegisteredNoSession, http.StatusServiceUnavailable, "account created, sign in to continue"},
	{feedbackAuth.ErrStoreUnavailable, http.StatusServiceUnavailable, "service temporarily unavailable"},
	{feedbackAuth.ErrEngineNotReady, http.StatusServiceUnavailable, "service temporarily unavailable"},
}

// Status maps an engine error onto an HTTP status and a client-safe detail.
func Status(err error) (int, string) {
	for _, row := range statusTable {
		if errors.Is(err, row.err) {
			return row.status, row.detail
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

func writeError(c *gin.Context, err error) {
	var verr *feedbackAuth.ValidationError
	if errors.As(err, &verr) {
		c.AbortWithStatusJSON(http.StatusBadRequest, verr.Fields)
		return
	}

	status, detail := Status(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, problem{Detail: detail})
}

type handlerFunc func(c *gin.Context) error

// handle turns an error-returning handler into a gin handler.
func handle(h handlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h(c); err != nil {
			writeError(c, err)
		}
	}
}
