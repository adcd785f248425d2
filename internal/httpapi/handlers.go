package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	feedbackAuth "github.com/MrEthical07/feedbackAuth"
	"github.com/MrEthical07/feedbackAuth/middleware"
	"github.com/MrEthical07/feedbackAuth/permission"
)

const maxPageSize = 100

type handler struct {
	engine *feedbackAuth.Engine
}

func bind(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return errBadRequest
	}
	return nil
}

func identity(c *gin.Context) *feedbackAuth.Identity {
	id, _ := middleware.IdentityFromContext(c.Request.Context())
	return id
}

func (h *handler) health(c *gin.Context) {
	if err := h.engine.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) register(c *gin.Context) error {
	var req registerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.engine.Register(c.Request.Context(), req.toEngine())
	if err != nil {
		return err
	}
	c.JSON(http.StatusCreated, newAuthResponse(res))
	return nil
}

func (h *handler) login(c *gin.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	verr := &feedbackAuth.ValidationError{}
	if strings.TrimSpace(req.Email) == "" {
		verr.Add("email", "this field is required")
	}
	if req.Password == "" {
		verr.Add("password", "this field is required")
	}
	if verr.HasErrors() {
		return verr
	}

	res, err := h.engine.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, newAuthResponse(res))
	return nil
}

func (h *handler) refresh(c *gin.Context) error {
	var req refreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Refresh == "" {
		return feedbackAuth.NewValidationError("refresh", "this field is required")
	}
	pair, err := h.engine.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, tokenResponse{Access: pair.AccessToken, Refresh: pair.RefreshToken})
	return nil
}

// logout is best-effort: an empty or undecodable body still answers 204.
func (h *handler) logout(c *gin.Context) error {
	var req logoutRequest
	_ = c.ShouldBindJSON(&req)
	if req.RefreshToken != "" {
		if err := h.engine.Logout(c.Request.Context(), req.RefreshToken); err != nil {
			return err
		}
	}
	c.Status(http.StatusNoContent)
	return nil
}

func (h *handler) me(c *gin.Context) error {
	u, err := h.engine.Me(c.Request.Context(), identity(c))
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, newUserProfile(u))
	return nil
}

func (h *handler) updateProfile(c *gin.Context) error {
	var req profileRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := h.engine.UpdateProfile(c.Request.Context(), identity(c), req.toEngine())
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, newUserProfile(u))
	return nil
}

func (h *handler) changePassword(c *gin.Context) error {
	var req changePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	err := h.engine.ChangePassword(c.Request.Context(), identity(c), req.OldPassword, req.NewPassword, req.NewPasswordConfirm)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, message{Message: "password has been changed successfully"})
	return nil
}

func (h *handler) listUsers(c *gin.Context) error {
	filter, err := parseFilter(c)
	if err != nil {
		return err
	}
	users, err := h.engine.ListUsers(c.Request.Context(), identity(c), filter)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, newUserList(users))
	return nil
}

func parseFilter(c *gin.Context) (feedbackAuth.UserFilter, error) {
	filter := feedbackAuth.UserFilter{
		Search:   c.Query("search"),
		Ordering: c.Query("ordering"),
		Limit:    maxPageSize,
	}
	for _, raw := range c.QueryArray("role") {
		for _, r := range strings.Split(raw, ",") {
			if r = strings.TrimSpace(r); r != "" {
				filter.Roles = append(filter.Roles, permission.Role(strings.ToLower(r)))
			}
		}
	}

	var err error
	if filter.Limit, err = intQuery(c, "limit", maxPageSize); err != nil {
		return filter, err
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset, err = intQuery(c, "offset", 0); err != nil {
		return filter, err
	}
	return filter, nil
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, feedbackAuth.NewValidationError(name, fmt.Sprintf("%s must be a non-negative integer", name))
	}
	return n, nil
}

func (h *handler) getUser(c *gin.Context) error {
	u, err := h.engine.GetUser(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, newUserProfile(u))
	return nil
}

func (h *handler) updateUser(c *gin.Context) error {
	var req profileRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := h.engine.UpdateUser(c.Request.Context(), identity(c), c.Param("id"), req.toEngine())
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, newUserProfile(u))
	return nil
}

func (h *handler) updateRole(c *gin.Context) error {
	var req roleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := h.engine.UpdateRole(c.Request.Context(), identity(c), c.Param("id"), permission.Role(req.Role))
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, newUserProfile(u))
	return nil
}

func (h *handler) deactivate(c *gin.Context) error {
	u, err := h.engine.Deactivate(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, message{Message: fmt.Sprintf("user %s has been deactivated", u.Email)})
	return nil
}

func (h *handler) activate(c *gin.Context) error {
	u, err := h.engine.Activate(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, message{Message: fmt.Sprintf("user %s has been activated", u.Email)})
	return nil
}

func (h *handler) stats(c *gin.Context) error {
	counts, err := h.engine.Stats(c.Request.Context(), identity(c))
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, counts)
	return nil
}
