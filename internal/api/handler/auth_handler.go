package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medcloud/tenantgate/internal/api/middleware"
	"github.com/medcloud/tenantgate/internal/core/domain"
	"github.com/medcloud/tenantgate/internal/core/ports"
)

// AuthHandler serves owner and staff login, logout and session status.
type AuthHandler struct {
	auth     ports.AuthService
	subs     ports.SubscriptionService
	identity ports.IdentityService
	cookies  middleware.Cookies
}

func NewAuthHandler(
	auth ports.AuthService,
	subs ports.SubscriptionService,
	identity ports.IdentityService,
	cookies middleware.Cookies,
) *AuthHandler {
	return &AuthHandler{auth: auth, subs: subs, identity: identity, cookies: cookies}
}

// --- Request / Response types ---

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type staffLoginRequest struct {
	Username string `json:"username" validate:"required,max=64,username"`
	Password string `json:"password" validate:"required"`
	// Account is the owner email, needed when the username is not unique.
	Account string `json:"account,omitempty" validate:"omitempty,email"`
}

type accountResponse struct {
	ID          string             `json:"id"`
	Email       string             `json:"email"`
	CompanyName string             `json:"companyName"`
	TenantID    string             `json:"tenantId"`
	Role        domain.AccountRole `json:"role"`
	IsActive    bool               `json:"isActive"`
}

type staffResponse struct {
	ID       string           `json:"id"`
	Username string           `json:"username"`
	Name     string           `json:"name"`
	Email    string           `json:"email,omitempty"`
	Role     domain.StaffRole `json:"role"`
}

type loginResponse struct {
	Success       bool                     `json:"success"`
	Token         string                   `json:"token"`
	User          accountResponse          `json:"user"`
	Subscriptions []ports.SubscriptionView `json:"subscriptions"`
}

type staffLoginResponse struct {
	Success      bool          `json:"success"`
	User         staffResponse `json:"user"`
	IsMasterUser bool          `json:"is_master_user"`
}

type meResponse struct {
	Success       bool                     `json:"success"`
	Identity      domain.IdentityView      `json:"identity"`
	User          *accountResponse         `json:"user,omitempty"`
	Staff         *staffResponse           `json:"staff,omitempty"`
	Subscriptions []ports.SubscriptionView `json:"subscriptions"`
}

type sessionStatusResponse struct {
	IsLoggedIn   bool   `json:"is_logged_in"`
	Username     string `json:"username,omitempty"`
	Role         string `json:"role,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	IsMasterUser bool   `json:"is_master_user"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func toAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{
		ID:          a.ID,
		Email:       a.Email,
		CompanyName: a.CompanyName,
		TenantID:    a.TenantID,
		Role:        a.Role,
		IsActive:    a.Active,
	}
}

func toStaffResponse(s *domain.StaffMember) staffResponse {
	return staffResponse{ID: s.ID, Username: s.Username, Name: s.Name, Email: s.Email, Role: s.Role}
}

// bindAndValidate decodes the body into req and runs the registered validator.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// Login authenticates a tenant owner.
//
// @Summary      Owner login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  map[string]any
// @Failure      401   {object}  map[string]any
// @Failure      403   {object}  map[string]any
// @Failure      429   {object}  map[string]any
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.auth.Login(c.Request().Context(), ports.LoginInput{
		Email:         req.Email,
		Password:      req.Password,
		ClientKey:     c.RealIP(),
		SessionCookie: h.cookies.SessionCookie(c),
	})
	if err != nil {
		return err
	}

	h.cookies.SetTicket(c, res.Token, res.ExpiresAt)
	if res.IssuedSession != nil {
		h.cookies.SetSession(c, res.IssuedSession)
	}
	return c.JSON(http.StatusOK, loginResponse{
		Success:       true,
		Token:         res.Token,
		User:          toAccountResponse(res.Account),
		Subscriptions: res.Subscriptions,
	})
}

// Logout clears both credential cookies and destroys the server session.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  messageResponse
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.auth.Logout(c.Request().Context(), h.cookies.SessionCookie(c)); err != nil {
		return err
	}
	h.cookies.ClearTicket(c)
	h.cookies.ClearSession(c)
	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Logged out successfully"})
}

// Me returns the caller's profile and subscriptions.
//
// @Summary      Current identity
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  meResponse
// @Failure      401  {object}  map[string]any
// @Failure      403  {object}  map[string]any
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return domain.NewAuthRequired("", nil)
	}

	subs, err := h.subs.List(c.Request().Context(), id.AccountID())
	if err != nil {
		return err
	}

	resp := meResponse{Success: true, Identity: domain.Describe(id), Subscriptions: subs}
	switch v := id.(type) {
	case domain.OwnerIdentity:
		u := toAccountResponse(v.Account)
		resp.User = &u
	case domain.StaffIdentity:
		u := toAccountResponse(v.Owner)
		s := toStaffResponse(v.Staff)
		resp.User = &u
		resp.Staff = &s
	}
	return c.JSON(http.StatusOK, resp)
}

// Session reports the legacy session status. It never fails for missing or
// invalid credentials.
//
// @Summary      Session status
// @Tags         auth
// @Produce      json
// @Success      200  {object}  sessionStatusResponse
// @Router       /api/auth/session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	res, err := h.identity.Resolve(c.Request().Context(), ports.Credentials{
		TicketCookie:  h.cookies.TicketCookie(c),
		Authorization: c.Request().Header.Get(echo.HeaderAuthorization),
		SessionCookie: h.cookies.SessionCookie(c),
	})
	if err != nil {
		var gate *domain.GateError
		if errors.As(err, &gate) {
			return c.JSON(http.StatusOK, sessionStatusResponse{})
		}
		return err
	}
	if res.IssuedSession != nil {
		h.cookies.SetSession(c, res.IssuedSession)
	}

	status := sessionStatusResponse{IsLoggedIn: true}
	switch v := res.Identity.(type) {
	case domain.OwnerIdentity:
		status.Username = v.Account.Email
		status.Role = string(domain.StaffRoleAdmin)
		status.UserID = v.Account.ID
		status.IsMasterUser = true
	case domain.StaffIdentity:
		status.Username = v.Staff.Username
		status.Role = string(v.Staff.Role)
		status.UserID = v.Staff.ID
	}
	return c.JSON(http.StatusOK, status)
}

// StaffLogin authenticates a staff member and opens a server session.
//
// @Summary      Staff login
// @Tags         hospital
// @Accept       json
// @Produce      json
// @Param        body  body      staffLoginRequest  true  "Staff credentials"
// @Success      200   {object}  staffLoginResponse
// @Failure      400   {object}  map[string]any
// @Failure      401   {object}  map[string]any
// @Failure      403   {object}  map[string]any
// @Router       /api/hospital/auth/login [post]
func (h *AuthHandler) StaffLogin(c echo.Context) error {
	var req staffLoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.auth.StaffLogin(c.Request().Context(), ports.StaffLoginInput{
		Username:  req.Username,
		Password:  req.Password,
		Account:   req.Account,
		ClientKey: c.RealIP(),
	})
	if err != nil {
		return err
	}

	h.cookies.SetSession(c, res.Session)
	return c.JSON(http.StatusOK, staffLoginResponse{Success: true, User: toStaffResponse(res.Staff)})
}

// StaffLogout destroys the staff session.
//
// @Summary      Staff logout
// @Tags         hospital
// @Produce      json
// @Success      200  {object}  messageResponse
// @Router       /api/hospital/auth/logout [post]
func (h *AuthHandler) StaffLogout(c echo.Context) error {
	if err := h.auth.Logout(c.Request().Context(), h.cookies.SessionCookie(c)); err != nil {
		return err
	}
	h.cookies.ClearSession(c)
	return c.JSON(http.StatusOK, messageResponse{Success: true, Message: "Logged out successfully"})
}
