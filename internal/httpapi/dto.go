package httpapi

import (
	"time"

	feedbackAuth "github.com/MrEthical07/feedbackAuth"
	"github.com/MrEthical07/feedbackAuth/permission"
)

type registerRequest struct {
	Email           string `json:"email"`
	Username        string `json:"username"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	Company         string `json:"company"`
	JobTitle        string `json:"job_title"`
	PhoneNumber     string `json:"phone_number"`
	Bio             string `json:"bio"`
}

func (r registerRequest) toEngine() feedbackAuth.RegisterRequest {
	return feedbackAuth.RegisterRequest{
		Email:           r.Email,
		Username:        r.Username,
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		Password:        r.Password,
		PasswordConfirm: r.PasswordConfirm,
		Company:         r.Company,
		JobTitle:        r.JobTitle,
		PhoneNumber:     r.PhoneNumber,
		Bio:             r.Bio,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type profileRequest struct {
	FirstName          *string `json:"first_name"`
	LastName           *string `json:"last_name"`
	Bio                *string `json:"bio"`
	PhoneNumber        *string `json:"phone_number"`
	Company            *string `json:"company"`
	JobTitle           *string `json:"job_title"`
	EmailNotifications *bool   `json:"email_notifications"`
}

func (r profileRequest) toEngine() feedbackAuth.ProfileUpdate {
	return feedbackAuth.ProfileUpdate{
		FirstName:          r.FirstName,
		LastName:           r.LastName,
		Bio:                r.Bio,
		PhoneNumber:        r.PhoneNumber,
		Company:            r.Company,
		JobTitle:           r.JobTitle,
		EmailNotifications: r.EmailNotifications,
	}
}

type changePasswordRequest struct {
	OldPassword        string `json:"old_password"`
	NewPassword        string `json:"new_password"`
	NewPasswordConfirm string `json:"new_password_confirm"`
}

type roleRequest struct {
	Role string `json:"role"`
}

type tokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type authResponse struct {
	tokenResponse
	User loginUser `json:"user"`
}

// loginUser is the compact user embedded in login and register responses.
type loginUser struct {
	ID              string          `json:"id"`
	Email           string          `json:"email"`
	Username        string          `json:"username"`
	FirstName       string          `json:"first_name"`
	LastName        string          `json:"last_name"`
	Role            permission.Role `json:"role"`
	IsEmailVerified bool            `json:"is_email_verified"`
}

type userProfile struct {
	ID                 string          `json:"id"`
	Email              string          `json:"email"`
	Username           string          `json:"username"`
	FirstName          string          `json:"first_name"`
	LastName           string          `json:"last_name"`
	FullName           string          `json:"full_name"`
	Role               permission.Role `json:"role"`
	Bio                string          `json:"bio"`
	PhoneNumber        string          `json:"phone_number"`
	Company            string          `json:"company"`
	JobTitle           string          `json:"job_title"`
	IsEmailVerified    bool            `json:"is_email_verified"`
	EmailNotifications bool            `json:"email_notifications"`
	LastLogin          *time.Time      `json:"last_login"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

type userSummary struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	Username  string          `json:"username"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	FullName  string          `json:"full_name"`
	Role      permission.Role `json:"role"`
	Company   string          `json:"company"`
	JobTitle  string          `json:"job_title"`
	IsActive  bool            `json:"is_active"`
	LastLogin *time.Time      `json:"last_login"`
	CreatedAt time.Time       `json:"created_at"`
}

type userList struct {
	Count   int           `json:"count"`
	Results []userSummary `json:"results"`
}

type message struct {
	Message string `json:"message"`
}

func newAuthResponse(res *feedbackAuth.AuthResult) authResponse {
	u := res.User
	return authResponse{
		tokenResponse: tokenResponse{Access: res.AccessToken, Refresh: res.RefreshToken},
		User: loginUser{
			ID:              u.ID,
			Email:           u.Email,
			Username:        u.Username,
			FirstName:       u.FirstName,
			LastName:        u.LastName,
			Role:            u.Role,
			IsEmailVerified: u.IsEmailVerified,
		},
	}
}

func newUserProfile(u *feedbackAuth.UserRecord) userProfile {
	return userProfile{
		ID:                 u.ID,
		Email:              u.Email,
		Username:           u.Username,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		FullName:           u.FullName(),
		Role:               u.Role,
		Bio:                u.Bio,
		PhoneNumber:        u.PhoneNumber,
		Company:            u.Company,
		JobTitle:           u.JobTitle,
		IsEmailVerified:    u.IsEmailVerified,
		EmailNotifications: u.EmailNotifications,
		LastLogin:          u.LastLogin,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func newUserList(users []*feedbackAuth.UserRecord) userList {
	out := userList{Count: len(users), Results: make([]userSummary, 0, len(users))}
	for _, u := range users {
		out.Results = append(out.Results, userSummary{
			ID:        u.ID,
			Email:     u.Email,
			Username:  u.Username,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			FullName:  u.FullName(),
			Role:      u.Role,
			Company:   u.Company,
			JobTitle:  u.JobTitle,
			IsActive:  u.IsActive,
			LastLogin: u.LastLogin,
			CreatedAt: u.CreatedAt,
		})
	}
	return out
}
