package handler

import (
	"time"

	"github.com/natours/tour-booking/internal/core/domain"
)

// --- Request types ---

type signupRequest struct {
	Name            string `json:"name"            validate:"required"`
	Email           string `json:"email"           validate:"required,email"`
	Password        string `json:"password"        validate:"required,min=8,max=72"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Password        string `json:"password"        validate:"required,min=8,max=72"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type updatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent" validate:"required"`
	Password        string `json:"password"        validate:"required,min=8,max=72"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type updateMeRequest struct {
	Name  *string `json:"name"  validate:"omitempty,min=1"`
	Email *string `json:"email" validate:"omitempty,email"`
	// Password fields are accepted only to be refused with a pointer to
	// the right route.
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
}

// --- Response types ---

type userData struct {
	User *domain.User `json:"user"`
}

type authResponse struct {
	Status    string    `json:"status"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Data      userData  `json:"data"`
}

type userResponse struct {
	Status string   `json:"status"`
	Data   userData `json:"data"`
}

type messageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// errorResponse mirrors the envelope written by the API error handler.
type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

const statusSuccess = "success"
