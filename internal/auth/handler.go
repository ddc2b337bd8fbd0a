package auth

import (
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"hyperadmin/internal/apperr"
	"hyperadmin/internal/httpx"
)

var validate = validator.New()

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// LoginHandler exchanges credentials for a bearer token. It accepts a JSON
// body or an OAuth2 style password form.
func LoginHandler(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := readLogin(w, r)
		if err != nil {
			httpx.RespondError(w, r, logger, err)
			return
		}
		if err := validate.Struct(req); err != nil {
			if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
				err = apperr.Invalid(strings.ToLower(verrs[0].Field()), "is required")
			}
			httpx.RespondError(w, r, logger, err)
			return
		}

		tok, err := svc.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			logger.WarnContext(r.Context(), "login failed", "username", req.Username, "err", err)
			httpx.RespondError(w, r, logger, err)
			return
		}
		logger.InfoContext(r.Context(), "login", "username", req.Username)
		httpx.JSON(w, http.StatusOK, loginResponse{
			Token:     tok.Value,
			TokenType: "bearer",
			ExpiresAt: tok.ExpiresAt,
		})
	}
}

func readLogin(w http.ResponseWriter, r *http.Request) (loginRequest, error) {
	var req loginRequest
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, httpx.MaxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return req, apperr.Invalid("", "request body is not a valid form")
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
		return req, nil
	default:
		err := httpx.DecodeJSON(w, r, &req)
		return req, err
	}
}
