package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quicktask/quicktask-api/internal/httpx"
)

const minPasswordLen = 8

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// RegisterRoutes mounts /auth. rateLimit wraps only the credential-accepting
// endpoints; /auth/me sits behind requireAuth (the bearer middleware) instead.
func RegisterRoutes(r chi.Router, repo Repository, tokens *TokenManager, logger *slog.Logger, rateLimit, requireAuth func(http.Handler) http.Handler) {
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rateLimit)
			r.Post("/register", register(repo, tokens, logger))
			r.Post("/login", login(repo, tokens, logger))
		})
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", me(repo))
		})
	})
}

func register(repo Repository, tokens *TokenManager, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidation, "Validation failed", "invalid JSON body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		if details := validateRegister(req); len(details) > 0 {
			httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidation, "Validation failed", details...)
			return
		}

		hash, err := HashPassword(req.Password)
		if err != nil {
			logger.Error("password_hash_failed", slog.String("error", err.Error()))
			httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeServerError, "Internal server error")
			return
		}

		u, err := repo.Create(r.Context(), req.Name, req.Email, hash)
		if errors.Is(err, ErrEmailTaken) {
			httpx.WriteError(w, http.StatusConflict, httpx.CodeDuplicate, "email already exists")
			return
		}
		if err != nil {
			logger.Error("user_create_failed", slog.String("error", err.Error()))
			httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeServerError, "Internal server error")
			return
		}

		token, err := tokens.Issue(u.ID)
		if err != nil {
			logger.Error("token_issue_failed", slog.String("error", err.Error()))
			httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeServerError, "Internal server error")
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, tokenResponse{Token: token, User: u})
	}
}

func login(repo Repository, tokens *TokenManager, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidation, "Validation failed", "invalid JSON body")
			return
		}

		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		u, err := repo.ByEmail(r.Context(), req.Email)
		if errors.Is(err, ErrUserNotFound) || (err == nil && !VerifyPassword(req.Password, u.PasswordHash)) {
			httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeInvalidCredentials, "Invalid email or password")
			return
		}
		if err != nil {
			logger.Error("user_lookup_failed", slog.String("error", err.Error()))
			httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeServerError, "Internal server error")
			return
		}

		token, err := tokens.Issue(u.ID)
		if err != nil {
			logger.Error("token_issue_failed", slog.String("error", err.Error()))
			httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeServerError, "Internal server error")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, tokenResponse{Token: token, User: u})
	}
}

func me(repo Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(r.Context())
		if !ok {
			httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "No token provided. Authorization required.")
			return
		}
		u, err := repo.ByID(r.Context(), userID)
		if err != nil {
			// A valid token for a deleted user behaves like a bad token.
			httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeInvalidToken, "Invalid or expired token")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]User{"user": u})
	}
}

func validateRegister(req registerRequest) []string {
	var details []string
	if req.Name == "" {
		details = append(details, "name is required")
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		details = append(details, "a valid email is required")
	}
	if len(req.Password) < minPasswordLen {
		details = append(details, fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	return details
}
