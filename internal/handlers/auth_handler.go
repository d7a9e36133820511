package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tukio-events/tukio/internal/config"
	"github.com/tukio-events/tukio/internal/eventbus"
	"github.com/tukio-events/tukio/internal/middleware"
	"github.com/tukio-events/tukio/internal/repository"
	"github.com/tukio-events/tukio/internal/token"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	Logger       *slog.Logger
	Config       *config.Config
	UserEventBus *eventbus.UserEventBus
}

func (ah *AuthHandler) RegisterHandlers(router *http.ServeMux) {
	router.HandleFunc("POST /api/auth/register", ah.Register)
	router.HandleFunc("POST /api/auth/login", ah.Login)
	router.HandleFunc("POST /api/auth/guest-login", ah.GuestLogin)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string `json:"token"`
	User  struct {
		Username string              `json:"username"`
		Role     repository.UserRole `json:"role"`
	} `json:"user"`
}

func newSessionResponse(signed string, user repository.User) sessionResponse {
	resp := sessionResponse{Token: signed}
	resp.User.Username = user.Username
	resp.User.Role = user.Role
	return resp
}

// Registers a new account with a bcrypt hashed password
func (ah *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var creds credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Please check your request body and try again",
		})
		return
	}

	if len(creds.Username) < 3 || len(creds.Password) < 6 {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Username must be at least 3 characters and password at least 6",
		})
		return
	}

	conn, err := middleware.GetDBConnFromContext(r.Context())
	if err != nil {
		ah.Logger.Error("Error while processing request", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "We ran into a problem while servicing your request please try again later",
		})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		ah.Logger.Error("Failed to hash password", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "We ran into a problem while servicing your request please try again later",
		})
		return
	}

	tx, _ := conn.Begin(r.Context())
	defer tx.Rollback(r.Context())
	repo := repository.New(tx)

	created, err := repo.CreateUser(r.Context(), repository.CreateUserParams{
		Username: creds.Username,
		Password: string(hashed),
		Role:     repository.UserRoleUser,
	})
	if errors.Is(err, repository.ErrDuplicateUsername) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Username already exists",
		})
		return
	}
	if err != nil {
		ah.Logger.Error("Failed to create account", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "We couldn't create this account at the moment please try again later",
		})
		return
	}

	if err = tx.Commit(r.Context()); err != nil {
		ah.Logger.Error("Error while committing transaction", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "We ran into a problem while servicing your request please try again later",
		})
		return
	}

	// Fire-and-forget: a broker hiccup must not fail the registration.
	if err := ah.UserEventBus.PublishUserRegistered(r.Context(), created, eventbus.GenerateRequestID()); err != nil {
		ah.Logger.Error("Failed to publish user registered event", slog.Any("error", err))
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"message": "User registered successfully",
	})
}

// Verifies credentials and issues a signed identity token
func (ah *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var creds credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Username == "" || creds.Password == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Username and password are required",
		})
		return
	}

	conn, err := middleware.GetDBConnFromContext(r.Context())
	if err != nil {
		ah.Logger.Error("Error while processing request", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "We ran into a problem while servicing your request please try again later",
		})
		return
	}

	repo := repository.New(conn)

	user, err := repo.GetUserByUsername(r.Context(), creds.Username)
	if errors.Is(err, repository.ErrUserNotFound) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Invalid credentials",
		})
		return
	}
	if err != nil {
		ah.Logger.Error("Failed to look up account", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "We ran into a problem while servicing your request please try again later",
		})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)); err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Invalid credentials",
		})
		return
	}

	signed, err := token.Issue(user.ID, token.Role(user.Role), ah.Config)
	if err != nil {
		ah.Logger.Error("Failed to sign identity token", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "We ran into a problem while servicing your request please try again later",
		})
		return
	}

	json.NewEncoder(w).Encode(newSessionResponse(signed, user))
}

// Mints a throwaway guest account and issues a short lived token for it
func (ah *AuthHandler) GuestLogin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	conn, err := middleware.GetDBConnFromContext(r.Context())
	if err != nil {
		ah.Logger.Error("Error while processing request", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "We ran into a problem while servicing your request please try again later",
		})
		return
	}

	// Guests never log in again, so the password is a random throwaway.
	throwaway, err := bcrypt.GenerateFromPassword([]byte(eventbus.GenerateRequestID()), bcrypt.DefaultCost)
	if err != nil {
		ah.Logger.Error("Failed to hash guest password", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Error creating guest session",
		})
		return
	}

	tx, _ := conn.Begin(r.Context())
	defer tx.Rollback(r.Context())
	repo := repository.New(tx)

	guest, err := repo.CreateUser(r.Context(), repository.CreateUserParams{
		Username: fmt.Sprintf("guest_%d", time.Now().UnixMilli()),
		Password: string(throwaway),
		Role:     repository.UserRoleGuest,
	})
	if err != nil {
		ah.Logger.Error("Failed to create guest account", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Error creating guest session",
		})
		return
	}

	if err = tx.Commit(r.Context()); err != nil {
		ah.Logger.Error("Error while committing transaction", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Error creating guest session",
		})
		return
	}

	if err := ah.UserEventBus.PublishUserRegistered(r.Context(), guest, eventbus.GenerateRequestID()); err != nil {
		ah.Logger.Error("Failed to publish user registered event", slog.Any("error", err))
	}

	signed, err := token.Issue(guest.ID, token.RoleGuest, ah.Config)
	if err != nil {
		ah.Logger.Error("Failed to sign guest token", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "Error creating guest session",
		})
		return
	}

	json.NewEncoder(w).Encode(newSessionResponse(signed, guest))
}
