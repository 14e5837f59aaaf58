package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/chepyr/go-day-planner/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultWorkdayStartMin = 540  // 09:00
	defaultWorkdayEndMin   = 1080 // 18:00
)

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, "Use POST method", http.StatusMethodNotAllowed)
		return
	}
	if h.RateLimiter != nil && !h.RateLimiter.Allow(r.RemoteAddr) {
		sendError(w, "Too many register attempts. Please try again later.", http.StatusTooManyRequests)
		return
	}

	var input struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		Timezone        string `json:"timezone"`
		WorkdayStartMin *int   `json:"workday_start_min"`
		WorkdayEndMin   *int   `json:"workday_end_min"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, "Bad JSON", http.StatusBadRequest)
		return
	}
	if !isValidEmail(input.Email) {
		sendError(w, "Invalid email", http.StatusBadRequest)
		return
	}
	if len(input.Password) < 8 {
		sendError(w, "Password must be at least 8 characters long", http.StatusBadRequest)
		return
	}

	startMin, endMin := defaultWorkdayStartMin, defaultWorkdayEndMin
	if input.WorkdayStartMin != nil {
		startMin = *input.WorkdayStartMin
	}
	if input.WorkdayEndMin != nil {
		endMin = *input.WorkdayEndMin
	}
	if startMin < 0 || endMin > 24*60 || endMin <= startMin {
		sendError(w, "workday_end_min must be greater than workday_start_min", http.StatusBadRequest)
		return
	}
	if input.Timezone == "" {
		input.Timezone = "UTC"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		sendError(w, "Cannot hash password", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:              uuid.New(),
		Email:           input.Email,
		PasswordHash:    string(hash),
		Timezone:        input.Timezone,
		WorkdayStartMin: startMin,
		WorkdayEndMin:   endMin,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := h.UserRepo.Create(context.Background(), user); err != nil {
		sendError(w, "Cannot save user", http.StatusInternalServerError)
		return
	}

	log.Printf("User registered: %s", user.Email)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, "Use POST method for login", http.StatusMethodNotAllowed)
		return
	}
	if h.RateLimiter != nil && !h.RateLimiter.Allow(r.RemoteAddr) {
		sendError(w, "Too many login attempts. Please try again later.", http.StatusTooManyRequests)
		return
	}

	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, "Bad JSON", http.StatusBadRequest)
		return
	}

	user, err := h.UserRepo.GetByEmail(context.Background(), input.Email)
	if err != nil {
		log.Printf("Error retrieving user by email %s: %v", input.Email, err)
		sendError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		sendError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	tokenString, err := generateJWTToken(user.ID.String())
	if err != nil {
		log.Printf("Error generating token: %v", err)
		sendError(w, "Cannot create token", http.StatusInternalServerError)
		return
	}

	sendJSON(w, map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
		"token":   tokenString,
	})
	log.Printf("User logged in: %s", input.Email)
}

func generateJWTToken(sub string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return "", fmt.Errorf("JWT_SECRET environment variable is not set")
	}
	return token.SignedString([]byte(jwtSecret))
}

func isValidEmail(email string) bool {
	const emailRegex = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	re := regexp.MustCompile(emailRegex)
	return re.MatchString(email)
}
