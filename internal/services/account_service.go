package services

import (
	cryptorand "crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"

	"github.com/bankmore/backend/internal/models"
)

type AccountService struct {
	db        *sql.DB
	validator *ValidationHelper
}

// SignupRequest represents the account creation payload
// @Description Account creation request structure
type SignupRequest struct {
	Document string `json:"document" validate:"required" example:"12345678901"` // Holder document (11 digits)
	Name     string `json:"name" validate:"required,min=2" example:"John Doe"`  // Holder name
	Password string `json:"password" validate:"required,min=6"`                 // Account password
}

// LoginRequest represents the login payload
// @Description Login request structure
type LoginRequest struct {
	NumberOrDocument string `json:"numberOrDocument" validate:"required" example:"1000000001"` // Account number
	Password         string `json:"password" validate:"required"`                              // Account password
}

// DeactivateRequest carries the password confirmation for deactivation.
type DeactivateRequest struct {
	Password string `json:"password" validate:"required"`
}

var documentRegex = regexp.MustCompile(`^[0-9]{11}$`)

func NewAccountService(db *sql.DB) *AccountService {
	return &AccountService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// Signup creates a new current account
// @Summary Create account
// @Description Create a new current account and return its number
// @Tags accounts
// @Accept json
// @Produce json
// @Param request body SignupRequest true "Signup request"
// @Success 200 {object} map[string]int64
// @Failure 400 {object} ErrorResponse
// @Router /accounts/signup [post]
func (s *AccountService) Signup(w http.ResponseWriter, r *http.Request) {
	log.Printf("[ACCOUNT] Signup attempt from IP: %s", r.RemoteAddr)

	var req SignupRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		log.Printf("[ACCOUNT] Signup validation failed: %v", err)
		SendErrorResponse(w, models.ErrInvalidDocument, "Validation failed", http.StatusBadRequest, err)
		return
	}

	document := strings.NewReplacer(".", "", "-", "").Replace(strings.TrimSpace(req.Document))
	if !documentRegex.MatchString(document) {
		log.Printf("[ACCOUNT] Signup rejected - malformed document")
		SendErrorResponse(w, models.ErrInvalidDocument, "Invalid document", http.StatusBadRequest, nil)
		return
	}

	salt, hash, err := hashPassword(req.Password)
	if err != nil {
		log.Printf("[ACCOUNT] Password hashing failed: %v", err)
		SendErrorResponse(w, "INTERNAL_ERROR", "An internal error occurred", http.StatusInternalServerError, nil)
		return
	}

	account := models.Account{
		ID:           uuid.NewString(),
		Holder:       req.Name,
		Active:       true,
		PasswordHash: hash,
		Salt:         salt,
	}

	number, err := s.insertWithFreshNumber(&account)
	if err != nil {
		log.Printf("[ACCOUNT] Account creation failed: %v", err)
		SendErrorResponse(w, "INTERNAL_ERROR", "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[ACCOUNT] Account created - ID: %s, Number: %d", account.ID, number)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"accountNumber": number})
}

// insertWithFreshNumber generates a random 10-digit account number and retries
// on a unique-constraint conflict. Numbers are immutable once assigned.
func (s *AccountService) insertWithFreshNumber(account *models.Account) (int64, error) {
	for attempt := 0; attempt < 5; attempt++ {
		number := generateAccountNumber()
		_, err := s.db.Exec(`
			INSERT INTO accounts (id, number, holder, active, password_hash, salt, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			account.ID, number, account.Holder, account.Active, account.PasswordHash, account.Salt, time.Now())
		if err == nil {
			return number, nil
		}
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			continue
		}
		return 0, err
	}
	return 0, fmt.Errorf("could not allocate a unique account number")
}

// Login authenticates an account holder
// @Summary Login
// @Description Authenticate by account number and password
// @Tags accounts
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} map[string]string
// @Failure 401 {object} ErrorResponse
// @Router /accounts/login [post]
func (s *AccountService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[ACCOUNT] Login attempt from IP: %s", r.RemoteAddr)

	var req LoginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, models.ErrUserUnauthorized, "Validation failed", http.StatusBadRequest, err)
		return
	}

	// Lookup is by account number only; document lookup is deliberately not
	// offered so documents never become external identifiers.
	number, err := strconv.ParseInt(strings.TrimSpace(req.NumberOrDocument), 10, 64)
	if err != nil {
		SendErrorResponse(w, models.ErrUserUnauthorized, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	var account models.Account
	err = s.db.QueryRow(`
		SELECT id, number, holder, active, password_hash, salt FROM accounts WHERE number = $1`,
		number).Scan(&account.ID, &account.Number, &account.Holder, &account.Active, &account.PasswordHash, &account.Salt)
	if err != nil {
		log.Printf("[ACCOUNT] Login failed - account not found for number %d", number)
		SendErrorResponse(w, models.ErrUserUnauthorized, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	if !verifyPassword(req.Password, account.Salt, account.PasswordHash) {
		log.Printf("[ACCOUNT] Login failed - bad password for account %s", account.ID)
		SendErrorResponse(w, models.ErrUserUnauthorized, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	token, err := GenerateJWT(account.ID)
	if err != nil {
		log.Printf("[ACCOUNT] JWT generation failed for account %s: %v", account.ID, err)
		SendErrorResponse(w, "INTERNAL_ERROR", "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[ACCOUNT] Login successful for account %s", account.ID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// Deactivate deactivates the caller's account
// @Summary Deactivate account
// @Description Deactivate the authenticated account after password confirmation
// @Tags accounts
// @Accept json
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Router /accounts/deactivate [post]
func (s *AccountService) Deactivate(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value("accountID").(string)
	if !ok || accountID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req DeactivateRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	var account models.Account
	err := s.db.QueryRow(`
		SELECT id, password_hash, salt FROM accounts WHERE id = $1`,
		accountID).Scan(&account.ID, &account.PasswordHash, &account.Salt)
	if err != nil {
		SendErrorResponse(w, models.ErrInvalidAccount, "Invalid account", http.StatusBadRequest, nil)
		return
	}

	if !verifyPassword(req.Password, account.Salt, account.PasswordHash) {
		SendErrorResponse(w, models.ErrUserUnauthorized, "Invalid password", http.StatusBadRequest, nil)
		return
	}

	// active goes true -> false only; there is no reactivation path.
	if _, err := s.db.Exec(`UPDATE accounts SET active = FALSE WHERE id = $1`, accountID); err != nil {
		log.Printf("[ACCOUNT] Deactivation failed for %s: %v", accountID, err)
		SendErrorResponse(w, "INTERNAL_ERROR", "Failed to deactivate account", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[ACCOUNT] Account deactivated: %s", accountID)
	w.WriteHeader(http.StatusNoContent)
}

// decodeJSONBody decodes a single JSON object request body, enforcing the
// 1 MB limit and rejecting unknown fields. Writes the error response itself
// and reports whether decoding succeeded.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "INVALID_REQUEST", "Invalid request body", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "INVALID_REQUEST", "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}

	return true
}

// GenerateJWT issues an HS256 token whose nameid claim is the account id. The
// fee worker uses the same helper to act on behalf of an account.
func GenerateJWT(accountID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"nameid": accountID,
		"exp":    time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	})

	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

func hashPassword(password string) (salt string, hash string, err error) {
	rawSalt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(rawSalt); err != nil {
		return "", "", err
	}

	key := argon2.IDKey([]byte(password), rawSalt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return base64.StdEncoding.EncodeToString(rawSalt), base64.StdEncoding.EncodeToString(key), nil
}

func verifyPassword(password, salt, hash string) bool {
	rawSalt, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return false
	}

	expected, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(password), rawSalt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return string(expected) == string(computed)
}

func generateAccountNumber() int64 {
	// 10 digits, never starting with zero
	return 1_000_000_000 + rand.Int63n(9_000_000_000)
}
