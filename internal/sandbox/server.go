package sandbox

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/zippy-pay/zippy_mobile/internal/config"
	"github.com/zippy-pay/zippy_mobile/internal/wallet"
)

// devVerificationCode is accepted for every account; the sandbox sends no
// real email.
const devVerificationCode = "123456"

// Server is the sandbox HTTP backend. Sessions are opaque bearer tokens held
// in memory; account and ledger state lives in the Store.
type Server struct {
	app    *fiber.App
	cfg    config.Sandbox
	store  Store
	logger *slog.Logger

	mu     sync.RWMutex
	tokens map[string]int64
}

// New builds the sandbox server. cache may be nil, in which case the
// fund-mobile endpoint skips idempotency enforcement.
func New(cfg config.Sandbox, store Store, cache *redis.Client, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	s := &Server{app: app, cfg: cfg, store: store, logger: logger, tokens: make(map[string]int64)}

	app.Use(recover.New())
	app.Use(fiberlog.New(fiberlog.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	api := app.Group("/api")
	api.Post("/auth/register", s.handleRegister)
	api.Post("/auth/login", s.handleLogin)
	api.Post("/auth/verify-email", s.handleVerifyEmail)
	api.Post("/auth/send-verification", s.handleSendVerification)

	authed := api.Group("", s.requireAuth)
	authed.Get("/user/me", s.handleMe)
	authed.Get("/wallet/balance", s.handleBalance)
	authed.Get("/transactions", s.handleTransactions)
	authed.Get("/wallet/config/paystack", s.handlePaystackKey)
	if cache != nil {
		authed.Post("/wallet/fund-mobile", FundingIdempotency(cache, cfg.IdempotencyTTL, logger), s.handleFundMobile)
	} else {
		authed.Post("/wallet/fund-mobile", s.handleFundMobile)
	}
	authed.Post("/wallet/verify", s.handleVerifyPayment)
	authed.Post("/vtu/airtime", s.handlePurchase(wallet.TypeAirtime))
	authed.Post("/vtu/data", s.handlePurchase(wallet.TypeData))
	authed.Post("/vtu/bills", s.handlePurchase(wallet.TypeBill))

	return s
}

// Listen starts the HTTP server on the configured address.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Serve starts the HTTP server on a caller-provided listener. Tests use this
// with an ephemeral port.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

type userPayload struct {
	ID         int64  `json:"id"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	IsVerified bool   `json:"is_verified"`
}

func toPayload(u User) userPayload {
	return userPayload{ID: u.ID, Email: u.Email, FullName: u.FullName, Phone: u.Phone, IsVerified: u.IsVerified}
}

func (s *Server) issueToken(userID int64) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = userID
	s.mu.Unlock()
	return token
}

func (s *Server) requireAuth(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return fail(c, http.StatusUnauthorized, "Authentication required")
	}
	s.mu.RLock()
	userID, known := s.tokens[token]
	s.mu.RUnlock()
	if !known {
		return fail(c, http.StatusUnauthorized, "Invalid or expired token")
	}
	c.Locals("user_id", userID)
	return c.Next()
}

func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
		Phone    string `json:"phone"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.Email == "" || len(req.Password) < 6 {
		return fail(c, http.StatusBadRequest, "Email and a password of at least 6 characters are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user, err := s.store.CreateUser(c.UserContext(), User{
		Email:        req.Email,
		FullName:     req.FullName,
		Phone:        req.Phone,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return fail(c, http.StatusConflict, "Email already registered")
		}
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"token": s.issueToken(user.ID),
		"user":  toPayload(user),
	})
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}

	user, err := s.store.UserByEmail(c.UserContext(), req.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fail(c, http.StatusUnauthorized, "Invalid email or password")
		}
		return err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(req.Password)); err != nil {
		return fail(c, http.StatusUnauthorized, "Invalid email or password")
	}

	return c.JSON(fiber.Map{
		"token": s.issueToken(user.ID),
		"user":  toPayload(user),
	})
}

func (s *Server) handleVerifyEmail(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.Code != devVerificationCode {
		return fail(c, http.StatusBadRequest, "Invalid or expired code")
	}

	user, err := s.store.UserByEmail(c.UserContext(), req.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fail(c, http.StatusNotFound, "Account not found")
		}
		return err
	}
	if err := s.store.MarkVerified(c.UserContext(), user.ID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Email verified"})
}

func (s *Server) handleSendVerification(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"message": "Verification code sent"})
}

func (s *Server) handleMe(c *fiber.Ctx) error {
	user, err := s.store.UserByID(c.UserContext(), c.Locals("user_id").(int64))
	if err != nil {
		return fail(c, http.StatusUnauthorized, "User not found")
	}
	return c.JSON(fiber.Map{"user": toPayload(user)})
}

func (s *Server) handleBalance(c *fiber.Ctx) error {
	balance, err := s.store.Balance(c.UserContext(), c.Locals("user_id").(int64))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"balance": balance})
}

func (s *Server) handleTransactions(c *fiber.Ctx) error {
	transactions, err := s.store.Transactions(c.UserContext(), c.Locals("user_id").(int64))
	if err != nil {
		return err
	}
	if transactions == nil {
		transactions = []wallet.Transaction{}
	}
	return c.JSON(fiber.Map{"transactions": transactions})
}

func (s *Server) handlePaystackKey(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"key": s.cfg.PaystackKey})
}

func (s *Server) handleFundMobile(c *fiber.Ctx) error {
	var req struct {
		Amount    int64  `json:"amount"`
		Reference string `json:"reference"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.Amount <= 0 || req.Reference == "" {
		return fail(c, http.StatusBadRequest, "Amount and reference are required")
	}

	userID := c.Locals("user_id").(int64)
	tx, err := s.store.CreateFunding(c.UserContext(), userID, req.Reference, req.Amount)
	if err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			return fail(c, http.StatusConflict, "Transaction already exists")
		}
		return err
	}

	// Simulated provider webhook: settlement lands asynchronously, racing the
	// client's verification poll just like production.
	reference := req.Reference
	time.AfterFunc(s.cfg.WebhookDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.SettleFunding(ctx, reference); err != nil {
			s.logger.Error("settle funding", "reference", reference, "error", err)
		}
	})

	return c.Status(http.StatusCreated).JSON(fiber.Map{"transaction": tx})
}

func (s *Server) handleVerifyPayment(c *fiber.Ctx) error {
	var req struct {
		Reference string `json:"reference"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid request body")
	}

	status, message, err := s.store.FundingStatus(c.UserContext(), req.Reference)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fail(c, http.StatusNotFound, "Transaction not found")
		}
		return err
	}
	return c.JSON(fiber.Map{"status": status, "message": message})
}

// handlePurchase covers the VTU product endpoints. The sandbox only models
// what the wallet cares about: a successful debit and its transaction record.
func (s *Server) handlePurchase(txType string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Amount int64 `json:"amount"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fail(c, http.StatusBadRequest, "Invalid request body")
		}
		if req.Amount <= 0 {
			return fail(c, http.StatusBadRequest, "Amount must be positive")
		}

		var details map[string]any
		_ = c.BodyParser(&details)

		userID := c.Locals("user_id").(int64)
		tx, err := s.store.Debit(c.UserContext(), userID, txType, req.Amount, details)
		if err != nil {
			if errors.Is(err, ErrInsufficientFunds) {
				return fail(c, http.StatusBadRequest, "Insufficient wallet balance")
			}
			return err
		}
		return c.JSON(fiber.Map{"message": "Purchase successful", "transaction": tx})
	}
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"message": message})
}
