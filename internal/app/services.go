package app

import (
	"log/slog"

	"github.com/scholaris/scholaris/internal/auth"
	"github.com/scholaris/scholaris/internal/students"
)

// Services holds the domain services shared by the API and the worker.
type Services struct {
	Tokens   *auth.TokenService
	Auth     *auth.Service
	Students *students.Service
}

// NewServices wires domain services on top of stores. Students are built
// first because signup provisions their profiles.
func NewServices(cfg *Config, stores *Stores, logger *slog.Logger) (*Services, error) {
	tokens, err := auth.NewTokenService([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	if err != nil {
		return nil, err
	}
	deleteMode, err := students.ParseDeleteMode(cfg.StudentDeleteMode)
	if err != nil {
		return nil, err
	}
	if deleteMode == students.DeleteLegacy {
		logger.Warn("student delete mode is legacy: identities are removed by profile id")
	}

	hasher := auth.NewPasswordHasher(cfg.BcryptCost, cfg.HashWorkers)
	studentService := students.NewService(logger, stores.Profiles, stores.Identities, hasher, students.Config{
		DefaultPassword: cfg.DefaultStudentPassword,
		DeleteMode:      deleteMode,
	})
	authService := auth.NewService(logger, stores.Identities, hasher, tokens, studentService, auth.ServiceConfig{
		LoginTTL:         cfg.LoginTokenTTL,
		SignupTTL:        cfg.SignupTokenTTL,
		AllowAdminSignup: cfg.SignupAllowAdmin,
	})
	return &Services{Tokens: tokens, Auth: authService, Students: studentService}, nil
}
