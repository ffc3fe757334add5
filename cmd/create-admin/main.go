package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/certexam/certexam-backend/internal/config"
	"github.com/certexam/certexam-backend/internal/database"
	"github.com/certexam/certexam-backend/internal/logger"
	"github.com/certexam/certexam-backend/internal/model"
	"github.com/certexam/certexam-backend/internal/repository"
	"github.com/certexam/certexam-backend/internal/service"
	"golang.org/x/term"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)
	hasher := service.NewHasher(cfg.BcryptCost)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New Admin User ===")

	firstName := prompt(reader, "Enter First Name: ")
	if firstName == "" {
		fmt.Println("Error: First name is required")
		return
	}
	lastName := prompt(reader, "Enter Last Name: ")

	email := strings.ToLower(prompt(reader, "Enter Email: "))
	if email == "" {
		fmt.Println("Error: Email is required")
		return
	}

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println()
	if len(password) < 8 {
		fmt.Println("Error: Password must be at least 8 characters")
		return
	}

	role := model.RoleAdmin
	if cfg.FounderEmail != "" && email == cfg.FounderEmail {
		role = model.RoleFounder
		fmt.Println("Email matches FOUNDER_ADMIN_EMAIL, using role 'founder'")
	} else {
		input := prompt(reader, "Enter Role [admin|founder] (default admin): ")
		if input != "" {
			role = model.Role(strings.ToLower(input))
		}
		if !role.Valid() || !role.Policy().AdminAccess {
			fmt.Printf("Error: role %q cannot access the admin API\n", input)
			return
		}
	}

	// ─── Logic ─────────────────────────────────────────────────────────

	hash, err := hasher.Hash(password)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	user := &model.User{
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}

	err = userRepo.Create(ctx, user)
	if errors.Is(err, repository.ErrEmailTaken) && role == model.RoleFounder {
		// The founder account may predate FOUNDER_ADMIN_EMAIL; promote it.
		existing, lookupErr := userRepo.GetByEmail(ctx, email)
		if lookupErr != nil {
			log.Fatal().Err(lookupErr).Msg("Failed to load existing founder account")
		}
		if err := userRepo.UpdateRole(ctx, existing.ID, model.RoleFounder); err != nil {
			log.Fatal().Err(err).Msg("Failed to promote founder account")
		}
		fmt.Printf("\nSuccess! Existing user '%s' (ID %d) promoted to founder\n", existing.Email, existing.ID)
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create admin")
	}

	fmt.Printf("\nSuccess! %s '%s %s' (%s) created with ID: %d\n",
		user.Role, user.FirstName, user.LastName, user.Email, user.ID)
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
