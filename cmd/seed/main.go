// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev identity (dev@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"collabhub/backend/internal/config"
	"collabhub/backend/internal/db"
	identitydomain "collabhub/backend/internal/identity/domain"
	identityrepo "collabhub/backend/internal/identity/repository"
	"collabhub/backend/internal/logging"
	membershipdomain "collabhub/backend/internal/membership/domain"
	membershiprepo "collabhub/backend/internal/membership/repository"
	organizationdomain "collabhub/backend/internal/organization/domain"
	organizationrepo "collabhub/backend/internal/organization/repository"
	projectdomain "collabhub/backend/internal/project/domain"
	projectrepo "collabhub/backend/internal/project/repository"
	"collabhub/backend/internal/security"
)

const (
	devUserEmail = "dev@example.com"
	memberEmail  = "member@example.com"
	devPassword  = "password123"
	devProjectID = 1
)

type seedIdentity struct {
	email     string
	name      string
	role      membershipdomain.Role
	project   projectdomain.Role
	twoFactor bool
}

var identities = []seedIdentity{
	{email: devUserEmail, name: "Dev User", role: membershipdomain.RoleOwner, project: projectdomain.RoleLead},
	{email: memberEmail, name: "Member User", role: membershipdomain.RoleMember, project: projectdomain.RoleMember, twoFactor: true},
}

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		l := zerolog.New(os.Stderr).With().Timestamp().Logger()
		l.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(logging.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Service: "seed"})
	ctx := context.Background()

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("db")
	}
	defer conn.Close()

	idents := identityrepo.NewPostgresRepository(conn)
	existing, err := idents.GetByEmail(ctx, devUserEmail)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed check")
	}
	if existing != nil {
		logger.Info().Msg("seed already applied (dev@example.com exists); skipping")
		return
	}

	hash, err := security.NewHasher(cfg.BcryptCost).Hash([]byte(devPassword))
	if err != nil {
		logger.Fatal().Err(err).Msg("hash password")
	}
	now := time.Now().UTC()

	org := &organizationdomain.Organization{Name: "Acme Dev", CreatedAt: now}
	if err := organizationrepo.NewPostgresRepository(conn).Create(ctx, org); err != nil {
		logger.Fatal().Err(err).Msg("create organization")
	}

	memberships := membershiprepo.NewPostgresRepository(conn)
	projects := projectrepo.NewPostgresRepository(conn)
	for _, s := range identities {
		ident := &identitydomain.Identity{
			ID:               uuid.NewString(),
			Email:            s.email,
			Name:             s.name,
			PasswordHash:     hash,
			Status:           identitydomain.StatusActive,
			EmailVerified:    true,
			TwoFactorEnabled: s.twoFactor,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := idents.Create(ctx, ident); err != nil {
			logger.Fatal().Err(err).Str("email", s.email).Msg("create identity")
		}
		if err := memberships.Create(ctx, &membershipdomain.Membership{
			ID:         uuid.NewString(),
			IdentityID: ident.ID,
			OrgID:      org.ID,
			Role:       s.role,
			CreatedAt:  now,
		}); err != nil {
			logger.Fatal().Err(err).Str("email", s.email).Msg("create membership")
		}
		if err := projects.AddMember(ctx, &projectdomain.Member{
			OrgID:      org.ID,
			ProjectID:  devProjectID,
			IdentityID: ident.ID,
			Role:       s.project,
			CreatedAt:  now,
		}); err != nil {
			logger.Fatal().Err(err).Str("email", s.email).Msg("add project member")
		}
	}

	logger.Info().Int64("organization_id", org.ID).Msg("seed completed")
	fmt.Printf("Dev login: %s / %s (organization %d)\n", devUserEmail, devPassword, org.ID)
	fmt.Printf("Member login (second factor via outbox): %s / %s\n", memberEmail, devPassword)
}
