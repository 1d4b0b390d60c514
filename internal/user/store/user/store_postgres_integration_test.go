//go:build integration

package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"preclear/internal/user/models"
	"preclear/internal/user/store/user"
	id "preclear/pkg/domain"
	"preclear/pkg/platform/sentinel"
	"preclear/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *user.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = user.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "users"))
}

func newUser(email string) *models.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.User{
		ID:           id.NewUserID(),
		Email:        email,
		FullName:     "Sam Porter",
		CompanyName:  "Bridges Logistics",
		Role:         id.RoleShipper,
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *PostgresStoreSuite) TestCreateAndLookup() {
	ctx := context.Background()
	u := newUser("sam@bridges.example")
	s.Require().NoError(s.store.Create(ctx, u))

	byID, err := s.store.GetByID(ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(u.Email, byID.Email)
	s.Equal(id.RoleShipper, byID.Role)

	byEmail, err := s.store.GetByEmail(ctx, u.Email)
	s.Require().NoError(err)
	s.Equal(u.ID, byEmail.ID)
}

func (s *PostgresStoreSuite) TestDuplicateEmail() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, newUser("dup@bridges.example")))
	s.ErrorIs(s.store.Create(ctx, newUser("dup@bridges.example")), sentinel.ErrAlreadyUsed)
}

func (s *PostgresStoreSuite) TestUpdate() {
	ctx := context.Background()
	u := newUser("update@bridges.example")
	s.Require().NoError(s.store.Create(ctx, u))

	u.FullName = "Samantha Porter"
	u.Active = false
	u.UpdatedAt = time.Now().UTC()
	s.Require().NoError(s.store.Update(ctx, u))

	loaded, err := s.store.GetByID(ctx, u.ID)
	s.Require().NoError(err)
	s.Equal("Samantha Porter", loaded.FullName)
	s.False(loaded.Active)
}

func (s *PostgresStoreSuite) TestDeleteFreesEmail() {
	ctx := context.Background()
	u := newUser("gone@bridges.example")
	s.Require().NoError(s.store.Create(ctx, u))
	s.Require().NoError(s.store.Delete(ctx, u.ID))

	_, err := s.store.GetByID(ctx, u.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.Create(ctx, newUser("gone@bridges.example")))
	s.ErrorIs(s.store.Delete(ctx, u.ID), sentinel.ErrNotFound)
}
