package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"preclear/internal/platform/logger"
	userstore "preclear/internal/user/store/user"
	id "preclear/pkg/domain"
	dErrors "preclear/pkg/domain-errors"
	"preclear/pkg/platform/audit"
	auditmem "preclear/pkg/platform/audit/store/memory"
	"preclear/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	store *userstore.InMemory
	svc   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = userstore.NewInMemory()
	s.svc = New(s.store, audit.NewPublisher(auditmem.New(), logger.NewNop()), logger.NewNop())
}

func (s *ServiceSuite) ctxAt(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func validInput() CreateInput {
	return CreateInput{
		Email:       "Shipper@Example.com",
		FullName:    "Sam Shipper",
		CompanyName: "Acme Exports",
		Role:        id.RoleShipper,
		Password:    "correct horse",
	}
}

func (s *ServiceSuite) TestCreate() {
	s.Run("hashes the password and normalizes the email", func() {
		created, err := s.svc.Create(s.ctxAt(time.Now()), validInput())
		s.Require().NoError(err)
		s.Equal("shipper@example.com", created.Email)
		s.True(created.Active)
		s.NoError(bcrypt.CompareHashAndPassword(created.PasswordHash, []byte("correct horse")))
	})

	s.Run("rejects a duplicate email with conflict", func() {
		s.SetupTest()
		_, err := s.svc.Create(s.ctxAt(time.Now()), validInput())
		s.Require().NoError(err)
		_, err = s.svc.Create(s.ctxAt(time.Now()), validInput())
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal("email", dErrors.FieldOf(err))
	})

	s.Run("rejects a short password", func() {
		input := validInput()
		input.Password = "short"
		_, err := s.svc.Create(s.ctxAt(time.Now()), input)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		s.Equal("password", dErrors.FieldOf(err))
	})
}

func (s *ServiceSuite) TestUpdate() {
	created, err := s.svc.Create(s.ctxAt(time.Now()), validInput())
	s.Require().NoError(err)

	s.Run("preserves the password hash unless a new password is supplied", func() {
		name := "Sam S. Shipper"
		updated, err := s.svc.Update(s.ctxAt(time.Now()), created.ID, UpdateFields{FullName: &name})
		s.Require().NoError(err)
		s.Equal(name, updated.FullName)
		s.Equal(created.PasswordHash, updated.PasswordHash)
	})

	s.Run("rehashes when a password is supplied", func() {
		password := "battery staple"
		updated, err := s.svc.Update(s.ctxAt(time.Now()), created.ID, UpdateFields{Password: &password})
		s.Require().NoError(err)
		s.NotEqual(created.PasswordHash, updated.PasswordHash)
		s.NoError(bcrypt.CompareHashAndPassword(updated.PasswordHash, []byte(password)))
	})

	s.Run("refreshes updatedAt", func() {
		later := time.Now().Add(time.Minute)
		name := "Renamed"
		updated, err := s.svc.Update(s.ctxAt(later), created.ID, UpdateFields{FullName: &name})
		s.Require().NoError(err)
		s.True(updated.UpdatedAt.After(updated.CreatedAt))
	})

	s.Run("unknown user is not found", func() {
		name := "Nobody"
		_, err := s.svc.Update(s.ctxAt(time.Now()), id.NewUserID(), UpdateFields{FullName: &name})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestDelete() {
	created, err := s.svc.Create(s.ctxAt(time.Now()), validInput())
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Delete(s.ctxAt(time.Now()), created.ID))
	_, err = s.svc.Get(context.Background(), created.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	s.Run("frees the email for reuse", func() {
		_, err := s.svc.Create(s.ctxAt(time.Now()), validInput())
		s.NoError(err)
	})
}

func (s *ServiceSuite) TestVerifyCredentials() {
	created, err := s.svc.Create(s.ctxAt(time.Now()), validInput())
	s.Require().NoError(err)

	s.Run("accepts the right password regardless of email case", func() {
		u, err := s.svc.VerifyCredentials(context.Background(), "SHIPPER@example.COM", "correct horse")
		s.Require().NoError(err)
		s.Equal(created.ID, u.ID)
	})

	s.Run("wrong password and unknown email fail identically", func() {
		_, wrongPassword := s.svc.VerifyCredentials(context.Background(), "shipper@example.com", "wrong")
		_, unknownEmail := s.svc.VerifyCredentials(context.Background(), "nobody@example.com", "correct horse")
		s.True(dErrors.HasCode(wrongPassword, dErrors.CodeUnauthorized))
		s.True(dErrors.HasCode(unknownEmail, dErrors.CodeUnauthorized))
		s.Equal(wrongPassword.Error(), unknownEmail.Error())
	})

	s.Run("deactivated account is forbidden", func() {
		inactive := false
		_, err := s.svc.Update(s.ctxAt(time.Now()), created.ID, UpdateFields{Active: &inactive})
		s.Require().NoError(err)
		_, err = s.svc.VerifyCredentials(context.Background(), "shipper@example.com", "correct horse")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}
