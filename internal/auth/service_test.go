package auth_test

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/auth"
	"github.com/frahmantamala/sangha-registry/internal/authz"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

type mockUserRepository struct {
	byEmail       map[string]*auth.Credentials
	errorToReturn error
}

func newMockUserRepository() *mockUserRepository {
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct_password"), bcrypt.MinCost)
	return &mockUserRepository{
		byEmail: map[string]*auth.Credentials{
			"abbot@example.com":     {UserID: 1, Email: "abbot@example.com", Name: "Abbot", PasswordHash: string(hash), IsActive: true},
			"registrar@example.com": {UserID: 2, Email: "registrar@example.com", Name: "Registrar", PasswordHash: string(hash), IsActive: true},
			"retired@example.com":   {UserID: 3, Email: "retired@example.com", Name: "Retired", PasswordHash: string(hash), IsActive: false},
		},
	}
}

func (m *mockUserRepository) CredentialsByEmail(_ context.Context, email string) (*auth.Credentials, error) {
	if m.errorToReturn != nil {
		return nil, m.errorToReturn
	}
	if c, ok := m.byEmail[email]; ok {
		return c, nil
	}
	return nil, internal.ErrUserNotFound
}

func (m *mockUserRepository) CredentialsByID(_ context.Context, userID int64) (*auth.Credentials, error) {
	if m.errorToReturn != nil {
		return nil, m.errorToReturn
	}
	for _, c := range m.byEmail {
		if c.UserID == userID {
			return c, nil
		}
	}
	return nil, internal.ErrUserNotFound
}

type stubAccess struct {
	err error
}

func (s stubAccess) AccessContext(_ context.Context, userID int64) (*authz.AccessContext, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &authz.AccessContext{Permissions: []string{"monk:read"}, IsAdmin: userID == 1}, nil
}

func testSecurity() internal.SecurityConfig {
	return internal.SecurityConfig{
		AccessTokenSecret:    "access-secret-that-is-long-enough-1234",
		RefreshTokenSecret:   "refresh-secret-that-is-long-enough-5678",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 24 * time.Hour,
	}
}

var _ = Describe("Auth Service", func() {
	var (
		ctx      context.Context
		repo     *mockUserRepository
		tokenGen *auth.JWTTokenGenerator
		access   stubAccess
		service  *auth.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = newMockUserRepository()
		tokenGen = auth.NewJWTTokenGenerator(testSecurity())
		access = stubAccess{}
	})

	JustBeforeEach(func() {
		service = auth.NewService(repo, tokenGen, access, bcrypt.MinCost, nil)
	})

	Describe("Authenticate", func() {
		It("issues a token pair and the caller's access context", func() {
			result, err := service.Authenticate(ctx, auth.LoginDTO{Email: "abbot@example.com", Password: "correct_password"})
			Expect(err).NotTo(HaveOccurred())

			Expect(result.AccessToken).NotTo(BeEmpty())
			Expect(result.RefreshToken).NotTo(BeEmpty())
			Expect(result.TokenType).To(Equal("Bearer"))
			Expect(result.ExpiresIn).To(Equal(int64(900)))
			Expect(result.User).To(Equal(auth.Profile{ID: 1, Email: "abbot@example.com", Name: "Abbot"}))
			Expect(result.Access.Permissions).To(ConsistOf("monk:read"))
			Expect(result.Access.IsAdmin).To(BeTrue())

			claims, err := service.ValidateAccessToken(result.AccessToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.UserID).To(Equal(int64(1)))
			Expect(claims.SessionID()).To(Equal(result.SessionID))
		})

		It("normalizes the email before lookup", func() {
			result, err := service.Authenticate(ctx, auth.LoginDTO{Email: " Registrar@Example.com ", Password: "correct_password"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.User.ID).To(Equal(int64(2)))

			_, err = service.Authenticate(ctx, auth.LoginDTO{Email: "  ", Password: "correct_password"})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(400))
		})

		It("rejects a wrong password", func() {
			_, err := service.Authenticate(ctx, auth.LoginDTO{Email: "abbot@example.com", Password: "wrong"})
			Expect(err).To(MatchError(internal.ErrInvalidCredentials))
		})

		It("does not reveal unknown emails", func() {
			_, err := service.Authenticate(ctx, auth.LoginDTO{Email: "nobody@example.com", Password: "correct_password"})
			Expect(err).To(MatchError(internal.ErrInvalidCredentials))
		})

		It("rejects inactive users after the password check", func() {
			_, err := service.Authenticate(ctx, auth.LoginDTO{Email: "retired@example.com", Password: "correct_password"})
			Expect(err).To(MatchError(internal.ErrUserInactive))

			_, err = service.Authenticate(ctx, auth.LoginDTO{Email: "retired@example.com", Password: "wrong"})
			Expect(err).To(MatchError(internal.ErrInvalidCredentials))
		})

		It("returns field errors for a malformed payload", func() {
			_, err := service.Authenticate(ctx, auth.LoginDTO{Email: "not-an-email"})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(400))

			details, ok := appErr.Details.(internal.ValidationErrors)
			Expect(ok).To(BeTrue())
			fields := []string{}
			for _, e := range details.Errors {
				fields = append(fields, e.Field)
			}
			Expect(fields).To(ConsistOf("email", "password"))
		})

		It("wraps repository failures as internal errors", func() {
			repo.errorToReturn = errors.New("connection refused")
			_, err := service.Authenticate(ctx, auth.LoginDTO{Email: "abbot@example.com", Password: "correct_password"})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(500))
		})

		Context("when the access context cannot be resolved", func() {
			BeforeEach(func() {
				access = stubAccess{err: errors.New("authz store down")}
			})

			It("fails the login", func() {
				_, err := service.Authenticate(ctx, auth.LoginDTO{Email: "abbot@example.com", Password: "correct_password"})
				appErr, ok := internal.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.StatusCode).To(Equal(500))
			})
		})
	})

	Describe("RefreshTokens", func() {
		It("rotates tokens within the same session", func() {
			login, err := service.Authenticate(ctx, auth.LoginDTO{Email: "abbot@example.com", Password: "correct_password"})
			Expect(err).NotTo(HaveOccurred())

			tokens, err := service.RefreshTokens(ctx, login.RefreshToken)
			Expect(err).NotTo(HaveOccurred())

			claims, err := service.ValidateAccessToken(tokens.AccessToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.SessionID()).To(Equal(login.SessionID))
		})

		It("refuses an access token in place of a refresh token", func() {
			login, err := service.Authenticate(ctx, auth.LoginDTO{Email: "abbot@example.com", Password: "correct_password"})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.RefreshTokens(ctx, login.AccessToken)
			Expect(err).To(MatchError(internal.ErrInvalidToken))
		})

		It("refuses users deactivated since login", func() {
			token, err := tokenGen.GenerateRefreshToken(3, "retired@example.com", "session-1")
			Expect(err).NotTo(HaveOccurred())

			_, err = service.RefreshTokens(ctx, token)
			Expect(err).To(MatchError(internal.ErrUserInactive))
		})

		It("refuses users that no longer exist", func() {
			token, err := tokenGen.GenerateRefreshToken(99, "gone@example.com", "session-1")
			Expect(err).NotTo(HaveOccurred())

			_, err = service.RefreshTokens(ctx, token)
			Expect(err).To(MatchError(internal.ErrInvalidToken))
		})
	})

	Describe("HashPassword", func() {
		It("produces a hash VerifyPassword accepts", func() {
			hash, err := service.HashPassword("s3cret-pass")
			Expect(err).NotTo(HaveOccurred())
			Expect(auth.VerifyPassword(hash, "s3cret-pass")).To(Succeed())
			Expect(auth.VerifyPassword(hash, "other")).NotTo(Succeed())
		})
	})
})
