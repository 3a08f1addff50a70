package auth_test

import (
	"time"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/auth"
	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("JWTTokenGenerator", func() {
	var gen *auth.JWTTokenGenerator

	BeforeEach(func() {
		gen = auth.NewJWTTokenGenerator(testSecurity())
	})

	It("round-trips access claims", func() {
		token, err := gen.GenerateAccessToken(7, "monk@example.com", "session-7")
		Expect(err).NotTo(HaveOccurred())

		claims, err := gen.ValidateAccessToken(token)
		Expect(err).NotTo(HaveOccurred())
		Expect(claims.UserID).To(Equal(int64(7)))
		Expect(claims.Email).To(Equal("monk@example.com"))
		Expect(claims.Subject).To(Equal("7"))
		Expect(claims.TokenType).To(Equal(auth.TokenTypeAccess))
		Expect(claims.SessionID()).To(Equal("session-7"))
	})

	It("keeps access and refresh tokens apart", func() {
		access, err := gen.GenerateAccessToken(7, "monk@example.com", "s")
		Expect(err).NotTo(HaveOccurred())
		refresh, err := gen.GenerateRefreshToken(7, "monk@example.com", "s")
		Expect(err).NotTo(HaveOccurred())

		_, err = gen.ValidateRefreshToken(access)
		Expect(err).To(MatchError(internal.ErrInvalidToken))
		_, err = gen.ValidateAccessToken(refresh)
		Expect(err).To(MatchError(internal.ErrInvalidToken))
	})

	It("reports expiry distinctly", func() {
		past := auth.NewJWTTokenGenerator(testSecurity()).
			WithClock(func() time.Time { return time.Now().Add(-time.Hour) })
		token, err := past.GenerateAccessToken(7, "monk@example.com", "s")
		Expect(err).NotTo(HaveOccurred())

		_, err = gen.ValidateAccessToken(token)
		Expect(err).To(MatchError(internal.ErrTokenExpired))
	})

	It("rejects tokens signed with another key or algorithm", func() {
		other := testSecurity()
		other.AccessTokenSecret = "a-completely-different-secret-value!!"
		forged, err := auth.NewJWTTokenGenerator(other).GenerateAccessToken(7, "monk@example.com", "s")
		Expect(err).NotTo(HaveOccurred())

		_, err = gen.ValidateAccessToken(forged)
		Expect(err).To(MatchError(internal.ErrInvalidToken))

		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &auth.Claims{
			UserID:    7,
			TokenType: auth.TokenTypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "sangha-registry",
				ID:        "s",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		Expect(err).NotTo(HaveOccurred())

		_, err = gen.ValidateAccessToken(unsigned)
		Expect(err).To(MatchError(internal.ErrInvalidToken))
	})

	It("rejects garbage", func() {
		_, err := gen.ValidateAccessToken("not.a.jwt")
		Expect(err).To(MatchError(internal.ErrInvalidToken))
	})
})
