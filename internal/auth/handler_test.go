package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/auth"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

var _ = Describe("Auth Handler", func() {
	var (
		handler *auth.Handler
		gen     *auth.JWTTokenGenerator
	)

	BeforeEach(func() {
		gen = auth.NewJWTTokenGenerator(testSecurity())
		svc := auth.NewService(newMockUserRepository(), gen, stubAccess{}, bcrypt.MinCost, nil)
		handler = auth.NewHandler(svc)
	})

	Describe("Login", func() {
		It("returns tokens with the access context", func() {
			req := httptest.NewRequest(http.MethodPost, "/auth/login",
				strings.NewReader(`{"email":"abbot@example.com","password":"correct_password"}`))
			rec := httptest.NewRecorder()

			handler.Login(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var body map[string]interface{}
			Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
			Expect(body).To(HaveKey("access_token"))
			Expect(body).To(HaveKey("session_id"))
			Expect(body["access"]).To(HaveKeyWithValue("permissions", ConsistOf("monk:read")))
		})

		It("answers 401 for bad credentials", func() {
			req := httptest.NewRequest(http.MethodPost, "/auth/login",
				strings.NewReader(`{"email":"abbot@example.com","password":"nope"}`))
			rec := httptest.NewRecorder()

			handler.Login(rec, req)

			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})

		It("answers 400 for a broken body", func() {
			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{`))
			rec := httptest.NewRecorder()

			handler.Login(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("AuthMiddleware", func() {
		var (
			seen    int64
			hasUser bool
			next    http.Handler
		)

		BeforeEach(func() {
			seen, hasUser = 0, false
			next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, hasUser = internal.UserIDFromContext(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})
		})

		It("puts the caller on the context", func() {
			token, err := gen.GenerateAccessToken(2, "registrar@example.com", "s-2")
			Expect(err).NotTo(HaveOccurred())

			req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()

			handler.AuthMiddleware(next).ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(hasUser).To(BeTrue())
			Expect(seen).To(Equal(int64(2)))
		})

		It("rejects a missing token", func() {
			rec := httptest.NewRecorder()
			handler.AuthMiddleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/me", nil))

			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
			Expect(hasUser).To(BeFalse())
		})

		It("rejects a refresh token", func() {
			token, err := gen.GenerateRefreshToken(2, "registrar@example.com", "s-2")
			Expect(err).NotTo(HaveOccurred())

			req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()

			handler.AuthMiddleware(next).ServeHTTP(rec, req)

			Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("Identify", func() {
		It("returns the user and session for a valid token", func() {
			token, err := gen.GenerateAccessToken(1, "abbot@example.com", "s-1")
			Expect(err).NotTo(HaveOccurred())

			req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background())
			req.Header.Set("Authorization", "Bearer "+token)

			userID, sessionID := handler.Identify(req)
			Expect(userID).NotTo(BeNil())
			Expect(*userID).To(Equal(int64(1)))
			Expect(*sessionID).To(Equal("s-1"))
		})

		It("treats invalid tokens as anonymous", func() {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer junk")

			userID, sessionID := handler.Identify(req)
			Expect(userID).To(BeNil())
			Expect(sessionID).To(BeNil())
		})
	})
})
