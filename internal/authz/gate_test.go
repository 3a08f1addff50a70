package authz_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/authz"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type denialCounter struct {
	kinds []string
}

func (d *denialCounter) AccessDenied(kind string) {
	d.kinds = append(d.kinds, kind)
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			Kind    string   `json:"kind"`
			Missing []string `json:"missing"`
		} `json:"details"`
	} `json:"error"`
}

var _ = Describe("Gate", func() {
	const userID int64 = 11

	var (
		store   *MockStore
		gate    *authz.Gate
		denials *denialCounter
		reached bool
		next    http.Handler
	)

	serve := func(guard func(http.Handler) http.Handler, ctx context.Context) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/monks", nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		guard(next).ServeHTTP(rec, req)
		return rec
	}

	decode := func(rec *httptest.ResponseRecorder) errorBody {
		var body errorBody
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body
	}

	BeforeEach(func() {
		store = NewMockStore()
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		denials = &denialCounter{}
		gate = authz.NewGate(authz.NewResolver(store, slogger), denials, slogger)
		reached = false
		next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reached = true
			w.WriteHeader(http.StatusOK)
		})
	})

	authed := func() context.Context {
		return internal.ContextWithUserID(context.Background(), userID)
	}

	It("rejects anonymous callers with 401", func() {
		rec := serve(gate.RequirePermission("monk:read"), context.Background())
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		Expect(reached).To(BeFalse())
	})

	It("passes when the permission is held", func() {
		store.overrides[userID] = []authz.PermissionOverride{{Permission: "monk:read", Granted: true, IsActive: true}}

		rec := serve(gate.RequirePermission("monk:read"), authed())
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(reached).To(BeTrue())
	})

	It("names the missing permission in the 403", func() {
		rec := serve(gate.RequirePermission("monk:delete"), authed())
		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(reached).To(BeFalse())

		body := decode(rec)
		Expect(body.Error.Code).To(Equal(string(internal.ErrCodeAccessDenied)))
		Expect(body.Error.Details.Kind).To(Equal("permission"))
		Expect(body.Error.Details.Missing).To(Equal([]string{"monk:delete"}))
		Expect(denials.kinds).To(Equal([]string{"permission"}))
	})

	It("accepts any of several permissions", func() {
		store.overrides[userID] = []authz.PermissionOverride{{Permission: "monk:approve", Granted: true, IsActive: true}}

		rec := serve(gate.RequireAnyPermission("monk:write", "monk:approve"), authed())
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("lists every candidate when none is held", func() {
		rec := serve(gate.RequireAnyPermission("monk:write", "monk:approve"), authed())
		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(decode(rec).Error.Details.Missing).To(ConsistOf("monk:write", "monk:approve"))
	})

	It("checks role membership", func() {
		store.roles[userID] = []authz.RoleAssignment{{RoleID: 5, Level: "STAFF", IsActive: true}}

		Expect(serve(gate.RequireRole(5), authed()).Code).To(Equal(http.StatusOK))

		rec := serve(gate.RequireRole(6), authed())
		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(decode(rec).Error.Details.Missing).To(Equal([]string{"6"}))
	})

	It("checks group membership", func() {
		store.memberships[userID] = []authz.GroupMembership{{GroupID: 1, Name: "head-office", IsActive: true}}

		Expect(serve(gate.RequireGroup("head-office"), authed()).Code).To(Equal(http.StatusOK))

		rec := serve(gate.RequireGroup("finance"), authed())
		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(decode(rec).Error.Details.Kind).To(Equal("group"))
	})

	It("lets a super-admin through every guard", func() {
		store.roles[userID] = []authz.RoleAssignment{{RoleID: 1, Level: authz.LevelSuperAdmin, IsActive: true}}

		Expect(serve(gate.RequirePermission("audit:read"), authed()).Code).To(Equal(http.StatusOK))
		Expect(serve(gate.RequireRole(99), authed()).Code).To(Equal(http.StatusOK))
		Expect(serve(gate.RequireGroup("nowhere"), authed()).Code).To(Equal(http.StatusOK))
		Expect(denials.kinds).To(BeEmpty())
	})
})
