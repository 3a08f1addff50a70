package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/audit"
	"github.com/frahmantamala/sangha-registry/internal/transport/middleware"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recordedCall struct {
	call       audit.APICall
	request    internal.RequestContext
	hadRequest bool
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeRecorder) LogAPICall(ctx context.Context, call audit.APICall) {
	rc, ok := internal.CurrentRequest(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{call: call, request: rc, hadRequest: ok})
}

type fakeObserver struct {
	method, route, status string
}

func (f *fakeObserver) ObserveHTTP(method, route, status string, _ float64) {
	f.method, f.route, f.status = method, route, status
}

var _ = Describe("RequestContext middleware", func() {
	var (
		router   *chi.Mux
		recorder *fakeRecorder
		seen     internal.RequestContext
		seenOK   bool
		leaked   context.Context
	)

	identify := func(r *http.Request) (*int64, *string) {
		if r.Header.Get("Authorization") == "" {
			return nil, nil
		}
		userID, session := int64(42), "session-42"
		return &userID, &session
	}

	BeforeEach(func() {
		recorder = &fakeRecorder{}
		seenOK = false
		router = chi.NewRouter()
		router.Use(middleware.RequestContext(recorder, identify))
		router.Get("/monks/{id}", func(w http.ResponseWriter, r *http.Request) {
			seen, seenOK = internal.CurrentRequest(r.Context())
			leaked = r.Context()
			w.WriteHeader(http.StatusAccepted)
		})
	})

	It("exposes the correlation bundle to the handler", func() {
		req := httptest.NewRequest(http.MethodGet, "/monks/9", nil)
		req.Header.Set("Authorization", "Bearer x")
		req.Header.Set("User-Agent", "registry-test")
		req.RemoteAddr = "10.1.2.3:5555"
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		Expect(seenOK).To(BeTrue())
		Expect(seen.TransactionID).NotTo(BeEmpty())
		Expect(*seen.UserID).To(Equal(int64(42)))
		Expect(*seen.SessionID).To(Equal("session-42"))
		Expect(seen.IPAddress).To(Equal("10.1.2.3"))
		Expect(seen.UserAgent).To(Equal("registry-test"))
		Expect(seen.Method).To(Equal(http.MethodGet))
		Expect(rec.Header().Get(middleware.TransactionHeader)).To(Equal(seen.TransactionID))
	})

	It("records the summary with the route pattern and final status", func() {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/monks/9", nil))

		Expect(recorder.calls).To(HaveLen(1))
		got := recorder.calls[0]
		Expect(got.hadRequest).To(BeTrue())
		Expect(got.call.Route).To(Equal("/monks/{id}"))
		Expect(got.call.StatusCode).To(Equal(http.StatusAccepted))
		Expect(got.request.UserID).To(BeNil())
		Expect(got.request.TransactionID).To(Equal(seen.TransactionID))
	})

	It("clears the bundle once the request is over", func() {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/monks/9", nil))

		_, ok := internal.CurrentRequest(leaked)
		Expect(ok).To(BeFalse())
	})

	It("gives concurrent requests their own bundles", func() {
		ids := make(chan string, 20)
		r := chi.NewRouter()
		r.Use(middleware.RequestContext(nil, nil))
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			rc, _ := internal.CurrentRequest(req.Context())
			ids <- rc.TransactionID
		})

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
			}()
		}
		wg.Wait()
		close(ids)

		unique := map[string]struct{}{}
		for id := range ids {
			unique[id] = struct{}{}
		}
		Expect(unique).To(HaveLen(20))
	})
})

var _ = Describe("Metrics middleware", func() {
	It("labels by route pattern", func() {
		observer := &fakeObserver{}
		router := chi.NewRouter()
		router.Use(middleware.Metrics(observer))
		router.Get("/branches/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/branches/77", nil))

		Expect(observer.route).To(Equal("/branches/{id}"))
		Expect(observer.status).To(Equal("404"))
		Expect(observer.method).To(Equal(http.MethodGet))
	})
})

var _ = Describe("RecoveryMiddleware", func() {
	It("answers 500 without leaking the panic value", func() {
		h := middleware.RecoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("secret detail")
		}))
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Body.String()).NotTo(ContainSubstring("secret detail"))
	})
})

var _ = Describe("RequestID", func() {
	It("keeps an inbound trace id", func() {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.TraceHeader, "trace-1")

		middleware.RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rec, req)

		Expect(rec.Header().Get(middleware.TraceHeader)).To(Equal("trace-1"))
	})
})
