package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRequireAdmin_AllowsAdminKey_BlocksPublicKey(t *testing.T) {
	rejected := 0
	keys := Keys{
		Public:   []string{"pub_key"},
		Admin:    []string{"adm_key"},
		OnReject: func() { rejected++ },
	}

	// Admin key -> 200
	reqAdm := httptest.NewRequest(http.MethodPost, "/api/ticks", nil)
	reqAdm.Header.Set("X-API-Key", "adm_key")
	recAdm := httptest.NewRecorder()
	RequireAdmin(keys)(okHandler).ServeHTTP(recAdm, reqAdm)
	if recAdm.Code != http.StatusOK {
		t.Fatalf("admin key should pass; got %d", recAdm.Code)
	}

	// Bearer works too
	reqBearer := httptest.NewRequest(http.MethodPost, "/api/ticks", nil)
	reqBearer.Header.Set("Authorization", "Bearer adm_key")
	recBearer := httptest.NewRecorder()
	RequireAdmin(keys)(okHandler).ServeHTTP(recBearer, reqBearer)
	if recBearer.Code != http.StatusOK {
		t.Fatalf("bearer admin key should pass; got %d", recBearer.Code)
	}

	// Public key -> 403
	reqPub := httptest.NewRequest(http.MethodPost, "/api/ticks", nil)
	reqPub.Header.Set("X-API-Key", "pub_key")
	recPub := httptest.NewRecorder()
	RequireAdmin(keys)(okHandler).ServeHTTP(recPub, reqPub)
	if recPub.Code != http.StatusForbidden {
		t.Fatalf("public key should be forbidden; got %d", recPub.Code)
	}

	// Missing key -> 401
	reqNone := httptest.NewRequest(http.MethodPost, "/api/ticks", nil)
	recNone := httptest.NewRecorder()
	RequireAdmin(keys)(okHandler).ServeHTTP(recNone, reqNone)
	if recNone.Code != http.StatusUnauthorized {
		t.Fatalf("missing key should be 401; got %d", recNone.Code)
	}

	if rejected != 2 {
		t.Fatalf("rejected=%d", rejected)
	}
}

func TestRequireAny(t *testing.T) {
	keys := Keys{Public: []string{"pub_key"}, Admin: []string{"adm_key"}}
	cases := map[string]int{
		"pub_key": http.StatusOK,
		"adm_key": http.StatusOK,
		"nope":    http.StatusUnauthorized,
		"":        http.StatusUnauthorized,
	}
	for key, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/ticks/latest", nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		rec := httptest.NewRecorder()
		RequireAny(keys)(okHandler).ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("key %q: want %d got %d", key, want, rec.Code)
		}
	}
}

func TestNoKeysConfiguredAllowsAll(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireAdmin(Keys{})(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200 got %d", rec.Code)
	}
}
