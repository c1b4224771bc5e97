package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVerifySession(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/verify" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") == "Bearer good" {
			_, _ = w.Write([]byte(`{"valid":true,"user":{"id":3,"name":"ana"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"valid":true}`))
	}))
	defer srv.Close()

	good := &http.Client{Transport: headerRT{base: http.DefaultTransport, token: "good"}}
	vr, err := VerifySession(context.Background(), good, srv.URL)
	if err != nil || !vr.Valid || vr.User.ID != 3 {
		t.Fatalf("VerifySession unexpected: vr=%+v err=%v", vr, err)
	}

	// valid without a user is not a usable session
	vr, err = VerifySession(context.Background(), srv.Client(), srv.URL)
	if err != nil || vr.Valid {
		t.Fatalf("expected invalid session, got vr=%+v err=%v", vr, err)
	}
}

type headerRT struct {
	base  http.RoundTripper
	token string
}

func (h headerRT) RoundTrip(r *http.Request) (*http.Response, error) {
	c := r.Clone(r.Context())
	c.Header.Set("Authorization", "Bearer "+h.token)
	return h.base.RoundTrip(c)
}
