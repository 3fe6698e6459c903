package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeAmazon struct {
	aud           string
	tokenInfoHits atomic.Int32
	profileHits   atomic.Int32
	failFirst     int32 // status returned by the first token-info call, 0 for none
	profileStatus int
}

func (f *fakeAmazon) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/o2/tokeninfo", func(w http.ResponseWriter, r *http.Request) {
		n := f.tokenInfoHits.Add(1)
		if n == 1 && f.failFirst != 0 {
			w.WriteHeader(int(f.failFirst))
			return
		}
		if r.URL.Query().Get("access_token") != "good-token" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_token"}`))
			return
		}
		w.Write([]byte(`{"aud":"` + f.aud + `","user_id":"amzn1.account.X"}`))
	})
	mux.HandleFunc("GET /user/profile", func(w http.ResponseWriter, r *http.Request) {
		f.profileHits.Add(1)
		if f.profileStatus != 0 {
			w.WriteHeader(f.profileStatus)
			return
		}
		if r.Header.Get("Authorization") != "bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"name":"Ann","email":"ann@example.com","user_id":"amzn1.account.X"}`))
	})
	return mux
}

func newVerifier(t *testing.T, f *fakeAmazon) *Amazon {
	t.Helper()
	srv := httptest.NewTLSServer(f.handler())
	t.Cleanup(srv.Close)

	return NewAmazon(Config{
		ClientID:     "client-1",
		TokenInfoURL: srv.URL + "/auth/o2/tokeninfo",
		ProfileURL:   srv.URL + "/user/profile",
		Timeout:      2 * time.Second,
		RetryDelay:   time.Millisecond,
		HTTPClient:   srv.Client(),
	})
}

func TestVerifySuccess(t *testing.T) {
	v := newVerifier(t, &fakeAmazon{aud: "client-1"})

	profile, err := v.Verify(context.Background(), "good-token")
	require.NoError(t, err)
	require.Equal(t, &Profile{Name: "Ann", Email: "ann@example.com"}, profile)
}

func TestVerifyAudienceMismatch(t *testing.T) {
	f := &fakeAmazon{aud: "someone-else"}
	v := newVerifier(t, f)

	_, err := v.Verify(context.Background(), "good-token")
	require.ErrorIs(t, err, ErrInvalidToken)
	require.EqualValues(t, 1, f.tokenInfoHits.Load(), "audience mismatch is not retried")
	require.Zero(t, f.profileHits.Load(), "profile must not be fetched")
}

func TestVerifyRejectedToken(t *testing.T) {
	f := &fakeAmazon{aud: "client-1"}
	v := newVerifier(t, f)

	_, err := v.Verify(context.Background(), "bad-token")
	require.ErrorIs(t, err, ErrInvalidToken)
	require.EqualValues(t, 1, f.tokenInfoHits.Load())

	_, err = v.Verify(context.Background(), "")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRetriesServerErrorOnce(t *testing.T) {
	f := &fakeAmazon{aud: "client-1", failFirst: http.StatusServiceUnavailable}
	v := newVerifier(t, f)

	profile, err := v.Verify(context.Background(), "good-token")
	require.NoError(t, err)
	require.Equal(t, "ann@example.com", profile.Email)
	require.EqualValues(t, 2, f.tokenInfoHits.Load())
}

func TestVerifyGivesUpAfterOneRetry(t *testing.T) {
	f := &fakeAmazon{aud: "client-1", profileStatus: http.StatusBadGateway}
	v := newVerifier(t, f)

	_, err := v.Verify(context.Background(), "good-token")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidToken)
	require.EqualValues(t, 2, f.profileHits.Load())
}

func TestVerifyRejectsUntrustedCertificate(t *testing.T) {
	f := &fakeAmazon{aud: "client-1"}
	srv := httptest.NewTLSServer(f.handler())
	t.Cleanup(srv.Close)

	v := NewAmazon(Config{
		ClientID:     "client-1",
		TokenInfoURL: srv.URL + "/auth/o2/tokeninfo",
		ProfileURL:   srv.URL + "/user/profile",
		RetryDelay:   time.Millisecond,
	})

	_, err := v.Verify(context.Background(), "good-token")
	require.Error(t, err)
	require.Zero(t, f.tokenInfoHits.Load())
}
