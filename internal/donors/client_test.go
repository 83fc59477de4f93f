package donors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donorsense/internal/model"
)

func TestSign(t *testing.T) {
	sig := Sign("secret", "nonce", "key", "1700000000000")
	if len(sig) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(sig))
	}
	if sig != Sign("secret", "nonce", "key", "1700000000000") {
		t.Fatal("signature is not deterministic")
	}
	if sig == Sign("other", "nonce", "key", "1700000000000") {
		t.Fatal("signature ignores the secret")
	}
}

func TestGetDonor(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		key := r.Header.Get("api-key")
		nonce := r.Header.Get("nonce")
		ts := r.Header.Get("timestamp")
		sign := r.Header.Get("sign")
		require.Equal(t, "test-key", key)
		require.NotEmpty(t, ts)
		require.Equal(t, ts, nonce)
		require.Equal(t, Sign("test-secret", nonce, key, ts), sign)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(model.Donor{
			ID: "d-1",
			Attributes: map[string]model.Value{
				"region": model.String("west"),
			},
			Donations: []model.Donation{
				{Amount: 50, Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
				{Amount: 75, Date: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", "test-secret", srv.URL, time.Second, 100)
	donor, err := c.GetDonor(context.Background(), "d-1")
	require.NoError(t, err)
	require.NotNil(t, donor)

	assert.Equal(t, "/api/v1/donors/d-1", gotPath)
	assert.Equal(t, "d-1", donor.ID)
	assert.Len(t, donor.Donations, 2)
	assert.Equal(t, 75.0, donor.Donations[1].Amount)
}

func TestGetDonor_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient("k", "s", srv.URL, time.Second, 100)
	donor, err := c.GetDonor(context.Background(), "nobody")
	require.Error(t, err)
	assert.Nil(t, donor)

	var lookupErr *model.LookupError
	require.True(t, errors.As(err, &lookupErr))
	assert.Equal(t, "donor", lookupErr.Kind)
	assert.Equal(t, "nobody", lookupErr.ID)
}

func TestGetDonor_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient("k", "s", srv.URL, time.Second, 100)
	_, err := c.GetDonor(context.Background(), "d-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestGetDonor_EmptyID(t *testing.T) {
	c := NewClient("k", "s", "http://unused", time.Second, 100)
	_, err := c.GetDonor(context.Background(), "")

	var valErr *model.ValidationError
	require.True(t, errors.As(err, &valErr))
}

func TestListRecentDonors(t *testing.T) {
	var gotSince, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSince = r.URL.Query().Get("since")
		gotLimit = r.URL.Query().Get("limit")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]model.Donor{{ID: "d-1"}, {ID: "d-2"}})
	}))
	defer srv.Close()

	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	c := NewClient("k", "s", srv.URL, time.Second, 100)
	out, err := c.ListRecentDonors(context.Background(), since, 50)
	require.NoError(t, err)

	assert.Len(t, out, 2)
	assert.Equal(t, "1785542400000", gotSince)
	assert.Equal(t, "50", gotLimit)
}

func TestListRecentDonors_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]model.Donor{})
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient("k", "s", srv.URL, time.Second, 100)
	_, err := c.ListRecentDonors(ctx, time.Now(), 10)
	require.Error(t, err)
}
