package fx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mtlprog/carvalue/internal/domain"
)

func TestFetchSellRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/blue":
			w.Write([]byte(`{"buy": 1180.5, "sell": 1205.5, "updatedAt": "2024-03-15T14:00:00Z"}`))
		case "/official":
			w.Write([]byte(`{"buy": 850, "sell": 870, "updatedAt": "2024-03-15T14:00:00Z"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, 1)

	blue, err := client.FetchSellRate(context.Background(), domain.RateTypeDaily)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if blue.String() != "1205.5" {
		t.Errorf("blue sell = %s, want 1205.5", blue)
	}

	official, err := client.FetchSellRate(context.Background(), domain.RateTypeOfficial)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if official.String() != "870" {
		t.Errorf("official sell = %s, want 870", official)
	}
}

func TestFetchSellRateRetryOn429(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"sell": 1000}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 10*time.Millisecond, 2)
	rate, err := client.FetchSellRate(context.Background(), domain.RateTypeDaily)
	if err != nil {
		t.Fatalf("unexpected error after retry: %v", err)
	}
	if rate.String() != "1000" {
		t.Errorf("rate = %s, want 1000", rate)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestFetchSellRateRejectsZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"sell": 0}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, 0)
	if _, err := client.FetchSellRate(context.Background(), domain.RateTypeDaily); err == nil {
		t.Fatal("expected error for zero sell rate")
	}
}

func TestFetchSellRateContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(1 * time.Second)
		w.Write([]byte(`{"sell": 1000}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	client := NewClient(server.URL, 0, 1)
	if _, err := client.FetchSellRate(ctx, domain.RateTypeDaily); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}
