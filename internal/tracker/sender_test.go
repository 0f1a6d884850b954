package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/user/webmonitor/pkg/beacon"
)

func TestHTTPSenderPostsJSONAndKeepsCookies(t *testing.T) {
	var (
		mu      sync.Mutex
		bodies  []beacon.Batch
		cookies []string
		origins []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b beacon.Batch
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			t.Errorf("decode: %v", err)
		}
		mu.Lock()
		bodies = append(bodies, b)
		if c, err := r.Cookie("session"); err == nil {
			cookies = append(cookies, c.Value)
		}
		origins = append(origins, r.Header.Get("Origin"))
		mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL+"/api/collect", WithOrigin("https://shop.test/cart?id=1"))
	s.Send(beacon.Batch{SiteID: "wm_1", Timestamp: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}
	s.Send(beacon.Batch{SiteID: "wm_1", Timestamp: 2})
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 2 || bodies[1].Timestamp != 2 {
		t.Fatalf("bodies = %+v", bodies)
	}
	if len(cookies) != 1 || cookies[0] != "abc" {
		t.Errorf("cookie jar not used: %v", cookies)
	}
	if origins[0] != "https://shop.test" {
		t.Errorf("origin = %q", origins[0])
	}
}

func TestHTTPSenderSendDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	s := NewHTTPSender(srv.URL)
	start := time.Now()
	s.Send(beacon.Batch{SiteID: "wm_1"})
	if d := time.Since(start); d > time.Second {
		t.Fatalf("Send blocked for %v", d)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Close(ctx); err == nil {
		t.Error("Close should report the deadline while a send is in flight")
	}
}

func TestHTTPSenderToleratesUnreachableEndpoint(t *testing.T) {
	s := NewHTTPSender("http://127.0.0.1:1/api/collect", WithSendTimeout(time.Second))
	s.Send(beacon.Batch{SiteID: "wm_1"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close() = %v", err)
	}
}

func TestHTTPSenderSendDuringClose(t *testing.T) {
	var (
		mu    sync.Mutex
		count int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		count++
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				s.Send(beacon.Batch{SiteID: "wm_1", Timestamp: int64(j)})
			}
		}()
	}
	for i := 0; i < 10; i++ {
		if err := s.Close(ctx); err != nil {
			t.Fatalf("Close() = %v", err)
		}
	}
	wg.Wait()
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if count != 100 {
		t.Errorf("delivered %d beacons, want 100", count)
	}
}
