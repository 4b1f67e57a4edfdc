package graph

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/drivesync/pkg/errors"
)

func newGraphServer(t *testing.T, siteCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sites/contoso.sharepoint.com:/sites/Legal", func(w http.ResponseWriter, r *http.Request) {
		siteCalls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"id": "site-1"})
	})
	mux.HandleFunc("GET /sites/site-1/drives", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"value": []map[string]any{
			{"id": "drive-other", "name": "Archive"},
			{"id": "drive-1", "name": "Documents"},
		}})
	})
	mux.HandleFunc("GET /drives/drive-1/root/children", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			json.NewEncoder(w).Encode(map[string]any{"value": []map[string]any{
				{"id": "3", "name": "c.pdf"},
			}})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"value": []map[string]any{
				{"id": "1", "name": "a.pdf", "size": 10},
				{"id": "2", "name": "b.txt"},
			},
			"@odata.nextLink": server.URL + "/drives/drive-1/root/children?page=2",
		})
	})
	mux.HandleFunc("GET /drives/drive-1/items/1/content", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 body"))
	})
	mux.HandleFunc("GET /drives/drive-1/items/{id}/content", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(r.PathValue("id") + " " + r.URL.EscapedPath()))
	})
	mux.HandleFunc("GET /drives/drive-1/items/missing/content", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testRemoteConfig(baseURL string) config.RemoteConfig {
	return config.RemoteConfig{
		SiteHost:  "contoso.sharepoint.com",
		SitePath:  "/sites/Legal",
		DriveName: "Documents",
		BaseURL:   baseURL,
	}
}

func TestListItems_FollowsPagination(t *testing.T) {
	var siteCalls atomic.Int32
	server := newGraphServer(t, &siteCalls)
	c := New(server.Client(), testRemoteConfig(server.URL))

	items, err := c.ListItems(context.Background())
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	for i, want := range []string{"1", "2", "3"} {
		if items[i]["id"] != want {
			t.Errorf("item %d id = %v, want %s", i, items[i]["id"], want)
		}
	}

	if _, err := c.ListItems(context.Background()); err != nil {
		t.Fatalf("second ListItems: %v", err)
	}
	if got := siteCalls.Load(); got != 1 {
		t.Fatalf("site resolved %d times, want 1", got)
	}
}

func TestFetchContent(t *testing.T) {
	var siteCalls atomic.Int32
	server := newGraphServer(t, &siteCalls)
	c := New(server.Client(), testRemoteConfig(server.URL))

	content, err := c.FetchContent(context.Background(), "1")
	if err != nil {
		t.Fatalf("FetchContent: %v", err)
	}
	if content.MediaType != "application/pdf" {
		t.Errorf("media type = %q", content.MediaType)
	}
	if string(content.Body) != "%PDF-1.4 body" {
		t.Errorf("body = %q", content.Body)
	}

	_, err = c.FetchContent(context.Background(), "missing")
	if !errors.Is(err, apperrors.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}

func TestFetchContent_EscapesItemID(t *testing.T) {
	var siteCalls atomic.Int32
	server := newGraphServer(t, &siteCalls)
	c := New(server.Client(), testRemoteConfig(server.URL))

	content, err := c.FetchContent(context.Background(), "dir/x?y#z")
	if err != nil {
		t.Fatalf("FetchContent: %v", err)
	}
	want := "dir/x?y#z /drives/drive-1/items/dir%2Fx%3Fy%23z/content"
	if string(content.Body) != want {
		t.Fatalf("server saw %q, want %q", content.Body, want)
	}
}

func TestEscapePath(t *testing.T) {
	tests := map[string]string{
		"/sites/Legal":      "/sites/Legal",
		"/sites/Legal Team": "/sites/Legal%20Team",
		"/sites/R&D?x":      "/sites/R&D%3Fx",
	}
	for in, want := range tests {
		if got := escapePath(in); got != want {
			t.Errorf("escapePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestListItems_DriveNotFound(t *testing.T) {
	var siteCalls atomic.Int32
	server := newGraphServer(t, &siteCalls)
	cfg := testRemoteConfig(server.URL)
	cfg.DriveName = "Nope"
	c := New(server.Client(), cfg)

	_, err := c.ListItems(context.Background())
	if !errors.Is(err, apperrors.ErrListing) {
		t.Fatalf("expected ErrListing, got %v", err)
	}
	if !apperrors.IsStageFatal(err) {
		t.Fatal("listing failure must be stage-fatal")
	}
}

func TestNewHTTPClient_AttachesToken(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer tokenServer.Close()

	var gotAuth atomic.Value
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer api.Close()

	client := NewHTTPClient(context.Background(), config.RemoteConfig{
		ClientID:     "app",
		ClientSecret: "secret",
		TokenURL:     tokenServer.URL,
	})
	resp, err := client.Get(api.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if got, _ := gotAuth.Load().(string); got != "Bearer tok-123" {
		t.Fatalf("Authorization = %q", got)
	}
}
