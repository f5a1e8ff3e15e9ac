package maple

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("gms", "253")
	c.baseURL = srv.URL
	return c
}

func TestSearchMaps(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gms/253/map" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("searchFor"); got != "henesys" {
			t.Errorf("searchFor = %q, want henesys", got)
		}
		w.Write([]byte(`[{"name":"Henesys","streetName":"Victoria Road","id":100000000}]`))
	}))

	tracks := c.SearchMaps(context.Background(), "henesys")
	if len(tracks) != 1 {
		t.Fatalf("got %d tracks, want 1", len(tracks))
	}
	got := tracks[0]
	if got.MapID != 100000000 || got.MapName != "Henesys" || got.StreetName != "Victoria Road" {
		t.Errorf("unexpected track: %+v", got)
	}
	if got.Region != "gms" || got.Version != "253" {
		t.Errorf("namespace not stamped: %+v", got)
	}
}

func TestSearchMapsFailureReturnsEmpty(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))

	tracks := c.SearchMaps(context.Background(), "nowhere")
	if tracks == nil {
		t.Fatal("want non-nil empty slice")
	}
	if len(tracks) != 0 {
		t.Fatalf("got %d tracks, want 0", len(tracks))
	}
}

func TestMapDetails(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gms/253/map/100000000" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"name":"Henesys","streetName":"Victoria Road","id":100000000}`))
	}))

	track := c.MapDetails(context.Background(), 100000000)
	if track == nil {
		t.Fatal("got nil track")
	}
	if track.Label() != "Henesys (Victoria Road)" {
		t.Errorf("label = %q", track.Label())
	}
}

func TestMapDetailsFailureReturnsNil(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadRequest)
	}))

	if track := c.MapDetails(context.Background(), 1); track != nil {
		t.Errorf("got %+v, want nil", track)
	}
}

func TestBGMStream(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gms/253/map/100000000/bgm" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte("mp3-bytes"))
	}))

	body, err := c.BGMStream(context.Background(), 100000000)
	if err != nil {
		t.Fatalf("BGMStream: %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(data) != "mp3-bytes" {
		t.Errorf("body = %q", data)
	}
}

func TestBGMStreamUnavailable(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))

	_, err := c.BGMStream(context.Background(), 999)
	if !errors.Is(err, ErrStreamUnavailable) {
		t.Errorf("err = %v, want ErrStreamUnavailable", err)
	}
}

func TestImageURL(t *testing.T) {
	c := NewClient("", "")
	if got := c.ImageURL(42, false); got != "https://maplestory.io/api/gms/253/map/42/minimap" {
		t.Errorf("minimap url = %q", got)
	}
	if got := c.ImageURL(42, true); got != "https://maplestory.io/api/gms/253/map/42/icon" {
		t.Errorf("icon url = %q", got)
	}
}
