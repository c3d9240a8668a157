package devtools

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/reva-ui/reva/pkg/reva"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	dt := New(&Config{})
	srv := httptest.NewServer(dt.Handler())
	t.Cleanup(func() {
		srv.Close()
		dt.Close()
	})
	return dt, srv
}

func TestHealthz(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestGraphSnapshotJSON(t *testing.T) {
	dt, srv := newTestServer(t)

	comp := reva.New(reva.Options{
		Name: "counter",
		Data: map[string]any{"count": 0},
		Computed: map[string]any{
			"double": reva.ComputedGetter(func(c *reva.Component) any {
				return c.Get("count").(int) * 2
			}),
		},
	})
	dt.Register("counter", comp)

	resp, err := http.Get(srv.URL + "/graph")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var snap struct {
		Components map[string]reva.ComponentInfo `json:"components"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	info, ok := snap.Components["counter"]
	if !ok {
		t.Fatalf("expected counter in snapshot, got %v", snap.Components)
	}
	if info.Name != "counter" || len(info.DataKeys) != 1 || len(info.Computed) != 1 {
		t.Errorf("unexpected snapshot %+v", info)
	}
}

func TestGraphSnapshotYAML(t *testing.T) {
	dt, srv := newTestServer(t)
	dt.Register("c", reva.New(reva.Options{Name: "c"}))

	resp, err := http.Get(srv.URL + "/graph.yaml")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var snap struct {
		Components map[string]reva.ComponentInfo `yaml:"components"`
	}
	if err := yaml.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("yaml decode failed: %v", err)
	}
	if _, ok := snap.Components["c"]; !ok {
		t.Errorf("expected c in snapshot, got %v", snap.Components)
	}
}

func TestComponentEndpoint(t *testing.T) {
	dt, srv := newTestServer(t)
	dt.Register("app", reva.New(reva.Options{Name: "app"}))

	resp, err := http.Get(srv.URL + "/components/app")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/components/missing")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown component, got %d", resp.StatusCode)
	}
}

func TestDeregister(t *testing.T) {
	dt, srv := newTestServer(t)
	dt.Register("gone", reva.New(reva.Options{Name: "gone"}))
	dt.Deregister("gone")

	resp, err := http.Get(srv.URL + "/components/gone")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after deregister, got %d", resp.StatusCode)
	}
}
