package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/canopyviz/canopy/pkg/cache"
	"github.com/canopyviz/canopy/pkg/pipeline"
)

const testStream = `order repr_x repr_y id_x id_y sim size_x size_y merged edges centrality quality
0 a b 1 2 0.90 1 1 2 1 0.5 1.20
1 a c 1 3 0.40 2 1 3 2 0.5 2.40
`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	runner := pipeline.NewRunner(fc, nil, nil)
	t.Cleanup(func() { runner.Close() })

	ts := httptest.NewServer(New(runner, nil).Router())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("response should carry a request id")
	}
}

func TestCutWithBody(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/cut?resolutions=2,1", "text/plain", strings.NewReader(testStream))
	if err != nil {
		t.Fatalf("POST /v1/cut: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body: %s", resp.StatusCode, body)
	}

	var got cutResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RunID == "" {
		t.Error("run_id should be set")
	}
	if got.ItemCount != 3 {
		t.Errorf("item_count = %d, want 3", got.ItemCount)
	}
	if len(got.Clusterings) != 2 {
		t.Fatalf("clusterings = %d, want 2", len(got.Clusterings))
	}
	if got.Clusterings[0].Resolution != 2 {
		t.Errorf("first resolution = %d, want 2 (coarsest first)", got.Clusterings[0].Resolution)
	}
	if len(got.Clusterings[1].Clusters) != 3 {
		t.Errorf("R=1 clusters = %d, want 3", len(got.Clusterings[1].Clusters))
	}
}

func TestUploadThenCutByHash(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/streams", "text/plain", strings.NewReader(testStream))
	if err != nil {
		t.Fatalf("POST /v1/streams: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload status = %d", resp.StatusCode)
	}
	var up uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&up); err != nil {
		t.Fatalf("decode upload: %v", err)
	}
	if up.Hash == "" || up.Size != len(testStream) {
		t.Fatalf("upload response = %+v", up)
	}

	resp2, err := http.Post(ts.URL+"/v1/cut?resolutions=1&stream="+up.Hash, "", nil)
	if err != nil {
		t.Fatalf("POST /v1/cut by hash: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp2.Body)
		t.Fatalf("status = %d, body: %s", resp2.StatusCode, body)
	}
	var got cutResponse
	if err := json.NewDecoder(resp2.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.StreamHash != up.Hash {
		t.Errorf("stream_hash = %s, want %s", got.StreamHash, up.Hash)
	}
}

func TestCutUnknownStreamHash(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/cut?resolutions=1&stream=deadbeef", "", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCutValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name       string
		url        string
		body       string
		wantStatus int
	}{
		{
			name:       "MissingResolutions",
			url:        "/v1/cut",
			body:       testStream,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "EmptyBody",
			url:        "/v1/cut?resolutions=1",
			body:       "",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "NonPositiveResolution",
			url:        "/v1/cut?resolutions=0",
			body:       testStream,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "NonNumericResolution",
			url:        "/v1/cut?resolutions=2,abc",
			body:       testStream,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "MalformedStream",
			url:        "/v1/cut?resolutions=1",
			body:       "header\nnot a record\n",
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+tt.url, "text/plain", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("status = %d, want %d, body: %s", resp.StatusCode, tt.wantStatus, body)
			}
		})
	}
}

func TestMapDOT(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/map?resolutions=2,1&annotate=true", "text/plain", strings.NewReader(testStream))
	if err != nil {
		t.Fatalf("POST /v1/map: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/vnd.graphviz" {
		t.Errorf("content type = %s, want text/vnd.graphviz", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "digraph resolutionmap") {
		t.Errorf("DOT body malformed:\n%s", body)
	}
}

func TestMapInvalidFormat(t *testing.T) {
	ts := newTestServer(t)

	for _, format := range []string{"png", "tsv"} {
		resp, err := http.Post(ts.URL+"/v1/map?resolutions=1&format="+format, "text/plain", strings.NewReader(testStream))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("format %s: status = %d, want 400", format, resp.StatusCode)
		}
	}
}

func TestMapJSON(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/v1/map?resolutions=2,1&format=json&min_size=1", "text/plain", strings.NewReader(testStream))
	if err != nil {
		t.Fatalf("POST /v1/map: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body: %s", resp.StatusCode, body)
	}
	var doc struct {
		Nodes []json.RawMessage `json:"nodes"`
		Links []json.RawMessage `json:"links"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(doc.Nodes) != 4 || len(doc.Links) != 3 {
		t.Errorf("document = %d nodes %d links, want 4/3", len(doc.Nodes), len(doc.Links))
	}
}
