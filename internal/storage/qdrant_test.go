package storage_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-agent-go/internal/config"
	"recruit-agent-go/internal/storage"
)

// newFakeQdrantServer 模拟Qdrant API：两个集合都已存在，维度16
func newFakeQdrantServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request) bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet &&
			(r.URL.Path == "/collections/job_descriptions" || r.URL.Path == "/collections/applications") {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"result": {"config": {"params": {"vectors": {"size": 16, "distance": "Cosine"}}}}}`))
			return
		}
		if handler != nil && handler(w, r) {
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
}

func newTestQdrantConfig(endpoint string) *config.QdrantConfig {
	return &config.QdrantConfig{
		Endpoint:               endpoint,
		JobsCollection:         "job_descriptions",
		ApplicationsCollection: "applications",
		Dimension:              16,
	}
}

func testVector(seed float64) []float64 {
	v := make([]float64, 16)
	for i := range v {
		v[i] = seed + float64(i)/16.0
	}
	return v
}

func TestNewQdrantEnsuresBothCollections(t *testing.T) {
	var checked []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			checked = append(checked, r.URL.Path)
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"result": {"config": {"params": {"vectors": {"size": 16, "distance": "Cosine"}}}}}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, err := storage.NewQdrant(newTestQdrantConfig(server.URL),
		storage.WithDistanceMetric("Cosine"),
		storage.WithHttpTimeout(5*time.Second))

	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Contains(t, checked, "/collections/job_descriptions")
	assert.Contains(t, checked, "/collections/applications")
}

// TestNewQdrantCreatesMissingCollection 集合404时应按配置维度创建
func TestNewQdrantCreatesMissingCollection(t *testing.T) {
	created := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut:
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			vectors := body["vectors"].(map[string]interface{})
			assert.Equal(t, float64(16), vectors["size"])
			assert.Equal(t, "Cosine", vectors["distance"])
			created = true
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status": "ok", "time": 0.001}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	_, err := storage.NewQdrant(newTestQdrantConfig(server.URL))
	require.NoError(t, err)
	assert.True(t, created)
}

func TestPutDocument(t *testing.T) {
	server := newFakeQdrantServer(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Path == "/collections/applications/points" && r.Method == http.MethodPut {
			var body struct {
				Points []struct {
					ID      string                 `json:"id"`
					Vector  []float64              `json:"vector"`
					Payload map[string]interface{} `json:"payload"`
				} `json:"points"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Len(t, body.Points, 1)
			assert.Equal(t, storage.PointIDFor("app-123"), body.Points[0].ID)
			assert.Equal(t, "job-1", body.Points[0].Payload["job_id"])

			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"result": {"status": "completed"}, "status": "ok", "time": 0.001}`))
			return true
		}
		return false
	})
	defer server.Close()

	client, err := storage.NewQdrant(newTestQdrantConfig(server.URL))
	require.NoError(t, err)

	pointID, err := client.PutDocument(context.Background(), "applications", "app-123",
		testVector(0.1), map[string]interface{}{"job_id": "job-1"})

	require.NoError(t, err)
	assert.Equal(t, storage.PointIDFor("app-123"), pointID)
}

// TestPutDocumentDimensionMismatch 维度不匹配应在本地直接拒绝
func TestPutDocumentDimensionMismatch(t *testing.T) {
	server := newFakeQdrantServer(t, nil)
	defer server.Close()

	client, err := storage.NewQdrant(newTestQdrantConfig(server.URL))
	require.NoError(t, err)

	_, err = client.PutDocument(context.Background(), "applications", "app-123",
		[]float64{1, 2, 3}, nil)
	assert.Error(t, err)
}

func TestQueryDocuments(t *testing.T) {
	server := newFakeQdrantServer(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Path == "/collections/applications/points/search" && r.Method == http.MethodPost {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{
				"result": [
					{"id": "p1", "score": 0.95, "payload": {"application_id": "app-123", "job_id": "job-1"}},
					{"id": "p2", "score": 0.71, "payload": {"application_id": "app-456", "job_id": "job-1"}}
				],
				"status": "ok",
				"time": 0.001
			}`))
			return true
		}
		return false
	})
	defer server.Close()

	client, err := storage.NewQdrant(newTestQdrantConfig(server.URL))
	require.NoError(t, err)

	results, err := client.QueryDocuments(context.Background(), "applications", testVector(0.2), 10, nil)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "p1", results[0].ID)
	assert.InDelta(t, 0.95, float64(results[0].Score), 0.01)
	assert.Equal(t, "app-123", results[0].Payload["application_id"])
}

func TestGetDocumentNotFound(t *testing.T) {
	server := newFakeQdrantServer(t, func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Path == "/collections/job_descriptions/points" && r.Method == http.MethodPost {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"result": [], "status": "ok", "time": 0.001}`))
			return true
		}
		return false
	})
	defer server.Close()

	client, err := storage.NewQdrant(newTestQdrantConfig(server.URL))
	require.NoError(t, err)

	doc, err := client.GetDocument(context.Background(), "job_descriptions", "missing-job")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

// TestPointIDForDeterministic 同一业务ID总是映射到同一个point
func TestPointIDForDeterministic(t *testing.T) {
	assert.Equal(t, storage.PointIDFor("job-1"), storage.PointIDFor("job-1"))
	assert.NotEqual(t, storage.PointIDFor("job-1"), storage.PointIDFor("job-2"))
}
