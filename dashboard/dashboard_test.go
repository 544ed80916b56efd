package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusEndpoint(t *testing.T) {
	s := NewServer("run-1", "request_response.json")
	s.SetStep("server round")
	s.UpdateGroup("server round", map[string]string{
		"10.0.0.2:8888": "coord_ready",
		"10.0.0.1:8888": "coord_ready",
	})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var snapshot Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, "run-1", snapshot.RunID)
	assert.Equal(t, "server round", snapshot.Step)
	require.Len(t, snapshot.Groups, 1)
	require.Len(t, snapshot.Groups[0].Peers, 2)
	// Peers come back in address order regardless of map iteration
	assert.Equal(t, "10.0.0.1:8888", snapshot.Groups[0].Peers[0].Addr)
	assert.Equal(t, "10.0.0.2:8888", snapshot.Groups[0].Peers[1].Addr)
}

func TestUpdateGroupReplacesExisting(t *testing.T) {
	s := NewServer("run-1", "request_response.json")
	s.UpdateGroup("client round", map[string]string{"10.0.0.3:8888": "coord_check_peer"})
	s.UpdateGroup("client round", map[string]string{"10.0.0.3:8888": "coord_done"})

	snapshot := s.Snapshot()
	require.Len(t, snapshot.Groups, 1)
	assert.Equal(t, "coord_done", snapshot.Groups[0].Peers[0].State)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewServer("run-1", "request_response.json")
	s.UpdateGroup("server round", map[string]string{"10.0.0.1:8888": "coord_ready"})

	snapshot := s.Snapshot()
	snapshot.Groups[0].Name = "mutated"
	snapshot.Groups[0].Peers[0].State = "mutated"

	fresh := s.Snapshot()
	assert.Equal(t, "server round", fresh.Groups[0].Name)
	assert.Equal(t, "coord_ready", fresh.Groups[0].Peers[0].State)
}
