package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/gideon/internal/history"
)

func (s *IntegrationTestSuite) doRequest(ctx context.Context, method, path, body string) (int, []byte) {
	t := s.T()

	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, serverEndpoint+path, bodyReader)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, respBytes
}

func (s *IntegrationTestSuite) TestAccountDeletion() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t := s.T()

	status, _ := s.doRequest(ctx, "POST", "/profile", `{"name":"Mara","fitnessGoal":"endurance"}`)
	require.Equal(t, http.StatusOK, status)
	status, _ = s.doRequest(ctx, "POST", "/history/progress", `{"date":"2026-03-01","weight":70}`)
	require.Equal(t, http.StatusCreated, status)

	exists, err := s.redisClient.Exists(ctx, redisKeyPrefix+"profile_data", redisKeyPrefix+"progress_history").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), exists)

	status, body := s.doRequest(ctx, "DELETE", "/account?confirm=DELETE", "")
	require.Equal(t, http.StatusOK, status, string(body))

	exists, err = s.redisClient.Exists(ctx, redisKeyPrefix+"profile_data", redisKeyPrefix+"progress_history").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func (s *IntegrationTestSuite) TestExportRateLimit() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t := s.T()

	for i := 0; i < exportLimitPerMin; i++ {
		status, body := s.doRequest(ctx, "GET", "/export/history", "")
		require.Equal(t, http.StatusOK, status, string(body))
	}

	status, _ := s.doRequest(ctx, "GET", "/export/profile", "")
	assert.Equal(t, http.StatusTooEarly, status)
}

func (s *IntegrationTestSuite) TestProgressPersistedInRedis() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	t := s.T()

	status, body := s.doRequest(ctx, "POST", "/history/progress", `{"date":"2026-03-02","weight":71.5,"notes":"after deload"}`)
	require.Equal(t, http.StatusCreated, status, string(body))
	var added history.ProgressRecord
	require.NoError(t, json.Unmarshal(body, &added))

	raw, err := s.redisClient.Get(ctx, redisKeyPrefix+"progress_history").Bytes()
	require.NoError(t, err)
	var persisted []history.ProgressRecord
	require.NoError(t, json.Unmarshal(raw, &persisted))
	require.NotEmpty(t, persisted)
	assert.Equal(t, added.ID, persisted[0].ID)
	assert.Equal(t, "after deload", persisted[0].Notes)

	// malformed data written by someone else reads as an empty collection
	require.NoError(t, s.redisClient.Set(ctx, redisKeyPrefix+"progress_history", "{not json", 0).Err())
	status, body = s.doRequest(ctx, "GET", "/history/progress", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"total":0`)

	status, _ = s.doRequest(ctx, "DELETE", "/history/progress/"+added.ID, "")
	assert.Equal(t, http.StatusNotFound, status)
}
