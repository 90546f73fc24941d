package main

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDb(t *testing.T) (*Storage, *sql.DB) {
	storage := &Storage{}
	db, err := storage.ConnectDb("file:" + filepath.Join(t.TempDir(), "runs.db"))
	require.Nil(t, err)
	t.Cleanup(func() { db.Close() })
	require.Nil(t, storage.InitRunsDb(db))
	return storage, db
}

func TestStorageRunLifecycle(t *testing.T) {
	storage, db := openTestDb(t)
	// initialization is idempotent
	require.Nil(t, storage.InitRunsDb(db))

	run, err := storage.StartRun(db, TargetAll, map[string]any{"arch": "arm64", "cpu": 8})
	require.Nil(t, err)
	require.NotEmpty(t, run)

	parameters, err := storage.Parameters(db, run)
	require.Nil(t, err)
	require.Equal(t, map[string]string{"arch": "arm64", "cpu": "8"}, parameters)

	sink := NewStoreSink(storage, db, run)
	require.Nil(t, sink.Emit(Started("hackbench")))
	require.Nil(t, sink.Emit(OutputLine("hackbench", "Time: 0.5")))
	require.Nil(t, sink.Emit(DiagnosticLine("hackbench", "warning")))
	require.Nil(t, sink.Emit(Completed("hackbench", 0)))
	require.Nil(t, sink.Emit(AllNotes([]Note{{Benchmark: "hackbench", Text: "lower is better"}})))
	require.Nil(t, storage.FinishRun(db, run, "completed"))

	events, err := storage.RunEvents(db, run)
	require.Nil(t, err)
	require.Len(t, events, 5)
	require.Equal(t, "started", events[0].Kind)
	require.Equal(t, "Starting benchmark hackbench", events[0].Text)
	require.Equal(t, "Time: 0.5", events[1].Text)
	require.Equal(t, "diagnostic", events[2].Kind)
	require.Equal(t, "Notes:\n- hackbench: lower is better", events[4].Text)
	for i, event := range events {
		require.Equal(t, i, event.Seq)
	}

	runs, err := storage.ListRuns(db, 10)
	require.Nil(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, run, runs[0].Id)
	require.Equal(t, TargetAll, runs[0].Target)
	require.Equal(t, "completed", runs[0].Status)
	require.NotEmpty(t, runs[0].Finished)
}

func TestStorageEventsKeepFailureDetails(t *testing.T) {
	storage, db := openTestDb(t)
	run, err := storage.StartRun(db, "pipebench", nil)
	require.Nil(t, err)

	sink := NewStoreSink(storage, db, run)
	require.Nil(t, sink.Emit(Failed("pipebench", 1)))
	require.Nil(t, sink.Emit(ErrorEvent("pipebench", &LaunchError{Path: "/bin/pipebench", Err: ErrNotFound})))

	events, err := storage.RunEvents(db, run)
	require.Nil(t, err)
	require.Len(t, events, 2)
	require.Equal(t, 1, events[0].ExitCode)
	require.Contains(t, events[1].Text, "failed to launch /bin/pipebench")
}

func TestStorageCreateDatabase(t *testing.T) {
	var created []map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "/v1/organizations/looper/databases", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var body map[string]string
		require.Nil(t, json.NewDecoder(r.Body).Decode(&body))
		for _, existing := range created {
			if existing["name"] == body["name"] {
				w.WriteHeader(http.StatusConflict)
				return
			}
		}
		created = append(created, body)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	storage := &Storage{ApiUrl: server.URL + "/", OrgName: "looper", GroupName: "bench", ApiToken: "secret"}
	require.Nil(t, storage.CreateDatabase("runs"))
	require.Nil(t, storage.CreateDatabase("runs"))
	require.Equal(t, []map[string]string{{"name": "runs", "group": "bench"}}, created)

	storage.ApiToken = "wrong"
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer failing.Close()
	storage.ApiUrl = failing.URL
	require.ErrorContains(t, storage.CreateDatabase("runs"), "unexpected status code 401")
}

func TestStorageDbUrl(t *testing.T) {
	storage := &Storage{OrgName: "looper", AuthToken: "token"}
	require.Equal(t, "libsql://runs-looper.turso.io?authToken=token", storage.DbUrl("runs"))
}
