package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stratalog/internal/store"
)

// recordRuns answers the graph program's queries into a fresh run log.
func recordRuns(t *testing.T, extra ...string) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "runs.db")
	_, _ = runSub(t, NewQueryCommand, "text", append([]string{program("graph.cue"), "--db", db}, extra...)...)
	return db
}

func TestRunsMissingDatabaseFlag(t *testing.T) {
	_, err := runSub(t, NewRunsCommand, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestRunsEmptyDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := runSub(t, NewRunsCommand, "text", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs found in database.")
}

func TestRunsListsRecordedRuns(t *testing.T) {
	db := recordRuns(t)

	out, err := runSub(t, NewRunsCommand, "text", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "?- path(1, ?Y).")
	assert.Contains(t, out, "?- edge(?X, 4).")
	assert.Contains(t, out, "2 run(s)")

	out, err = runSub(t, NewRunsCommand, "json", "--db", db, "--limit", "1")
	require.NoError(t, err)
	var resp struct {
		Status string       `json:"status"`
		Data   []RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, int64(1), resp.Data[0].Seq)
	assert.Equal(t, "ok", resp.Data[0].Status)
	assert.True(t, resp.Data[0].Rewritten)
	assert.NotEmpty(t, resp.Data[0].AnswerHash)
}

func TestRunsShowsErrorCode(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	_, err := runSub(t, NewQueryCommand, "text", program("graph.cue"), "--db", db,
		"--query", `{path: ["?X", "?Y"]}`,
		"--config", writeConfig(t, "evaluation_max_tuples: 2\n"))
	requireExitCode(t, ExitFailure, err)

	out, err := runSub(t, NewRunsCommand, "text", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "error TOO_MANY_TUPLES")
}

func TestRunsFilters(t *testing.T) {
	db := recordRuns(t)
	_, err := runSub(t, NewQueryCommand, "text", program("graph.cue"), "--db", db,
		"--query", `{path: ["?X", "?Y"]}`,
		"--config", writeConfig(t, "evaluation_max_tuples: 2\n"))
	requireExitCode(t, ExitFailure, err)

	list := func(t *testing.T, args ...string) []RunSummary {
		t.Helper()
		out, err := runSub(t, NewRunsCommand, "json", append([]string{"--db", db}, args...)...)
		require.NoError(t, err)
		var resp struct {
			Data []RunSummary `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		return resp.Data
	}

	all := list(t)
	require.Len(t, all, 3)

	failed := list(t, "--status", "error")
	require.Len(t, failed, 1)
	assert.Equal(t, "TOO_MANY_TUPLES", failed[0].ErrorCode)

	assert.Len(t, list(t, "--error-code", "TIMEOUT"), 0)
	assert.Len(t, list(t, "--program", all[0].ProgramHash), 3)

	byQuery := list(t, "--query", `{path: [1, "?Z"]}`)
	require.Len(t, byQuery, 1)
	assert.Equal(t, "?- path(1, ?Y).", byQuery[0].Query)
}

func TestRunsInvalidFilter(t *testing.T) {
	db := recordRuns(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown status", []string{"--status", "pending"}},
		{"negative limit", []string{"--limit", "-1"}},
		{"malformed query", []string{"--query", "{path: ["}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runSub(t, NewRunsCommand, "text", append([]string{"--db", db}, tt.args...)...)
			requireExitCode(t, ExitCommandError, err)
		})
	}
}
