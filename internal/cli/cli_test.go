package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warrenhq/warren/internal/identity"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootRejectsInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "id", "derive", "rooms", "lobby")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestIDDerive(t *testing.T) {
	out, err := execute(t, "id", "derive", "rooms", "lobby")
	require.NoError(t, err)

	want := identity.DeriveFromName("rooms", "lobby").String()
	assert.Equal(t, want, strings.TrimSpace(out))
}

func TestIDDeriveJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "id", "derive", "rooms", "lobby")
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data := resp.Data.(map[string]any)
	assert.Equal(t, "rooms", data["namespace"])
	assert.Equal(t, "lobby", data["name"])
	assert.Equal(t, identity.DeriveFromName("rooms", "lobby").String(), data["id"])
}

func TestIDUnique(t *testing.T) {
	a, err := execute(t, "id", "unique", "rooms")
	require.NoError(t, err)
	b, err := execute(t, "id", "unique", "rooms")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, strings.TrimSpace(a), 64)
}

func TestIDParse(t *testing.T) {
	id := identity.DeriveFromName("rooms", "lobby").String()

	out, err := execute(t, "id", "parse", "rooms", id)
	require.NoError(t, err)
	assert.Contains(t, out, "valid")

	_, err = execute(t, "id", "parse", "sessions", id)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, err = execute(t, "id", "parse", "rooms", "zz")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestKVRoundTrip(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "warren.db")
	object := []string{"--dsn", dsn, "--namespace", "rooms", "--name", "lobby"}

	_, err := execute(t, append([]string{"kv", "put", "greeting", `"hello"`}, object...)...)
	require.NoError(t, err)

	out, err := execute(t, append([]string{"kv", "get", "greeting"}, object...)...)
	require.NoError(t, err)
	assert.Equal(t, `"hello"`, strings.TrimSpace(out))

	out, err = execute(t, append([]string{"kv", "list"}, object...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "greeting")

	_, err = execute(t, append([]string{"kv", "delete", "greeting"}, object...)...)
	require.NoError(t, err)

	_, err = execute(t, append([]string{"kv", "get", "greeting"}, object...)...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestKVRequiresObjectFlags(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "warren.db")

	_, err := execute(t, "kv", "get", "k", "--dsn", dsn, "--namespace", "rooms")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "kv", "get", "k", "--namespace", "rooms", "--name", "lobby")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "kv", "get", "k",
		"--dsn", dsn, "--namespace", "rooms", "--name", "lobby", "--id", "ff")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestKVPutRejectsInvalidJSON(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "warren.db")

	_, err := execute(t, "kv", "put", "k", "{not json",
		"--dsn", dsn, "--namespace", "rooms", "--name", "lobby")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestAlarmLifecycle(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "warren.db")
	object := []string{"--dsn", dsn, "--namespace", "rooms", "--name", "lobby"}

	out, err := execute(t, append([]string{"alarm", "get"}, object...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "no alarm set")

	_, err = execute(t, append([]string{"alarm", "set", "5m"}, object...)...)
	require.NoError(t, err)

	out, err = execute(t, append([]string{"alarm", "get"}, object...)...)
	require.NoError(t, err)
	assert.NotContains(t, out, "no alarm set")

	_, err = execute(t, append([]string{"alarm", "delete"}, object...)...)
	require.NoError(t, err)

	out, err = execute(t, append([]string{"alarm", "get"}, object...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "no alarm set")
}

func TestAlarmSetRejectsPast(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "warren.db")

	_, err := execute(t, "alarm", "set", "2001-01-01T00:00:00Z",
		"--dsn", dsn, "--namespace", "rooms", "--name", "lobby")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
