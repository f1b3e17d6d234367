package admin

import (
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/dmitrijs2005/gophtalk/internal/server/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, dir, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd(strings.NewReader(stdin), &out)
	root.SetArgs(append([]string{"--data-dir", dir}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func serviceAt(dir string) *credentials.Service {
	return credentials.NewService(credentials.NewFileRepository(
		filepath.Join(dir, "users_db.json"), filepath.Join(dir, "temporary_passwords.json")))
}

var tempPasswordLine = regexp.MustCompile(`Temporary password: (\S+)`)

func TestCreateUser_GeneratedPassword(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "", "create-user", "alice", "--email", "alice@example.com", "--department", "ops")
	require.NoError(t, err)
	assert.Contains(t, out, "Created user alice")

	m := tempPasswordLine.FindStringSubmatch(out)
	require.Len(t, m, 2)
	assert.Len(t, m[1], tempPasswordLength)

	outcome, err := serviceAt(dir).Authenticate(context.Background(), "alice", m[1])
	require.NoError(t, err)
	assert.Equal(t, credentials.LoginMustChange, outcome)

	accounts, err := serviceAt(dir).List(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "alice@example.com", accounts[0].Email)
	assert.Equal(t, "ops", accounts[0].Department)
}

func TestCreateUser_Prompted(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "s3cret-temp\ns3cret-temp\n", "create-user", "bob", "--prompt")
	require.NoError(t, err)
	assert.NotContains(t, out, "Temporary password: s3cret")

	outcome, err := serviceAt(dir).Authenticate(context.Background(), "bob", "s3cret-temp")
	require.NoError(t, err)
	assert.Equal(t, credentials.LoginMustChange, outcome)
}

func TestCreateUser_PromptMismatch(t *testing.T) {
	_, err := run(t, t.TempDir(), "one\ntwo\n", "create-user", "bob", "--prompt")
	assert.ErrorIs(t, err, errPasswordMismatch)
}

func TestCreateUser_Duplicate(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, "", "create-user", "alice")
	require.NoError(t, err)

	_, err = run(t, dir, "", "create-user", "alice")
	assert.ErrorContains(t, err, "already exists")
}

func TestCreateUser_InvalidNames(t *testing.T) {
	for _, name := range []string{"a|b", "two words", "AutoAI"} {
		_, err := run(t, t.TempDir(), "", "create-user", name)
		assert.Error(t, err, name)
	}
}

func TestReset(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, dir, "", "create-user", "alice")
	require.NoError(t, err)

	out, err := run(t, dir, "", "reset", "alice")
	require.NoError(t, err)
	m := tempPasswordLine.FindStringSubmatch(out)
	require.Len(t, m, 2)

	outcome, err := serviceAt(dir).Authenticate(context.Background(), "alice", m[1])
	require.NoError(t, err)
	assert.Equal(t, credentials.LoginMustChange, outcome)

	_, err = run(t, dir, "", "reset", "ghost")
	assert.ErrorContains(t, err, "no such user")
}

func TestList(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No users.")

	_, err = run(t, dir, "", "create-user", "zed", "--department", "qa")
	require.NoError(t, err)
	_, err = run(t, dir, "", "create-user", "amy")
	require.NoError(t, err)

	out, err = run(t, dir, "", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "amy"))
	assert.True(t, strings.HasPrefix(lines[2], "zed"))
	assert.Contains(t, lines[2], "qa")
	assert.Contains(t, lines[2], "must change password")
}

func TestDataDirFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GOPHTALK_ADMIN_DATA_DIR", dir)

	var out bytes.Buffer
	root := NewRootCmd(strings.NewReader(""), &out)
	root.SetArgs([]string{"create-user", "carol"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	accounts, err := serviceAt(dir).List(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "carol", accounts[0].Username)
}
