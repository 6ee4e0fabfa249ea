package cmd

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/slotchaser/internal/auth"
	"github.com/example/slotchaser/internal/crypto"
	"github.com/example/slotchaser/internal/driver/chromium"
	"github.com/example/slotchaser/internal/requests"
)

func TestVersion(t *testing.T) {
	stdout, _, err := executeCLI(t, nil, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "slotchaser dev"))
}

func TestSampleWritesLoadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), requests.DefaultSampleFile)

	stdout, _, err := executeCLI(t, nil, "sample", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, path)

	reqs, err := requests.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, requests.Sample(), reqs)
}

func TestKeysPrintsUsableValues(t *testing.T) {
	stdout, _, err := executeCLI(t, nil, "keys")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	for i, name := range []string{"SLOTCHASER_SECRET_KEY", "SLOTCHASER_COOKIE_HASH_KEY", "SLOTCHASER_COOKIE_BLOCK_KEY"} {
		prefix := "export " + name + "="
		require.True(t, strings.HasPrefix(lines[i], prefix), lines[i])
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(lines[i], prefix))
		require.NoError(t, err)
		assert.Len(t, raw, 32)
	}
}

func TestSecretSealRoundTripsThroughLoader(t *testing.T) {
	key, err := crypto.NewKey()
	require.NoError(t, err)
	t.Setenv("SLOTCHASER_SECRET_KEY", base64.StdEncoding.EncodeToString(key))

	stdout, _, err := executeCLI(t, nil, "secret", "seal", "s3cret")
	require.NoError(t, err)
	sealed := strings.TrimSpace(stdout)
	require.True(t, crypto.IsSealed(sealed))

	path := filepath.Join(t.TempDir(), "requests.yaml")
	body := "- url: https://example.org/book/1\n  email: a@b.com\n  password: " + sealed + "\n  date: 3/4/2025\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	a, err := crypto.New(key)
	require.NoError(t, err)
	reqs, err := requests.Load(path, a)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "s3cret", reqs[0].Credentials.Password.Reveal())
}

func TestSecretSealNeedsKey(t *testing.T) {
	_, _, err := executeCLI(t, nil, "secret", "seal", "s3cret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SLOTCHASER_SECRET_KEY")
}

func TestOperatorHashPasswordFromStdin(t *testing.T) {
	stdout, _, err := executeCLI(t, strings.NewReader("letmein\n"), "operator", "hash-password")
	require.NoError(t, err)

	hash := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(stdout), "export SLOTCHASER_OPERATOR_PASSWORD_HASH='"), "'")
	assert.True(t, auth.CheckPassword(hash, "letmein"))
}

func TestOperatorHashPasswordRequiresInput(t *testing.T) {
	_, _, err := executeCLI(t, strings.NewReader(""), "operator", "hash-password")
	assert.Error(t, err)
}

func TestRunFailsOnBadRequestsFile(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"url":"https://example.org","email":"a@b.com","password":"pw","date":"13/1/2025"}]`), 0o600))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing file", []string{"run", filepath.Join(dir, "nope.json")}, "reading requests file"},
		{"invalid date", []string{"run", bad}, "request 1"},
		{"zero instances", []string{"run", bad, "--instances", "0"}, "--instances"},
		{"bad overflow", []string{"run", bad, "--overflow", "drop"}, "overflow"},
		{"bad race timeout", []string{"run", bad, "--race-timeout", "0s"}, "race-timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCLI(t, nil, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunSealedPasswordWithoutKey(t *testing.T) {
	key, err := crypto.NewKey()
	require.NoError(t, err)
	a, err := crypto.New(key)
	require.NoError(t, err)
	sealed, err := a.Seal("pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "requests.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"url":"https://example.org","email":"a@b.com","password":"`+sealed+`","date":"3/4/2025"}]`), 0o600))

	_, _, err = executeCLI(t, nil, "run", path)
	assert.ErrorIs(t, err, requests.ErrNoKey)
}

func TestRunReportsBrowserStartFailure(t *testing.T) {
	noBrowser := errors.New("chromium not installed")
	orig := startBrowser
	startBrowser = func(chromium.Options) (browserLauncher, error) { return nil, noBrowser }
	t.Cleanup(func() { startBrowser = orig })

	path := filepath.Join(t.TempDir(), "requests.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"url":"https://example.org","email":"a@b.com","password":"pw","date":"3/4/2025"}]`), 0o600))

	_, _, err := executeCLI(t, strings.NewReader(""), "run", path, "--console-ack=false")
	require.Error(t, err)
	assert.ErrorIs(t, err, errBrowserStart)
	assert.ErrorIs(t, err, noBrowser)
	assert.Contains(t, err.Error(), "--browser-path")
}

func TestHistoryNeedsDatabase(t *testing.T) {
	_, _, err := executeCLI(t, nil, "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SLOTCHASER_DATABASE_URL")
}

func executeCLI(t *testing.T, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()

	root := NewRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	if stdin != nil {
		root.SetIn(stdin)
	}
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}
