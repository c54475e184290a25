package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/monolith/internal/cache"
	"github.com/GriffinCanCode/monolith/internal/core"
	"github.com/GriffinCanCode/monolith/internal/infrastructure/config"
	"github.com/GriffinCanCode/monolith/internal/urls"
)

func newTestCLI(stdin string) (*CLI, *bytes.Buffer) {
	c := New()
	c.env = func() *config.Config {
		cfg := config.Default()
		cfg.Cache.Disk = false
		return cfg
	}
	c.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }

	var out bytes.Buffer
	c.SetIO(strings.NewReader(stdin), &out, &bytes.Buffer{})
	return c, &out
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	c, out := newTestCLI(stdin)
	c.SetArgs(args)
	err := c.Execute(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "-V")
	require.NoError(t, err)
	assert.Equal(t, "monolith "+core.Version+"\n", out)
}

func TestDataTarget(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{
			name: "custom base URL",
			args: []string{"-M", "-s", "-b", "http://localhost:30701/", "data:text/html,Hello%2C%20World!"},
			expected: `<html><head><base href="http://localhost:30701/"/><meta name="robots" content="none"/></head>` +
				`<body>Hello, World!</body></html>` + "\n",
		},
		{
			name: "existing base URL kept",
			args: []string{"-M", "-s", `data:text/html,<base href="http://localhost:30701/" />Hello%2C%20World!`},
			expected: `<html><head><base href="http://localhost:30701/"/><meta name="robots" content="none"/></head>` +
				`<body>Hello, World!</body></html>` + "\n",
		},
		{
			name: "isolated",
			args: []string{"-M", "-s", "-I", "data:text/html,x"},
			expected: `<html><head><meta http-equiv="Content-Security-Policy" content="default-src 'unsafe-inline' data:;"/>` +
				`<meta name="robots" content="none"/></head><body>x</body></html>` + "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "", tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestStdinTarget(t *testing.T) {
	out, err := execute(t, "Hello from STDIN\n", "-M", "-s", "-")
	require.NoError(t, err)
	assert.Equal(t, `<html><head><meta name="robots" content="none"/></head><body>Hello from STDIN`+"\n"+`</body></html>`+"\n", out)
}

func TestNoTarget(t *testing.T) {
	_, err := execute(t, "", "-s")
	assert.ErrorIs(t, err, core.ErrNoTarget)
}

func TestUnknownEncoding(t *testing.T) {
	_, err := execute(t, "", "-s", "-E", "utf-42", "data:text/html,x")
	assert.ErrorIs(t, err, core.ErrUnknownEncoding)
}

func TestOutputFile(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "", "-M", "-s", "-m", "mhtml", "-o", filepath.Join(dir, "%title%.%ext%"),
		"data:text/html,<title>My: Page</title>")
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(filepath.Join(dir, "My - Page.mht"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "MIME-Version: 1.0\r\n"))
}

func TestLocalFileWithPolicyAndMetrics(t *testing.T) {
	dir := t.TempDir()
	index := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(index, []byte(`<img src="pic.png"><script>alert(1)</script>`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pic.png"), []byte("\x89PNG\x0D\x0A\x1A\x0A"), 0o600))

	policyFile := filepath.Join(dir, "strict.yaml")
	require.NoError(t, os.WriteFile(policyFile, []byte("no_images: true\nno_js: true\n"), 0o600))
	metricsFile := filepath.Join(dir, "metrics.prom")

	out, err := execute(t, "", "-M", "-s", "--policy", policyFile, "--no-js=false", "--metrics", metricsFile, index)
	require.NoError(t, err)

	assert.Contains(t, out, `<img src="`+urls.PlaceholderImage+`"/>`)
	assert.Contains(t, out, "<script>alert(1)</script>")

	metrics, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "monolith_retrievals_total")
}

func TestBuildPolicy(t *testing.T) {
	dir := t.TempDir()
	cookieFile := filepath.Join(dir, "cookies.txt")
	require.NoError(t, os.WriteFile(cookieFile, []byte("# Netscape HTTP Cookie File\n"+
		".example.com\tTRUE\t/\tTRUE\t0\tsession\tabc\n"), 0o600))

	c, _ := newTestCLI("")
	require.NoError(t, c.rootCmd.ParseFlags([]string{
		"-a", "-v", "-c", "-F", "-f", "-j", "-k", "-e", "-n", "-B",
		"-d", "example.com", "-d", ".cdn.example",
		"-t", "5", "-u", "agent/1.0", "-E", "utf-8", "-C", cookieFile,
	}))

	p, err := c.buildPolicy(c.rootCmd, config.Default())
	require.NoError(t, err)

	assert.True(t, p.NoAudio)
	assert.True(t, p.NoVideo)
	assert.True(t, p.NoCSS)
	assert.True(t, p.NoFonts)
	assert.True(t, p.NoFrames)
	assert.True(t, p.NoJS)
	assert.True(t, p.Insecure)
	assert.True(t, p.IgnoreErrors)
	assert.True(t, p.UnwrapNoscript)
	assert.True(t, p.BlacklistDomains)
	assert.False(t, p.NoImages)
	assert.Equal(t, []string{"example.com", ".cdn.example"}, p.Domains)
	assert.Equal(t, 5*time.Second, p.Timeout)
	assert.Equal(t, "agent/1.0", p.UserAgent)
	assert.Equal(t, "utf-8", p.Encoding)
	require.Len(t, p.Cookies, 1)
	assert.Equal(t, "session", p.Cookies[0].Name)
}

func TestBuildPolicyErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"negative timeout", []string{"-t", "-1"}},
		{"unknown format", []string{"-m", "pdf"}},
		{"missing cookie file", []string{"-C", "/nonexistent/cookies.txt"}},
		{"missing policy file", []string{"--policy", "/nonexistent/policy.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCLI("")
			require.NoError(t, c.rootCmd.ParseFlags(tt.args))
			_, err := c.buildPolicy(c.rootCmd, config.Default())
			assert.Error(t, err)
		})
	}
}

func TestDebugDiagnostics(t *testing.T) {
	c := New()
	c.env = func() *config.Config {
		cfg := config.Default()
		cfg.Cache.Disk = false
		cfg.Logging.Level = "debug"
		return cfg
	}

	var out, errOut bytes.Buffer
	c.SetIO(strings.NewReader(""), &out, &errOut)
	c.SetArgs([]string{"-M", "data:text/html,x"})
	require.NoError(t, c.Execute(context.Background()))

	assert.Contains(t, errOut.String(), `DEBUG monolith asset cache ready {"disk": false}`)
	assert.Contains(t, errOut.String(), "DEBUG monolith done")
	assert.Contains(t, out.String(), "<body>x</body>")
}

func TestExistingCachePathRefused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "precious.db")
	require.NoError(t, os.WriteFile(path, []byte("user data"), 0o600))

	c, _ := newTestCLI("")
	c.env = func() *config.Config {
		cfg := config.Default()
		cfg.Cache.Path = path
		return cfg
	}
	c.SetArgs([]string{"-M", "-s", "data:text/html,x"})

	err := c.Execute(context.Background())
	assert.ErrorIs(t, err, cache.ErrStoreExists)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "user data", string(data))
}

func TestFreshCachePathRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.db")

	c, out := newTestCLI("")
	c.env = func() *config.Config {
		cfg := config.Default()
		cfg.Cache.Path = path
		return cfg
	}
	c.SetArgs([]string{"-M", "-s", "data:text/html,x"})

	require.NoError(t, c.Execute(context.Background()))
	assert.Contains(t, out.String(), "<body>x</body>")

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
