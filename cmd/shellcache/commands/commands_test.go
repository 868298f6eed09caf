package commands_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/shellcache/cmd/shellcache/commands"
	"go.trai.ch/shellcache/internal/app"
	"go.trai.ch/shellcache/internal/build"
	"go.trai.ch/shellcache/internal/core/domain"
)

type mockApp struct {
	serveFunc   func(ctx context.Context, opts app.ServeOptions) error
	installFunc func(ctx context.Context, opts app.ConfigOptions) error
	listFunc    func(ctx context.Context, opts app.ConfigOptions) ([]domain.GenerationInfo, error)
	cleanFunc   func(ctx context.Context, opts app.CleanOptions) error
}

func (m *mockApp) Serve(ctx context.Context, opts app.ServeOptions) error {
	if m.serveFunc != nil {
		return m.serveFunc(ctx, opts)
	}
	return nil
}

func (m *mockApp) Install(ctx context.Context, opts app.ConfigOptions) error {
	if m.installFunc != nil {
		return m.installFunc(ctx, opts)
	}
	return nil
}

func (m *mockApp) ListCaches(ctx context.Context, opts app.ConfigOptions) ([]domain.GenerationInfo, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, opts)
	}
	return nil, nil
}

func (m *mockApp) CleanCaches(ctx context.Context, opts app.CleanOptions) error {
	if m.cleanFunc != nil {
		return m.cleanFunc(ctx, opts)
	}
	return nil
}

type logSettings struct {
	json    bool
	verbose bool
}

func (l *logSettings) SetJSON(enable bool)    { l.json = enable }
func (l *logSettings) SetVerbose(enable bool) { l.verbose = enable }

func TestCommands_Serve(t *testing.T) {
	t.Run("wires flags correctly", func(t *testing.T) {
		var captured app.ServeOptions
		mock := &mockApp{
			serveFunc: func(_ context.Context, opts app.ServeOptions) error {
				captured = opts
				return nil
			},
		}
		logs := &logSettings{}

		cli := commands.New(mock, commands.WithLogSettings(logs))
		cli.SetArgs([]string{
			"serve", "--watch",
			"--config", "deploy/shellcache.yaml",
			"--origin", "http://127.0.0.1:5173",
			"--listen", ":9000",
			"--log-json", "-v",
		})

		require.NoError(t, cli.Execute(context.Background()))
		assert.True(t, captured.Watch)
		assert.Equal(t, "deploy/shellcache.yaml", captured.ConfigPath)
		assert.Equal(t, "http://127.0.0.1:5173", captured.Origin)
		assert.Equal(t, ":9000", captured.Listen)
		assert.True(t, logs.json)
		assert.True(t, logs.verbose)
	})

	t.Run("returns error on serve failure", func(t *testing.T) {
		mock := &mockApp{
			serveFunc: func(context.Context, app.ServeOptions) error {
				return errors.New("simulated error")
			},
		}

		cli := commands.New(mock)
		cli.SetArgs([]string{"serve"})
		cli.SetOutput(new(bytes.Buffer), new(bytes.Buffer))

		err := cli.Execute(context.Background())
		require.ErrorContains(t, err, "simulated error")
	})
}

func TestCommands_Install(t *testing.T) {
	var captured app.ConfigOptions
	called := false
	mock := &mockApp{
		installFunc: func(_ context.Context, opts app.ConfigOptions) error {
			captured = opts
			called = true
			return nil
		},
	}

	cli := commands.New(mock)
	cli.SetArgs([]string{"install", "-c", "shellcache.yaml"})

	require.NoError(t, cli.Execute(context.Background()))
	assert.True(t, called)
	assert.Equal(t, "shellcache.yaml", captured.ConfigPath)
}

func TestCommands_CachesList(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	mock := &mockApp{
		listFunc: func(context.Context, app.ConfigOptions) ([]domain.GenerationInfo, error) {
			return []domain.GenerationInfo{
				{Name: "photobackup-cache-v0", Entries: 3},
				{Name: "photobackup-cache-v1", Entries: 10, Active: true},
			}, nil
		},
	}

	cli := commands.New(mock)
	buf := new(bytes.Buffer)
	cli.SetOutput(buf, buf)
	cli.SetArgs([]string{"caches", "list"})

	require.NoError(t, cli.Execute(context.Background()))
	assert.Contains(t, buf.String(), "photobackup-cache-v0 (3 entries)")
	assert.Contains(t, buf.String(), "photobackup-cache-v1 (10 entries)")
}

func TestCommands_CachesListEmpty(t *testing.T) {
	cli := commands.New(&mockApp{})
	buf := new(bytes.Buffer)
	cli.SetOutput(buf, buf)
	cli.SetArgs([]string{"caches", "list"})

	require.NoError(t, cli.Execute(context.Background()))
	assert.Equal(t, "no caches\n", buf.String())
}

func TestCommands_CachesClean(t *testing.T) {
	tests := []struct {
		name string
		args []string
		all  bool
	}{
		{name: "stale only", args: []string{"caches", "clean"}, all: false},
		{name: "all", args: []string{"caches", "clean", "--all"}, all: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured app.CleanOptions
			mock := &mockApp{
				cleanFunc: func(_ context.Context, opts app.CleanOptions) error {
					captured = opts
					return nil
				},
			}

			cli := commands.New(mock)
			cli.SetArgs(tt.args)
			require.NoError(t, cli.Execute(context.Background()))
			assert.Equal(t, tt.all, captured.All)
		})
	}
}

func TestCommands_Version(t *testing.T) {
	cli := commands.New(&mockApp{})
	buf := new(bytes.Buffer)
	cli.SetOutput(buf, buf)
	cli.SetArgs([]string{"version"})

	require.NoError(t, cli.Execute(context.Background()))
	assert.Contains(t, buf.String(), "shellcache version "+build.Version)
}
