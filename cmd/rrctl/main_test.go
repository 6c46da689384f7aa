package main

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	name, args := parseArgs(nil)
	assert.Equal(t, "help", name)
	assert.Empty(t, args)

	name, args = parseArgs([]string{"report", "1", "2026-03-01", "2026-03-31"})
	assert.Equal(t, "report", name)
	assert.Equal(t, []string{"1", "2026-03-01", "2026-03-31"}, args)
}

func TestFindCommand(t *testing.T) {
	for _, name := range []string{"migrate", "reprocess", "report", "seed", "status", "help"} {
		cmd := findCommand(name)
		require.NotNil(t, cmd, name)
		assert.Equal(t, name, cmd.Name())
		assert.NotEmpty(t, cmd.Description())
	}
	assert.Nil(t, findCommand("create-admin-user"))
}

func TestWindowArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "missing args", args: []string{"1"}, wantErr: "usage: report"},
		{name: "bad site", args: []string{"abc", "2026-03-01", "2026-03-31"}, wantErr: "invalid site id"},
		{name: "zero site", args: []string{"0", "2026-03-01", "2026-03-31"}, wantErr: "invalid site id"},
		{name: "bad date", args: []string{"1", "march", "2026-03-31"}, wantErr: "invalid 'from' date"},
		{name: "bad timezone", args: []string{"1", "2026-03-01", "2026-03-31", "Mars/Olympus"}, wantErr: "timezone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := windowArgs("report", tt.args)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	t.Run("inclusive end in the given timezone", func(t *testing.T) {
		site, rng, err := windowArgs("report", []string{"7", "2026-03-01", "2026-03-31", "America/Sao_Paulo"})
		require.NoError(t, err)
		assert.Equal(t, uint(7), site)

		loc, err := time.LoadLocation("America/Sao_Paulo")
		require.NoError(t, err)
		assert.True(t, rng.From.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, loc)))
		assert.True(t, rng.To.Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, loc)))
	})
}

func TestCommandsWithoutApp(t *testing.T) {
	ctx := context.Background()
	assert.Error(t, (&MigrateCommand{}).Execute(ctx, nil, nil))
	assert.Error(t, (&StatusCommand{}).Execute(ctx, nil, nil))
	assert.ErrorContains(t, (&ReprocessCommand{}).Execute(ctx, nil, []string{"1", "2026-03-01", "2026-03-31"}), "app initialization failed")
	assert.ErrorContains(t, (&ReportCommand{}).Execute(ctx, nil, []string{"1", "2026-03-01", "2026-03-31"}), "app initialization failed")
	assert.ErrorContains(t, (&SeedCommand{}).Execute(ctx, nil, []string{"-sessions", "10"}), "unable to initialise app")
	assert.Error(t, (&SeedCommand{}).Execute(ctx, nil, []string{"-sessions", "ten"}), "flag parse error")
}

func TestHelpCommand(t *testing.T) {
	var out bytes.Buffer
	prev := stdout
	stdout = &out
	t.Cleanup(func() { stdout = prev })

	require.NoError(t, (&HelpCommand{}).Execute(context.Background(), nil, nil))
	assert.Contains(t, out.String(), "Usage: rrctl")
	assert.Contains(t, out.String(), "reprocess: Re-matches events")
}

func TestIsTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, isTerminal(&buf))

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, isTerminal(f), "regular files are not terminals")
}
