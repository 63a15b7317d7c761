package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/portalrunner/pkg/checkpoint"
	"github.com/entrhq/portalrunner/pkg/config"
	"github.com/entrhq/portalrunner/pkg/lander"
	"github.com/entrhq/portalrunner/pkg/workflow"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(bytes.NewReader(nil))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"config", &config.ConfigError{Field: "run.input", Err: errors.New("missing")}, exitConfig},
		{"wrapped config", fmt.Errorf("run: %w", &config.ConfigError{Field: "x", Err: errors.New("y")}), exitConfig},
		{"session", &lander.SessionError{Attempts: 3, Err: errors.New("captcha")}, exitSession},
		{"other", errors.New("boom"), exitFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestWorkflowCommandsRegistered(t *testing.T) {
	root := newRootCmd()
	for _, name := range workflow.Names {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestMissingCredentialsIsConfigError(t *testing.T) {
	t.Setenv("SSG_USER", "")
	t.Setenv("SSG_PASS", "")

	_, err := runCLI(t, workflow.PEN, "--log-dir", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, exitConfig, exitCode(err))
	assert.Contains(t, err.Error(), "SSG_USER")
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "release.yaml")

	out, err := runCLI(t, "config", "init", workflow.Release, path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	out, err = runCLI(t, "config", "show", workflow.Release,
		"--config", path, "--output", "custom.xlsx", "--headless", "--resume")
	require.NoError(t, err)
	assert.Contains(t, out, "output: custom.xlsx")
	assert.Contains(t, out, "headless: true")
	assert.Contains(t, out, "resume: true")
}

func TestConfigInitUnknownWorkflow(t *testing.T) {
	_, err := runCLI(t, "config", "init", "teleport", filepath.Join(t.TempDir(), "x.yaml"))
	require.Error(t, err)
	assert.Equal(t, exitConfig, exitCode(err))
}

func TestConfigShowRejectsBadFlag(t *testing.T) {
	_, err := runCLI(t, "config", "show", workflow.PEN, "--verbosity", "chatty")
	require.Error(t, err)
	assert.Equal(t, exitConfig, exitCode(err))
}

func writeWorkbook(t *testing.T, path string, rows ...map[string]string) {
	t.Helper()
	tbl := checkpoint.NewTable("student_pen", "TxtDateOfBirth")
	for _, r := range rows {
		tbl.Append(r)
	}
	sink := &checkpoint.XLSXSink{Path: path}
	require.NoError(t, sink.Write([]checkpoint.Sheet{{Name: "Sheet1", Table: tbl}}))
}

func TestOpenInput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.xlsx")
	outPath := filepath.Join(dir, "out.xlsx")
	writeWorkbook(t, in, map[string]string{"student_pen": "1"})

	cfg := config.Default(workflow.Release)
	cfg.Run.Input = in
	cfg.Run.Output = outPath

	t.Run("reads input", func(t *testing.T) {
		tbl, sheet, err := openInput(cfg)
		require.NoError(t, err)
		assert.Equal(t, "Sheet1", sheet)
		assert.Equal(t, 1, tbl.Len())
	})

	t.Run("resume without output falls back to input", func(t *testing.T) {
		c := *cfg
		c.Run.Resume = true
		tbl, _, err := openInput(&c)
		require.NoError(t, err)
		assert.Equal(t, 1, tbl.Len())
	})

	t.Run("resume continues from output", func(t *testing.T) {
		writeWorkbook(t, outPath, map[string]string{"student_pen": "1"}, map[string]string{"student_pen": "2"})
		c := *cfg
		c.Run.Resume = true
		tbl, _, err := openInput(&c)
		require.NoError(t, err)
		assert.Equal(t, 2, tbl.Len())
		require.NoError(t, os.Remove(outPath))
	})

	t.Run("missing input", func(t *testing.T) {
		c := *cfg
		c.Run.Input = filepath.Join(dir, "nope.xlsx")
		_, _, err := openInput(&c)
		var ce *config.ConfigError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "run.input", ce.Field)
	})

	t.Run("export starts from an empty summary", func(t *testing.T) {
		c := config.Default(workflow.Export)
		tbl, sheet, err := openInput(c)
		require.NoError(t, err)
		assert.Equal(t, c.Workflows.Export.SummarySheet, sheet)
		assert.Equal(t, 0, tbl.Len())
		assert.Equal(t, workflow.SummaryColumns(), tbl.Columns())
	})
}

func TestPrepareChecksColumns(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.xlsx")
	writeWorkbook(t, in, map[string]string{"student_pen": "1"})

	cfg := config.Default(workflow.PEN)
	cfg.Run.Input = in
	cfg.Run.Output = filepath.Join(dir, "out.xlsx")

	_, _, err := prepare(cfg, nil, nil)
	var ce *config.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "run.input", ce.Field)
	assert.Contains(t, err.Error(), "aadharId")
}
