package commands_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/roasbeef/patchq/commands"
	"github.com/roasbeef/patchq/testutil"
	"github.com/stretchr/testify/require"
)

const cliSpec = `Name: frobnicator
Version: 1.2.3
Release: 1
Packager: Jane Dev <jane@example.com>
Source0: frobnicator-1.2.3.tar.gz

%description
Frobnicates things.

%prep
%setup -q

%build
make
`

const cliPatch = `From 1111111111111111111111111111111111111111 Mon Sep 17 00:00:00 2001
From: Alice Author <alice@example.com>
Date: Thu, 15 Jan 2026 10:00:00 +0000
Subject: [PATCH] Add greeting

Introduces the greeting file.
---
 greeting.txt | 1 +
 1 file changed, 1 insertion(+)

diff --git a/greeting.txt b/greeting.txt
new file mode 100644
--- /dev/null
+++ b/greeting.txt
@@ -0,0 +1 @@
+Hello
`

// setupCLIRepo builds a repo with packaging metadata, an upstream tag,
// and a patch queue branch carrying two commits, left on main.
func setupCLIRepo(t *testing.T) (*testutil.GitTestRepo, string) {
	t.Helper()

	r := testutil.NewGitTestRepo(t)
	r.WriteFile("src/core.c", "int run(void) { return 0; }\n")
	r.WriteFile("packaging/frobnicator.spec", cliSpec)
	r.CommitAll("initial packaging")
	r.Tag("upstream/1.2.3")

	r.Git("checkout", "-q", "-b", "development/main")
	r.WriteFile("src/core.c", "int run(void) { return 1; }\n")
	r.CommitAllBy("Change return value", "Alice Author <alice@example.com>")
	r.WriteFile("src/util.c", "void helper(void) {}\n")
	r.CommitAll("Add helper")
	r.Checkout("main")

	return r, writeCLIConfig(t)
}

// writeCLIConfig puts the run's scratch space under the test's temp
// dir so nothing leaks past the test.
func writeCLIConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "patchq.yaml")
	content := "tmp-dir: " + filepath.Join(dir, "scratch") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

// runCLI executes the root command against the repo and returns
// stdout.
func runCLI(t *testing.T, r *testutil.GitTestRepo, cfgPath string,
	args ...string) (string, error) {

	t.Helper()

	rootCmd := commands.NewRootCmd()
	full := append([]string{
		"--dir", r.Dir, "--config", cfgPath, "--no-color",
	}, args...)
	rootCmd.SetArgs(full)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)

	err := rootCmd.Execute()

	return stdout.String(), err
}

func TestNewRootCmd(t *testing.T) {
	cmd := commands.NewRootCmd()
	require.NotNil(t, cmd)
	require.Equal(t, "patchq", cmd.Use)

	// Verify subcommands are registered.
	cmdNames := make(map[string]bool)
	for _, c := range cmd.Commands() {
		cmdNames[c.Name()] = true
	}

	require.True(t, cmdNames["export"])
	require.True(t, cmdNames["import"])
	require.True(t, cmdNames["rebase"])
	require.True(t, cmdNames["drop"])
	require.True(t, cmdNames["switch"])
	require.True(t, cmdNames["apply"])
	require.True(t, cmdNames["status"])
	require.True(t, cmdNames["version"])
}

func TestNewExportCmd(t *testing.T) {
	cmd := commands.NewExportCmd()
	require.NotNil(t, cmd)
	require.Equal(t, "export", cmd.Use)
	require.NotEmpty(t, cmd.Short)
	require.NotEmpty(t, cmd.Long)
	require.NotEmpty(t, cmd.Example)
}

func TestNewImportCmd(t *testing.T) {
	cmd := commands.NewImportCmd()
	require.NotNil(t, cmd)
	require.Equal(t, "import", cmd.Use)
	require.NotEmpty(t, cmd.Short)
}

func TestNewApplyCmd(t *testing.T) {
	cmd := commands.NewApplyCmd()
	require.NotNil(t, cmd)
	require.Equal(t, "apply <patch>", cmd.Use)
	require.NotEmpty(t, cmd.Short)
}

func TestExportCommandExecution(t *testing.T) {
	r, cfgPath := setupCLIRepo(t)

	out, err := runCLI(t, r, cfgPath, "export")
	require.NoError(t, err)

	require.Contains(t, out, "exported 2 patch(es) from development/main")
	require.Contains(t, out, "0001-Change-return-value.patch")
	require.Contains(t, out, "0002-Add-helper.patch")
	require.Contains(t, out, "spec: ")

	// The export lands on the base branch with the files in place.
	require.Equal(t, "main", r.CurrentBranch())
	require.True(t, r.FileExists("packaging/0001-Change-return-value.patch"))
	require.True(t, r.FileExists("packaging/0002-Add-helper.patch"))

	spec := r.ReadFile("packaging/frobnicator.spec")
	require.Contains(t, spec, "Patch0: 0001-Change-return-value.patch")
	require.Contains(t, spec, "Patch1: 0002-Add-helper.patch")
}

func TestExportCommandJSON(t *testing.T) {
	r, cfgPath := setupCLIRepo(t)

	out, err := runCLI(t, r, cfgPath, "--json", "export")
	require.NoError(t, err)

	require.Contains(t, out, `"queue": "development/main"`)
	require.Contains(t, out, `"0001-Change-return-value.patch"`)
}

func TestImportCommandExecution(t *testing.T) {
	r, cfgPath := setupCLIRepo(t)

	_, err := runCLI(t, r, cfgPath, "export")
	require.NoError(t, err)

	queueTree := r.TreeHash("development/main")
	r.Git("branch", "-D", "development/main")

	out, err := runCLI(t, r, cfgPath, "import")
	require.NoError(t, err)

	require.Contains(t, out, "imported 2 patch(es) onto development/main")
	require.Equal(t, "development/main", r.CurrentBranch())

	// Same tree as before the branch was thrown away.
	require.Equal(t, queueTree, r.TreeHash("HEAD"))
}

func TestImportCommandBranchExists(t *testing.T) {
	r, cfgPath := setupCLIRepo(t)

	_, err := runCLI(t, r, cfgPath, "export")
	require.NoError(t, err)

	_, err = runCLI(t, r, cfgPath, "import")
	require.Error(t, err)
	require.Contains(t, err.Error(), "try rebase instead")
}

func TestStatusCommand(t *testing.T) {
	r, cfgPath := setupCLIRepo(t)

	out, err := runCLI(t, r, cfgPath, "status")
	require.NoError(t, err)

	require.Contains(t, out, "branch:   main")
	require.Contains(t, out, "queue:    development/main (present)")
}

func TestStatusCommandJSON(t *testing.T) {
	r, cfgPath := setupCLIRepo(t)

	out, err := runCLI(t, r, cfgPath, "--json", "status")
	require.NoError(t, err)

	require.Contains(t, out, `"queue_exists": true`)
	require.Contains(t, out, `"on_queue": false`)
}

func TestSwitchCommand(t *testing.T) {
	r, cfgPath := setupCLIRepo(t)

	out, err := runCLI(t, r, cfgPath, "switch")
	require.NoError(t, err)

	require.Contains(t, out, "switched to development/main")
	require.Equal(t, "development/main", r.CurrentBranch())

	out, err = runCLI(t, r, cfgPath, "switch")
	require.NoError(t, err)

	require.Contains(t, out, "switched to main")
	require.Equal(t, "main", r.CurrentBranch())
}

func TestDropCommand(t *testing.T) {
	r, cfgPath := setupCLIRepo(t)

	out, err := runCLI(t, r, cfgPath, "drop")
	require.NoError(t, err)

	require.Contains(t, out, "dropped development/main")
	require.False(t, r.HasBranch("development/main"))

	// A second drop has nothing left to delete.
	out, err = runCLI(t, r, cfgPath, "drop")
	require.NoError(t, err)
	require.Contains(t, out, "no patch queue branch development/main")
}

func TestApplyCommand(t *testing.T) {
	r, cfgPath := setupCLIRepo(t)
	r.Git("branch", "-D", "development/main")

	patchPath := filepath.Join(t.TempDir(), "add-greeting.patch")
	require.NoError(t, os.WriteFile(patchPath, []byte(cliPatch), 0o644))

	out, err := runCLI(t, r, cfgPath, "apply", patchPath)
	require.NoError(t, err)

	require.Contains(t, out, "applied add-greeting.patch")
	require.Equal(t, "development/main", r.CurrentBranch())
	require.Equal(t, "Hello\n", r.ReadFile("greeting.txt"))
}

func TestApplyCommandMissingFile(t *testing.T) {
	r, cfgPath := setupCLIRepo(t)

	_, err := runCLI(t, r, cfgPath, "apply", "no-such.patch")
	require.Error(t, err)
}

func TestRebaseCommand(t *testing.T) {
	r, cfgPath := setupCLIRepo(t)

	out, err := runCLI(t, r, cfgPath, "rebase")
	require.NoError(t, err)

	require.Contains(t, out, "rebased development/main onto")
	require.Equal(t, "development/main", r.CurrentBranch())
}

func TestExportCommandNoSpec(t *testing.T) {
	r := testutil.NewGitTestRepo(t)
	r.WriteFile("README", "no packaging here\n")
	r.CommitAll("initial")
	cfgPath := writeCLIConfig(t)

	_, err := runCLI(t, r, cfgPath, "export")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no spec file")
}

func TestExportScratchRemovedOnFailure(t *testing.T) {
	r := testutil.NewGitTestRepo(t)
	r.WriteFile("README", "no packaging here\n")
	r.CommitAll("initial")
	cfgPath := writeCLIConfig(t)

	_, err := runCLI(t, r, cfgPath, "export")
	require.Error(t, err)

	// The run's private scratch directory is removed even when the
	// action fails.
	scratchBase := filepath.Join(filepath.Dir(cfgPath), "scratch")
	entries, err := os.ReadDir(scratchBase)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestExportCommandCompressFlagOverride(t *testing.T) {
	r, _ := setupCLIRepo(t)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "patchq.yaml")
	content := "tmp-dir: " + filepath.Join(dir, "scratch") + "\n" +
		"patch-export-compress: 10\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	// The config threshold compresses every patch over 10 bytes.
	out, err := runCLI(t, r, cfgPath, "export")
	require.NoError(t, err)
	require.Contains(t, out, "0001-Change-return-value.patch.gz")
	require.True(t, r.FileExists("packaging/0001-Change-return-value.patch.gz"))

	// An explicit --compress 0 beats the config and turns
	// compression off for the run.
	out, err = runCLI(t, r, cfgPath, "export", "--compress", "0")
	require.NoError(t, err)
	require.Contains(t, out, "0001-Change-return-value.patch")
	require.True(t, r.FileExists("packaging/0001-Change-return-value.patch"))
	require.False(t, r.FileExists("packaging/0001-Change-return-value.patch.gz"))
}

func TestVersionCommand(t *testing.T) {
	r, cfgPath := setupCLIRepo(t)

	out, err := runCLI(t, r, cfgPath, "version")
	require.NoError(t, err)
	require.Contains(t, out, "patchq "+commands.Version)
}
