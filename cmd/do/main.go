package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/loopfeed/loopfeed/cmd/do/cmd"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	maybeRebuild()

	rootCmd := &cobra.Command{
		Use:   "do",
		Short: "Development and maintenance tools for loopfeed",
		PersistentPreRun: func(c *cobra.Command, args []string) {
			// Optional: environment may come from the shell instead
			_ = godotenv.Load()
		},
	}

	rootCmd.AddCommand(cmd.DevCmd())
	rootCmd.AddCommand(cmd.MigrateCmd())
	rootCmd.AddCommand(cmd.DraftsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// rebuildSources are the packages compiled into bin/do. Migrations are
// embedded, so a new .sql file also triggers a rebuild.
var rebuildSources = []string{"cmd/do", "internal/db", "internal/draft", "internal/model"}

// maybeRebuild rebuilds and re-executes bin/do when its sources are newer.
func maybeRebuild() {
	exe, err := os.Executable()
	if err != nil {
		return
	}

	if !strings.HasSuffix(exe, "bin/do") {
		return
	}

	binInfo, err := os.Stat(exe)
	if err != nil {
		return
	}
	binMod := binInfo.ModTime()

	var needsRebuild bool
	for _, root := range rebuildSources {
		_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if !strings.HasSuffix(path, ".go") && !strings.HasSuffix(path, ".sql") {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			if info.ModTime().After(binMod) {
				needsRebuild = true
				return filepath.SkipAll
			}
			return nil
		})
		if needsRebuild {
			break
		}
	}

	if !needsRebuild {
		return
	}

	fmt.Println("Rebuilding bin/do...")
	build := exec.Command("go", "build", "-o", exe, "./cmd/do")
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		fmt.Println("Rebuild failed:", err)
		return
	}

	if err := syscall.Exec(exe, os.Args, os.Environ()); err != nil {
		fmt.Println("Re-exec failed:", err)
	}
}
