package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/excaliboard/excaliboard/internal/config"
	"github.com/excaliboard/excaliboard/pkg/errors"
	appfsm "github.com/excaliboard/excaliboard/pkg/fsm"
	"github.com/spf13/cobra"
)

var cleanupDryRun bool

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove FSM stores left behind by interrupted runs",
	Long: `Removes temporary FSM stores (excaliboard-fsm-*) that a killed process could
not delete. With --fsm-db-path set, that directory is removed as well. Stores
owned by a running process are left alone.`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Only print what would be removed")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}

	targets, err := filepath.Glob(filepath.Join(os.TempDir(), "excaliboard-fsm-*"))
	if err != nil {
		return errors.Wrap(err, "failed to scan temp dir")
	}
	if cfg.FSMDBPath != "" {
		if _, err := os.Stat(cfg.FSMDBPath); err == nil {
			targets = append(targets, cfg.FSMDBPath)
		}
	}

	targets, busy := staleStores(targets, time.Now())
	for _, store := range busy {
		fmt.Printf("skipping %s, in use\n", store)
	}

	if len(targets) == 0 {
		fmt.Println("Nothing to clean up")
		return nil
	}

	removed := 0
	for _, target := range targets {
		if cleanupDryRun {
			fmt.Printf("would remove %s\n", target)
			continue
		}
		if err := os.RemoveAll(target); err != nil {
			fmt.Printf("⚠️  Failed to remove %s: %v\n", target, err)
			continue
		}
		fmt.Printf("✅ Removed %s\n", target)
		removed++
	}

	if !cleanupDryRun {
		fmt.Printf("\nCleaned up %d of %d stores\n", removed, len(targets))
	}
	return nil
}

// staleStores splits stores into those no running process owns and those
// still in use.
func staleStores(stores []string, now time.Time) (stale, busy []string) {
	for _, store := range stores {
		if appfsm.InUse(store, now) {
			busy = append(busy, store)
		} else {
			stale = append(stale, store)
		}
	}
	return stale, busy
}
