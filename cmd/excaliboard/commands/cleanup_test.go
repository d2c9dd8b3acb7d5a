package commands

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	appfsm "github.com/excaliboard/excaliboard/pkg/fsm"
)

func TestStaleStores(t *testing.T) {
	now := time.Now()
	root := t.TempDir()

	store := func(name, owner string, idle bool) string {
		dir := filepath.Join(root, name)
		if err := os.Mkdir(dir, 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if owner != "" {
			if err := os.WriteFile(filepath.Join(dir, appfsm.OwnerFile), []byte(owner), 0644); err != nil {
				t.Fatalf("write owner: %v", err)
			}
		}
		if idle {
			old := now.Add(-2 * appfsm.StaleAfter)
			if err := os.Chtimes(dir, old, old); err != nil {
				t.Fatalf("chtimes: %v", err)
			}
		}
		return dir
	}

	live := store("excaliboard-fsm-live", strconv.Itoa(os.Getpid()), true)
	dead := store("excaliboard-fsm-dead", "99999999", true)
	fresh := store("excaliboard-fsm-fresh", "", false)
	idle := store("excaliboard-fsm-idle", "", true)

	stale, busy := staleStores([]string{live, dead, fresh, idle}, now)

	if len(stale) != 2 || stale[0] != dead || stale[1] != idle {
		t.Errorf("stale = %v, want [%s %s]", stale, dead, idle)
	}
	if len(busy) != 2 || busy[0] != live || busy[1] != fresh {
		t.Errorf("busy = %v, want [%s %s]", busy, live, fresh)
	}
}
