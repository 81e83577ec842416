package util

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
)

// ScratchPrefix marks per-run scratch subdirectories.
const ScratchPrefix = "run-"

// ScratchTracker remembers the scratch directory of the run in flight so an
// interrupt can remove it.
type ScratchTracker struct {
	mu   sync.Mutex
	root string
	dirs map[string]struct{}
}

func NewScratchTracker(root string) *ScratchTracker {
	return &ScratchTracker{root: root, dirs: map[string]struct{}{}}
}

func (t *ScratchTracker) Track(dir string) {
	t.mu.Lock()
	t.dirs[dir] = struct{}{}
	t.mu.Unlock()
}

func (t *ScratchTracker) Untrack(dir string) {
	t.mu.Lock()
	delete(t.dirs, dir)
	t.mu.Unlock()
}

// Cleanup removes every tracked directory and the scratch root if it is empty.
func (t *ScratchTracker) Cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for dir := range t.dirs {
		if err := os.RemoveAll(dir); err != nil {
			fmt.Printf("Error cleaning up %s: %v\n", dir, err)
		} else {
			fmt.Printf("Removed %s\n", dir)
		}
		delete(t.dirs, dir)
	}

	RemoveIfEmpty(t.root)
}

func SetupInterruptHandler(t *ScratchTracker) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		fmt.Println("\nInterrupt received. Cleaning up...")

		t.Cleanup()
		fmt.Println("\nExiting due to interrupt.")

		os.Exit(1)
	}()
}

// CleanupStaleScratch removes run directories left behind by killed processes.
func CleanupStaleScratch(root string) int {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0
	}

	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() && strings.HasPrefix(name, ScratchPrefix) {
			full := filepath.Join(root, name)

			if err := os.RemoveAll(full); err != nil {
				fmt.Printf("Error cleaning up %s: %v\n", full, err)
			} else {
				removed++
			}
		}
	}

	RemoveIfEmpty(root)
	return removed
}

func RemoveIfEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}

	if len(entries) == 0 {
		return os.Remove(dir) == nil
	}

	return false
}
