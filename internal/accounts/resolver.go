package accounts

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/text/cases"
)

// Set maps case-folded account names to the directory name the destination
// actually uses. Lookups go through Match so callers never see the folding.
type Set struct {
	byFolded map[string]string
}

var fold = cases.Fold()

// NewSet builds a Set from destination directory names. Later duplicates
// under folding are ignored so the first spelling wins.
func NewSet(names []string) Set {
	byFolded := make(map[string]string, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := fold.String(name)
		if _, exists := byFolded[key]; !exists {
			byFolded[key] = name
		}
	}
	return Set{byFolded: byFolded}
}

// Match reports the destination's spelling for a local account name.
func (s Set) Match(name string) (string, bool) {
	if s.byFolded == nil {
		return "", false
	}
	canonical, ok := s.byFolded[fold.String(strings.TrimSpace(name))]
	return canonical, ok
}

// Len reports how many destination accounts are known.
func (s Set) Len() int { return len(s.byFolded) }

// Names returns the destination spellings in unspecified order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s.byFolded))
	for _, name := range s.byFolded {
		names = append(names, name)
	}
	return names
}

// Resolver produces the current destination account set. Implementations are
// expected to be cheap enough to call on the orchestrator's refresh cadence.
type Resolver interface {
	Resolve(ctx context.Context) (Set, error)
}

// DirResolver lists a destination root mounted in the local filesystem.
type DirResolver struct {
	Root string
}

func (r DirResolver) Resolve(_ context.Context) (Set, error) {
	entries, err := os.ReadDir(r.Root)
	if err != nil {
		return Set{}, fmt.Errorf("list destination accounts: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	return NewSet(names), nil
}

var commandContext = exec.CommandContext

// RsyncResolver asks a remote destination for its top-level listing via
// rsync --list-only, covering roots that are not locally mounted.
type RsyncResolver struct {
	Binary string
	Root   string
}

func (r RsyncResolver) Resolve(ctx context.Context) (Set, error) {
	binary := r.Binary
	if binary == "" {
		binary = "rsync"
	}
	root := r.Root
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	cmd := commandContext(ctx, binary, "--list-only", root)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return Set{}, fmt.Errorf("rsync --list-only %s: %w: %s", root, err, detail)
		}
		return Set{}, fmt.Errorf("rsync --list-only %s: %w", root, err)
	}
	return NewSet(parseListing(&stdout)), nil
}

// parseListing extracts directory names from rsync --list-only output. Each
// line carries permissions, size, date, time, then the name; only directory
// entries other than "." count as accounts.
func parseListing(output *bytes.Buffer) []string {
	var names []string
	scanner := bufio.NewScanner(output)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		if !strings.HasPrefix(fields[0], "d") {
			continue
		}
		name := strings.Join(fields[4:], " ")
		if name == "." || strings.HasPrefix(name, ".") {
			continue
		}
		names = append(names, name)
	}
	return names
}
