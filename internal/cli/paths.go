// ABOUTME: Locations of the client's local documents
// ABOUTME: Resolves $IRMA_HOME or ~/.irma and names each file inside it

package cli

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides the directory holding local documents.
const HomeEnv = "IRMA_HOME"

// Paths names the local documents of one client installation.
type Paths struct {
	Dir string
}

// ResolvePaths returns the paths under $IRMA_HOME, falling back to ~/.irma.
func ResolvePaths(getenv func(string) string) (Paths, error) {
	if dir := getenv(HomeEnv); dir != "" {
		return Paths{Dir: dir}, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolving home directory: %w", err)
	}
	return Paths{Dir: filepath.Join(home, ".irma")}, nil
}

func (p Paths) DefaultsFile() string { return filepath.Join(p.Dir, "defaults.toml") }
func (p Paths) AuthFile() string     { return filepath.Join(p.Dir, "auth.json") }
func (p Paths) SessionsFile() string { return filepath.Join(p.Dir, "sessions.json") }

// writeFileAtomic replaces path with data via a temp file and rename, so a
// reader sees either the old document or the new one.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}
