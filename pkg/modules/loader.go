// Package modules provides vm.ModuleLoader implementations: a
// filesystem-backed loader that resolves a dotted import path
// ("pkg.util") against a search path of root directories, and an
// in-memory loader for tests and embedders that don't want disk I/O.
package modules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemLoader resolves "a.b.c" to <root>/a/b/c.ws for the first root
// in Roots where that file exists: an ordered search path, first match
// wins.
type FilesystemLoader struct {
	Roots []string
	Ext   string // defaults to ".ws"
}

func NewFilesystemLoader(roots ...string) *FilesystemLoader {
	return &FilesystemLoader{Roots: roots, Ext: ".ws"}
}

func (l *FilesystemLoader) Load(path string) (string, string, error) {
	ext := l.Ext
	if ext == "" {
		ext = ".ws"
	}
	rel := filepath.Join(strings.Split(path, ".")...) + ext
	for _, root := range l.Roots {
		full := filepath.Join(root, rel)
		data, err := os.ReadFile(full)
		if err == nil {
			return string(data), full, nil
		}
		if !os.IsNotExist(err) {
			return "", "", err
		}
	}
	return "", "", fmt.Errorf("module %q not found (looked for %s under %d root(s))", path, rel, len(l.Roots))
}

// MemoryLoader serves module source from an in-memory map, keyed by the
// dotted import path — useful for tests and embedding scenarios that
// don't want a filesystem dependency.
type MemoryLoader struct {
	Sources map[string]string
}

func NewMemoryLoader() *MemoryLoader {
	return &MemoryLoader{Sources: make(map[string]string)}
}

func (l *MemoryLoader) Add(path, source string) *MemoryLoader {
	l.Sources[path] = source
	return l
}

func (l *MemoryLoader) Load(path string) (string, string, error) {
	src, ok := l.Sources[path]
	if !ok {
		return "", "", fmt.Errorf("module %q not found", path)
	}
	return src, "<module " + path + ">", nil
}
