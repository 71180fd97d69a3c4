package interpreter

import (
	"os"
	"path/filepath"
	"strings"

	"mq/engine-go/pkg/ast"
	"mq/engine-go/pkg/parser"
)

// ModuleLoader resolves include/import paths to parsed programs. A bare
// name resolves to "<name>.mq" in each search path in order; a path
// carrying a separator or the .mq suffix is tried as given first.
// Parsed programs are cached per resolved file.
type ModuleLoader struct {
	searchPaths []string
	cache       map[string]ast.Program
}

func NewModuleLoader(searchPaths ...string) *ModuleLoader {
	return &ModuleLoader{
		searchPaths: searchPaths,
		cache:       make(map[string]ast.Program),
	}
}

func (l *ModuleLoader) AddSearchPath(path string) {
	l.searchPaths = append(l.searchPaths, path)
}

func (l *ModuleLoader) SearchPaths() []string {
	return l.searchPaths
}

// Load resolves and parses a module. Macro expansion runs at load time
// so included definitions carry no macro nodes.
func (l *ModuleLoader) Load(nameOrPath string) (ast.Program, error) {
	resolved, err := l.resolve(nameOrPath)
	if err != nil {
		return nil, err
	}
	if cached, ok := l.cache[resolved]; ok {
		return cached, nil
	}
	src, err := os.ReadFile(resolved)
	if err != nil {
		return nil, &ModuleError{Path: nameOrPath, Err: err}
	}
	program, err := parser.Parse(string(src), ModuleName(nameOrPath))
	if err != nil {
		return nil, &ModuleError{Path: nameOrPath, Err: err}
	}
	expanded, err := Expand(program)
	if err != nil {
		return nil, &ModuleError{Path: nameOrPath, Err: err}
	}
	l.cache[resolved] = expanded
	return expanded, nil
}

func (l *ModuleLoader) resolve(nameOrPath string) (string, error) {
	candidates := make([]string, 0, len(l.searchPaths)+1)
	if strings.HasSuffix(nameOrPath, ".mq") || strings.ContainsRune(nameOrPath, os.PathSeparator) {
		candidates = append(candidates, nameOrPath)
		for _, dir := range l.searchPaths {
			candidates = append(candidates, filepath.Join(dir, nameOrPath))
		}
	} else {
		for _, dir := range l.searchPaths {
			candidates = append(candidates, filepath.Join(dir, nameOrPath+".mq"))
		}
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", &ModuleError{Path: nameOrPath, Err: os.ErrNotExist}
}

// ModuleName is the module identifier of a path: the file stem.
func ModuleName(nameOrPath string) string {
	base := filepath.Base(nameOrPath)
	return strings.TrimSuffix(base, ".mq")
}
