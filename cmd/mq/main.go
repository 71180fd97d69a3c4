package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"mq/engine-go/pkg/driver"
	"mq/engine-go/pkg/interpreter"
	"mq/engine-go/pkg/markdown"
	"mq/engine-go/pkg/runtime"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage(os.Stderr)
		return 2
	}
	switch args[0] {
	case "--help", "-h", "help":
		printUsage(os.Stdout)
		return 0
	case "--version", "-V":
		fmt.Println("mq", version)
		return 0
	case "modules":
		return runModules(args[1:])
	case "run":
		return runScript(args[1:])
	default:
		return runQuery(args)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `mq evaluates queries over markdown documents.

Usage:
  mq [options] <query> [file ...]
  mq run <script.mq> [file ...]
  mq modules install

Options:
  -U, --update       merge results back into the input documents
      --walker       use the tree-walking evaluator
      --keep-none    keep empty results in the output
  -L <dir>           add a module search path (repeatable)
  -h, --help         show this help
  -V, --version      show the version

Without files the query reads a markdown document from stdin. Module
search paths also come from MQ_PATH, the module.yml manifest governing
the working directory, and its installed dependencies under MQ_HOME.`)
}

type cliOptions struct {
	update      bool
	walker      bool
	keepNone    bool
	searchPaths []string
}

// parseFlags splits leading options from positional arguments.
func parseFlags(args []string) (cliOptions, []string, error) {
	var opts cliOptions
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-U", "--update":
			opts.update = true
		case "--walker":
			opts.walker = true
		case "--keep-none":
			opts.keepNone = true
		case "-L":
			if i+1 >= len(args) {
				return opts, nil, fmt.Errorf("-L requires a directory argument")
			}
			i++
			opts.searchPaths = append(opts.searchPaths, args[i])
		default:
			if strings.HasPrefix(arg, "-") && len(rest) == 0 {
				return opts, nil, fmt.Errorf("unknown option %q", arg)
			}
			rest = append(rest, arg)
		}
	}
	return opts, rest, nil
}

func runQuery(args []string) int {
	opts, rest, err := parseFlags(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mq: %v\n", err)
		return 2
	}
	if len(rest) == 0 {
		fmt.Fprintln(os.Stderr, "mq: query required")
		return 2
	}
	return execute(rest[0], rest[1:], opts)
}

func runScript(args []string) int {
	opts, rest, err := parseFlags(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mq: %v\n", err)
		return 2
	}
	if len(rest) == 0 {
		fmt.Fprintln(os.Stderr, "mq: script path required")
		return 2
	}
	code, err := os.ReadFile(rest[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "mq: %v\n", err)
		return 1
	}
	opts.searchPaths = append(opts.searchPaths, filepath.Dir(rest[0]))
	return execute(string(code), rest[1:], opts)
}

func execute(code string, files []string, opts cliOptions) int {
	manifest, lock, err := loadProject()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mq: %v\n", err)
		return 1
	}

	engineOpts := interpreter.DefaultOptions()
	engineOpts.FilterNone = !opts.keepNone
	if opts.walker {
		engineOpts.UseCompiler = false
	}
	if manifest != nil {
		applyManifest(&engineOpts, manifest, opts)
	}
	engine := interpreter.New(engineOpts)
	for _, dir := range collectSearchPaths(manifest, lock, opts) {
		engine.AddSearchPath(dir)
	}

	sources, err := readSources(files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mq: %v\n", err)
		return 1
	}

	for _, source := range sources {
		if err := evalSource(engine, code, source, opts); err != nil {
			fmt.Fprintf(os.Stderr, "mq: %v\n", err)
			return 1
		}
	}
	return 0
}

func applyManifest(engineOpts *interpreter.Options, manifest *driver.Manifest, opts cliOptions) {
	if manifest.Engine.Strategy == driver.StrategyWalker && !opts.walker {
		engineOpts.UseCompiler = false
	}
	if manifest.Engine.MaxCallDepth > 0 {
		engineOpts.MaxCallDepth = manifest.Engine.MaxCallDepth
	}
	if manifest.Engine.FilterNone {
		engineOpts.FilterNone = true
	}
}

type source struct {
	name string
	text string
}

func readSources(files []string) ([]source, error) {
	if len(files) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return []source{{name: "<stdin>", text: string(data)}}, nil
	}
	sources := make([]source, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source{name: file, text: string(data)})
	}
	return sources, nil
}

// evalSource evaluates the query against one document. Each top-level
// node of the document is one pipeline input. In update mode results
// merge back into the original nodes and the whole document renders to
// stdout; otherwise each result prints on its own line.
func evalSource(engine *interpreter.Engine, code string, src source, opts cliOptions) error {
	nodes := markdown.Parse(src.text)
	inputs := make([]runtime.Value, 0, len(nodes))
	for _, node := range nodes {
		inputs = append(inputs, runtime.NewMarkdown(node))
	}

	outputs, err := engine.Eval(code, inputs)
	if err != nil {
		return fmt.Errorf("%s: %w", src.name, err)
	}

	if opts.update {
		updated := runtime.UpdateWith(inputs, outputs)
		rendered := make([]*markdown.Node, 0, len(updated))
		for _, value := range updated {
			if md, ok := value.(*runtime.MarkdownValue); ok {
				rendered = append(rendered, md.Node)
			}
		}
		fmt.Print(markdown.Render(rendered))
		return nil
	}

	for _, output := range outputs {
		if md, ok := output.(*runtime.MarkdownValue); ok {
			fmt.Println(strings.TrimRight(md.Node.String(), "\n"))
			continue
		}
		fmt.Println(runtime.ToString(output))
	}
	return nil
}

func runModules(args []string) int {
	if len(args) == 0 || args[0] != "install" {
		fmt.Fprintln(os.Stderr, "mq: usage: mq modules install")
		return 2
	}
	manifestPath, err := findManifestFromCwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mq: %v\n", err)
		return 1
	}
	if manifestPath == "" {
		fmt.Fprintln(os.Stderr, "mq: no module.yml found")
		return 1
	}
	manifest, err := driver.LoadManifest(manifestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mq: %v\n", err)
		return 1
	}
	installer, err := driver.NewInstaller(resolveHome())
	if err != nil {
		fmt.Fprintf(os.Stderr, "mq: %v\n", err)
		return 1
	}
	installed, err := installer.Install(manifest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mq: %v\n", err)
		return 1
	}
	lockPath := filepath.Join(manifest.Dir(), driver.LockFileName)
	if err := installer.Lockfile(installed).Write(lockPath); err != nil {
		fmt.Fprintf(os.Stderr, "mq: %v\n", err)
		return 1
	}
	for _, pkg := range installed {
		fmt.Printf("installed %s %s\n", pkg.Name, pkg.Version)
	}
	return 0
}

func loadProject() (*driver.Manifest, *driver.Lockfile, error) {
	manifestPath, err := findManifestFromCwd()
	if err != nil || manifestPath == "" {
		return nil, nil, err
	}
	manifest, err := driver.LoadManifest(manifestPath)
	if err != nil {
		return nil, nil, err
	}
	lock, err := driver.LoadLockfile(filepath.Join(manifest.Dir(), driver.LockFileName))
	if err != nil {
		return nil, nil, err
	}
	return manifest, lock, nil
}

func findManifestFromCwd() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return driver.FindManifest(cwd)
}

// collectSearchPaths gathers module roots in precedence order: command
// line, MQ_PATH, manifest search paths, then installed dependencies.
func collectSearchPaths(manifest *driver.Manifest, lock *driver.Lockfile, opts cliOptions) []string {
	paths := append([]string(nil), opts.searchPaths...)
	if env := os.Getenv("MQ_PATH"); env != "" {
		for _, dir := range filepath.SplitList(env) {
			if dir != "" {
				paths = append(paths, dir)
			}
		}
	}
	if manifest != nil {
		for _, dir := range manifest.Engine.SearchPaths {
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(manifest.Dir(), dir)
			}
			paths = append(paths, dir)
		}
	}
	if lock != nil && len(lock.Packages) > 0 {
		if installer, err := driver.NewInstaller(resolveHome()); err == nil {
			for _, pkg := range lock.Packages {
				paths = append(paths, installer.PackageDir(pkg))
			}
		}
	}
	return paths
}

func resolveHome() string {
	if home := os.Getenv("MQ_HOME"); home != "" {
		return home
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return ".mq"
	}
	return filepath.Join(userHome, ".mq")
}
