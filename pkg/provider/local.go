package provider

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	mcperrors "github.com/ajitpratap0/mcp-toolbridge/pkg/errors"
	"github.com/ajitpratap0/mcp-toolbridge/pkg/logging"
)

// Local tool names.
const (
	ToolReadLocalFile     = "read_local_file"
	ToolListProjectFiles  = "list_project_files"
	ToolCodeSearch        = "code_search"
	ToolWriteReportOutput = "write_report_output"
)

const (
	reportFileName = "final_report.md"
	// files larger than this are not searched
	maxSearchFileSize = 2 << 20
)

var excludedDirs = map[string]bool{
	".git":          true,
	".venv":         true,
	"__pycache__":   true,
	".pytest_cache": true,
	".ruff_cache":   true,
	"outputs":       true,
	"logs":          true,
	"data":          true,
}

// LocalProvider serves file access confined to a project root.
type LocalProvider struct {
	root      string
	outputDir string
	logger    logging.Logger
}

// NewLocalProvider resolves root (empty means the working directory).
// outputDir is relative to root and defaults to "outputs".
func NewLocalProvider(root, outputDir string, logger logging.Logger) (*LocalProvider, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	if outputDir == "" {
		outputDir = "outputs"
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &LocalProvider{
		root:      abs,
		outputDir: outputDir,
		logger:    logger.WithFields(logging.String("component", "local_provider")),
	}, nil
}

// Root is the resolved project root.
func (l *LocalProvider) Root() string { return l.root }

func (l *LocalProvider) Side() string { return SideLocal }

func (l *LocalProvider) Tools() []Tool {
	return []Tool{
		{Name: ToolReadLocalFile, Description: "Read a UTF-8 file under the project root", Params: []Param{
			{Name: "path", Type: ParamString, Description: "Path relative to the project root", Required: true},
		}},
		{Name: ToolListProjectFiles, Description: "List project files whose name matches a glob", Params: []Param{
			{Name: "pattern", Type: ParamString, Description: "Glob matched against file names (default *)"},
		}},
		{Name: ToolCodeSearch, Description: "Search project files with a regular expression", Params: []Param{
			{Name: "pattern", Type: ParamString, Description: "Regular expression", Required: true},
			{Name: "max_results", Type: ParamNumber, Description: "Maximum matches (default 20)"},
		}},
		{Name: ToolWriteReportOutput, Description: "Write the final report for a run", Params: []Param{
			{Name: "run_id", Type: ParamString, Description: "Run identifier", Required: true},
			{Name: "content", Type: ParamString, Description: "Report markdown", Required: true},
		}},
	}
}

func (l *LocalProvider) Health() map[string]any {
	return map[string]any{"status": "ok", "root": l.root}
}

func (l *LocalProvider) Call(ctx context.Context, tool string, args map[string]any) (any, error) {
	switch tool {
	case ToolReadLocalFile:
		return l.ReadFile(stringArg(args, "path", ""))
	case ToolListProjectFiles:
		return l.ListFiles(ctx, stringArg(args, "pattern", "*"))
	case ToolCodeSearch:
		return l.CodeSearch(ctx, stringArg(args, "pattern", ""), intArg(args, "max_results", 20))
	case ToolWriteReportOutput:
		return l.WriteReport(stringArg(args, "run_id", "fallback-run"), stringArg(args, "content", ""))
	}
	return nil, mcperrors.UnknownTool(tool)
}

// Degraded answers with empty values, except that a report is still written
// since losing it would lose the run's output.
func (l *LocalProvider) Degraded(tool string, args map[string]any) any {
	switch tool {
	case ToolListProjectFiles:
		return []string{}
	case ToolCodeSearch:
		return []map[string]any{}
	case ToolReadLocalFile:
		return ""
	case ToolWriteReportOutput:
		path, err := l.WriteReport(stringArg(args, "run_id", "fallback-run"), stringArg(args, "content", ""))
		if err != nil {
			l.logger.WithError(err).Error("degraded report write failed")
			return nil
		}
		return path
	}
	return nil
}

// safePath resolves p against the root and rejects anything outside it.
func (l *LocalProvider) safePath(p string) (string, error) {
	candidate := p
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(l.root, p)
	}
	candidate = filepath.Clean(candidate)
	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		candidate = resolved
	}
	rel, err := filepath.Rel(l.root, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", mcperrors.PathEscape(p)
	}
	return candidate, nil
}

// ReadFile returns the contents of a file under the root.
func (l *LocalProvider) ReadFile(path string) (string, error) {
	target, err := l.safePath(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// walk visits regular files under the root, skipping excluded directories,
// and passes each file's slash-separated relative path.
func (l *LocalProvider) walk(ctx context.Context, fn func(abs, rel string, d fs.DirEntry) (stop bool, err error)) error {
	return filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are skipped
			if d != nil && d.IsDir() && path != l.root {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == l.root {
			return nil
		}
		if excludedDirs[d.Name()] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return nil
		}
		stop, err := fn(path, filepath.ToSlash(rel), d)
		if err != nil {
			return err
		}
		if stop {
			return fs.SkipAll
		}
		return nil
	})
}

// ListFiles returns the sorted relative paths of files whose base name
// matches pattern.
func (l *LocalProvider) ListFiles(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, mcperrors.InvalidParameter("pattern", err.Error())
	}
	results := []string{}
	err := l.walk(ctx, func(_, rel string, d fs.DirEntry) (bool, error) {
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			results = append(results, rel)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(results)
	return results, nil
}

// CodeSearch returns up to maxResults {path, line, content} matches of the
// regular expression pattern, in walk order. Binary and very large files are
// skipped.
func (l *LocalProvider) CodeSearch(ctx context.Context, pattern string, maxResults int) ([]map[string]any, error) {
	if pattern == "" {
		return nil, mcperrors.InvalidParameter("pattern", "must not be empty")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, mcperrors.InvalidParameter("pattern", err.Error())
	}
	if maxResults <= 0 {
		maxResults = 20
	}

	findings := []map[string]any{}
	err = l.walk(ctx, func(abs, rel string, d fs.DirEntry) (bool, error) {
		info, err := d.Info()
		if err != nil || info.Size() > maxSearchFileSize {
			return false, nil
		}
		data, err := os.ReadFile(abs)
		if err != nil || isBinary(data) {
			return false, nil
		}
		scanner := bufio.NewScanner(bytes.NewReader(data))
		scanner.Buffer(make([]byte, 0, 64*1024), maxSearchFileSize)
		for n := 1; scanner.Scan(); n++ {
			line := scanner.Text()
			if !re.MatchString(line) {
				continue
			}
			findings = append(findings, map[string]any{
				"path":    rel,
				"line":    strconv.Itoa(n),
				"content": strings.TrimSpace(line),
			})
			if len(findings) >= maxResults {
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return findings, nil
}

func isBinary(data []byte) bool {
	head := data
	if len(head) > 8000 {
		head = head[:8000]
	}
	return bytes.IndexByte(head, 0) >= 0
}

// WriteReport writes content to <root>/<outputDir>/<runID>/final_report.md
// and returns that path.
func (l *LocalProvider) WriteReport(runID, content string) (string, error) {
	if runID == "" {
		runID = "fallback-run"
	}
	dir, err := l.safePath(filepath.Join(l.outputDir, runID))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	target := filepath.Join(dir, reportFileName)
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	l.logger.Info("report written", logging.String("path", target))
	return target, nil
}
