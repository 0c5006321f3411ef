package sync

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/drp-sh/drpsync/internal/utils"
	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFileName holds extra gitignore-style rules inside the watched folder.
const IgnoreFileName = ".drpsyncignore"

var defaultIgnoreLines = []string{
	IgnoreFileName,
	// editor temp/swap files
	"*.tmp",
	"*.temp",
	"*.swp",
	"*.swx",
	"*~",
	".#*",
	"#*#",
	"4913", // vim write test file
	// VCS
	".git/",
	// OS-specific
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
}

// IgnoreList filters paths the engine must never sync: built-in temp/swap
// patterns, rules from the folder's ignore file, and user-configured globs.
type IgnoreList struct {
	baseDir  string
	excludes []string
	matcher  *gitignore.GitIgnore
}

func NewIgnoreList(baseDir string, excludes []string) *IgnoreList {
	return &IgnoreList{
		baseDir:  baseDir,
		excludes: excludes,
		matcher:  gitignore.CompileIgnoreLines(defaultIgnoreLines...),
	}
}

// Load compiles the default rules plus the folder's ignore file if present.
func (l *IgnoreList) Load() {
	ignorePath := filepath.Join(l.baseDir, IgnoreFileName)
	lines := append([]string{}, defaultIgnoreLines...)

	if utils.FileExists(ignorePath) {
		file, err := os.Open(ignorePath)
		if err != nil {
			slog.Warn("failed to open ignore file", "path", ignorePath, "error", err)
		} else {
			defer file.Close()
			rules := 0
			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				line := scanner.Text()
				if line != "" {
					lines = append(lines, line)
					rules++
				}
			}
			if err := scanner.Err(); err != nil {
				slog.Warn("error reading ignore file", "path", ignorePath, "error", err)
			} else if rules > 0 {
				slog.Info("loaded ignore file", "path", ignorePath, "rules", rules)
			}
		}
	}

	l.matcher = gitignore.CompileIgnoreLines(lines...)
}

// ShouldIgnore reports whether the relative path is excluded from sync.
func (l *IgnoreList) ShouldIgnore(relPath string) bool {
	slashPath := filepath.ToSlash(relPath)
	for _, pattern := range l.excludes {
		if ok, err := doublestar.Match(pattern, slashPath); err == nil && ok {
			return true
		}
	}
	return l.matcher.MatchesPath(relPath)
}
