package fs

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IgnoreFileName is read from the root of every source tree before it is walked.
const IgnoreFileName = ".fassignore"

// builtinRules keep fass's own files out of a mirror: the ignore file,
// half-written copies left by CopyFile, temp files of the index and
// settings saves, and quarantined index documents. User rules cannot
// re-include them.
var builtinRules = mustParseRules(
	IgnoreFileName,
	".*.tmp-*",
	".index-*.tmp",
	".settings-*.tmp",
	"*.corrupt-*",
)

type ignoreRule struct {
	glob     string
	negate   bool // "!glob" re-includes what an earlier rule ignored
	dirOnly  bool // "glob/" only matches directories
	anchored bool // a glob containing '/' matches the root-relative path
}

// parseRule turns one line into a rule. ok is false for blank lines and
// comments.
func parseRule(line string) (rule ignoreRule, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return ignoreRule{}, false, nil
	}

	if strings.HasPrefix(line, "!") {
		rule.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		rule.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	if strings.Contains(line, "/") {
		rule.anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	if line == "" {
		return ignoreRule{}, false, nil
	}
	if _, err := path.Match(line, ""); err != nil {
		return ignoreRule{}, false, err
	}
	rule.glob = line
	return rule, true, nil
}

func mustParseRules(lines ...string) []ignoreRule {
	var rules []ignoreRule
	for _, l := range lines {
		r, ok, err := parseRule(l)
		if err != nil {
			panic(err)
		}
		if ok {
			rules = append(rules, r)
		}
	}
	return rules
}

func (r ignoreRule) matches(rel, base string, isDir bool) bool {
	if r.dirOnly && !isDir {
		return false
	}
	subject := base
	if r.anchored {
		subject = rel
	}
	ok, _ := path.Match(r.glob, subject)
	return ok
}

// IgnoreRules decides which entries of a source tree stay out of the backup.
// Rules apply in order and the last match wins, so "!keep.log" after
// "*.log" keeps that one file. An ignored directory is not descended
// into, so nothing below it can be re-included.
type IgnoreRules struct {
	rules []ignoreRule
}

// NewIgnoreRules parses rule lines in order. An invalid glob is an error
// naming source.
func NewIgnoreRules(source string, lines []string) (*IgnoreRules, error) {
	r := &IgnoreRules{}
	if err := r.add(source, lines); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *IgnoreRules) add(source string, lines []string) error {
	for i, l := range lines {
		rule, ok, err := parseRule(l)
		if err != nil {
			return fmt.Errorf("invalid ignore pattern %q (%s, line %d): %w", strings.TrimSpace(l), source, i+1, err)
		}
		if ok {
			r.rules = append(r.rules, rule)
		}
	}
	return nil
}

// Ignored reports whether the entry at rel, relative to the walk root,
// is left out.
func (r *IgnoreRules) Ignored(rel string, isDir bool) bool {
	rel = filepath.ToSlash(rel)
	base := path.Base(rel)

	for _, b := range builtinRules {
		if b.matches(rel, base, isDir) {
			return true
		}
	}

	ignored := false
	for _, rule := range r.rules {
		if rule.negate != ignored {
			continue
		}
		if rule.matches(rel, base, isDir) {
			ignored = !rule.negate
		}
	}
	return ignored
}

// loadIgnoreRules combines the configured rules with the root's own
// ignore file, which takes precedence.
func loadIgnoreRules(root string, configured []string) (*IgnoreRules, error) {
	rules, err := NewIgnoreRules("config", configured)
	if err != nil {
		return nil, err
	}

	file := filepath.Join(root, IgnoreFileName)
	lines, err := readLines(file)
	if err != nil {
		return nil, err
	}
	if err := rules.add(file, lines); err != nil {
		return nil, err
	}
	return rules, nil
}

// readLines returns the lines of path, or nothing if it does not exist.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return lines, nil
}
