package search

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// LocalIndex is the default SemanticIndex: a case-insensitive regex grep
// over text files under Root. It has no persistent index and re-walks the
// tree on every call, which is fine for the project sizes this tool shell
// targets.
type LocalIndex struct {
	Root string
	// SkipDirs names directories never descended into (node_modules, .git,
	// the offload tmp dir, etc).
	SkipDirs map[string]struct{}
}

// NewLocalIndex creates a LocalIndex rooted at root with a sensible
// default skip list.
func NewLocalIndex(root string) *LocalIndex {
	return &LocalIndex{
		Root: root,
		SkipDirs: map[string]struct{}{
			".git": {}, "node_modules": {}, ".spec-context": {}, "vendor": {},
		},
	}
}

// Search implements SemanticIndex.Search as a literal (regex-escaped)
// case-insensitive substring search.
func (l *LocalIndex) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	pattern, err := regexp.Compile("(?i)" + regexp.QuoteMeta(query))
	if err != nil {
		return nil, err
	}
	return l.grep(ctx, pattern, limit)
}

// CodeResearch implements SemanticIndex.CodeResearch. Lacking a real
// semantic backend, it treats each whitespace-separated term as an
// alternative and ranks hits by how many terms they match.
func (l *LocalIndex) CodeResearch(ctx context.Context, query string, limit int) ([]Hit, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil, nil
	}
	escaped := make([]string, len(terms))
	for i, t := range terms {
		escaped[i] = regexp.QuoteMeta(t)
	}
	pattern, err := regexp.Compile("(?i)(" + strings.Join(escaped, "|") + ")")
	if err != nil {
		return nil, err
	}

	hits, err := l.grep(ctx, pattern, limit*4)
	if err != nil {
		return nil, err
	}

	for i := range hits {
		hits[i].Score = 0
		for _, t := range terms {
			if strings.Contains(strings.ToLower(hits[i].Snippet), strings.ToLower(t)) {
				hits[i].Score++
			}
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (l *LocalIndex) grep(ctx context.Context, pattern *regexp.Regexp, limit int) ([]Hit, error) {
	var hits []Hit

	err := filepath.WalkDir(l.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if len(hits) >= limit {
			return filepath.SkipAll
		}
		if d.IsDir() {
			if _, skip := l.SkipDirs[d.Name()]; skip && path != l.Root {
				return filepath.SkipDir
			}
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return nil // unreadable files are skipped, not fatal
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			if pattern.MatchString(line) {
				rel, relErr := filepath.Rel(l.Root, path)
				if relErr != nil {
					rel = path
				}
				hits = append(hits, Hit{
					Path:    rel,
					Line:    lineNo,
					Snippet: strings.TrimSpace(line),
					Score:   1,
				})
				if len(hits) >= limit {
					break
				}
			}
		}
		return nil
	})
	if err != nil && err != context.Canceled {
		return hits, err
	}
	return hits, nil
}
