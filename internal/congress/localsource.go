package congress

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/openlegis/billchat/pkg/models"
)

// LocalSource serves bill text from a directory of plain-text files
// named "{congress}-{type}-{number}.txt" (e.g. "118-hr-1234.txt").
// Useful for offline development and tests; Scan walks nested
// directories so a corpus can be organized by congress.
type LocalSource struct {
	root  string
	files map[string]string // bill key -> absolute path
}

func NewLocalSource(root string) (*LocalSource, error) {
	s := &LocalSource{root: root, files: make(map[string]string)}
	if err := s.scan(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LocalSource) scan() error {
	return godirwalk.Walk(s.root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			name := strings.ToLower(filepath.Base(path))
			if !strings.HasSuffix(name, ".txt") {
				return nil
			}
			key := strings.TrimSuffix(name, ".txt")
			// Only files matching the bill key shape are indexed.
			if len(strings.SplitN(key, "-", 3)) == 3 {
				s.files[key] = path
			}
			return nil
		},
	})
}

// Bills lists the bill keys available in the corpus.
func (s *LocalSource) Bills() []string {
	keys := make([]string, 0, len(s.files))
	for k := range s.files {
		keys = append(keys, k)
	}
	return keys
}

func (s *LocalSource) FullText(ctx context.Context, bill models.BillIdentity) (string, error) {
	path, ok := s.files[strings.ToLower(bill.Key())]
	if !ok {
		return "", fmt.Errorf("no local text for %s under %s", bill.Key(), s.root)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
