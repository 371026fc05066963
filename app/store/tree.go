package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/xlab/treeprint"
)

// CorpusTree renders the indexed corpus as class → subject → book branches
// with per-book page counts, for the stats command.
func CorpusTree(ctx context.Context, s Store) (string, error) {
	type bookKey struct {
		class, subject, book, language string
	}
	pages := make(map[bookKey]int)

	err := s.Scan(ctx, Filters{}, func(p Passage) error {
		pages[bookKey{p.ClassLabel, p.Subject, p.BookID, p.Language}]++
		return nil
	})
	if err != nil {
		return "", err
	}

	byClass := make(map[string]map[string][]bookKey)
	for k := range pages {
		if byClass[k.class] == nil {
			byClass[k.class] = make(map[string][]bookKey)
		}
		byClass[k.class][k.subject] = append(byClass[k.class][k.subject], k)
	}

	tree := treeprint.New()
	tree.SetValue("corpus")
	for _, class := range sortedKeys(byClass) {
		classBranch := tree.AddBranch(class)
		subjects := byClass[class]
		for _, subject := range sortedKeys(subjects) {
			subjectBranch := classBranch.AddBranch(subject)
			books := subjects[subject]
			sort.Slice(books, func(i, j int) bool { return books[i].book < books[j].book })
			for _, b := range books {
				subjectBranch.AddNode(fmt.Sprintf("%s (%s): %d pages", b.book, b.language, pages[b]))
			}
		}
	}
	return tree.String(), nil
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
