/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package duet

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

// RandomCategory draws from the union of every category.
const RandomCategory = "random"

//go:embed words/*.txt
var wordFiles embed.FS

// Category is a named word pool. The first line of each file is "# Label".
type Category struct {
	Key   string   `json:"key"`
	Label string   `json:"label"`
	Words []string `json:"-"`
}

var (
	loadOnce      sync.Once
	categories    map[string]Category
	categoriesErr error
)

func loadCategories() (map[string]Category, error) {
	loadOnce.Do(func() {
		entries, err := wordFiles.ReadDir("words")
		if err != nil {
			categoriesErr = err
			return
		}

		categories = make(map[string]Category, len(entries))
		for _, e := range entries {
			data, err := wordFiles.ReadFile(path.Join("words", e.Name()))
			if err != nil {
				categoriesErr = err
				return
			}

			c := Category{Key: strings.TrimSuffix(e.Name(), ".txt")}
			scanner := bufio.NewScanner(bytes.NewReader(data))
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				switch {
				case line == "":
				case strings.HasPrefix(line, "#"):
					if c.Label == "" {
						c.Label = strings.TrimSpace(strings.TrimPrefix(line, "#"))
					}
				default:
					c.Words = append(c.Words, line)
				}
			}
			if err := scanner.Err(); err != nil {
				categoriesErr = err
				return
			}

			categories[c.Key] = c
		}
	})

	return categories, categoriesErr
}

// Categories lists every word category, plus the random pool, sorted by key.
func Categories() []Category {
	all, err := loadCategories()
	if err != nil {
		return nil
	}

	out := make([]Category, 0, len(all)+1)
	out = append(out, Category{Key: RandomCategory, Label: "Zufällig (Alle)"})
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, all[k])
	}

	return out
}

// WordPool returns the words of a category. The random category is the
// deduplicated union of all categories.
func WordPool(category string) ([]string, error) {
	all, err := loadCategories()
	if err != nil {
		return nil, fmt.Errorf("load word lists: %w", err)
	}

	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		category = RandomCategory
	}

	if category != RandomCategory {
		c, ok := all[category]
		if !ok {
			return nil, errorf(ErrInvalidInput, "unknown word category %q", category)
		}
		return append([]string(nil), c.Words...), nil
	}

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seen := make(map[string]bool)
	var pool []string
	for _, k := range keys {
		for _, w := range all[k].Words {
			if seen[w] {
				continue
			}
			seen[w] = true
			pool = append(pool, w)
		}
	}

	return pool, nil
}
