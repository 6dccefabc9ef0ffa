package rarbg

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/law-makers/mediacrawl/internal/utils/output"
	"github.com/law-makers/mediacrawl/pkg/models"
)

// MagnetKey normalizes a magnet link to everything before its first "&".
// Tracker parameters vary between scrapes of the same torrent.
func MagnetKey(link string) string {
	if i := strings.IndexByte(link, '&'); i >= 0 {
		return link[:i]
	}
	return link
}

// MergeMagnets folds the torrents' magnets into existing lines. A later link
// replaces an earlier one with the same key; keys keep the order they were
// first seen in.
func MergeMagnets(existing []string, torrents []Torrent) []string {
	index := make(map[string]int)
	var out []string

	put := func(link string) {
		if strings.TrimSpace(link) == "" {
			return
		}
		key := MagnetKey(link)
		if i, ok := index[key]; ok {
			out[i] = link
			return
		}
		index[key] = len(out)
		out = append(out, link)
	}

	for _, line := range existing {
		put(strings.TrimSpace(line))
	}
	for _, t := range torrents {
		put(t.MagnetLink)
	}
	return out
}

// SavedPaths lists the files written by SaveResults
type SavedPaths struct {
	Result  string
	Magnets string
	// Count is the number of magnets in the merged file.
	Count int
}

// Dir is where search results live under dataDir.
func Dir(dataDir string) string {
	return filepath.Join(dataDir, string(models.SiteRarbg))
}

// SaveResults archives the crawl as JSON and merges its magnets into the
// search's magnet file.
func SaveResults(dataDir, taskID string, result SearchResult) (SavedPaths, error) {
	name := ResultName(result.URL)
	dir := Dir(dataDir)

	magnetName := name
	if magnetName == "" {
		magnetName = taskID
	}
	paths := SavedPaths{
		Result:  filepath.Join(dir, fmt.Sprintf("%s-%s.json", taskID, name)),
		Magnets: filepath.Join(dir, magnetName+".txt"),
	}

	if result.Torrents == nil {
		result.Torrents = []Torrent{}
	}
	if err := output.SaveJSON(paths.Result, result); err != nil {
		return paths, fmt.Errorf("failed to save search result: %w", err)
	}

	existing, err := output.ReadLines(paths.Magnets)
	if err != nil {
		return paths, fmt.Errorf("failed to read magnet file: %w", err)
	}
	merged := MergeMagnets(existing, result.Torrents)
	if err := output.SaveLines(paths.Magnets, merged); err != nil {
		return paths, fmt.Errorf("failed to save magnet file: %w", err)
	}
	paths.Count = len(merged)
	return paths, nil
}
