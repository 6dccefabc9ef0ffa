package instagram

import (
	"fmt"
	"path/filepath"

	"github.com/law-makers/mediacrawl/internal/utils/output"
	"github.com/law-makers/mediacrawl/pkg/models"
)

// ProfileDir is where a profile's downloads live under dataDir.
func ProfileDir(dataDir, profileName string) string {
	return filepath.Join(dataDir, string(models.SiteInstagram), profileName)
}

// IGTVDir is where a profile's IGTV downloads live.
func IGTVDir(dataDir, profileName string) string {
	return filepath.Join(ProfileDir(dataDir, profileName), "igtv")
}

// SavedPaths lists the files written by SaveProfile
type SavedPaths struct {
	Data          string
	TimelineFiles string
	IGTVFiles     string
}

// SaveProfile archives a fetched profile under the profile's .data directory.
func SaveProfile(dataDir, taskID string, p *Profile) (SavedPaths, error) {
	dir := filepath.Join(ProfileDir(dataDir, p.ProfileName), ".data")
	paths := SavedPaths{
		Data:          filepath.Join(dir, taskID+"-data.json"),
		TimelineFiles: filepath.Join(dir, taskID+"-timeline-files.txt"),
		IGTVFiles:     filepath.Join(dir, taskID+"-igtv-files.txt"),
	}

	if err := output.SaveJSON(paths.Data, p); err != nil {
		return paths, fmt.Errorf("failed to save profile data: %w", err)
	}
	if err := output.SaveLines(paths.TimelineFiles, p.TimelineFiles); err != nil {
		return paths, fmt.Errorf("failed to save timeline files: %w", err)
	}
	if err := output.SaveLines(paths.IGTVFiles, p.IGTVFiles); err != nil {
		return paths, fmt.Errorf("failed to save igtv files: %w", err)
	}
	return paths, nil
}

// DownloadTasks turns file URLs into download tasks.
func DownloadTasks(files []string) []models.DownloadTask {
	tasks := make([]models.DownloadTask, 0, len(files))
	for _, f := range files {
		if f == "" {
			continue
		}
		tasks = append(tasks, models.DownloadTask{URL: f})
	}
	return tasks
}
