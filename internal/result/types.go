package result

import "time"

// Summary records one sharding pass over a source tree.
type Summary struct {
	SourceDir   string              `json:"source_dir"`
	ResultsDir  string              `json:"results_dir"`
	StartedAt   time.Time           `json:"started_at"`
	DurationMS  int64               `json:"duration_ms"`
	DirsScanned int                 `json:"dirs_scanned"`
	DirsSharded int                 `json:"dirs_sharded"`
	FilesCopied int                 `json:"files_copied"`
	Groups      map[string][]string `json:"groups"`
	Warnings    []Warning           `json:"warnings,omitempty"`
	SkippedDirs []string            `json:"skipped_dirs,omitempty"`
}

// Warning flags a run directory whose metadata produced a degenerate key.
type Warning struct {
	Dir    string `json:"dir"`
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// AddFile records that name was copied into group key.
func (s *Summary) AddFile(key, name string) {
	if s.Groups == nil {
		s.Groups = map[string][]string{}
	}
	for _, existing := range s.Groups[key] {
		if existing == name {
			return
		}
	}
	s.Groups[key] = append(s.Groups[key], name)
}
