package localfile

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ternarybob/fetchgateway/internal/interfaces"
)

// writeJSONAtomic marshals v and writes it to path via a temp file plus
// rename, so a reader never observes a partially written file.
func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// readJSON unmarshals the file at path into v, returning
// interfaces.ErrNotFound if it does not exist.
func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return interfaces.ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, v)
}

// safeFilename turns an arbitrary key (a URL, a job id) into a filesystem-
// safe filename by escaping path-hostile characters.
func safeFilename(key string) string {
	b := []byte(key)
	for i, c := range b {
		switch c {
		case '/', '\\', ':', '?', '*', '"', '<', '>', '|':
			b[i] = '_'
		}
	}
	return filepath.Clean(string(b)) + ".json"
}
