package mailmerge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// AllocPath reserves a fresh file path named after name in the session
// directory and records it as owned by the session. The file is not
// created.
func (s *SessionStore) AllocPath(id, name string) (string, error) {
	var path string
	err := s.mutate(id, func(sess *Session) ([]string, error) {
		path = filepath.Join(sess.Dir, uniqueName(name))
		sess.owned = append(sess.owned, path)
		return nil, nil
	})
	return path, err
}

// AllocDir creates a fresh directory in the session directory and records
// it as owned by the session.
func (s *SessionStore) AllocDir(id, prefix string) (string, error) {
	var dir string
	err := s.mutate(id, func(sess *Session) ([]string, error) {
		dir = filepath.Join(sess.Dir, uniqueName(prefix))
		if err := os.Mkdir(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating directory: %w", err)
		}
		sess.owned = append(sess.owned, dir)
		return nil, nil
	})
	return dir, err
}

// Discard deletes paths previously allocated for the session and forgets
// them. Paths the session does not own are left alone.
func (s *SessionStore) Discard(id string, paths ...string) error {
	return s.mutate(id, func(sess *Session) ([]string, error) {
		var stale []string
		for _, p := range paths {
			if sess.disown(p) {
				stale = append(stale, p)
			}
		}
		return stale, nil
	})
}

// ReplaceTemplate records the template upload, deleting the previous one.
func (s *SessionStore) ReplaceTemplate(id, path, name string, fields []string) error {
	return s.mutate(id, func(sess *Session) ([]string, error) {
		var stale []string
		if sess.TemplatePath != "" && sess.TemplatePath != path && sess.disown(sess.TemplatePath) {
			stale = append(stale, sess.TemplatePath)
		}
		sess.TemplatePath, sess.TemplateName, sess.Fields = path, name, fields
		return stale, nil
	})
}

// ReplaceData records the data upload, deleting the previous one.
func (s *SessionStore) ReplaceData(id, path, name string, headers []string) error {
	return s.mutate(id, func(sess *Session) ([]string, error) {
		var stale []string
		if sess.DataPath != "" && sess.DataPath != path && sess.disown(sess.DataPath) {
			stale = append(stale, sess.DataPath)
		}
		sess.DataPath, sess.DataName, sess.Headers = path, name, headers
		return stale, nil
	})
}

// ReplaceOutputs registers the outputs of a merge written in dir and
// deletes the previous merge directory with its outputs.
func (s *SessionStore) ReplaceOutputs(id, dir string, outputs []Output) error {
	return s.mutate(id, func(sess *Session) ([]string, error) {
		var stale []string
		if sess.outputDir != "" && sess.outputDir != dir && sess.disown(sess.outputDir) {
			stale = append(stale, sess.outputDir)
		}
		sess.outputDir, sess.Outputs = dir, outputs
		return stale, nil
	})
}

// uniqueName prefixes name with a short random token so allocations never
// collide.
func uniqueName(name string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	if name == "" {
		return token
	}
	return token + "_" + name
}
