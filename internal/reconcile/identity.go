package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
)

// AssignID derives the stable content-derived identity for a marker: the
// SHA-256 hex digest of project name, file path, and normalized content joined
// by a path delimiter. Line numbers do not participate, so a marker that
// shifts within its file keeps its identity; a marker that moves to another
// file or whose text changes gets a new one.
func AssignID(projectName string, marker RawMarker) string {
	sum := sha256.Sum256([]byte(projectName + "/" + marker.FilePath + "/" + Normalize(marker.Content)))
	return hex.EncodeToString(sum[:])
}

// Identify classifies and stamps a full scan's raw markers into todos owned
// by the given user.
func Identify(userID, projectName string, markers []RawMarker) []Todo {
	todos := make([]Todo, 0, len(markers))
	for _, raw := range markers {
		m := Classify(raw)
		todos = append(todos, Todo{
			ID:         AssignID(projectName, raw),
			UserID:     userID,
			Type:       m.Type,
			CustomTag:  m.CustomTag,
			Content:    m.Content,
			FilePath:   m.FilePath,
			LineNumber: m.LineNumber,
		})
	}
	return todos
}
