package scenario

import (
	"embed"
	"io/fs"
)

//go:embed config
var defaultConfig embed.FS

// DefaultFS returns the content bundled into the binary so the game runs
// without an external content directory.
func DefaultFS() fs.FS {
	sub, err := fs.Sub(defaultConfig, "config")
	if err != nil {
		// The embedded directory always exists; a failure here is a build defect.
		panic(err)
	}
	return sub
}
