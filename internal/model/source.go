package model

// Path represents a file system path.
type Path string

// File represents a fixture file discovered on disk.
type File struct {
	ShortPath Path
	FullPath  Path
	Hash      string
}

// UnitID returns the identifier used to key the file in the oracle manifest.
func (f File) UnitID() string {
	if f.ShortPath != "" {
		return string(f.ShortPath)
	}

	return string(f.FullPath)
}
