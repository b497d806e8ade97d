package ir

// Version constants for the design schema and tool.
const (
	// DesignVersion is the version of the Design snapshot layout.
	DesignVersion = "1"

	// ToolVersion is the querycanvas version.
	ToolVersion = "0.1.0"
)
