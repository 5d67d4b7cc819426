// Package constants is responsible for defining the constants used in the application.
package constants

import (
	"log/slog"
)

var (
	// Version is the version of the application.
	Version = "Dev"
)

const (
	// CmdName is the name of the command line tool.
	CmdName = "auspice"

	// DefaultLogLevel is the default log level selected without any verbosity flags.
	DefaultLogLevel = slog.LevelWarn

	// DefaultListenPort is the port auspice view listens on when neither a flag nor $PORT is set.
	DefaultListenPort = 4000

	// PortEnv is the environment variable overriding the default listen port.
	PortEnv = "PORT"
)

// Local directory conventions.
const (
	// DatasetsFolder is looked for in the current directory when no dataset directory is given.
	DatasetsFolder = "auspice"

	// NarrativesFolder is looked for in the current directory when no narrative directory is given.
	NarrativesFolder = "narratives"

	// GenomeDBFolder is the folder, inside the dataset directory, holding genome sequence databases.
	GenomeDBFolder = "genomeDbs"

	// DefaultTileCacheDir is where map tiles are cached, relative to the working directory.
	DefaultTileCacheDir = "cache/tiles"

	// DefaultTileUpstream is the template used to fetch map tiles not yet cached.
	DefaultTileUpstream = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
)
