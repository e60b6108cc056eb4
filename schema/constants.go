package schema

// Custom string types for type safety.
type (
	// TaskKind is the variant tag of a task.
	TaskKind string

	// ScopeKind is the kind of entity a scope refers to.
	ScopeKind string

	// ChunkStatus is the lifecycle state of a chunk.
	ChunkStatus string

	// Category is the output bucket of an entry.
	Category string

	// Impact is the impact level of an entry.
	Impact string

	// DedupKeep decides which entry survives a duplicate match.
	DedupKeep string

	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for run history.
	DatabaseBackend string
)

// All task kinds supported.
const (
	CommitsKind      TaskKind = "commits"
	PullRequestsKind TaskKind = "pull_requests"
	IssuesKind       TaskKind = "issues"
	MessagesKind     TaskKind = "messages"
	GeneralKind      TaskKind = "general"
)

// All scope kinds supported.
const (
	RepositoryScope ScopeKind = "repository"
	TeamScope       ScopeKind = "team"
	ChannelScope    ScopeKind = "channel"
)

// All chunk states.
const (
	ChunkPending   ChunkStatus = "pending"
	ChunkRunning   ChunkStatus = "running"
	ChunkSucceeded ChunkStatus = "succeeded"
	ChunkFailed    ChunkStatus = "failed"
)

// All categories produced by the built-in classifier.
const (
	FeatureCategory     Category = "feature"
	ImprovementCategory Category = "improvement"
	FixCategory         Category = "fix"
)

// All impact levels.
const (
	HighImpact   Impact = "high"
	MediumImpact Impact = "medium"
	LowImpact    Impact = "low"
)

// Duplicate tie-break policies.
const (
	KeepFirst            DedupKeep = "first" // default
	KeepHigherConfidence DedupKeep = "confidence"
)

// DedupByTitle is the only supported dedup field.
const DedupByTitle = "title"

// All output modes supported.
const (
	TextOut     OutputMode = "text" // default
	JSONOut     OutputMode = "json"
	CSVOut      OutputMode = "csv"
	MarkdownOut OutputMode = "markdown"
	HTMLOut     OutputMode = "html"
	XLSXOut     OutputMode = "xlsx"
	ParquetOut  OutputMode = "parquet"
)

// All run history backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite"
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none" // default
)

// CategoryOrder is the display order of the built-in categories.
var CategoryOrder = []Category{FeatureCategory, ImprovementCategory, FixCategory}

// ScopeKinds maps a scope kind to the task kinds that can cover it.
var ScopeKinds = map[ScopeKind][]TaskKind{
	RepositoryScope: {CommitsKind, PullRequestsKind},
	TeamScope:       {IssuesKind},
	ChannelScope:    {MessagesKind},
}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	TextOut:     {},
	JSONOut:     {},
	CSVOut:      {},
	MarkdownOut: {},
	HTMLOut:     {},
	XLSXOut:     {},
	ParquetOut:  {},
}

// ValidRunBackends lists all valid run history backends.
var ValidRunBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ValidDedupKeeps lists all valid tie-break policies.
var ValidDedupKeeps = map[DedupKeep]struct{}{
	KeepFirst:            {},
	KeepHigherConfidence: {},
}

// ImpactWeight maps an impact level to its ranking weight.
func ImpactWeight(impact Impact) float64 {
	switch impact {
	case HighImpact:
		return 3
	case MediumImpact:
		return 2
	default: // low and anything else
		return 1
	}
}
