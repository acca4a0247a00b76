package model

import "time"

// SchemaVersion is written into every SnapshotMetadata record. Readers should
// tolerate unknown fields but may refuse records with a newer major version.
const SchemaVersion = "1.0"

// Provenance describes how a file in a snapshot came to be.
type Provenance string

const (
	ProvenanceInherited Provenance = "inherited" // unchanged copy from a base snapshot
	ProvenanceUpdated   Provenance = "updated"   // existed in the base with different content
	ProvenanceNew       Provenance = "new"       // no counterpart in the base
)

// AnalysisKind describes how a snapshot was produced.
type AnalysisKind string

const (
	AnalysisFull        AnalysisKind = "full"
	AnalysisIncremental AnalysisKind = "incremental"
	AnalysisInherited   AnalysisKind = "inherited"
)

// ModuleState is the outcome of one analysis module within a run.
type ModuleState string

const (
	ModuleInherited ModuleState = "inherited"
	ModuleSuccess   ModuleState = "success"
	ModuleFailed    ModuleState = "failed"
	ModuleSkipped   ModuleState = "skipped"
)

// ForkType describes the relationship recorded between a branch and its base.
type ForkType string

const (
	ForkBranch ForkType = "branch"
	ForkMerge  ForkType = "merge"
	ForkRebase ForkType = "rebase"
)

// Strategy identifies which lookup tier produced a cache search result.
type Strategy string

const (
	StrategyExact          Strategy = "exact"
	StrategyIncremental    Strategy = "incremental"
	StrategyCrossBranch    Strategy = "cross-branch"
	StrategyContentSimilar Strategy = "content-similar"
	StrategyFullAnalysis   Strategy = "full_analysis"
)

// FileEntry is one logical file within a snapshot. The digest is the
// sha256-prefixed checksum of the file content; PreviousDigest is set only
// when Provenance is "updated".
type FileEntry struct {
	LogicalPath    string     `json:"logicalPath"`
	Digest         string     `json:"digest"`
	SizeBytes      int64      `json:"sizeBytes"`
	Provenance     Provenance `json:"provenance"`
	SourceCommit   string     `json:"sourceCommit"`
	PreviousDigest string     `json:"previousDigest,omitempty"`
}

// Lineage records where a snapshot's history came from.
type Lineage struct {
	ParentCommit string   `json:"parentCommit,omitempty"`
	BaseBranch   string   `json:"baseBranch,omitempty"`
	BaseCommit   string   `json:"baseCommit,omitempty"`
	MergeFrom    string   `json:"mergeFrom,omitempty"`
	ForkType     ForkType `json:"forkType,omitempty"`
}

// ModuleStatus records the per-module outcome and timing of an analysis run.
type ModuleStatus struct {
	Status       ModuleState `json:"status"`
	DurationMs   int64       `json:"durationMs"`
	SourceCommit string      `json:"sourceCommit,omitempty"`
}

// Stats are the aggregate provenance counts of a snapshot, computed once at
// finalization time.
type Stats struct {
	TotalFiles         int     `json:"totalFiles"`
	InheritedFiles     int     `json:"inheritedFiles"`
	UpdatedFiles       int     `json:"updatedFiles"`
	NewFiles           int     `json:"newFiles"`
	DeletedFiles       int     `json:"deletedFiles"`
	DeduplicationRatio float64 `json:"deduplicationRatio"`
}

// GitInfo carries commit details captured at analysis time. All fields other
// than CommitSHA are best-effort.
type GitInfo struct {
	CommitSHA    string    `json:"commitSha"`
	ParentCommit string    `json:"parentCommit,omitempty"`
	Author       string    `json:"author,omitempty"`
	Message      string    `json:"message,omitempty"`
	CommittedAt  time.Time `json:"committedAt,omitzero"`
}

// SnapshotMetadata is the authoritative manifest for one analyzed commit.
// Records are append-only: once persisted for a (project, branch, commit) key
// they are never edited in place.
type SnapshotMetadata struct {
	SchemaVersion   string                  `json:"schemaVersion"`
	ProjectID       string                  `json:"projectId"`
	Branch          string                  `json:"branch"`
	CommitSHA       string                  `json:"commitSha"`
	Lineage         Lineage                 `json:"lineage"`
	AnalysisKind    AnalysisKind            `json:"analysisKind"`
	FileEntries     map[string]FileEntry    `json:"fileEntries"`
	PerModuleStatus map[string]ModuleStatus `json:"perModuleStatus"`
	Stats           Stats                   `json:"stats"`
	GitInfo         GitInfo                 `json:"gitInfo"`
	CreatedAt       time.Time               `json:"createdAt"`
}

// TreeSignature returns the path → size mapping of the snapshot's files.
func (m *SnapshotMetadata) TreeSignature() TreeSignature {
	sig := make(TreeSignature, len(m.FileEntries))
	for path, entry := range m.FileEntries {
		sig[path] = entry.SizeBytes
	}
	return sig
}

// BranchForkInfo records, once per branch, which branch and commit it was cut
// from. Write-once: the first recorded fork wins.
type BranchForkInfo struct {
	BaseBranch string    `json:"baseBranch"`
	BaseCommit string    `json:"baseCommit"`
	CreatedAt  time.Time `json:"createdAt"`
	ForkType   ForkType  `json:"forkType"`
	CreatedBy  string    `json:"createdBy"`
}

// BranchLatest points at the most recently analyzed commit of a branch.
// Updated on every snapshot persist; newer-commit wins.
type BranchLatest struct {
	CommitSHA    string       `json:"commitSha"`
	CreatedAt    time.Time    `json:"createdAt"`
	AnalysisKind AnalysisKind `json:"analysisKind"`
}

// CacheSearchResult is the outcome of a cache lookup. Strategy explains which
// tier matched (or StrategyFullAnalysis when none did).
type CacheSearchResult struct {
	Found          bool     `json:"found"`
	Strategy       Strategy `json:"strategy"`
	ResolvedCommit string   `json:"resolvedCommit,omitempty"`
	BaseBranch     string   `json:"baseBranch,omitempty"`
	Similarity     float64  `json:"similarity,omitempty"`
}

// TreeSignature maps logical file paths to byte sizes. It is a lightweight
// proxy for comparing two commits' content without a full diff.
type TreeSignature map[string]int64

// ChangeReport is the output of the change detector for a commit range.
type ChangeReport struct {
	BaseCommit        string            `json:"base_commit"`
	CurrentCommit     string            `json:"current_commit"`
	AffectedModules   []string          `json:"affected_modules"`
	AddedFiles        []string          `json:"added_files"`
	ModifiedFiles     []string          `json:"modified_files"`
	DeletedFiles      []string          `json:"deleted_files"`
	EstimatedImpact   map[string]string `json:"estimated_impact"`
	TotalChangedFiles int               `json:"total_changed_files"`
}
