package pcc

import "strings"

// Blob namespace layout:
//
//	objects/content/<digest>
//	projects/<projectID>/branches/<branch>/commits/<commitSHA>/metadata.json
//	projects/<projectID>/branches/<branch>/latest.json
//	projects/<projectID>/branches/<branch>/parent_branch.json

const (
	contentPrefix    = "objects/content/"
	projectsPrefix   = "projects/"
	metadataFileName = "metadata.json"
	latestFileName   = "latest.json"
	forkFileName     = "parent_branch.json"
)

// SanitizeBranch replaces path separators in a branch name so it can be used
// as a single path segment in the blob namespace.
func SanitizeBranch(branch string) string {
	branch = strings.ReplaceAll(branch, "/", "_")
	return strings.ReplaceAll(branch, "\\", "_")
}

func contentKey(digest string) string {
	return contentPrefix + digest
}

func branchPrefix(projectID, branch string) string {
	return projectsPrefix + projectID + "/branches/" + SanitizeBranch(branch) + "/"
}

func snapshotKey(projectID, branch, commitSHA string) string {
	return branchPrefix(projectID, branch) + "commits/" + commitSHA + "/" + metadataFileName
}

func latestKey(projectID, branch string) string {
	return branchPrefix(projectID, branch) + latestFileName
}

func forkKey(projectID, branch string) string {
	return branchPrefix(projectID, branch) + forkFileName
}

func projectPrefix(projectID string) string {
	return projectsPrefix + projectID + "/"
}
