// Copyright Contributors to the Orchestrator project

// Package builder computes deterministic artifact names and builds the Kubernetes object specs
// (Job, ConfigMap, PVC) for a run.
package builder

import (
	"fmt"
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

const maxNameLength = 63

// sanitize lower-cases s, replaces runs of non-alphanumeric characters with a single "-", and
// truncates to maxNameLength while preserving a trailing alphanumeric character. This is the
// naming discipline every deterministic artifact name in this package goes through.
func sanitize(s string) string {
	lower := strings.ToLower(s)
	replaced := nonAlphanumeric.ReplaceAllString(lower, "-")
	replaced = strings.Trim(replaced, "-")
	if len(replaced) <= maxNameLength {
		return replaced
	}
	truncated := replaced[:maxNameLength]
	return strings.TrimRight(truncated, "-")
}

// uid8 returns the first 8 characters of a resource UID, the slice this package's naming
// functions use to keep artifact names unique per generation of a resource.
func uid8(uid string) string {
	if len(uid) <= 8 {
		return uid
	}
	return uid[:8]
}

// DocsJobName computes the deterministic Job name for a DocsRun.
func DocsJobName(namespace, name, uid string) string {
	return sanitize(fmt.Sprintf("docs-%s-%s-%s", namespace, name, uid8(uid)))
}

// DocsConfigMapName computes the deterministic ConfigMap name for a DocsRun.
func DocsConfigMapName(namespace, name, uid string) string {
	return sanitize(fmt.Sprintf("docs-%s-%s-%s-files", namespace, name, uid8(uid)))
}

// CodeJobName computes the deterministic Job name for a CodeRun.
func CodeJobName(namespace, name, uid string, taskID uint32, contextVersion int32) string {
	return sanitize(fmt.Sprintf("code-%s-%s-%s-t%d-v%d", namespace, name, uid8(uid), taskID, contextVersion))
}

// CodeConfigMapName computes the deterministic ConfigMap name for a CodeRun: the Job name with
// "-files" appended.
func CodeConfigMapName(namespace, name, uid string, taskID uint32, contextVersion int32) string {
	return sanitize(CodeJobName(namespace, name, uid, taskID, contextVersion) + "-files")
}

// WorkspacePVCName computes the deterministic, per-service workspace PVC name shared across
// code runs of the same service.
func WorkspacePVCName(service string) string {
	return sanitize(fmt.Sprintf("workspace-%s", service))
}

// NormalizeSecretSuffix lower-cases s and replaces underscores and spaces with "-", the
// normalization used to derive a GitHub App's credential secret name from its display name.
func NormalizeSecretSuffix(s string) string {
	lower := strings.ToLower(s)
	lower = strings.ReplaceAll(lower, "_", "-")
	lower = strings.ReplaceAll(lower, " ", "-")
	return lower
}

// GithubAppSecretName returns the secret name holding a GitHub App's id/private-key pair.
func GithubAppSecretName(appName string) string {
	return fmt.Sprintf("github-app-%s", NormalizeSecretSuffix(appName))
}

// GithubSSHSecretName returns the secret name holding a GitHub user's SSH private key.
func GithubSSHSecretName(user string) string {
	return fmt.Sprintf("github-ssh-%s", NormalizeSecretSuffix(user))
}
