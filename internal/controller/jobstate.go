// Copyright Contributors to the Orchestrator project

// Package controller implements the Kubernetes controllers for DocsRun and CodeRun.
package controller

import (
	batchv1 "k8s.io/api/batch/v1"
)

// JobState is the reconciler's view of an owned Job's observed state.
type JobState string

const (
	// JobNotFound means no Job by the deterministic name exists. This does not distinguish
	// "never created" from "reaped by TTL after completion" — that ambiguity is resolved by the
	// status-first workCompleted check upstream of this classification.
	JobNotFound JobState = "NotFound"
	// JobRunning means the Job has not reached a terminal condition.
	JobRunning JobState = "Running"
	// JobCompleted means the Job's Complete condition is True, or (fallback) Succeeded > 0.
	JobCompleted JobState = "Completed"
	// JobFailed means the Job's Failed condition is True, or (fallback) Failed > 0.
	JobFailed JobState = "Failed"
)

// ClassifyJob derives a JobState from a Job's status, preferring conditions over the legacy
// integer counters when both are present.
func ClassifyJob(job *batchv1.Job) JobState {
	for _, c := range job.Status.Conditions {
		if c.Type == batchv1.JobComplete && c.Status == "True" {
			return JobCompleted
		}
		if c.Type == batchv1.JobFailed && c.Status == "True" {
			return JobFailed
		}
	}
	if job.Status.Succeeded > 0 {
		return JobCompleted
	}
	if job.Status.Failed > 0 {
		return JobFailed
	}
	return JobRunning
}

// JobFailureMessage returns the most informative failure detail available on job: a True Failed
// condition's message, or its reason when the message is empty; a generic fallback when there
// is no such condition.
func JobFailureMessage(job *batchv1.Job) string {
	for _, c := range job.Status.Conditions {
		if c.Type == batchv1.JobFailed && c.Status == "True" {
			if c.Message != "" {
				return c.Message
			}
			return c.Reason
		}
	}
	return "job failed"
}
