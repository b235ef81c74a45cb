// Copyright Contributors to the Orchestrator project

package builder

import (
	"strconv"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Labels computes the label set every artifact built by this package carries, per the naming
// and labeling contract: app=orchestrator, a component distinguishing docs vs code, a task
// type, the owning resource's uid8 (the same slice its artifact names are keyed on, so every
// generation of a resource's Jobs/ConfigMaps can be found by a single label selector even after
// a contextVersion bump changes the name), the sanitized authentication identity used, and
// (code only) task id, sanitized service, and context version.
func Labels(component, taskType, runUID string, taskID *uint32, service, githubUser, githubApp string, contextVersion *int32) map[string]string {
	labels := map[string]string{
		"app":       "orchestrator",
		"component": component,
		"task-type": taskType,
		"run-uid":   uid8(runUID),
	}
	if taskID != nil {
		labels["task-id"] = strconv.FormatUint(uint64(*taskID), 10)
	}
	if service != "" {
		labels["service"] = sanitize(service)
	}
	if githubUser != "" {
		labels["github-user"] = sanitize(githubUser)
	}
	if githubApp != "" {
		labels["github-identity"] = sanitize(githubApp)
	}
	if contextVersion != nil {
		labels["context-version"] = strconv.FormatInt(int64(*contextVersion), 10)
	}
	return labels
}

// BuildConfigMap constructs the run's ConfigMap object from rendered template data. It carries
// no owner reference yet: the Job must exist first (see the reconciler's late-bound ownership
// step), so this object is meant to be created, then patched with an owner reference later.
func BuildConfigMap(name, namespace string, labels map[string]string, data map[string]string) *corev1.ConfigMap {
	return &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels:    labels,
		},
		Data: data,
	}
}
