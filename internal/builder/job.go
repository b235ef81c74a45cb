// Copyright Contributors to the Orchestrator project

package builder

import (
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
)

const (
	taskFilesVolumeName   = "task-files"
	taskFilesMountPath    = "/task-files"
	managedSettingsPath   = "/etc/claude-code/managed-settings.json"
	workspaceVolumeName   = "workspace"
	workspaceMountPath    = "/workspace"
)

// int32Ptr returns a pointer to the given int32 value.
func int32Ptr(i int32) *int32 { return &i }

// OwnerRef describes the custom resource that should own the Job.
type OwnerRef struct {
	APIVersion string
	Kind       string
	Name       string
	UID        types.UID
}

func (o OwnerRef) toMeta() metav1.OwnerReference {
	controller := true
	return metav1.OwnerReference{
		APIVersion: o.APIVersion,
		Kind:       o.Kind,
		Name:       o.Name,
		UID:        o.UID,
		Controller: &controller,
	}
}

// JobOptions carries everything BuildJob needs to assemble the owned batch Job for a run.
type JobOptions struct {
	Name          string
	Namespace     string
	Labels        map[string]string
	Owner         OwnerRef
	ConfigMapName string

	Image            string
	ImagePullSecrets []string

	// EnvVars are pre-resolved environment variables: the API key projection, the auth
	// projection's vars, and (code runs) the spec's free-form env and envFromSecrets.
	EnvVars []corev1.EnvVar

	// ExtraVolumes/ExtraVolumeMounts carry the auth projection's SSH volume, if any.
	ExtraVolumes      []corev1.Volume
	ExtraVolumeMounts []corev1.VolumeMount

	// Workspace is the workspace volume: an ephemeral emptyDir for docs runs, the per-service
	// PVC for code runs.
	Workspace corev1.VolumeSource

	ActiveDeadlineSeconds int64
}

// BuildJob constructs the batch Job for a run: backoffLimit=0 (no in-Job retry),
// ttlSecondsAfterFinished=30 (the reconciler must not rely on the Job's continued existence to
// detect completion), restart policy Never, one container running the rendered entry-point
// script with working directory /workspace, owner reference back to the custom resource.
func BuildJob(opts JobOptions) *batchv1.Job {
	volumes := []corev1.Volume{
		{
			Name: taskFilesVolumeName,
			VolumeSource: corev1.VolumeSource{
				ConfigMap: &corev1.ConfigMapVolumeSource{
					LocalObjectReference: corev1.LocalObjectReference{Name: opts.ConfigMapName},
				},
			},
		},
		{
			Name:         workspaceVolumeName,
			VolumeSource: opts.Workspace,
		},
	}
	volumes = append(volumes, opts.ExtraVolumes...)

	volumeMounts := []corev1.VolumeMount{
		{Name: taskFilesVolumeName, MountPath: taskFilesMountPath},
		{
			Name:      taskFilesVolumeName,
			MountPath: managedSettingsPath,
			SubPath:   "settings.json",
		},
		{Name: workspaceVolumeName, MountPath: workspaceMountPath},
	}
	volumeMounts = append(volumeMounts, opts.ExtraVolumeMounts...)

	var imagePullSecrets []corev1.LocalObjectReference
	for _, s := range opts.ImagePullSecrets {
		imagePullSecrets = append(imagePullSecrets, corev1.LocalObjectReference{Name: s})
	}

	ttl := int32(30)
	deadline := opts.ActiveDeadlineSeconds

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:            opts.Name,
			Namespace:       opts.Namespace,
			Labels:          opts.Labels,
			OwnerReferences: []metav1.OwnerReference{opts.Owner.toMeta()},
		},
		Spec: batchv1.JobSpec{
			BackoffLimit:            int32Ptr(0),
			TTLSecondsAfterFinished: int32Ptr(ttl),
			ActiveDeadlineSeconds:   &deadline,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: opts.Labels,
				},
				Spec: corev1.PodSpec{
					RestartPolicy:    corev1.RestartPolicyNever,
					ImagePullSecrets: imagePullSecrets,
					Volumes:          volumes,
					Containers: []corev1.Container{
						{
							Name:            "agent",
							Image:           opts.Image,
							ImagePullPolicy: corev1.PullIfNotPresent,
							Command:         []string{taskFilesMountPath + "/container.sh"},
							WorkingDir:      workspaceMountPath,
							Env:             opts.EnvVars,
							VolumeMounts:    volumeMounts,
						},
					},
				},
			},
		},
	}
}

// EphemeralWorkspace returns the docs-run workspace volume source: a scratch emptyDir.
func EphemeralWorkspace() corev1.VolumeSource {
	return corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}}
}

// PersistentWorkspace returns the code-run workspace volume source: the per-service PVC.
func PersistentWorkspace(claimName string) corev1.VolumeSource {
	return corev1.VolumeSource{
		PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{ClaimName: claimName},
	}
}
