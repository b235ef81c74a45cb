// Copyright Contributors to the Orchestrator project

package builder

import (
	"fmt"

	corev1 "k8s.io/api/core/v1"

	agentsv1 "github.com/agents-platform/orchestrator/api/v1"
)

const (
	sshVolumeName  = "github-ssh"
	sshMountPath   = "/workspace/.ssh/id_ed25519"
	sshSecretKey   = "ssh-privatekey"
	githubAppIDEnv = "GITHUB_APP_ID"
	githubAppKeyEnv = "GITHUB_APP_PRIVATE_KEY"
)

// ErrMissingAuthPrincipal is returned by ResolveAuth when codeRunRequired is true and no GitHub
// App identity was supplied, whether or not a GitHub user identity was.
var ErrMissingAuthPrincipal = fmt.Errorf("no GitHub App identity configured: code runs require a githubApp")

// AuthProjection is the resolved set of env vars and volumes an authentication principal
// contributes to the agent container.
type AuthProjection struct {
	EnvVars      []corev1.EnvVar
	Volumes      []corev1.Volume
	VolumeMounts []corev1.VolumeMount
}

// ResolveAuth projects principal into environment variables and, for a user identity, an SSH
// key volume. Application identity is preferred when both are set. codeRunRequired enforces
// that an application identity is mandatory for code runs.
func ResolveAuth(principal agentsv1.AuthPrincipal, codeRunRequired bool) (AuthProjection, error) {
	if codeRunRequired && !principal.HasApp() {
		return AuthProjection{}, ErrMissingAuthPrincipal
	}
	if principal.Empty() {
		return AuthProjection{}, fmt.Errorf("no authentication principal configured")
	}

	var proj AuthProjection

	if principal.HasApp() {
		secretName := GithubAppSecretName(principal.GithubApp)
		proj.EnvVars = append(proj.EnvVars,
			corev1.EnvVar{
				Name: githubAppIDEnv,
				ValueFrom: &corev1.EnvVarSource{
					SecretKeyRef: &corev1.SecretKeySelector{
						LocalObjectReference: corev1.LocalObjectReference{Name: secretName},
						Key:                  "app-id",
					},
				},
			},
			corev1.EnvVar{
				Name: githubAppKeyEnv,
				ValueFrom: &corev1.EnvVarSource{
					SecretKeyRef: &corev1.SecretKeySelector{
						LocalObjectReference: corev1.LocalObjectReference{Name: secretName},
						Key:                  "private-key",
					},
				},
			},
		)
		return proj, nil
	}

	// User identity: mount the SSH private key read-only at the well-known path.
	secretName := GithubSSHSecretName(principal.GithubUser)
	var readOnlyMode int32 = 0o400
	proj.Volumes = append(proj.Volumes, corev1.Volume{
		Name: sshVolumeName,
		VolumeSource: corev1.VolumeSource{
			Secret: &corev1.SecretVolumeSource{
				SecretName: secretName,
				Items: []corev1.KeyToPath{
					{Key: sshSecretKey, Path: "id_ed25519", Mode: &readOnlyMode},
				},
			},
		},
	})
	proj.VolumeMounts = append(proj.VolumeMounts, corev1.VolumeMount{
		Name:      sshVolumeName,
		MountPath: sshMountPath,
		SubPath:   "id_ed25519",
		ReadOnly:  true,
	})

	return proj, nil
}

// APIKeyEnvVar projects the configured agent API key secret into the container environment.
func APIKeyEnvVar(envName, secretName, secretKey string) corev1.EnvVar {
	return corev1.EnvVar{
		Name: envName,
		ValueFrom: &corev1.EnvVarSource{
			SecretKeyRef: &corev1.SecretKeySelector{
				LocalObjectReference: corev1.LocalObjectReference{Name: secretName},
				Key:                  secretKey,
			},
		},
	}
}
