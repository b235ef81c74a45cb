// Copyright Contributors to the Orchestrator project

package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	runtime "k8s.io/apimachinery/pkg/runtime"
)

// DeepCopyInto copies all properties into a new RunStatus.
func (in *RunStatus) DeepCopyInto(out *RunStatus) {
	*out = *in
	if in.LastUpdate != nil {
		t := in.LastUpdate.DeepCopy()
		out.LastUpdate = &t
	}
	if in.Conditions != nil {
		out.Conditions = make([]metav1.Condition, len(in.Conditions))
		copy(out.Conditions, in.Conditions)
	}
}

func (in *DocsRunSpec) DeepCopyInto(out *DocsRunSpec) {
	*out = *in
}

func (in *DocsRunStatus) DeepCopyInto(out *DocsRunStatus) {
	in.RunStatus.DeepCopyInto(&out.RunStatus)
}

// DeepCopyInto copies the receiver into out.
func (in *DocsRun) DeepCopyInto(out *DocsRun) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	out.Spec = in.Spec
	in.Status.DeepCopyInto(&out.Status)
}

// DeepCopy creates a new DocsRun as a deep copy of the receiver.
func (in *DocsRun) DeepCopy() *DocsRun {
	if in == nil {
		return nil
	}
	out := new(DocsRun)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject implements runtime.Object.
func (in *DocsRun) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

func (in *DocsRunList) DeepCopyInto(out *DocsRunList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]DocsRun, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

func (in *DocsRunList) DeepCopy() *DocsRunList {
	if in == nil {
		return nil
	}
	out := new(DocsRunList)
	in.DeepCopyInto(out)
	return out
}

func (in *DocsRunList) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

func (in *CodeRunSpec) DeepCopyInto(out *CodeRunSpec) {
	*out = *in
	if in.Env != nil {
		out.Env = make(map[string]string, len(in.Env))
		for k, v := range in.Env {
			out.Env[k] = v
		}
	}
	if in.EnvFromSecrets != nil {
		out.EnvFromSecrets = make([]EnvFromSecret, len(in.EnvFromSecrets))
		copy(out.EnvFromSecrets, in.EnvFromSecrets)
	}
}

func (in *CodeRunStatus) DeepCopyInto(out *CodeRunStatus) {
	*out = *in
	in.RunStatus.DeepCopyInto(&out.RunStatus)
}

// DeepCopyInto copies the receiver into out.
func (in *CodeRun) DeepCopyInto(out *CodeRun) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	in.Spec.DeepCopyInto(&out.Spec)
	in.Status.DeepCopyInto(&out.Status)
}

// DeepCopy creates a new CodeRun as a deep copy of the receiver.
func (in *CodeRun) DeepCopy() *CodeRun {
	if in == nil {
		return nil
	}
	out := new(CodeRun)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject implements runtime.Object.
func (in *CodeRun) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

func (in *CodeRunList) DeepCopyInto(out *CodeRunList) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ListMeta.DeepCopyInto(&out.ListMeta)
	if in.Items != nil {
		out.Items = make([]CodeRun, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

func (in *CodeRunList) DeepCopy() *CodeRunList {
	if in == nil {
		return nil
	}
	out := new(CodeRunList)
	in.DeepCopyInto(out)
	return out
}

func (in *CodeRunList) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}
