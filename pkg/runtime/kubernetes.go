package runtime

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/resiliencelab/chaos-go/pkg/clients"
	"github.com/resiliencelab/chaos-go/pkg/log"
	appsv1 "k8s.io/api/apps/v1"
	apiv1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/remotecommand"
)

// RestartedAtAnnotation is the pod template annotation bumped to roll a deployment
const RestartedAtAnnotation = "kubectl.kubernetes.io/restartedAt"

// Kubernetes drives deployments through client-go. Handles are "namespace/deployment".
type Kubernetes struct {
	clients          clients.ClientSets
	defaultNamespace string

	mu       sync.Mutex
	replicas map[string]int32
}

// NewKubernetes returns a kubernetes runtime, refs without a namespace resolve in defaultNamespace
func NewKubernetes(clientSets clients.ClientSets, defaultNamespace string) *Kubernetes {
	if defaultNamespace == "" {
		defaultNamespace = "default"
	}
	return &Kubernetes{
		clients:          clientSets,
		defaultNamespace: defaultNamespace,
		replicas:         map[string]int32{},
	}
}

func splitHandle(handle string) (string, string, error) {
	parts := strings.SplitN(handle, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.Errorf("invalid handle %q, expected namespace/deployment", handle)
	}
	return parts[0], parts[1], nil
}

func (k *Kubernetes) deployment(ctx context.Context, handle string) (*appsv1.Deployment, error) {
	ns, name, err := splitHandle(handle)
	if err != nil {
		return nil, err
	}
	dep, err := k.clients.KubeClient.AppsV1().Deployments(ns).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to get %v deployment in %v namespace", name, ns)
	}
	return dep, nil
}

func (k *Kubernetes) pods(ctx context.Context, dep *appsv1.Deployment) ([]apiv1.Pod, error) {
	selector, err := metav1.LabelSelectorAsSelector(dep.Spec.Selector)
	if err != nil {
		return nil, errors.Errorf("invalid selector on %v deployment, err: %v", dep.Name, err)
	}
	podList, err := k.clients.KubeClient.CoreV1().Pods(dep.Namespace).List(ctx, metav1.ListOptions{LabelSelector: selector.String()})
	if err != nil {
		return nil, errors.Errorf("unable to list the pods of %v deployment, err: %v", dep.Name, err)
	}
	return podList.Items, nil
}

// Resolve checks the deployment exists and returns its namespace/name handle
func (k *Kubernetes) Resolve(ctx context.Context, ref string) (string, error) {
	handle := ref
	if !strings.Contains(ref, "/") {
		handle = k.defaultNamespace + "/" + ref
	}
	if _, err := k.deployment(ctx, handle); err != nil {
		return "", err
	}
	return handle, nil
}

// Kill deletes every pod of the deployment with a zero grace period
func (k *Kubernetes) Kill(ctx context.Context, handle string) error {
	dep, err := k.deployment(ctx, handle)
	if err != nil {
		return err
	}
	pods, err := k.pods(ctx, dep)
	if err != nil {
		return err
	}
	if len(pods) == 0 {
		return errors.Errorf("no pods found for %v deployment", dep.Name)
	}
	grace := int64(0)
	for _, pod := range pods {
		if err := k.clients.KubeClient.CoreV1().Pods(pod.Namespace).Delete(ctx, pod.Name, metav1.DeleteOptions{GracePeriodSeconds: &grace}); err != nil {
			return errors.Errorf("unable to delete %v pod, err: %v", pod.Name, err)
		}
		log.Infof("[Chaos]: Killed %v pod of %v deployment", pod.Name, dep.Name)
	}
	return nil
}

// Stop scales the deployment to zero and remembers its replica count
func (k *Kubernetes) Stop(ctx context.Context, handle string) error {
	dep, err := k.deployment(ctx, handle)
	if err != nil {
		return err
	}
	current := int32(1)
	if dep.Spec.Replicas != nil {
		current = *dep.Spec.Replicas
	}
	if current > 0 {
		k.mu.Lock()
		k.replicas[handle] = current
		k.mu.Unlock()
	}
	return k.scale(ctx, dep, 0)
}

// Start scales the deployment back to the replica count saved by Stop, one by default
func (k *Kubernetes) Start(ctx context.Context, handle string) error {
	dep, err := k.deployment(ctx, handle)
	if err != nil {
		return err
	}
	if dep.Spec.Replicas != nil && *dep.Spec.Replicas > 0 {
		return nil
	}
	k.mu.Lock()
	want, ok := k.replicas[handle]
	k.mu.Unlock()
	if !ok || want == 0 {
		want = 1
	}
	return k.scale(ctx, dep, want)
}

func (k *Kubernetes) scale(ctx context.Context, dep *appsv1.Deployment, replicas int32) error {
	dep.Spec.Replicas = &replicas
	if _, err := k.clients.KubeClient.AppsV1().Deployments(dep.Namespace).Update(ctx, dep, metav1.UpdateOptions{}); err != nil {
		return errors.Errorf("unable to scale %v deployment to %v, err: %v", dep.Name, replicas, err)
	}
	return nil
}

// Restart brings a stopped deployment back and rolls its pods
func (k *Kubernetes) Restart(ctx context.Context, handle string) error {
	if err := k.Start(ctx, handle); err != nil {
		return err
	}
	dep, err := k.deployment(ctx, handle)
	if err != nil {
		return err
	}
	if dep.Spec.Template.Annotations == nil {
		dep.Spec.Template.Annotations = map[string]string{}
	}
	dep.Spec.Template.Annotations[RestartedAtAnnotation] = time.Now().Format(time.RFC3339)
	if _, err := k.clients.KubeClient.AppsV1().Deployments(dep.Namespace).Update(ctx, dep, metav1.UpdateOptions{}); err != nil {
		return errors.Errorf("unable to restart %v deployment, err: %v", dep.Name, err)
	}
	return nil
}

// Exec function will run the provided command inside the first running pod of the deployment
func (k *Kubernetes) Exec(ctx context.Context, handle string, command []string) (string, error) {
	if k.clients.KubeConfig == nil {
		return "", errors.Errorf("exec into %v requires a kubeconfig", handle)
	}
	dep, err := k.deployment(ctx, handle)
	if err != nil {
		return "", err
	}
	pods, err := k.pods(ctx, dep)
	if err != nil {
		return "", err
	}
	pod, err := firstRunning(pods)
	if err != nil {
		return "", errors.Errorf("%v deployment: %v", dep.Name, err)
	}

	req := k.clients.KubeClient.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(pod.Name).
		Namespace(pod.Namespace).
		SubResource("exec")
	req.VersionedParams(&apiv1.PodExecOptions{
		Command:   command,
		Container: pod.Spec.Containers[0].Name,
		Stdin:     false,
		Stdout:    true,
		Stderr:    true,
		TTY:       false,
	}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(k.clients.KubeConfig, "POST", req.URL())
	if err != nil {
		return "", errors.Errorf("error while creating Executor: %v", err)
	}

	var out, errOut bytes.Buffer
	if err := executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdout: &out,
		Stderr: &errOut,
		Tty:    false,
	}); err != nil {
		return "", errors.Errorf("exec in %v pod failed, err: %v; error output: %v", pod.Name, err, strings.TrimSpace(errOut.String()))
	}
	return out.String(), nil
}

// firstRunning returns the first pod in running phase with at least one container
func firstRunning(pods []apiv1.Pod) (apiv1.Pod, error) {
	for _, pod := range pods {
		if strings.ToLower(string(pod.Status.Phase)) == "running" && len(pod.Spec.Containers) > 0 {
			return pod, nil
		}
	}
	return apiv1.Pod{}, errors.Errorf("no running pod available")
}
