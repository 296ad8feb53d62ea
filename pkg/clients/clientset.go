package clients

import (
	"github.com/pkg/errors"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// ClientSets is a collection of clientSets and kubeConfig needed
type ClientSets struct {
	KubeClient kubernetes.Interface
	KubeConfig *rest.Config
}

// GenerateClientSetFromKubeConfig will generate the k8s ClientSet as well as the KubeConfig.
// It uses in-cluster config, if kubeconfig path is not specified
func (clientSets *ClientSets) GenerateClientSetFromKubeConfig(kubeconfig string) error {

	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return errors.Wrapf(err, "unable to build the kubeconfig from '%s'", kubeconfig)
	}
	k8sClientSet, err := generateK8sClientSet(config)
	if err != nil {
		return err
	}
	clientSets.KubeClient = k8sClientSet
	clientSets.KubeConfig = config
	return nil
}

// generateK8sClientSet will generation k8s client
func generateK8sClientSet(config *rest.Config) (*kubernetes.Clientset, error) {
	k8sClientSet, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, errors.Wrapf(err, "Unable to generate kubernetes clientSet, err: %v: ", err)
	}
	return k8sClientSet, nil
}
