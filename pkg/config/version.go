package config

const (
	// APIVersion is the Kubernetes-style API version of gateway manifests.
	APIVersion = "mediagateway.io/v1alpha1"

	// KindBridgeConfig is the manifest kind.
	KindBridgeConfig = "BridgeConfig"
)
