package rollout

import "fmt"

// DefaultManagementBaseURL is the Service Management control plane endpoint.
const DefaultManagementBaseURL = "https://servicemanagement.googleapis.com"

// RolloutsURL is the list URL for a service's rollouts, newest first,
// filtered to completed ones. The filter is advisory on the server side.
func RolloutsURL(base, serviceName string) string {
	return fmt.Sprintf("%s/v1/services/%s/rollouts?filter=status=SUCCESS", base, serviceName)
}

// ConfigURL is the download URL for one service-config document.
func ConfigURL(base, serviceName, configID string) string {
	return fmt.Sprintf("%s/v1/services/%s/configs/%s", base, serviceName, configID)
}
