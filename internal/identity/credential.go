// Package identity supplies the Azure credential used by the query and
// storage clients. The rest of the service treats it as an opaque
// dependency injected at startup.
package identity

import (
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// NewCredential builds the default credential chain: environment, workload
// identity, managed identity, then developer tooling.
func NewCredential() (azcore.TokenCredential, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("building azure credential: %w", err)
	}
	return cred, nil
}
