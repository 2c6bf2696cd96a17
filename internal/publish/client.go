package publish

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/objectstorage"
	"golang.org/x/net/http2"

	"github.com/signalnine/benchshard/internal/config"
)

// ObjectStore is the subset of the OCI Object Storage client used for uploads.
type ObjectStore interface {
	GetNamespace(ctx context.Context, request objectstorage.GetNamespaceRequest) (objectstorage.GetNamespaceResponse, error)
	PutObject(ctx context.Context, request objectstorage.PutObjectRequest) (objectstorage.PutObjectResponse, error)
}

// NewClient builds an Object Storage client from an OCI config file profile.
func NewClient(cfg config.Publish) (ObjectStore, error) {
	provider, err := common.ConfigurationProviderFromFile(cfg.OCIConfigFile, cfg.Profile)
	if err != nil {
		return nil, fmt.Errorf("loading OCI config %s: %w", cfg.OCIConfigFile, err)
	}
	client, err := objectstorage.NewObjectStorageClientWithConfigurationProvider(provider)
	if err != nil {
		return nil, fmt.Errorf("creating object storage client: %w", err)
	}
	httpClient, err := newHTTPClient()
	if err != nil {
		return nil, err
	}
	client.HTTPClient = httpClient
	if cfg.Host != "" {
		client.Host = cfg.Host
	}
	return client, nil
}

func newHTTPClient() (*http.Client, error) {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("configuring HTTP/2: %w", err)
	}
	return &http.Client{Transport: transport, Timeout: 120 * time.Second}, nil
}
