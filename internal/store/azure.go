package store

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"pcc-go/internal/pcc"
)

// AzureStore is an Azure Blob Storage implementation of the BlobStore
// interface. Logical keys map to blob names under an optional prefix within
// one container.
type AzureStore struct {
	name      string
	client    *azblob.Client
	container string
	prefix    string
}

// AzureOptions configures an AzureStore. Either ConnectionString or
// AccountURL must be set; with AccountURL, the default Azure credential chain
// (environment, workload identity, managed identity, CLI) is used.
type AzureOptions struct {
	Container        string
	Prefix           string
	ConnectionString string
	AccountURL       string // e.g. https://<account>.blob.core.windows.net/
}

// NewAzureStore creates a new Azure-backed store.
func NewAzureStore(name string, opts AzureOptions) (*AzureStore, error) {
	if opts.Container == "" {
		return nil, fmt.Errorf("azure store requires a container")
	}

	var client *azblob.Client
	var err error
	switch {
	case opts.ConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(opts.ConnectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("creating client from connection string: %w", err)
		}
	case opts.AccountURL != "":
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("creating azure credential: %w", err)
		}
		client, err = azblob.NewClient(opts.AccountURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("creating azure client: %w", err)
		}
	default:
		return nil, fmt.Errorf("azure store requires a connection string or account URL")
	}

	return &AzureStore{
		name:      name,
		client:    client,
		container: opts.Container,
		prefix:    strings.TrimSuffix(opts.Prefix, "/"),
	}, nil
}

func (s *AzureStore) blobName(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

// Put stores a blob under key. Azure block blob commits are atomic, so a
// reader never observes a partial blob.
func (s *AzureStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	_, err := s.client.UploadStream(ctx, s.container, s.blobName(key), r, nil)
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	return nil
}

// Get retrieves the blob at key and writes it to w.
func (s *AzureStore) Get(ctx context.Context, key string, w io.Writer) error {
	resp, err := s.client.DownloadStream(ctx, s.container, s.blobName(key), nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return fmt.Errorf("blob %s: %w", key, pcc.ErrNotFound)
		}
		return fmt.Errorf("fetching %s: %w", key, err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}
	return nil
}

// Exists reports whether a blob exists at key.
func (s *AzureStore) Exists(ctx context.Context, key string) (bool, error) {
	blobClient := s.client.ServiceClient().
		NewContainerClient(s.container).
		NewBlobClient(s.blobName(key))

	_, err := blobClient.GetProperties(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("checking %s: %w", key, err)
	}
	return true, nil
}

// List returns all keys with the given prefix.
func (s *AzureStore) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := s.blobName(prefix)
	pager := s.client.NewListBlobsFlatPager(s.container, &container.ListBlobsFlatOptions{
		Prefix: &fullPrefix,
	})

	var keys []string
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", prefix, err)
		}
		for _, blob := range page.Segment.BlobItems {
			if blob.Name == nil {
				continue
			}
			key := *blob.Name
			if s.prefix != "" {
				key = strings.TrimPrefix(key, s.prefix+"/")
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// ValidateSetup verifies that the container is accessible.
func (s *AzureStore) ValidateSetup(ctx context.Context) error {
	_, err := s.client.ServiceClient().
		NewContainerClient(s.container).
		GetProperties(ctx, nil)
	if err != nil {
		return fmt.Errorf("container %s not accessible: %w", s.container, err)
	}
	return nil
}

// Compile-time check that AzureStore implements pcc.BlobStore.
var _ pcc.BlobStore = (*AzureStore)(nil)
