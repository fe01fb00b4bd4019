package ddb

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// DBClient is the subset of the DynamoDB API used by the store and the readiness check.
type DBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

var _ DBClient = (*dynamodb.Client)(nil)

// ClientFactory builds a client for a region.
type ClientFactory func(ctx context.Context, region string) (DBClient, error)

// NewAWSClientFactory returns a factory backed by the default AWS credential chain.
// A non-empty endpoint overrides the service endpoint, e.g. for DynamoDB Local.
func NewAWSClientFactory(endpoint string) ClientFactory {
	return func(ctx context.Context, region string) (DBClient, error) {
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}), nil
	}
}

// ClientCache holds one client and rebuilds it only when the requested region
// differs from the cached one. Check and rebuild happen under one lock, so
// concurrent callers never build two clients for the same region.
type ClientCache struct {
	factory ClientFactory

	mu     sync.Mutex
	region string
	client DBClient
}

// NewClientCache creates an empty cache.
func NewClientCache(factory ClientFactory) *ClientCache {
	return &ClientCache{factory: factory}
}

// Client returns the client for region, building it on first use or after a region change.
func (c *ClientCache) Client(ctx context.Context, region string) (DBClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil && c.region == region {
		return c.client, nil
	}
	client, err := c.factory(ctx, region)
	if err != nil {
		return nil, err
	}
	c.client = client
	c.region = region
	return client, nil
}
