package ddb

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"product-catalog/internal/catalog"
	"product-catalog/internal/repository"
	appErrors "product-catalog/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeClient records inputs and returns canned outputs.
type fakeClient struct {
	mu sync.Mutex

	getOut    *dynamodb.GetItemOutput
	updateOut *dynamodb.UpdateItemOutput
	scanPages []*dynamodb.ScanOutput
	err       error
	// updateErrs are returned by successive UpdateItem calls before updateOut.
	updateErrs []error

	getInputs    []*dynamodb.GetItemInput
	putInputs    []*dynamodb.PutItemInput
	updateInputs []*dynamodb.UpdateItemInput
	deleteInputs []*dynamodb.DeleteItemInput
	scanInputs   []*dynamodb.ScanInput
}

func (f *fakeClient) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getInputs = append(f.getInputs, in)
	if f.err != nil {
		return nil, f.err
	}
	if f.getOut == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return f.getOut, nil
}

func (f *fakeClient) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putInputs = append(f.putInputs, in)
	return &dynamodb.PutItemOutput{}, f.err
}

func (f *fakeClient) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateInputs = append(f.updateInputs, in)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.updateErrs) > 0 {
		err := f.updateErrs[0]
		f.updateErrs = f.updateErrs[1:]
		return nil, err
	}
	return f.updateOut, nil
}

func (f *fakeClient) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteInputs = append(f.deleteInputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeClient) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *in
	f.scanInputs = append(f.scanInputs, &copied)
	if f.err != nil {
		return nil, f.err
	}
	page := f.scanPages[0]
	f.scanPages = f.scanPages[1:]
	return page, nil
}

func (f *fakeClient) ListTables(context.Context, *dynamodb.ListTablesInput, ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	return &dynamodb.ListTablesOutput{}, f.err
}

func (f *fakeClient) DescribeTable(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{}, f.err
}

func newTestStore(client DBClient) *Store {
	cache := NewClientCache(func(context.Context, string) (DBClient, error) {
		return client, nil
	})
	return NewStore(cache, repository.Config{TableName: "products", Region: "us-east-1"}, zap.NewNop())
}

func mustItem(t *testing.T, p catalog.Product) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(p)
	require.NoError(t, err)
	return item
}

func TestStoreGet(t *testing.T) {
	ctx := context.Background()

	t.Run("Should unmarshal the stored item", func(t *testing.T) {
		client := &fakeClient{getOut: &dynamodb.GetItemOutput{
			Item: mustItem(t, catalog.Product{ProductID: "p1", ProductName: "Clock", Price: 9.5, CommentsCount: 3}),
		}}
		store := newTestStore(client)

		got, err := store.Get(ctx, "p1")

		require.NoError(t, err)
		assert.Equal(t, "Clock", got.ProductName)
		assert.Equal(t, 9.5, got.Price)
		assert.Equal(t, 3, got.CommentsCount)
		assert.Equal(t, "products", aws.ToString(client.getInputs[0].TableName))
	})

	t.Run("Should report a missing item as not found", func(t *testing.T) {
		store := newTestStore(&fakeClient{})

		_, err := store.Get(ctx, "missing")

		assert.True(t, appErrors.IsNotFound(err))
	})

	t.Run("Should classify throttling as a retryable backend error", func(t *testing.T) {
		store := newTestStore(&fakeClient{err: &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")}})

		_, err := store.Get(ctx, "p1")

		assert.Equal(t, appErrors.ErrorTypeBackend, appErrors.TypeOf(err))
		assert.True(t, appErrors.IsRetryable(err))
	})
}

func TestStoreUpdateRating(t *testing.T) {
	ctx := context.Background()

	t.Run("Should set rating and add the comment delta conditionally", func(t *testing.T) {
		client := &fakeClient{updateOut: &dynamodb.UpdateItemOutput{
			Attributes: mustItem(t, catalog.Product{ProductID: "p1", AverageRating: 3.2, CommentsCount: 6}),
		}}
		store := newTestStore(client)

		got, err := store.UpdateRating(ctx, "p1", catalog.RatingUpdate{AverageRating: 3.2, CommentsDelta: -1})

		require.NoError(t, err)
		assert.Equal(t, 3.2, got.AverageRating)
		assert.Equal(t, 6, got.CommentsCount)

		in := client.updateInputs[0]
		assert.Contains(t, aws.ToString(in.UpdateExpression), "SET")
		assert.Contains(t, aws.ToString(in.UpdateExpression), "ADD")
		assert.Contains(t, aws.ToString(in.ConditionExpression), "attribute_exists")
		assert.Contains(t, aws.ToString(in.ConditionExpression), ">=")
		assert.Equal(t, types.ReturnValueAllNew, in.ReturnValues)
		assert.Equal(t, types.ReturnValuesOnConditionCheckFailureAllOld, in.ReturnValuesOnConditionCheckFailure)
	})

	t.Run("Should not guard the counter on increments", func(t *testing.T) {
		client := &fakeClient{updateOut: &dynamodb.UpdateItemOutput{
			Attributes: mustItem(t, catalog.Product{ProductID: "p1", AverageRating: 4, CommentsCount: 1}),
		}}
		store := newTestStore(client)

		_, err := store.UpdateRating(ctx, "p1", catalog.RatingUpdate{AverageRating: 4, CommentsDelta: 1})

		require.NoError(t, err)
		assert.NotContains(t, aws.ToString(client.updateInputs[0].ConditionExpression), ">=")
	})

	t.Run("Should write only the rating when the counter is at zero", func(t *testing.T) {
		client := &fakeClient{
			updateErrs: []error{&types.ConditionalCheckFailedException{
				Message: aws.String("counter"),
				Item:    mustItem(t, catalog.Product{ProductID: "p1", AverageRating: 4, CommentsCount: 0}),
			}},
			updateOut: &dynamodb.UpdateItemOutput{
				Attributes: mustItem(t, catalog.Product{ProductID: "p1", AverageRating: 2.5, CommentsCount: 0}),
			},
		}
		store := newTestStore(client)

		got, err := store.UpdateRating(ctx, "p1", catalog.RatingUpdate{AverageRating: 2.5, CommentsDelta: -1})

		require.NoError(t, err)
		assert.Equal(t, 2.5, got.AverageRating)
		assert.Equal(t, 0, got.CommentsCount)
		require.Len(t, client.updateInputs, 2)
		retry := client.updateInputs[1]
		assert.NotContains(t, aws.ToString(retry.ConditionExpression), ">=")
		assert.Contains(t, aws.ToString(retry.ConditionExpression), "attribute_exists")
	})

	t.Run("Should report a missing record on a decrement as not found", func(t *testing.T) {
		client := &fakeClient{updateErrs: []error{&types.ConditionalCheckFailedException{Message: aws.String("missing")}}}
		store := newTestStore(client)

		_, err := store.UpdateRating(ctx, "p1", catalog.RatingUpdate{AverageRating: 1, CommentsDelta: -1})

		assert.True(t, appErrors.IsNotFound(err))
		assert.Len(t, client.updateInputs, 1)
	})

	t.Run("Should classify a rejected request as a non-retryable validation error", func(t *testing.T) {
		store := newTestStore(&fakeClient{err: &smithy.GenericAPIError{Code: "ValidationException", Message: "invalid number"}})

		_, err := store.UpdateRating(ctx, "p1", catalog.RatingUpdate{AverageRating: 1})

		assert.True(t, appErrors.IsValidation(err))
		assert.False(t, appErrors.IsRetryable(err))
	})

	t.Run("Should map a failed condition to not found", func(t *testing.T) {
		store := newTestStore(&fakeClient{err: &types.ConditionalCheckFailedException{Message: aws.String("nope")}})

		_, err := store.UpdateRating(ctx, "p1", catalog.RatingUpdate{AverageRating: 1})

		assert.True(t, appErrors.IsNotFound(err))
		assert.False(t, appErrors.IsRetryable(err))
	})
}

func TestStoreDelete(t *testing.T) {
	t.Run("Should map a failed condition to not found", func(t *testing.T) {
		store := newTestStore(&fakeClient{err: &types.ConditionalCheckFailedException{}})

		err := store.Delete(context.Background(), "p1")

		assert.True(t, appErrors.IsNotFound(err))
	})

	t.Run("Should delete with an existence condition", func(t *testing.T) {
		client := &fakeClient{}
		store := newTestStore(client)

		require.NoError(t, store.Delete(context.Background(), "p1"))
		assert.Contains(t, aws.ToString(client.deleteInputs[0].ConditionExpression), "attribute_exists")
	})
}

func TestStorePut(t *testing.T) {
	client := &fakeClient{}
	store := newTestStore(client)

	require.NoError(t, store.Put(context.Background(), catalog.Product{ProductID: "p1", ProductName: "Clock", Price: 4}))

	item := client.putInputs[0].Item
	assert.Equal(t, &types.AttributeValueMemberS{Value: "p1"}, item[catalog.AttrProductID])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "4"}, item[catalog.AttrPrice])
}

func TestStoreScan(t *testing.T) {
	ctx := context.Background()

	t.Run("Should follow LastEvaluatedKey until exhausted", func(t *testing.T) {
		lastKey := map[string]types.AttributeValue{catalog.AttrProductID: &types.AttributeValueMemberS{Value: "p2"}}
		client := &fakeClient{scanPages: []*dynamodb.ScanOutput{
			{
				Items: []map[string]types.AttributeValue{
					mustItem(t, catalog.Product{ProductID: "p1", ProductName: "Wall Clock"}),
					mustItem(t, catalog.Product{ProductID: "p2", ProductName: "Desk Lamp"}),
				},
				LastEvaluatedKey: lastKey,
			},
			{
				Items: []map[string]types.AttributeValue{
					mustItem(t, catalog.Product{ProductID: "p3", ProductName: "alarm clock"}),
				},
			},
		}}
		store := newTestStore(client)

		got, err := store.Scan(ctx, catalog.Filter{})

		require.NoError(t, err)
		assert.Len(t, got, 3)
		require.Len(t, client.scanInputs, 2)
		assert.Nil(t, client.scanInputs[0].ExclusiveStartKey)
		assert.Equal(t, lastKey, client.scanInputs[1].ExclusiveStartKey)
		assert.Nil(t, client.scanInputs[0].FilterExpression)
	})

	t.Run("Should push canonical predicates into the filter expression", func(t *testing.T) {
		client := &fakeClient{scanPages: []*dynamodb.ScanOutput{{}}}
		store := newTestStore(client)

		_, err := store.Scan(ctx, catalog.BuildFilter("wall clock", "Home", catalog.MatchCanonical))

		require.NoError(t, err)
		in := client.scanInputs[0]
		filter := aws.ToString(in.FilterExpression)
		assert.Equal(t, 2, strings.Count(filter, "contains"))
		assert.Contains(t, filter, "AND")

		var values []string
		for _, v := range in.ExpressionAttributeValues {
			if s, ok := v.(*types.AttributeValueMemberS); ok {
				values = append(values, s.Value)
			}
		}
		assert.ElementsMatch(t, []string{"Wall", "Clock", "Home"}, values)
	})

	t.Run("Should apply case-insensitive tokens to the scanned items", func(t *testing.T) {
		client := &fakeClient{scanPages: []*dynamodb.ScanOutput{{
			Items: []map[string]types.AttributeValue{
				mustItem(t, catalog.Product{ProductID: "p1", ProductName: "Wall Clock", CategoryName: "Home"}),
				mustItem(t, catalog.Product{ProductID: "p2", ProductName: "ALARM CLOCK", CategoryName: "Home"}),
				mustItem(t, catalog.Product{ProductID: "p3", ProductName: "Desk Lamp", CategoryName: "Home"}),
			},
		}}}
		store := newTestStore(client)

		got, err := store.Scan(ctx, catalog.BuildFilter("clock", "Home", catalog.MatchCaseInsensitive))

		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "p1", got[0].ProductID)
		assert.Equal(t, "p2", got[1].ProductID)
		assert.NotContains(t, aws.ToString(client.scanInputs[0].FilterExpression), "contains")
	})

	t.Run("Should return an empty slice for an empty table", func(t *testing.T) {
		store := newTestStore(&fakeClient{scanPages: []*dynamodb.ScanOutput{{}}})

		got, err := store.Scan(ctx, catalog.Filter{})

		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestClientCache(t *testing.T) {
	var built []string
	cache := NewClientCache(func(_ context.Context, region string) (DBClient, error) {
		built = append(built, region)
		return &fakeClient{}, nil
	})
	ctx := context.Background()

	first, err := cache.Client(ctx, "us-east-1")
	require.NoError(t, err)
	second, err := cache.Client(ctx, "us-east-1")
	require.NoError(t, err)
	assert.Same(t, first, second)

	third, err := cache.Client(ctx, "eu-west-1")
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, []string{"us-east-1", "eu-west-1"}, built)
}

func TestClientCacheFactoryError(t *testing.T) {
	cache := NewClientCache(func(context.Context, string) (DBClient, error) {
		return nil, errors.New("no credentials")
	})
	store := NewStore(cache, repository.Config{TableName: "products", Region: "us-east-1"}, nil)

	_, err := store.Get(context.Background(), "p1")

	assert.Equal(t, appErrors.ErrorTypeBackend, appErrors.TypeOf(err))
}

func TestStoreReconfigure(t *testing.T) {
	client := &fakeClient{}
	store := newTestStore(client)

	store.Reconfigure("eu-west-1", "products-v2")
	_, _ = store.Get(context.Background(), "p1")

	region, _ := store.Target()
	assert.Equal(t, "eu-west-1", region)
	assert.Equal(t, "products-v2", aws.ToString(client.getInputs[0].TableName))
}
