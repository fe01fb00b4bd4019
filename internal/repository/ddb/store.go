// Package ddb implements the repository interface using AWS DynamoDB.
// This is the only layer that should have knowledge of DynamoDB specifics.
package ddb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"product-catalog/internal/catalog"
	"product-catalog/internal/repository"
	appErrors "product-catalog/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// Store is the DynamoDB ProductStore. The region and table can be swapped at
// runtime; every call resolves the client through the shared ClientCache.
type Store struct {
	cache  *ClientCache
	logger *zap.Logger

	mu     sync.RWMutex
	region string
	table  string
}

var _ repository.ProductStore = (*Store)(nil)

// NewStore creates a store for the configured table.
func NewStore(cache *ClientCache, cfg repository.Config, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		cache:  cache,
		logger: logger,
		region: cfg.Region,
		table:  cfg.TableName,
	}
}

// Reconfigure points the store at a new region and table. The client is rebuilt
// lazily on the next call if the region changed.
func (s *Store) Reconfigure(region, table string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if region != "" {
		s.region = region
	}
	if table != "" {
		s.table = table
	}
	s.logger.Info("store reconfigured", zap.String("region", s.region), zap.String("table", s.table))
}

// Target returns the current region and table.
func (s *Store) Target() (region, table string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.region, s.table
}

// Client returns the cached client for the current region.
func (s *Store) Client(ctx context.Context) (DBClient, error) {
	region, _ := s.Target()
	client, err := s.cache.Client(ctx, region)
	if err != nil {
		return nil, appErrors.Backend("failed to build DynamoDB client", err)
	}
	return client, nil
}

func (s *Store) resolve(ctx context.Context) (DBClient, string, error) {
	client, err := s.Client(ctx)
	if err != nil {
		return nil, "", err
	}
	_, table := s.Target()
	return client, table, nil
}

func productKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		catalog.AttrProductID: &types.AttributeValueMemberS{Value: id},
	}
}

// Get fetches one record by key.
func (s *Store) Get(ctx context.Context, id string) (catalog.Product, error) {
	client, table, err := s.resolve(ctx)
	if err != nil {
		return catalog.Product{}, err
	}

	result, err := client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       productKey(id),
	})
	if err != nil {
		return catalog.Product{}, classify("GetItem", id, err)
	}
	if result.Item == nil {
		return catalog.Product{}, appErrors.NotFound(fmt.Sprintf("product %s not found", id))
	}

	var product catalog.Product
	if err := attributevalue.UnmarshalMap(result.Item, &product); err != nil {
		return catalog.Product{}, appErrors.Backend("failed to unmarshal product item", err)
	}
	return product, nil
}

// Put writes the full record.
func (s *Store) Put(ctx context.Context, product catalog.Product) error {
	client, table, err := s.resolve(ctx)
	if err != nil {
		return err
	}

	item, err := attributevalue.MarshalMap(product)
	if err != nil {
		return appErrors.Validation("failed to marshal product item", err)
	}
	_, err = client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	})
	return classify("PutItem", product.ProductID, err)
}

// UpdateRating sets the rating and adds the comment delta, conditional on existence.
func (s *Store) UpdateRating(ctx context.Context, id string, update catalog.RatingUpdate) (catalog.Product, error) {
	client, table, err := s.resolve(ctx)
	if err != nil {
		return catalog.Product{}, err
	}

	attrs, err := updateRating(ctx, client, table, id, update)
	var floor *types.ConditionalCheckFailedException
	if update.CommentsDelta < 0 && errors.As(err, &floor) && len(floor.Item) > 0 {
		// The record exists and its counter is already at zero.
		s.logger.Debug("comment counter at zero, writing rating only", zap.String("productId", id))
		attrs, err = updateRating(ctx, client, table, id, catalog.RatingUpdate{AverageRating: update.AverageRating})
	}
	if err != nil {
		return catalog.Product{}, classify("UpdateItem", id, err)
	}

	var product catalog.Product
	if err := attributevalue.UnmarshalMap(attrs, &product); err != nil {
		return catalog.Product{}, appErrors.Backend("failed to unmarshal updated item", err)
	}
	return product, nil
}

// updateRating issues one conditional UpdateItem. Decrements also require the
// counter to stay non-negative; a failed condition returns the old item.
func updateRating(ctx context.Context, client DBClient, table, id string, update catalog.RatingUpdate) (map[string]types.AttributeValue, error) {
	upd := expression.
		Set(expression.Name(catalog.AttrAverageRating), expression.Value(update.AverageRating)).
		Add(expression.Name(catalog.AttrCommentsCount), expression.Value(update.CommentsDelta))
	cond := expression.AttributeExists(expression.Name(catalog.AttrProductID))
	if update.CommentsDelta < 0 {
		cond = cond.And(expression.Name(catalog.AttrCommentsCount).GreaterThanEqual(expression.Value(-update.CommentsDelta)))
	}
	expr, err := expression.NewBuilder().WithUpdate(upd).WithCondition(cond).Build()
	if err != nil {
		return nil, appErrors.Backend("failed to build update expression", err)
	}

	result, err := client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(table),
		Key:                                 productKey(id),
		UpdateExpression:                    expr.Update(),
		ConditionExpression:                 expr.Condition(),
		ExpressionAttributeNames:            expr.Names(),
		ExpressionAttributeValues:           expr.Values(),
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		return nil, err
	}
	return result.Attributes, nil
}

// Delete removes the record, conditional on existence.
func (s *Store) Delete(ctx context.Context, id string) error {
	client, table, err := s.resolve(ctx)
	if err != nil {
		return err
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeExists(expression.Name(catalog.AttrProductID))).
		Build()
	if err != nil {
		return appErrors.Backend("failed to build delete condition", err)
	}

	_, err = client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(table),
		Key:                      productKey(id),
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	return classify("DeleteItem", id, err)
}

// Scan reads the whole table page by page, following LastEvaluatedKey until the
// scan is exhausted. Predicates DynamoDB can evaluate are pushed into the filter
// expression; the rest are applied to the returned items.
func (s *Store) Scan(ctx context.Context, filter catalog.Filter) ([]catalog.Product, error) {
	client, table, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}

	input := &dynamodb.ScanInput{TableName: aws.String(table)}
	if cond, ok := filterCondition(filter.StorePredicates()); ok {
		expr, err := expression.NewBuilder().WithFilter(cond).Build()
		if err != nil {
			return nil, appErrors.Backend("failed to build scan filter", err)
		}
		input.FilterExpression = expr.Filter()
		input.ExpressionAttributeNames = expr.Names()
		input.ExpressionAttributeValues = expr.Values()
	}

	var products []catalog.Product
	pages := 0
	paginator := dynamodb.NewScanPaginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("Scan", "", err)
		}
		pages++

		var batch []catalog.Product
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, appErrors.Backend("failed to unmarshal scan page", err)
		}
		products = append(products, batch...)
	}

	s.logger.Debug("scan completed",
		zap.String("table", table),
		zap.Int("pages", pages),
		zap.Int("items", len(products)),
	)

	if filter.NeedsClientSide() {
		products = filter.Select(products)
	}
	if products == nil {
		products = []catalog.Product{}
	}
	return products, nil
}

// filterCondition ANDs the predicates into one condition.
func filterCondition(preds []catalog.Predicate) (expression.ConditionBuilder, bool) {
	if len(preds) == 0 {
		return expression.ConditionBuilder{}, false
	}
	conds := make([]expression.ConditionBuilder, len(preds))
	for i, p := range preds {
		switch p.Kind {
		case catalog.PredicateContains:
			conds[i] = expression.Contains(expression.Name(p.Attr), p.Value)
		default:
			conds[i] = expression.Name(p.Attr).Equal(expression.Value(p.Value))
		}
	}
	if len(conds) == 1 {
		return conds[0], true
	}
	return expression.And(conds[0], conds[1], conds[2:]...), true
}
