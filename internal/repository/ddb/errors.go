package ddb

import (
	"context"
	"errors"
	"fmt"

	appErrors "product-catalog/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// classify converts a DynamoDB SDK error into the catalog error taxonomy.
// A failed existence condition is not found and a rejected request is a
// validation error. Everything else is a backend failure.
func classify(op, id string, err error) error {
	if err == nil {
		return nil
	}

	var conditionFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		return appErrors.NotFound(fmt.Sprintf("product %s not found", id)).WithOperation(op)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return appErrors.Timeout(op+" timed out", err).WithOperation(op)
	}

	var (
		throughput *types.ProvisionedThroughputExceededException
		limit      *types.RequestLimitExceeded
		internal   *types.InternalServerError
		missing    *types.ResourceNotFoundException
	)
	switch {
	case errors.As(err, &throughput), errors.As(err, &limit):
		return appErrors.Backend(op+" throttled", err).WithOperation(op)
	case errors.As(err, &internal):
		return appErrors.Backend(op+" failed with an internal store error", err).WithOperation(op)
	case errors.As(err, &missing):
		return appErrors.Backend(op+" failed: table not found", err).WithOperation(op)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorCode() == "ValidationException" {
			return appErrors.Validation(fmt.Sprintf("%s rejected: %s", op, apiErr.ErrorMessage()), err).WithOperation(op)
		}
		return appErrors.Backend(fmt.Sprintf("%s failed: %s", op, apiErr.ErrorCode()), err).WithOperation(op)
	}
	return appErrors.Backend(op+" failed", err).WithOperation(op)
}
