package health

import (
	"context"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TablesAPI is the part of the DynamoDB client the table check needs.
type TablesAPI interface {
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// TablesCheck verifies that every required table exists, is active and, when
// provisioned, has at least one read and one write capacity unit.
type TablesCheck struct {
	client func(ctx context.Context) (TablesAPI, error)
	tables func() []string
}

// NewTablesCheck creates the DynamoDB table check. Both sources are resolved
// on every run so configuration reloads are picked up.
func NewTablesCheck(client func(ctx context.Context) (TablesAPI, error), tables func() []string) *TablesCheck {
	return &TablesCheck{client: client, tables: tables}
}

// Name implements Check.
func (c *TablesCheck) Name() string { return "dynamodb" }

// Check implements Check.
func (c *TablesCheck) Check(ctx context.Context) error {
	client, err := c.client(ctx)
	if err != nil {
		return fmt.Errorf("dynamodb client: %w", err)
	}

	var existing []string
	paginator := dynamodb.NewListTablesPaginator(client, &dynamodb.ListTablesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list tables: %w", err)
		}
		existing = append(existing, page.TableNames...)
	}

	for _, table := range c.tables() {
		if !slices.Contains(existing, table) {
			return fmt.Errorf("table %s does not exist", table)
		}
		out, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
		if err != nil {
			return fmt.Errorf("describe table %s: %w", table, err)
		}
		if err := checkDescription(table, out.Table); err != nil {
			return err
		}
	}
	return nil
}

func checkDescription(table string, desc *types.TableDescription) error {
	if desc == nil {
		return fmt.Errorf("table %s has no description", table)
	}
	if desc.TableStatus != types.TableStatusActive {
		return fmt.Errorf("table %s is %s", table, desc.TableStatus)
	}
	if desc.BillingModeSummary != nil && desc.BillingModeSummary.BillingMode == types.BillingModePayPerRequest {
		return nil
	}
	if tp := desc.ProvisionedThroughput; tp != nil {
		if aws.ToInt64(tp.ReadCapacityUnits) < 1 || aws.ToInt64(tp.WriteCapacityUnits) < 1 {
			return fmt.Errorf("table %s has insufficient read/write capacity", table)
		}
	}
	return nil
}
