package awsutil

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"

	"github.com/voicescribe/backend/libs/errors"
)

const (
	tableStatusActive   = "ACTIVE"
	tableCreateTimeout  = time.Minute * 2
	tableStatusInterval = time.Second
)

// DynamoDBTableClient is the subset of the DynamoDB API needed to create and
// inspect tables.
type DynamoDBTableClient interface {
	CreateTableWithContext(aws.Context, *dynamodb.CreateTableInput, ...request.Option) (*dynamodb.CreateTableOutput, error)
	DescribeTableWithContext(aws.Context, *dynamodb.DescribeTableInput, ...request.Option) (*dynamodb.DescribeTableOutput, error)
}

// CreateDynamoDBTable creates the described table if it does not already
// exist and waits for it to become active.
func CreateDynamoDBTable(ctx context.Context, db DynamoDBTableClient, input *dynamodb.CreateTableInput) error {
	if _, err := db.CreateTableWithContext(ctx, input); err != nil {
		if e, ok := err.(awserr.Error); !ok || e.Code() != dynamodb.ErrCodeResourceInUseException {
			return errors.Trace(err)
		}
	}
	deadline := time.Now().Add(tableCreateTimeout)
	for {
		res, err := db.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{
			TableName: input.TableName,
		})
		if err != nil {
			return errors.Trace(err)
		}
		if res.Table != nil && res.Table.TableStatus != nil && *res.Table.TableStatus == tableStatusActive {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Errorf("awsutil: table %s never became active", *input.TableName)
		}
		select {
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		case <-time.After(tableStatusInterval):
		}
	}
}
