package dal

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"

	"github.com/voicescribe/backend/libs/awsutil"
	"github.com/voicescribe/backend/libs/errors"
	"github.com/voicescribe/backend/libs/ptr"
)

const (
	tableNameFormatString = "%s_scribe_job"

	// AN represents "Attribute Name"
	ownerIDAN     = "owner_id"
	fingerprintAN = "content_fingerprint"
	createdAtAN   = "created_at"
	dataAN        = "data"
)

var (
	// owner_created is the GSI used to list an owner's records by creation
	// time
	ownerCreatedIndexName = ptr.String("owner_created")
	// A false ScanIndexForward returns descending (newest first) order
	listScanIndexForward = ptr.Bool(false)
	// Limit list queries to 100 records
	listLimit = ptr.Int64(100)
	// KCE represents a KeyConditionExpression
	ownerEqualsOwnerKCE = ptr.String("owner_id = :owner_id")
	// CE represents a ConditionExpression; records are write-once
	recordAbsentCE = ptr.String("attribute_not_exists(owner_id)")
)

// kvs is the subset of the DynamoDB API the DAL needs.
type kvs interface {
	awsutil.DynamoDBTableClient
	GetItemWithContext(aws.Context, *dynamodb.GetItemInput, ...request.Option) (*dynamodb.GetItemOutput, error)
	PutItemWithContext(aws.Context, *dynamodb.PutItemInput, ...request.Option) (*dynamodb.PutItemOutput, error)
	QueryWithContext(aws.Context, *dynamodb.QueryInput, ...request.Option) (*dynamodb.QueryOutput, error)
	DeleteItemWithContext(aws.Context, *dynamodb.DeleteItemInput, ...request.Option) (*dynamodb.DeleteItemOutput, error)
}

// DynamoDBDAL stores records in a DynamoDB table keyed by owner and
// fingerprint with a creation-time GSI for listing.
type DynamoDBDAL struct {
	kvs       kvs
	tableName *string
}

// NewDynamoDB returns a DAL backed by DynamoDB, bootstrapping the table if
// it does not exist.
func NewDynamoDB(ctx context.Context, kvs kvs, env string) (*DynamoDBDAL, error) {
	d := &DynamoDBDAL{
		kvs:       kvs,
		tableName: ptr.String(fmt.Sprintf(tableNameFormatString, env)),
	}
	return d, errors.Trace(d.bootstrap(ctx))
}

func (d *DynamoDBDAL) Get(ctx context.Context, ownerID, fingerprint string) (*Record, error) {
	res, err := d.kvs.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: d.tableName,
		Key: map[string]*dynamodb.AttributeValue{
			ownerIDAN:     {S: ptr.String(ownerID)},
			fingerprintAN: {S: ptr.String(fingerprint)},
		},
		ConsistentRead: ptr.Bool(true),
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if res.Item == nil {
		return nil, ErrNotFound
	}
	return recordFromItem(res.Item)
}

func (d *DynamoDBDAL) Put(ctx context.Context, r *Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return errors.Trace(err)
	}
	_, err = d.kvs.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: d.tableName,
		Item: map[string]*dynamodb.AttributeValue{
			ownerIDAN:     {S: ptr.String(r.OwnerID)},
			fingerprintAN: {S: ptr.String(r.ContentFingerprint)},
			createdAtAN:   {N: ptr.String(strconv.FormatInt(r.CreatedAt.UnixNano(), 10))},
			dataAN:        {B: data},
		},
		ConditionExpression: recordAbsentCE,
	})
	if err != nil {
		if e, ok := err.(awserr.Error); ok && e.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
			return ErrAlreadyExists
		}
		return errors.Trace(err)
	}
	return nil
}

func (d *DynamoDBDAL) List(ctx context.Context, ownerID string) ([]*Record, error) {
	res, err := d.kvs.QueryWithContext(ctx, &dynamodb.QueryInput{
		TableName:              d.tableName,
		IndexName:              ownerCreatedIndexName,
		KeyConditionExpression: ownerEqualsOwnerKCE,
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":owner_id": {S: ptr.String(ownerID)},
		},
		ScanIndexForward: listScanIndexForward,
		Limit:            listLimit,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	records := make([]*Record, 0, len(res.Items))
	for _, item := range res.Items {
		r, err := recordFromItem(item)
		if err != nil {
			return nil, errors.Trace(err)
		}
		records = append(records, r)
	}
	return records, nil
}

func (d *DynamoDBDAL) Delete(ctx context.Context, ownerID, fingerprint string) error {
	_, err := d.kvs.DeleteItemWithContext(ctx, &dynamodb.DeleteItemInput{
		TableName: d.tableName,
		Key: map[string]*dynamodb.AttributeValue{
			ownerIDAN:     {S: ptr.String(ownerID)},
			fingerprintAN: {S: ptr.String(fingerprint)},
		},
	})
	return errors.Trace(err)
}

func recordFromItem(item map[string]*dynamodb.AttributeValue) (*Record, error) {
	av := item[dataAN]
	if av == nil || av.B == nil {
		return nil, errors.New("dal: record item is missing its data attribute")
	}
	r := &Record{}
	if err := json.Unmarshal(av.B, r); err != nil {
		return nil, errors.Trace(err)
	}
	return r, nil
}

func (d *DynamoDBDAL) bootstrap(ctx context.Context) error {
	return errors.Trace(awsutil.CreateDynamoDBTable(ctx, d.kvs, &dynamodb.CreateTableInput{
		TableName: d.tableName,
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: ptr.String(ownerIDAN),
				AttributeType: ptr.String("S"),
			},
			{
				AttributeName: ptr.String(fingerprintAN),
				AttributeType: ptr.String("S"),
			},
			{
				AttributeName: ptr.String(createdAtAN),
				AttributeType: ptr.String("N"),
			},
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: ptr.String(ownerIDAN),
				KeyType:       ptr.String("HASH"),
			},
			{
				AttributeName: ptr.String(fingerprintAN),
				KeyType:       ptr.String("RANGE"),
			},
		},
		GlobalSecondaryIndexes: []*dynamodb.GlobalSecondaryIndex{
			{
				IndexName: ownerCreatedIndexName,
				KeySchema: []*dynamodb.KeySchemaElement{
					{
						AttributeName: ptr.String(ownerIDAN),
						KeyType:       ptr.String("HASH"),
					},
					{
						AttributeName: ptr.String(createdAtAN),
						KeyType:       ptr.String("RANGE"),
					},
				},
				Projection: &dynamodb.Projection{
					ProjectionType: ptr.String("ALL"),
				},
				ProvisionedThroughput: &dynamodb.ProvisionedThroughput{
					ReadCapacityUnits:  ptr.Int64(10),
					WriteCapacityUnits: ptr.Int64(10),
				},
			},
		},
		ProvisionedThroughput: &dynamodb.ProvisionedThroughput{
			ReadCapacityUnits:  ptr.Int64(10),
			WriteCapacityUnits: ptr.Int64(10),
		},
	}))
}
