package fixtures

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"

	"github.com/launchdarkly/suite-harness/framework/ldtest"
)

const (
	// DynamoDBKey is the scope key of the client created by DynamoDBTable, unless overridden.
	DynamoDBKey = "fixtures.dynamodb"

	DefaultDynamoDBRegion       = "us-east-1"
	DefaultDynamoDBPartitionKey = "namespace"
	DefaultDynamoDBSortKey      = "key"
)

type DynamoDBOptions struct {
	// Endpoint is set for a local DynamoDB; empty means the AWS endpoint for the region.
	Endpoint string `json:"endpoint"`
	Region   string `json:"region"`
	// AccessKeyID and SecretAccessKey select static credentials; if empty, the default AWS
	// credential chain is used.
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	Table           string `json:"table"`
	PartitionKey    string `json:"partitionKey"`
	SortKey         string `json:"sortKey"`
	Key             string `json:"key"`
}

// DynamoDBTable returns a setup handler that recreates an empty table, with a string
// partition key and a string sort key, and deletes it when the scope ends.
func DynamoDBTable(opts DynamoDBOptions) ldtest.SetupFunc {
	if opts.Region == "" {
		opts.Region = DefaultDynamoDBRegion
	}
	if opts.PartitionKey == "" {
		opts.PartitionKey = DefaultDynamoDBPartitionKey
	}
	if opts.SortKey == "" {
		opts.SortKey = DefaultDynamoDBSortKey
	}
	if opts.Key == "" {
		opts.Key = DynamoDBKey
	}
	return func(t *ldtest.T) (ldtest.SetupResult, error) {
		if opts.Table == "" {
			return ldtest.NoCleanup(), errors.New("dynamodb fixture needs a table name")
		}
		config := aws.NewConfig().WithRegion(opts.Region)
		if opts.Endpoint != "" {
			config = config.WithEndpoint(opts.Endpoint)
		}
		if opts.AccessKeyID != "" {
			config = config.WithCredentials(credentials.NewStaticCredentials(opts.AccessKeyID, opts.SecretAccessKey, ""))
		}
		sess, err := session.NewSession(config)
		if err != nil {
			return ldtest.NoCleanup(), fmt.Errorf("invalid aws configuration: %w", err)
		}
		client := dynamodb.New(sess)

		ctx := t.Context()
		if err := deleteTable(ctx, client, opts.Table); err != nil {
			return ldtest.NoCleanup(), err
		}
		_, err = client.CreateTableWithContext(ctx, &dynamodb.CreateTableInput{
			AttributeDefinitions: []*dynamodb.AttributeDefinition{
				{
					AttributeName: aws.String(opts.PartitionKey),
					AttributeType: aws.String(dynamodb.ScalarAttributeTypeS),
				},
				{
					AttributeName: aws.String(opts.SortKey),
					AttributeType: aws.String(dynamodb.ScalarAttributeTypeS),
				},
			},
			KeySchema: []*dynamodb.KeySchemaElement{
				{
					AttributeName: aws.String(opts.PartitionKey),
					KeyType:       aws.String(dynamodb.KeyTypeHash),
				},
				{
					AttributeName: aws.String(opts.SortKey),
					KeyType:       aws.String(dynamodb.KeyTypeRange),
				},
			},
			ProvisionedThroughput: &dynamodb.ProvisionedThroughput{
				ReadCapacityUnits:  aws.Int64(1),
				WriteCapacityUnits: aws.Int64(1),
			},
			TableName: aws.String(opts.Table),
		})
		if err != nil {
			return ldtest.NoCleanup(), fmt.Errorf("could not create dynamodb table %q: %w", opts.Table, err)
		}

		t.Set(opts.Key, client)
		t.Debug("Created dynamodb table %q", opts.Table)
		return ldtest.CleanupWith(func(*ldtest.T) error {
			ctx, cancel := cleanupContext()
			defer cancel()
			return deleteTable(ctx, client, opts.Table)
		}), nil
	}
}

// deleteTable deletes a table, treating a table that does not exist as success.
func deleteTable(ctx aws.Context, client *dynamodb.DynamoDB, table string) error {
	_, err := client.DeleteTableWithContext(ctx, &dynamodb.DeleteTableInput{TableName: aws.String(table)})
	var aerr awserr.Error
	if err == nil || (errors.As(err, &aerr) && aerr.Code() == dynamodb.ErrCodeResourceNotFoundException) {
		return nil
	}
	return fmt.Errorf("could not delete dynamodb table %q: %w", table, err)
}

// DynamoDBClient returns the client stored under DynamoDBKey in this scope or an enclosing one.
func DynamoDBClient(t *ldtest.T) (*dynamodb.DynamoDB, bool) {
	return ldtest.Value[*dynamodb.DynamoDB](t, DynamoDBKey)
}
