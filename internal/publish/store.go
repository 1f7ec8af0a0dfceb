package publish

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/oklog/ulid/v2"
)

// EpisodeItem is the DynamoDB record for a published episode.
type EpisodeItem struct {
	PK          string  `dynamodbav:"PK"`
	SK          string  `dynamodbav:"SK"`
	GSI1PK      string  `dynamodbav:"GSI1PK"`
	GSI1SK      string  `dynamodbav:"GSI1SK"`
	EpisodeID   string  `dynamodbav:"episodeId"`
	Show        string  `dynamodbav:"show"`
	Title       string  `dynamodbav:"title"`
	Summary     string  `dynamodbav:"summary,omitempty"`
	Date        string  `dynamodbav:"date"`
	AudioKey    string  `dynamodbav:"audioKey,omitempty"`
	AudioURL    string  `dynamodbav:"audioUrl"`
	AudioBytes  int64   `dynamodbav:"audioBytes"`
	DurationSec float64 `dynamodbav:"durationSec,omitempty"`
	ScriptURL   string  `dynamodbav:"scriptUrl,omitempty"`
	Provider    string  `dynamodbav:"provider,omitempty"`
	Skipped     int     `dynamodbav:"skipped,omitempty"`
	PublishedAt string  `dynamodbav:"publishedAt"`
}

// Episode converts the record to its feed form.
func (i EpisodeItem) Episode() Episode {
	published, _ := time.Parse(time.RFC3339, i.PublishedAt)
	return Episode{
		ID:        i.EpisodeID,
		Title:     i.Title,
		Summary:   i.Summary,
		AudioURL:  i.AudioURL,
		Length:    i.AudioBytes,
		Duration:  time.Duration(i.DurationSec * float64(time.Second)),
		Published: published,
	}
}

// DynamoAPI is the part of the DynamoDB client the store needs.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Store handles DynamoDB operations for episode records.
type Store struct {
	client    DynamoAPI
	tableName string
}

// NewStore creates a DynamoDB store.
func NewStore(client DynamoAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// NewEpisodeID generates a ULID for a new episode.
func NewEpisodeID(at time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(at), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate ulid: %w", err)
	}
	return id.String(), nil
}

// PutEpisode writes the record, filling in the keys.
func (s *Store) PutEpisode(ctx context.Context, item EpisodeItem) error {
	item.PK = "EPISODE#" + item.EpisodeID
	item.SK = "METADATA"
	item.GSI1PK = "EPISODES#" + item.Show
	item.GSI1SK = item.PublishedAt + "#" + item.EpisodeID

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal episode item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.tableName,
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return fmt.Errorf("put episode item: %w", err)
	}
	return nil
}

// GetEpisode retrieves a single episode by ID. A missing episode is nil, nil.
func (s *Store) GetEpisode(ctx context.Context, id string) (*EpisodeItem, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "EPISODE#" + id},
			"SK": &types.AttributeValueMemberS{Value: "METADATA"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var item EpisodeItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal episode: %w", err)
	}
	return &item, nil
}

// ListEpisodes returns a show's episodes newest first via GSI1.
func (s *Store) ListEpisodes(ctx context.Context, show string, limit int, cursor string) ([]EpisodeItem, string, error) {
	if limit <= 0 {
		limit = 20
	}

	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: "EPISODES#" + show},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	if cursor != "" {
		// cursor is the full GSI1SK value ({timestamp}#{id})
		_, id, ok := strings.Cut(cursor, "#")
		if !ok {
			return nil, "", fmt.Errorf("invalid cursor format")
		}
		input.ExclusiveStartKey = map[string]types.AttributeValue{
			"PK":     &types.AttributeValueMemberS{Value: "EPISODE#" + id},
			"SK":     &types.AttributeValueMemberS{Value: "METADATA"},
			"GSI1PK": &types.AttributeValueMemberS{Value: "EPISODES#" + show},
			"GSI1SK": &types.AttributeValueMemberS{Value: cursor},
		}
	}

	result, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, "", fmt.Errorf("list episodes: %w", err)
	}

	var items []EpisodeItem
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
		return nil, "", fmt.Errorf("unmarshal episode list: %w", err)
	}

	var next string
	if result.LastEvaluatedKey != nil {
		if sk, ok := result.LastEvaluatedKey["GSI1SK"].(*types.AttributeValueMemberS); ok {
			next = sk.Value
		}
	}
	return items, next, nil
}
