package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"

	"github.com/LeonidMehandzhijski/Break-Scheduler/internal/types"
)

const (
	appStateKeyLastEvent   = "lastEvent"
	appStateKeyDailyStatus = "dailyStatus"

	// transactBatchLimit is the DynamoDB TransactWriteItems item cap
	transactBatchLimit = 100
)

// DynamoStore implements Store using AWS DynamoDB. Multi-record commits are
// expressed as TransactWriteItems, so every Tx is all-or-nothing within one
// transaction batch.
type DynamoStore struct {
	client *dynamodb.Client
	config DynamoConfig
	logger zerolog.Logger
}

// NewDynamoStore creates a new DynamoDB store
func NewDynamoStore(ctx context.Context, cfg DynamoConfig, logger zerolog.Logger) (*DynamoStore, error) {
	var client *dynamodb.Client

	if cfg.Mode == DynamoModeLocal {
		// For local mode, build the client directly without LoadDefaultConfig.
		// LoadDefaultConfig probes the EC2 IMDS endpoint which hangs on EC2
		// instances when static credentials are intended.
		client = dynamodb.New(dynamodb.Options{
			Region:       cfg.Region,
			BaseEndpoint: aws.String(cfg.Endpoint),
			Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
		})
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = dynamodb.NewFromConfig(awsCfg)
	}

	store := &DynamoStore{
		client: client,
		config: cfg,
		logger: logger,
	}

	// Create tables in local mode
	if cfg.Mode == DynamoModeLocal {
		if err := CreateTablesIfNotExist(ctx, client, cfg, logger); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Str("mode", string(cfg.Mode)).
		Str("region", cfg.Region).
		Msg("DynamoDB store initialized")

	return store, nil
}

// NewStore creates the appropriate store based on configuration
func NewStore(ctx context.Context, logger zerolog.Logger) (Store, error) {
	cfg := LoadDynamoConfig()

	switch cfg.Mode {
	case DynamoModeLocal, DynamoModeAWS:
		return NewDynamoStore(ctx, cfg, logger)
	default:
		logger.Info().Msg("using in-memory store (DYNAMO_MODE=memory)")
		return NewMemoryStore(), nil
	}
}

func (s *DynamoStore) GetAgent(ctx context.Context, agentID string) (types.Agent, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.AgentsTable),
		Key: map[string]dbtypes.AttributeValue{
			"AgentID": &dbtypes.AttributeValueMemberS{Value: agentID},
		},
	})
	if err != nil {
		return types.Agent{}, fmt.Errorf("failed to get agent %s: %w", agentID, err)
	}
	if result.Item == nil {
		return types.Agent{}, ErrNotFound
	}

	var agent types.Agent
	if err := attributevalue.UnmarshalMap(result.Item, &agent); err != nil {
		return types.Agent{}, fmt.Errorf("failed to unmarshal agent: %w", err)
	}
	return agent, nil
}

func (s *DynamoStore) ListAgents(ctx context.Context) ([]types.Agent, error) {
	var agents []types.Agent
	var lastKey map[string]dbtypes.AttributeValue

	for {
		input := &dynamodb.ScanInput{
			TableName: aws.String(s.config.AgentsTable),
		}
		if lastKey != nil {
			input.ExclusiveStartKey = lastKey
		}

		result, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agents: %w", err)
		}

		var page []types.Agent
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal agents: %w", err)
		}
		agents = append(agents, page...)

		lastKey = result.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	return agents, nil
}

func (s *DynamoStore) GetSlot(ctx context.Context, date, slotID string) (types.DailyBreakSlot, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.SlotsTable),
		Key: map[string]dbtypes.AttributeValue{
			"Date":   &dbtypes.AttributeValueMemberS{Value: date},
			"SlotID": &dbtypes.AttributeValueMemberS{Value: slotID},
		},
	})
	if err != nil {
		return types.DailyBreakSlot{}, fmt.Errorf("failed to get slot %s: %w", slotID, err)
	}
	if result.Item == nil {
		return types.DailyBreakSlot{}, ErrNotFound
	}

	var slot types.DailyBreakSlot
	if err := attributevalue.UnmarshalMap(result.Item, &slot); err != nil {
		return types.DailyBreakSlot{}, fmt.Errorf("failed to unmarshal slot: %w", err)
	}
	return slot, nil
}

func (s *DynamoStore) FindSlot(ctx context.Context, date, shiftID, timeSlotID string, breakTypeIndex int) (types.DailyBreakSlot, error) {
	keyCond := expression.Key("Date").Equal(expression.Value(date))
	filter := expression.Name("ShiftID").Equal(expression.Value(shiftID)).
		And(expression.Name("TimeSlotID").Equal(expression.Value(timeSlotID))).
		And(expression.Name("BreakTypeIndex").Equal(expression.Value(breakTypeIndex)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filter).Build()
	if err != nil {
		return types.DailyBreakSlot{}, fmt.Errorf("failed to build expression: %w", err)
	}

	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.SlotsTable),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return types.DailyBreakSlot{}, fmt.Errorf("failed to query slots: %w", err)
	}
	if len(result.Items) == 0 {
		return types.DailyBreakSlot{}, ErrNotFound
	}

	var slot types.DailyBreakSlot
	if err := attributevalue.UnmarshalMap(result.Items[0], &slot); err != nil {
		return types.DailyBreakSlot{}, fmt.Errorf("failed to unmarshal slot: %w", err)
	}
	return slot, nil
}

func (s *DynamoStore) ListSlots(ctx context.Context, date string) ([]types.DailyBreakSlot, error) {
	keyCond := expression.Key("Date").Equal(expression.Value(date))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.SlotsTable),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query slots for %s: %w", date, err)
	}

	var slots []types.DailyBreakSlot
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &slots); err != nil {
		return nil, fmt.Errorf("failed to unmarshal slots: %w", err)
	}
	return slots, nil
}

// lastEventItem is the appState record shape for the banner event
type lastEventItem struct {
	Key string `dynamodbav:"Key"`
	types.LastBreakEvent
}

// resetMarkerItem is the appState record shape for the daily reset marker
type resetMarkerItem struct {
	Key string `dynamodbav:"Key"`
	types.ResetMarker
}

func (s *DynamoStore) GetLastEvent(ctx context.Context) (types.LastBreakEvent, error) {
	item, err := s.getAppState(ctx, appStateKeyLastEvent)
	if err != nil {
		return types.LastBreakEvent{}, err
	}

	var event lastEventItem
	if err := attributevalue.UnmarshalMap(item, &event); err != nil {
		return types.LastBreakEvent{}, fmt.Errorf("failed to unmarshal last event: %w", err)
	}
	return event.LastBreakEvent, nil
}

func (s *DynamoStore) GetResetMarker(ctx context.Context) (types.ResetMarker, error) {
	item, err := s.getAppState(ctx, appStateKeyDailyStatus)
	if err != nil {
		return types.ResetMarker{}, err
	}

	var marker resetMarkerItem
	if err := attributevalue.UnmarshalMap(item, &marker); err != nil {
		return types.ResetMarker{}, fmt.Errorf("failed to unmarshal reset marker: %w", err)
	}
	return marker.ResetMarker, nil
}

func (s *DynamoStore) getAppState(ctx context.Context, key string) (map[string]dbtypes.AttributeValue, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.AppStateTable),
		Key: map[string]dbtypes.AttributeValue{
			"Key": &dbtypes.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get app state %s: %w", key, err)
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}
	return result.Item, nil
}

// Commit applies the transaction via TransactWriteItems. Transactions larger
// than the DynamoDB limit are split into sequential batches in op order; the
// engine stages the reset marker last, so a failure in an earlier batch
// leaves the marker unwritten and the reset retries on the next check.
func (s *DynamoStore) Commit(ctx context.Context, tx *Tx) error {
	if tx == nil || tx.Empty() {
		return nil
	}

	items := make([]dbtypes.TransactWriteItem, 0, tx.Len())
	for _, o := range tx.ops {
		item, err := s.transactItem(o)
		if err != nil {
			return err
		}
		items = append(items, item)
	}

	for start := 0; start < len(items); start += transactBatchLimit {
		end := start + transactBatchLimit
		if end > len(items) {
			end = len(items)
		}
		_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: items[start:end],
		})
		if err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
	}

	s.logger.Debug().Int("ops", tx.Len()).Msg("transaction committed")
	return nil
}

func (s *DynamoStore) transactItem(o op) (dbtypes.TransactWriteItem, error) {
	switch o.kind {
	case opPutAgent:
		item, err := attributevalue.MarshalMap(o.agent)
		if err != nil {
			return dbtypes.TransactWriteItem{}, fmt.Errorf("failed to marshal agent: %w", err)
		}
		return putItem(s.config.AgentsTable, item), nil

	case opPutSlot:
		item, err := attributevalue.MarshalMap(o.slot)
		if err != nil {
			return dbtypes.TransactWriteItem{}, fmt.Errorf("failed to marshal slot: %w", err)
		}
		return putItem(s.config.SlotsTable, item), nil

	case opDeleteSlot:
		return dbtypes.TransactWriteItem{
			Delete: &dbtypes.Delete{
				TableName: aws.String(s.config.SlotsTable),
				Key: map[string]dbtypes.AttributeValue{
					"Date":   &dbtypes.AttributeValueMemberS{Value: o.date},
					"SlotID": &dbtypes.AttributeValueMemberS{Value: o.slotID},
				},
			},
		}, nil

	case opPutLastEvent:
		item, err := attributevalue.MarshalMap(lastEventItem{Key: appStateKeyLastEvent, LastBreakEvent: o.event})
		if err != nil {
			return dbtypes.TransactWriteItem{}, fmt.Errorf("failed to marshal last event: %w", err)
		}
		return putItem(s.config.AppStateTable, item), nil

	case opPutResetMarker:
		item, err := attributevalue.MarshalMap(resetMarkerItem{Key: appStateKeyDailyStatus, ResetMarker: o.marker})
		if err != nil {
			return dbtypes.TransactWriteItem{}, fmt.Errorf("failed to marshal reset marker: %w", err)
		}
		return putItem(s.config.AppStateTable, item), nil

	default:
		return dbtypes.TransactWriteItem{}, fmt.Errorf("unknown transaction op kind %d", o.kind)
	}
}

func putItem(table string, item map[string]dbtypes.AttributeValue) dbtypes.TransactWriteItem {
	return dbtypes.TransactWriteItem{
		Put: &dbtypes.Put{
			TableName: aws.String(table),
			Item:      item,
		},
	}
}
