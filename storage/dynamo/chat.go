// Package dynamostore keeps chat sessions and messages in a single DynamoDB table.
//
// Items:
//
//	PK=SESSION#<id>  SK=META#                     owner pointer of a session
//	PK=OWNER#<id>    SK=SESSION#<id>              session record, listed per owner
//	PK=SESSION#<id>  SK=MSG#<created_at>#<id>     message, sorted chronologically
package dynamostore

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mozedu/mozedu/core"
	"github.com/mozedu/mozedu/core/chat"
)

const (
	skMeta          = "META#"
	skPrefixSession = "SESSION#"
	skPrefixMsg     = "MSG#"

	// sortable: fixed width, unlike time.RFC3339Nano
	tsLayout = "2006-01-02T15:04:05.000000000Z"

	maxTransactItems = 100
)

// dynamodbAPI is the subset of *dynamodb.Client used by the repository.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

var _ dynamodbAPI = (*dynamodb.Client)(nil)

type chatRepository struct {
	api   dynamodbAPI
	table string
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(api dynamodbAPI, table string) (chat.Repository, error) {
	if api == nil {
		return nil, errors.New("dynamodb client is required")
	}
	if core.CleanString(table) == "" {
		return nil, errors.New("dynamodb table name is required")
	}
	return &chatRepository{api: api, table: table}, nil
}

func sessionPK(id string) string { return skPrefixSession + id }
func ownerPK(id string) string   { return "OWNER#" + id }
func msgSK(msg chat.Message) string {
	return skPrefixMsg + msg.CreatedAt.UTC().Format(tsLayout) + "#" + msg.ID
}

func str(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"PK": str(pk), "SK": str(sk)}
}

func sessionItem(sess chat.Session) map[string]types.AttributeValue {
	item := key(ownerPK(sess.OwnerID), skPrefixSession+sess.ID)
	item["id"] = str(sess.ID)
	item["ownerId"] = str(sess.OwnerID)
	item["title"] = str(sess.Title)
	item["createdAt"] = str(sess.CreatedAt.UTC().Format(tsLayout))
	item["lastMessageAt"] = str(sess.LastMessageAt.UTC().Format(tsLayout))
	item["lastIntent"] = str(string(sess.LastIntent))
	item["isActive"] = &types.AttributeValueMemberBOOL{Value: sess.IsActive}
	return item
}

func metaItem(sess chat.Session) map[string]types.AttributeValue {
	item := key(sessionPK(sess.ID), skMeta)
	item["ownerId"] = str(sess.OwnerID)
	return item
}

func messageItem(sessionID string, msg chat.Message) map[string]types.AttributeValue {
	item := key(sessionPK(sessionID), msgSK(msg))
	item["id"] = str(msg.ID)
	item["role"] = str(string(msg.Role))
	item["content"] = str(msg.Content)
	item["intent"] = str(string(msg.Intent))
	item["createdAt"] = str(msg.CreatedAt.UTC().Format(tsLayout))
	return item
}

func (repo *chatRepository) CreateSession(ctx context.Context, sess chat.Session) (chat.Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	_, err := repo.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(repo.table),
				Item:                metaItem(sess),
				ConditionExpression: aws.String("attribute_not_exists(PK)"),
			}},
			{Put: &types.Put{
				TableName: aws.String(repo.table),
				Item:      sessionItem(sess),
			}},
		},
	})
	if err != nil {
		return chat.Session{}, errors.Wrap(err, "creating chat session")
	}
	return sess, nil
}

func (repo *chatRepository) DeactivateSessions(ctx context.Context, ownerID string) error {
	sessions, err := repo.querySessions(ctx, ownerID)
	if err != nil {
		return err
	}
	for _, sess := range sessions {
		if !sess.IsActive {
			continue
		}
		sess.IsActive = false
		if _, err := repo.api.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(repo.table),
			Item:      sessionItem(sess),
		}); err != nil {
			return errors.Wrap(err, "deactivating chat session")
		}
	}
	return nil
}

func (repo *chatRepository) GetSession(ctx context.Context, id string) (chat.Session, error) {
	if id == "" {
		return chat.Session{}, chat.ErrSessionNotFound
	}
	meta, err := repo.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(repo.table),
		Key:            key(sessionPK(id), skMeta),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return chat.Session{}, errors.Wrap(err, "getting chat session owner")
	}
	if meta == nil || len(meta.Item) == 0 {
		return chat.Session{}, chat.ErrSessionNotFound
	}
	ownerID, err := strAttr(meta.Item, "ownerId")
	if err != nil {
		return chat.Session{}, err
	}

	out, err := repo.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(repo.table),
		Key:            key(ownerPK(ownerID), skPrefixSession+id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return chat.Session{}, errors.Wrap(err, "getting chat session")
	}
	if out == nil || len(out.Item) == 0 {
		return chat.Session{}, chat.ErrSessionNotFound
	}
	return itemToSession(out.Item)
}

func (repo *chatRepository) QuerySessions(ctx context.Context, ownerID string, ordering []core.DBOrdering) ([]chat.Session, error) {
	sessions, err := repo.querySessions(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	chat.SortSessions(sessions, ordering)
	return sessions, nil
}

func (repo *chatRepository) querySessions(ctx context.Context, ownerID string) ([]chat.Session, error) {
	items, err := repo.query(ctx, ownerPK(ownerID), skPrefixSession)
	if err != nil {
		return nil, errors.Wrap(err, "querying chat sessions")
	}
	sessions := make([]chat.Session, 0, len(items))
	for _, item := range items {
		sess, err := itemToSession(item)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

func (repo *chatRepository) UpdateSession(ctx context.Context, sess chat.Session) (chat.Session, error) {
	_, err := repo.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(repo.table),
		Item:                sessionItem(sess),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return chat.Session{}, chat.ErrSessionNotFound
		}
		return chat.Session{}, errors.Wrap(err, "updating chat session")
	}
	return sess, nil
}

func (repo *chatRepository) AppendMessages(ctx context.Context, sessionID string, msgs ...chat.Message) error {
	for start := 0; start < len(msgs); start += maxTransactItems {
		end := start + maxTransactItems
		if end > len(msgs) {
			end = len(msgs)
		}

		items := make([]types.TransactWriteItem, 0, end-start)
		for _, msg := range msgs[start:end] {
			if msg.ID == "" {
				msg.ID = uuid.New().String()
			}
			items = append(items, types.TransactWriteItem{Put: &types.Put{
				TableName: aws.String(repo.table),
				Item:      messageItem(sessionID, msg),
			}})
		}
		if _, err := repo.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
			return errors.Wrap(err, "appending chat messages")
		}
	}
	return nil
}

func (repo *chatRepository) QueryMessages(ctx context.Context, sessionID string) ([]chat.Message, error) {
	items, err := repo.query(ctx, sessionPK(sessionID), skPrefixMsg)
	if err != nil {
		return nil, errors.Wrap(err, "querying chat messages")
	}
	msgs := make([]chat.Message, 0, len(items))
	for _, item := range items {
		msg, err := itemToMessage(sessionID, item)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// query returns every item of partition `pk` whose sort key starts with `prefix`, in sort key order.
func (repo *chatRepository) query(ctx context.Context, pk, prefix string) ([]map[string]types.AttributeValue, error) {
	var (
		items    []map[string]types.AttributeValue
		startKey map[string]types.AttributeValue
	)
	for {
		out, err := repo.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(repo.table),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     str(pk),
				":prefix": str(prefix),
			},
			ScanIndexForward:  aws.Bool(true),
			ConsistentRead:    aws.Bool(true),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

func itemToSession(item map[string]types.AttributeValue) (chat.Session, error) {
	var (
		sess chat.Session
		err  error
	)
	if sess.ID, err = strAttr(item, "id"); err != nil {
		return chat.Session{}, err
	}
	if sess.OwnerID, err = strAttr(item, "ownerId"); err != nil {
		return chat.Session{}, err
	}
	if sess.CreatedAt, err = timeAttr(item, "createdAt"); err != nil {
		return chat.Session{}, err
	}
	if sess.LastMessageAt, err = timeAttr(item, "lastMessageAt"); err != nil {
		return chat.Session{}, err
	}
	sess.Title, _ = strAttr(item, "title")
	intent, _ := strAttr(item, "lastIntent")
	sess.LastIntent = chat.Intent(intent)
	if v, ok := item["isActive"].(*types.AttributeValueMemberBOOL); ok {
		sess.IsActive = v.Value
	}
	return sess, nil
}

func itemToMessage(sessionID string, item map[string]types.AttributeValue) (chat.Message, error) {
	msg := chat.Message{SessionID: sessionID}
	var err error
	if msg.ID, err = strAttr(item, "id"); err != nil {
		return chat.Message{}, err
	}
	if msg.CreatedAt, err = timeAttr(item, "createdAt"); err != nil {
		return chat.Message{}, err
	}
	role, err := strAttr(item, "role")
	if err != nil {
		return chat.Message{}, err
	}
	msg.Role = chat.Role(role)
	msg.Content, _ = strAttr(item, "content")
	intent, _ := strAttr(item, "intent")
	msg.Intent = chat.Intent(intent)
	return msg, nil
}

func strAttr(item map[string]types.AttributeValue, name string) (string, error) {
	v, ok := item[name]
	if !ok {
		return "", errors.Errorf("missing attribute %s", strconv.Quote(name))
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.Errorf("attribute %s is not a string", strconv.Quote(name))
	}
	return s.Value, nil
}

func timeAttr(item map[string]types.AttributeValue, name string) (time.Time, error) {
	s, err := strAttr(item, name)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(tsLayout, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parsing attribute %s", strconv.Quote(name))
	}
	return t.UTC(), nil
}
