package dynamostore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozedu/mozedu/core"
	"github.com/mozedu/mozedu/core/chat"
)

// fakeDynamo is a tiny single-table store honoring the key conditions and
// condition expressions used by the repository. Queries return pages of pageSize items.
type fakeDynamo struct {
	mu       sync.Mutex
	items    map[string]map[string]map[string]types.AttributeValue // PK -> SK -> item
	pageSize int
	queries  int
	txErr    error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]map[string]types.AttributeValue), pageSize: 2}
}

func attrS(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (f *fakeDynamo) exists(item map[string]types.AttributeValue) bool {
	_, ok := f.items[attrS(item, "PK")][attrS(item, "SK")]
	return ok
}

func (f *fakeDynamo) checkCondition(cond *string, item map[string]types.AttributeValue) error {
	if cond == nil {
		return nil
	}
	switch {
	case strings.HasPrefix(*cond, "attribute_not_exists") && f.exists(item),
		strings.HasPrefix(*cond, "attribute_exists") && !f.exists(item):
		return &types.ConditionalCheckFailedException{Message: aws.String("conditional check failed")}
	}
	return nil
}

func (f *fakeDynamo) put(item map[string]types.AttributeValue) {
	pk := attrS(item, "PK")
	if f.items[pk] == nil {
		f.items[pk] = make(map[string]map[string]types.AttributeValue)
	}
	f.items[pk][attrS(item, "SK")] = item
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[attrS(in.Key, "PK")][attrS(in.Key, "SK")]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkCondition(in.ConditionExpression, in.Item); err != nil {
		return nil, err
	}
	f.put(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++

	pk := attrS(in.ExpressionAttributeValues, ":pk")
	prefix := attrS(in.ExpressionAttributeValues, ":prefix")
	sks := make([]string, 0)
	for sk := range f.items[pk] {
		if strings.HasPrefix(sk, prefix) {
			sks = append(sks, sk)
		}
	}
	sort.Strings(sks)

	start := 0
	if in.ExclusiveStartKey != nil {
		last := attrS(in.ExclusiveStartKey, "SK")
		start = sort.SearchStrings(sks, last) + 1
	}
	end := start + f.pageSize
	out := &dynamodb.QueryOutput{}
	if end < len(sks) {
		out.LastEvaluatedKey = key(pk, sks[end-1])
	} else {
		end = len(sks)
	}
	for _, sk := range sks[start:end] {
		out.Items = append(out.Items, f.items[pk][sk])
	}
	return out, nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.txErr != nil {
		return nil, f.txErr
	}
	for _, it := range in.TransactItems {
		if err := f.checkCondition(it.Put.ConditionExpression, it.Put.Item); err != nil {
			return nil, &types.TransactionCanceledException{Message: aws.String("transaction cancelled")}
		}
	}
	for _, it := range in.TransactItems {
		f.put(it.Put.Item)
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func newRepo(t *testing.T) (*chatRepository, *fakeDynamo) {
	t.Helper()
	db := newFakeDynamo()
	repo, err := NewChatRepository(db, "mozedu-chat")
	require.NoError(t, err)
	return repo.(*chatRepository), db
}

func TestNewChatRepository(t *testing.T) {
	_, err := NewChatRepository(nil, "table")
	assert.Error(t, err)
	_, err = NewChatRepository(newFakeDynamo(), "  ")
	assert.Error(t, err)
}

func TestChatRepository_sessions(t *testing.T) {
	repo, db := newRepo(t)
	ctx := context.Background()
	t0 := time.Date(2024, time.March, 12, 10, 0, 0, 0, time.UTC)

	var ids []string
	for i, title := range []string{"Faltas", "notas", "Eventos"} {
		sess, err := repo.CreateSession(ctx, chat.Session{
			OwnerID:       "owner-1",
			Title:         title,
			CreatedAt:     t0.Add(time.Duration(i) * time.Minute),
			LastMessageAt: t0.Add(time.Duration(i) * time.Minute),
			IsActive:      true,
		})
		require.NoError(t, err)
		ids = append(ids, sess.ID)
	}
	_, err := repo.CreateSession(ctx, chat.Session{ID: "other", OwnerID: "owner-2", Title: "x", IsActive: true})
	require.NoError(t, err)

	_, err = repo.CreateSession(ctx, chat.Session{ID: ids[0], OwnerID: "owner-1"})
	assert.Error(t, err, "duplicate session ID")

	got, err := repo.GetSession(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, "notas", got.Title)
	assert.Equal(t, "owner-1", got.OwnerID)
	assert.True(t, t0.Add(time.Minute).Equal(got.CreatedAt))

	_, err = repo.GetSession(ctx, "missing")
	assert.Equal(t, chat.ErrSessionNotFound, err)
	_, err = repo.GetSession(ctx, "")
	assert.Equal(t, chat.ErrSessionNotFound, err)

	db.queries = 0
	sessions, err := repo.QuerySessions(ctx, "owner-1", nil)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{sessions[0].ID, sessions[1].ID, sessions[2].ID})
	assert.Equal(t, 2, db.queries, "paginated over LastEvaluatedKey")

	sessions, err = repo.QuerySessions(ctx, "owner-1", []core.DBOrdering{{Field: "title", Ascending: true}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Eventos", "Faltas", "notas"}, []string{sessions[0].Title, sessions[1].Title, sessions[2].Title})

	require.NoError(t, repo.DeactivateSessions(ctx, "owner-1"))
	sessions, err = repo.QuerySessions(ctx, "owner-1", nil)
	require.NoError(t, err)
	for _, s := range sessions {
		assert.False(t, s.IsActive)
	}
	other, err := repo.GetSession(ctx, "other")
	require.NoError(t, err)
	assert.True(t, other.IsActive)

	got.IsActive = true
	got.LastIntent = chat.IntentGrades
	got.LastMessageAt = t0.Add(time.Hour)
	_, err = repo.UpdateSession(ctx, got)
	require.NoError(t, err)
	got, err = repo.GetSession(ctx, ids[1])
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Equal(t, chat.IntentGrades, got.LastIntent)

	_, err = repo.UpdateSession(ctx, chat.Session{ID: "missing", OwnerID: "owner-1"})
	assert.Equal(t, chat.ErrSessionNotFound, err)
}

func TestChatRepository_messages(t *testing.T) {
	repo, db := newRepo(t)
	ctx := context.Background()
	t0 := time.Date(2024, time.March, 12, 10, 0, 0, 0, time.UTC)

	sess, err := repo.CreateSession(ctx, chat.Session{OwnerID: "owner-1", Title: "Faltas", IsActive: true})
	require.NoError(t, err)

	msgs := []chat.Message{
		{ID: "m1", Role: chat.RoleUser, Content: "Quantas faltas?", Intent: chat.IntentAttendance, CreatedAt: t0},
		{ID: "m2", Role: chat.RoleAssistant, Content: "Tem 1 falta.", CreatedAt: t0.Add(time.Microsecond)},
	}
	require.NoError(t, repo.AppendMessages(ctx, sess.ID, msgs...))
	require.NoError(t, repo.AppendMessages(ctx, sess.ID,
		chat.Message{ID: "m3", Role: chat.RoleUser, Content: "E as notas?", CreatedAt: t0.Add(time.Second)},
	))

	stored, err := repo.QueryMessages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, "m1", stored[0].ID)
	assert.Equal(t, chat.IntentAttendance, stored[0].Intent)
	assert.Equal(t, sess.ID, stored[0].SessionID)
	assert.Equal(t, chat.RoleAssistant, stored[1].Role)
	assert.True(t, t0.Add(time.Microsecond).Equal(stored[1].CreatedAt))
	assert.Equal(t, "m3", stored[2].ID)

	empty, err := repo.QueryMessages(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)

	db.txErr = errors.New("boom")
	assert.Error(t, repo.AppendMessages(ctx, sess.ID, chat.Message{ID: "m4", CreatedAt: t0}))
}

func TestMsgSK_sortsChronologically(t *testing.T) {
	t0 := time.Date(2024, time.March, 12, 10, 0, 0, 0, time.UTC)
	a := msgSK(chat.Message{ID: "b", CreatedAt: t0.Add(100 * time.Millisecond)})
	b := msgSK(chat.Message{ID: "a", CreatedAt: t0.Add(120 * time.Millisecond)})
	c := msgSK(chat.Message{ID: "c", CreatedAt: t0.Add(time.Second)})
	assert.True(t, a < b)
	assert.True(t, b < c)
}
