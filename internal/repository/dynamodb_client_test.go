package repository

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"academy-assistant/internal/domain"
)

type fakeDynamo struct {
	getOut       *dynamodb.GetItemOutput
	getErr       error
	queryOut     *dynamodb.QueryOutput
	queryErr     error
	txErr        error
	lastGetInput *dynamodb.GetItemInput
	lastQueryIn  *dynamodb.QueryInput
	lastTxInput  *dynamodb.TransactWriteItemsInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQueryIn = in
	return f.queryOut, f.queryErr
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.lastTxInput = in
	return &dynamodb.TransactWriteItemsOutput{}, f.txErr
}

func makeItem(pk, sk, text, answer, status string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":     &types.AttributeValueMemberS{Value: pk},
		"SK":     &types.AttributeValueMemberS{Value: sk},
		"text":   &types.AttributeValueMemberS{Value: text},
		"answer": &types.AttributeValueMemberS{Value: answer},
		"status": &types.AttributeValueMemberS{Value: status},
	}
}

func mustNewDynamoStore(t *testing.T, db *fakeDynamo) *DynamoStore {
	t.Helper()
	c, err := NewDynamoStore(db, "test-table")
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC) }
	return c
}

func sAttr(t *testing.T, item map[string]types.AttributeValue, key string) string {
	t.Helper()
	v, ok := item[key].(*types.AttributeValueMemberS)
	require.True(t, ok, "attribute %q", key)
	return v.Value
}

func nAttr(t *testing.T, item map[string]types.AttributeValue, key string) string {
	t.Helper()
	v, ok := item[key].(*types.AttributeValueMemberN)
	require.True(t, ok, "attribute %q", key)
	return v.Value
}

func mustAtoi64(t *testing.T, s string) int64 {
	t.Helper()
	n, err := strconv.ParseInt(s, 10, 64)
	require.NoError(t, err)
	return n
}

func TestNewDynamoStore_Validation(t *testing.T) {
	_, err := NewDynamoStore(nil, "test-table")
	require.ErrorContains(t, err, "must not be nil")

	_, err = NewDynamoStore(&fakeDynamo{}, " ")
	require.ErrorContains(t, err, "must not be empty")
}

func TestGetConversationTurnCount_HappyPath(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"PK":    &types.AttributeValueMemberS{Value: "CONV#abc"},
		"SK":    &types.AttributeValueMemberS{Value: skMeta},
		"turns": &types.AttributeValueMemberN{Value: "7"},
	}}}
	c := mustNewDynamoStore(t, db)
	turns, err := c.GetConversationTurnCount(context.Background(), "abc")
	require.NoError(t, err)
	require.Equal(t, 7, turns)
	require.Equal(t, "CONV#abc", sAttr(t, db.lastGetInput.Key, "PK"))
	require.True(t, *db.lastGetInput.ConsistentRead)
}

func TestGetConversationTurnCount_MissingMeta(t *testing.T) {
	c := mustNewDynamoStore(t, &fakeDynamo{getOut: &dynamodb.GetItemOutput{}})
	turns, err := c.GetConversationTurnCount(context.Background(), "abc")
	require.NoError(t, err)
	require.Zero(t, turns)
}

func TestGetConversationTurnCount_Errors(t *testing.T) {
	c := mustNewDynamoStore(t, &fakeDynamo{getErr: errors.New("boom")})
	_, err := c.GetConversationTurnCount(context.Background(), "abc")
	require.ErrorContains(t, err, "GetConversationTurnCount")

	c = mustNewDynamoStore(t, &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"turns": &types.AttributeValueMemberS{Value: "bad"},
	}}})
	_, err = c.GetConversationTurnCount(context.Background(), "abc")
	require.ErrorContains(t, err, "decode turns")
}

func TestGetHistory_QueryShape(t *testing.T) {
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{}}
	c := mustNewDynamoStore(t, db)
	msgs, err := c.GetHistory(context.Background(), "abc", 20)
	require.NoError(t, err)
	require.Empty(t, msgs)
	require.Equal(t, "PK = :pk AND begins_with(SK, :prefix)", *db.lastQueryIn.KeyConditionExpression)
	require.False(t, *db.lastQueryIn.ScanIndexForward)
	require.Equal(t, int32(20), *db.lastQueryIn.Limit)

	_, err = c.GetHistory(context.Background(), "abc", 0)
	require.NoError(t, err)
	require.Nil(t, db.lastQueryIn.Limit)
}

func TestGetHistory_ReordersDescendingResultsToChronological(t *testing.T) {
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
		makeItem("CONV#abc", "MSG#2026-02-27T12:00:00Z", "newer", "a2", domain.StatusComplete),
		makeItem("CONV#abc", "MSG#2026-02-27T11:00:00Z", "older", "a1", domain.StatusFallback),
	}}}
	c := mustNewDynamoStore(t, db)
	msgs, err := c.GetHistory(context.Background(), "abc", 20)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "older", msgs[0].Text)
	require.Equal(t, domain.StatusFallback, msgs[0].Status)
	require.Equal(t, "newer", msgs[1].Text)
	require.Equal(t, "abc", msgs[1].ConversationID)
}

func TestGetHistory_Errors(t *testing.T) {
	c := mustNewDynamoStore(t, &fakeDynamo{queryErr: errors.New("ResourceNotFoundException")})
	_, err := c.GetHistory(context.Background(), "abc", 20)
	require.ErrorContains(t, err, "GetHistory")

	c = mustNewDynamoStore(t, &fakeDynamo{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{{
		"PK": &types.AttributeValueMemberS{Value: "CONV#abc"},
		"SK": &types.AttributeValueMemberS{Value: "MSG#ts"},
	}}}})
	_, err = c.GetHistory(context.Background(), "abc", 20)
	require.ErrorContains(t, err, "text")
}

func TestSaveCompletedTurn_WritesMessageAndMeta(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewDynamoStore(t, db)

	err := c.SaveCompletedTurn(context.Background(), "abc", "Which courses?", "Go and Python.", domain.StatusComplete, 3)
	require.NoError(t, err)
	require.Len(t, db.lastTxInput.TransactItems, 2)

	msgPut := db.lastTxInput.TransactItems[0].Put
	require.Equal(t, "test-table", *msgPut.TableName)
	require.Equal(t, "attribute_not_exists(PK) AND attribute_not_exists(SK)", *msgPut.ConditionExpression)
	require.Equal(t, "CONV#abc", sAttr(t, msgPut.Item, "PK"))
	require.Equal(t, "MSG#2026-10-16T09:30:00Z", sAttr(t, msgPut.Item, "SK"))
	require.Equal(t, "Which courses?", sAttr(t, msgPut.Item, "text"))
	require.Equal(t, "Go and Python.", sAttr(t, msgPut.Item, "answer"))
	require.Equal(t, domain.StatusComplete, sAttr(t, msgPut.Item, "status"))

	wantTTL := time.Date(2026, 11, 15, 9, 30, 0, 0, time.UTC).Unix()
	require.Equal(t, nAttr(t, msgPut.Item, "ttl"), nAttr(t, db.lastTxInput.TransactItems[1].Put.Item, "ttl"))
	require.Equal(t, wantTTL, mustAtoi64(t, nAttr(t, msgPut.Item, "ttl")))

	metaPut := db.lastTxInput.TransactItems[1].Put
	require.Equal(t, skMeta, sAttr(t, metaPut.Item, "SK"))
	require.Equal(t, "3", nAttr(t, metaPut.Item, "turns"))
	require.Equal(t, "2026-10-16T09:30:00Z", sAttr(t, metaPut.Item, "lastActivity"))
}

func TestSaveCompletedTurn_DynamoError(t *testing.T) {
	c := mustNewDynamoStore(t, &fakeDynamo{txErr: errors.New("transaction canceled")})
	err := c.SaveCompletedTurn(context.Background(), "abc", "q", "a", domain.StatusComplete, 1)
	require.ErrorContains(t, err, "SaveCompletedTurn")
}

func TestSaveTurn_RequiresKeys(t *testing.T) {
	c := mustNewDynamoStore(t, &fakeDynamo{})
	err := c.SaveTurn(context.Background(), domain.Message{SK: "MSG#ts"}, domain.ConversationMeta{PK: "CONV#abc", SK: skMeta})
	require.ErrorContains(t, err, "message PK")

	err = c.SaveTurn(context.Background(), domain.Message{PK: "CONV#abc", SK: "MSG#ts"}, domain.ConversationMeta{SK: skMeta})
	require.ErrorContains(t, err, "meta PK")
}

func TestKeys(t *testing.T) {
	require.Equal(t, "CONV#my-conv", convPK("my-conv"))
	require.Equal(t, "MSG#2026-02-25T10:00:00Z", msgSK(time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC)))
}
