package dynamostore

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type item = map[string]types.AttributeValue

// fakeDynamo is an in-memory DynamoDB that understands exactly the
// expressions this package sends.
type fakeDynamo struct {
	mu       sync.Mutex
	keys     map[string][]string        // table -> key attribute names
	tables   map[string]map[string]item // table -> key string -> item
	pageSize int                        // 0 means unpaged

	transactCalls int
	lastTransact  *dyn.TransactWriteItemsInput
	transactErr   error
}

var testTables = Tables{Products: "products", Users: "users", Cart: "cart_items", Orders: "orders"}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{
		keys: map[string][]string{
			testTables.Products: {"product_id"},
			testTables.Users:    {"user_id"},
			testTables.Cart:     {"user_id", "product_id"},
			testTables.Orders:   {"order_id"},
		},
		tables: map[string]map[string]item{},
	}
}

func sval(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func nval(av types.AttributeValue) int {
	if n, ok := av.(*types.AttributeValueMemberN); ok {
		v, _ := strconv.Atoi(n.Value)
		return v
	}
	return 0
}

func (f *fakeDynamo) keyOf(table string, it item) string {
	parts := make([]string, 0, 2)
	for _, k := range f.keys[table] {
		parts = append(parts, sval(it[k]))
	}
	return strings.Join(parts, "#")
}

func (f *fakeDynamo) get(table string, key item) item {
	return f.tables[table][f.keyOf(table, key)]
}

func (f *fakeDynamo) put(table string, it item) {
	if f.tables[table] == nil {
		f.tables[table] = map[string]item{}
	}
	f.tables[table][f.keyOf(table, it)] = it
}

func (f *fakeDynamo) del(table string, key item) {
	delete(f.tables[table], f.keyOf(table, key))
}

func ccf() error {
	return &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
}

func strPtr(s string) *string { return &s }

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// checkCondition evaluates a condition against the current item.
func (f *fakeDynamo) checkCondition(cond string, current item, values item) bool {
	switch cond {
	case "":
		return true
	case decrementCondition:
		return current != nil && nval(current["stock_quantity"]) >= nval(values[":q"])
	case cartItemMatches:
		return current != nil && sval(current["cart_item_id"]) == sval(values[":id"])
	case orderNotExists:
		return current == nil
	}
	panic("fakeDynamo: unsupported condition " + cond)
}

// applyUpdate returns the updated copy of current.
func (f *fakeDynamo) applyUpdate(expr string, key, current, values item) item {
	next := item{}
	for k, v := range current {
		next[k] = v
	}
	for k, v := range key {
		next[k] = v
	}
	switch expr {
	case decrementUpdate:
		next["stock_quantity"] = numberAttr(nval(current["stock_quantity"]) - nval(values[":q"]))
	case cartUpsert:
		next["quantity"] = numberAttr(nval(current["quantity"]) + nval(values[":q"]))
		if current == nil {
			next["cart_item_id"] = values[":id"]
			next["added_at"] = values[":now"]
		}
	case "SET quantity = :q":
		next["quantity"] = values[":q"]
	default:
		panic("fakeDynamo: unsupported update " + expr)
	}
	return next
}

func (f *fakeDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if params.Item == nil {
		return nil, errors.New("nil item")
	}
	if !f.checkCondition(deref(params.ConditionExpression), f.get(*params.TableName, params.Item), params.ExpressionAttributeValues) {
		return nil, ccf()
	}
	f.put(*params.TableName, params.Item)
	return &dyn.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dyn.GetItemOutput{Item: f.get(*params.TableName, params.Key)}, nil
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table := *params.TableName
	current := f.get(table, params.Key)
	if !f.checkCondition(deref(params.ConditionExpression), current, params.ExpressionAttributeValues) {
		return nil, ccf()
	}
	next := f.applyUpdate(deref(params.UpdateExpression), params.Key, current, params.ExpressionAttributeValues)
	f.put(table, next)
	return &dyn.UpdateItemOutput{Attributes: next}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.checkCondition(deref(params.ConditionExpression), f.get(*params.TableName, params.Key), params.ExpressionAttributeValues) {
		return nil, ccf()
	}
	f.del(*params.TableName, params.Key)
	return &dyn.DeleteItemOutput{}, nil
}

// page applies pageSize using a synthetic offset in LastEvaluatedKey.
func (f *fakeDynamo) page(all []item, start item) ([]item, item) {
	sort.Slice(all, func(i, j int) bool { return f.sortKey(all[i]) < f.sortKey(all[j]) })
	offset := 0
	if start != nil {
		offset = nval(start["__offset"])
	}
	if f.pageSize == 0 || offset+f.pageSize >= len(all) {
		return all[offset:], nil
	}
	end := offset + f.pageSize
	return all[offset:end], item{"__offset": numberAttr(end)}
}

func (f *fakeDynamo) sortKey(it item) string {
	return sval(it["user_id"]) + "#" + sval(it["product_id"]) + "#" + sval(it["order_id"])
}

func (f *fakeDynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if deref(params.KeyConditionExpression) != "user_id = :u" {
		return nil, errors.New("fakeDynamo: unsupported key condition")
	}
	u := sval(params.ExpressionAttributeValues[":u"])
	var all []item
	for _, it := range f.tables[*params.TableName] {
		if sval(it["user_id"]) == u {
			all = append(all, it)
		}
	}
	items, last := f.page(all, params.ExclusiveStartKey)
	return &dyn.QueryOutput{Items: items, LastEvaluatedKey: last}, nil
}

func (f *fakeDynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []item
	for _, it := range f.tables[*params.TableName] {
		if deref(params.FilterExpression) == "user_id = :u" &&
			sval(it["user_id"]) != sval(params.ExpressionAttributeValues[":u"]) {
			continue
		}
		all = append(all, it)
	}
	items, last := f.page(all, params.ExclusiveStartKey)
	return &dyn.ScanOutput{Items: items, LastEvaluatedKey: last}, nil
}

func (f *fakeDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactCalls++
	f.lastTransact = params
	if f.transactErr != nil {
		return nil, f.transactErr
	}

	reasons := make([]types.CancellationReason, len(params.TransactItems))
	failed := false
	for i, it := range params.TransactItems {
		ok := true
		switch {
		case it.Put != nil:
			ok = f.checkCondition(deref(it.Put.ConditionExpression), f.get(*it.Put.TableName, it.Put.Item), it.Put.ExpressionAttributeValues)
		case it.Update != nil:
			ok = f.checkCondition(deref(it.Update.ConditionExpression), f.get(*it.Update.TableName, it.Update.Key), it.Update.ExpressionAttributeValues)
		case it.Delete != nil:
			ok = f.checkCondition(deref(it.Delete.ConditionExpression), f.get(*it.Delete.TableName, it.Delete.Key), it.Delete.ExpressionAttributeValues)
		}
		if ok {
			reasons[i] = types.CancellationReason{Code: strPtr("None")}
		} else {
			reasons[i] = types.CancellationReason{Code: strPtr("ConditionalCheckFailed")}
			failed = true
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             strPtr("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}

	for _, it := range params.TransactItems {
		switch {
		case it.Put != nil:
			f.put(*it.Put.TableName, it.Put.Item)
		case it.Update != nil:
			cur := f.get(*it.Update.TableName, it.Update.Key)
			f.put(*it.Update.TableName, f.applyUpdate(deref(it.Update.UpdateExpression), it.Update.Key, cur, it.Update.ExpressionAttributeValues))
		case it.Delete != nil:
			f.del(*it.Delete.TableName, it.Delete.Key)
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}
