package dynamostore

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/aws"
	"github.com/imrishuroy/go-storefront/internal/cart"
)

func (s *Store) cartItems(ctx context.Context, userID string) ([]cartItem, error) {
	raw, err := s.queryAll(ctx, &dyn.QueryInput{
		TableName:                 &s.tables.Cart,
		KeyConditionExpression:    aws.String("user_id = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":u": str(userID)},
	})
	if err != nil {
		return nil, err
	}
	var items []cartItem
	if err := attributevalue.UnmarshalListOfMaps(raw, &items); err != nil {
		return nil, fmt.Errorf("unmarshal cart items: %w", err)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].AddedAt < items[j].AddedAt })
	return items, nil
}

// Lines implements cart.Store. Lines whose product is gone are skipped.
func (s *Store) Lines(ctx context.Context, userID string) ([]cart.Line, error) {
	items, err := s.cartItems(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("select cart", err)
	}
	lines := make([]cart.Line, 0, len(items))
	for _, it := range items {
		p, err := s.getProduct(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			continue
		}
		lines = append(lines, cart.Line{
			CartItemID:    it.CartItemID,
			UserID:        it.UserID,
			ProductID:     it.ProductID,
			Quantity:      it.Quantity,
			Name:          p.Name,
			Price:         parseMoney(p.Price),
			StockQuantity: p.StockQuantity,
		})
	}
	return lines, nil
}

// AddItem implements cart.Store as an atomic add on the (user, product) key.
func (s *Store) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	p, err := s.getProduct(ctx, productID)
	if err != nil {
		return err
	}
	if p == nil {
		return &apperr.NotFoundError{Resource: "product", ID: productID}
	}
	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:        &s.tables.Cart,
		Key:              cartKey(userID, productID),
		UpdateExpression: aws.String(cartUpsert),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": numberAttr(0),
			":q":    numberAttr(quantity),
			":id":   str(s.newID()),
			":now":  &types.AttributeValueMemberN{Value: strconv.FormatInt(s.nowFunc().UnixNano(), 10)},
		},
	})
	if err != nil {
		return apperr.Persistence("add cart item", fmt.Errorf("update item: %w", err))
	}
	return nil
}

// findCartItem resolves a cart item id within the user's partition.
func (s *Store) findCartItem(ctx context.Context, cartItemID, userID string) (*cartItem, error) {
	items, err := s.cartItems(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("find cart item", err)
	}
	for i := range items {
		if items[i].CartItemID == cartItemID {
			return &items[i], nil
		}
	}
	return nil, &apperr.NotFoundError{Resource: "cart item", ID: cartItemID}
}

// UpdateQuantity implements cart.Store.
func (s *Store) UpdateQuantity(ctx context.Context, cartItemID, userID string, quantity int) error {
	it, err := s.findCartItem(ctx, cartItemID, userID)
	if err != nil {
		return err
	}
	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tables.Cart,
		Key:                 cartKey(userID, it.ProductID),
		UpdateExpression:    aws.String("SET quantity = :q"),
		ConditionExpression: aws.String(cartItemMatches),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":q":  numberAttr(quantity),
			":id": str(cartItemID),
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return &apperr.NotFoundError{Resource: "cart item", ID: cartItemID}
		}
		return apperr.Persistence("update cart item", fmt.Errorf("update item: %w", err))
	}
	return nil
}

// RemoveItem implements cart.Store.
func (s *Store) RemoveItem(ctx context.Context, cartItemID, userID string) error {
	it, err := s.findCartItem(ctx, cartItemID, userID)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:                 &s.tables.Cart,
		Key:                       cartKey(userID, it.ProductID),
		ConditionExpression:       aws.String(cartItemMatches),
		ExpressionAttributeValues: map[string]types.AttributeValue{":id": str(cartItemID)},
	})
	if err != nil {
		if isConditionFailed(err) {
			return &apperr.NotFoundError{Resource: "cart item", ID: cartItemID}
		}
		return apperr.Persistence("remove cart item", fmt.Errorf("delete item: %w", err))
	}
	return nil
}

// Clear implements cart.Store.
func (s *Store) Clear(ctx context.Context, userID string) error {
	items, err := s.cartItems(ctx, userID)
	if err != nil {
		return apperr.Persistence("clear cart", err)
	}
	for _, it := range items {
		_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
			TableName: &s.tables.Cart,
			Key:       cartKey(userID, it.ProductID),
		})
		if err != nil {
			return apperr.Persistence("clear cart", fmt.Errorf("delete item: %w", err))
		}
	}
	return nil
}
