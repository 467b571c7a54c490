package dynamostore

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/aws"
	"github.com/imrishuroy/go-storefront/internal/orders"
	"github.com/imrishuroy/go-storefront/internal/seed"
)

// HistoryRows implements orders.HistoryStore. Orders are scanned and joined
// with users and products in memory.
func (s *Store) HistoryRows(ctx context.Context, scope orders.Scope) ([]orders.HistoryRow, error) {
	in := &dyn.ScanInput{TableName: &s.tables.Orders}
	if !scope.All {
		in.FilterExpression = aws.String("user_id = :u")
		in.ExpressionAttributeValues = map[string]types.AttributeValue{":u": str(scope.UserID)}
	}
	raw, err := s.scanAll(ctx, in)
	if err != nil {
		return nil, apperr.Persistence("scan orders", err)
	}
	var items []orderItem
	if err := attributevalue.UnmarshalListOfMaps(raw, &items); err != nil {
		return nil, apperr.Persistence("scan orders", fmt.Errorf("unmarshal orders: %w", err))
	}
	sort.Slice(items, func(i, j int) bool {
		di, dj := items[i].date(), items[j].date()
		if di.Equal(dj) {
			return items[i].OrderID < items[j].OrderID
		}
		return di.After(dj)
	})

	j := joiner{s: s, users: map[string]*seed.User{}, products: map[string]*productItem{}}
	rows := make([]orders.HistoryRow, 0, len(items))
	for _, o := range items {
		u, err := j.user(ctx, o.UserID)
		if err != nil {
			return nil, err
		}
		base := orders.HistoryRow{
			OrderID:         o.OrderID,
			UserID:          o.UserID,
			TotalAmount:     parseMoney(o.TotalAmount),
			ShippingAddress: []byte(o.ShippingAddress),
			Status:          orders.Status(o.Status),
			OrderDate:       o.date(),
		}
		if u != nil {
			base.Username, base.Email = u.Username, u.Email
		}
		if len(o.Items) == 0 {
			rows = append(rows, base)
			continue
		}
		for _, l := range o.Items {
			r := base
			r.ProductID = l.ProductID
			r.Quantity = l.Quantity
			r.Price = parseMoney(l.Price)
			p, err := j.product(ctx, l.ProductID)
			if err != nil {
				return nil, err
			}
			if p != nil {
				r.ProductName = p.Name
			}
			rows = append(rows, r)
		}
	}
	return rows, nil
}

// joiner caches lookups for one history read.
type joiner struct {
	s        *Store
	users    map[string]*seed.User
	products map[string]*productItem
}

func (j joiner) user(ctx context.Context, userID string) (*seed.User, error) {
	if u, ok := j.users[userID]; ok {
		return u, nil
	}
	out, err := j.s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &j.s.tables.Users,
		Key:       map[string]types.AttributeValue{attrUserID: str(userID)},
	})
	if err != nil {
		return nil, apperr.Persistence("get user", fmt.Errorf("get item: %w", err))
	}
	var u *seed.User
	if len(out.Item) > 0 {
		u = &seed.User{}
		if err := attributevalue.UnmarshalMap(out.Item, u); err != nil {
			return nil, apperr.Persistence("get user", fmt.Errorf("unmarshal item: %w", err))
		}
	}
	j.users[userID] = u
	return u, nil
}

func (j joiner) product(ctx context.Context, productID string) (*productItem, error) {
	if p, ok := j.products[productID]; ok {
		return p, nil
	}
	p, err := j.s.getProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	j.products[productID] = p
	return p, nil
}
