// Package seed loads users and products into a backend for local runs.
// Users and products are owned by other services in production.
package seed

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/catalog"
)

// User is a customer account.
type User struct {
	UserID   string `json:"userId" db:"id" dynamodbav:"user_id"`
	Username string `json:"username" db:"username" dynamodbav:"username"`
	Email    string `json:"email" db:"email" dynamodbav:"email"`
	Role     string `json:"role" db:"role" dynamodbav:"role"`
}

// Fixture is the seed file layout.
type Fixture struct {
	Users    []User            `json:"users"`
	Products []catalog.Product `json:"products"`
}

// Target is a backend that accepts seed records. Both methods upsert.
type Target interface {
	PutUser(ctx context.Context, u User) error
	PutProduct(ctx context.Context, p catalog.Product) error
}

// Load reads a JSON fixture from path.
func Load(path string) (Fixture, error) {
	var f Fixture
	raw, err := os.ReadFile(path)
	if err != nil {
		return f, errors.Wrap(err, "read seed file")
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return f, errors.Wrapf(err, "decode seed file %s", path)
	}
	return f, nil
}

// Apply writes every user, then every product.
func Apply(ctx context.Context, t Target, f Fixture, log logrus.FieldLogger) error {
	for _, u := range f.Users {
		if err := t.PutUser(ctx, u); err != nil {
			return errors.Wrapf(err, "seed user %s", u.UserID)
		}
	}
	for _, p := range f.Products {
		if p.StockQuantity < 0 {
			return errors.Errorf("seed product %s: negative stock", p.ProductID)
		}
		if err := t.PutProduct(ctx, p); err != nil {
			return errors.Wrapf(err, "seed product %s", p.ProductID)
		}
	}
	log.WithFields(logrus.Fields{"users": len(f.Users), "products": len(f.Products)}).Info("seed applied")
	return nil
}
