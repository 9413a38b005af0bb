package testhelpers

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

// StorefrontSchema creates a small shop database. The DDL is portable across
// PostgreSQL and SQLite so adapter and service tests share one fixture.
const StorefrontSchema = `
CREATE TABLE customers (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	city TEXT
);
CREATE TABLE products (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	price NUMERIC(10,2)
);
CREATE TABLE orders (
	id INTEGER PRIMARY KEY,
	customer_id INTEGER NOT NULL REFERENCES customers(id),
	status TEXT DEFAULT 'new'
);
CREATE TABLE order_items (
	id INTEGER PRIMARY KEY,
	order_id INTEGER NOT NULL REFERENCES orders(id),
	product_id INTEGER NOT NULL REFERENCES products(id),
	quantity INTEGER NOT NULL
);
INSERT INTO customers (id, name, city) VALUES
	(1, 'Ada', 'London'),
	(2, 'Grace', 'Arlington'),
	(3, 'Linus', 'Helsinki');
INSERT INTO products (id, title, price) VALUES
	(1, 'Keyboard', 49.90),
	(2, 'Monitor', 199.00);
INSERT INTO orders (id, customer_id, status) VALUES
	(1, 1, 'paid'),
	(2, 1, 'new'),
	(3, 2, 'paid');
INSERT INTO order_items (id, order_id, product_id, quantity) VALUES
	(1, 1, 1, 2),
	(2, 1, 2, 1),
	(3, 2, 2, 1),
	(4, 3, 1, 5);
`

// StorefrontTables lists the fixture tables in name order.
var StorefrontTables = []string{"customers", "order_items", "orders", "products"}

// NewStorefrontSQLite writes the storefront fixture to a fresh SQLite file
// under t.TempDir and returns its path.
func NewStorefrontSQLite(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "storefront.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	for _, stmt := range splitStatements(StorefrontSchema) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("failed to seed sqlite: %v\n%s", err, stmt)
		}
	}
	return path
}

// splitStatements splits the fixture on semicolons. The fixture holds no
// string literals containing semicolons.
func splitStatements(script string) []string {
	var out []string
	for _, stmt := range strings.Split(script, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}
