package simulate

import (
	"sync"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/shaiso/Storefront/internal/domain"
)

// Диапазон цен сгенерированных товаров.
const (
	minProductPrice = 1.0
	maxProductPrice = 1000.0
)

// Catalog генерирует товары и покупателей.
type Catalog struct {
	mu    sync.Mutex
	faker *gofakeit.Faker
}

// NewCatalog создаёт каталог. seed == 0 — случайный seed.
func NewCatalog(seed uint64) *Catalog {
	return &Catalog{faker: gofakeit.New(seed)}
}

// Products генерирует n товаров.
func (c *Catalog) Products(n int) []domain.Product {
	c.mu.Lock()
	defer c.mu.Unlock()

	products := make([]domain.Product, n)
	for i := range products {
		products[i] = domain.Product{
			ID:          uuid.NewString(),
			Name:        c.faker.ProductName(),
			Price:       domain.RoundCents(c.faker.Price(minProductPrice, maxProductPrice)),
			Category:    c.faker.ProductCategory(),
			Description: c.faker.ProductDescription(),
			InStock:     c.faker.Bool(),
		}
	}
	return products
}

// Customer генерирует покупателя.
func (c *Catalog) Customer() domain.Customer {
	c.mu.Lock()
	defer c.mu.Unlock()

	return domain.Customer{
		Name:    c.faker.Name(),
		Email:   c.faker.Email(),
		Address: c.faker.Street(),
	}
}
