package tests

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/switq/fast-food-api/services/order/internal/domain"
	"github.com/switq/fast-food-api/services/order/internal/repository"
	"github.com/switq/fast-food-api/services/order/internal/service"
	"go.uber.org/zap"
)

func (s *IntegrationTestSuite) TestCustomers_DuplicateEmailOrCPFRejected() {
	customers := service.NewCustomerService(s.Customers, zap.NewNop())

	cpf := "123.456.789-01"
	ana, err := customers.Register(s.Ctx, "Ana", "Ana@Example.com", &cpf)
	s.Require().NoError(err)

	found, err := customers.FindByEmail(s.Ctx, "ana@example.com")
	s.Require().NoError(err)
	s.Equal(ana.ID, found.ID)
	s.Require().NotNil(found.CPF)
	s.Equal("12345678901", *found.CPF)

	_, err = customers.Register(s.Ctx, "Ana Two", "ana@example.com", nil)
	s.Require().ErrorIs(err, domain.ErrDuplicateCustomer)

	sameCPF := "12345678901"
	_, err = customers.Register(s.Ctx, "Bruno", "bruno@example.com", &sameCPF)
	s.Require().ErrorIs(err, domain.ErrDuplicateCustomer)

	_, err = customers.FindByID(s.Ctx, ana.ID)
	s.Require().NoError(err)
}

func (s *IntegrationTestSuite) TestProducts_DeleteReferencedProductRefused() {
	burger := s.seedProduct("X-Burger", "18.50", 10)

	_, err := s.OrderService.CreateOrder(s.Ctx, service.CreateOrderInput{
		Items: []service.ItemInput{{ProductID: burger.ID, Quantity: 1}},
	})
	s.Require().NoError(err)

	err = s.Products.Delete(s.Ctx, burger.ID)
	s.Require().ErrorIs(err, domain.ErrProductInUse)

	_, err = s.Products.FindByID(s.Ctx, burger.ID)
	s.Require().NoError(err)
}

func (s *IntegrationTestSuite) TestProducts_DuplicateNameRejected() {
	s.seedProduct("X-Burger", "18.50", 10)

	dup, err := domain.NewProduct("X-Burger", "", "Lanche", burgerPrice(), 1)
	s.Require().NoError(err)

	err = s.Products.Create(s.Ctx, dup)
	s.Require().ErrorIs(err, domain.ErrDuplicateProduct)
}

func (s *IntegrationTestSuite) TestOrderNumbers_PostgresSequencePerDayWraps() {
	day := "2026-03-14"

	for want := 1; want <= 3; want++ {
		n, err := s.Numbers.Next(s.Ctx, day)
		s.Require().NoError(err)
		s.Equal(want, n)
	}

	other, err := s.Numbers.Next(s.Ctx, "2026-03-15")
	s.Require().NoError(err)
	s.Equal(1, other)

	_, err = s.DbPool.Exec(s.Ctx, `UPDATE order_number_sequences SET value = 999 WHERE business_day = $1::date`, day)
	s.Require().NoError(err)

	wrapped, err := s.Numbers.Next(s.Ctx, day)
	s.Require().NoError(err)
	s.Equal(1, wrapped)
}

func (s *IntegrationTestSuite) TestOrderNumbers_RedisCounterExpires() {
	numbers := repository.NewRedisOrderNumbers(s.Redis, zap.NewNop())
	day := "2026-03-14"

	first, err := numbers.Next(s.Ctx, day)
	s.Require().NoError(err)
	second, err := numbers.Next(s.Ctx, day)
	s.Require().NoError(err)

	s.Equal(1, first)
	s.Equal(2, second)

	ttl, err := s.Redis.TTL(s.Ctx, "order_number:"+day).Result()
	s.Require().NoError(err)
	s.Greater(ttl, 47*time.Hour)

	s.Require().NoError(s.Redis.Set(s.Ctx, "order_number:"+day, 999, 0).Err())
	wrapped, err := numbers.Next(s.Ctx, day)
	s.Require().NoError(err)
	s.Equal(1, wrapped)
}

func (s *IntegrationTestSuite) TestCachedProducts_ReservationInvalidatesEntry() {
	cached := repository.NewCachedProductRepository(s.Products, s.Redis, time.Minute, zap.NewNop())
	soda := s.seedProduct("Soda", "6.00", 5)

	first, err := cached.FindByID(s.Ctx, soda.ID)
	s.Require().NoError(err)
	s.Equal(5, first.Stock)

	exists, err := s.Redis.Exists(s.Ctx, "product:"+soda.ID.String()).Result()
	s.Require().NoError(err)
	s.EqualValues(1, exists)

	err = cached.ReserveStock(s.Ctx, []domain.StockReservation{{ProductID: soda.ID, Quantity: 2}})
	s.Require().NoError(err)

	exists, err = s.Redis.Exists(s.Ctx, "product:"+soda.ID.String()).Result()
	s.Require().NoError(err)
	s.Zero(exists)

	after, err := cached.FindByID(s.Ctx, soda.ID)
	s.Require().NoError(err)
	s.Equal(3, after.Stock)

	s.Require().NoError(cached.UpdateStock(s.Ctx, soda.ID, 40))

	refreshed, err := cached.FindByID(s.Ctx, soda.ID)
	s.Require().NoError(err)
	s.Equal(40, refreshed.Stock)
}

func burgerPrice() decimal.Decimal {
	return decimal.RequireFromString("18.50")
}
