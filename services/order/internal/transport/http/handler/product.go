package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/switq/fast-food-api/pkg/mylogger"
	"github.com/switq/fast-food-api/services/order/internal/domain"
	"github.com/switq/fast-food-api/services/order/internal/service"
	"go.uber.org/zap"
)

type ProductHandler struct {
	products service.ProductService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewProductHandler(products service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		products: products,
		validate: validator.New(),
		logger:   logger,
	}
}

type CreateProductInput struct {
	Name        string          `json:"name" validate:"required,min=2,max=100"`
	Description string          `json:"description" validate:"max=1000"`
	Category    string          `json:"category" validate:"required"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
}

type UpdateStockInput struct {
	Stock int `json:"stock" validate:"gte=0"`
}

func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var input CreateProductInput
	if ok, err := parseBody(c, h.validate, &input); !ok {
		return err
	}

	product, err := h.products.Create(c.UserContext(), service.CreateProductInput{
		Name:        input.Name,
		Description: input.Description,
		Category:    input.Category,
		Price:       input.Price,
		Stock:       input.Stock,
	})
	if err != nil {
		return respondError(c, h.logger, "create product failed", err)
	}

	mylogger.Info(c.UserContext(), h.logger, "create product succeeded", zap.String("product_id", product.ID.String()))

	return c.Status(fiber.StatusCreated).JSON(product)
}

func (h *ProductHandler) FindByID(c *fiber.Ctx) error {
	id, ok, err := paramUUID(c, "id")
	if !ok {
		return err
	}

	product, err := h.products.FindByID(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, "find product failed", err)
	}

	return c.JSON(product)
}

func (h *ProductHandler) List(c *fiber.Ctx) error {
	list, err := h.products.List(c.UserContext(), c.Query("category"))
	if err != nil {
		return respondError(c, h.logger, "list products failed", err)
	}

	return c.JSON(list)
}

func (h *ProductHandler) Update(c *fiber.Ctx) error {
	id, ok, err := paramUUID(c, "id")
	if !ok {
		return err
	}

	var input domain.UpdateProductInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	product, err := h.products.Update(c.UserContext(), id, input)
	if err != nil {
		return respondError(c, h.logger, "update product failed", err)
	}

	return c.JSON(product)
}

func (h *ProductHandler) UpdateStock(c *fiber.Ctx) error {
	id, ok, err := paramUUID(c, "id")
	if !ok {
		return err
	}

	var input UpdateStockInput
	if ok, err := parseBody(c, h.validate, &input); !ok {
		return err
	}

	product, err := h.products.UpdateStock(c.UserContext(), id, input.Stock)
	if err != nil {
		return respondError(c, h.logger, "update stock failed", err)
	}

	return c.JSON(product)
}

func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	id, ok, err := paramUUID(c, "id")
	if !ok {
		return err
	}

	if err := h.products.Delete(c.UserContext(), id); err != nil {
		return respondError(c, h.logger, "delete product failed", err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
