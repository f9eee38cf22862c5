package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/switq/fast-food-api/services/order/internal/service"
	"go.uber.org/zap"
)

type CustomerHandler struct {
	customers service.CustomerService
	validate  *validator.Validate
	logger    *zap.Logger
}

func NewCustomerHandler(customers service.CustomerService, logger *zap.Logger) *CustomerHandler {
	return &CustomerHandler{
		customers: customers,
		validate:  validator.New(),
		logger:    logger,
	}
}

type RegisterCustomerInput struct {
	Name  string  `json:"name" validate:"required,max=120"`
	Email string  `json:"email" validate:"required,email"`
	CPF   *string `json:"cpf" validate:"omitempty,min=11,max=14"`
}

func (h *CustomerHandler) Register(c *fiber.Ctx) error {
	var input RegisterCustomerInput
	if ok, err := parseBody(c, h.validate, &input); !ok {
		return err
	}

	customer, err := h.customers.Register(c.UserContext(), input.Name, input.Email, input.CPF)
	if err != nil {
		return respondError(c, h.logger, "register customer failed", err)
	}

	return c.Status(fiber.StatusCreated).JSON(customer)
}

func (h *CustomerHandler) FindByID(c *fiber.Ctx) error {
	id, ok, err := paramUUID(c, "id")
	if !ok {
		return err
	}

	customer, err := h.customers.FindByID(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, "find customer failed", err)
	}

	return c.JSON(customer)
}

// List returns every customer, or the single match for ?email=.
func (h *CustomerHandler) List(c *fiber.Ctx) error {
	if email := c.Query("email"); email != "" {
		customer, err := h.customers.FindByEmail(c.UserContext(), email)
		if err != nil {
			return respondError(c, h.logger, "find customer failed", err)
		}
		return c.JSON(customer)
	}

	list, err := h.customers.List(c.UserContext())
	if err != nil {
		return respondError(c, h.logger, "list customers failed", err)
	}

	return c.JSON(list)
}
