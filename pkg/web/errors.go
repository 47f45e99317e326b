package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/atendohq/atendo/pkg/flow"
	"github.com/atendohq/atendo/pkg/gateway"
	"github.com/atendohq/atendo/pkg/persistence"
	"github.com/atendohq/atendo/pkg/provider"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func unauthorized(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusUnauthorized).
		WithInstance(c.Path()).
		WithType("invalid_signature").
		WithDetail(detail)

	return c.Status(fiber.StatusUnauthorized).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusNotFound).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleDomainError maps typed gateway, flow and persistence errors to
// problem documents.
func handleDomainError(c fiber.Ctx, err error) error {
	var invalidFlow *flow.InvalidFlowError

	switch {
	case persistence.IsProviderNotFound(err):
		return notFound(c, "provider not found")

	case persistence.IsFlowNotFound(err):
		return notFound(c, "flow not found")

	case persistence.IsExecutionNotFound(err):
		return notFound(c, "execution not found")

	case persistence.IsNoActiveExecution(err):
		return notFound(c, "no active execution for ticket")

	case errors.Is(err, gateway.ErrNoProviderAvailable):
		problem := problems.NewStatusProblem(fiber.StatusConflict).
			WithInstance(c.Path()).
			WithType("no_provider_available").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, gateway.ErrProviderInactive):
		problem := problems.NewStatusProblem(fiber.StatusConflict).
			WithInstance(c.Path()).
			WithType("provider_inactive").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, gateway.ErrMigrationTimeout):
		problem := problems.NewStatusProblem(fiber.StatusGatewayTimeout).
			WithInstance(c.Path()).
			WithType("migration_timeout").
			WithDetail(err.Error())

		return c.Status(fiber.StatusGatewayTimeout).JSON(problem)

	case errors.As(err, &invalidFlow):
		problem := problems.NewStatusProblem(fiber.StatusUnprocessableEntity).
			WithInstance(c.Path()).
			WithType("invalid_flow").
			WithDetail(invalidFlow.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	case isRateLimited(err):
		problem := problems.NewStatusProblem(fiber.StatusTooManyRequests).
			WithInstance(c.Path()).
			WithType("rate_limited").
			WithDetail(err.Error())

		return c.Status(fiber.StatusTooManyRequests).JSON(problem)

	case provider.IsDeliveryRejected(err):
		problem := problems.NewStatusProblem(fiber.StatusUnprocessableEntity).
			WithInstance(c.Path()).
			WithType("delivery_rejected").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	default:
		return internalError(c, err)
	}
}

func isRateLimited(err error) bool {
	_, limited := provider.IsRateLimited(err)

	return limited
}
