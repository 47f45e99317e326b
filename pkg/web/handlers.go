package web

import (
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/atendohq/atendo/pkg/flow"
	"github.com/atendohq/atendo/pkg/gateway"
	"github.com/atendohq/atendo/pkg/models"
	"github.com/atendohq/atendo/pkg/persistence"
)

const defaultMigrationDeadline = 60 * time.Second

type APIHandlers struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	gateway     *gateway.Gateway
	engine      *flow.Engine
	validator   *validator.Validate
}

func NewAPIHandlers(
	logger *slog.Logger,
	persistence persistence.Persistence,
	gw *gateway.Gateway,
	engine *flow.Engine,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		logger:      logger.With("module", "web"),
		persistence: persistence,
		gateway:     gw,
		engine:      engine,
		validator:   validate,
	}
}

func (h *APIHandlers) CreateProvider(c fiber.Ctx) error {
	var req CreateProviderRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	now := time.Now().UTC()
	config := &models.ProviderConfig{
		ID:            uuid.NewString(),
		CompanyID:     req.CompanyID,
		Kind:          models.ProviderKind(req.Kind),
		Name:          req.Name,
		IsActive:      true,
		Priority:      req.Priority,
		Credentials:   req.Credentials,
		WebhookSecret: req.WebhookSecret,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.persistence.ProviderRepository().SaveProvider(c.Context(), config); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(config)
}

func (h *APIHandlers) GetProviders(c fiber.Ctx) error {
	companyID := c.Params("companyId")
	if companyID == "" {
		return badRequest(c, "company ID is required")
	}

	configs, err := h.persistence.ProviderRepository().Providers(c.Context(), companyID)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(configs)
}

func (h *APIHandlers) ActivateProvider(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "provider ID is required")
	}

	if err := h.gateway.Registry().Activate(c.Context(), id); err != nil {
		return handleDomainError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *APIHandlers) DeactivateProvider(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "provider ID is required")
	}

	h.gateway.Registry().Deactivate(c.Context(), id)

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SetDefaultProvider(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "provider ID is required")
	}

	if err := h.gateway.Registry().SetDefault(c.Context(), id); err != nil {
		return handleDomainError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) MigrateProvider(c fiber.Ctx) error {
	fromID := c.Params("id")
	if fromID == "" {
		return badRequest(c, "provider ID is required")
	}

	var req MigrateProviderRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	deadline := defaultMigrationDeadline
	if req.DeadlineSeconds > 0 {
		deadline = time.Duration(req.DeadlineSeconds) * time.Second
	}

	if err := h.gateway.Registry().Migrate(c.Context(), fromID, req.TargetProviderID, deadline); err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(fiber.Map{"status": "migrated", "default_provider_id": req.TargetProviderID})
}

// GetConnections returns the live connection snapshots of a company,
// including the last QR challenge for socket backends awaiting pairing.
func (h *APIHandlers) GetConnections(c fiber.Ctx) error {
	companyID := c.Params("companyId")
	if companyID == "" {
		return badRequest(c, "company ID is required")
	}

	connections := h.gateway.Registry().Connections(companyID)

	out := make([]ConnectionResponse, 0, len(connections))
	for _, conn := range connections {
		out = append(out, toConnectionResponse(conn))
	}

	return c.JSON(out)
}

func (h *APIHandlers) CreateFlow(c fiber.Ctx) error {
	var graph models.FlowGraph
	if err := c.Bind().JSON(&graph); err != nil {
		return badRequest(c, "invalid JSON body")
	}

	if graph.ID == "" {
		graph.ID = uuid.NewString()
	}

	if graph.Version == 0 {
		graph.Version = 1
	}

	graph.CreatedAt = time.Now().UTC()

	if err := h.validator.Struct(graph); err != nil {
		return badRequest(c, err.Error())
	}

	if err := flow.ValidateGraph(&graph); err != nil {
		return handleDomainError(c, err)
	}

	if err := h.persistence.FlowRepository().SaveFlow(c.Context(), &graph); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(graph)
}

func (h *APIHandlers) GetFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "flow ID is required")
	}

	graph, err := h.persistence.FlowRepository().FlowByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(graph)
}

func (h *APIHandlers) GetFlows(c fiber.Ctx) error {
	companyID := c.Params("companyId")
	if companyID == "" {
		return badRequest(c, "company ID is required")
	}

	graphs, err := h.persistence.FlowRepository().Flows(c.Context(), companyID)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(graphs)
}

// PublishFlow marks a flow live. Only published flows match keyword
// triggers.
func (h *APIHandlers) PublishFlow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "flow ID is required")
	}

	repo := h.persistence.FlowRepository()

	graph, err := repo.FlowByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	if err := flow.ValidateGraph(graph); err != nil {
		return handleDomainError(c, err)
	}

	now := time.Now().UTC()
	graph.PublishedAt = &now

	if err := repo.SaveFlow(c.Context(), graph); err != nil {
		return internalError(c, err)
	}

	return c.JSON(graph)
}

func (h *APIHandlers) StartExecution(c fiber.Ctx) error {
	var req StartExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	execution, err := h.engine.StartExecution(c.Context(), req.FlowID, req.TicketID, req.ContactID, req.Variables)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(execution)
}

func (h *APIHandlers) StopExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "execution ID is required")
	}

	var req StopExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.engine.StopExecution(c.Context(), id, req.Reason); err != nil {
		return handleDomainError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "execution ID is required")
	}

	execution, err := h.persistence.ExecutionRepository().ExecutionByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	companyID := c.Params("companyId")
	if companyID == "" {
		return badRequest(c, "company ID is required")
	}

	executions, err := h.persistence.ExecutionRepository().ExecutionsByCompany(c.Context(), companyID)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(executions)
}

func (h *APIHandlers) SendMessage(c fiber.Ctx) error {
	var req SendMessageRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	msg := models.NormalizedMessage{
		CompanyID:        req.CompanyID,
		ToAddress:        req.ToAddress,
		Body:             req.Body,
		MediaRef:         req.MediaRef,
		MediaKind:        models.MediaKind(req.MediaKind),
		QuotedExternalID: req.QuotedID,
	}

	externalID, err := h.gateway.SendMessage(c.Context(), req.TicketID, msg)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(SendMessageResponse{ExternalID: externalID, Status: "sent"})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := fiber.StatusOK

	var detail string

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = fiber.StatusInternalServerError
		detail = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"detail":    detail,
		"timestamp": time.Now().UTC(),
	})
}
