package router

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Handlers provides the admin HTTP surface for router rules and engine
// introspection.
type Handlers struct {
	service *Service
	store   *Store
	logger  zerolog.Logger
}

// NewHandlers creates the router handlers.
func NewHandlers(service *Service, store *Store, logger zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		store:   store,
		logger:  logger.With().Str("component", "router-api").Logger(),
	}
}

// RegisterRoutes registers router routes on an Echo group.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("/rules", h.ListRules)
	g.POST("/rules", h.CreateRule)
	g.GET("/rules/:id", h.GetRule)
	g.PUT("/rules/:id", h.UpdateRule)
	g.DELETE("/rules/:id", h.DeleteRule)
	g.GET("/plugins", h.Plugins)
	g.POST("/preview", h.Preview)
}

// ListRules returns all router rules.
// GET /api/v1/router/rules
func (h *Handlers) ListRules(c echo.Context) error {
	rules, err := h.store.ListRules(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if rules == nil {
		rules = []RouterRule{}
	}
	return c.JSON(http.StatusOK, rules)
}

// GetRule returns one rule by ID.
// GET /api/v1/router/rules/:id
func (h *Handlers) GetRule(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid rule id")
	}

	rule, err := h.store.GetRule(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "rule not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rule)
}

// CreateRule creates a router rule.
// POST /api/v1/router/rules
func (h *Handlers) CreateRule(c echo.Context) error {
	var rule RouterRule
	if err := c.Bind(&rule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validateRule(&rule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	created, err := h.store.CreateRule(c.Request().Context(), &rule)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.logger.Info().Int64("ruleId", created.ID).Str("name", created.Name).
		Str("type", created.Type).Msg("Created router rule")

	return c.JSON(http.StatusCreated, created)
}

// UpdateRule replaces a rule.
// PUT /api/v1/router/rules/:id
func (h *Handlers) UpdateRule(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid rule id")
	}

	var rule RouterRule
	if err := c.Bind(&rule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rule.ID = id

	if err := validateRule(&rule); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.store.UpdateRule(c.Request().Context(), &rule); err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "rule not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rule)
}

// DeleteRule removes a rule.
// DELETE /api/v1/router/rules/:id
func (h *Handlers) DeleteRule(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid rule id")
	}

	if err := h.store.DeleteRule(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "rule not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// Plugins returns the loaded evaluator registry.
// GET /api/v1/router/plugins
func (h *Handlers) Plugins(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Plugins())
}

// PreviewRequest is the dry-run routing request body.
type PreviewRequest struct {
	Item    ContentItem    `json:"item"`
	Context RoutingContext `json:"context"`
}

// Preview evaluates the current rule set against a posted item and returns
// the merged decision list without applying anything.
// POST /api/v1/router/preview
func (h *Handlers) Preview(c echo.Context) error {
	var req PreviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Context.ContentType == "" {
		req.Context.ContentType = req.Item.Type
	}
	if req.Context.ContentType != ContentTypeMovie && req.Context.ContentType != ContentTypeShow {
		return echo.NewHTTPError(http.StatusBadRequest, "contentType must be movie or show")
	}

	decisions := h.service.Plan(c.Request().Context(), &req.Item, &req.Context)
	if decisions == nil {
		decisions = []RoutingDecision{}
	}
	return c.JSON(http.StatusOK, decisions)
}

// validateRule checks the fields common to create and update, including
// that the criteria payload has the right shape for the rule type and that
// any regex condition value passes the safe-pattern gate at authoring time.
func validateRule(rule *RouterRule) error {
	if rule.Name == "" {
		return errors.New("name is required")
	}
	if rule.Target != TargetRadarr && rule.Target != TargetSonarr {
		return errors.New("target must be radarr or sonarr")
	}
	if rule.InstanceID <= 0 {
		return errors.New("instanceId is required")
	}
	if len(rule.Criteria) == 0 {
		return errors.New("criteria is required")
	}

	switch rule.Type {
	case "conditional":
		node, err := ParseConditionalCriteria(rule.Criteria)
		if err != nil {
			return err
		}
		return validatePatterns(node)
	case "genre", "year", "season", "user", "ratings":
		cond, err := ParseFieldCriteria(rule.Criteria)
		if err != nil {
			return err
		}
		return validateLeafPattern(cond)
	default:
		return errors.New("unknown rule type")
	}
}

// validatePatterns rejects unsafe regex values anywhere in a condition
// tree before the rule is saved. Evaluation re-checks at match time, but
// failing fast here surfaces the mistake to the rule author.
func validatePatterns(node *ConditionNode) error {
	if node.IsGroup() {
		for i := range node.Group.Conditions {
			if err := validatePatterns(&node.Group.Conditions[i]); err != nil {
				return err
			}
		}
		return nil
	}
	if node.IsLeaf() {
		return validateLeafPattern(node.Leaf)
	}
	return nil
}

func validateLeafPattern(cond *Condition) error {
	if cond.Operator != OpRegex {
		return nil
	}
	pattern, ok := cond.Value.(string)
	if !ok {
		return errors.New("regex condition value must be a string")
	}
	return ValidatePattern(pattern)
}
