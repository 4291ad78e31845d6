package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"guestbooker_go_backend/internal/auth"
	apperrors "guestbooker_go_backend/internal/errors"
	"guestbooker_go_backend/internal/models"
	"guestbooker_go_backend/internal/services"
	"guestbooker_go_backend/internal/utils/broker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
)

func SetupRoutes(
	r *gin.Engine,
	researchService *services.ResearchService,
	usageService services.UsageLedger,
	showService *services.ShowService,
	stripeService *services.StripeService,
	userService *services.UserService,
	messageBroker *broker.Broker,
) {
	api := r.Group("/api")
	{
		api.POST("/research", auth.AuthMiddleware(userService), runResearchHandler(researchService))
		api.GET("/research/history", auth.AuthMiddleware(userService), researchHistoryHandler(researchService))
		api.GET("/research/progress", auth.AuthMiddleware(userService), researchProgressHandler(messageBroker))
		api.GET("/research/:id", auth.AuthMiddleware(userService), getResearchHandler(researchService))
		api.GET("/research/:id/export/:format", auth.AuthMiddleware(userService), exportResearchHandler(researchService))
		api.GET("/usage", auth.AuthMiddleware(userService), usageHandler(usageService))
		api.GET("/shows", auth.AuthMiddleware(userService), showsHandler(showService))
		api.POST("/subscribe", auth.AuthMiddleware(userService), subscribeHandler(stripeService))
		api.POST("/stripe/webhook", stripeWebhookHandler(stripeService, userService))
	}
}

func currentUser(c *gin.Context) (*models.User, bool) {
	user, exists := c.Get("user")
	if !exists {
		return nil, false
	}
	userModel, ok := user.(*models.User)
	return userModel, ok
}

// handleResearchError maps the orchestrator's error taxonomy onto stable
// response kinds so clients branch on the type, not the message text.
func handleResearchError(c *gin.Context, err error) {
	switch e := err.(type) {
	case *services.QuotaExceededError:
		apperrors.HandleError(c, apperrors.New429Error("Monthly discovery quota exceeded", map[string]interface{}{
			"used":     e.Used,
			"limit":    e.Limit,
			"reset_at": e.ResetAt,
		}))
	case *services.ProviderError:
		apperrors.HandleError(c, apperrors.New502Error(e.Message, e))
	default:
		if err == services.ErrEmptyQuery {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}
		apperrors.HandleError(c, err)
	}
}

func runResearchHandler(researchService *services.ResearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Query      string `json:"query" binding:"required"`
			MaxResults int    `json:"max_results"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}

		user, ok := currentUser(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}

		result, err := researchService.RunResearch(c.Request.Context(), user, request.Query, request.MaxResults)
		if err != nil {
			handleResearchError(c, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func researchHistoryHandler(researchService *services.ResearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}

		requests, err := researchService.GetUserResearchHistory(user.ID)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}

		history := make([]gin.H, 0, len(requests))
		for _, req := range requests {
			envelope, err := researchEnvelope(&req)
			if err != nil {
				apperrors.HandleError(c, err)
				return
			}
			history = append(history, envelope)
		}
		c.JSON(http.StatusOK, gin.H{"research_history": history})
	}
}

func getResearchHandler(researchService *services.ResearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}

		req, status := loadOwnedResearch(c, researchService, user)
		if status != nil {
			apperrors.HandleError(c, status)
			return
		}
		envelope, err := researchEnvelope(req)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, envelope)
	}
}

func loadOwnedResearch(c *gin.Context, researchService *services.ResearchService, user *models.User) (*models.ResearchRequest, *apperrors.CustomError) {
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, apperrors.New400Error("Invalid research request id")
	}
	req, err := researchService.GetResearchRequest(requestID)
	if err != nil {
		return nil, apperrors.New404Error("Research request not found")
	}
	if req.UserID != user.ID {
		return nil, apperrors.New403Error()
	}
	return req, nil
}

func researchEnvelope(req *models.ResearchRequest) (gin.H, error) {
	var rows []services.ResultRow
	if len(req.Results) > 0 {
		// Rows were marshaled by us; a decode failure means a corrupted
		// column and is surfaced, same as on the export path.
		if err := json.Unmarshal(req.Results, &rows); err != nil {
			return nil, err
		}
	}
	return gin.H{
		"request_id":           req.RequestID,
		"query":                req.Query,
		"max_results":          req.MaxResults,
		"status":               req.Status,
		"results":              rows,
		"summary":              req.Summary,
		"model_used":           req.ModelUsed,
		"prompt_tokens":        req.PromptTokens,
		"completion_tokens":    req.CompletionTokens,
		"total_tokens":         req.TotalTokens,
		"estimated_cost_cents": req.EstimatedCostCents,
		"cached":               req.Cached,
		"shows_created":        req.ShowsCreated,
		"shows_skipped":        req.ShowsSkipped,
		"error_message":        req.ErrorMessage,
		"completed_at":         req.CompletedAt,
	}, nil
}

func exportResearchHandler(researchService *services.ResearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}

		req, status := loadOwnedResearch(c, researchService, user)
		if status != nil {
			apperrors.HandleError(c, status)
			return
		}

		var rows []services.ResultRow
		if len(req.Results) > 0 {
			if err := json.Unmarshal(req.Results, &rows); err != nil {
				apperrors.HandleError(c, err)
				return
			}
		}

		filename := fmt.Sprintf("research_%s", req.RequestID)
		switch strings.ToLower(c.Param("format")) {
		case "csv":
			c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", filename))
			c.Header("Content-Type", "text/csv")
			if err := services.WriteResultsCSV(c.Writer, rows); err != nil {
				apperrors.HandleError(c, err)
			}
		case "json":
			envelope, err := researchEnvelope(req)
			if err != nil {
				apperrors.HandleError(c, err)
				return
			}
			body, err := services.MarshalResultJSON(envelope)
			if err != nil {
				apperrors.HandleError(c, err)
				return
			}
			c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.json", filename))
			c.Data(http.StatusOK, "application/json", body)
		case "pdf":
			c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", filename))
			c.Header("Content-Type", "application/pdf")
			if err := services.WriteResultsPDF(c.Writer, req.Query, rows); err != nil {
				apperrors.HandleError(c, err)
			}
		default:
			apperrors.HandleError(c, apperrors.New400Error("Unsupported export format, use csv, json or pdf"))
		}
	}
}

func researchProgressHandler(messageBroker *broker.Broker) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}

		topic := services.ProgressTopicForUser(user.ID)
		events := messageBroker.Subscribe(topic)
		defer messageBroker.Unsubscribe(topic, events)

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")

		c.Stream(func(w io.Writer) bool {
			select {
			case msg, open := <-events:
				if !open {
					return false
				}
				c.SSEvent("progress", msg)
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	}
}

func usageHandler(usageService services.UsageLedger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}

		// Roll the window first so a stale reset date never reports an
		// exhausted quota.
		if err := usageService.MaybeReset(user.ID); err != nil {
			apperrors.HandleError(c, err)
			return
		}
		status, err := usageService.CheckQuota(user.ID)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}

		remaining := -1
		if !status.Limit.IsUnlimited() {
			remaining = status.Limit.Monthly() - status.Used
			if remaining < 0 {
				remaining = 0
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"tier":                    status.Tier,
			"used":                    status.Used,
			"limit":                   status.Limit.DisplayLimit(),
			"remaining":               remaining,
			"reset_at":                status.ResetAt,
			"monthly_token_allowance": services.TokenAllowanceForTier(status.Tier),
		})
	}
}

func showsHandler(showService *services.ShowService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}

		shows, err := showService.GetShowsByUser(user.ID)
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"shows": shows})
	}
}

func subscribeHandler(stripeService *services.StripeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Tier string `json:"tier" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}
		if !services.ValidTier(request.Tier) {
			apperrors.HandleError(c, apperrors.New400Error("Unknown subscription tier"))
			return
		}

		priceID := os.Getenv(fmt.Sprintf("STRIPE_%s_PRICE_ID", strings.ToUpper(request.Tier)))
		if priceID == "" {
			apperrors.HandleError(c, apperrors.New400Error("Tier is not purchasable"))
			return
		}

		user, ok := currentUser(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}

		session, err := stripeService.CreateSubscriptionCheckout(
			user.ID.String(),
			request.Tier,
			priceID,
			os.Getenv("CHECKOUT_SUCCESS_URL"),
			os.Getenv("CHECKOUT_CANCEL_URL"),
		)
		if err != nil {
			apperrors.HandleError(c, apperrors.LogAndReturn500(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{"session_id": session.ID})
	}
}

func stripeWebhookHandler(stripeService *services.StripeService, userService *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		const MaxBodyBytes = int64(65536)
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

		payload, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
			return
		}

		signatureHeader := c.GetHeader("Stripe-Signature")
		event, err := stripeService.HandleWebhook(payload, signatureHeader)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to verify webhook signature"})
			return
		}

		switch event.Type {
		case "checkout.session.completed":
			var session stripe.CheckoutSession
			if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse checkout session"})
				return
			}
			if err := applyCompletedCheckout(session, userService); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process checkout session"})
				return
			}
		default:
			// Other event types are acknowledged and ignored.
		}

		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

func applyCompletedCheckout(session stripe.CheckoutSession, userService *services.UserService) error {
	userID, err := uuid.Parse(session.ClientReferenceID)
	if err != nil {
		return fmt.Errorf("invalid user ID: %v", err)
	}

	tier := session.Metadata["tier"]
	if !services.ValidTier(tier) {
		return fmt.Errorf("unknown tier in checkout metadata: %q", tier)
	}

	return userService.UpdateTier(userID, tier)
}
